package deb822

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Removals is a stanza of the ftp-master removals.822 log.
//
// Reference: https://ftp-master.debian.org/removals.822
type Removals struct{ *Paragraph }

// RemovedPackage is a source or binary package listed in a removal.
type RemovedPackage struct {
	Package       string
	Version       string
	Architectures []string
}

var removedRe = regexp.MustCompile(`^\s*(\S+?)_(\S+)(?:\s+\[([^\]]+)\])?\s*$`)

// Suite returns the suite the packages were removed from.
func (r Removals) Suite() string { return r.Value("Suite") }

// Date parses the Date field (RFC 2822).
func (r Removals) Date() (time.Time, error) {
	d, err := time.Parse(time.RFC1123Z, r.Value("Date"))
	return d, errors.Wrap(err, "parsing Date")
}

// Bugs returns the bug numbers closed by the removal.
func (r Removals) Bugs() ([]int, error) { return r.intList("Bug") }

// AlsoWNPP returns the WNPP bugs closed with the removal.
func (r Removals) AlsoWNPP() ([]int, error) { return r.intList("Also-WNPP") }

// Sources returns the removed source packages.
func (r Removals) Sources() ([]RemovedPackage, error) { return r.packages("Sources") }

// Binaries returns the removed binary packages with their architectures.
func (r Removals) Binaries() ([]RemovedPackage, error) { return r.packages("Binaries") }

func (r Removals) intList(field string) ([]int, error) {
	var out []int
	for _, s := range strings.FieldsFunc(r.Value(field), func(c rune) bool { return c == ',' || c == ' ' || c == '\n' }) {
		n, err := strconv.Atoi(strings.TrimPrefix(s, "#"))
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", field)
		}
		out = append(out, n)
	}
	return out, nil
}

func (r Removals) packages(field string) ([]RemovedPackage, error) {
	var out []RemovedPackage
	for _, line := range strings.Split(r.Value(field), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := removedRe.FindStringSubmatch(line)
		if m == nil {
			return nil, errors.Newf("field %s: malformed entry %q", field, line)
		}
		p := RemovedPackage{Package: m[1], Version: m[2]}
		if m[3] != "" {
			p.Architectures = strings.FieldsFunc(m[3], func(c rune) bool { return c == ',' || c == ' ' })
		}
		out = append(out, p)
	}
	return out, nil
}
