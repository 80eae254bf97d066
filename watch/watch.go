// Package watch parses and writes debian/watch files, as read by uscan.
//
// Reference: uscan(1)
package watch

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultVersion is the file format version written by New.
const DefaultVersion = 4

// ErrMissingVersion is returned when the first line is not a version line.
var ErrMissingVersion = errors.New("watch: missing version line")

// Substitutions are the uscan variables replaced by Expand. "@PACKAGE@"
// is replaced by the package name.
var Substitutions = map[string]string{
	"@ANY_VERSION@":   `[-_]?(\d[\-+\.:\~\da-zA-Z]*)`,
	"@ARCHIVE_EXT@":   `(?i)\.(?:tar\.xz|tar\.bz2|tar\.gz|zip|tgz|tbz|txz)`,
	"@SIGNATURE_EXT@": `(?i)\.(?:tar\.xz|tar\.bz2|tar\.gz|zip|tgz|tbz|txz)\.(?:asc|pgp|gpg|sig|sign)`,
	"@DEB_EXT@":       `[\+~](debian|dfsg|ds|deb)(\.)?(\d+)?$`,
}

// Expand replaces the uscan variables in text.
func Expand(text, pkg string) string {
	text = strings.ReplaceAll(text, "@PACKAGE@", pkg)
	for k, v := range Substitutions {
		text = strings.ReplaceAll(text, k, v)
	}
	return text
}

// Watch is one entry of a watch file.
type Watch struct {
	URL             string
	MatchingPattern string
	// Version is the version policy ("debian", "same", "ignore", ...) or
	// an explicit version.
	Version string
	Script  string
	Options []string
}

// Option returns the value of a "name=value" entry option. Options
// without a value report an empty value.
func (w Watch) Option(name string) (string, bool) {
	return option(w.Options, name)
}

func option(opts []string, name string) (string, bool) {
	for _, o := range opts {
		k, v, _ := strings.Cut(o, "=")
		if strings.TrimSpace(k) == name {
			return v, true
		}
	}
	return "", false
}

// File is a parsed watch file.
type File struct {
	Version int
	// Options are the persistent options, applying to every entry.
	Options []string
	Entries []Watch
}

// New returns an empty file of DefaultVersion.
func New() *File {
	return &File{Version: DefaultVersion}
}

// Option returns the value of a persistent option.
func (f *File) Option(name string) (string, bool) {
	return option(f.Options, name)
}

var patternInURL = regexp.MustCompile(`/([^/]*\([^/]*\)[^/]*)$`)

// Parse reads a watch file. Input without any line returns a nil File.
func Parse(r io.Reader) (*File, error) {
	var (
		f       *File
		chunked []string
		lineNo  int
	)
	s := bufio.NewScanner(r)
	for s.Scan() {
		lineNo++
		line := strings.TrimRight(s.Text(), "\r")
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasSuffix(line, `\`) {
			chunked = append(chunked, line[:len(line)-1])
			continue
		}
		chunked = append(chunked, line)
		if f != nil && f.Version > 3 {
			for i := range chunked {
				chunked[i] = strings.TrimLeft(chunked[i], " \t")
			}
		}
		line = strings.Join(chunked, "")
		chunked = nil

		if f == nil {
			v, err := parseVersion(line)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
			f = &File{Version: v}
			continue
		}
		if err := f.parseLine(line); err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
	}
	if err := s.Err(); err != nil {
		return nil, errors.Wrap(err, "reading watch file")
	}
	return f, nil
}

func parseVersion(line string) (int, error) {
	if !strings.HasPrefix(line, "version") {
		return 0, ErrMissingVersion
	}
	key, value, ok := strings.Cut(line, "=")
	if !ok || strings.TrimSpace(key) != "version" {
		return 0, ErrMissingVersion
	}
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid version %q", value)
	}
	return v, nil
}

func (f *File) parseLine(line string) error {
	var opts []string
	if rest, ok := strings.CutPrefix(line, "opts="); ok {
		var optStr string
		if strings.HasPrefix(rest, `"`) {
			end := strings.Index(rest[1:], `"`)
			if end < 0 {
				return errors.Newf("watch: unmatched \" in %q", line)
			}
			optStr, line = rest[1:end+1], rest[end+2:]
		} else {
			optStr, line = splitFirst(rest)
		}
		opts = strings.Split(optStr, ",")
	}
	line = strings.TrimSpace(line)
	if line == "" {
		f.Options = append(f.Options, opts...)
		return nil
	}
	url, rest := splitFirst(line)
	var parts []string
	if m := patternInURL.FindStringSubmatch(url); m != nil {
		url = url[:len(url)-len(m[1])-1]
		parts = append([]string{m[1]}, splitN(rest, 2)...)
	} else {
		parts = splitN(rest, 3)
	}
	w := Watch{URL: url, Options: opts}
	fields := []*string{&w.MatchingPattern, &w.Version, &w.Script}
	for i, p := range parts {
		*fields[i] = p
	}
	f.Entries = append(f.Entries, w)
	return nil
}

// splitFirst splits s at the first run of whitespace.
func splitFirst(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}

// splitN splits s on whitespace into at most n fields, the last one
// holding the remainder.
func splitN(s string, n int) []string {
	var out []string
	s = strings.TrimSpace(s)
	for s != "" && len(out) < n-1 {
		var head string
		head, s = splitFirst(s)
		out = append(out, head)
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

// WriteTo dumps the file. The version line is omitted when Version is 0.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	if f.Version > 0 {
		fmt.Fprintf(&b, "version=%d\n", f.Version)
	}
	if len(f.Options) > 0 {
		b.WriteString("opts=" + strings.Join(f.Options, ",") + "\n")
	}
	for _, e := range f.Entries {
		if len(e.Options) > 0 {
			b.WriteString("opts=" + strings.Join(e.Options, ",") + " ")
		}
		b.WriteString(e.URL)
		for _, s := range []string{e.MatchingPattern, e.Version, e.Script} {
			if s != "" {
				b.WriteString(" " + s)
			}
		}
		b.WriteString("\n")
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
