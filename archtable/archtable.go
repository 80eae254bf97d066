// Package archtable answers architecture questions the way dpkg does, using
// the dpkg tuple and cpu tables.
//
// Reference: dpkg-architecture(1) and /usr/share/dpkg/tupletable.
package archtable

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultDir is where dpkg installs its tables.
const DefaultDir = "/usr/share/dpkg"

// ErrMixedRestrictions is returned by IsConcerned when positive and negated
// restrictions are mixed without allowing it.
var ErrMixedRestrictions = errors.New("archtable: there must be consistently only negated or positive restrictions")

// Tuple is a dpkg architecture tuple.
type Tuple struct {
	ABI, LibC, OS, CPU string
}

func (t Tuple) String() string {
	return t.ABI + "-" + t.LibC + "-" + t.OS + "-" + t.CPU
}

// Contains reports whether arch belongs to t, where "any" components act
// as wildcards.
func (t Tuple) Contains(arch Tuple) bool {
	eq := func(pat, v string) bool { return pat == "any" || pat == v }
	return eq(t.ABI, arch.ABI) && eq(t.LibC, arch.LibC) && eq(t.OS, arch.OS) && eq(t.CPU, arch.CPU)
}

// Table maps dpkg architecture names to tuples.
type Table struct {
	arch2tuple map[string]Tuple
}

// Load reads tupletable and cputable from dir.
func Load(dir string) (*Table, error) {
	tf, err := os.Open(filepath.Join(dir, "tupletable"))
	if err != nil {
		return nil, errors.Wrap(err, "opening tuple table")
	}
	defer tf.Close()
	cf, err := os.Open(filepath.Join(dir, "cputable"))
	if err != nil {
		return nil, errors.Wrap(err, "opening cpu table")
	}
	defer cf.Close()
	return Parse(tf, cf)
}

// Parse builds a table from the content of tupletable and cputable.
// Tuple rows containing <cpu> are expanded for every cpu.
func Parse(tupletable, cputable io.Reader) (*Table, error) {
	cpuRows, err := readRows(cputable)
	if err != nil {
		return nil, errors.Wrap(err, "reading cpu table")
	}
	var cpus []string
	for _, row := range cpuRows {
		cpus = append(cpus, row[0])
	}
	tupleRows, err := readRows(tupletable)
	if err != nil {
		return nil, errors.Wrap(err, "reading tuple table")
	}
	t := &Table{arch2tuple: make(map[string]Tuple)}
	for _, row := range tupleRows {
		if len(row) < 2 {
			return nil, errors.Newf("archtable: malformed tuple row %q", strings.Join(row, " "))
		}
		tuple, arch := row[0], row[1]
		if !strings.Contains(arch, "<cpu>") {
			if err := t.add(arch, tuple); err != nil {
				return nil, err
			}
			continue
		}
		for _, cpu := range cpus {
			if err := t.add(strings.ReplaceAll(arch, "<cpu>", cpu), strings.ReplaceAll(tuple, "<cpu>", cpu)); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func (t *Table) add(arch, tuple string) error {
	parts := strings.SplitN(tuple, "-", 4)
	if len(parts) != 4 {
		return errors.Newf("archtable: invalid tuple %q for %s", tuple, arch)
	}
	t.arch2tuple[arch] = Tuple{ABI: parts[0], LibC: parts[1], OS: parts[2], CPU: parts[3]}
	return nil
}

func readRows(r io.Reader) ([][]string, error) {
	var rows [][]string
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rows = append(rows, strings.Fields(line))
	}
	return rows, s.Err()
}

// Lookup returns the tuple of a dpkg architecture name. A "linux-" prefix
// is accepted as the long form of Linux architectures.
func (t *Table) Lookup(arch string) (Tuple, bool) {
	tuple, ok := t.arch2tuple[strings.TrimPrefix(arch, "linux-")]
	return tuple, ok
}

// Architectures returns the number of known architecture names.
func (t *Table) Architectures() int { return len(t.arch2tuple) }

func (t *Table) wildcard(w string) (Tuple, bool) {
	parts := strings.SplitN(w, "-", 4)
	for _, p := range parts {
		if p != "any" {
			continue
		}
		for len(parts) < 4 {
			parts = append([]string{"any"}, parts...)
		}
		return Tuple{ABI: parts[0], LibC: parts[1], OS: parts[2], CPU: parts[3]}, true
	}
	return t.Lookup(w)
}

// Matches reports whether arch is matched by alias, which is either an
// architecture name or a wildcard such as "linux-any" or "any-arm".
// Following dpkg, "any" matches anything and identical strings always
// match.
func (t *Table) Matches(arch, alias string) bool {
	if alias == "any" || arch == alias {
		return true
	}
	w, ok := t.wildcard(alias)
	if !ok {
		return false
	}
	a, ok := t.Lookup(arch)
	if !ok {
		return false
	}
	return w.Contains(a)
}

// Equal reports whether two architecture names denote the same
// architecture, e.g. "amd64" and "linux-amd64".
func (t *Table) Equal(a, b string) bool {
	if a == b {
		return true
	}
	ta, ok := t.Lookup(a)
	if !ok {
		return false
	}
	tb, ok := t.Lookup(b)
	return ok && ta == tb
}

// IsWildcard reports whether w is an architecture wildcard. Like dpkg, any
// name with an "any" component qualifies, known or not.
func (t *Table) IsWildcard(w string) bool {
	if w == "all" {
		return false
	}
	for _, p := range strings.SplitN(w, "-", 4) {
		if p == "any" {
			return true
		}
	}
	return false
}

// IsConcerned evaluates an architecture restriction list such as
// "[amd64 i386]" or "[!hurd-any]" for arch. The first matching restriction
// decides. When nothing matches, arch is concerned only by a list made of
// negations.
func (t *Table) IsConcerned(arch string, restrictions []string, allowMixing bool) (bool, error) {
	var positive, negative bool
	for _, r := range restrictions {
		if strings.HasPrefix(r, "!") {
			negative = true
		} else {
			positive = true
		}
	}
	if positive && negative && !allowMixing {
		return false, ErrMixedRestrictions
	}
	for _, r := range restrictions {
		negated := strings.HasPrefix(r, "!")
		if t.Matches(arch, strings.TrimPrefix(r, "!")) {
			return !negated, nil
		}
	}
	return negative && !positive, nil
}
