// Package substvars reads and writes debian/*.substvars files.
//
// Each line assigns a variable with "name=value", or "name?=value" for a
// value used only when the variable is not set elsewhere.
//
// Reference: deb-substvars(5)
package substvars

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// Operator is the assignment operator of a variable.
type Operator string

const (
	Assign        Operator = "="
	AssignDefault Operator = "?="
)

var (
	// ErrNoPath is returned by Save when the file was not loaded from a path.
	ErrNoPath = errors.New("substvars: no path to save to")
	// ErrInvalidOperator is returned for operators other than "=" and "?=".
	ErrInvalidOperator = errors.New("substvars: operator must be \"=\" or \"?=\"")
)

// Var is a variable value with its operator.
type Var struct {
	Value    string
	Operator Operator
}

func (o Operator) valid() bool { return o == Assign || o == AssignDefault }

// Substvars is an ordered set of variables.
type Substvars struct {
	path  string
	names []string
	vars  map[string]Var
}

// New returns an empty set not bound to any path.
func New() *Substvars {
	return &Substvars{vars: make(map[string]Var)}
}

// maxLineSize bounds a single substvars line.
const maxLineSize = 16 * 1024 * 1024

var lineRe = regexp.MustCompile(`^(\w[-:0-9A-Za-z]*)(\?)?=(.*)$`)

// Load reads the substvars file at path. With missingOK a missing file
// yields an empty set. The set remembers path for Save either way.
func Load(path string, missingOK bool) (*Substvars, error) {
	f, err := os.Open(path)
	if err != nil {
		if missingOK && errors.Is(err, os.ErrNotExist) {
			s := New()
			s.path = path
			return s, nil
		}
		return nil, errors.Wrap(err, "opening substvars")
	}
	defer f.Close()
	s, err := Read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	s.path = path
	return s, nil
}

// Read parses substvars content. Comments, blank lines and lines that are
// not assignments are ignored.
func Read(r io.Reader) (*Substvars, error) {
	s := New()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, "#") {
			continue
		}
		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		op := Assign
		if m[2] != "" {
			op = AssignDefault
		}
		s.put(m[1], Var{Value: m[3], Operator: op})
	}
	return s, sc.Err()
}

// Path returns the file the set is saved to, or "".
func (s *Substvars) Path() string { return s.path }

// SetPath binds the set to a file for Save.
func (s *Substvars) SetPath(path string) { s.path = path }

func (s *Substvars) put(name string, v Var) {
	if _, ok := s.vars[name]; !ok {
		s.names = append(s.names, name)
	}
	s.vars[name] = v
}

// Get returns the value of a variable.
func (s *Substvars) Get(name string) (string, bool) {
	v, ok := s.vars[name]
	return v.Value, ok
}

// Var returns a variable with its operator.
func (s *Substvars) Var(name string) (Var, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Has reports whether name is set.
func (s *Substvars) Has(name string) bool {
	_, ok := s.vars[name]
	return ok
}

// Set assigns value to name, keeping the operator of an existing variable.
func (s *Substvars) Set(name, value string) {
	v, ok := s.vars[name]
	if !ok {
		v.Operator = Assign
	}
	v.Value = value
	s.put(name, v)
}

// SetVar assigns a variable with an explicit operator.
func (s *Substvars) SetVar(name string, v Var) error {
	if !v.Operator.valid() {
		return errors.Wrapf(ErrInvalidOperator, "variable %s: got %q", name, v.Operator)
	}
	s.put(name, v)
	return nil
}

// SetOperator changes the operator of an existing variable.
func (s *Substvars) SetOperator(name string, op Operator) error {
	v, ok := s.vars[name]
	if !ok {
		return errors.Newf("substvars: variable %s is not set", name)
	}
	v.Operator = op
	return s.SetVar(name, v)
}

// Del removes a variable and reports whether it was set.
func (s *Substvars) Del(name string) bool {
	if _, ok := s.vars[name]; !ok {
		return false
	}
	delete(s.vars, name)
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i], s.names[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the variable names in insertion order.
func (s *Substvars) Keys() []string { return append([]string(nil), s.names...) }

// Len returns the number of variables.
func (s *Substvars) Len() int { return len(s.names) }

// AddDependency merges dep into the comma separated relation list held by
// name, creating it if needed. The result is sorted and exact duplicates
// are dropped.
func (s *Substvars) AddDependency(name, dep string) {
	v, ok := s.vars[name]
	if !ok {
		v.Operator = Assign
	}
	seen := map[string]bool{}
	var deps []string
	for _, d := range append(strings.Split(v.Value, ","), dep) {
		d = strings.TrimSpace(d)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		deps = append(deps, d)
	}
	sort.Strings(deps)
	v.Value = strings.Join(deps, ", ")
	s.put(name, v)
}

// Equal reports whether both sets hold the same variables with the same
// operators. Order and path are ignored.
func (s *Substvars) Equal(o *Substvars) bool {
	if o == nil || len(s.vars) != len(o.vars) {
		return false
	}
	for k, v := range s.vars {
		if ov, ok := o.vars[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// WriteTo writes the variables in insertion order.
func (s *Substvars) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	for _, name := range s.names {
		v := s.vars[name]
		fmt.Fprintf(&buf, "%s%s%s\n", name, v.Operator, v.Value)
	}
	return buf.WriteTo(w)
}

func (s *Substvars) String() string {
	var b strings.Builder
	s.WriteTo(&b)
	return b.String()
}

// Save writes the set back to its path.
func (s *Substvars) Save() error {
	if s.path == "" {
		return ErrNoPath
	}
	return errors.Wrap(os.WriteFile(s.path, []byte(s.String()), 0o644), "saving substvars")
}
