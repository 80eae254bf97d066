package repo

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// ParseError locates a malformed line in a Packages or Sources file.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// PackageField is one field of a record, in file order.
type PackageField struct {
	Name  string
	Value string
}

var (
	recordFieldRe        = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_-]+):(?:\s*(.*?))?\s*$`)
	recordContinuationRe = regexp.MustCompile(`^\s+(?:\.|(\S.*?)\s*)$`)
)

// PackageFile reads the records of a Packages or Sources file one at a
// time. Unlike the deb822 decoder it keeps duplicate fields and field
// order, and any malformed line is an error.
type PackageFile struct {
	name   string
	r      *bufio.Reader
	closer io.Closer
	line   int
	next   string
	eof    bool
	err    error
}

// NewPackageFile reads records from r. name is used in error messages.
func NewPackageFile(name string, r io.Reader) *PackageFile {
	f := &PackageFile{name: name, r: bufio.NewReader(r)}
	f.advance()
	return f
}

// OpenPackageFile reads records from the named file. The file is closed
// when Next returns an error, io.EOF included.
func OpenPackageFile(path string) (*PackageFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening package file")
	}
	f := NewPackageFile(path, file)
	f.closer = file
	return f, nil
}

func (f *PackageFile) advance() {
	if f.err != nil {
		return
	}
	line, err := f.r.ReadString('\n')
	if err != nil && err != io.EOF {
		f.err = errors.Wrapf(err, "%s: reading line %d", f.name, f.line+1)
		return
	}
	if line == "" {
		f.eof = true
		f.next = ""
		return
	}
	f.line++
	f.next = strings.TrimRight(line, "\r\n")
}

func (f *PackageFile) syntax(msg string) error {
	f.err = &ParseError{File: f.name, Line: f.line, Msg: msg}
	return f.err
}

// Next returns the fields of the next record, or io.EOF after the last.
func (f *PackageFile) Next() (fields []PackageField, err error) {
	defer func() {
		if err != nil && f.closer != nil {
			f.closer.Close()
			f.closer = nil
		}
	}()
	for {
		if f.err != nil {
			return nil, f.err
		}
		if f.eof {
			if len(fields) > 0 {
				return fields, nil
			}
			f.err = io.EOF
			return nil, io.EOF
		}
		if strings.Trim(f.next, " \t") == "" {
			if len(fields) == 0 {
				return nil, f.syntax("expected package record")
			}
			f.advance()
			return fields, nil
		}
		m := recordFieldRe.FindStringSubmatch(f.next)
		if m == nil {
			return nil, f.syntax("expected package field")
		}
		field := PackageField{Name: m[1], Value: m[2]}
		for {
			f.advance()
			if f.err != nil || f.eof {
				break
			}
			c := recordContinuationRe.FindStringSubmatch(f.next)
			if c == nil {
				break
			}
			field.Value += "\n" + c[1]
		}
		fields = append(fields, field)
	}
}
