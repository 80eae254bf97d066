package deb822

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ChecksumFields are the fields holding one file per line.
var ChecksumFields = []string{
	"Files", "Checksums-Sha1", "Checksums-Sha256", "Checksums-Sha512",
	"MD5Sum", "SHA1", "SHA256", "SHA512",
}

// FileEntry is a line of a checksum field. Section and Priority are only
// present in the Files field of .changes files.
type FileEntry struct {
	Checksum string
	Size     int64
	Section  string
	Priority string
	Name     string
}

// ParseFileEntries parses the value of a checksum field. Lines have either
// three columns (checksum size name) or five (checksum size section
// priority name).
func ParseFileEntries(value string) ([]FileEntry, error) {
	var out []FileEntry
	for i, line := range strings.Split(value, "\n") {
		cols := strings.Fields(line)
		if len(cols) == 0 {
			continue
		}
		var e FileEntry
		switch len(cols) {
		case 3:
			e = FileEntry{Checksum: cols[0], Name: cols[2]}
		case 5:
			e = FileEntry{Checksum: cols[0], Section: cols[2], Priority: cols[3], Name: cols[4]}
		default:
			return nil, errors.Newf("line %d: expected 3 or 5 columns, got %d", i, len(cols))
		}
		size, err := strconv.ParseInt(cols[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: size", i)
		}
		e.Size = size
		out = append(out, e)
	}
	return out, nil
}

// FormatFileEntries renders entries as a field value starting on the line
// after the field name.
func FormatFileEntries(entries []FileEntry) (string, error) {
	var b strings.Builder
	for _, e := range entries {
		cols := []string{e.Checksum, strconv.FormatInt(e.Size, 10)}
		if e.Section != "" || e.Priority != "" {
			cols = append(cols, e.Section, e.Priority)
		}
		cols = append(cols, e.Name)
		for _, c := range cols {
			if c == "" || strings.ContainsAny(c, " \t\n") {
				return "", errors.Wrapf(ErrInvalidValue, "file entry %q: column %q", e.Name, c)
			}
		}
		b.WriteString("\n ")
		b.WriteString(strings.Join(cols, " "))
	}
	return b.String(), nil
}

// FileEntries parses the named checksum field. A missing field yields nil.
func (p *Paragraph) FileEntries(name string) ([]FileEntry, error) {
	v, ok := p.Get(name)
	if !ok {
		return nil, nil
	}
	entries, err := ParseFileEntries(v)
	if err != nil {
		return nil, errors.Wrapf(err, "field %s", name)
	}
	return entries, nil
}

// SetFileEntries replaces the named checksum field.
func (p *Paragraph) SetFileEntries(name string, entries []FileEntry) error {
	v, err := FormatFileEntries(entries)
	if err != nil {
		return errors.Wrapf(err, "field %s", name)
	}
	return p.Set(name, v)
}

// List splits a field value into items.
func (p *Paragraph) List(name string, sep ListSeparator) []string {
	v, ok := p.Get(name)
	if !ok {
		return nil
	}
	return splitValue(v, sep)
}
