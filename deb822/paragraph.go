package deb822

import (
	"bytes"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrInvalidValue is returned when a field value cannot be represented in a
// deb822 paragraph: it ends with a newline or contains an empty line.
var ErrInvalidValue = errors.New("deb822: invalid field value")

type field struct {
	name  string
	value string
}

// Paragraph is an ordered set of fields. Field names are looked up
// case-insensitively but keep the case they were first set with.
//
// Values follow the parsed representation: the first line is stripped, and
// continuation lines are kept verbatim (including their leading whitespace),
// separated by "\n". A value whose first line is empty starts with "\n".
type Paragraph struct {
	fields []field
	index  map[string]int
}

// NewParagraph returns an empty paragraph.
func NewParagraph() *Paragraph {
	return &Paragraph{index: make(map[string]int)}
}

func foldName(name string) string { return strings.ToLower(name) }

// Get returns the value of the named field and whether it is present.
func (p *Paragraph) Get(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	i, ok := p.index[foldName(name)]
	if !ok {
		return "", false
	}
	return p.fields[i].value, true
}

// Value returns the value of the named field, or "" if absent.
func (p *Paragraph) Value(name string) string {
	v, _ := p.Get(name)
	return v
}

// Has reports whether the named field is present.
func (p *Paragraph) Has(name string) bool {
	_, ok := p.Get(name)
	return ok
}

// Set assigns a field value. Existing fields keep their position and the
// case of their name; new fields are appended.
func (p *Paragraph) Set(name, value string) error {
	if err := ValidateValue(value); err != nil {
		return errors.Wrapf(err, "field %q", name)
	}
	p.set(name, value)
	return nil
}

// set assigns without validation; the decoder only produces valid values.
func (p *Paragraph) set(name, value string) {
	if p.index == nil {
		p.index = make(map[string]int)
	}
	key := foldName(name)
	if i, ok := p.index[key]; ok {
		p.fields[i].value = value
		return
	}
	p.index[key] = len(p.fields)
	p.fields = append(p.fields, field{name: name, value: value})
}

// Del removes the named field. It reports whether the field was present.
func (p *Paragraph) Del(name string) bool {
	key := foldName(name)
	i, ok := p.index[key]
	if !ok {
		return false
	}
	p.fields = append(p.fields[:i], p.fields[i+1:]...)
	delete(p.index, key)
	for j := i; j < len(p.fields); j++ {
		p.index[foldName(p.fields[j].name)] = j
	}
	return true
}

// Keys returns the field names in order.
func (p *Paragraph) Keys() []string {
	keys := make([]string, len(p.fields))
	for i, f := range p.fields {
		keys[i] = f.name
	}
	return keys
}

// Len returns the number of fields.
func (p *Paragraph) Len() int {
	if p == nil {
		return 0
	}
	return len(p.fields)
}

// Clone returns a deep copy of the paragraph.
func (p *Paragraph) Clone() *Paragraph {
	c := &Paragraph{
		fields: make([]field, len(p.fields)),
		index:  make(map[string]int, len(p.index)),
	}
	copy(c.fields, p.fields)
	for k, v := range p.index {
		c.index[k] = v
	}
	return c
}

// Equal reports whether both paragraphs hold the same fields and values.
// Field order and name case are ignored.
func (p *Paragraph) Equal(other *Paragraph) bool {
	if p.Len() != other.Len() {
		return false
	}
	for _, f := range p.fields {
		v, ok := other.Get(f.name)
		if !ok || v != f.value {
			return false
		}
	}
	return true
}

// WriteTo writes the paragraph in deb822 form, without the trailing blank
// line separating it from the next paragraph.
func (p *Paragraph) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	for _, f := range p.fields {
		if _, err := io.WriteString(cw, formatField(f.name, f.value)); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

// String returns the dumped paragraph.
func (p *Paragraph) String() string {
	var b bytes.Buffer
	p.WriteTo(&b)
	return b.String()
}

// ValidateValue checks that value can be stored in a field.
func ValidateValue(value string) error {
	if strings.HasSuffix(value, "\n") {
		return errors.Wrap(ErrInvalidValue, "value ends with a newline")
	}
	lines := strings.Split(value, "\n")
	for i, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			return errors.Wrapf(ErrInvalidValue, "line %d is empty", i+2)
		}
	}
	return nil
}

// formatField renders one field. Continuation lines that do not start with
// whitespace are indented with a single space.
func formatField(name, value string) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteString(":")
	lines := strings.Split(value, "\n")
	if lines[0] != "" {
		b.WriteString(" ")
		b.WriteString(lines[0])
	}
	b.WriteString("\n")
	for _, line := range lines[1:] {
		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			b.WriteString(" ")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// WriteParagraphs writes paragraphs separated by blank lines.
func WriteParagraphs(w io.Writer, paragraphs []*Paragraph) error {
	for i, p := range paragraphs {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := p.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

// countingWriter wraps an io.Writer and counts the bytes written.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
