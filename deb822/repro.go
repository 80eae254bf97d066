package deb822

import (
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// TokenKind classifies a line of deb822 text.
type TokenKind int

const (
	WhitespaceToken TokenKind = iota
	CommentToken
	FieldToken
	ContinuationToken
	ErrorToken
)

func (k TokenKind) String() string {
	switch k {
	case WhitespaceToken:
		return "whitespace"
	case CommentToken:
		return "comment"
	case FieldToken:
		return "field"
	case ContinuationToken:
		return "continuation"
	default:
		return "error"
	}
}

// Token is one line of input (or several merged whitespace lines).
// Concatenating the Text of all tokens yields the original input.
type Token struct {
	Kind TokenKind
	Text string
	Line int
}

// Field names are US-ASCII without controls, space and colon, and must not
// start with '#' or '-'.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#syntax-of-control-files
var reproFieldRe = regexp.MustCompile(`^([\x21\x22\x24-\x2C\x2F-\x39\x3B-\x7E][\x21-\x39\x3B-\x7E]*):`)

// Tokenize splits text into tokens. Consecutive whitespace lines form a
// single token.
func Tokenize(text string) []Token {
	var toks []Token
	for i, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		kind := classify(line)
		if kind == WhitespaceToken && len(toks) > 0 && toks[len(toks)-1].Kind == WhitespaceToken {
			toks[len(toks)-1].Text += line
			continue
		}
		toks = append(toks, Token{Kind: kind, Text: line, Line: i + 1})
	}
	return toks
}

func classify(line string) TokenKind {
	switch {
	case strings.TrimSpace(line) == "":
		return WhitespaceToken
	case line[0] == '#':
		return CommentToken
	case line[0] == ' ' || line[0] == '\t':
		return ContinuationToken
	case reproFieldRe.MatchString(line):
		return FieldToken
	default:
		return ErrorToken
	}
}

type element interface {
	text() string
}

type rawText string

func (r rawText) text() string { return string(r) }

// errorText is a line that could not be parsed.
type errorText string

func (e errorText) text() string { return string(e) }

type commentBlock []string

func (c commentBlock) text() string { return strings.Join(c, "") }

// Field is a field of a ReproParagraph together with the comment lines
// preceding it and any comment lines embedded in its value.
type Field struct {
	comments []string
	name     string
	lines    []string
}

// Name returns the field name as written.
func (f *Field) Name() string { return f.name }

// Comments returns the comment lines preceding the field, without the
// leading '#' and the line ending.
func (f *Field) Comments() []string {
	out := make([]string, len(f.comments))
	for i, c := range f.comments {
		out[i] = strings.TrimPrefix(trimEOL(c), "#")
	}
	return out
}

// Value returns the field value with the same conventions as Paragraph.
// Comment lines inside the value are dropped.
func (f *Field) Value() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(f.lines[0][len(f.name)+1:]))
	for _, line := range f.lines[1:] {
		if strings.HasPrefix(line, "#") {
			continue
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(line, " \t\r\n"))
	}
	return b.String()
}

func (f *Field) text() string {
	return strings.Join(f.comments, "") + strings.Join(f.lines, "")
}

func (f *Field) endsWithNewline() bool {
	return strings.HasSuffix(f.lines[len(f.lines)-1], "\n")
}

func (f *Field) ensureNewline() {
	if !f.endsWithNewline() {
		f.lines[len(f.lines)-1] += "\n"
	}
}

// File is a format preserving deb822 document.
type File struct {
	elems []element
}

// ParseFile reads a whole document from r.
//
// Unless AcceptErrorTokens is given, lines that cannot be parsed are
// reported as an error. With AcceptDuplicateFields(false), paragraphs with
// repeated fields are rejected.
func ParseFile(r io.Reader, opts ...Option) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading deb822 file")
	}
	return ParseFileString(string(data), opts...)
}

// ParseFileString is ParseFile on a string.
func ParseFileString(text string, opts ...Option) (*File, error) {
	o := newOptions(opts)
	f := buildFile(Tokenize(text))

	if !o.repro.acceptErrors {
		if e := f.firstError(); e != "" {
			return nil, errors.Newf("Syntax or Parse error on the line: \"%s\"", strings.ReplaceAll(e, "\n", `\n`))
		}
	}
	if !o.repro.acceptDuplicates {
		for no, p := range f.Paragraphs() {
			if dup := p.duplicate(); dup != "" {
				return nil, errors.Newf("Duplicate field %q in paragraph number %d", dup, no)
			}
		}
	}
	return f, nil
}

func buildFile(toks []Token) *File {
	f := &File{}
	var (
		para    *ReproParagraph
		cur     *Field
		pending []string
	)
	add := func(e element) {
		if para != nil {
			para.elems = append(para.elems, e)
			return
		}
		f.elems = append(f.elems, e)
	}
	flushComments := func() {
		if len(pending) > 0 {
			add(commentBlock(pending))
			pending = nil
		}
	}

	for _, tok := range toks {
		switch tok.Kind {
		case WhitespaceToken:
			flushComments()
			para, cur = nil, nil
			f.elems = append(f.elems, rawText(tok.Text))
		case CommentToken:
			pending = append(pending, tok.Text)
		case ContinuationToken:
			if cur == nil {
				flushComments()
				add(errorText(tok.Text))
				continue
			}
			cur.lines = append(cur.lines, pending...)
			cur.lines = append(cur.lines, tok.Text)
			pending = nil
		case FieldToken:
			if para == nil {
				para = &ReproParagraph{}
				f.elems = append(f.elems, para)
			}
			name := reproFieldRe.FindStringSubmatch(tok.Text)[1]
			cur = &Field{comments: pending, name: name, lines: []string{tok.Text}}
			pending = nil
			para.elems = append(para.elems, cur)
		case ErrorToken:
			flushComments()
			add(errorText(tok.Text))
			cur = nil
		}
	}
	flushComments()
	return f
}

// String returns the document text.
func (f *File) String() string {
	var b strings.Builder
	for _, e := range f.elems {
		b.WriteString(e.text())
	}
	return b.String()
}

// WriteTo writes the document text.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, f.String())
	return int64(n), err
}

// Paragraphs returns the paragraphs in document order.
func (f *File) Paragraphs() []*ReproParagraph {
	var out []*ReproParagraph
	for _, e := range f.elems {
		if p, ok := e.(*ReproParagraph); ok {
			out = append(out, p)
		}
	}
	return out
}

// ErrorLines returns the lines that could not be parsed.
func (f *File) ErrorLines() []string {
	var out []string
	for _, e := range f.elems {
		switch v := e.(type) {
		case errorText:
			out = append(out, string(v))
		case *ReproParagraph:
			out = append(out, v.errorLines()...)
		}
	}
	return out
}

func (f *File) firstError() string {
	if errs := f.ErrorLines(); len(errs) > 0 {
		return errs[0]
	}
	return ""
}

// IsValid reports whether the document has at least one paragraph, no
// unparsable lines and no duplicated fields.
func (f *File) IsValid() bool {
	paras := f.Paragraphs()
	if len(paras) == 0 || len(f.ErrorLines()) > 0 {
		return false
	}
	for _, p := range paras {
		if !p.IsValid() {
			return false
		}
	}
	return true
}

// AppendParagraph adds a paragraph holding the fields of p at the end of
// the document and returns it.
func (f *File) AppendParagraph(p *Paragraph) *ReproParagraph {
	if len(f.elems) > 0 {
		last := f.elems[len(f.elems)-1]
		switch v := last.(type) {
		case *ReproParagraph:
			v.ensureNewline()
			f.elems = append(f.elems, rawText("\n"))
		case rawText:
		default:
			if !strings.HasSuffix(last.text(), "\n") {
				f.elems = append(f.elems, rawText("\n"))
			}
			f.elems = append(f.elems, rawText("\n"))
		}
	}
	rp := &ReproParagraph{}
	for _, fl := range p.fields {
		rp.elems = append(rp.elems, newField(fl.name, fl.value))
	}
	f.elems = append(f.elems, rp)
	return rp
}

// RemoveParagraph removes rp and the separator following it.
func (f *File) RemoveParagraph(rp *ReproParagraph) bool {
	for i, e := range f.elems {
		if e != rp {
			continue
		}
		end := i + 1
		if end < len(f.elems) {
			if _, ok := f.elems[end].(rawText); ok {
				end++
			}
		}
		f.elems = append(f.elems[:i], f.elems[end:]...)
		return true
	}
	return false
}

// ReproParagraph is a paragraph of a File.
type ReproParagraph struct {
	elems []element
}

func (p *ReproParagraph) text() string {
	var b strings.Builder
	for _, e := range p.elems {
		b.WriteString(e.text())
	}
	return b.String()
}

// Fields returns every field, duplicates included.
func (p *ReproParagraph) Fields() []*Field {
	var out []*Field
	for _, e := range p.elems {
		if f, ok := e.(*Field); ok {
			out = append(out, f)
		}
	}
	return out
}

func (p *ReproParagraph) errorLines() []string {
	var out []string
	for _, e := range p.elems {
		if v, ok := e.(errorText); ok {
			out = append(out, string(v))
		}
	}
	return out
}

func (p *ReproParagraph) duplicate() string {
	seen := make(map[string]bool)
	for _, f := range p.Fields() {
		key := foldName(f.name)
		if seen[key] {
			return f.name
		}
		seen[key] = true
	}
	return ""
}

// IsValid reports whether the paragraph has no duplicated fields and no
// unparsable lines.
func (p *ReproParagraph) IsValid() bool {
	return p.duplicate() == "" && len(p.errorLines()) == 0
}

// Keys returns the distinct field names in order of first appearance.
func (p *ReproParagraph) Keys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, f := range p.Fields() {
		key := foldName(f.name)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, f.name)
		}
	}
	return keys
}

// Field returns the first field with the given name.
func (p *ReproParagraph) Field(name string) *Field {
	key := foldName(name)
	for _, f := range p.Fields() {
		if foldName(f.name) == key {
			return f
		}
	}
	return nil
}

// Get returns the value of the first field with the given name.
func (p *ReproParagraph) Get(name string) (string, bool) {
	f := p.Field(name)
	if f == nil {
		return "", false
	}
	return f.Value(), true
}

// Values returns the values of every field with the given name.
func (p *ReproParagraph) Values(name string) []string {
	key := foldName(name)
	var out []string
	for _, f := range p.Fields() {
		if foldName(f.name) == key {
			out = append(out, f.Value())
		}
	}
	return out
}

func newField(name, value string) *Field {
	lines := strings.SplitAfter(formatField(name, value), "\n")
	return &Field{name: name, lines: lines[:len(lines)-1]}
}

// Set replaces the value of a field. The comment preceding the first
// occurrence is kept and other occurrences are removed. Unknown fields are
// appended to the paragraph.
func (p *ReproParagraph) Set(name, value string) error {
	if err := ValidateValue(value); err != nil {
		return errors.Wrapf(err, "field %q", name)
	}
	key := foldName(name)
	var first *Field
	kept := p.elems[:0]
	for _, e := range p.elems {
		f, ok := e.(*Field)
		if ok && foldName(f.name) == key {
			if first != nil {
				continue
			}
			first = f
		}
		kept = append(kept, e)
	}
	p.elems = kept

	if first != nil {
		first.lines = newField(first.name, value).lines
		return nil
	}
	p.ensureNewline()
	p.elems = append(p.elems, newField(name, value))
	return nil
}

// ensureNewline terminates the last line of the paragraph.
func (p *ReproParagraph) ensureNewline() {
	if len(p.elems) == 0 {
		return
	}
	switch v := p.elems[len(p.elems)-1].(type) {
	case *Field:
		v.ensureNewline()
	case errorText:
		if !strings.HasSuffix(string(v), "\n") {
			p.elems[len(p.elems)-1] = v + "\n"
		}
	case commentBlock:
		if last := v[len(v)-1]; !strings.HasSuffix(last, "\n") {
			v[len(v)-1] = last + "\n"
		}
	}
}

// Remove deletes every field with the given name, with its comments.
func (p *ReproParagraph) Remove(name string) bool {
	key := foldName(name)
	removed := false
	kept := p.elems[:0]
	for _, e := range p.elems {
		if f, ok := e.(*Field); ok && foldName(f.name) == key {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	p.elems = kept
	return removed
}

// SortFields reorders fields using less on field names. The sort is stable
// so duplicated fields keep their relative order. Stray comments and error
// lines move after the fields.
func (p *ReproParagraph) SortFields(less func(a, b string) bool) {
	if less == nil {
		less = CanonicalFieldOrder
	}
	fields := p.Fields()
	sort.SliceStable(fields, func(i, j int) bool {
		return less(fields[i].name, fields[j].name)
	})
	var rest []element
	for _, e := range p.elems {
		if _, ok := e.(*Field); !ok {
			rest = append(rest, e)
		}
	}
	p.elems = p.elems[:0]
	for _, f := range fields {
		f.ensureNewline()
		p.elems = append(p.elems, f)
	}
	p.elems = append(p.elems, rest...)
	p.ensureNewline()
}

// CanonicalFieldOrder sorts Source and Package first, then other fields
// alphabetically, ignoring case.
func CanonicalFieldOrder(a, b string) bool {
	rank := func(n string) int {
		switch foldName(n) {
		case "source":
			return 0
		case "package":
			return 1
		}
		return 2
	}
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra < rb
	}
	return foldName(a) < foldName(b)
}

// ListSeparator selects how a field value is split into items.
type ListSeparator int

const (
	SpaceSeparated ListSeparator = iota
	CommaSeparated
)

// ValueList interprets a field as a list. Comments inside the value are
// ignored; empty items of comma lists are dropped.
func (p *ReproParagraph) ValueList(name string, sep ListSeparator) []string {
	v, ok := p.Get(name)
	if !ok {
		return nil
	}
	return splitValue(v, sep)
}

func splitValue(v string, sep ListSeparator) []string {
	if sep == SpaceSeparated {
		return strings.Fields(v)
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// SetList stores items as a single-line list.
func (p *ReproParagraph) SetList(name string, items []string, sep ListSeparator) error {
	joiner := " "
	if sep == CommaSeparated {
		joiner = ", "
	}
	return p.Set(name, strings.Join(items, joiner))
}

// AsParagraph returns a dictionary view. For duplicated fields the first
// value wins.
func (p *ReproParagraph) AsParagraph() *Paragraph {
	out := NewParagraph()
	for _, f := range p.Fields() {
		if !out.Has(f.name) {
			out.set(f.name, f.Value())
		}
	}
	return out
}
