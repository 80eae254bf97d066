// Package copyright reads and writes machine-readable debian/copyright
// files (DEP-5).
//
// The document is kept in its format preserving form: formatting a parsed
// file without changes reproduces the input byte for byte, comments and
// field order included.
//
// Reference: https://www.debian.org/doc/packaging-manuals/copyright-format/1.0/
package copyright

import (
	"io"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/etnz/go-debian/deb822"
)

// CurrentFormat is the Format URL of DEP-5 version 1.0.
const CurrentFormat = "https://www.debian.org/doc/packaging-manuals/copyright-format/1.0/"

var (
	// ErrNotMachineReadable is returned when the first paragraph has no
	// Format field.
	ErrNotMachineReadable = errors.New("copyright: not a machine-readable debian/copyright")
	// ErrFormat is returned for a Files paragraph missing a required field.
	ErrFormat = errors.New("copyright: invalid machine-readable format")
	// ErrRestrictedField is returned by Set for fields that have a typed
	// accessor.
	ErrRestrictedField = errors.New("copyright: field must be set through its accessor")
)

type options struct {
	strict bool
	logger *slog.Logger
}

// Option configures Parse.
type Option interface {
	apply(*options)
}

type funcOption struct {
	f func(*options)
}

func (fo *funcOption) apply(o *options) {
	fo.f(o)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{f: f}
}

// WithStrict controls whether duplicated fields and Files paragraphs
// missing Copyright or License are errors. Parsing is strict by default;
// otherwise such problems are logged.
func WithStrict(strict bool) Option {
	return newFuncOption(func(o *options) {
		o.strict = strict
	})
}

// WithLogger sets the logger receiving warnings.
// defaults to slog.Default()
func WithLogger(l *slog.Logger) Option {
	return newFuncOption(func(o *options) {
		if l != nil {
			o.logger = l
		}
	})
}

// Copyright is a debian/copyright document.
type Copyright struct {
	file     *deb822.File
	header   *Header
	files    []*FilesParagraph
	licenses []*LicenseParagraph
}

// New returns a document holding only a header with the current format.
func New() *Copyright {
	f := &deb822.File{}
	p := deb822.NewParagraph()
	p.Set("Format", CurrentFormat)
	return &Copyright{file: f, header: &Header{p: f.AppendParagraph(p)}}
}

// Parse reads a debian/copyright document.
func Parse(r io.Reader, opts ...Option) (*Copyright, error) {
	o := options{strict: true, logger: slog.Default()}
	for _, opt := range opts {
		opt.apply(&o)
	}
	f, err := deb822.ParseFile(r, deb822.AcceptErrorTokens(true), deb822.AcceptDuplicateFields(!o.strict))
	if err != nil {
		return nil, err
	}
	paras := f.Paragraphs()
	if len(paras) == 0 {
		return nil, ErrNotMachineReadable
	}
	h, err := newHeader(paras[0], o.logger)
	if err != nil {
		return nil, err
	}
	c := &Copyright{file: f, header: h}
	for i, p := range paras[1:] {
		switch {
		case p.Field("Files") != nil:
			if err := checkRequired(p, "Files", "Copyright", "License"); err != nil {
				if o.strict {
					return nil, errors.Wrapf(err, "paragraph %d", i+1)
				}
				o.logger.Warn("invalid Files paragraph", "paragraph", i+1, "error", err)
			}
			c.files = append(c.files, newFilesParagraph(p))
		case p.Field("License") != nil:
			c.licenses = append(c.licenses, &LicenseParagraph{p: p})
		default:
			o.logger.Warn(`non-header paragraph has neither "Files" nor "License" fields`, "paragraph", i+1)
		}
	}
	return c, nil
}

// ParseString parses a document held in s.
func ParseString(s string, opts ...Option) (*Copyright, error) {
	return Parse(strings.NewReader(s), opts...)
}

func checkRequired(p *deb822.ReproParagraph, names ...string) error {
	for _, n := range names {
		if p.Field(n) == nil {
			return errors.Wrapf(ErrFormat, "%q field required", n)
		}
	}
	return nil
}

// Header returns the header paragraph.
func (c *Copyright) Header() *Header { return c.header }

// FilesParagraphs returns the Files paragraphs in document order.
func (c *Copyright) FilesParagraphs() []*FilesParagraph { return c.files }

// LicenseParagraphs returns the stand-alone License paragraphs.
func (c *Copyright) LicenseParagraphs() []*LicenseParagraph { return c.licenses }

// FindFilesParagraph returns the Files paragraph governing path, or nil.
// When several paragraphs match, the last one wins.
func (c *Copyright) FindFilesParagraph(path string) *FilesParagraph {
	var found *FilesParagraph
	for _, fp := range c.files {
		if fp.Matches(path) {
			found = fp
		}
	}
	return found
}

// AddFilesParagraph appends fp to the document. fp is rebound to the
// document's copy.
func (c *Copyright) AddFilesParagraph(fp *FilesParagraph) {
	fp.p = c.file.AppendParagraph(fp.p.AsParagraph())
	c.files = append(c.files, fp)
}

// AddLicenseParagraph appends lp to the document.
func (c *Copyright) AddLicenseParagraph(lp *LicenseParagraph) {
	lp.p = c.file.AppendParagraph(lp.p.AsParagraph())
	c.licenses = append(c.licenses, lp)
}

// String returns the document text.
func (c *Copyright) String() string { return c.file.String() }

// WriteTo writes the document text.
func (c *Copyright) WriteTo(w io.Writer) (int64, error) { return c.file.WriteTo(w) }

// standalone returns a paragraph not attached to any document yet.
func standalone(p *deb822.Paragraph) *deb822.ReproParagraph {
	return (&deb822.File{}).AppendParagraph(p)
}
