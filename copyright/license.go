package copyright

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/etnz/go-debian/deb822"
)

// License is the value of a License field: a one line synopsis naming
// the license, optionally followed by its full text.
type License struct {
	Synopsis string
	Text     string
}

// NewLicense validates the synopsis.
func NewLicense(synopsis, text string) (License, error) {
	if strings.Contains(synopsis, "\n") {
		return License{}, errors.Wrap(ErrInvalidValue, "synopsis must be single line")
	}
	return License{Synopsis: synopsis, Text: text}, nil
}

// ParseLicense reads a License field value.
func ParseLicense(s string) License {
	lines := ParseMultilineAsLines(s)
	if len(lines) == 0 {
		return License{}
	}
	return License{Synopsis: lines[0], Text: strings.Join(lines[1:], "\n")}
}

// String formats the license as a field value.
func (l License) String() string {
	lines := []string{l.Synopsis}
	if l.Text != "" {
		lines = append(lines, strings.Split(l.Text, "\n")...)
	}
	return FormatMultilineLines(lines)
}

var licenseFields = []string{"License", "Files"}

// LicenseParagraph is a stand-alone License paragraph, referenced by
// synopsis from Files paragraphs.
type LicenseParagraph struct {
	p *deb822.ReproParagraph
}

// NewLicenseParagraph returns a paragraph holding l, to be added with
// Copyright.AddLicenseParagraph.
func NewLicenseParagraph(l License) (*LicenseParagraph, error) {
	p := deb822.NewParagraph()
	if err := p.Set("License", l.String()); err != nil {
		return nil, err
	}
	return &LicenseParagraph{p: standalone(p)}, nil
}

// License returns the license of the paragraph.
func (lp *LicenseParagraph) License() License { return ParseLicense(value(lp.p, "License")) }

// SetLicense replaces the license.
func (lp *LicenseParagraph) SetLicense(l License) error {
	if _, err := NewLicense(l.Synopsis, l.Text); err != nil {
		return err
	}
	return lp.p.Set("License", l.String())
}

// Comment returns the Comment field.
func (lp *LicenseParagraph) Comment() string { return value(lp.p, "Comment") }

// SetComment sets the Comment field; "" removes it.
func (lp *LicenseParagraph) SetComment(s string) error {
	if s == "" {
		lp.p.Remove("Comment")
		return nil
	}
	return lp.p.Set("Comment", s)
}

// Get returns any field of the paragraph.
func (lp *LicenseParagraph) Get(name string) (string, bool) { return lp.p.Get(name) }

// Set assigns a field without a typed accessor. Files cannot be added to
// a License paragraph.
func (lp *LicenseParagraph) Set(name, value string) error {
	return setUnrestricted(lp.p, licenseFields, name, value)
}
