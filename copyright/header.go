package copyright

import (
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/etnz/go-debian/deb822"
)

var headerFields = []string{"Format", "Upstream-Name", "Upstream-Contact", "License", "Files-Excluded", "Files-Included"}

// Header is the first paragraph of a debian/copyright document.
type Header struct {
	p *deb822.ReproParagraph
}

func newHeader(p *deb822.ReproParagraph, logger *slog.Logger) (*Header, error) {
	format, ok := p.Get("Format")
	if !ok {
		return nil, ErrNotMachineReadable
	}
	h := &Header{p: p}
	if fixed := fixFormat(format); fixed != format && fixed == CurrentFormat {
		logger.Warn("Fixing Format URL", "format", format)
		if err := p.Set("Format", fixed); err != nil {
			return nil, err
		}
	} else if format != CurrentFormat {
		logger.Warn("format not known", "format", format)
	}
	return h, nil
}

func fixFormat(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "http://") {
		s = "https://" + strings.TrimPrefix(s, "http://")
	}
	if !strings.HasSuffix(s, "/") {
		s += "/"
	}
	return s
}

// Format returns the Format URL.
func (h *Header) Format() string { return h.p.Field("Format").Value() }

// SetFormat replaces the Format URL.
func (h *Header) SetFormat(s string) error {
	if s == "" {
		return errors.Wrap(ErrInvalidValue, "value must not be empty")
	}
	return setSingleLine(h.p, "Format", s)
}

// KnownFormat reports whether the format is recognised.
func (h *Header) KnownFormat() bool { return h.Format() == CurrentFormat }

// UpstreamName returns the Upstream-Name field.
func (h *Header) UpstreamName() string { return value(h.p, "Upstream-Name") }

// SetUpstreamName sets Upstream-Name; "" removes it.
func (h *Header) SetUpstreamName(s string) error { return setSingleLine(h.p, "Upstream-Name", s) }

// UpstreamContact returns the line based Upstream-Contact field.
func (h *Header) UpstreamContact() []string { return LineBased.Parse(value(h.p, "Upstream-Contact")) }

// SetUpstreamContact sets Upstream-Contact; an empty list removes it.
func (h *Header) SetUpstreamContact(contacts []string) error {
	return setCodec(h.p, "Upstream-Contact", LineBased, contacts)
}

// Source returns the Source field.
func (h *Header) Source() string { return value(h.p, "Source") }

// Disclaimer returns the Disclaimer field.
func (h *Header) Disclaimer() string { return value(h.p, "Disclaimer") }

// Comment returns the Comment field.
func (h *Header) Comment() string { return value(h.p, "Comment") }

// Copyright returns the Copyright field.
func (h *Header) Copyright() string { return value(h.p, "Copyright") }

// License returns the License field of the header, if present.
func (h *Header) License() (License, bool) {
	v, ok := h.p.Get("License")
	if !ok {
		return License{}, false
	}
	return ParseLicense(v), true
}

// SetLicense sets the License field; nil removes it.
func (h *Header) SetLicense(l *License) error {
	if l == nil {
		h.p.Remove("License")
		return nil
	}
	return h.p.Set("License", l.String())
}

// FilesExcluded returns the space separated Files-Excluded patterns.
func (h *Header) FilesExcluded() []string { return SpaceSeparated.Parse(value(h.p, "Files-Excluded")) }

// FilesIncluded returns the space separated Files-Included patterns.
func (h *Header) FilesIncluded() []string { return SpaceSeparated.Parse(value(h.p, "Files-Included")) }

// SetFilesExcluded sets Files-Excluded; an empty list removes it.
func (h *Header) SetFilesExcluded(globs []string) error {
	return setCodec(h.p, "Files-Excluded", SpaceSeparated, globs)
}

// Get returns any header field.
func (h *Header) Get(name string) (string, bool) { return h.p.Get(name) }

// Set assigns a field without a typed accessor.
func (h *Header) Set(name, value string) error { return setUnrestricted(h.p, headerFields, name, value) }

func value(p *deb822.ReproParagraph, name string) string {
	v, _ := p.Get(name)
	return v
}

func setSingleLine(p *deb822.ReproParagraph, name, v string) error {
	if strings.Contains(v, "\n") {
		return errors.Wrapf(ErrInvalidValue, "%s: must be single line", name)
	}
	if v == "" {
		p.Remove(name)
		return nil
	}
	return p.Set(name, v)
}

func setCodec(p *deb822.ReproParagraph, name string, c Codec, items []string) error {
	v, err := c.Format(items)
	if err != nil {
		return errors.Wrapf(err, "field %s", name)
	}
	if v == "" {
		p.Remove(name)
		return nil
	}
	return p.Set(name, v)
}

func setUnrestricted(p *deb822.ReproParagraph, restricted []string, name, v string) error {
	for _, r := range restricted {
		if strings.EqualFold(r, name) {
			return errors.Wrapf(ErrRestrictedField, "%s", name)
		}
	}
	return p.Set(name, v)
}
