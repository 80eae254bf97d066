package copyright

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/etnz/go-debian/deb822"
)

var filesFields = []string{"Files", "License"}

// FilesParagraph states the copyright and license of the files matching
// its Files globs.
type FilesParagraph struct {
	p *deb822.ReproParagraph
	// re caches the compiled Files globs; nil means stale.
	re *regexp.Regexp
}

func newFilesParagraph(p *deb822.ReproParagraph) *FilesParagraph {
	return &FilesParagraph{p: p}
}

// NewFilesParagraph returns a paragraph to be added with
// Copyright.AddFilesParagraph.
func NewFilesParagraph(files []string, copyright string, l License) (*FilesParagraph, error) {
	if len(files) == 0 {
		return nil, errors.Wrapf(ErrFormat, "%q field required", "Files")
	}
	if copyright == "" {
		return nil, errors.Wrapf(ErrFormat, "%q field required", "Copyright")
	}
	fp := &FilesParagraph{p: standalone(deb822.NewParagraph())}
	if err := fp.SetFiles(files); err != nil {
		return nil, err
	}
	if err := fp.p.Set("Copyright", copyright); err != nil {
		return nil, err
	}
	if err := fp.SetLicense(l); err != nil {
		return nil, err
	}
	return fp, nil
}

// Files returns the glob patterns.
func (fp *FilesParagraph) Files() []string { return SpaceSeparated.Parse(value(fp.p, "Files")) }

// SetFiles replaces the glob patterns.
func (fp *FilesParagraph) SetFiles(globs []string) error {
	if len(globs) == 0 {
		return errors.Wrap(ErrInvalidValue, "Files must not be empty")
	}
	if _, err := GlobsToRegexp(globs); err != nil {
		return err
	}
	fp.re = nil
	return setCodec(fp.p, "Files", SpaceSeparated, globs)
}

// Copyright returns the Copyright field.
func (fp *FilesParagraph) Copyright() string { return value(fp.p, "Copyright") }

// SetCopyright replaces the Copyright field.
func (fp *FilesParagraph) SetCopyright(s string) error {
	if s == "" {
		return errors.Wrap(ErrInvalidValue, "Copyright must not be empty")
	}
	return fp.p.Set("Copyright", s)
}

// License returns the License field.
func (fp *FilesParagraph) License() License { return ParseLicense(value(fp.p, "License")) }

// SetLicense replaces the License field.
func (fp *FilesParagraph) SetLicense(l License) error {
	if l.Synopsis == "" {
		return errors.Wrap(ErrInvalidValue, "license synopsis must not be empty")
	}
	if _, err := NewLicense(l.Synopsis, l.Text); err != nil {
		return err
	}
	return fp.p.Set("License", l.String())
}

// Comment returns the Comment field.
func (fp *FilesParagraph) Comment() string { return value(fp.p, "Comment") }

// Get returns any field of the paragraph.
func (fp *FilesParagraph) Get(name string) (string, bool) { return fp.p.Get(name) }

// Set assigns a field without a typed accessor.
func (fp *FilesParagraph) Set(name, value string) error {
	return setUnrestricted(fp.p, filesFields, name, value)
}

// Matches reports whether path is covered by the Files globs. Invalid
// globs match nothing.
func (fp *FilesParagraph) Matches(path string) bool {
	if fp.re == nil {
		re, err := GlobsToRegexp(fp.Files())
		if err != nil {
			return false
		}
		fp.re = re
	}
	return fp.re.MatchString(path)
}

// GlobsToRegexp compiles Files globs into a regular expression matching
// whole paths. "*" matches any sequence including "/", "?" any single
// character; "\*", "\?" and "\\" escape them.
func GlobsToRegexp(globs []string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`^(?s:`)
	for i, glob := range globs {
		if i > 0 {
			b.WriteString("|")
		}
		for j := 0; j < len(glob); j++ {
			switch glob[j] {
			case '*':
				b.WriteString(".*")
			case '?':
				b.WriteString(".")
			case '\\':
				j++
				if j == len(glob) {
					return nil, errors.Wrap(ErrInvalidValue, "single backslash not allowed at end")
				}
				switch e := glob[j]; e {
				case '\\', '?', '*':
					b.WriteString(regexp.QuoteMeta(glob[j : j+1]))
				default:
					return nil, errors.Wrapf(ErrInvalidValue, `invalid escape sequence: \%c`, e)
				}
			default:
				b.WriteString(regexp.QuoteMeta(glob[j : j+1]))
			}
		}
	}
	b.WriteString(`)\z`)
	return regexp.Compile(b.String())
}
