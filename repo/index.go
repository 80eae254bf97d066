package repo

import (
	"bytes"
	"sort"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/etnz/go-debian/deb822"
	"github.com/etnz/go-debian/debfile"
	"github.com/etnz/go-debian/version"
)

// Fields added to control stanzas in a Packages index.
//
// Reference: https://wiki.debian.org/DebianRepository/Format#Packages_Indices
const (
	fieldFilename = "Filename"
	fieldSize     = "Size"
	fieldMD5sum   = "MD5sum"
	fieldSHA1     = "SHA1"
)

// indexEntry is one stanza of a Packages index.
type indexEntry struct {
	control  *deb822.Paragraph
	filename string
	content  []byte
	// stanza is set for index-only entries and written as is.
	stanza *deb822.Paragraph
}

// newIndexEntry reads the control file of a .deb.
func newIndexEntry(content []byte, filename string) (*indexEntry, error) {
	d, err := debfile.Open(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	control, err := d.ControlParagraph()
	if err != nil {
		return nil, err
	}
	return &indexEntry{control: control, filename: filename, content: content}, nil
}

func (e *indexEntry) name() string    { return e.control.Value(string(debfile.FieldPackage)) }
func (e *indexEntry) version() string { return e.control.Value(string(debfile.FieldVersion)) }
func (e *indexEntry) arch() string    { return e.control.Value(string(debfile.FieldArchitecture)) }

// debFilename is the conventional name of the entry's .deb.
func (e *indexEntry) debFilename() string {
	v := e.version()
	if parsed, err := version.Parse(v); err == nil {
		parsed.Epoch = ""
		v = parsed.String()
	}
	return e.name() + "_" + v + "_" + e.arch() + ".deb"
}

func (e *indexEntry) paragraph() (*deb822.Paragraph, error) {
	if e.stanza != nil {
		return e.stanza.Clone(), nil
	}
	p := e.control.Clone()
	for _, f := range []struct{ name, value string }{
		{fieldFilename, e.filename},
		{fieldSize, strconv.Itoa(len(e.content))},
		{fieldMD5sum, md5Hex(e.content)},
		{fieldSHA256, sha256Hex(e.content)},
	} {
		if err := p.Set(f.name, f.value); err != nil {
			return nil, errors.Wrapf(err, "index entry %s", e.filename)
		}
	}
	return p, nil
}

// sortEntries orders entries by name, then version, then architecture.
func sortEntries(index []*indexEntry) {
	sort.SliceStable(index, func(i, j int) bool {
		a, b := index[i], index[j]
		if a.name() != b.name() {
			return a.name() < b.name()
		}
		if a.version() != b.version() {
			c, err := version.Compare(a.version(), b.version())
			if err != nil {
				return a.version() < b.version()
			}
			return c < 0
		}
		return a.arch() < b.arch()
	})
}

// generatePackagesFile renders the index, each stanza followed by a blank
// line.
func generatePackagesFile(index []*indexEntry) ([]byte, error) {
	var b bytes.Buffer
	for _, e := range index {
		p, err := e.paragraph()
		if err != nil {
			return nil, err
		}
		p.WriteTo(&b)
		b.WriteString("\n")
	}
	return b.Bytes(), nil
}

// parsePackagesIndex returns the packages described by a Packages index,
// without the index-only fields, and the stanzas they were read from.
func parsePackagesIndex(content []byte) ([]*debfile.Package, []*deb822.Paragraph, error) {
	paragraphs, err := deb822.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, nil, errors.Wrap(err, "parsing Packages")
	}
	var pkgs []*debfile.Package
	for _, stanza := range paragraphs {
		para := stanza.Clone()
		for _, f := range []string{fieldFilename, fieldSize, fieldMD5sum, fieldSHA1, fieldSHA256} {
			para.Del(f)
		}
		pkgs = append(pkgs, debfile.FromParagraph(para))
	}
	return pkgs, paragraphs, nil
}
