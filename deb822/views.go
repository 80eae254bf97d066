package deb822

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/etnz/go-debian/version"
)

// Packages is a stanza of a Packages index or a binary control file.
type Packages struct{ *Paragraph }

// Sources is a stanza of a Sources index or a source control paragraph.
type Sources struct{ *Paragraph }

// Dsc is a Debian source control file.
type Dsc struct{ *Paragraph }

// Changes is a .changes upload description.
type Changes struct{ *Paragraph }

// Release is a Release or InRelease file.
type Release struct{ *Paragraph }

// Relations parses a relationship field.
func (p Packages) Relations(field string) Relations {
	return ParseRelations(p.Value(field))
}

// AllRelations returns every relationship field, keyed by lower-case
// name. Absent fields map to nil.
func (p Packages) AllRelations() map[string]Relations {
	return allRelations(p.Paragraph, PackagesRelationFields)
}

// Version parses the Version field.
func (p Packages) Version() (version.Version, error) {
	return paragraphVersion(p.Paragraph)
}

// SetVersion stores v in the Version field.
func (p Packages) SetVersion(v version.Version) error {
	return p.Set("Version", v.String())
}

// Relations parses a relationship field.
func (s Sources) Relations(field string) Relations {
	return ParseRelations(s.Value(field))
}

// AllRelations returns every source relationship field, keyed by
// lower-case name.
func (s Sources) AllRelations() map[string]Relations {
	return allRelations(s.Paragraph, SourcesRelationFields)
}

// Version parses the Version field.
func (s Sources) Version() (version.Version, error) {
	return paragraphVersion(s.Paragraph)
}

// Files parses the Files field.
func (s Sources) Files() ([]FileEntry, error) {
	return s.FileEntries("Files")
}

// Files parses the Files field.
func (d Dsc) Files() ([]FileEntry, error) {
	return d.FileEntries("Files")
}

// Checksums parses a Checksums-* field, e.g. "Sha256".
func (d Dsc) Checksums(algo string) ([]FileEntry, error) {
	return d.FileEntries("Checksums-" + algo)
}

// Files parses the Files field.
func (c Changes) Files() ([]FileEntry, error) {
	return c.FileEntries("Files")
}

// Checksums parses a Checksums-* field, e.g. "Sha256".
func (c Changes) Checksums(algo string) ([]FileEntry, error) {
	return c.FileEntries("Checksums-" + algo)
}

// PoolPath returns the directory holding the source package in an archive
// pool, e.g. "pool/main/libf/libfoo". The component is taken from the
// section of the first file.
func (c Changes) PoolPath() (string, error) {
	files, err := c.Files()
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", errors.New("changes file lists no files")
	}
	component := "main"
	if before, _, found := strings.Cut(files[0].Section, "/"); found {
		component = before
	}
	source := strings.Fields(c.Value("Source"))
	if len(source) == 0 {
		return "", errors.New("changes file has no Source")
	}
	return "pool/" + component + "/" + PoolPrefix(source[0]) + "/" + source[0], nil
}

// PoolPrefix returns the pool subdirectory of a source package: its first
// letter, or the first four for "lib" packages.
func PoolPrefix(source string) string {
	if strings.HasPrefix(source, "lib") && len(source) > 3 {
		return source[:4]
	}
	if source == "" {
		return ""
	}
	return source[:1]
}

// Checksums parses an index checksum field: "MD5Sum", "SHA1", "SHA256"
// or "SHA512".
func (r Release) Checksums(algo string) ([]FileEntry, error) {
	return r.FileEntries(algo)
}

// Architectures returns the space separated Architectures field.
func (r Release) Architectures() []string {
	return r.List("Architectures", SpaceSeparated)
}

// Components returns the space separated Components field.
func (r Release) Components() []string {
	return r.List("Components", SpaceSeparated)
}

func allRelations(p *Paragraph, fields []string) map[string]Relations {
	out := make(map[string]Relations, len(fields))
	for _, f := range fields {
		out[strings.ToLower(f)] = ParseRelations(p.Value(f))
	}
	return out
}

func paragraphVersion(p *Paragraph) (version.Version, error) {
	v, ok := p.Get("Version")
	if !ok {
		return version.Version{}, errors.New("no Version field")
	}
	return version.Parse(v)
}
