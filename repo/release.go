package repo

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/etnz/go-debian/deb822"
)

// ArchiveInfo holds the metadata written to the Release file. Empty
// fields are omitted.
//
// Reference: https://wiki.debian.org/DebianRepository/Format#Release_file
type ArchiveInfo struct {
	Origin   string `json:"origin,omitempty" yaml:"origin,omitempty" toml:"origin,omitempty"`
	Label    string `json:"label,omitempty" yaml:"label,omitempty" toml:"label,omitempty"`
	Suite    string `json:"suite,omitempty" yaml:"suite,omitempty" toml:"suite,omitempty"`
	Version  string `json:"version,omitempty" yaml:"version,omitempty" toml:"version,omitempty"`
	Codename string `json:"codename,omitempty" yaml:"codename,omitempty" toml:"codename,omitempty"`
	// Date defaults to the time of writing, formatted as RFC1123Z in UTC.
	Date string `json:"date,omitempty" yaml:"date,omitempty" toml:"date,omitempty"`
	// ValidUntil uses the same format as Date.
	ValidUntil string `json:"valid_until,omitempty" yaml:"valid_until,omitempty" toml:"valid_until,omitempty"`
	// Architectures and Components are space separated lists.
	Architectures string `json:"architectures,omitempty" yaml:"architectures,omitempty" toml:"architectures,omitempty"`
	Components    string `json:"components,omitempty" yaml:"components,omitempty" toml:"components,omitempty"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	// NotAutomatic, ButAutomaticUpgrades and AcquireByHash take "yes" or
	// "no".
	NotAutomatic         string `json:"not_automatic,omitempty" yaml:"not_automatic,omitempty" toml:"not_automatic,omitempty"`
	ButAutomaticUpgrades string `json:"but_automatic_upgrades,omitempty" yaml:"but_automatic_upgrades,omitempty" toml:"but_automatic_upgrades,omitempty"`
	AcquireByHash        string `json:"acquire_by_hash,omitempty" yaml:"acquire_by_hash,omitempty" toml:"acquire_by_hash,omitempty"`
}

// releaseFields maps Release field names to their ArchiveInfo storage, in
// output order.
func (info *ArchiveInfo) releaseFields() []struct {
	name  string
	value *string
} {
	return []struct {
		name  string
		value *string
	}{
		{"Origin", &info.Origin},
		{"Label", &info.Label},
		{"Suite", &info.Suite},
		{"Version", &info.Version},
		{"Codename", &info.Codename},
		{"Date", &info.Date},
		{"Valid-Until", &info.ValidUntil},
		{"Architectures", &info.Architectures},
		{"Components", &info.Components},
		{"Description", &info.Description},
		{"NotAutomatic", &info.NotAutomatic},
		{"ButAutomaticUpgrades", &info.ButAutomaticUpgrades},
		{"Acquire-By-Hash", &info.AcquireByHash},
	}
}

// File is a repository file, with its path relative to the repository
// root.
type File struct {
	Path    string
	Content []byte
}

// Checksum fields written to Release files.
const (
	fieldMD5Sum = "MD5Sum"
	fieldSHA256 = "SHA256"
)

func md5Hex(b []byte) string {
	h := md5.Sum(b)
	return hex.EncodeToString(h[:])
}

func sha256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// releaseParagraph renders info and the checksums of files.
func releaseParagraph(info ArchiveInfo, files []File, now time.Time) (*deb822.Paragraph, error) {
	if info.Date == "" {
		info.Date = now.UTC().Format(time.RFC1123Z)
	}
	p := deb822.NewParagraph()
	for _, f := range info.releaseFields() {
		if *f.value == "" {
			continue
		}
		if err := p.Set(f.name, *f.value); err != nil {
			return nil, errors.Wrap(err, "Release")
		}
	}
	md5s := make([]deb822.FileEntry, len(files))
	sha256s := make([]deb822.FileEntry, len(files))
	for i, f := range files {
		size := int64(len(f.Content))
		md5s[i] = deb822.FileEntry{Checksum: md5Hex(f.Content), Size: size, Name: f.Path}
		sha256s[i] = deb822.FileEntry{Checksum: sha256Hex(f.Content), Size: size, Name: f.Path}
	}
	if err := p.SetFileEntries(fieldMD5Sum, md5s); err != nil {
		return nil, err
	}
	if err := p.SetFileEntries(fieldSHA256, sha256s); err != nil {
		return nil, err
	}
	return p, nil
}

// generateReleaseFile returns the content of a Release file.
func generateReleaseFile(info ArchiveInfo, files []File, now time.Time) ([]byte, error) {
	p, err := releaseParagraph(info, files, now)
	if err != nil {
		return nil, err
	}
	return []byte(p.String()), nil
}

// parseReleaseFile reads the ArchiveInfo fields of a Release or InRelease
// file. Checksum fields are ignored.
func parseReleaseFile(content []byte) (ArchiveInfo, error) {
	body, _, _ := deb822.SplitSigned(content)
	p, err := deb822.ParseOne(string(body))
	if err != nil {
		return ArchiveInfo{}, errors.Wrap(err, "parsing Release")
	}
	return archiveInfo(p), nil
}

// archiveInfo reads the Release fields of p.
func archiveInfo(p *deb822.Paragraph) ArchiveInfo {
	var info ArchiveInfo
	for _, f := range info.releaseFields() {
		*f.value = p.Value(f.name)
	}
	return info
}
