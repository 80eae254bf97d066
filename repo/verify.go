package repo

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/cockroachdb/errors"
	"github.com/etnz/go-debian/deb822"
)

// ErrChecksumMismatch is returned by VerifyDir when a listed file does not
// match its Release checksum.
var ErrChecksumMismatch = errors.New("repo: checksum mismatch")

// ErrUnsafePath is returned by VerifyDir for a Release entry that is
// absolute or leaves the repository directory.
var ErrUnsafePath = errors.New("repo: unsafe path in Release")

// VerifyInRelease checks the signature of an InRelease file and returns
// its parsed content.
func VerifyInRelease(data []byte, keyring openpgp.KeyRing) (deb822.Release, *deb822.SignatureInfo, error) {
	body, info, err := deb822.VerifySigned(data, keyring)
	if err != nil {
		return deb822.Release{}, nil, err
	}
	p, err := deb822.ParseOne(string(body))
	if err != nil {
		return deb822.Release{}, nil, errors.Wrap(err, "parsing InRelease")
	}
	return deb822.Release{Paragraph: p}, info, nil
}

// Verification is the outcome of VerifyDir.
type Verification struct {
	Info      ArchiveInfo
	Signature *deb822.SignatureInfo
	// Checked lists the files whose SHA256 sum matched.
	Checked []string
	// Missing lists files named in Release but absent from the directory.
	Missing []string
}

// VerifyDir checks the InRelease file found in dir (dists/<codename> for
// hierarchical repositories) against keyring, and the SHA256 sum of every
// file it lists.
func VerifyDir(dir string, keyring openpgp.KeyRing) (*Verification, error) {
	data, err := os.ReadFile(filepath.Join(dir, "InRelease"))
	if err != nil {
		return nil, errors.Wrap(err, "reading InRelease")
	}
	release, sig, err := VerifyInRelease(data, keyring)
	if err != nil {
		return nil, err
	}
	info := archiveInfo(release.Paragraph)
	entries, err := release.Checksums(fieldSHA256)
	if err != nil {
		return nil, err
	}
	v := &Verification{Info: info, Signature: sig}
	for _, e := range entries {
		if !safePath(e.Name) {
			return v, errors.Wrapf(ErrUnsafePath, "%q", e.Name)
		}
		content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(e.Name)))
		if os.IsNotExist(err) {
			v.Missing = append(v.Missing, e.Name)
			continue
		}
		if err != nil {
			return nil, err
		}
		if int64(len(content)) != e.Size || sha256Hex(content) != e.Checksum {
			return v, errors.Wrapf(ErrChecksumMismatch, "%s", e.Name)
		}
		v.Checked = append(v.Checked, e.Name)
	}
	return v, nil
}

// safePath reports whether name is a relative slash-separated path that
// stays below its root.
func safePath(name string) bool {
	if name == "" || path.IsAbs(name) || strings.Contains(name, "\\") {
		return false
	}
	for _, elem := range strings.Split(name, "/") {
		if elem == ".." {
			return false
		}
	}
	return true
}
