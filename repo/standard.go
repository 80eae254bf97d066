package repo

import (
	"io"
	"path"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/cockroachdb/errors"
	"github.com/etnz/go-debian/deb822"
)

// ErrIncompletePart is returned when a part of a StandardRepository does
// not name exactly one component and one architecture.
var ErrIncompletePart = errors.New("repo: part needs one component and one architecture")

// StandardRepository is a hierarchical repository with a dists/ tree of
// indices and a pool/ tree of packages. Each part holds the packages of
// one component and architecture, given by its Info.
//
// Reference: https://wiki.debian.org/DebianRepository/Format#Debian_Repository_Format
type StandardRepository struct {
	Info   ArchiveInfo
	Signer *openpgp.Entity
	Parts  []*Repository
}

// source returns the source package name of an index entry.
func (e *indexEntry) source() string {
	src := e.control.Value("Source")
	if i := strings.IndexByte(src, '('); i >= 0 {
		src = src[:i]
	}
	if src = strings.TrimSpace(src); src != "" {
		return src
	}
	return e.name()
}

// poolPath is pool/<component>/<prefix>/<source>/<file>.
func poolPath(component string, e *indexEntry) string {
	src := e.source()
	return path.Join("pool", component, deb822.PoolPrefix(src), src, e.debFilename())
}

// Files returns the pool files, then for each part its Packages indices
// under dists/<codename>/<component>/binary-<arch>/, then the Release
// files of the distribution.
func (r *StandardRepository) Files() ([]File, error) {
	if r.Info.Codename == "" {
		return nil, errors.New("repo: standard repository needs a codename")
	}
	dist := path.Join("dists", r.Info.Codename)
	pooled := make(map[string]bool)
	var pool, indices []File
	for _, part := range r.Parts {
		comp, arch := part.Info.Components, part.Info.Architectures
		if comp == "" || arch == "" || strings.ContainsAny(comp+arch, " \t") {
			return nil, errors.Wrapf(ErrIncompletePart, "component %q architecture %q", comp, arch)
		}
		index, err := part.entries(func(e *indexEntry) string { return poolPath(comp, e) })
		if err != nil {
			return nil, err
		}
		for _, e := range index {
			if e.stanza == nil && !pooled[e.filename] {
				pooled[e.filename] = true
				pool = append(pool, File{e.filename, e.content})
			}
		}
		files, err := indexFiles(path.Join(dist, comp, "binary-"+arch), index)
		if err != nil {
			return nil, err
		}
		indices = append(indices, files...)
	}
	signed, err := signedFiles(r.Info, r.Signer, dist, indices)
	if err != nil {
		return nil, err
	}
	return append(append(pool, indices...), signed...), nil
}

// WriteTo writes the repository to w as an uncompressed tar archive.
func (r *StandardRepository) WriteTo(w io.Writer) (int64, error) {
	files, err := r.Files()
	if err != nil {
		return 0, err
	}
	return writeTar(w, files, false)
}

// WriteToDir writes the repository files into dir.
func (r *StandardRepository) WriteToDir(dir string) error {
	files, err := r.Files()
	if err != nil {
		return err
	}
	return writeDir(dir, files)
}
