package repo

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/cockroachdb/errors"
	"github.com/ulikunitz/xz"
	"golang.org/x/sync/errgroup"

	"github.com/etnz/go-debian/deb822"
	"github.com/etnz/go-debian/debfile"
	"github.com/etnz/go-debian/version"
)

// ErrDuplicatePackage is returned by Append when a different package with
// the same name, version and architecture is already present.
var ErrDuplicatePackage = errors.New("repo: package already exists")

// Repository is a collection of packages assembled into a flat APT
// repository.
//
// Reference: https://wiki.debian.org/DebianRepository/Format#Flat_Repository_Format
type Repository struct {
	Info     ArchiveInfo
	Packages []*debfile.Package
	// Signer, when set, signs InRelease; its public key is published as
	// public.gpg and public.asc.
	Signer *openpgp.Entity
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// debs holds the files of packages added with AppendDeb or read from
	// disk; they are published unchanged instead of being rebuilt.
	debs map[*debfile.Package][]byte
	// stanzas holds the index stanza of packages listed in a Packages
	// index without a .deb; no file is published for them.
	stanzas map[*debfile.Package]*deb822.Paragraph
}

// Deb is a .deb file and the package it holds.
type Deb struct {
	Package *debfile.Package
	Content []byte
}

// ReadDeb parses the .deb in content.
func ReadDeb(content []byte) (*Deb, error) {
	pkg, err := debfile.NewPackage(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	return &Deb{Package: pkg, Content: content}, nil
}

func (r *Repository) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func sameKey(p *debfile.Package, name, ver, arch string) bool {
	return p.Metadata.Package == name && p.Metadata.Version == ver && p.Metadata.Architecture == arch
}

// Get returns the package with the given name, version and architecture,
// or nil.
func (r *Repository) Get(name, ver, arch string) *debfile.Package {
	for _, pkg := range r.Packages {
		if sameKey(pkg, name, ver, arch) {
			return pkg
		}
	}
	return nil
}

// Append adds pkg, which is built when the repository is written. If a
// package with the same key exists, it is returned; the error is nil when
// both are equal and ErrDuplicatePackage otherwise.
func (r *Repository) Append(pkg *debfile.Package) (*debfile.Package, error) {
	return r.appendPackage(pkg, nil)
}

// AppendDeb is Append for a package file, which is published as is.
// Two files with the same key are equal only when their bytes are.
func (r *Repository) AppendDeb(d *Deb) (*debfile.Package, error) {
	return r.appendPackage(d.Package, d.Content)
}

func (r *Repository) appendPackage(pkg *debfile.Package, content []byte) (*debfile.Package, error) {
	m := pkg.Metadata
	if existing := r.Get(m.Package, m.Version, m.Architecture); existing != nil {
		if r.same(existing, pkg, content) {
			return existing, nil
		}
		return existing, errors.Wrapf(ErrDuplicatePackage, "%s %s for %s", m.Package, m.Version, m.Architecture)
	}
	r.Packages = append(r.Packages, pkg)
	r.track(pkg, content, nil)
	return nil, nil
}

// same reports whether existing and pkg, read from content when not nil,
// are the same package.
func (r *Repository) same(existing, pkg *debfile.Package, content []byte) bool {
	if content != nil {
		if raw, ok := r.debs[existing]; ok {
			return bytes.Equal(raw, content)
		}
		if stanza, ok := r.stanzas[existing]; ok {
			return stanza.Value(fieldSHA256) == sha256Hex(content)
		}
	}
	return existing.Equal(pkg)
}

func (r *Repository) track(pkg *debfile.Package, content []byte, stanza *deb822.Paragraph) {
	if content != nil {
		if r.debs == nil {
			r.debs = make(map[*debfile.Package][]byte)
		}
		r.debs[pkg] = content
	}
	if stanza != nil {
		if r.stanzas == nil {
			r.stanzas = make(map[*debfile.Package]*deb822.Paragraph)
		}
		r.stanzas[pkg] = stanza
	}
}

// AddOverwrite adds pkg, replacing any package with the same key.
func (r *Repository) AddOverwrite(pkg *debfile.Package) {
	r.addOverwrite(pkg, nil)
}

// AddOverwriteDeb is AddOverwrite for a package file.
func (r *Repository) AddOverwriteDeb(d *Deb) {
	r.addOverwrite(d.Package, d.Content)
}

func (r *Repository) addOverwrite(pkg *debfile.Package, content []byte) {
	m := pkg.Metadata
	defer r.track(pkg, content, nil)
	for i, p := range r.Packages {
		if sameKey(p, m.Package, m.Version, m.Architecture) {
			delete(r.debs, p)
			delete(r.stanzas, p)
			r.Packages[i] = pkg
			return
		}
	}
	r.Packages = append(r.Packages, pkg)
}

// PackagesByUpstream returns the packages matching name, upstream version
// and architecture, most recent first.
func (r *Repository) PackagesByUpstream(name, upstream, arch string) []*debfile.Package {
	var matches []*debfile.Package
	for _, p := range r.Packages {
		if p.Metadata.Package == name && p.Metadata.Architecture == arch && p.UpstreamVersion() == upstream {
			matches = append(matches, p)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		c, err := version.Compare(matches[i].Metadata.Version, matches[j].Metadata.Version)
		if err != nil {
			return matches[i].Metadata.Version > matches[j].Metadata.Version
		}
		return c > 0
	})
	return matches
}

// entries returns the index entries of the packages, in package order.
// Packages without a file are built concurrently; index-only packages keep
// their stanza and have no content. filename maps an entry to its
// repository path.
func (r *Repository) entries(filename func(*indexEntry) string) ([]*indexEntry, error) {
	index := make([]*indexEntry, len(r.Packages))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, pkg := range r.Packages {
		if stanza, ok := r.stanzas[pkg]; ok {
			index[i] = &indexEntry{control: stanza, filename: stanza.Value(fieldFilename), stanza: stanza}
			continue
		}
		g.Go(func() error {
			content, ok := r.debs[pkg]
			if !ok {
				var buf bytes.Buffer
				if _, err := pkg.WriteTo(&buf); err != nil {
					return errors.Wrapf(err, "building %s", pkg.Metadata.Package)
				}
				content = buf.Bytes()
			}
			e, err := newIndexEntry(content, "")
			if err != nil {
				return errors.Wrapf(err, "reading %s", pkg.Metadata.Package)
			}
			e.filename = filename(e)
			index[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return index, nil
}

// indexFiles renders Packages in its plain, gzip and xz forms, named
// under dir.
func indexFiles(dir string, index []*indexEntry) ([]File, error) {
	sortEntries(index)
	plain, err := generatePackagesFile(index)
	if err != nil {
		return nil, err
	}
	gz, err := gzipBytes(plain)
	if err != nil {
		return nil, err
	}
	xzc, err := xzBytes(plain)
	if err != nil {
		return nil, err
	}
	return []File{
		{path.Join(dir, "Packages"), plain},
		{path.Join(dir, "Packages.gz"), gz},
		{path.Join(dir, "Packages.xz"), xzc},
	}, nil
}

func gzipBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, errors.Wrap(err, "gzip")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "gzip")
	}
	return buf.Bytes(), nil
}

func xzBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, errors.Wrap(err, "xz")
	}
	if _, err := w.Write(b); err != nil {
		return nil, errors.Wrap(err, "xz")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "xz")
	}
	return buf.Bytes(), nil
}

// signedFiles returns Release, and with a signer InRelease and the public
// keys. releaseDir prefixes Release and InRelease.
func signedFiles(info ArchiveInfo, signer *openpgp.Entity, releaseDir string, indices []File) ([]File, error) {
	listed := make([]File, len(indices))
	for i, f := range indices {
		rel := strings.TrimPrefix(f.Path, releaseDir+"/")
		listed[i] = File{rel, f.Content}
	}
	release, err := generateReleaseFile(info, listed, time.Now())
	if err != nil {
		return nil, err
	}
	out := []File{{path.Join(releaseDir, "Release"), release}}
	if signer == nil {
		return out, nil
	}
	inRelease, err := signBytes(release, signer)
	if err != nil {
		return nil, errors.Wrap(err, "signing InRelease")
	}
	out = append(out, File{path.Join(releaseDir, "InRelease"), inRelease})
	gpg, err := PublicKey(signer, false)
	if err != nil {
		return nil, err
	}
	asc, err := PublicKey(signer, true)
	if err != nil {
		return nil, err
	}
	return append(out, File{"public.gpg", gpg}, File{"public.asc", asc}), nil
}

// Files returns every file of the repository, in writing order: the .deb
// files of packages that have one, the Packages indices, Release, and
// when signed InRelease, public.gpg and public.asc.
func (r *Repository) Files() ([]File, error) {
	index, err := r.entries((*indexEntry).debFilename)
	if err != nil {
		return nil, err
	}
	var out []File
	for _, e := range index {
		if e.stanza != nil {
			continue
		}
		r.logger().Debug("adding package", "file", e.filename, "size", len(e.content))
		out = append(out, File{e.filename, e.content})
	}
	indices, err := indexFiles("", index)
	if err != nil {
		return nil, err
	}
	signed, err := signedFiles(r.Info, r.Signer, "", indices)
	if err != nil {
		return nil, err
	}
	out = append(out, indices...)
	return append(out, signed...), nil
}

// WriteTo writes the repository to w as a tar.gz archive.
func (r *Repository) WriteTo(w io.Writer) (int64, error) {
	files, err := r.Files()
	if err != nil {
		return 0, err
	}
	return writeTar(w, files, true)
}

// WriteToDir writes the repository files into dir, creating it if needed.
func (r *Repository) WriteToDir(dir string) error {
	files, err := r.Files()
	if err != nil {
		return err
	}
	if err := writeDir(dir, files); err != nil {
		return err
	}
	r.logger().Info("repository written", "dir", dir, "packages", len(r.Packages), "signed", r.Signer != nil)
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

func writeTar(w io.Writer, files []File, compress bool) (int64, error) {
	cw := &countingWriter{w: w}
	var dst io.Writer = cw
	var gzw *gzip.Writer
	if compress {
		gzw = gzip.NewWriter(cw)
		dst = gzw
	}
	tw := tar.NewWriter(dst)
	now := time.Now()
	for _, f := range files {
		header := &tar.Header{
			Name:     f.Path,
			Size:     int64(len(f.Content)),
			Mode:     0644,
			ModTime:  now,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(header); err != nil {
			return cw.n, errors.Wrapf(err, "writing header for %s", f.Path)
		}
		if _, err := tw.Write(f.Content); err != nil {
			return cw.n, errors.Wrapf(err, "writing %s", f.Path)
		}
	}
	if err := tw.Close(); err != nil {
		return cw.n, err
	}
	if gzw != nil {
		if err := gzw.Close(); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

func writeDir(dir string, files []File) error {
	for _, f := range files {
		dest := filepath.Join(dir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return errors.Wrap(err, "creating directory")
		}
		if err := os.WriteFile(dest, f.Content, 0644); err != nil {
			return errors.Wrapf(err, "writing %s", f.Path)
		}
	}
	return nil
}

// loader accumulates the content of a flat repository.
type loader struct {
	repo     *Repository
	external []*debfile.Package
	stanzas  []*deb822.Paragraph
}

func (l *loader) add(name string, r io.Reader) error {
	switch {
	case name == "Release":
		content, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		info, err := parseReleaseFile(content)
		if err != nil {
			return err
		}
		l.repo.Info = info
	case name == "Packages":
		content, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		pkgs, stanzas, err := parsePackagesIndex(content)
		if err != nil {
			return err
		}
		l.external, l.stanzas = pkgs, stanzas
	case strings.HasSuffix(name, ".deb"):
		content, err := io.ReadAll(r)
		if err != nil {
			return errors.Wrapf(err, "reading %s", name)
		}
		d, err := ReadDeb(content)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", name)
		}
		l.repo.AddOverwriteDeb(d)
	}
	return nil
}

// done merges index entries that have no matching .deb.
func (l *loader) done() *Repository {
	for i, p := range l.external {
		m := p.Metadata
		if l.repo.Get(m.Package, m.Version, m.Architecture) == nil {
			l.repo.Packages = append(l.repo.Packages, p)
			l.repo.track(p, nil, l.stanzas[i])
		}
	}
	return l.repo
}

// NewRepository reads a repository from a tar.gz stream. The .deb files
// are kept byte for byte. Packages listed in the index without a .deb keep
// their index stanza and are not published as files.
func NewRepository(r io.Reader) (*Repository, error) {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "creating gzip reader")
	}
	defer gzr.Close()

	l := &loader{repo: &Repository{}}
	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading tar")
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		if err := l.add(strings.TrimPrefix(header.Name, "./"), tr); err != nil {
			return nil, err
		}
	}
	return l.done(), nil
}

// NewRepositoryFromDir reads a repository from the top level of dir.
func NewRepositoryFromDir(dir string) (*Repository, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	l := &loader{repo: &Repository{}}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		f, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		err = l.add(entry.Name(), f)
		f.Close()
		if err != nil {
			return nil, err
		}
	}
	return l.done(), nil
}
