// Package manifest builds packages and flat repositories from declarative
// YAML or JSON definitions.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/cockroachdb/errors"
	"go.yaml.in/yaml/v3"

	"github.com/etnz/go-debian/debfile"
	"github.com/etnz/go-debian/repo"
)

// Repository is the definition of a flat repository: where it lives, its
// Release fields, and the packages it holds.
type Repository struct {
	// Path is the output directory, relative to the definition file.
	Path string `json:"path" yaml:"path"`
	// Defines are template variables shared by every package.
	Defines map[string]string `json:"defines" yaml:"defines"`
	Info    repo.ArchiveInfo  `json:"info" yaml:"info"`
	// Packages lists package definitions or .deb files, relative to the
	// definition file.
	Packages []string `json:"packages" yaml:"packages"`

	filePath string
	engine   *templateEngine
}

// LoadRepository reads a repository definition (.yaml, .yml or .json).
func LoadRepository(path string) (*Repository, error) {
	var r Repository
	if err := decodeFile(path, &r); err != nil {
		return nil, err
	}
	if r.Path == "" {
		return nil, errors.Newf("%s: repository definition must specify 'path'", path)
	}
	r.filePath = path
	r.engine = newTemplateEngine(r.Defines)
	return &r, nil
}

func (r *Repository) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(r.filePath), path)
}

// Dir returns the output directory.
func (r *Repository) Dir() string { return r.resolve(r.Path) }

// LoadPackages reads every listed package definition. A .deb entry
// becomes a definition with that file as input.
func (r *Repository) LoadPackages() ([]*Package, error) {
	var pkgs []*Package
	for _, raw := range r.Packages {
		name, err := r.engine.render("packages", raw)
		if err != nil {
			return nil, errors.Wrapf(err, "rendering package path %q", raw)
		}
		path := r.resolve(name)
		if strings.HasSuffix(strings.ToLower(path), ".deb") {
			pkgs = append(pkgs, &Package{Input: path, filePath: path, engine: r.engine.sub(nil)})
			continue
		}
		p, err := LoadPackage(path)
		if err != nil {
			return nil, err
		}
		p.engine = r.engine.sub(p.Defines)
		pkgs = append(pkgs, p)
	}
	return pkgs, nil
}

// Compile builds every package and writes the repository to Dir. Packages
// already in Dir are kept; a built package conflicting with one of them is
// an error. Definitions that only name an input .deb publish that file.
func (r *Repository) Compile(signer *openpgp.Entity, l Listener) (*repo.Repository, error) {
	if l == nil {
		l = func(fmt.Stringer) {}
	}
	out, err := repo.NewRepositoryFromDir(r.Dir())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		out = &repo.Repository{}
	}
	out.Info = r.Info
	out.Signer = signer

	defs, err := r.LoadPackages()
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		pkg, existing, err := def.addTo(out)
		if err != nil {
			return nil, errors.Wrapf(err, "adding %s", def.filePath)
		}
		l(EventPackageBuilt{
			Definition:   def.filePath,
			Package:      pkg.Metadata.Package,
			Version:      pkg.Metadata.Version,
			Architecture: pkg.Metadata.Architecture,
			Existing:     existing != nil,
		})
	}
	if err := out.WriteToDir(r.Dir()); err != nil {
		return nil, err
	}
	l(EventRepositoryWritten{Path: r.Dir(), Packages: len(out.Packages), Signed: signer != nil})
	return out, nil
}

// addTo adds the package to r. A definition that only names an input
// .deb publishes that file unchanged; others are built.
func (p *Package) addTo(r *repo.Repository) (pkg, existing *debfile.Package, err error) {
	if p.passthrough() {
		if p.engine == nil {
			p.engine = newTemplateEngine(p.Defines)
		}
		input, err := p.engine.render("input", p.Input)
		if err != nil {
			return nil, nil, errors.Wrap(err, "rendering input")
		}
		content, err := os.ReadFile(p.resolve(input))
		if err != nil {
			return nil, nil, errors.Wrap(err, "reading input package")
		}
		d, err := repo.ReadDeb(content)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "parsing input package %s", input)
		}
		existing, err = r.AppendDeb(d)
		return d.Package, existing, err
	}
	pkg, err = p.Build()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "building %s", p.filePath)
	}
	existing, err = r.Append(pkg)
	return pkg, existing, err
}

// decodeFile parses JSON or YAML based on the file extension, rejecting
// unknown fields.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading definition")
	}
	r := bytes.NewReader(data)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		err = dec.Decode(v)
	default:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		err = dec.Decode(v)
	}
	return errors.Wrapf(err, "parsing %s", path)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
