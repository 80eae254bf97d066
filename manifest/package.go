package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/etnz/go-debian/debfile"
)

// Package is the definition of a binary package: an optional .deb to
// patch, control fields to set, and files to add. String values are
// rendered as text/template templates against Defines.
type Package struct {
	// Input is an optional .deb to start from.
	Input string `json:"input" yaml:"input"`
	// Defines are template variables local to this package.
	Defines map[string]string `json:"defines" yaml:"defines"`
	// Meta sets or overrides control fields.
	Meta map[string]string `json:"meta" yaml:"meta"`
	// Injects are files added to the payload.
	Injects []File `json:"injects" yaml:"injects"`
	// Scripts are maintainer scripts; Dst names the script ("postinst").
	Scripts []File `json:"scripts" yaml:"scripts"`
	// ControlFiles are extra control members; Dst is their name.
	ControlFiles []File `json:"control_files" yaml:"control_files"`

	filePath string
	engine   *templateEngine
}

// File is a resource added to a package.
type File struct {
	// Src is relative to the definition file.
	Src string `json:"src" yaml:"src"`
	Dst string `json:"dst" yaml:"dst"`
	// Raw disables template rendering of the content.
	Raw bool `json:"raw" yaml:"raw"`
	// Mode is octal, "0644" when empty.
	Mode     string `json:"mode" yaml:"mode"`
	Conffile bool   `json:"conffile" yaml:"conffile"`
}

// LoadPackage reads a package definition (.yaml, .yml or .json).
func LoadPackage(path string) (*Package, error) {
	var p Package
	if err := decodeFile(path, &p); err != nil {
		return nil, err
	}
	p.filePath = path
	p.engine = newTemplateEngine(p.Defines)
	return &p, nil
}

func (p *Package) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(p.filePath), path)
}

func (p *Package) loadResource(path string, raw bool) (string, error) {
	resolved := p.resolve(path)
	content, err := os.ReadFile(resolved)
	if err != nil {
		return "", errors.Wrapf(err, "reading resource %s", resolved)
	}
	if raw {
		return string(content), nil
	}
	return p.engine.render(path, string(content))
}

// file renders the Src and Dst of f and loads its content.
func (p *Package) file(field string, i int, f File) (dst, content string, err error) {
	src, err := p.engine.render(fmt.Sprintf("%s[%d].src", field, i), f.Src)
	if err != nil {
		return "", "", err
	}
	dst, err = p.engine.render(fmt.Sprintf("%s[%d].dst", field, i), f.Dst)
	if err != nil {
		return "", "", err
	}
	content, err = p.loadResource(src, f.Raw)
	return dst, content, err
}

// passthrough reports whether the definition only names an input .deb.
func (p *Package) passthrough() bool {
	return p.Input != "" && len(p.Meta) == 0 && len(p.Injects) == 0 && len(p.Scripts) == 0 && len(p.ControlFiles) == 0
}

// Build returns the package described by the definition.
func (p *Package) Build() (*debfile.Package, error) {
	if p.engine == nil {
		p.engine = newTemplateEngine(p.Defines)
	}
	input, err := p.engine.render("input", p.Input)
	if err != nil {
		return nil, errors.Wrap(err, "rendering input")
	}

	pkg := &debfile.Package{Metadata: debfile.Metadata{ExtraFields: make(map[string]string)}}
	if input != "" {
		f, err := os.Open(p.resolve(input))
		if err != nil {
			return nil, errors.Wrap(err, "opening input package")
		}
		pkg, err = debfile.NewPackage(f)
		f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "parsing input package %s", input)
		}
	}

	for _, k := range sortedKeys(p.Meta) {
		val, err := p.engine.render("meta."+k, p.Meta[k])
		if err != nil {
			return nil, errors.Wrapf(err, "rendering meta %s", k)
		}
		pkg.Set(k, val)
	}

	for i, f := range p.Injects {
		dst, content, err := p.file("injects", i, f)
		if err != nil {
			return nil, err
		}
		var mode int64 = 0644
		if f.Mode != "" {
			modeStr, err := p.engine.render(fmt.Sprintf("injects[%d].mode", i), f.Mode)
			if err != nil {
				return nil, err
			}
			if mode, err = strconv.ParseInt(modeStr, 8, 64); err != nil {
				return nil, errors.Wrapf(err, "parsing mode %s", modeStr)
			}
		}
		pkg.Files = append(pkg.Files, debfile.File{DestPath: dst, Mode: mode, Body: content, IsConf: f.Conffile})
	}

	for i, f := range p.Scripts {
		dst, content, err := p.file("scripts", i, f)
		if err != nil {
			return nil, err
		}
		if !pkg.Scripts.SetScript(debfile.ControlFile(dst), content) {
			return nil, errors.Newf("unknown script dst: %s", dst)
		}
	}

	for i, f := range p.ControlFiles {
		dst, content, err := p.file("control_files", i, f)
		if err != nil {
			return nil, err
		}
		if pkg.ExtraControlFiles == nil {
			pkg.ExtraControlFiles = make(map[string]string)
		}
		pkg.ExtraControlFiles[dst] = content
	}
	return pkg, nil
}
