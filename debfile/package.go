package debfile

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/blakesmith/ar"
	"github.com/cockroachdb/errors"
	"github.com/ulikunitz/xz"

	"github.com/etnz/go-debian/deb822"
	"github.com/etnz/go-debian/version"
)

// Package is a Debian binary package held in memory: control metadata,
// maintainer scripts and payload files.
type Package struct {
	Metadata Metadata
	Scripts  Scripts
	Files    []File

	// ExtraControlFiles are added to the control archive as is, keyed by
	// name ("templates", "triggers", ...). Names of the files generated
	// from the other fields are ignored.
	ExtraControlFiles map[string]string

	// Compression of the control and data members. Only Gzip and Xz can
	// be written; the zero value means Gzip.
	Compression Compression

	// ModTime is stored on generated control entries and ar members. If
	// zero, the current time is used.
	ModTime time.Time
}

// Metadata holds the fields of the binary control file.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#binary-package-control-files-debian-control
type Metadata struct {
	Package      string
	Version      string
	Architecture string
	// Maintainer is "Name <email>".
	Maintainer string
	// Description is the synopsis, optionally followed by extended
	// description lines separated by "\n".
	Description string
	Section     string
	Priority    string
	Homepage    string
	Essential   bool

	// Relationship fields, one relation (with alternatives) per element.
	//
	// Reference: https://www.debian.org/doc/debian-policy/ch-relationships.html
	Depends    []string
	PreDepends []string
	Recommends []string
	Suggests   []string
	Enhances   []string
	Conflicts  []string
	Breaks     []string
	Replaces   []string
	Provides   []string

	BuiltUsing string
	Source     string

	// ExtraFields are written after the standard fields, sorted by name.
	ExtraFields map[string]string
}

// Scripts holds the maintainer scripts.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-maintainerscripts.html
type Scripts struct {
	PreInst  string
	PostInst string
	PreRm    string
	PostRm   string
	Config   string
}

func (s *Scripts) byName() map[ControlFile]*string {
	return map[ControlFile]*string{
		FilePreinst:  &s.PreInst,
		FilePostinst: &s.PostInst,
		FilePrerm:    &s.PreRm,
		FilePostrm:   &s.PostRm,
		FileConfig:   &s.Config,
	}
}

// SetScript assigns the named maintainer script. It reports false for
// names that are not maintainer scripts.
func (s *Scripts) SetScript(name ControlFile, body string) bool {
	dst, ok := s.byName()[name]
	if ok {
		*dst = body
	}
	return ok
}

// File is a regular file installed by the package.
type File struct {
	// DestPath is the absolute installation path, e.g. "/usr/bin/app".
	DestPath string
	Mode     int64
	Body     string
	// IsConf lists the file in conffiles.
	//
	// Reference: https://www.debian.org/doc/debian-policy/ch-files.html#s-config-files
	IsConf bool
	// ModTime defaults to the package ModTime.
	ModTime time.Time
}

// StandardFilename returns {Package}_{Version}_{Architecture}.deb. The
// epoch is not part of file names.
func (p *Package) StandardFilename() string {
	v := p.Metadata.Version
	if pv, err := version.Parse(v); err == nil {
		pv.Epoch = ""
		v = pv.String()
	}
	return fmt.Sprintf("%s_%s_%s.deb", p.Metadata.Package, v, p.Metadata.Architecture)
}

// UpstreamVersion returns the upstream part of the version.
func (p *Package) UpstreamVersion() string {
	v, err := version.Parse(p.Metadata.Version)
	if err != nil {
		return p.Metadata.Version
	}
	return v.Upstream
}

// Iteration returns the Debian revision of the version.
func (p *Package) Iteration() string {
	v, err := version.Parse(p.Metadata.Version)
	if err != nil {
		return ""
	}
	return v.Revision
}

// Set updates a control field. Installed-Size is ignored since it is
// computed when the package is written.
func (p *Package) Set(key, value string) {
	m := &p.Metadata
	if s, ok := m.stringFields()[ControlField(key)]; ok {
		*s = value
		return
	}
	if l, ok := m.listFields()[ControlField(key)]; ok {
		*l = splitList(value)
		return
	}
	switch ControlField(key) {
	case FieldEssential:
		m.Essential = value == "yes"
	case FieldInstalledSize:
	default:
		if m.ExtraFields == nil {
			m.ExtraFields = make(map[string]string)
		}
		m.ExtraFields[key] = value
	}
}

func (m *Metadata) stringFields() map[ControlField]*string {
	return map[ControlField]*string{
		FieldPackage:      &m.Package,
		FieldVersion:      &m.Version,
		FieldArchitecture: &m.Architecture,
		FieldMaintainer:   &m.Maintainer,
		FieldDescription:  &m.Description,
		FieldSection:      &m.Section,
		FieldPriority:     &m.Priority,
		FieldHomepage:     &m.Homepage,
		FieldBuiltUsing:   &m.BuiltUsing,
		FieldSource:       &m.Source,
	}
}

func (m *Metadata) listFields() map[ControlField]*[]string {
	return map[ControlField]*[]string{
		FieldDepends:    &m.Depends,
		FieldPreDepends: &m.PreDepends,
		FieldRecommends: &m.Recommends,
		FieldSuggests:   &m.Suggests,
		FieldEnhances:   &m.Enhances,
		FieldConflicts:  &m.Conflicts,
		FieldBreaks:     &m.Breaks,
		FieldReplaces:   &m.Replaces,
		FieldProvides:   &m.Provides,
	}
}

// splitList splits a comma separated list, trimming every element. It
// returns nil for "".
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var res []string
	for _, p := range strings.Split(s, ",") {
		res = append(res, strings.TrimSpace(p))
	}
	return res
}

func (p *Package) modTime() time.Time {
	if p.ModTime.IsZero() {
		return time.Now()
	}
	return p.ModTime
}

func (p *Package) compression() (Compression, error) {
	switch p.Compression {
	case None, Gzip:
		return Gzip, nil
	case Xz:
		return Xz, nil
	default:
		return "", errors.Wrapf(ErrUnsupportedCompression, "writing %q", string(p.Compression))
	}
}

// WriteTo renders the .deb to w.
func (p *Package) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	comp, err := p.compression()
	if err != nil {
		return 0, err
	}
	mtime := p.modTime()

	// The data archive comes first: the control archive needs its md5sums.
	dataBuf := new(bytes.Buffer)
	md5Map, installedSize, err := p.buildDataArchive(dataBuf, comp, mtime)
	if err != nil {
		return cw.n, errors.Wrap(err, "building data archive")
	}
	controlBuf := new(bytes.Buffer)
	if err := p.buildControlArchive(controlBuf, comp, md5Map, installedSize, mtime); err != nil {
		return cw.n, errors.Wrap(err, "building control archive")
	}

	arW := ar.NewWriter(cw)
	if err := arW.WriteGlobalHeader(); err != nil {
		return cw.n, errors.Wrap(err, "writing ar global header")
	}
	// Member order is mandated by deb(5).
	members := []struct {
		name string
		body []byte
	}{
		{MemberDebianBinary, []byte("2.0\n")},
		{MemberControl + comp.Ext(), controlBuf.Bytes()},
		{MemberData + comp.Ext(), dataBuf.Bytes()},
	}
	for _, m := range members {
		if err := addBufferToAr(arW, m.name, m.body, mtime); err != nil {
			return cw.n, errors.Wrapf(err, "writing %s", m.name)
		}
	}
	return cw.n, nil
}

// compressor wraps w with c. Closing it flushes the compressed stream.
func compressor(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case Gzip:
		return gzip.NewWriter(w), nil
	case Xz:
		return xz.NewWriter(w)
	default:
		return nil, errors.Wrapf(ErrUnsupportedCompression, "writing %q", string(c))
	}
}

// buildDataArchive writes data.tar and returns the md5 checksum of every
// file, keyed by DestPath, and the installed size in bytes.
func (p *Package) buildDataArchive(w io.Writer, c Compression, mtime time.Time) (map[string]string, int64, error) {
	zw, err := compressor(w, c)
	if err != nil {
		return nil, 0, err
	}
	tw := tar.NewWriter(zw)

	md5Map := make(map[string]string)
	var installedSize int64
	for _, file := range p.Files {
		content := []byte(file.Body)
		hash := md5.Sum(content)
		md5Map[file.DestPath] = hex.EncodeToString(hash[:])
		installedSize += int64(len(content))

		header := &tar.Header{
			Name:    "./" + normalize(file.DestPath),
			Size:    int64(len(content)),
			Mode:    file.Mode,
			ModTime: file.ModTime,
		}
		if header.ModTime.IsZero() {
			header.ModTime = mtime
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, 0, err
		}
		if _, err := tw.Write(content); err != nil {
			return nil, 0, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, 0, err
	}
	return md5Map, installedSize, zw.Close()
}

func (p *Package) buildControlArchive(w io.Writer, c Compression, md5Map map[string]string, installedSize int64, mtime time.Time) error {
	zw, err := compressor(w, c)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(zw)

	writeEntry := func(name ControlFile, content []byte, mode int64) error {
		header := &tar.Header{
			Name:    "./" + string(name),
			Size:    int64(len(content)),
			Mode:    mode,
			ModTime: mtime,
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		_, err := tw.Write(content)
		return err
	}

	control, err := p.controlParagraph(installedSize)
	if err != nil {
		return err
	}
	if err := writeEntry(FileControl, []byte(control.String()), 0644); err != nil {
		return errors.Wrap(err, "writing control")
	}
	if err := writeEntry(FileMd5sums, []byte(generateMd5sums(md5Map)), 0644); err != nil {
		return errors.Wrap(err, "writing md5sums")
	}

	var conffiles []string
	for _, f := range p.Files {
		if f.IsConf {
			conffiles = append(conffiles, f.DestPath)
		}
	}
	if len(conffiles) > 0 {
		if err := writeEntry(FileConffiles, []byte(strings.Join(conffiles, "\n")+"\n"), 0644); err != nil {
			return errors.Wrap(err, "writing conffiles")
		}
	}

	scripts := p.Scripts.byName()
	for _, name := range MaintainerScripts {
		if body := *scripts[name]; body != "" {
			if err := writeEntry(name, []byte(body), 0755); err != nil {
				return errors.Wrapf(err, "writing %s", name)
			}
		}
	}

	var extraNames []string
	for name := range p.ExtraControlFiles {
		extraNames = append(extraNames, name)
	}
	sort.Strings(extraNames)
	for _, name := range extraNames {
		if _, reserved := scripts[ControlFile(name)]; reserved {
			continue
		}
		switch ControlFile(name) {
		case FileControl, FileMd5sums, FileConffiles:
			continue
		}
		if content := p.ExtraControlFiles[name]; content != "" {
			if err := writeEntry(ControlFile(name), []byte(content), 0644); err != nil {
				return errors.Wrapf(err, "writing extra control file %s", name)
			}
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return zw.Close()
}

// controlParagraph renders the metadata as a control paragraph.
// Installed-Size is in KiB, rounded up.
func (p *Package) controlParagraph(installedBytes int64) (*deb822.Paragraph, error) {
	m := p.Metadata
	para := deb822.NewParagraph()
	var err error
	set := func(field ControlField, value string) {
		if value != "" && err == nil {
			err = para.Set(string(field), value)
		}
	}
	set(FieldPackage, m.Package)
	set(FieldVersion, m.Version)
	set(FieldArchitecture, m.Architecture)
	set(FieldMaintainer, m.Maintainer)
	set(FieldInstalledSize, strconv.FormatInt((installedBytes+1023)/1024, 10))
	set(FieldSection, m.Section)
	set(FieldPriority, m.Priority)
	set(FieldHomepage, m.Homepage)
	if m.Essential {
		set(FieldEssential, "yes")
	}
	for _, f := range []ControlField{FieldDepends, FieldPreDepends, FieldRecommends, FieldSuggests,
		FieldEnhances, FieldConflicts, FieldBreaks, FieldReplaces, FieldProvides} {
		set(f, strings.Join(*m.listFields()[f], ", "))
	}
	set(FieldBuiltUsing, m.BuiltUsing)
	set(FieldSource, m.Source)

	var extra []string
	for k := range m.ExtraFields {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, k := range extra {
		set(ControlField(k), m.ExtraFields[k])
	}

	if m.Description != "" {
		set(FieldDescription, formatDescription(m.Description))
	}
	if err != nil {
		return nil, errors.Wrap(err, "generating control file")
	}
	return para, nil
}

// formatDescription turns blank extended description lines into " ." and
// indents the others with a space.
func formatDescription(desc string) string {
	lines := strings.Split(strings.TrimRight(desc, "\n"), "\n")
	for i, line := range lines[1:] {
		switch {
		case strings.TrimSpace(line) == "":
			lines[i+1] = " ."
		case !strings.HasPrefix(line, " "):
			lines[i+1] = " " + line
		}
	}
	return strings.Join(lines, "\n")
}

func generateMd5sums(md5Map map[string]string) string {
	var paths []string
	for path := range md5Map {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, path := range paths {
		fmt.Fprintf(&b, "%s  %s\n", md5Map[path], normalize(path))
	}
	return b.String()
}

// NewPackage reads a .deb into a Package.
func NewPackage(r io.Reader) (*Package, error) {
	d, err := Open(r)
	if err != nil {
		return nil, err
	}
	return FromDeb(d)
}

// FromDeb converts a parsed .deb into a Package. Only regular files of the
// data member are kept.
func FromDeb(d *DebFile) (*Package, error) {
	para, err := d.ControlParagraph()
	if err != nil {
		return nil, err
	}
	pkg := FromParagraph(para)
	switch c := d.Data().Compression(); c {
	case Gzip, Xz:
		pkg.Compression = c
	}

	scripts := pkg.Scripts.byName()
	conf := make(map[string]bool)
	for _, name := range d.Control().List() {
		content, err := d.Control().Get(name)
		if err != nil {
			continue
		}
		switch ControlFile(name) {
		case FileControl, FileMd5sums:
		case FileConffiles:
			for _, cf := range strings.Split(strings.TrimSpace(string(content)), "\n") {
				if cf = strings.TrimSpace(cf); cf != "" {
					conf[cf] = true
				}
			}
		default:
			if s, ok := scripts[ControlFile(name)]; ok {
				*s = string(content)
			} else {
				pkg.ExtraControlFiles[name] = string(content)
			}
		}
	}

	for _, e := range d.Data().entries {
		if e.header.Typeflag != tar.TypeReg {
			continue
		}
		dest := "/" + normalize(e.header.Name)
		pkg.Files = append(pkg.Files, File{
			DestPath: dest,
			Mode:     e.header.Mode,
			Body:     string(e.data),
			ModTime:  e.header.ModTime,
			IsConf:   conf[dest],
		})
	}
	return pkg, nil
}

// FromParagraph returns a Package holding the metadata of a control or
// Packages index stanza, without scripts or files.
func FromParagraph(para *deb822.Paragraph) *Package {
	pkg := &Package{
		Metadata:          Metadata{ExtraFields: make(map[string]string)},
		ExtraControlFiles: make(map[string]string),
	}
	for _, k := range para.Keys() {
		pkg.Set(k, para.Value(k))
	}
	pkg.Metadata.Description = parseDescription(pkg.Metadata.Description)
	return pkg
}

// parseDescription reverses formatDescription.
func parseDescription(v string) string {
	lines := strings.Split(v, "\n")
	for i, line := range lines[1:] {
		if strings.TrimSpace(line) == "." {
			lines[i+1] = ""
		}
	}
	return strings.Join(lines, "\n")
}

// Digest returns a SHA256 hash of the package content: metadata, scripts,
// control files and payload. File order and modification times do not
// change it.
func (p *Package) Digest() string {
	h := sha256.New()
	write := func(s string) {
		fmt.Fprintf(h, "%d:%s\x00", len(s), s)
	}

	m := p.Metadata
	for _, s := range []string{m.Package, m.Version, m.Architecture, m.Maintainer, m.Description,
		m.Section, m.Priority, m.Homepage, strconv.FormatBool(m.Essential), m.BuiltUsing, m.Source} {
		write(s)
	}
	for _, list := range [][]string{m.Depends, m.PreDepends, m.Recommends, m.Suggests, m.Enhances,
		m.Conflicts, m.Breaks, m.Replaces, m.Provides} {
		write(strconv.Itoa(len(list)))
		for _, v := range list {
			write(v)
		}
	}
	writeMap := func(kv map[string]string) {
		keys := make([]string, 0, len(kv))
		for k := range kv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			write(k)
			write(kv[k])
		}
	}
	writeMap(m.ExtraFields)

	s := p.Scripts
	for _, body := range []string{s.PreInst, s.PostInst, s.PreRm, s.PostRm, s.Config} {
		write(body)
	}
	writeMap(p.ExtraControlFiles)

	files := make([]File, len(p.Files))
	copy(files, p.Files)
	sort.Slice(files, func(i, j int) bool { return files[i].DestPath < files[j].DestPath })
	for _, f := range files {
		write(f.DestPath)
		write(strconv.FormatInt(f.Mode, 10))
		write(strconv.FormatBool(f.IsConf))
		write(f.Body)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Equal compares two packages by Digest.
func (p *Package) Equal(other *Package) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Digest() == other.Digest()
}
