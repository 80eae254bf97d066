package debfile

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"

	"github.com/etnz/go-debian/changelog"
	"github.com/etnz/go-debian/deb822"
)

var (
	// ErrUnsupportedCompression is returned for tar members compressed with
	// an algorithm this package cannot read.
	ErrUnsupportedCompression = errors.New("debfile: unsupported compression")
	// ErrNoChangelog is returned by Changelog when the package ships none.
	ErrNoChangelog = errors.New("debfile: no changelog found")
)

// DebError reports a malformed .deb: a missing member or member file.
type DebError struct {
	Member string
	Msg    string
}

func (e *DebError) Error() string {
	if e.Member == "" {
		return "debfile: " + e.Msg
	}
	return fmt.Sprintf("debfile: %s: %s", e.Member, e.Msg)
}

// DebFile is a parsed .deb.
type DebFile struct {
	ar      *ArFile
	version string
	control *DebPart
	data    *DebPart
}

// Open reads a .deb from r.
func Open(r io.Reader) (*DebFile, error) {
	a, err := ReadAr(r)
	if err != nil {
		return nil, err
	}
	return fromAr(a)
}

// OpenFile reads the .deb at filename.
func OpenFile(filename string) (*DebFile, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "opening deb")
	}
	defer f.Close()
	d, err := Open(f)
	return d, errors.Wrapf(err, "reading %s", filename)
}

func fromAr(a *ArFile) (*DebFile, error) {
	d := &DebFile{ar: a}
	var controlM, dataM *ArMember
	for _, m := range a.Members() {
		switch {
		case m.Name == MemberDebianBinary:
			d.version = strings.TrimSpace(string(m.Bytes()))
		case controlM == nil && strings.HasPrefix(m.Name, MemberControl):
			controlM = m
		case dataM == nil && strings.HasPrefix(m.Name, MemberData):
			dataM = m
		}
	}
	if d.version == "" || controlM == nil || dataM == nil {
		return nil, &DebError{Msg: fmt.Sprintf(
			"missing required part in given .deb (expected: %s, %s, %s; found: %s)",
			MemberDebianBinary, MemberControl, MemberData, strings.Join(a.Names(), ", "))}
	}
	var err error
	if d.control, err = newDebPart(controlM, MemberControl); err != nil {
		return nil, err
	}
	if d.data, err = newDebPart(dataM, MemberData); err != nil {
		return nil, err
	}
	return d, nil
}

// Ar returns the underlying archive.
func (d *DebFile) Ar() *ArFile { return d.ar }

// Version returns the content of debian-binary, such as "2.0".
func (d *DebFile) Version() string { return d.version }

// Control returns the control.tar member.
func (d *DebFile) Control() *DebPart { return d.control }

// Data returns the data.tar member.
func (d *DebFile) Data() *DebPart { return d.data }

// ControlContent returns a file of the control member, e.g. "postinst".
func (d *DebFile) ControlContent(name ControlFile) ([]byte, error) {
	return d.control.Get(string(name))
}

// ControlParagraph parses the control file.
func (d *DebFile) ControlParagraph() (*deb822.Paragraph, error) {
	content, err := d.ControlContent(FileControl)
	if err != nil {
		return nil, err
	}
	p, err := deb822.ParseOne(string(content))
	if err != nil {
		return nil, errors.Wrap(err, "parsing control file")
	}
	return p, nil
}

// Md5sums returns the md5 checksum of every file listed in md5sums, keyed
// by path relative to the root.
func (d *DebFile) Md5sums() (map[string]string, error) {
	content, err := d.ControlContent(FileMd5sums)
	if err != nil {
		return nil, err
	}
	sums := make(map[string]string)
	s := bufio.NewScanner(bytes.NewReader(content))
	for s.Scan() {
		line := strings.TrimRight(s.Text(), "\r")
		if line == "" {
			continue
		}
		sum, file, ok := strings.Cut(line, " ")
		if !ok {
			return nil, &DebError{Member: MemberControl, Msg: fmt.Sprintf("malformed md5sums line %q", line)}
		}
		sums[strings.TrimLeft(file, " ")] = sum
	}
	return sums, s.Err()
}

// Scripts returns the maintainer scripts present in the package, keyed by
// name.
func (d *DebFile) Scripts() map[ControlFile][]byte {
	scripts := make(map[ControlFile][]byte)
	for _, name := range MaintainerScripts {
		if content, err := d.ControlContent(name); err == nil {
			scripts[name] = content
		}
	}
	return scripts
}

// Changelog parses the Debian changelog shipped in the data member. The
// native package changelog is used when there is no changelog.Debian.gz.
func (d *DebFile) Changelog(opts ...changelog.Option) (*changelog.Changelog, error) {
	p, err := d.ControlParagraph()
	if err != nil {
		return nil, err
	}
	pkg := p.Value(string(FieldPackage))
	for _, pattern := range []string{changelogDebian, changelogNative} {
		content, err := d.data.Get(fmt.Sprintf(pattern, pkg))
		if err != nil {
			continue
		}
		gz, err := gzip.NewReader(bytes.NewReader(content))
		if err != nil {
			return nil, errors.Wrap(err, "opening changelog")
		}
		defer gz.Close()
		return changelog.Parse(gz, opts...)
	}
	return nil, ErrNoChangelog
}

// DebPart is a decompressed tar member of a .deb.
type DebPart struct {
	member      string
	compression Compression
	entries     []*tarEntry
	index       map[string]*tarEntry
}

type tarEntry struct {
	header *tar.Header
	data   []byte
}

// normalize maps "./usr/bin/x", "/usr/bin/x" and "usr/bin/x" to the same
// key. The root directory is "".
func normalize(name string) string {
	name = path.Clean("/" + name)
	return strings.TrimPrefix(name, "/")
}

func newDebPart(m *ArMember, base string) (*DebPart, error) {
	c := Compression(strings.TrimPrefix(strings.TrimPrefix(m.Name, base), "."))
	r, err := decompress(m.Open(), c)
	if err != nil {
		return nil, errors.Wrapf(err, "member %s", m.Name)
	}
	p := &DebPart{member: m.Name, compression: c, index: make(map[string]*tarEntry)}
	tr := tar.NewReader(r)
	for {
		th, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", m.Name)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s from %s", th.Name, m.Name)
		}
		e := &tarEntry{header: th, data: data}
		p.entries = append(p.entries, e)
		p.index[normalize(th.Name)] = e
	}
	return p, nil
}

func decompress(r io.Reader, c Compression) (io.Reader, error) {
	switch c {
	case None:
		return r, nil
	case Gzip:
		return gzip.NewReader(r)
	case Xz:
		return xz.NewReader(r)
	case Lzma:
		return lzma.NewReader(r)
	case Bzip2:
		return bzip2.NewReader(r), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedCompression, "%q", string(c))
	}
}

// Member returns the ar member name, e.g. "data.tar.xz".
func (p *DebPart) Member() string { return p.member }

// Compression returns the member compression.
func (p *DebPart) Compression() Compression { return p.compression }

// Names returns the tar entry names as stored, in archive order.
func (p *DebPart) Names() []string {
	names := make([]string, len(p.entries))
	for i, e := range p.entries {
		names[i] = e.header.Name
	}
	return names
}

// List returns the normalized paths of all entries, sorted. The root
// directory is omitted.
func (p *DebPart) List() []string {
	var out []string
	for name := range p.index {
		if name != "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Has reports whether the part holds an entry at name. Leading "./" and
// "/" are ignored.
func (p *DebPart) Has(name string) bool {
	_, ok := p.index[normalize(name)]
	return ok
}

// Header returns the tar header of an entry.
func (p *DebPart) Header(name string) (*tar.Header, bool) {
	e, ok := p.index[normalize(name)]
	if !ok {
		return nil, false
	}
	return e.header, true
}

const maxSymlinks = 16

// Get returns the content of a regular file, following symbolic and hard
// links within the part.
func (p *DebPart) Get(name string) ([]byte, error) {
	key := normalize(name)
	for i := 0; i <= maxSymlinks; i++ {
		e, ok := p.index[key]
		if !ok {
			return nil, &DebError{Member: p.member, Msg: fmt.Sprintf("file not found inside package: %s", name)}
		}
		switch e.header.Typeflag {
		case tar.TypeSymlink:
			target := e.header.Linkname
			if !strings.HasPrefix(target, "/") {
				target = path.Join(path.Dir(key), target)
			}
			key = normalize(target)
		case tar.TypeLink:
			key = normalize(e.header.Linkname)
		case tar.TypeReg:
			return e.data, nil
		default:
			return nil, &DebError{Member: p.member, Msg: fmt.Sprintf("not a regular file: %s", name)}
		}
	}
	return nil, &DebError{Member: p.member, Msg: fmt.Sprintf("too many levels of symbolic links: %s", name)}
}
