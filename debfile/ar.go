package debfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/blakesmith/ar"
	"github.com/cockroachdb/errors"
)

const arMagic = "!<arch>\n"

// ArMember is one member of an ar archive, held in memory.
type ArMember struct {
	Name    string
	ModTime time.Time
	UID     int
	GID     int
	Mode    int64
	Size    int64

	data []byte
}

// Bytes returns the member content.
func (m *ArMember) Bytes() []byte { return m.data }

// Open returns a reader over the member content. Each call starts at
// offset zero.
func (m *ArMember) Open() *bytes.Reader { return bytes.NewReader(m.data) }

// ArFile is an ar archive.
type ArFile struct {
	members []*ArMember
}

// ReadAr reads a complete ar archive.
func ReadAr(r io.Reader) (*ArFile, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(len(arMagic)); err != nil || string(magic) != arMagic {
		return nil, &DebError{Msg: "not an ar archive"}
	}
	arR := ar.NewReader(br)
	a := &ArFile{}
	for {
		header, err := arR.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading ar header")
		}
		if header.Size < 0 {
			return nil, &DebError{Member: header.Name, Msg: fmt.Sprintf("invalid ar member size %d", header.Size)}
		}
		data, err := io.ReadAll(io.LimitReader(arR, header.Size))
		if err != nil {
			return nil, errors.Wrapf(err, "reading ar member %s", header.Name)
		}
		if int64(len(data)) != header.Size {
			return nil, &DebError{Member: header.Name, Msg: fmt.Sprintf("truncated ar member: %d of %d bytes", len(data), header.Size)}
		}
		a.members = append(a.members, &ArMember{
			// GNU ar terminates names with a slash.
			Name:    strings.TrimSuffix(strings.TrimSpace(header.Name), "/"),
			ModTime: header.ModTime,
			UID:     header.Uid,
			GID:     header.Gid,
			Mode:    header.Mode,
			Size:    header.Size,
			data:    data,
		})
	}
	return a, nil
}

// OpenAr reads the ar archive at path.
func OpenAr(path string) (*ArFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening ar archive")
	}
	defer f.Close()
	return ReadAr(f)
}

// Members returns the members in archive order.
func (a *ArFile) Members() []*ArMember { return a.members }

// Names returns the member names in archive order.
func (a *ArFile) Names() []string {
	names := make([]string, len(a.members))
	for i, m := range a.members {
		names[i] = m.Name
	}
	return names
}

// Member returns the first member called name.
func (a *ArFile) Member(name string) (*ArMember, bool) {
	for _, m := range a.members {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// countingWriter wraps an io.Writer and counts the bytes written.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// addBufferToAr writes a named byte slice as an ar member with mode 0644.
func addBufferToAr(w *ar.Writer, name string, body []byte, modTime time.Time) error {
	header := &ar.Header{
		Name:    name,
		Size:    int64(len(body)),
		Mode:    0644,
		ModTime: modTime,
	}
	if err := w.WriteHeader(header); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// WriteAr writes members as an ar archive. Only Name, ModTime, UID, GID,
// Mode and the content are used.
func WriteAr(w io.Writer, members []*ArMember) (int64, error) {
	cw := &countingWriter{w: w}
	arW := ar.NewWriter(cw)
	if err := arW.WriteGlobalHeader(); err != nil {
		return cw.n, errors.Wrap(err, "writing ar global header")
	}
	for _, m := range members {
		header := &ar.Header{
			Name:    m.Name,
			Size:    int64(len(m.data)),
			Mode:    m.Mode,
			Uid:     m.UID,
			Gid:     m.GID,
			ModTime: m.ModTime,
		}
		if err := arW.WriteHeader(header); err != nil {
			return cw.n, errors.Wrapf(err, "writing ar member %s", m.Name)
		}
		if _, err := arW.Write(m.data); err != nil {
			return cw.n, errors.Wrapf(err, "writing ar member %s", m.Name)
		}
	}
	return cw.n, nil
}

// NewArMember returns a member holding data, for use with WriteAr.
func NewArMember(name string, data []byte, mode int64, modTime time.Time) *ArMember {
	return &ArMember{Name: name, Mode: mode, ModTime: modTime, Size: int64(len(data)), data: data}
}
