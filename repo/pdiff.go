package repo

import (
	"bufio"
	"compress/gzip"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrInvalidPatch is returned for malformed ed scripts and for patches
// that do not fit the lines they are applied to.
var ErrInvalidPatch = errors.New("repo: invalid patch")

var edCommandRe = regexp.MustCompile(`^(\d+)(?:,(\d+))?([acd])$`)

// Patch replaces lines[First:Last] with Lines. It is one command of a
// pdiff ed script, with zero-based bounds.
type Patch struct {
	First, Last int
	Lines       []string
}

// ReadLines splits r into lines, each keeping its line ending.
func ReadLines(r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)
	var lines []string
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			lines = append(lines, line)
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading lines")
		}
	}
}

// ParseEdScript reads the commands of an ed script as found in
// Packages.diff/*.gz files. The "a", "c" and "d" commands are supported;
// the patches are returned in script order, which is the order they must
// be applied in.
func ParseEdScript(r io.Reader) ([]Patch, error) {
	lines, err := ReadLines(r)
	if err != nil {
		return nil, err
	}
	var patches []Patch
	for i := 0; i < len(lines); i++ {
		cmdLine := lines[i]
		m := edCommandRe.FindStringSubmatch(strings.TrimSuffix(cmdLine, "\n"))
		if m == nil {
			return nil, errors.Wrapf(ErrInvalidPatch, "invalid command %q", cmdLine)
		}
		first, _ := strconv.Atoi(m[1])
		last := -1
		if m[2] != "" {
			last, _ = strconv.Atoi(m[2])
		}
		switch m[3] {
		case "d":
			first--
			if last < 0 {
				last = first + 1
			}
			patches = append(patches, Patch{First: first, Last: last})
			continue
		case "a":
			if last >= 0 {
				return nil, errors.Wrapf(ErrInvalidPatch, "range on append command %q", cmdLine)
			}
			last = first
		case "c":
			first--
			if last < 0 {
				last = first + 1
			}
		}
		p := Patch{First: first, Last: last}
		terminated := false
		for i++; i < len(lines); i++ {
			if lines[i] == ".\n" || lines[i] == "." {
				terminated = true
				break
			}
			p.Lines = append(p.Lines, lines[i])
		}
		if !terminated {
			return nil, errors.Wrapf(ErrInvalidPatch, "end of script in command %q", cmdLine)
		}
		patches = append(patches, p)
	}
	return patches, nil
}

// PatchLines applies patches to lines in order and returns the result.
func PatchLines(lines []string, patches []Patch) ([]string, error) {
	for _, p := range patches {
		if p.First < 0 || p.First > p.Last || p.Last > len(lines) {
			return nil, errors.Wrapf(ErrInvalidPatch, "lines %d-%d out of range for %d lines", p.First+1, p.Last, len(lines))
		}
		out := make([]string, 0, len(lines)-(p.Last-p.First)+len(p.Lines))
		out = append(out, lines[:p.First]...)
		out = append(out, p.Lines...)
		out = append(out, lines[p.Last:]...)
		lines = out
	}
	return lines, nil
}

// LinesSHA1 returns the hex SHA-1 of the concatenated lines, as listed in
// the SHA1-Current and SHA1-History fields of a Packages.diff/Index.
func LinesSHA1(lines []string) string {
	h := sha1.New()
	for _, l := range lines {
		io.WriteString(h, l)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ReplaceFile writes lines to path through a temporary file renamed over
// it, so readers never see a partial file.
func ReplaceFile(lines []string, path string) error {
	tmp := path + ".new"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "creating temporary file")
	}
	w := bufio.NewWriter(f)
	for _, l := range lines {
		if _, err := w.WriteString(l); err != nil {
			f.Close()
			os.Remove(tmp)
			return errors.Wrap(err, "writing temporary file")
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "writing temporary file")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "closing temporary file")
	}
	return errors.Wrap(os.Rename(tmp, path), "replacing file")
}

// UpdateFile applies the ed scripts in patchFiles, in order, to the file at
// path and replaces it. Scripts named *.gz are decompressed. It returns
// the SHA-1 of the updated lines.
func UpdateFile(path string, patchFiles ...string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "opening file to patch")
	}
	lines, err := ReadLines(f)
	f.Close()
	if err != nil {
		return "", err
	}
	for _, name := range patchFiles {
		patches, err := readEdScript(name)
		if err != nil {
			return "", errors.Wrapf(err, "reading %s", filepath.Base(name))
		}
		if lines, err = PatchLines(lines, patches); err != nil {
			return "", errors.Wrapf(err, "applying %s", filepath.Base(name))
		}
	}
	if err := ReplaceFile(lines, path); err != nil {
		return "", err
	}
	return LinesSHA1(lines), nil
}

func readEdScript(name string) ([]Patch, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var r io.Reader = f
	if filepath.Ext(name) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		defer gz.Close()
		r = gz
	}
	return ParseEdScript(r)
}
