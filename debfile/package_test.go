package debfile

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestControlParagraphGeneration(t *testing.T) {
	p := &Package{
		Metadata: Metadata{
			Package:      "test-pkg",
			Version:      "1.2.3",
			Architecture: "amd64",
			Maintainer:   "Maintainer <m@example.com>",
			Description:  "Short description\n Long description line 1\n\nLong description line 2",
			Depends:      []string{"libc6", "git"},
			Essential:    true,
			ExtraFields:  map[string]string{"Origin": "test", "Bugs": "https://bugs.example.com"},
		},
	}

	// 2048 bytes -> 2KB installed size
	para, err := p.controlParagraph(2048)
	if err != nil {
		t.Fatalf("controlParagraph failed: %v", err)
	}
	out := para.String()

	expected := "Package: test-pkg\n" +
		"Version: 1.2.3\n" +
		"Architecture: amd64\n" +
		"Maintainer: Maintainer <m@example.com>\n" +
		"Installed-Size: 2\n" +
		"Essential: yes\n" +
		"Depends: libc6, git\n" +
		"Bugs: https://bugs.example.com\n" +
		"Origin: test\n" +
		"Description: Short description\n" +
		" Long description line 1\n" +
		" .\n" +
		" Long description line 2\n"
	if out != expected {
		t.Errorf("expected:\n%s\ngot:\n%s", expected, out)
	}
}

func TestControlParagraphInvalid(t *testing.T) {
	p := &Package{Metadata: Metadata{Package: "x", ExtraFields: map[string]string{"Bad": "a\n"}}}
	if _, err := p.controlParagraph(0); err == nil {
		t.Error("expected an error for a value ending with a newline")
	}
}

func TestGenerateMd5sums(t *testing.T) {
	md5Map := map[string]string{
		"/usr/bin/b": "hash_b",
		"/usr/bin/a": "hash_a",
	}
	// Expect sorted output
	expected := "hash_a  usr/bin/a\nhash_b  usr/bin/b\n"
	if out := generateMd5sums(md5Map); out != expected {
		t.Errorf("expected:\n%q\ngot:\n%q", expected, out)
	}
}

func TestBuildDataArchive(t *testing.T) {
	content := []byte("test content")
	p := &Package{
		Files: []File{{DestPath: "/usr/bin/test", Mode: 0755, Body: string(content)}},
	}

	var buf bytes.Buffer
	md5Map, size, err := p.buildDataArchive(&buf, Gzip, testTime)
	if err != nil {
		t.Fatalf("buildDataArchive failed: %v", err)
	}
	if size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), size)
	}
	hash := md5.Sum(content)
	if got := md5Map["/usr/bin/test"]; got != hex.EncodeToString(hash[:]) {
		t.Errorf("expected hash %x, got %s", hash, got)
	}
}

func TestStandardFilename(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"1.0.0", "foo_1.0.0_arm64.deb"},
		{"2:1.0.0-3", "foo_1.0.0-3_arm64.deb"},
	}
	for _, tt := range tests {
		p := &Package{Metadata: Metadata{Package: "foo", Version: tt.version, Architecture: "arm64"}}
		if got := p.StandardFilename(); got != tt.want {
			t.Errorf("StandardFilename(%s) = %s, want %s", tt.version, got, tt.want)
		}
	}
}

func TestVersionParts(t *testing.T) {
	p := &Package{Metadata: Metadata{Version: "1:2.3-4ubuntu1"}}
	if got := p.UpstreamVersion(); got != "2.3" {
		t.Errorf("UpstreamVersion = %q", got)
	}
	if got := p.Iteration(); got != "4ubuntu1" {
		t.Errorf("Iteration = %q", got)
	}
}

func TestSet(t *testing.T) {
	var p Package
	p.Set("Package", "foo")
	p.Set("Depends", "a, b (>= 1)")
	p.Set("Essential", "yes")
	p.Set("Installed-Size", "42")
	p.Set("X-Custom", "value")

	if p.Metadata.Package != "foo" {
		t.Errorf("Package = %q", p.Metadata.Package)
	}
	if len(p.Metadata.Depends) != 2 || p.Metadata.Depends[1] != "b (>= 1)" {
		t.Errorf("Depends = %v", p.Metadata.Depends)
	}
	if !p.Metadata.Essential {
		t.Error("Essential not set")
	}
	if _, ok := p.Metadata.ExtraFields["Installed-Size"]; ok {
		t.Error("Installed-Size must not be stored")
	}
	if p.Metadata.ExtraFields["X-Custom"] != "value" {
		t.Errorf("ExtraFields = %v", p.Metadata.ExtraFields)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a, b", []string{"a", "b"}},
		{" a , b , c ", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		got := splitList(tt.input)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, c := range []Compression{Gzip, Xz} {
		p := testPackage(t)
		p.Compression = c
		p.ExtraControlFiles = map[string]string{"triggers": "interest /usr/share/hello\n", "postinst": "ignored"}

		got, err := NewPackage(bytes.NewReader(buildDeb(t, p)))
		if err != nil {
			t.Fatalf("NewPackage failed: %v", err)
		}
		p.ExtraControlFiles = map[string]string{"triggers": "interest /usr/share/hello\n"}
		if !p.Equal(got) {
			t.Errorf("%s: round trip changed the package:\n%+v\n%+v", c, p.Metadata, got.Metadata)
		}
		if got.Compression != c {
			t.Errorf("expected compression %q, got %q", c, got.Compression)
		}
		if !got.Files[1].IsConf {
			t.Error("conffile lost")
		}
	}
}

func TestFromDebCompression(t *testing.T) {
	tests := []struct {
		write, want Compression
	}{
		{None, Gzip},
		{Gzip, Gzip},
		{Xz, Xz},
	}
	for _, tt := range tests {
		p := testPackage(t)
		p.Compression = tt.write
		d, err := Open(bytes.NewReader(buildDeb(t, p)))
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if got := d.Data().Compression(); got != tt.want {
			t.Errorf("%q: data member compression %q, want %q", tt.write, got, tt.want)
		}
		got, err := FromDeb(d)
		if err != nil {
			t.Fatalf("FromDeb failed: %v", err)
		}
		if got.Compression != tt.want {
			t.Errorf("%q: FromDeb compression %q, want %q", tt.write, got.Compression, tt.want)
		}
	}
}

func TestDigest(t *testing.T) {
	a := testPackage(t)
	b := testPackage(t)
	b.Files[0], b.Files[1] = b.Files[1], b.Files[0]
	b.Files[0].ModTime = testTime.AddDate(1, 0, 0)
	if a.Digest() != b.Digest() {
		t.Error("digest depends on file order or times")
	}
	b.Scripts.PreRm = "#!/bin/sh\n"
	if a.Equal(b) {
		t.Error("digest ignores scripts")
	}
	var nilPkg *Package
	if !nilPkg.Equal(nil) || a.Equal(nil) {
		t.Error("unexpected nil equality")
	}
}

func TestWriteUnsupportedCompression(t *testing.T) {
	p := testPackage(t)
	p.Compression = Bzip2
	if _, err := p.WriteTo(&bytes.Buffer{}); !errors.Is(err, ErrUnsupportedCompression) {
		t.Errorf("expected ErrUnsupportedCompression, got %v", err)
	}
}

func TestIntegrationDebGeneration(t *testing.T) {
	if _, err := exec.LookPath("dpkg-deb"); err != nil {
		t.Skip("dpkg-deb not found, skipping integration test")
	}

	debPath := filepath.Join(t.TempDir(), "test.deb")
	for _, c := range []Compression{Gzip, Xz} {
		p := testPackage(t)
		p.Compression = c
		if err := os.WriteFile(debPath, buildDeb(t, p), 0644); err != nil {
			t.Fatal(err)
		}

		out, err := exec.Command("dpkg-deb", "--info", debPath).CombinedOutput()
		if err != nil {
			t.Fatalf("dpkg-deb --info failed: %v\n%s", err, out)
		}
		if !strings.Contains(string(out), "Package: hello") {
			t.Errorf("missing Package field in info")
		}

		out, err = exec.Command("dpkg-deb", "--contents", debPath).CombinedOutput()
		if err != nil {
			t.Fatalf("dpkg-deb --contents failed: %v\n%s", err, out)
		}
		if !strings.Contains(string(out), "./usr/bin/hello") {
			t.Errorf("missing file in contents: %s", out)
		}
	}
}
