package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/etnz/go-debian/debfile"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestTemplateEngine(t *testing.T) {
	e := newTemplateEngine(map[string]string{"name": "hello", "version": "1.0"})
	s := e.sub(map[string]string{"version": "2.0"})

	tests := []struct {
		engine *templateEngine
		text   string
		want   string
	}{
		{e, "plain", "plain"},
		{e, "{{.name}}-{{.version}}", "hello-1.0"},
		{s, "{{.name}}-{{.version}}", "hello-2.0"},
	}
	for _, tt := range tests {
		got, err := tt.engine.render("t", tt.text)
		if err != nil {
			t.Fatalf("render(%q) failed: %v", tt.text, err)
		}
		if got != tt.want {
			t.Errorf("render(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
	if _, err := e.render("t", "{{.missing}}"); err == nil {
		t.Errorf("render of an undefined key should fail")
	}
}

func TestPackageBuild(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"hello.yaml": `defines:
  bin: hello
meta:
  Package: "{{.bin}}"
  Version: "{{.version}}"
  Architecture: all
  Maintainer: John Doe <john@example.com>
  Description: greets
injects:
  - src: files/hello.sh
    dst: /usr/bin/{{.bin}}
    mode: "0755"
  - src: files/hello.conf
    dst: /etc/hello.conf
    raw: true
    conffile: true
scripts:
  - src: files/postinst
    dst: postinst
control_files:
  - src: files/triggers
    dst: triggers
`,
		"files/hello.sh":    "#!/bin/sh\necho {{.bin}} {{.version}}\n",
		"files/hello.conf":  "greeting={{literal}}\n",
		"files/postinst":    "#!/bin/sh\nexit 0\n",
		"files/triggers":    "interest-noawait /usr/share/hello\n",
	})

	def, err := LoadPackage(filepath.Join(dir, "hello.yaml"))
	if err != nil {
		t.Fatalf("LoadPackage failed: %v", err)
	}
	def.engine = newTemplateEngine(map[string]string{"version": "1.2-1"}).sub(def.Defines)
	pkg, err := def.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	m := pkg.Metadata
	if m.Package != "hello" || m.Version != "1.2-1" || m.Architecture != "all" {
		t.Errorf("unexpected metadata %+v", m)
	}
	if len(pkg.Files) != 2 {
		t.Fatalf("got %d files, want 2", len(pkg.Files))
	}
	if f := pkg.Files[0]; f.DestPath != "/usr/bin/hello" || f.Mode != 0755 || f.Body != "#!/bin/sh\necho hello 1.2-1\n" {
		t.Errorf("unexpected rendered file %+v", f)
	}
	if f := pkg.Files[1]; f.Body != "greeting={{literal}}\n" || !f.IsConf {
		t.Errorf("raw conffile not kept as is: %+v", f)
	}
	if pkg.Scripts.PostInst != "#!/bin/sh\nexit 0\n" {
		t.Errorf("PostInst = %q", pkg.Scripts.PostInst)
	}
	if pkg.ExtraControlFiles["triggers"] == "" {
		t.Errorf("triggers control file missing")
	}
}

func TestPackageBuildErrors(t *testing.T) {
	tests := map[string]string{
		"unknown-script.yaml": "scripts:\n  - src: s\n    dst: postinstall\n",
		"bad-mode.yaml":       "injects:\n  - src: s\n    dst: /x\n    mode: \"999\"\n",
		"missing-src.yaml":    "injects:\n  - src: nope\n    dst: /x\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			dir := writeFiles(t, map[string]string{name: content, "s": "x\n"})
			def, err := LoadPackage(filepath.Join(dir, name))
			if err != nil {
				t.Fatalf("LoadPackage failed: %v", err)
			}
			if _, err := def.Build(); err == nil {
				t.Errorf("Build should fail")
			}
		})
	}

	dir := writeFiles(t, map[string]string{"typo.yaml": "metadata:\n  Package: x\n"})
	if _, err := LoadPackage(filepath.Join(dir, "typo.yaml")); err == nil {
		t.Errorf("unknown fields should be rejected")
	}
}

func TestRepositoryCompile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"repo.json": `{
  "path": "out",
  "defines": {"version": "1.0-1"},
  "info": {"origin": "Test", "codename": "stable", "date": "Sat, 01 Jan 2000 00:00:00 +0000"},
  "packages": ["pkgs/a.yaml", "pkgs/b.yaml"]
}`,
		"pkgs/a.yaml": "meta:\n  Package: alpha\n  Version: \"{{.version}}\"\n  Architecture: all\n  Description: a\n",
		"pkgs/b.yaml": "meta:\n  Package: beta\n  Version: \"{{.version}}\"\n  Architecture: all\n  Description: b\n",
	})

	def, err := LoadRepository(filepath.Join(dir, "repo.json"))
	if err != nil {
		t.Fatalf("LoadRepository failed: %v", err)
	}
	var events []string
	listener := func(e fmt.Stringer) { events = append(events, e.String()) }

	r, err := def.Compile(nil, listener)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(r.Packages) != 2 {
		t.Fatalf("got %d packages, want 2", len(r.Packages))
	}
	for _, name := range []string{"alpha_1.0-1_all.deb", "beta_1.0-1_all.deb", "Packages", "Release"} {
		if _, err := os.Stat(filepath.Join(dir, "out", name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if len(events) != 3 {
		t.Errorf("got %d events, want 3: %v", len(events), events)
	}

	// Compiling again finds identical packages already in place.
	events = nil
	if _, err := def.Compile(nil, listener); err != nil {
		t.Fatalf("second Compile failed: %v", err)
	}
	want := `{"manifest.EventPackageBuilt":{"definition":"` + filepath.Join(dir, "pkgs", "a.yaml") + `","package":"alpha","version":"1.0-1","architecture":"all","existing":true}}`
	if len(events) == 0 || events[0] != want {
		t.Errorf("first event = %v, want %s", events, want)
	}
}

func TestRepositoryCompilePublishesInputUnchanged(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"repo.yaml":       "path: out\npackages: [pkgs/gamma.yaml]\n",
		"pkgs/gamma.yaml": "input: gamma.deb\n",
	})

	pkg := &debfile.Package{Metadata: debfile.Metadata{
		Package: "gamma", Version: "2.0-1", Architecture: "all", Description: "g",
	}}
	var built bytes.Buffer
	if _, err := pkg.WriteTo(&built); err != nil {
		t.Fatal(err)
	}
	// A trailing member is dropped by any rebuild.
	a, err := debfile.ReadAr(&built)
	if err != nil {
		t.Fatal(err)
	}
	members := append(a.Members(), debfile.NewArMember("_extra", []byte("kept\n"), 0644, time.Unix(0, 0)))
	var input bytes.Buffer
	if _, err := debfile.WriteAr(&input, members); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pkgs", "gamma.deb"), input.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	def, err := LoadRepository(filepath.Join(dir, "repo.yaml"))
	if err != nil {
		t.Fatalf("LoadRepository failed: %v", err)
	}
	if _, err := def.Compile(nil, nil); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "out", "gamma_2.0-1_all.deb"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, input.Bytes()) {
		t.Errorf("published package differs from its input (%d vs %d bytes)", len(got), len(input.Bytes()))
	}
}

func TestLoadRepositoryRequiresPath(t *testing.T) {
	dir := writeFiles(t, map[string]string{"repo.yaml": "packages: []\n"})
	if _, err := LoadRepository(filepath.Join(dir, "repo.yaml")); err == nil {
		t.Errorf("a definition without path should be rejected")
	}
}
