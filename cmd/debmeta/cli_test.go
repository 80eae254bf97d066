package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etnz/go-debian/debfile"
	"github.com/etnz/go-debian/repo"
)

// run executes debmeta with args and returns its standard output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	outputFormat, jobs, configPath, logLevel = "text", 0, "", ""
	cfg = NewConfig()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeDeb(t *testing.T, dir, name string, files ...debfile.File) string {
	t.Helper()
	pkg := &debfile.Package{
		Metadata: debfile.Metadata{
			Package:      name,
			Version:      "1.0-1",
			Architecture: "amd64",
			Maintainer:   "John Doe <john@example.com>",
			Description:  "test package",
		},
		Files:   files,
		ModTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	var buf bytes.Buffer
	_, err := pkg.WriteTo(&buf)
	require.NoError(t, err)
	path := filepath.Join(dir, pkg.StandardFilename())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestVersionCommands(t *testing.T) {
	out, err := run(t, "version", "compare", "1.0-1", "1:0.9")
	require.NoError(t, err)
	assert.Equal(t, "1.0-1 < 1:0.9\n", out)

	out, err = run(t, "version", "bump", "1.0-1")
	require.NoError(t, err)
	assert.Equal(t, "1.0-2\n", out)

	out, err = run(t, "version", "check", "2:1.2~rc1-3")
	require.NoError(t, err)
	assert.Equal(t, "epoch=2 upstream=1.2~rc1 revision=3\n", out)

	_, err = run(t, "version", "compare", "1.0")
	assert.Error(t, err, "missing argument is a usage error")
}

func TestControlCommands(t *testing.T) {
	control := writeFile(t, "control", `Source: hello
Build-Depends: debhelper-compat (= 13), libfoo-dev [linux-any] | libbar-dev

Package: hello
Architecture: any
Depends: ${misc:Depends}, libc6 (>= 2.36)
Description: greets
 the world
`)

	out, err := run(t, "control", "get", control, "Package")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	out, err = run(t, "control", "relations", control, "Build-Depends")
	require.NoError(t, err)
	assert.Equal(t, "debhelper-compat (= 13)\nlibfoo-dev [linux-any] | libbar-dev\n", out)

	out, err = run(t, "control", "dump", "--fields", "Package,Architecture", control)
	require.NoError(t, err)
	assert.Equal(t, "Package: hello\nArchitecture: any\n", strings.TrimLeft(out, "\n"))

	out, err = run(t, "--output", "json", "control", "get", control, "Source")
	require.NoError(t, err)
	var values []string
	require.NoError(t, json.Unmarshal([]byte(out), &values))
	assert.Equal(t, []string{"hello"}, values)

	_, err = run(t, "--output", "xml", "control", "get", control, "Source")
	assert.ErrorContains(t, err, "invalid output format")
}

func TestDebCommands(t *testing.T) {
	dir := t.TempDir()
	a := writeDeb(t, dir, "alpha",
		debfile.File{DestPath: "/etc/cron.d/alpha", Mode: 0644, Body: "* * * * * root true\n"},
		debfile.File{DestPath: "/usr/bin/alpha", Mode: 0755, Body: "#!/bin/sh\n"},
	)
	b := writeDeb(t, dir, "beta")

	out, err := run(t, "deb", "info", a)
	require.NoError(t, err)
	assert.Contains(t, out, "Package: alpha\n")

	out, err = run(t, "deb", "info", a, b)
	require.NoError(t, err)
	assert.Contains(t, out, "==> "+a+" <==\n")
	assert.Contains(t, out, "==> "+b+" <==\n")
	assert.Less(t, strings.Index(out, "alpha"), strings.Index(out, "Package: beta"))

	out, err = run(t, "deb", "md5sums", a)
	require.NoError(t, err)
	assert.Contains(t, out, "  etc/cron.d/alpha\n")
	assert.Contains(t, out, "  usr/bin/alpha\n")

	dest := t.TempDir()
	out, err = run(t, "deb", "extract-cron", a, dest)
	require.NoError(t, err)
	assert.Equal(t, "etc/cron.d/alpha\n", out)
	content, err := os.ReadFile(filepath.Join(dest, "etc", "cron.d", "alpha"))
	require.NoError(t, err)
	assert.Equal(t, "* * * * * root true\n", string(content))
}

func TestTagsCommands(t *testing.T) {
	db := writeFile(t, "tags", `fortune-mod: game::toys, interface::commandline, role::program
fortunes: game::toys, role::app-data
bsdgames: game::toys, interface::commandline, role::program
vim: interface::commandline, role::program, use::editing
`)
	out, err := run(t, "tags", "related", db, "fortune-mod", "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, "bsdgames\n", out)

	out, err = run(t, "tags", "reverse", db)
	require.NoError(t, err)
	assert.Contains(t, out, "use::editing: vim\n")

	_, err = run(t, "tags", "related", db, "emacs")
	assert.ErrorContains(t, err, "not in")
}

func TestRepoBuildAndVerify(t *testing.T) {
	entity, err := openpgp.NewEntity("Test", "test", "test@example.com", nil)
	require.NoError(t, err)
	var key bytes.Buffer
	w, err := armor.Encode(&key, openpgp.PrivateKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.SerializePrivate(w, nil))
	require.NoError(t, w.Close())
	keyPath := writeFile(t, "key.asc", key.String())

	debs := t.TempDir()
	a := writeDeb(t, debs, "alpha")
	b := writeDeb(t, debs, "beta")
	dir := filepath.Join(t.TempDir(), "repo")

	_, err = run(t, "repo", "build", dir, a, b, "--sign-key", keyPath, "--origin", "Test", "--codename", "stable")
	require.NoError(t, err)
	for _, name := range []string{"alpha_1.0-1_amd64.deb", "Packages.xz", "InRelease", "public.asc"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	out, err := run(t, "repo", "verify", dir, "--keyring", filepath.Join(dir, "public.asc"))
	require.NoError(t, err)
	assert.Contains(t, out, "OK      Packages\n")

	_, err = run(t, "repo", "build", dir, a, a)
	assert.NoError(t, err, "identical duplicates are accepted")
}

func TestRepoCompile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "repo.yaml"), []byte(`path: out
defines:
  version: 2.0-1
info:
  origin: Test
packages:
  - hello.yaml
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.yaml"), []byte(`meta:
  Package: hello
  Version: "{{.version}}"
  Architecture: all
  Description: greets
`), 0644))

	out, err := run(t, "repo", "compile", filepath.Join(dir, "repo.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, `"package":"hello","version":"2.0-1"`)
	assert.Contains(t, out, "manifest.EventRepositoryWritten")
	assert.FileExists(t, filepath.Join(dir, "out", "hello_2.0-1_all.deb"))
}

func TestRepoPurge(t *testing.T) {
	r := &repo.Repository{Info: repo.ArchiveInfo{Origin: "Test"}}
	for _, v := range []string{"1.0-1", "1.1-1", "1:0.5-1"} {
		r.AddOverwrite(&debfile.Package{Metadata: debfile.Metadata{
			Package: "alpha", Version: v, Architecture: "all", Description: "a",
		}})
	}

	dir := filepath.Join(t.TempDir(), "repo")
	require.NoError(t, r.WriteToDir(dir))
	out, err := run(t, "repo", "purge", dir, "--name", "^alpha$", "--keep-max", "1")
	require.NoError(t, err)
	assert.Equal(t, "removed alpha 1.0-1 all\nremoved alpha 1.1-1 all\n", out)
	assert.NoFileExists(t, filepath.Join(dir, "alpha_1.0-1_all.deb"))
	assert.FileExists(t, filepath.Join(dir, "alpha_0.5-1_all.deb"))

	archive := filepath.Join(t.TempDir(), "repo.tar.gz")
	f, err := os.Create(archive)
	require.NoError(t, err)
	_, err = r.WriteTo(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	_, err = run(t, "repo", "purge", archive, "--version", "^1\\.", "--keep-max", "-1")
	require.NoError(t, err)

	f, err = os.Open(archive)
	require.NoError(t, err)
	defer f.Close()
	purged, err := repo.NewRepository(f)
	require.NoError(t, err)
	require.Len(t, purged.Packages, 1)
	assert.Equal(t, "1:0.5-1", purged.Packages[0].Metadata.Version)
}

func TestRepoPatch(t *testing.T) {
	dir := t.TempDir()
	index := filepath.Join(dir, "Packages")
	require.NoError(t, os.WriteFile(index, []byte("Package: a\n\nPackage: b\n"), 0644))
	diff := filepath.Join(dir, "T-1")
	require.NoError(t, os.WriteFile(diff, []byte("3c\nPackage: c\n.\n"), 0644))

	out, err := run(t, "repo", "patch", index, diff)
	require.NoError(t, err)
	assert.Equal(t, repo.LinesSHA1([]string{"Package: a\n", "\n", "Package: c\n"})+"\n", out)
	got, err := os.ReadFile(index)
	require.NoError(t, err)
	assert.Equal(t, "Package: a\n\nPackage: c\n", string(got))

	_, err = run(t, "repo", "patch", index)
	assert.Error(t, err, "a patch is required")
}
