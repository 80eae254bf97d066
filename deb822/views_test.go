package deb822

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etnz/go-debian/version"
)

const changesFile = `Format: 1.7
Date: Fri, 28 Dec 2007 17:08:48 +0100
Source: bzr-gtk
Binary: bzr-gtk
Architecture: source all
Version: 0.93.0-2
Distribution: unstable
Urgency: low
Maintainer: Debian Bazaar Maintainers <pkg-bazaar-maint@lists.alioth.debian.org>
Changed-By: Chris Lamb <chris@chris-lamb.co.uk>
Description:
 bzr-gtk    - provides graphical interfaces to Bazaar (bzr) version control
Closes: 440354 456438
Changes:
 bzr-gtk (0.93.0-2) unstable; urgency=low
 .
   [ Chris Lamb ]
   * Add patch for unclosed progress window. (Closes: #440354)
Files:
 0fd797f4138a9d4fdeb8c30597d46bc9 1003 python optional bzr-gtk_0.93.0-2.dsc
 d9523676ae75c4ced299689456f252f4 3860 python optional bzr-gtk_0.93.0-2.diff.gz
 8960459940314b21019dedd5519b47a5 168544 python optional bzr-gtk_0.93.0-2_all.deb
`

func TestChangesFiles(t *testing.T) {
	p, err := ParseOne(changesFile)
	require.NoError(t, err)
	assert.Equal(t, changesFile, p.String())

	c := Changes{p}
	files, err := c.Files()
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, FileEntry{
		Checksum: "0fd797f4138a9d4fdeb8c30597d46bc9",
		Size:     1003,
		Section:  "python",
		Priority: "optional",
		Name:     "bzr-gtk_0.93.0-2.dsc",
	}, files[0])

	path, err := c.PoolPath()
	require.NoError(t, err)
	assert.Equal(t, "pool/main/b/bzr-gtk", path)

	require.NoError(t, p.SetFileEntries("Files", files))
	assert.Equal(t, changesFile, p.String())
}

func TestPoolPrefix(t *testing.T) {
	assert.Equal(t, "libf", PoolPrefix("libfoo"))
	assert.Equal(t, "l", PoolPrefix("lib"))
	assert.Equal(t, "p", PoolPrefix("python-debian"))
}

func TestFileEntriesRejectNewline(t *testing.T) {
	p := NewParagraph()
	err := p.SetFileEntries("Files", []FileEntry{{Checksum: "deadbeef", Size: 9605, Name: "bad\n"}})
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.False(t, p.Has("Files"))
}

func TestReleaseChecksums(t *testing.T) {
	in := `Origin: Debian
Codename: sid
Architectures: amd64 i386
Components: main contrib
SHA256:
 e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855 0 main/binary-amd64/Packages
 5d41402abc4b2a76b9719d911017c592ae41e4649b934ca495991b7852b85500 113433 main/binary-amd64/Packages.gz
`
	p, err := ParseOne(in)
	require.NoError(t, err)
	r := Release{p}
	sums, err := r.Checksums("SHA256")
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, int64(113433), sums[1].Size)
	assert.Equal(t, []string{"amd64", "i386"}, r.Architectures())
	assert.Equal(t, []string{"main", "contrib"}, r.Components())

	bad, err := ParseOne("SHA256:\n abc notanumber file\n")
	require.NoError(t, err)
	_, err = Release{bad}.Checksums("SHA256")
	assert.Error(t, err)
}

func TestPackagesRelations(t *testing.T) {
	p, err := ParseOne(unparsedPackage)
	require.NoError(t, err)
	pkg := Packages{p}

	rels := pkg.AllRelations()
	assert.Len(t, rels, len(PackagesRelationFields))
	assert.Nil(t, rels["breaks"])
	assert.Equal(t, "mutt-utf8", rels["replaces"][0][0].Name)
	assert.Len(t, pkg.Relations("Depends"), 7)
	assert.Equal(t, "mail-transport-agent", pkg.Relations("Depends")[6][1].Name)

	v, err := pkg.Version()
	require.NoError(t, err)
	assert.Equal(t, "1.5.12", v.Upstream)

	require.NoError(t, pkg.SetVersion(version.MustParse("1.5.12-2")))
	assert.Equal(t, "1.5.12-2", p.Value("Version"))
}

func TestSourcesRelations(t *testing.T) {
	p, err := ParseOne("Package: foo\nBuild-Depends: debhelper-compat (= 13), python3:any <!nocheck>\nVersion: 1.0\n")
	require.NoError(t, err)
	src := Sources{p}
	bd := src.AllRelations()["build-depends"]
	require.Len(t, bd, 2)
	assert.Equal(t, "any", bd[1][0].ArchQual)

	_, err = Sources{NewParagraph()}.Version()
	assert.Error(t, err)
}

const removals = `Date: Wed, 01 Jan 2014 17:03:54 +0000
Ftpmaster: Ansgar Burchardt
Suite: unstable
Sources:
 libzoom-ruby_0.4.1-5
Binaries:
 libzoom-ruby_0.4.1-5 [all]
 libzoom-ruby1.8_0.4.1-5 [amd64, i386]
Reason: RoQA; orphaned
Bug: 753912
Also-WNPP: 123456
`

func TestRemovals(t *testing.T) {
	p, err := ParseOne(removals)
	require.NoError(t, err)
	r := Removals{p}

	assert.Equal(t, "unstable", r.Suite())
	d, err := r.Date()
	require.NoError(t, err)
	assert.Equal(t, int64(1388595834), d.Unix())
	assert.Equal(t, time.Wednesday, d.Weekday())

	bins, err := r.Binaries()
	require.NoError(t, err)
	require.Len(t, bins, 2)
	assert.Equal(t, RemovedPackage{Package: "libzoom-ruby", Version: "0.4.1-5", Architectures: []string{"all"}}, bins[0])
	assert.Equal(t, []string{"amd64", "i386"}, bins[1].Architectures)

	srcs, err := r.Sources()
	require.NoError(t, err)
	assert.Equal(t, []RemovedPackage{{Package: "libzoom-ruby", Version: "0.4.1-5"}}, srcs)

	bugs, err := r.Bugs()
	require.NoError(t, err)
	assert.Equal(t, []int{753912}, bugs)
	wnpp, err := r.AlsoWNPP()
	require.NoError(t, err)
	assert.Equal(t, []int{123456}, wnpp)
}
