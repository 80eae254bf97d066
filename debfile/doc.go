// Package debfile reads and writes Debian binary packages.
//
// A .deb is an ar archive holding three members: debian-binary with the
// format version, control.tar with the package metadata and maintainer
// scripts, and data.tar with the installed files. Both tar members may
// be compressed.
//
// Reading:
//   - ArFile exposes the raw ar members.
//   - DebFile locates the standard members, decompresses them (gzip, xz,
//     lzma, bzip2 or none) and gives access to the control paragraph,
//     md5sums, maintainer scripts and the packaged changelog.
//
// Writing:
//   - Package describes a package in memory (metadata, scripts, files) and
//     renders a valid .deb with WriteTo.
//
// Reference: deb(5)
package debfile
