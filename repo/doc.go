// Package repo assembles flat and hierarchical APT repositories in memory.
//
// A Repository is a set of packages plus the metadata of its Release file.
// Writing it produces the .deb files, the Packages index (plain, gzip and
// xz), the Release file and, when a signing key is set, the clearsigned
// InRelease file together with the public key.
//
// Repositories can be read back from a directory or a tar.gz stream, and
// VerifyDir checks the InRelease signature and the checksums of every
// index it lists.
//
// Reference: https://wiki.debian.org/DebianRepository/Format
package repo
