// Package deb822 reads and writes the RFC822-like paragraph format used by
// Debian control files: debian/control, .dsc, .changes, Packages, Sources,
// Release and friends.
//
// # Design Philosophy
//
// Two views of the same text are offered. Paragraph is a plain ordered
// dictionary, convenient for reading and generating files. File is a
// format preserving view: comments, odd whitespace and even syntax errors
// are kept so that an untouched file dumps back byte for byte, and edits
// only rewrite the fields they touch.
//
// # Features
//
// Parsing:
//   - Stream paragraphs from any io.Reader with Decoder.
//   - Strip and verify OpenPGP clearsigned input (InRelease, .dsc, .changes).
//   - Case-insensitive, case-preserving field names.
//
// Interpretation:
//   - Relationship fields (Depends, Build-Depends, ...) as Relations.
//   - Checksum lists (Files, Checksums-Sha256, SHA256, ...) as FileEntry.
//   - Typed views for Packages, Sources, Dsc, Changes, Release and Removals.
//
// Reference: https://manpages.debian.org/unstable/dpkg-dev/deb822.5.en.html
package deb822
