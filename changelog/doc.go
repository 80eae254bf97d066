// Package changelog reads and writes debian/changelog files.
//
// A changelog is a sequence of blocks, newest first:
//
//	hello (2.10-3) unstable; urgency=medium
//
//	  * Fix the frobnicator.
//
//	 -- Jane Doe <jane@example.org>  Sat, 15 Jul 2006 11:11:08 +0200
//
// Parsing is lenient by default: lines that do not fit the format are
// logged and kept so that formatting the changelog reproduces the input.
// [WithStrict] turns these warnings into errors.
//
// Reference: https://manpages.debian.org/unstable/dpkg-dev/deb-changelog.5.en.html
package changelog
