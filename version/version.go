// Package version implements Debian package version strings: parsing,
// ordering as dpkg does, and a few helpers to derive new versions.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#s-f-version
package version

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	debversion "github.com/knqyf263/go-deb-version"
)

// ErrInvalidVersion is returned for strings that are not Debian versions.
var ErrInvalidVersion = errors.New("invalid version")

var validVersionRe = regexp.MustCompile(`^(?:(\d+):)?([A-Za-z0-9.+:~-]+?)(?:-([A-Za-z0-9+.~]+))?$`)

// Version is a parsed Debian version: [epoch:]upstream[-revision].
//
// Epoch and Revision are empty when absent, so that String returns the
// original text.
type Version struct {
	Epoch    string
	Upstream string
	Revision string
}

// Parse parses s as a Debian version.
func Parse(s string) (Version, error) {
	m := validVersionRe.FindStringSubmatch(s)
	if m == nil {
		return Version{}, errors.Wrapf(ErrInvalidVersion, "%q", s)
	}
	if m[1] == "" && strings.Contains(m[2], ":") {
		return Version{}, errors.Wrapf(ErrInvalidVersion, "%q: colon in upstream version without epoch", s)
	}
	return Version{Epoch: m[1], Upstream: m[2], Revision: m[3]}, nil
}

// MustParse is Parse for literals; it panics on invalid input.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the full version string.
func (v Version) String() string {
	var b strings.Builder
	if v.Epoch != "" {
		b.WriteString(v.Epoch)
		b.WriteString(":")
	}
	b.WriteString(v.Upstream)
	if v.Revision != "" {
		b.WriteString("-")
		b.WriteString(v.Revision)
	}
	return b.String()
}

// IsZero reports whether v is the zero Version.
func (v Version) IsZero() bool {
	return v == Version{}
}

// IsNative reports whether the version has no Debian revision.
func (v Version) IsNative() bool {
	return v.Revision == ""
}

// Compare returns -1, 0 or +1 depending on whether v sorts before, equal
// to, or after other.
func (v Version) Compare(other Version) int {
	if c := compareNumeric(v.Epoch, other.Epoch); c != 0 {
		return c
	}
	if c := verrevcmp(v.Upstream, other.Upstream); c != 0 {
		return c
	}
	return verrevcmp(v.Revision, other.Revision)
}

// Less reports whether v sorts before other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Compare parses and compares two version strings.
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// Strict validates s against the Debian Policy rules, which are tighter
// than what dpkg accepts: the upstream part must start with a digit.
func Strict(s string) error {
	if _, err := debversion.NewVersion(s); err != nil {
		return errors.Wrapf(ErrInvalidVersion, "%q: %v", s, err)
	}
	return nil
}

// compareNumeric compares decimal strings of any length; empty is zero.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

// order gives the sort weight of a non-digit character: '~' sorts before
// the end of the string, letters before everything else.
func order(s string, i int) int {
	if i >= len(s) {
		return 0
	}
	c := s[i]
	switch {
	case isDigit(c):
		return 0
	case isAlpha(c):
		return int(c)
	case c == '~':
		return -1
	default:
		return int(c) + 256
	}
}

// verrevcmp is the dpkg comparison of upstream versions and revisions.
func verrevcmp(a, b string) int {
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		for (i < len(a) && !isDigit(a[i])) || (j < len(b) && !isDigit(b[j])) {
			ac, bc := order(a, i), order(b, j)
			if ac != bc {
				return sign(ac - bc)
			}
			i++
			j++
		}
		for i < len(a) && a[i] == '0' {
			i++
		}
		for j < len(b) && b[j] == '0' {
			j++
		}
		firstDiff := 0
		for i < len(a) && isDigit(a[i]) && j < len(b) && isDigit(b[j]) {
			if firstDiff == 0 {
				firstDiff = int(a[i]) - int(b[j])
			}
			i++
			j++
		}
		if i < len(a) && isDigit(a[i]) {
			return 1
		}
		if j < len(b) && isDigit(b[j]) {
			return -1
		}
		if firstDiff != 0 {
			return sign(firstDiff)
		}
	}
	return 0
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
