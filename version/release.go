package version

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Codenames lists Debian release codenames from oldest to newest.
// "sid" always sorts last.
var Codenames = []string{
	"buzz", "rex", "bo", "hamm", "slink", "potato", "woody", "sarge",
	"etch", "lenny", "squeeze", "wheezy", "jessie", "stretch", "buster",
	"bullseye", "bookworm", "trixie", "forky", "duke", "sid",
}

// ErrUnknownRelease is returned for codenames missing from Codenames.
var ErrUnknownRelease = errors.New("unknown release codename")

// Release is a Debian release identified by its codename.
type Release struct {
	Name  string
	order int
}

// LookupRelease returns the release named name (case-insensitive).
func LookupRelease(name string) (Release, error) {
	lower := strings.ToLower(name)
	for i, n := range Codenames {
		if n == lower {
			return Release{Name: n, order: i}, nil
		}
	}
	return Release{}, errors.Wrapf(ErrUnknownRelease, "%q", name)
}

func (r Release) String() string { return r.Name }

// Compare orders releases chronologically.
func (r Release) Compare(other Release) int {
	return sign(r.order - other.order)
}
