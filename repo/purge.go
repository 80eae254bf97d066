package repo

import (
	"regexp"
	"sort"

	"github.com/etnz/go-debian/debfile"
	"github.com/etnz/go-debian/version"
)

// PurgeFilter selects the packages considered by Purge. Nil patterns match
// everything.
type PurgeFilter struct {
	Name    *regexp.Regexp
	Version *regexp.Regexp
	Arch    *regexp.Regexp
	// KeepMax is the number of versions retained per name and
	// architecture. A negative value removes every matching package.
	KeepMax int
	// ByUpstream counts upstream versions instead of full versions: all
	// revisions of a retained upstream version are kept.
	ByUpstream bool
}

func (f PurgeFilter) match(p *debfile.Package) bool {
	m := p.Metadata
	return (f.Name == nil || f.Name.MatchString(m.Package)) &&
		(f.Version == nil || f.Version.MatchString(m.Version)) &&
		(f.Arch == nil || f.Arch.MatchString(m.Architecture))
}

func compareVersions(a, b string) int {
	c, err := version.Compare(a, b)
	if err != nil {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	}
	return c
}

// Purge removes old packages selected by f and returns them.
func (r *Repository) Purge(f PurgeFilter) []*debfile.Package {
	type groupKey struct{ name, arch string }
	groups := make(map[groupKey][]*debfile.Package)
	for _, p := range r.Packages {
		if f.match(p) {
			k := groupKey{p.Metadata.Package, p.Metadata.Architecture}
			groups[k] = append(groups[k], p)
		}
	}

	removed := make(map[*debfile.Package]bool)
	for _, pkgs := range groups {
		unit := func(p *debfile.Package) string {
			if f.ByUpstream {
				return p.UpstreamVersion()
			}
			return p.Metadata.Version
		}
		var units []string
		seen := make(map[string]bool)
		for _, p := range pkgs {
			if u := unit(p); !seen[u] {
				seen[u] = true
				units = append(units, u)
			}
		}
		sort.Slice(units, func(i, j int) bool { return compareVersions(units[i], units[j]) > 0 })

		keep := make(map[string]bool)
		for i, u := range units {
			if f.KeepMax >= 0 && i < f.KeepMax {
				keep[u] = true
			}
		}
		for _, p := range pkgs {
			if !keep[unit(p)] {
				removed[p] = true
			}
		}
	}

	var kept, out []*debfile.Package
	for _, p := range r.Packages {
		if removed[p] {
			delete(r.debs, p)
			delete(r.stanzas, p)
			out = append(out, p)
		} else {
			kept = append(kept, p)
		}
	}
	r.Packages = kept
	if len(out) > 0 {
		r.logger().Info("packages purged", "removed", len(out), "kept", len(kept))
	}
	return out
}
