package deb822

import (
	"log/slog"
	"regexp"
	"strings"
)

// Relation is a single package relationship, such as
// "libc6:amd64 (>= 2.36) [linux-any] <!nocheck>".
//
// Reference: https://www.debian.org/doc/debian-policy/ch-relationships.html
type Relation struct {
	// Name is the package name. For input that cannot be parsed it holds the
	// raw text and every other field is empty.
	Name string
	// ArchQual is the multi-arch qualifier ("any", "native", an architecture).
	ArchQual string
	// Version is the optional version constraint.
	Version *VersionConstraint
	// Arch is the optional architecture restriction list.
	Arch []ArchRestriction
	// Restrictions is the build profile restriction formula: a disjunction
	// of conjunctions.
	//
	// Reference: https://wiki.debian.org/BuildProfileSpec
	Restrictions [][]BuildRestriction
}

// VersionConstraint is a relation operator and version.
type VersionConstraint struct {
	Op      string
	Version string
}

// ArchRestriction is an element of an architecture list; Enabled is false
// for negated ("!arch") entries.
type ArchRestriction struct {
	Enabled bool
	Arch    string
}

// BuildRestriction is a build profile term; Enabled is false for "!profile".
type BuildRestriction struct {
	Enabled bool
	Profile string
}

// Alternatives are relations separated by "|"; any of them satisfies.
type Alternatives []Relation

// Relations is a comma separated relationship field.
type Relations []Alternatives

var (
	relationRe = regexp.MustCompile(`^\s*([a-zA-Z0-9][a-zA-Z0-9.+\-]*)` +
		`(?::([a-zA-Z0-9][a-zA-Z0-9-]*))?` +
		`(?:\s*\(\s*([>=<]+)\s*([0-9a-zA-Z:\-+~.]+)\s*\))?` +
		`(?:\s*\[([\s!\w\-]+)\])?\s*` +
		`(<.+>)?\s*$`)
	commaSepRe       = regexp.MustCompile(`\s*,\s*`)
	pipeSepRe        = regexp.MustCompile(`\s*\|\s*`)
	restrictionSepRe = regexp.MustCompile(`>\s*<`)
)

// PackagesRelationFields are the relationship fields of binary packages.
var PackagesRelationFields = []string{
	"Depends", "Pre-Depends", "Recommends", "Suggests", "Breaks",
	"Conflicts", "Provides", "Replaces", "Enhances", "Built-Using",
}

// SourcesRelationFields are the relationship fields of source packages.
var SourcesRelationFields = []string{
	"Build-Depends", "Build-Depends-Indep", "Build-Depends-Arch",
	"Build-Conflicts", "Build-Conflicts-Indep", "Build-Conflicts-Arch",
	"Binary",
}

// ParseRelations parses a relationship field. Relations that do not follow
// the syntax are kept with their raw text as Name and a warning is logged.
func ParseRelations(s string) Relations {
	return parseRelations(s, slog.Default())
}

func parseRelations(s string, logger *slog.Logger) Relations {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var rels Relations
	for _, group := range commaSepRe.Split(s, -1) {
		if strings.TrimSpace(group) == "" {
			continue
		}
		var alts Alternatives
		for _, raw := range pipeSepRe.Split(strings.TrimSpace(group), -1) {
			alts = append(alts, parseRelation(raw, logger))
		}
		rels = append(rels, alts)
	}
	return rels
}

func parseRelation(raw string, logger *slog.Logger) Relation {
	m := relationRe.FindStringSubmatch(raw)
	if m == nil {
		logger.Warn("cannot parse package relationship, returning it raw", "relation", raw)
		return Relation{Name: raw}
	}
	r := Relation{Name: m[1], ArchQual: m[2]}
	if m[3] != "" {
		r.Version = &VersionConstraint{Op: m[3], Version: m[4]}
	}
	if m[5] != "" {
		for _, a := range strings.Fields(m[5]) {
			if strings.HasPrefix(a, "!") {
				r.Arch = append(r.Arch, ArchRestriction{Enabled: false, Arch: a[1:]})
			} else {
				r.Arch = append(r.Arch, ArchRestriction{Enabled: true, Arch: a})
			}
		}
	}
	if m[6] != "" {
		inner := strings.TrimSuffix(strings.TrimPrefix(m[6], "<"), ">")
		for _, group := range restrictionSepRe.Split(inner, -1) {
			var terms []BuildRestriction
			for _, t := range strings.Fields(group) {
				if strings.HasPrefix(t, "!") {
					terms = append(terms, BuildRestriction{Enabled: false, Profile: t[1:]})
				} else {
					terms = append(terms, BuildRestriction{Enabled: true, Profile: t})
				}
			}
			r.Restrictions = append(r.Restrictions, terms)
		}
	}
	return r
}

// String formats the relation in canonical form.
func (r Relation) String() string {
	var b strings.Builder
	b.WriteString(r.Name)
	if r.ArchQual != "" {
		b.WriteString(":")
		b.WriteString(r.ArchQual)
	}
	if r.Version != nil {
		b.WriteString(" (")
		b.WriteString(r.Version.Op)
		b.WriteString(" ")
		b.WriteString(r.Version.Version)
		b.WriteString(")")
	}
	if len(r.Arch) > 0 {
		b.WriteString(" [")
		for i, a := range r.Arch {
			if i > 0 {
				b.WriteString(" ")
			}
			if !a.Enabled {
				b.WriteString("!")
			}
			b.WriteString(a.Arch)
		}
		b.WriteString("]")
	}
	for _, group := range r.Restrictions {
		b.WriteString(" <")
		for i, t := range group {
			if i > 0 {
				b.WriteString(" ")
			}
			if !t.Enabled {
				b.WriteString("!")
			}
			b.WriteString(t.Profile)
		}
		b.WriteString(">")
	}
	return b.String()
}

func (a Alternatives) String() string {
	parts := make([]string, len(a))
	for i, r := range a {
		parts[i] = r.String()
	}
	return strings.Join(parts, " | ")
}

func (rs Relations) String() string {
	parts := make([]string, len(rs))
	for i, a := range rs {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// Names returns the package names mentioned, in order, without duplicates.
func (rs Relations) Names() []string {
	seen := make(map[string]bool)
	var out []string
	for _, alts := range rs {
		for _, r := range alts {
			if !seen[r.Name] {
				seen[r.Name] = true
				out = append(out, r.Name)
			}
		}
	}
	return out
}
