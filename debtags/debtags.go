// Package debtags reads and queries Debtags package tag databases.
//
// A database maps packages to tags ("facet::tag") and tags back to
// packages. The text format has one line per group of packages sharing a
// tag set:
//
//	apt, aptitude: admin::package-management, role::program
//
// Reference: https://wiki.debian.org/Debtags
package debtags

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

type set map[string]struct{}

func (s set) add(v string) { s[v] = struct{}{} }

func (s set) has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s set) clone() set {
	c := make(set, len(s))
	for v := range s {
		c.add(v)
	}
	return c
}

// DB is a package/tag database kept in both directions.
type DB struct {
	db  map[string]set // package -> tags
	rdb map[string]set // tag -> packages
}

// New returns an empty database.
func New() *DB {
	return &DB{db: make(map[string]set), rdb: make(map[string]set)}
}

var lineRe = regexp.MustCompile(`^(.+?)(?::?\s*|:\s+(.+?)\s*)$`)

// Read loads a tag database. When filter is non-nil only the tags it
// accepts are kept. Packages already in the database are replaced.
func (d *DB) Read(r io.Reader, filter func(tag string) bool) error {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for s.Scan() {
		line++
		text := strings.TrimRight(s.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		m := lineRe.FindStringSubmatch(text)
		if m == nil {
			return errors.Newf("line %d: malformed tag entry %q", line, text)
		}
		var tags []string
		if m[2] != "" {
			for _, t := range strings.Split(m[2], ", ") {
				if filter == nil || filter(t) {
					tags = append(tags, t)
				}
			}
		}
		for _, pkg := range strings.Split(m[1], ", ") {
			d.Insert(pkg, tags...)
		}
	}
	return errors.Wrap(s.Err(), "reading tag database")
}

// Insert sets the tags of pkg.
func (d *DB) Insert(pkg string, tags ...string) {
	if old, ok := d.db[pkg]; ok {
		for t := range old {
			if ps := d.rdb[t]; ps != nil {
				delete(ps, pkg)
				if len(ps) == 0 {
					delete(d.rdb, t)
				}
			}
		}
	}
	ts := make(set, len(tags))
	for _, t := range tags {
		ts.add(t)
		if d.rdb[t] == nil {
			d.rdb[t] = make(set)
		}
		d.rdb[t].add(pkg)
	}
	d.db[pkg] = ts
}

// Write outputs the database in the text format, sorted by package.
func (d *DB) Write(w io.Writer) error {
	return write(w, d.db)
}

func write(w io.Writer, m map[string]set) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	bw := bufio.NewWriter(w)
	for _, k := range keys {
		if _, err := fmt.Fprintf(bw, "%s: %s\n", k, strings.Join(m[k].sorted(), ", ")); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Reverse returns a database where packages and tags swap roles. The
// result shares no state with d.
func (d *DB) Reverse() *DB {
	return &DB{db: cloneMap(d.rdb), rdb: cloneMap(d.db)}
}

// Copy returns an independent copy.
func (d *DB) Copy() *DB {
	return &DB{db: cloneMap(d.db), rdb: cloneMap(d.rdb)}
}

func cloneMap(m map[string]set) map[string]set {
	c := make(map[string]set, len(m))
	for k, v := range m {
		c[k] = v.clone()
	}
	return c
}

// HasPackage reports whether pkg is in the database.
func (d *DB) HasPackage(pkg string) bool {
	_, ok := d.db[pkg]
	return ok
}

// HasTag reports whether any package carries tag.
func (d *DB) HasTag(tag string) bool {
	_, ok := d.rdb[tag]
	return ok
}

// TagsOf returns the sorted tags of pkg.
func (d *DB) TagsOf(pkg string) []string { return d.db[pkg].sorted() }

// PackagesOf returns the sorted packages carrying tag.
func (d *DB) PackagesOf(tag string) []string { return d.rdb[tag].sorted() }

// TagsOfPackages returns the tags carried by any of pkgs.
func (d *DB) TagsOfPackages(pkgs ...string) []string {
	out := make(set)
	for _, p := range pkgs {
		for t := range d.db[p] {
			out.add(t)
		}
	}
	return out.sorted()
}

// PackagesOfTags returns the packages carrying all of tags.
func (d *DB) PackagesOfTags(tags ...string) []string {
	if len(tags) == 0 {
		return []string{}
	}
	out := d.rdb[tags[0]].clone()
	for _, t := range tags[1:] {
		ps := d.rdb[t]
		for p := range out {
			if !ps.has(p) {
				delete(out, p)
			}
		}
	}
	return out.sorted()
}

// Packages returns every package, sorted.
func (d *DB) Packages() []string { return keys(d.db) }

// Tags returns every tag, sorted.
func (d *DB) Tags() []string { return keys(d.rdb) }

func keys(m map[string]set) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// PackageCount returns the number of packages.
func (d *DB) PackageCount() int { return len(d.db) }

// TagCount returns the number of distinct tags.
func (d *DB) TagCount() int { return len(d.rdb) }

// Card returns the number of packages carrying tag.
func (d *DB) Card(tag string) int { return len(d.rdb[tag]) }

// Discriminance returns the minimum number of packages eliminated by
// selecting only those carrying tag or only those not carrying it.
func (d *DB) Discriminance(tag string) int {
	n := d.Card(tag)
	return min(n, d.PackageCount()-n)
}

// ChoosePackages returns the sub-database restricted to pkgs. Unknown
// packages are ignored.
func (d *DB) ChoosePackages(pkgs ...string) *DB {
	res := New()
	for _, p := range pkgs {
		if tags, ok := d.db[p]; ok {
			res.Insert(p, tags.sorted()...)
		}
	}
	return res
}

// FilterPackages returns the packages accepted by keep with their tags.
func (d *DB) FilterPackages(keep func(pkg string) bool) *DB {
	return d.FilterPackagesTags(func(pkg string, _ []string) bool { return keep(pkg) })
}

// FilterPackagesTags is FilterPackages with access to the tags.
func (d *DB) FilterPackagesTags(keep func(pkg string, tags []string) bool) *DB {
	res := New()
	for _, p := range d.Packages() {
		tags := d.db[p].sorted()
		if keep(p, tags) {
			res.Insert(p, tags...)
		}
	}
	return res
}

// FilterTags removes the tags rejected by keep from every package.
// Packages left without tags are kept.
func (d *DB) FilterTags(keep func(tag string) bool) *DB {
	res := New()
	for p, tags := range d.db {
		var kept []string
		for t := range tags {
			if keep(t) {
				kept = append(kept, t)
			}
		}
		res.Insert(p, kept...)
	}
	return res
}

var facetRe = regexp.MustCompile(`^([^:]+).+`)

// Facets returns a copy where every tag is replaced by its facet, e.g.
// "role::program" by "role".
func (d *DB) Facets() *DB {
	res := New()
	for p, tags := range d.db {
		fs := make(set)
		for t := range tags {
			fs.add(facetRe.ReplaceAllString(t, "$1"))
		}
		res.Insert(p, fs.sorted()...)
	}
	return res
}

// RelevanceIndex scores how characteristic tag is of d, a subset of full:
// the squared cardinality in d divided by the cardinality in full.
func (d *DB) RelevanceIndex(tag string, full *DB) float64 {
	fc := full.Card(tag)
	if fc == 0 {
		return 0
	}
	sc := float64(d.Card(tag))
	return sc * sc / float64(fc)
}

// TagsByRelevance returns the tags of d sorted by decreasing relevance
// against full. Ties are ordered by name.
func (d *DB) TagsByRelevance(full *DB) []string {
	tags := d.Tags()
	score := make(map[string]float64, len(tags))
	for _, t := range tags {
		score[t] = d.RelevanceIndex(t, full)
	}
	sort.SliceStable(tags, func(i, j int) bool {
		return score[tags[i]] > score[tags[j]]
	})
	return tags
}

// IdealTagset returns the longest prefix of tags whose packages form a
// comfortable result set, around 15 packages. It always contains at least
// the first tag.
func (d *DB) IdealTagset(tags []string) []string {
	scoreFun := func(x int) float64 {
		return float64((x-15)*(x-15)) / float64(x)
	}
	var best []string
	minScore := 3.0
	for i := range tags {
		card := len(d.PackagesOfTags(tags[:i+1]...))
		if card == 0 {
			break
		}
		if s := scoreFun(card); s < minScore {
			minScore = s
			best = tags[:i+1]
		}
	}
	if best == nil && len(tags) > 0 {
		best = tags[:1]
	}
	return append([]string(nil), best...)
}

// Correlation tells that packages with HasTag tend to also carry
// AlsoTag, by Score.
type Correlation struct {
	HasTag  string
	AlsoTag string
	Score   float64
}

// Correlations computes, for every pair of tags, the difference between
// the share of packages carrying AlsoTag among those with HasTag and among
// those without it.
func (d *DB) Correlations() []Correlation {
	var out []Correlation
	for _, pivot := range d.Tags() {
		with := d.FilterPackagesTags(func(_ string, tags []string) bool { return contains(tags, pivot) })
		without := d.FilterPackagesTags(func(_ string, tags []string) bool { return !contains(tags, pivot) })
		for _, tag := range with.Tags() {
			if tag == pivot {
				continue
			}
			has := float64(with.Card(tag)) / float64(with.PackageCount())
			hasnt := 0.0
			if without.PackageCount() > 0 {
				hasnt = float64(without.Card(tag)) / float64(without.PackageCount())
			}
			out = append(out, Correlation{HasTag: pivot, AlsoTag: tag, Score: has - hasnt})
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Related returns the packages sharing the most tags with pkg, best first,
// excluding pkg itself. At most limit packages are returned; zero means no
// limit.
func (d *DB) Related(pkg string, limit int) []string {
	tags := d.db[pkg]
	shared := make(map[string]int)
	for t := range tags {
		for p := range d.rdb[t] {
			if p != pkg {
				shared[p]++
			}
		}
	}
	out := make([]string, 0, len(shared))
	for p := range shared {
		out = append(out, p)
	}
	sort.Strings(out)
	sort.SliceStable(out, func(i, j int) bool { return shared[out[i]] > shared[out[j]] })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
