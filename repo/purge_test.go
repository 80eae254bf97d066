package repo

import (
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/etnz/go-debian/debfile"
)

func versions(pkgs []*debfile.Package) string {
	var vs []string
	for _, p := range pkgs {
		vs = append(vs, p.Metadata.Package+"="+p.Metadata.Version+"/"+p.Metadata.Architecture)
	}
	sort.Strings(vs)
	return strings.Join(vs, " ")
}

func purgeFixture() *Repository {
	r := &Repository{}
	for _, v := range []string{"1.0-1", "1.0-2", "1.1-1", "2.0-1", "2.0-10"} {
		r.AddOverwrite(newTestPackage("foo", v, "amd64"))
	}
	r.AddOverwrite(newTestPackage("foo", "1.0-1", "arm64"))
	r.AddOverwrite(newTestPackage("bar", "0.1-1", "all"))
	return r
}

func TestPurge(t *testing.T) {
	tests := []struct {
		name        string
		filter      PurgeFilter
		wantRemoved string
	}{
		{
			name:        "keep two full versions",
			filter:      PurgeFilter{Name: regexp.MustCompile(`^foo$`), KeepMax: 2},
			wantRemoved: "foo=1.0-1/amd64 foo=1.0-2/amd64 foo=1.1-1/amd64",
		},
		{
			name:        "keep one upstream version",
			filter:      PurgeFilter{Arch: regexp.MustCompile(`amd64`), KeepMax: 1, ByUpstream: true},
			wantRemoved: "foo=1.0-1/amd64 foo=1.0-2/amd64 foo=1.1-1/amd64",
		},
		{
			name:        "remove every match",
			filter:      PurgeFilter{Version: regexp.MustCompile(`^1\.0-`), KeepMax: -1},
			wantRemoved: "foo=1.0-1/amd64 foo=1.0-1/arm64 foo=1.0-2/amd64",
		},
		{
			name:        "nothing above the limit",
			filter:      PurgeFilter{KeepMax: 10},
			wantRemoved: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := purgeFixture()
			total := len(r.Packages)
			removed := r.Purge(tt.filter)
			if got := versions(removed); got != tt.wantRemoved {
				t.Errorf("removed %q, want %q", got, tt.wantRemoved)
			}
			if len(r.Packages)+len(removed) != total {
				t.Errorf("kept %d + removed %d != %d", len(r.Packages), len(removed), total)
			}
			for _, p := range removed {
				if r.Get(p.Metadata.Package, p.Metadata.Version, p.Metadata.Architecture) != nil {
					t.Errorf("%s %s still present", p.Metadata.Package, p.Metadata.Version)
				}
			}
		})
	}
}
