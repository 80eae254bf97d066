package repo

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

const twoRecords = `Package: hello
Version: 2.10-3
Depends: libc6 (>= 2.34)
Description: example package
 based on GNU hello
 .
 It greets.

Package: hello
Version: 2.10-3
Architecture: arm64
Tag: a
Tag: b
`

func readAll(t *testing.T, f *PackageFile) [][]PackageField {
	t.Helper()
	var out [][]PackageField
	for {
		fields, err := f.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		out = append(out, fields)
	}
}

func TestPackageFile(t *testing.T) {
	records := readAll(t, NewPackageFile("Packages", strings.NewReader(twoRecords)))
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	desc := records[0][3]
	if desc.Name != "Description" || desc.Value != "example package\nbased on GNU hello\n\nIt greets." {
		t.Errorf("unexpected description %+v", desc)
	}
	second := records[1]
	if len(second) != 5 || second[3] != (PackageField{"Tag", "a"}) || second[4] != (PackageField{"Tag", "b"}) {
		t.Errorf("duplicate fields not kept in order: %+v", second)
	}
}

func TestPackageFileErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
		msg   string
	}{
		{"leading blank line", "\nPackage: a\n", 1, "expected package record"},
		{"double blank line", "Package: a\n\n\nPackage: b\n", 3, "expected package record"},
		{"not a field", "Package: a\nnonsense\n", 2, "expected package field"},
		{"continuation first", " orphan\n", 1, "expected package field"},
		{"field name", "Package: a\n-Bad: x\n", 2, "expected package field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewPackageFile("Packages", strings.NewReader(tt.input))
			var err error
			for err == nil {
				_, err = f.Next()
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected a *ParseError, got %v", err)
			}
			if perr.Line != tt.line || perr.Msg != tt.msg {
				t.Errorf("got %v, want line %d %q", perr, tt.line, tt.msg)
			}
			if want := "Packages:"; !strings.HasPrefix(perr.Error(), want) {
				t.Errorf("error %q lacks the file name", perr.Error())
			}
			if _, again := f.Next(); again != err {
				t.Errorf("error not sticky: %v", again)
			}
		})
	}
}

func TestOpenPackageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Packages")
	if err := os.WriteFile(path, []byte(twoRecords), 0644); err != nil {
		t.Fatal(err)
	}
	f, err := OpenPackageFile(path)
	if err != nil {
		t.Fatalf("OpenPackageFile failed: %v", err)
	}
	if n := len(readAll(t, f)); n != 2 {
		t.Errorf("got %d records, want 2", n)
	}
	if _, err := OpenPackageFile(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}
