package substvars

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstvars(t *testing.T) {
	s := New()
	assert.Empty(t, s.Path())

	assert.False(t, s.Has("misc:Recommends"))
	s.AddDependency("misc:Recommends", "foo (>= 1.0)")
	v, _ := s.Get("misc:Recommends")
	assert.Equal(t, "foo (>= 1.0)", v)

	s.Set("foo", "bar, golf")
	s.AddDependency("foo", "dpkg (>= 1.20.0)")
	v, _ = s.Get("foo")
	assert.Equal(t, "bar, dpkg (>= 1.20.0), golf", v)
	s.AddDependency("foo", "dpkg (>= 1.20.0)")
	v, _ = s.Get("foo")
	assert.Equal(t, "bar, dpkg (>= 1.20.0), golf", v)

	sv, ok := s.Var("foo")
	require.True(t, ok)
	assert.Equal(t, Assign, sv.Operator)
	require.NoError(t, s.SetOperator("foo", AssignDefault))
	assert.ErrorIs(t, s.SetOperator("foo", "golf"), ErrInvalidOperator)
	sv, _ = s.Var("foo")
	assert.Equal(t, AssignDefault, sv.Operator)

	// Set keeps the operator.
	s.Set("foo", "baz")
	sv, _ = s.Var("foo")
	assert.Equal(t, Var{Value: "baz", Operator: AssignDefault}, sv)

	assert.Equal(t, []string{"misc:Recommends", "foo"}, s.Keys())
	assert.True(t, s.Del("foo"))
	assert.False(t, s.Has("foo"))
	assert.False(t, s.Del("foo"))
	assert.Equal(t, 1, s.Len())
}

func TestSaveWithoutPath(t *testing.T) {
	assert.ErrorIs(t, New().Save(), ErrNoPath)
}

func TestSaveLoad(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "foo.substvars")

	_, err := Load(filename, false)
	assert.Error(t, err)

	s, err := Load(filename, true)
	require.NoError(t, err)
	s.AddDependency("misc:Depends", "bar (>= 1.0)")
	require.NoError(t, s.SetVar("foo", Var{Value: "anything goes", Operator: AssignDefault}))
	assert.Equal(t, filename, s.Path())
	require.NoError(t, s.Save())

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, "misc:Depends=bar (>= 1.0)\nfoo?=anything goes\n", string(data))

	again, err := Load(filename, false)
	require.NoError(t, err)
	v, _ := again.Var("misc:Depends")
	assert.Equal(t, Var{Value: "bar (>= 1.0)", Operator: Assign}, v)
	v, _ = again.Var("foo")
	assert.Equal(t, Var{Value: "anything goes", Operator: AssignDefault}, v)
	assert.True(t, s.Equal(again))
}

func TestRead(t *testing.T) {
	s, err := Read(strings.NewReader("# comment\n\nshlibs:Depends=libc6 (>= 2.36)\nnot an assignment\nmisc:Pre-Depends?=\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"shlibs:Depends", "misc:Pre-Depends"}, s.Keys())
	v, ok := s.Get("misc:Pre-Depends")
	assert.True(t, ok)
	assert.Empty(t, v)
}

func TestReadLongLine(t *testing.T) {
	deps := strings.TrimSuffix(strings.Repeat("libfoo (>= 1.0), ", 10000), ", ")
	s, err := Read(strings.NewReader("misc:Depends=" + deps + "\nshlibs:Depends=libc6\n"))
	require.NoError(t, err)
	got, ok := s.Get("misc:Depends")
	require.True(t, ok)
	assert.Len(t, got, len(deps))
	got, _ = s.Get("shlibs:Depends")
	assert.Equal(t, "libc6", got)
}

func TestEqual(t *testing.T) {
	a, b := New(), New()
	a.Set("foo", "bar")
	b.Set("foo", "bar")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(nil))

	require.NoError(t, b.SetOperator("foo", AssignDefault))
	assert.False(t, a.Equal(b))
}
