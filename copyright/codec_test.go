package copyright

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineBased(t *testing.T) {
	assert.Empty(t, LineBased.Parse(""))
	assert.Equal(t, []string{"Foo Bar <foo@bar.com>"}, LineBased.Parse("Foo Bar <foo@bar.com>"))
	assert.Equal(t, []string{"Foo Bar <foo@bar.com>"}, LineBased.Parse("\n Foo Bar <foo@bar.com>"))
	assert.Equal(t, []string{"Foo Bar <foo@bar.com>", "http://bar.com/foo"},
		LineBased.Parse("\n Foo Bar <foo@bar.com>\n http://bar.com/foo"))

	s, err := LineBased.Format(nil)
	require.NoError(t, err)
	assert.Equal(t, "", s)

	s, err = LineBased.Format([]string{"Foo Bar <foo@bar.com>"})
	require.NoError(t, err)
	assert.Equal(t, "Foo Bar <foo@bar.com>", s)

	s, err = LineBased.Format([]string{" Foo Bar <foo@bar.com>\t", " http://bar.com/foo  "})
	require.NoError(t, err)
	assert.Equal(t, "\n Foo Bar <foo@bar.com>\n http://bar.com/foo", s)

	_, err = LineBased.Format([]string{"foo", " \t", "bar"})
	assert.ErrorContains(t, err, "values must not be empty")
	_, err = LineBased.Format([]string{"bar", " Foo Bar <foo@bar.com>\n http://bar.com/foo  "})
	assert.ErrorContains(t, err, "values must not contain newlines")
}

func TestSpaceSeparated(t *testing.T) {
	assert.Empty(t, SpaceSeparated.Parse(" "))
	assert.Equal(t, []string{"bar"}, SpaceSeparated.Parse(" bar "))
	assert.Equal(t, []string{"bar", "baz", "quux"}, SpaceSeparated.Parse(" bar baz quux \t "))

	s, err := SpaceSeparated.Format([]string{"foo", "bar", "baz"})
	require.NoError(t, err)
	assert.Equal(t, "foo bar baz", s)

	_, err = SpaceSeparated.Format([]string{"foo", "", "bar"})
	assert.ErrorContains(t, err, "values must not be empty")
	_, err = SpaceSeparated.Format([]string{"foo", " baz quux "})
	assert.ErrorContains(t, err, "values must not contain whitespace")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestMultiline(t *testing.T) {
	assert.Equal(t, "Foo", FormatMultiline("Foo"))
	assert.Equal(t, "Foo\n Bar baz\n .\n Quux.", FormatMultiline("Foo\nBar baz\n\nQuux."))
	assert.Equal(t, "Foo\nBar baz\n\nQuux.", ParseMultiline("Foo\n Bar baz\n .\n Quux."))
	assert.Equal(t, "", FormatMultilineLines(nil))
	assert.Equal(t, []string{"Foo", "Bar baz", "", "Quux."}, ParseMultilineAsLines("Foo\n Bar baz\n .\n Quux."))
	assert.Empty(t, ParseMultilineAsLines(""))

	text := "GPL-2+\n" + gplTwoPlusText
	assert.Equal(t, text, ParseMultiline(FormatMultiline(text)))
}

func TestLicense(t *testing.T) {
	l := License{Synopsis: "GPL-2+"}
	assert.Equal(t, "GPL-2+", l.String())

	_, err := NewLicense("foo\n bar", "")
	assert.ErrorContains(t, err, "must be single line")

	l, err = NewLicense("GPL-2+", "Foo bar.\n\nBaz.\nQuux\n\nBang and such.")
	require.NoError(t, err)
	assert.Equal(t, "GPL-2+\n Foo bar.\n .\n Baz.\n Quux\n .\n Bang and such.", l.String())
	assert.Equal(t, l, ParseLicense(l.String()))
}

func TestGlobsToRegexp(t *testing.T) {
	tests := []struct {
		globs []string
		match []string
		miss  []string
	}{
		{nil, []string{""}, []string{"foo"}},
		{[]string{"*"}, []string{"foo", "foo/bar/baz"}, nil},
		{[]string{"*.in"}, []string{"Makefile.in", "foo/bar/Makefile.in"}, []string{"foo", "in", "foo/bar/in"}},
		{[]string{"*/Makefile.in"}, []string{"foo/Makefile.in", "foo/bar/Makefile.in"}, []string{"Makefile.in", "foo/bar/in"}},
		{
			[]string{"foo/messages.??_??.txt"},
			[]string{"foo/messages.en_US.txt", "foo/messages.ja_JP.txt"},
			[]string{"messages.en_US.txt", "foo/messages_ja_JP.txt"},
		},
		{
			[]string{"Makefile.in", "foo/bar"},
			[]string{"Makefile.in", "foo/bar"},
			[]string{"foo/Makefile.in", "foo/barbaz", "foo/bar/baz", "a/foo/bar", "Makefile.in.orig"},
		},
		{
			[]string{"debian/*", "*.Debian", "translations/fr_??/*"},
			[]string{"debian/rules", "README.Debian", "foo/bar/README.Debian", "translations/fr_FR/a.txt", "translations/fr_BE/a.txt"},
			[]string{"other/debian/rules", "translations/en_US/a.txt"},
		},
		{
			[]string{`foo/bar\\baz.c`, `bar/quux\\`},
			[]string{`foo/bar\baz.c`, `bar/quux\`},
			[]string{"foo/bar.baz.c", "foo/bar/baz.c", "bar/quux"},
		},
		{[]string{`a\*b`, `c\?`}, []string{"a*b", "c?"}, []string{"axb", "cd"}},
		{[]string{"données/*"}, []string{"données/é.txt"}, []string{"donnees/x"}},
	}
	for _, tt := range tests {
		re, err := GlobsToRegexp(tt.globs)
		require.NoError(t, err, "%q", tt.globs)
		for _, m := range tt.match {
			assert.True(t, re.MatchString(m), "%q should match %q", tt.globs, m)
		}
		for _, m := range tt.miss {
			assert.False(t, re.MatchString(m), "%q should not match %q", tt.globs, m)
		}
	}
}

func TestGlobsToRegexpInvalid(t *testing.T) {
	_, err := GlobsToRegexp([]string{`foo/a\b.c`})
	assert.ErrorContains(t, err, `invalid escape sequence: \b`)
	_, err = GlobsToRegexp([]string{`foo/bar\`})
	assert.ErrorContains(t, err, "single backslash not allowed at end")
}
