package copyright

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesParagraph(t *testing.T) {
	fp, err := NewFilesParagraph([]string{"*"}, "Foo", License{Synopsis: "ISC"})
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, fp.Files())
	assert.True(t, fp.Matches("foo/bar.cc"))
	assert.True(t, fp.Matches("Makefile"))

	require.NoError(t, fp.SetFiles([]string{"debian/*"}))
	v, _ := fp.Get("files")
	assert.Equal(t, "debian/*", v)
	assert.False(t, fp.Matches("Makefile"))
	assert.True(t, fp.Matches("debian/rules"))

	require.NoError(t, fp.SetFiles([]string{"Makefile", "foo/*"}))
	v, _ = fp.Get("Files")
	assert.Equal(t, "Makefile foo/*", v)
	assert.True(t, fp.Matches("foo/bar.cc"))
	assert.True(t, fp.Matches("Makefile"))
	assert.False(t, fp.Matches("debian/rules"))

	assert.Error(t, fp.SetFiles(nil))
	assert.Error(t, fp.SetFiles([]string{`bad\x`}))

	require.NoError(t, fp.SetLicense(License{Synopsis: "ISC", Text: "[LICENSE TEXT]"}))
	v, _ = fp.Get("License")
	assert.Equal(t, "ISC\n [LICENSE TEXT]", v)
	assert.Equal(t, License{Synopsis: "ISC", Text: "[LICENSE TEXT]"}, fp.License())
	assert.Error(t, fp.SetLicense(License{}))

	assert.ErrorIs(t, fp.Set("Files", "x"), ErrRestrictedField)
	assert.ErrorIs(t, fp.Set("license", "x"), ErrRestrictedField)
	require.NoError(t, fp.Set("X-Comment", "free form"))
	v, _ = fp.Get("x-comment")
	assert.Equal(t, "free form", v)
}

func TestFilesParagraphWhitespace(t *testing.T) {
	c, err := ParseString("Format: " + CurrentFormat + "\n\nFiles: foo/*\tbar/*\n\tbaz/*\n quux/*\nCopyright: Foo\nLicense: ISC\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"foo/*", "bar/*", "baz/*", "quux/*"}, c.FilesParagraphs()[0].Files())
}

func TestNewFilesParagraphRequired(t *testing.T) {
	_, err := NewFilesParagraph([]string{"*"}, "foo", License{})
	assert.Error(t, err)
	_, err = NewFilesParagraph([]string{"*"}, "", License{Synopsis: "ISC"})
	assert.ErrorIs(t, err, ErrFormat)
	_, err = NewFilesParagraph(nil, "foo", License{Synopsis: "ISC"})
	assert.ErrorIs(t, err, ErrFormat)
}

func TestLicenseParagraph(t *testing.T) {
	lp, err := NewLicenseParagraph(License{Synopsis: "GPL-2"})
	require.NoError(t, err)
	assert.Equal(t, License{Synopsis: "GPL-2"}, lp.License())
	assert.Equal(t, "", lp.Comment())

	require.NoError(t, lp.SetComment("Some comment."))
	assert.Equal(t, "Some comment.", lp.Comment())
	v, _ := lp.Get("comment")
	assert.Equal(t, "Some comment.", v)
	require.NoError(t, lp.SetComment(""))
	_, ok := lp.Get("Comment")
	assert.False(t, ok)

	require.NoError(t, lp.SetLicense(License{Synopsis: "GPL-2+", Text: "[LICENSE TEXT]"}))
	v, _ = lp.Get("license")
	assert.Equal(t, "GPL-2+\n [LICENSE TEXT]", v)

	assert.ErrorIs(t, lp.Set("Files", "foo/*"), ErrRestrictedField)
}

func TestHeader(t *testing.T) {
	h := New().Header()
	assert.Equal(t, CurrentFormat, h.Format())
	assert.Error(t, h.SetFormat(""))

	require.NoError(t, h.SetUpstreamName("Foo Bar"))
	assert.Equal(t, "Foo Bar", h.UpstreamName())
	assert.ErrorContains(t, h.SetUpstreamName("Foo Bar\n Baz"), "must be single line")

	require.NoError(t, h.SetUpstreamContact([]string{"Foo Bar <foo@bar.com>"}))
	assert.Equal(t, []string{"Foo Bar <foo@bar.com>"}, h.UpstreamContact())
	v, _ := h.Get("Upstream-Contact")
	assert.Equal(t, "Foo Bar <foo@bar.com>", v)

	require.NoError(t, h.SetUpstreamContact([]string{"Foo Bar <foo@bar.com>", "http://bar.com/foo"}))
	assert.Equal(t, []string{"Foo Bar <foo@bar.com>", "http://bar.com/foo"}, h.UpstreamContact())
	v, _ = h.Get("upstream-contact")
	assert.Equal(t, "\n Foo Bar <foo@bar.com>\n http://bar.com/foo", v)

	_, ok := h.License()
	assert.False(t, ok)
	require.NoError(t, h.SetLicense(&License{Synopsis: "GPL-2+"}))
	l, ok := h.License()
	assert.True(t, ok)
	assert.Equal(t, License{Synopsis: "GPL-2+"}, l)
	require.NoError(t, h.SetLicense(nil))
	_, ok = h.Get("license")
	assert.False(t, ok)

	assert.ErrorIs(t, h.Set("format", "x"), ErrRestrictedField)
	require.NoError(t, h.Set("Upstream-Donate", "https://example.org"))
	v, _ = h.Get("upstream-donate")
	assert.Equal(t, "https://example.org", v)
}

func TestHeaderUpstreamContactRead(t *testing.T) {
	for _, contact := range []string{
		"Foo Bar <foo@bar.com>\n http://bar.com/foo",
		"\n Foo Bar <foo@bar.com>\n http://bar.com/foo",
	} {
		c, err := ParseString("Format: " + CurrentFormat + "\nUpstream-Contact: " + contact + "\n")
		require.NoError(t, err)
		assert.Equal(t, []string{"Foo Bar <foo@bar.com>", "http://bar.com/foo"}, c.Header().UpstreamContact())
	}
}
