package version

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		full, epoch, upstream, revision string
	}{
		{"1:1.4.1-1", "1", "1.4.1", "1"},
		{"7.1.ds-1", "", "7.1.ds", "1"},
		{"10.11.1.3-2", "", "10.11.1.3", "2"},
		{"4.0.1.3.dfsg.1-2", "", "4.0.1.3.dfsg.1", "2"},
		{"0.4.23debian1", "", "0.4.23debian1", ""},
		{"1.2.10+cvs20060429-1", "", "1.2.10+cvs20060429", "1"},
		{"0.2.0-1+b1", "", "0.2.0", "1+b1"},
		{"4.3.90.1svn-r21976-1", "", "4.3.90.1svn-r21976", "1"},
		{"1.5+E-14", "", "1.5+E", "14"},
		{"20060611-0.0", "", "20060611", "0.0"},
		{"0.52.2-5.1", "", "0.52.2", "5.1"},
		{"7.0-035+1", "", "7.0", "035+1"},
		{"1.1.0+cvs20060620-1+2.6.15-8", "", "1.1.0+cvs20060620-1+2.6.15", "8"},
		{"1.1.0+cvs20060620-1+1.0", "", "1.1.0+cvs20060620", "1+1.0"},
		{"4.2.0a+stable-2sarge1", "", "4.2.0a+stable", "2sarge1"},
		{"1.8RC4b", "", "1.8RC4b", ""},
		{"0.9~rc1-1", "", "0.9~rc1", "1"},
		{"2:1.0.4+svn26-1ubuntu1", "2", "1.0.4+svn26", "1ubuntu1"},
		{"2:1.0.4~rc2-1", "2", "1.0.4~rc2", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.full, func(t *testing.T) {
			v, err := Parse(tt.full)
			require.NoError(t, err)
			assert.Equal(t, tt.epoch, v.Epoch)
			assert.Equal(t, tt.upstream, v.Upstream)
			assert.Equal(t, tt.revision, v.Revision)
			assert.Equal(t, tt.full, v.String())
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"a1:1.8.8-070403-1~priv1", "", "1.0 beta", "1:"} {
		_, err := Parse(s)
		assert.ErrorIs(t, err, ErrInvalidVersion, s)
	}
}

func TestUpdateComponents(t *testing.T) {
	v := MustParse("1:1.4.1-1")

	v.Revision = "2"
	assert.Equal(t, "1:1.4.1-2", v.String())

	v.Upstream = "1.4.2"
	assert.Equal(t, "1:1.4.2-2", v.String())

	v.Epoch = "2"
	assert.Equal(t, "2:1.4.2-2", v.String())
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a    string
		want int
		b    string
	}{
		{"0", -1, "a"},
		{"1.0", -1, "1.1"},
		{"1.2", -1, "1.11"},
		{"1.0-0.1", -1, "1.1"},
		{"1.0-0.1", -1, "1.0-1"},
		{"1.0", 0, "1.0"},
		{"1.0-0.1", 0, "1.0-0.1"},
		{"1:1.0-0.1", 0, "1:1.0-0.1"},
		{"1:1.0", 0, "1:1.0"},
		{"1.0final-5sarge1", 1, "1.0final-5"},
		{"1.0final-5", 1, "1.0a7-2"},
		{"0.9.2-5", -1, "0.9.2+cvs.1.0.dev.2004.07.28-1.5"},
		{"1:500", -1, "1:5000"},
		{"100:500", 1, "11:5000"},
		{"1.0.4-2", 1, "1.0pre7-2"},
		{"1.5~rc1", -1, "1.5"},
		{"1.5~rc1", -1, "1.5+b1"},
		{"1.5~rc1", -1, "1.5~rc2"},
		{"1.5~rc1", 1, "1.5~dev0"},
		{"0:1.0", 0, "1.0"},
		{"1.0", 0, "1.0-0"},
	}
	for _, tt := range tests {
		got, err := Compare(tt.a, tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s vs %s", tt.a, tt.b)

		back, err := Compare(tt.b, tt.a)
		require.NoError(t, err)
		assert.Equal(t, -tt.want, back, "%s vs %s", tt.b, tt.a)
	}
}

func TestSatisfies(t *testing.T) {
	v := MustParse("1.2-1")
	tests := []struct {
		op    string
		other string
		want  bool
	}{
		{">=", "1.2-1", true},
		{">>", "1.2-1", false},
		{"<<", "1.3", true},
		{"<=", "1.1", false},
		{"=", "1.2-1", true},
		{">", "1.2-1", true},
		{"<", "1.2-1", true},
	}
	for _, tt := range tests {
		got, err := v.Satisfies(tt.op, MustParse(tt.other))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "1.2-1 %s %s", tt.op, tt.other)
	}

	_, err := v.Satisfies("!=", v)
	assert.Error(t, err)
}

func TestStrict(t *testing.T) {
	assert.NoError(t, Strict("1:2.30-1"))
	assert.ErrorIs(t, Strict("a"), ErrInvalidVersion)
}

func TestJSON(t *testing.T) {
	type doc struct {
		Version Version `json:"version"`
	}
	out, err := json.Marshal(doc{Version: MustParse("1:2.0-1")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"1:2.0-1"}`, string(out))

	var d doc
	require.NoError(t, json.Unmarshal(out, &d))
	assert.Equal(t, "2.0", d.Version.Upstream)
	assert.Error(t, json.Unmarshal([]byte(`{"version":"a b"}`), &d))
}

func TestRelease(t *testing.T) {
	pairs := [][2]string{{"buzz", "hamm"}, {"sarge", "etch"}, {"lenny", "squeeze"}, {"bookworm", "sid"}}
	for _, p := range pairs {
		a, err := LookupRelease(p[0])
		require.NoError(t, err)
		b, err := LookupRelease(p[1])
		require.NoError(t, err)
		assert.Equal(t, -1, a.Compare(b))
	}
	_, err := LookupRelease("hardy")
	assert.ErrorIs(t, err, ErrUnknownRelease)
}
