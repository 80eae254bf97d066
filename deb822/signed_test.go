package deb822

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signedPayload = "Origin: Test\nSuite: unstable\n\nPackage: foo\nVersion: 1.0\n"

func newTestEntity(t *testing.T, name string) *openpgp.Entity {
	t.Helper()
	e, err := openpgp.NewEntity(name, "test", name+"@example.com", nil)
	require.NoError(t, err)
	return e
}

func clearsignText(t *testing.T, e *openpgp.Entity, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := clearsign.Encode(&buf, e.PrivateKey, nil)
	require.NoError(t, err)
	_, err = io.WriteString(w, text)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestSplitSigned(t *testing.T) {
	e := newTestEntity(t, "Archive")
	data := clearsignText(t, e, signedPayload)

	body, sig, signed := SplitSigned(data)
	require.True(t, signed)
	assert.Contains(t, string(body), "Package: foo\nVersion: 1.0\n")
	assert.True(t, strings.HasPrefix(string(body), "Origin: Test\n"))
	assert.True(t, strings.HasPrefix(string(sig), "-----BEGIN PGP SIGNATURE-----"))
	assert.True(t, strings.HasSuffix(string(sig), "-----END PGP SIGNATURE-----\n"))

	plain := []byte(signedPayload)
	body, sig, signed = SplitSigned(plain)
	assert.False(t, signed)
	assert.Nil(t, sig)
	assert.Equal(t, plain, body)
}

func TestSplitSignedDashEscaped(t *testing.T) {
	in := "-----BEGIN PGP SIGNED MESSAGE-----\nHash: SHA256\n\n" +
		"Description: x\n- -dashed\n" +
		"-----BEGIN PGP SIGNATURE-----\nabc\n-----END PGP SIGNATURE-----\n"
	body, _, signed := SplitSigned([]byte(in))
	require.True(t, signed)
	assert.Equal(t, "Description: x\n-dashed\n", string(body))
}

func TestVerify(t *testing.T) {
	e := newTestEntity(t, "Archive")
	data := clearsignText(t, e, signedPayload)

	info, err := Verify(data, openpgp.EntityList{e})
	require.NoError(t, err)
	assert.Equal(t, e.PrimaryKey.KeyIdString(), info.KeyID)
	assert.Len(t, info.Fingerprint, 40)
	assert.Equal(t, []string{"Archive (test) <Archive@example.com>"}, info.Identities)

	other := newTestEntity(t, "Other")
	_, err = Verify(data, openpgp.EntityList{other})
	assert.ErrorIs(t, err, ErrUnknownSigner)

	_, err = Verify([]byte(signedPayload), openpgp.EntityList{e})
	assert.ErrorIs(t, err, ErrNotSigned)
}

func TestVerifyTampered(t *testing.T) {
	e := newTestEntity(t, "Archive")
	data := clearsignText(t, e, signedPayload)
	tampered := bytes.Replace(data, []byte("Version: 1.0"), []byte("Version: 6.6"), 1)

	_, err := Verify(tampered, openpgp.EntityList{e})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownSigner)
}

func TestVerifySignedRejectsUnsignedData(t *testing.T) {
	e := newTestEntity(t, "Archive")
	keyring := openpgp.EntityList{e}
	data := string(clearsignText(t, e, "Origin: Debian\n"))

	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"prefix paragraph", "Origin: Evil\nSHA256:\n 00 1 evil\n\n" + data, ErrUnsignedData},
		{"prefix on the armor line", "x" + data, ErrNotSigned},
		{"suffix paragraph", data + "\nOrigin: Evil\n", ErrUnsignedData},
		{"second signed block", data + data, ErrUnsignedData},
		{"surrounding blank lines", "\n\n" + data + "\n\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _, err := VerifySigned([]byte(tt.in), keyring)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, body)

				_, err = Parse(strings.NewReader(tt.in), WithKeyring(keyring))
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Origin: Debian\n", string(body))
		})
	}
}

func TestVerifySignedBody(t *testing.T) {
	e := newTestEntity(t, "Archive")
	data := clearsignText(t, e, "Description: x\n-dashed\n")
	body, info, err := VerifySigned(data, openpgp.EntityList{e})
	require.NoError(t, err)
	assert.Equal(t, e.PrimaryKey.KeyIdString(), info.KeyID)
	assert.Contains(t, string(data), "\n- -dashed\n")
	assert.Equal(t, "Description: x\n-dashed\n", string(body))
}

func TestDecoderSigned(t *testing.T) {
	e := newTestEntity(t, "Archive")
	data := clearsignText(t, e, signedPayload)

	// The armor is stripped with or without verification.
	for _, opts := range [][]Option{nil, {WithKeyring(openpgp.EntityList{e})}} {
		ps, err := Parse(bytes.NewReader(data), opts...)
		require.NoError(t, err)
		require.Len(t, ps, 2)
		assert.Equal(t, "Test", ps[0].Value("Origin"))
		assert.Equal(t, "1.0", ps[1].Value("Version"))
		assert.Equal(t, 2, ps[1].Len())
	}

	_, err := Parse(bytes.NewReader(data), WithKeyring(openpgp.EntityList{newTestEntity(t, "Other")}))
	assert.ErrorIs(t, err, ErrUnknownSigner)
}

func TestReadKeyring(t *testing.T) {
	e := newTestEntity(t, "Archive")

	var bin bytes.Buffer
	require.NoError(t, e.Serialize(&bin))
	keys, err := ReadKeyring(bytes.NewReader(bin.Bytes()))
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, e.PrimaryKey.KeyId, keys[0].PrimaryKey.KeyId)

	var armored bytes.Buffer
	w, err := armor.Encode(&armored, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, e.Serialize(w))
	require.NoError(t, w.Close())
	keys, err = ReadKeyring(&armored)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	_, err = ReadKeyring(strings.NewReader("garbage"))
	assert.Error(t, err)
}
