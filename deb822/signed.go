package deb822

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
	pgperrors "github.com/ProtonMail/go-crypto/openpgp/errors"
	"github.com/cockroachdb/errors"
)

var (
	// ErrNotSigned is returned by Verify when the input carries no
	// clearsign armor.
	ErrNotSigned = errors.New("deb822: input is not clearsigned")
	// ErrUnknownSigner is returned by Verify when no key of the keyring
	// issued the signature.
	ErrUnknownSigner = errors.New("deb822: signature issued by an unknown key")
	// ErrUnsignedData is returned when clearsigned input carries text
	// outside the signed message.
	ErrUnsignedData = errors.New("deb822: unsigned data around the signed message")
)

// SignatureInfo describes the key that produced a valid signature.
type SignatureInfo struct {
	KeyID       string
	Fingerprint string
	Identities  []string
}

// SplitSigned separates a clearsigned document into its payload and its
// armored signature. Dash-escaping is undone. When data is not clearsigned
// it is returned unchanged with signed set to false.
//
// Reference: https://www.rfc-editor.org/rfc/rfc4880#section-7
func SplitSigned(data []byte) (body, signature []byte, signed bool) {
	lines := strings.SplitAfter(string(data), "\n")
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i == len(lines) || trimEOL(lines[i]) != armorSignedMessage {
		return data, nil, false
	}
	i++
	// Armor headers (Hash: ...) end with a blank line.
	for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
		i++
	}
	i++

	var b, sig bytes.Buffer
	for ; i < len(lines); i++ {
		line := trimEOL(lines[i])
		if line == armorSignature {
			break
		}
		b.WriteString(strings.TrimPrefix(line, "- "))
		b.WriteString("\n")
	}
	for ; i < len(lines); i++ {
		sig.WriteString(trimEOL(lines[i]))
		sig.WriteString("\n")
		if trimEOL(lines[i]) == armorSignatureEnd {
			break
		}
	}
	return b.Bytes(), sig.Bytes(), true
}

func trimEOL(s string) string {
	return strings.TrimRight(s, "\r\n")
}

// Verify checks the clearsign signature of data against keyring.
func Verify(data []byte, keyring openpgp.KeyRing) (*SignatureInfo, error) {
	_, info, err := VerifySigned(data, keyring)
	return info, err
}

// VerifySigned checks the clearsign signature of data against keyring and
// returns the signed payload, dash-escaping undone. Data before the armor
// or after the signature other than whitespace fails with
// ErrUnsignedData.
func VerifySigned(data []byte, keyring openpgp.KeyRing) ([]byte, *SignatureInfo, error) {
	block, rest := clearsign.Decode(data)
	if block == nil {
		return nil, nil, ErrNotSigned
	}
	prefix := data
	if i := bytes.Index(data, []byte(armorSignedMessage)); i >= 0 {
		prefix = data[:i]
	}
	if len(bytes.TrimSpace(prefix)) > 0 {
		return nil, nil, errors.Wrap(ErrUnsignedData, "text before the signed message")
	}
	if len(bytes.TrimSpace(rest)) > 0 {
		return nil, nil, errors.Wrap(ErrUnsignedData, "text after the signature")
	}

	signer, err := openpgp.CheckDetachedSignature(keyring, bytes.NewReader(block.Bytes), block.ArmoredSignature.Body, nil)
	if err != nil {
		if errors.Is(err, pgperrors.ErrUnknownIssuer) {
			return nil, nil, ErrUnknownSigner
		}
		return nil, nil, errors.Wrap(err, "verifying signature")
	}
	info := &SignatureInfo{
		KeyID:       signer.PrimaryKey.KeyIdString(),
		Fingerprint: fmt.Sprintf("%X", signer.PrimaryKey.Fingerprint),
	}
	for name := range signer.Identities {
		info.Identities = append(info.Identities, name)
	}
	sort.Strings(info.Identities)

	body := block.Plaintext
	if len(body) > 0 {
		body = append(body, '\n')
	}
	return body, info, nil
}

// ReadKeyring loads an OpenPGP keyring, armored or binary.
func ReadKeyring(r io.Reader) (openpgp.EntityList, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading keyring")
	}
	var keys openpgp.EntityList
	if bytes.Contains(data, []byte("-----BEGIN PGP")) {
		keys, err = openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	} else {
		keys, err = openpgp.ReadKeyRing(bytes.NewReader(data))
	}
	if err != nil {
		return nil, errors.Wrap(err, "parsing keyring")
	}
	return keys, nil
}
