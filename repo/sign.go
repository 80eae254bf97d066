package repo

import (
	"bytes"
	"io"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
	"github.com/cockroachdb/errors"
)

// ErrNoPrivateKey is returned when a key ring holds no private key.
var ErrNoPrivateKey = errors.New("repo: no private key found")

// ReadSigner returns the first entity with a private key from an
// ASCII-armored key ring.
func ReadSigner(r io.Reader) (*openpgp.Entity, error) {
	entities, err := openpgp.ReadArmoredKeyRing(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading signing key")
	}
	for _, e := range entities {
		if e.PrivateKey != nil {
			return e, nil
		}
	}
	return nil, ErrNoPrivateKey
}

// signBytes clearsigns input.
func signBytes(input []byte, signer *openpgp.Entity) ([]byte, error) {
	if signer == nil || signer.PrivateKey == nil {
		return nil, ErrNoPrivateKey
	}
	var out bytes.Buffer
	w, err := clearsign.Encode(&out, signer.PrivateKey, nil)
	if err != nil {
		return nil, errors.Wrap(err, "clearsigning")
	}
	if _, err := w.Write(input); err != nil {
		return nil, errors.Wrap(err, "clearsigning")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "clearsigning")
	}
	return out.Bytes(), nil
}

// PublicKey serializes the public part of signer, ASCII-armored or
// binary.
func PublicKey(signer *openpgp.Entity, armored bool) ([]byte, error) {
	if signer == nil {
		return nil, ErrNoPrivateKey
	}
	var buf bytes.Buffer
	if !armored {
		if err := signer.Serialize(&buf); err != nil {
			return nil, errors.Wrap(err, "serializing public key")
		}
		return buf.Bytes(), nil
	}
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return nil, errors.Wrap(err, "armoring public key")
	}
	if err := signer.Serialize(w); err != nil {
		return nil, errors.Wrap(err, "serializing public key")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "armoring public key")
	}
	return buf.Bytes(), nil
}
