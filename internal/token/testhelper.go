package token

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
)

// NewTestCodec returns a Codec backed by a freshly generated ECDSA P-256 key
// pair. For unit tests only; production keys come from configuration.
func NewTestCodec() (*Codec, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewCodec(key, &key.PublicKey, "tokenvault-test"), nil
}
