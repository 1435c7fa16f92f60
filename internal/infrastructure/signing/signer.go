// Package signing authenticates share attestations with a keyed BLAKE2b MAC.
package signing

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/sharing"
)

// MinKeyLength is the shortest accepted key.
const MinKeyLength = 32

// ErrKeyLength is returned for keys outside MinKeyLength..blake2b.Size.
var ErrKeyLength = errors.New("signing key must be between 32 and 64 bytes")

// Blake2bSigner produces base64url tags over attestation payloads.
type Blake2bSigner struct {
	key []byte
}

// NewBlake2bSigner creates a signer from a secret key.
func NewBlake2bSigner(key []byte) (*Blake2bSigner, error) {
	if len(key) < MinKeyLength || len(key) > blake2b.Size {
		return nil, ErrKeyLength
	}
	return &Blake2bSigner{key: append([]byte(nil), key...)}, nil
}

// Sign returns the tag for payload.
func (s *Blake2bSigner) Sign(payload []byte) (string, error) {
	sum, err := s.mac(payload)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(sum), nil
}

// Verify checks signature against payload in constant time.
func (s *Blake2bSigner) Verify(payload []byte, signature string) bool {
	got, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	want, err := s.mac(payload)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}

func (s *Blake2bSigner) mac(payload []byte) ([]byte, error) {
	h, err := blake2b.New256(s.key)
	if err != nil {
		return nil, fmt.Errorf("blake2b: %w", err)
	}
	h.Write(payload)
	return h.Sum(nil), nil
}

var _ sharing.Signer = (*Blake2bSigner)(nil)
