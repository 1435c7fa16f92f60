package signing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlake2bSigner_RoundTrip(t *testing.T) {
	s, err := NewBlake2bSigner(bytes.Repeat([]byte("k"), 32))
	require.NoError(t, err)

	payload := []byte("zsa1|att|1|2|alice|streak|3|100")
	sig, err := s.Sign(payload)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)

	assert.True(t, s.Verify(payload, sig))
	assert.False(t, s.Verify([]byte("zsa1|att|1|2|alice|streak|7|100"), sig))
	assert.False(t, s.Verify(payload, "not base64!"))
	assert.False(t, s.Verify(payload, ""))

	other, err := NewBlake2bSigner(bytes.Repeat([]byte("x"), 32))
	require.NoError(t, err)
	assert.False(t, other.Verify(payload, sig))
}

func TestNewBlake2bSigner_KeyLength(t *testing.T) {
	_, err := NewBlake2bSigner([]byte("short"))
	assert.ErrorIs(t, err, ErrKeyLength)

	_, err = NewBlake2bSigner(bytes.Repeat([]byte("k"), 65))
	assert.ErrorIs(t, err, ErrKeyLength)

	_, err = NewBlake2bSigner(bytes.Repeat([]byte("k"), 64))
	assert.NoError(t, err)
}
