package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLocker_BlocksSameUserOnly(t *testing.T) {
	k := NewKeyedLocker()
	ctx := context.Background()

	release, err := k.Lock(ctx, "alice")
	require.NoError(t, err)

	other, err := k.Lock(ctx, "bob")
	require.NoError(t, err)
	other()

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(timeout, "alice")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // idempotent

	again, err := k.Lock(ctx, "alice")
	require.NoError(t, err)
	again()
	assert.Equal(t, 0, k.Len())
}
