package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_PutGetRoundTrip(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "s1", []byte(`{"id":"s1"}`), time.Minute))

	blob, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"s1"}`, string(blob))
}

func TestMemory_MissAfterTTL(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "s1", []byte("x"), -time.Second))

	_, err := c.Get(ctx, "s1")
	require.ErrorIs(t, err, ErrMiss)
}

func TestMemory_DeleteAndUnknownKey(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	_, err := c.Get(ctx, "nope")
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Put(ctx, "s1", []byte("x"), time.Minute))
	require.NoError(t, c.Delete(ctx, "s1"))

	_, err = c.Get(ctx, "s1")
	require.ErrorIs(t, err, ErrMiss)
}
