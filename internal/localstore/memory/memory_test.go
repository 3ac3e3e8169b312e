package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesapos/backend/internal/localstore"
)

func TestSetGetRemove(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Set(ctx, "k", "v"))
	val, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", val)

	require.NoError(t, s.Remove(ctx, "k"))
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFailSetFailsOnlyTheNthWrite(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.FailSet("k", 2)

	require.NoError(t, s.Set(ctx, "other", "x"))
	require.NoError(t, s.Set(ctx, "k", "first"))
	require.ErrorIs(t, s.Set(ctx, "k", "second"), ErrWriteFailed)
	require.NoError(t, s.Set(ctx, "k", "third"))

	val, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "third", val)
}

func TestClosedStoreRejectsCalls(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.Set(ctx, "k", "v"), localstore.ErrClosed)
	_, _, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, localstore.ErrClosed)
}
