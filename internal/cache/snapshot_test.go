package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSnapshotsDeletePrefix(t *testing.T) {
	t.Skip("Integration test - requires Redis")

	s, err := NewRedisSnapshots("localhost:6379", "", 0, time.Minute)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, K("productReviews"), []byte(`[]`)))
	require.NoError(t, s.Save(ctx, K("productReviews", "p1"), []byte(`[]`)))
	require.NoError(t, s.Save(ctx, K("productReviews", "p2"), []byte(`[]`)))
	require.NoError(t, s.Save(ctx, K("products"), []byte(`[]`)))

	// Exact key and every nested tuple go in one round trip; sibling
	// operations survive.
	require.NoError(t, s.DeletePrefix(ctx, K("productReviews")))

	for _, key := range []Key{K("productReviews"), K("productReviews", "p1"), K("productReviews", "p2")} {
		raw, err := s.Load(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, raw)
	}
	raw, err := s.Load(ctx, K("products"))
	require.NoError(t, err)
	assert.NotNil(t, raw)
}
