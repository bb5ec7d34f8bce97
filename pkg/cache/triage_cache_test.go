package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Total int `json:"total"`
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	var got payload
	ok, err := c.GetJSON(ctx, "analytics", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetJSON(ctx, "analytics", payload{Total: 7}, time.Minute))
	ok, err = c.GetJSON(ctx, "analytics", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, got.Total)

	now = now.Add(2 * time.Minute)
	ok, _ = c.GetJSON(ctx, "analytics", &got)
	assert.False(t, ok, "entry should expire")

	require.NoError(t, c.SetJSON(ctx, "analytics", payload{Total: 1}, 0))
	require.NoError(t, c.Delete(ctx, "analytics"))
	ok, _ = c.GetJSON(ctx, "analytics", &got)
	assert.False(t, ok)
}
