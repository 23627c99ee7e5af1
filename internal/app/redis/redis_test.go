package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewFromClient(rdb), mr
}

func TestJWTBlacklist(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	blacklisted, err := c.IsBlacklisted(ctx, "token-1")
	require.NoError(t, err)
	assert.False(t, blacklisted)

	require.NoError(t, c.WriteJWTToBlacklist(ctx, "token-1", time.Minute))
	blacklisted, err = c.IsBlacklisted(ctx, "token-1")
	require.NoError(t, err)
	assert.True(t, blacklisted)

	mr.FastForward(2 * time.Minute)
	blacklisted, err = c.IsBlacklisted(ctx, "token-1")
	require.NoError(t, err)
	assert.False(t, blacklisted)
}

func TestQuoteRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	type quote struct {
		PostalCode string `json:"postal_code"`
		BirthYear  int    `json:"birth_year"`
	}

	require.NoError(t, c.SaveQuote(ctx, "q1", quote{PostalCode: "69003", BirthYear: 1985}, time.Hour))

	var got quote
	require.NoError(t, c.LoadQuote(ctx, "q1", &got))
	assert.Equal(t, quote{PostalCode: "69003", BirthYear: 1985}, got)

	mr.FastForward(2 * time.Hour)
	assert.ErrorIs(t, c.LoadQuote(ctx, "q1", &got), ErrQuoteNotFound)
}
