package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmCache_SetAndGet(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewConfirmCache(client)
	ctx := context.Background()

	ref := "ws_CO_310820261200"
	value := []byte(`{"payment_id":"abc","status":"confirmed"}`)

	// Get before set => nil
	result, err := cache.Get(ctx, ref)
	assert.NoError(t, err)
	assert.Nil(t, result)

	// Set
	err = cache.Set(ctx, ref, value, 24*time.Hour)
	require.NoError(t, err)

	// Get after set
	result, err = cache.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, value, result)
}

func TestConfirmCache_TTLExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewConfirmCache(client)
	ctx := context.Background()

	ref := "PAYPAL-ORDER-002"
	value := []byte(`{"data":"test"}`)

	err := cache.Set(ctx, ref, value, 1*time.Second)
	require.NoError(t, err)

	// Fast-forward time in miniredis
	s.FastForward(2 * time.Second)

	result, err := cache.Get(ctx, ref)
	assert.NoError(t, err)
	assert.Nil(t, result, "expired key should return nil")
}
