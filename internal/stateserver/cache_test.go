// internal/stateserver/cache_test.go
package stateserver

import (
	"context"
	"testing"
	"time"

	"application-wizard/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGetInvalidate(t *testing.T) {
	mr, client := setupRedis(t)
	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	st := &State{SessionID: "web_1_abc", CurrentStep: "product", ReferenceCode: "082047823Q29"}
	require.NoError(t, cache.Set(ctx, "u1", "web", st))
	assert.Equal(t, time.Minute, mr.TTL("application_state:u1:web"))

	got, hit, err := cache.Get(ctx, "u1", "web")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "082047823Q29", got.ReferenceCode)

	require.NoError(t, cache.Invalidate(ctx, "u1", "web"))
	_, hit, err = cache.Get(ctx, "u1", "web")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCache_Failures(t *testing.T) {
	mr, client := setupRedis(t)
	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, mr.Set("application_state:u1:default", "{not json"))
	_, _, err := cache.Get(ctx, "u1", "")
	assert.True(t, errors.HasCode(err, errors.ErrCodeCacheFailed))

	mr.Close()
	_, _, err = cache.Get(ctx, "u1", "web")
	assert.True(t, errors.HasCode(err, errors.ErrCodeCacheFailed))
	assert.True(t, errors.HasCode(cache.Set(ctx, "u1", "web", &State{}), errors.ErrCodeCacheFailed))
	assert.True(t, errors.HasCode(cache.Invalidate(ctx, "u1", "web"), errors.ErrCodeCacheFailed))
}

func TestCache_NilMisses(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	_, hit, err := cache.Get(ctx, "u1", "web")
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, cache.Set(ctx, "u1", "web", &State{}))
	assert.NoError(t, cache.Invalidate(ctx, "u1", "web"))
}
