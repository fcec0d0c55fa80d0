// internal/stateserver/limiter_test.go
package stateserver

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientLimiter_Burst(t *testing.T) {
	l := NewClientLimiter(1, 2, time.Minute)
	now := time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC)

	assert.True(t, l.Allow("10.0.0.1", now))
	assert.True(t, l.Allow("10.0.0.1", now))
	assert.False(t, l.Allow("10.0.0.1", now))
	assert.True(t, l.Allow("10.0.0.2", now), "buckets are per client")

	assert.True(t, l.Allow("10.0.0.1", now.Add(time.Second)), "one token refills per second")
}

func TestClientLimiter_Disabled(t *testing.T) {
	var l *ClientLimiter
	assert.Nil(t, NewClientLimiter(0, 10, 0))
	assert.Nil(t, NewClientLimiter(5, 0, 0))
	assert.True(t, l.Allow("10.0.0.1", time.Now()))
	assert.Equal(t, 0, l.Len())
}

func TestClientLimiter_BlankKeyIsNotLimited(t *testing.T) {
	l := NewClientLimiter(1, 1, time.Minute)
	now := time.Now()
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("  ", now))
	}
	assert.Equal(t, 0, l.Len())
}

func TestClientLimiter_EvictsIdleClients(t *testing.T) {
	l := NewClientLimiter(100, 100, time.Minute)
	start := time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC)

	l.Allow("idle", start)
	later := start.Add(2 * time.Minute)
	for i := 0; i < sweepEvery; i++ {
		l.Allow(fmt.Sprintf("active-%d", i%4), later)
	}

	assert.Equal(t, 4, l.Len())
}
