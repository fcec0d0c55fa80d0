// internal/common/debounce/debounce_test.go
package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDebouncer_LastCallWins(t *testing.T) {
	d := New(20 * time.Millisecond)

	var calls int32
	var last int32
	for i := 1; i <= 5; i++ {
		v := int32(i)
		d.Schedule(func() {
			atomic.AddInt32(&calls, 1)
			atomic.StoreInt32(&last, v)
		})
	}

	assert.Equal(t, Pending, d.State())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)

	// give any stray timer a chance to fire
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(5), atomic.LoadInt32(&last))
	assert.Equal(t, Idle, d.State())
}

func TestDebouncer_Flush(t *testing.T) {
	d := New(time.Hour)

	var calls int32
	d.Schedule(func() { atomic.AddInt32(&calls, 1) })

	assert.True(t, d.Flush())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, Idle, d.State())

	assert.False(t, d.Flush(), "nothing pending after flush")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDebouncer_Cancel(t *testing.T) {
	d := New(10 * time.Millisecond)

	var calls int32
	d.Schedule(func() { atomic.AddInt32(&calls, 1) })

	assert.True(t, d.Cancel())
	assert.False(t, d.Cancel())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestDebouncer_ScheduleAfterFire(t *testing.T) {
	d := New(5 * time.Millisecond)

	var calls int32
	d.Schedule(func() { atomic.AddInt32(&calls, 1) })
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)

	d.Schedule(func() { atomic.AddInt32(&calls, 1) })
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 2 }, time.Second, time.Millisecond)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "pending", Pending.String())
}
