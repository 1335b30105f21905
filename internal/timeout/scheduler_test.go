package timeout_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/live-support/internal/timeout"
)

func TestScheduler_FiresAfterDuration(t *testing.T) {
	scheduler := timeout.NewScheduler(nil)
	defer scheduler.Stop()

	var fired atomic.Int32
	scheduler.Schedule("r1", 10*time.Millisecond, func() { fired.Add(1) })

	require.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// The handle is gone once the action ran.
	assert.False(t, scheduler.Cancel("r1"))
}

func TestScheduler_CancelPreventsAction(t *testing.T) {
	scheduler := timeout.NewScheduler(nil)
	defer scheduler.Stop()

	var fired atomic.Int32
	scheduler.Schedule("r1", 30*time.Millisecond, func() { fired.Add(1) })
	assert.True(t, scheduler.Cancel("r1"))

	time.Sleep(80 * time.Millisecond)
	assert.EqualValues(t, 0, fired.Load())
}

func TestScheduler_CancelUnknownIDReturnsFalse(t *testing.T) {
	scheduler := timeout.NewScheduler(nil)
	defer scheduler.Stop()

	assert.False(t, scheduler.Cancel("nope"))
}

func TestScheduler_RescheduleReplacesPriorHandle(t *testing.T) {
	scheduler := timeout.NewScheduler(nil)
	defer scheduler.Stop()

	var first, second atomic.Int32
	scheduler.Schedule("r1", 20*time.Millisecond, func() { first.Add(1) })
	scheduler.Schedule("r1", 40*time.Millisecond, func() { second.Add(1) })

	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 0, first.Load())
	assert.EqualValues(t, 1, second.Load())
}

func TestScheduler_IndependentIDs(t *testing.T) {
	scheduler := timeout.NewScheduler(nil)
	defer scheduler.Stop()

	var fired atomic.Int32
	scheduler.Schedule("r1", 20*time.Millisecond, func() { fired.Add(1) })
	scheduler.Schedule("r2", 20*time.Millisecond, func() { fired.Add(1) })
	assert.True(t, scheduler.Cancel("r1"))

	require.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.EqualValues(t, 1, fired.Load())
}

func TestScheduler_StopCancelsEverything(t *testing.T) {
	scheduler := timeout.NewScheduler(nil)

	var fired atomic.Int32
	scheduler.Schedule("r1", 30*time.Millisecond, func() { fired.Add(1) })
	scheduler.Schedule("r2", 30*time.Millisecond, func() { fired.Add(1) })
	scheduler.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.EqualValues(t, 0, fired.Load())
}
