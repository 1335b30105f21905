package presence_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/live-support/internal/domain"
	"github.com/spec-kit/live-support/internal/presence"
)

type flipRecorder struct {
	mu    sync.Mutex
	flips []string
}

func (r *flipRecorder) listener(actorID string, _ domain.Role, state domain.PresenceState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flips = append(r.flips, actorID+":"+string(state))
}

func (r *flipRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.flips...)
}

func newTestTracker(t *testing.T, grace time.Duration) (*presence.Tracker, *flipRecorder) {
	t.Helper()
	tracker := presence.NewTracker(presence.FixedGrace(grace), nil)
	recorder := &flipRecorder{}
	tracker.OnChange(recorder.listener)
	return tracker, recorder
}

func TestTracker_ConnectFlipsOnlineOnce(t *testing.T) {
	tracker, recorder := newTestTracker(t, 50*time.Millisecond)

	tracker.Connect("u1", domain.RoleUser)
	tracker.Connect("u1", domain.RoleUser)

	assert.True(t, tracker.IsOnline("u1"))
	assert.Equal(t, []string{"u1:ONLINE"}, recorder.snapshot())
}

func TestTracker_ReconnectWithinGraceIsInvisible(t *testing.T) {
	tracker, recorder := newTestTracker(t, 60*time.Millisecond)

	tracker.Connect("agent-1", domain.RoleAgent)
	tracker.Disconnect("agent-1")
	// Still visibly online during the grace window.
	assert.True(t, tracker.IsOnline("agent-1"))

	time.Sleep(20 * time.Millisecond)
	tracker.Connect("agent-1", domain.RoleAgent)

	// Well past the original grace deadline: no offline flip happened.
	time.Sleep(100 * time.Millisecond)
	assert.True(t, tracker.IsOnline("agent-1"))
	assert.Equal(t, []string{"agent-1:ONLINE"}, recorder.snapshot())
}

func TestTracker_OfflineAfterGrace(t *testing.T) {
	tracker, recorder := newTestTracker(t, 30*time.Millisecond)

	tracker.Connect("u1", domain.RoleUser)
	tracker.Disconnect("u1")

	require.Eventually(t, func() bool {
		return !tracker.IsOnline("u1")
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"u1:ONLINE", "u1:OFFLINE"}, recorder.snapshot())
}

func TestTracker_ZeroGraceFlipsImmediately(t *testing.T) {
	tracker, recorder := newTestTracker(t, 0)

	tracker.Connect("u1", domain.RoleUser)
	tracker.Disconnect("u1")

	assert.False(t, tracker.IsOnline("u1"))
	assert.Equal(t, []string{"u1:ONLINE", "u1:OFFLINE"}, recorder.snapshot())
}

func TestTracker_SecondSessionKeepsActorOnline(t *testing.T) {
	tracker, recorder := newTestTracker(t, 20*time.Millisecond)

	tracker.Connect("u1", domain.RoleUser)
	tracker.Connect("u1", domain.RoleUser)
	tracker.Disconnect("u1")

	// One session remains: no grace timer, no flip.
	time.Sleep(60 * time.Millisecond)
	assert.True(t, tracker.IsOnline("u1"))
	assert.Equal(t, []string{"u1:ONLINE"}, recorder.snapshot())

	tracker.Disconnect("u1")
	require.Eventually(t, func() bool {
		return !tracker.IsOnline("u1")
	}, time.Second, 5*time.Millisecond)
}

func TestTracker_ForceOfflineBypassesGrace(t *testing.T) {
	tracker, recorder := newTestTracker(t, time.Minute)

	tracker.Connect("u1", domain.RoleUser)
	tracker.ForceOffline("u1")

	assert.False(t, tracker.IsOnline("u1"))
	assert.Equal(t, []string{"u1:ONLINE", "u1:OFFLINE"}, recorder.snapshot())

	// Forcing an unknown actor offline is a no-op.
	tracker.ForceOffline("ghost")
	assert.Equal(t, []string{"u1:ONLINE", "u1:OFFLINE"}, recorder.snapshot())
}

func TestTracker_DisconnectUnknownActorIsNoOp(t *testing.T) {
	tracker, recorder := newTestTracker(t, 10*time.Millisecond)

	tracker.Disconnect("ghost")
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, recorder.snapshot())
}

func TestTracker_OnlineActorsSorted(t *testing.T) {
	tracker, _ := newTestTracker(t, time.Minute)

	tracker.Connect("charlie", domain.RoleUser)
	tracker.Connect("alice", domain.RoleAgent)
	tracker.Connect("bob", domain.RoleUser)

	assert.Equal(t, []string{"alice", "bob", "charlie"}, tracker.OnlineActors())
}

func TestTracker_ResolvesGraceOnlyAtConnect(t *testing.T) {
	var calls atomic.Int32
	tracker := presence.NewTracker(func(domain.Role) time.Duration {
		calls.Add(1)
		return time.Minute
	}, nil)

	tracker.Connect("u1", domain.RoleUser)
	tracker.Disconnect("u1")
	tracker.Connect("u1", domain.RoleUser)
	tracker.Disconnect("u1")
	tracker.ForceOffline("u1")

	// Disconnect and ForceOffline use the window captured at connect time.
	assert.EqualValues(t, 2, calls.Load())
}

func TestTracker_SlowResolverDoesNotBlockReads(t *testing.T) {
	tracker := presence.NewTracker(func(role domain.Role) time.Duration {
		if role == domain.RoleUser {
			time.Sleep(300 * time.Millisecond)
		}
		return time.Minute
	}, nil)
	tracker.Connect("agent-1", domain.RoleAgent)

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		tracker.Connect("user-9", domain.RoleUser)
		close(done)
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	begin := time.Now()
	online := tracker.IsOnline("agent-1")
	elapsed := time.Since(begin)

	assert.True(t, online)
	assert.Less(t, elapsed, 100*time.Millisecond)
	<-done
}
