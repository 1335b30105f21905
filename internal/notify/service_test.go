package notify_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/live-support/internal/domain"
	"github.com/spec-kit/live-support/internal/events"
	"github.com/spec-kit/live-support/internal/notify"
)

type delivery struct {
	actorID   string
	eventType events.EventType
}

type fakeChannel struct {
	mu         sync.Mutex
	sent       []delivery
	broadcasts []events.EventType
}

func (c *fakeChannel) SendToActor(actorID string, eventType events.EventType, _ interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, delivery{actorID: actorID, eventType: eventType})
}

func (c *fakeChannel) Broadcast(eventType events.EventType, _ interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcasts = append(c.broadcasts, eventType)
}

func newTestService() (events.Dispatcher, *fakeChannel) {
	dispatcher := events.NewInMemoryDispatcher()
	channel := &fakeChannel{}
	notify.NewService(dispatcher, channel, nil).RegisterHandlers()
	return dispatcher, channel
}

func TestNotify_MatchedReachesBothParties(t *testing.T) {
	dispatcher, channel := newTestService()

	err := dispatcher.Publish(context.Background(), events.NewEvent(
		events.EventRequestMatched, "r1", "u1",
		events.RequestMatchedPayload{RequesterID: "u1", AgentID: "a1", Kind: domain.RequestKindQuickSupport}))
	require.NoError(t, err)

	require.Len(t, channel.sent, 2)
	assert.Equal(t, delivery{actorID: "u1", eventType: notify.NoticeRequestMatched}, channel.sent[0])
	assert.Equal(t, delivery{actorID: "a1", eventType: notify.NoticeRequestAssigned}, channel.sent[1])
}

func TestNotify_TimeoutReachesRequesterOnly(t *testing.T) {
	dispatcher, channel := newTestService()

	err := dispatcher.Publish(context.Background(), events.NewEvent(
		events.EventRequestTimeout, "r1", "u1",
		events.RequestTimeoutPayload{RequesterID: "u1", Reason: "no agent available"}))
	require.NoError(t, err)

	require.Len(t, channel.sent, 1)
	assert.Equal(t, delivery{actorID: "u1", eventType: notify.NoticeRequestTimeout}, channel.sent[0])
}

func TestNotify_ResponseOutcomeSelectsNotice(t *testing.T) {
	dispatcher, channel := newTestService()

	err := dispatcher.Publish(context.Background(), events.NewEvent(
		events.EventAgentResponded, "r1", "u1",
		events.AgentRespondedPayload{RequesterID: "u1", AgentID: "a1", Outcome: domain.ResponseOutcomeAccept}))
	require.NoError(t, err)
	err = dispatcher.Publish(context.Background(), events.NewEvent(
		events.EventAgentResponded, "r2", "u2",
		events.AgentRespondedPayload{RequesterID: "u2", AgentID: "a2", Outcome: domain.ResponseOutcomeReject}))
	require.NoError(t, err)

	require.Len(t, channel.sent, 2)
	assert.Equal(t, delivery{actorID: "u1", eventType: notify.NoticeAgentAccepted}, channel.sent[0])
	assert.Equal(t, delivery{actorID: "u2", eventType: notify.NoticeAgentRejected}, channel.sent[1])
}

func TestNotify_CompletedReachesAssignedAgent(t *testing.T) {
	dispatcher, channel := newTestService()

	agentID := "a1"
	err := dispatcher.Publish(context.Background(), events.NewEvent(
		events.EventRequestCompleted, "r1", "u1",
		events.RequestCompletedPayload{RequesterID: "u1", AgentID: &agentID}))
	require.NoError(t, err)

	require.Len(t, channel.sent, 2)
	assert.Equal(t, "u1", channel.sent[0].actorID)
	assert.Equal(t, "a1", channel.sent[1].actorID)
}

func TestNotify_AgentPresenceBroadcasts(t *testing.T) {
	dispatcher, channel := newTestService()

	err := dispatcher.Publish(context.Background(), events.NewEvent(
		events.EventAgentPresence, "", "a1",
		events.AgentPresencePayload{AgentID: "a1", State: domain.PresenceOnline}))
	require.NoError(t, err)

	assert.Empty(t, channel.sent)
	require.Len(t, channel.broadcasts, 1)
	assert.Equal(t, notify.NoticeAgentPresence, channel.broadcasts[0])
}

func TestNotify_MismatchedPayloadIgnored(t *testing.T) {
	dispatcher, channel := newTestService()

	err := dispatcher.Publish(context.Background(), events.NewEvent(
		events.EventRequestMatched, "r1", "u1", "not a payload struct"))
	require.NoError(t, err)

	assert.Empty(t, channel.sent)
}
