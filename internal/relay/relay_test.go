package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/topicrelay/internal/pubsub"
	"github.com/nfrund/topicrelay/internal/topicmgr"
)

// recordingBus stores every published message for inspection.
type recordingBus struct {
	mu       sync.Mutex
	messages []pubsub.Message
}

func (b *recordingBus) Publish(_ context.Context, msg pubsub.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
	return nil
}

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) topic(name string) []pubsub.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []pubsub.Message
	for _, m := range b.messages {
		if m.Topic == name {
			out = append(out, m)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testClient struct {
	ch   *fakeChannel
	conn *Connection
}

func newTestRelay(t *testing.T) (*Relay, *recordingBus) {
	t.Helper()
	bus := &recordingBus{}
	return New(NewRegistry(), bus, discardLogger()), bus
}

func openClient(r *Relay) testClient {
	ch := &fakeChannel{}
	return testClient{ch: ch, conn: r.Open(context.Background(), ch, "127.0.0.1")}
}

func send(t *testing.T, r *Relay, c testClient, raw string) Result {
	t.Helper()
	res, err := r.HandleFrame(context.Background(), c.conn, []byte(raw))
	require.NoError(t, err)
	return res
}

func TestRelay_TopicIsolation(t *testing.T) {
	r, _ := newTestRelay(t)
	a, b, c := openClient(r), openClient(r), openClient(r)

	send(t, r, a, `{"topic":"x"}`)
	send(t, r, b, `{"topic":"x"}`)
	send(t, r, c, `{"topic":"y"}`)

	res := send(t, r, a, `{"message":"hi"}`)

	assert.Equal(t, Result{Topic: "x", Delivered: 1}, res)
	assert.Equal(t, []string{"hi"}, b.ch.messages())
	assert.Empty(t, a.ch.messages(), "sender must not receive its own message")
	assert.Empty(t, c.ch.messages())
}

func TestRelay_UnjoinedSilence(t *testing.T) {
	r, bus := newTestRelay(t)
	a, b := openClient(r), openClient(r)
	send(t, r, b, `{"topic":"x"}`)

	res := send(t, r, a, `{"message":"hi"}`)
	assert.Equal(t, 0, res.Recipients())
	assert.Empty(t, b.ch.messages())

	// An unjoined connection never receives either.
	send(t, r, b, `{"message":"hello"}`)
	assert.Empty(t, a.ch.messages())
	assert.Empty(t, bus.topic(EventMessageRelayed.Name()), "nothing was relayed from an unjoined sender")
}

func TestRelay_TopicSwitchAndMessageInOneFrame(t *testing.T) {
	r, _ := newTestRelay(t)
	a, b, c := openClient(r), openClient(r), openClient(r)
	send(t, r, a, `{"topic":"x"}`)
	send(t, r, b, `{"topic":"x"}`)
	send(t, r, c, `{"topic":"y"}`)

	// The topic change applies before the message is routed.
	res := send(t, r, a, `{"topic":"y","message":"moved"}`)

	assert.Equal(t, "y", res.Topic)
	assert.Equal(t, []string{"moved"}, c.ch.messages())
	assert.Empty(t, b.ch.messages())
	assert.Equal(t, "y", a.conn.Topic())
}

func TestRelay_JoinOnlyFrameSendsNothing(t *testing.T) {
	r, bus := newTestRelay(t)
	a, b := openClient(r), openClient(r)
	send(t, r, b, `{"topic":"x"}`)

	res := send(t, r, a, `{"topic":"x"}`)

	assert.Equal(t, Result{Topic: "x"}, res)
	assert.Empty(t, b.ch.messages())
	assert.Empty(t, bus.topic(EventMessageRelayed.Name()))
}

func TestRelay_EmptyMessageIsNotRelayed(t *testing.T) {
	r, _ := newTestRelay(t)
	a, b := openClient(r), openClient(r)
	send(t, r, a, `{"topic":"x"}`)
	send(t, r, b, `{"topic":"x"}`)

	send(t, r, a, `{"message":""}`)
	assert.Empty(t, b.ch.messages())
}

func TestRelay_AbsentTopicKeepsCurrentTopic(t *testing.T) {
	r, _ := newTestRelay(t)
	a, b := openClient(r), openClient(r)
	send(t, r, a, `{"topic":"x"}`)
	send(t, r, b, `{"topic":"x"}`)

	send(t, r, a, `{"message":"one"}`)
	send(t, r, a, `{"topic":null,"message":"two"}`)

	assert.Equal(t, "x", a.conn.Topic())
	assert.Equal(t, []string{"one", "two"}, b.ch.messages())
}

func TestRelay_EmptyTopicLeaves(t *testing.T) {
	r, _ := newTestRelay(t)
	a, b := openClient(r), openClient(r)
	send(t, r, a, `{"topic":"x"}`)
	send(t, r, b, `{"topic":"x"}`)

	res := send(t, r, a, `{"topic":"","message":"bye"}`)

	assert.Equal(t, "", res.Topic)
	assert.Empty(t, b.ch.messages())
	assert.Equal(t, []*Connection{b.conn}, r.Registry().Members("x"))
	assert.Equal(t, map[string]int{"x": 1}, r.Registry().Topics())
}

func TestRelay_MessageIsForwardedVerbatim(t *testing.T) {
	r, _ := newTestRelay(t)
	a, b := openClient(r), openClient(r)
	send(t, r, a, `{"topic":"x"}`)
	send(t, r, b, `{"topic":"x"}`)

	payload := `{"nested":"json","unicode":"héllo ✓"}`
	raw, err := json.Marshal(map[string]string{"message": payload})
	require.NoError(t, err)

	send(t, r, a, string(raw))
	assert.Equal(t, []string{payload}, b.ch.messages())
}

func TestRelay_FailingRecipientDoesNotStopOthers(t *testing.T) {
	r, bus := newTestRelay(t)
	sender := openClient(r)
	peers := []testClient{openClient(r), openClient(r), openClient(r)}
	peers[1].ch.err = ErrSendBufferFull

	send(t, r, sender, `{"topic":"x"}`)
	for _, p := range peers {
		send(t, r, p, `{"topic":"x"}`)
	}

	res := send(t, r, sender, `{"message":"hi"}`)

	assert.Equal(t, 2, res.Delivered)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"hi"}, peers[0].ch.messages())
	assert.Empty(t, peers[1].ch.messages())
	assert.Equal(t, []string{"hi"}, peers[2].ch.messages())

	// The failing recipient stays registered; its own handler removes it.
	assert.True(t, r.Registry().Contains(peers[1].conn))
	assert.Equal(t, 0, peers[1].ch.closeCount())

	failed := bus.topic(EventDeliveryFailed.Name())
	require.Len(t, failed, 1)
	var payload DeliveryFailed
	require.NoError(t, json.Unmarshal(failed[0].Payload, &payload))
	assert.Equal(t, peers[1].conn.ID(), payload.ConnectionID)
	assert.Equal(t, sender.conn.ID(), payload.SenderID)
	assert.Equal(t, ErrSendBufferFull.Error(), payload.Error)

	relayed := bus.topic(EventMessageRelayed.Name())
	require.Len(t, relayed, 1)
	var summary MessageRelayed
	require.NoError(t, json.Unmarshal(relayed[0].Payload, &summary))
	assert.Equal(t, MessageRelayed{SenderID: sender.conn.ID(), Topic: "x", Recipients: 3, Failed: 1}, summary)
}

func TestRelay_ClosedRecipientIsSkippedAfterRemoval(t *testing.T) {
	r, _ := newTestRelay(t)
	a, b, c := openClient(r), openClient(r), openClient(r)
	for _, cl := range []testClient{a, b, c} {
		send(t, r, cl, `{"topic":"x"}`)
	}

	r.Close(context.Background(), b.conn, ReasonClientClosed)

	res := send(t, r, a, `{"message":"hi"}`)
	assert.Equal(t, Result{Topic: "x", Delivered: 1}, res)
	assert.Equal(t, []string{"hi"}, c.ch.messages())
}

func TestRelay_FrameFromClosedConnectionIsDropped(t *testing.T) {
	r, bus := newTestRelay(t)
	a, b := openClient(r), openClient(r)
	send(t, r, a, `{"topic":"x"}`)
	send(t, r, b, `{"topic":"x"}`)

	r.Close(context.Background(), a.conn, ReasonClientClosed)

	res := send(t, r, a, `{"topic":"y","message":"late"}`)
	assert.Equal(t, 0, res.Recipients())
	assert.Empty(t, b.ch.messages())
	assert.Equal(t, map[string]int{"x": 1}, r.Registry().Topics())
	assert.Empty(t, bus.topic(EventMessageRelayed.Name()))
}

func TestRelay_LoneMemberProducesNoRelayedEvent(t *testing.T) {
	r, bus := newTestRelay(t)
	a := openClient(r)
	send(t, r, a, `{"topic":"x"}`)

	res := send(t, r, a, `{"message":"echo?"}`)

	assert.Equal(t, Result{Topic: "x"}, res)
	assert.Empty(t, bus.topic(EventMessageRelayed.Name()))
}

func TestRelay_MalformedFrameKeepsConnection(t *testing.T) {
	r, bus := newTestRelay(t)
	a, b := openClient(r), openClient(r)
	send(t, r, a, `{"topic":"x"}`)
	send(t, r, b, `{"topic":"x"}`)

	res, err := r.HandleFrame(context.Background(), a.conn, []byte(`not json`))
	require.ErrorIs(t, err, ErrMalformedFrame)
	assert.Equal(t, "x", res.Topic)
	assert.True(t, r.Registry().Contains(a.conn))

	send(t, r, a, `{"message":"still here"}`)
	assert.Equal(t, []string{"still here"}, b.ch.messages())

	malformed := bus.topic(EventFrameMalformed.Name())
	require.Len(t, malformed, 1)
	var payload FrameMalformed
	require.NoError(t, json.Unmarshal(malformed[0].Payload, &payload))
	assert.Equal(t, len("not json"), payload.Size)
	assert.Equal(t, a.conn.ID(), payload.ConnectionID)
}

func TestRelay_CloseIsIdempotent(t *testing.T) {
	r, bus := newTestRelay(t)
	a := openClient(r)
	send(t, r, a, `{"topic":"x"}`)

	r.Close(context.Background(), a.conn, ReasonClientClosed)
	r.Close(context.Background(), a.conn, ReasonTransportError)

	assert.Equal(t, 1, a.ch.closeCount())
	assert.Equal(t, 0, r.Registry().Len())

	closed := bus.topic(EventConnectionClosed.Name())
	require.Len(t, closed, 1)
	var payload ConnectionClosed
	require.NoError(t, json.Unmarshal(closed[0].Payload, &payload))
	assert.Equal(t, ConnectionClosed{ConnectionID: a.conn.ID(), Topic: "x", Reason: ReasonClientClosed}, payload)
}

func TestRelay_LifecycleEvents(t *testing.T) {
	r, bus := newTestRelay(t)
	a := openClient(r)

	send(t, r, a, `{"topic":"x"}`)
	send(t, r, a, `{"topic":"x"}`)
	send(t, r, a, `{"topic":"y"}`)

	opened := bus.topic(EventConnectionOpened.Name())
	require.Len(t, opened, 1)
	assert.Equal(t, a.conn.ID(), opened[0].ConnectionID)

	changed := bus.topic(EventTopicChanged.Name())
	require.Len(t, changed, 2, "re-joining the current topic is not a change")
	var second TopicChanged
	require.NoError(t, json.Unmarshal(changed[1].Payload, &second))
	assert.Equal(t, TopicChanged{ConnectionID: a.conn.ID(), From: "x", To: "y"}, second)
}

func TestRelay_NilBus(t *testing.T) {
	r := New(NewRegistry(), nil, discardLogger())
	a, b := openClient(r), openClient(r)
	send(t, r, a, `{"topic":"x"}`)
	send(t, r, b, `{"topic":"x"}`)

	res := send(t, r, a, `{"message":"hi"}`)
	assert.Equal(t, 1, res.Delivered)
	r.Close(context.Background(), a.conn, ReasonClientClosed)
}

type failingBus struct{}

func (failingBus) Publish(context.Context, pubsub.Message) error { return errors.New("bus down") }
func (failingBus) Close() error                                  { return nil }

func TestRelay_BusFailureDoesNotAffectDelivery(t *testing.T) {
	r := New(NewRegistry(), failingBus{}, discardLogger())
	a, b := openClient(r), openClient(r)
	send(t, r, a, `{"topic":"x"}`)
	send(t, r, b, `{"topic":"x"}`)

	res := send(t, r, a, `{"message":"hi"}`)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, []string{"hi"}, b.ch.messages())
}

func TestRegisterTopics(t *testing.T) {
	m := topicmgr.NewManager()
	require.NoError(t, RegisterTopics(m))
	require.NoError(t, RegisterTopics(m), "registering the same definitions twice is allowed")

	assert.Len(t, m.ListByPrefix("relay."), len(Topics()))
	topic, err := m.Lookup("relay.message.relayed")
	require.NoError(t, err)
	assert.Equal(t, []string{"sender_id", "topic", "recipients", "failed"}, topic.Metadata()["payload_fields"])
}
