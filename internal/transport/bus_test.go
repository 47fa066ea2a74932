package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/simbridge/internal/msgs"
)

func diag(name string) *msgs.DiagnosticArray {
	return &msgs.DiagnosticArray{Status: []msgs.DiagnosticStatus{{Name: name}}}
}

func decodeDiag(t *testing.T, env Envelope) string {
	t.Helper()
	var d msgs.DiagnosticArray
	require.NoError(t, env.Decode(&d))
	require.Len(t, d.Status, 1)
	return d.Status[0].Name
}

func TestBus_PublishUnknownTopic(t *testing.T) {
	b := NewBus()
	err := b.Publish("/nowhere", diag("x"))
	assert.ErrorIs(t, err, ErrUnknownTopic)
}

func TestBus_AdvertiseTwice(t *testing.T) {
	b := NewBus()
	require.NoError(t, b.Advertise("/a", PoseQoS))
	assert.NoError(t, b.Advertise("/a", PoseQoS))
	assert.ErrorIs(t, b.Advertise("/a", ScanQoS), ErrQoSMismatch)
	assert.Error(t, b.Advertise("", PoseQoS))
	assert.Error(t, b.Advertise("/b", QoS{}))
}

func TestBus_CopySemantics(t *testing.T) {
	b := NewBus()
	require.NoError(t, b.Advertise("/d", PoseQoS))
	_, ch := b.Subscribe("/d")

	msg := diag("first")
	require.NoError(t, b.Publish("/d", msg))
	msg.Status[0].Name = "mutated"

	assert.Equal(t, "first", decodeDiag(t, <-ch))
}

func TestBus_OnlyMatchingTopicsDelivered(t *testing.T) {
	b := NewBus()
	require.NoError(t, b.Advertise("/a", PoseQoS))
	require.NoError(t, b.Advertise("/b", PoseQoS))
	_, chA := b.Subscribe("/a")
	_, chAll := b.Subscribe(AllTopics)

	require.NoError(t, b.Publish("/b", diag("b")))
	require.NoError(t, b.Publish("/a", diag("a")))

	assert.Len(t, chA, 1)
	assert.Equal(t, "a", decodeDiag(t, <-chA))
	require.Len(t, chAll, 2)
	assert.Equal(t, "/b", (<-chAll).Topic)
	assert.Equal(t, "/a", (<-chAll).Topic)
}

func TestBus_BestEffortDropsNewest(t *testing.T) {
	b := NewBus()
	qos := QoS{Reliability: BestEffort, Depth: 2}
	require.NoError(t, b.Advertise("/s", qos))
	_, ch := b.Subscribe("/s")

	for _, name := range []string{"1", "2", "3"} {
		require.NoError(t, b.Publish("/s", diag(name)))
	}

	require.Len(t, ch, 2)
	assert.Equal(t, "1", decodeDiag(t, <-ch))
	assert.Equal(t, "2", decodeDiag(t, <-ch))
	assert.Equal(t, uint64(1), b.Stats()["/s"].Dropped)
}

func TestBus_ReliableKeepsLast(t *testing.T) {
	b := NewBus()
	qos := QoS{Reliability: Reliable, Depth: 2}
	require.NoError(t, b.Advertise("/r", qos))
	_, ch := b.Subscribe("/r")

	for _, name := range []string{"1", "2", "3"} {
		require.NoError(t, b.Publish("/r", diag(name)))
	}

	require.Len(t, ch, 2)
	assert.Equal(t, "2", decodeDiag(t, <-ch))
	assert.Equal(t, "3", decodeDiag(t, <-ch))
}

func TestBus_TransientLocalLatchesForLateSubscribers(t *testing.T) {
	b := NewBus()
	require.NoError(t, b.Advertise("/cmd", CommandQoS))
	require.NoError(t, b.Publish("/cmd", diag("old")))
	require.NoError(t, b.Publish("/cmd", diag("latest")))

	_, ch := b.Subscribe("/cmd")
	require.Len(t, ch, 1)
	assert.Equal(t, "latest", decodeDiag(t, <-ch))
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()
	require.NoError(t, b.Advertise("/a", PoseQoS))
	id, ch := b.Subscribe("/a")
	assert.Equal(t, 1, b.Stats()["/a"].Subscribers)

	b.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")
	assert.Equal(t, 0, b.Stats()["/a"].Subscribers)

	b.Unsubscribe(id) // unknown ids are ignored
	require.NoError(t, b.Publish("/a", diag("x")))
}

func TestBus_Close(t *testing.T) {
	b := NewBus()
	require.NoError(t, b.Advertise("/a", PoseQoS))
	_, ch := b.Subscribe("/a")
	require.NoError(t, b.Close())

	_, ok := <-ch
	assert.False(t, ok)
	assert.ErrorIs(t, b.Publish("/a", diag("x")), ErrBusClosed)
	assert.ErrorIs(t, b.Advertise("/b", PoseQoS), ErrBusClosed)

	_, late := b.Subscribe("/a")
	_, ok = <-late
	assert.False(t, ok)
	assert.NoError(t, b.Close())
}

func TestBus_TopicsSorted(t *testing.T) {
	b := NewBus()
	require.NoError(t, b.Advertise("/z", PoseQoS))
	require.NoError(t, b.Advertise("/a", PoseQoS))
	assert.Equal(t, []string{"/a", "/z"}, b.Topics())
}

func TestBus_PublishNilMessage(t *testing.T) {
	b := NewBus()
	require.NoError(t, b.Advertise("/a", PoseQoS))
	assert.Error(t, b.Publish("/a", nil))
}
