package app

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anhdn/peercall/internal/core"
	"github.com/anhdn/peercall/internal/domain"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeEngine) {
	t.Helper()
	engine := newFakeEngine()
	return NewOrchestrator(NewRegistry(), engine), engine
}

func addPeerWithTransport(t *testing.T, o *Orchestrator, pid domain.PeerID) core.TransportInfo {
	t.Helper()
	o.Registry.Add(pid, nopSignal{})
	info, err := o.CreateTransport(context.Background(), pid)
	require.NoError(t, err)
	return info
}

var opusCaps = domain.RTPCapabilities{Codecs: []domain.RTPCodec{
	{MimeType: "audio/opus", ClockRate: 48000, Channels: 2},
}}

var opusParams = domain.RTPParameters{Codecs: []domain.RTPCodec{
	{MimeType: "audio/opus", PayloadType: 111, ClockRate: 48000, Channels: 2},
}}

func TestCreateTransportEngineFailure(t *testing.T) {
	o, engine := newTestOrchestrator(t)
	o.Registry.Add("alice", nopSignal{})
	engine.failCreate = true

	_, err := o.CreateTransport(context.Background(), "alice")
	require.Error(t, err)

	// Registry unchanged on engine failure.
	_, err = o.Registry.Transport("alice", "transport-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCreateTransportPeerGoneMidFlight(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	// No entry for the peer: the engine result must be discarded and
	// closed, not installed into a deleted registry slot.
	_, err := o.CreateTransport(context.Background(), "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestConnectTransportOwnershipEnforced(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	info := addPeerWithTransport(t, o, "alice")
	o.Registry.Add("bob", nopSignal{})

	err := o.ConnectTransport(context.Background(), "bob", info.ID, core.ConnectParams{})
	assert.ErrorIs(t, err, core.ErrNotFound)

	err = o.ConnectTransport(context.Background(), "alice", info.ID, core.ConnectParams{})
	assert.NoError(t, err)
}

func TestProduceReplacesSameKind(t *testing.T) {
	o, engine := newTestOrchestrator(t)
	info := addPeerWithTransport(t, o, "alice")

	first, err := o.Produce(context.Background(), "alice", info.ID, domain.KindVideo, opusParams)
	require.NoError(t, err)
	second, err := o.Produce(context.Background(), "alice", info.ID, domain.KindVideo, opusParams)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// Exactly one live producer of the kind remains.
	ids, ok := o.Producers("alice")
	require.True(t, ok)
	assert.Equal(t, second, ids[domain.KindVideo])
	assert.Equal(t, 1, engine.liveProducers())

	// The replaced producer id is no longer consumable.
	assert.False(t, engine.CanConsume(first, opusCaps))
	_, err = o.Consume(context.Background(), "alice", info.ID, first, opusCaps)
	assert.Error(t, err)
}

func TestProduceKeepsKindsIndependent(t *testing.T) {
	o, engine := newTestOrchestrator(t)
	info := addPeerWithTransport(t, o, "alice")

	audio, err := o.Produce(context.Background(), "alice", info.ID, domain.KindAudio, opusParams)
	require.NoError(t, err)
	video, err := o.Produce(context.Background(), "alice", info.ID, domain.KindVideo, opusParams)
	require.NoError(t, err)

	ids, ok := o.Producers("alice")
	require.True(t, ok)
	assert.Equal(t, audio, ids[domain.KindAudio])
	assert.Equal(t, video, ids[domain.KindVideo])
	assert.Equal(t, 2, engine.liveProducers())
}

func TestProduceRejectsUnknownKind(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	info := addPeerWithTransport(t, o, "alice")

	_, err := o.Produce(context.Background(), "alice", info.ID, "screen", opusParams)
	assert.Error(t, err)
}

func TestProduceConcurrentSameKind(t *testing.T) {
	o, engine := newTestOrchestrator(t)
	info := addPeerWithTransport(t, o, "alice")

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Produce(context.Background(), "alice", info.ID, domain.KindVideo, opusParams)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// However the produces interleave, at most one producer of the
	// kind survives and it is the one the registry reports.
	ids, ok := o.Producers("alice")
	require.True(t, ok)
	assert.Equal(t, 1, engine.liveProducers())
	assert.True(t, engine.CanConsume(ids[domain.KindVideo], opusCaps))
}

func TestGetProducerUnknownTargetIsNull(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	_, ok := o.Producers("nobody")
	assert.False(t, ok)
}

func TestConsumeIncompatibleCapabilities(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	info := addPeerWithTransport(t, o, "alice")

	producerID, err := o.Produce(context.Background(), "alice", info.ID, domain.KindAudio, opusParams)
	require.NoError(t, err)

	vp8Only := domain.RTPCapabilities{Codecs: []domain.RTPCodec{
		{MimeType: "video/VP8", ClockRate: 90000},
	}}
	_, err = o.Consume(context.Background(), "alice", info.ID, producerID, vp8Only)
	assert.ErrorIs(t, err, core.ErrIncompatible)
}

func TestConsumeFlow(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	aliceInfo := addPeerWithTransport(t, o, "alice")
	bobInfo := addPeerWithTransport(t, o, "bob")

	producerID, err := o.Produce(context.Background(), "alice", aliceInfo.ID, domain.KindAudio, opusParams)
	require.NoError(t, err)

	res, err := o.Consume(context.Background(), "bob", bobInfo.ID, producerID, opusCaps)
	require.NoError(t, err)
	assert.Equal(t, producerID, res.ProducerID)
	assert.Equal(t, domain.KindAudio, res.Kind)
	assert.NotEmpty(t, res.ID)

	// Consuming on a transport the caller does not own fails even
	// though both ids exist.
	_, err = o.Consume(context.Background(), "bob", aliceInfo.ID, producerID, opusCaps)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCleanupReleasesEverything(t *testing.T) {
	o, engine := newTestOrchestrator(t)
	aliceInfo := addPeerWithTransport(t, o, "alice")
	bobInfo := addPeerWithTransport(t, o, "bob")
	require.NoError(t, o.Register("alice", "Alice"))
	require.NoError(t, o.Register("bob", "Bob"))

	producerID, err := o.Produce(context.Background(), "alice", aliceInfo.ID, domain.KindVideo, opusParams)
	require.NoError(t, err)
	_, err = o.Consume(context.Background(), "bob", bobInfo.ID, producerID, opusCaps)
	require.NoError(t, err)

	require.True(t, o.Cleanup("alice"))

	// Gone from presence, producers unreachable, id not consumable.
	assert.Equal(t, []domain.PresenceEntry{{ID: "bob", Name: "Bob"}}, o.Presence())
	_, ok := o.Producers("alice")
	assert.False(t, ok)
	assert.Equal(t, 0, engine.liveProducers())
	assert.False(t, engine.CanConsume(producerID, opusCaps))

	// Second cleanup is a no-op.
	assert.False(t, o.Cleanup("alice"))

	// Bob's state is untouched.
	_, err = o.Registry.Transport("bob", bobInfo.ID)
	assert.NoError(t, err)
}
