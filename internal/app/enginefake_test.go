package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/anhdn/peercall/internal/core"
	"github.com/anhdn/peercall/internal/domain"
)

// fakeEngine implements core.Engine in memory so coordinator behavior
// can be tested without sockets. It tracks which handles were closed
// and which producer ids are still live.
type fakeEngine struct {
	mu         sync.Mutex
	transports int
	producers  map[string]*fakeProducer
	failCreate bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{producers: make(map[string]*fakeProducer)}
}

func (e *fakeEngine) RouterRtpCapabilities() domain.RTPCapabilities {
	return domain.RTPCapabilities{Codecs: []domain.RTPCodec{
		{MimeType: "audio/opus", ClockRate: 48000, Channels: 2},
		{MimeType: "video/VP8", ClockRate: 90000},
	}}
}

func (e *fakeEngine) CreateTransport(context.Context) (core.Transport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failCreate {
		return nil, errors.New("engine out of ports")
	}
	e.transports++
	return &fakeTransport{engine: e, id: fmt.Sprintf("transport-%d", e.transports)}, nil
}

func (e *fakeEngine) CanConsume(producerID string, caps domain.RTPCapabilities) bool {
	e.mu.Lock()
	p, ok := e.producers[producerID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	return caps.SupportsMimeType(p.mimeType)
}

func (e *fakeEngine) liveProducers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.producers)
}

type fakeTransport struct {
	engine    *fakeEngine
	id        string
	connected atomic.Bool
	closed    atomic.Bool
	produced  atomic.Int32
}

func (t *fakeTransport) ID() string { return t.id }

func (t *fakeTransport) Info() core.TransportInfo {
	return core.TransportInfo{
		ID:             t.id,
		ICEParameters:  []byte(`{"usernameFragment":"frag","password":"pw"}`),
		ICECandidates:  []byte(`[]`),
		DTLSParameters: []byte(`{"role":0,"fingerprints":[]}`),
	}
}

func (t *fakeTransport) Connect(context.Context, core.ConnectParams) error {
	if t.closed.Load() {
		return errors.New("transport closed")
	}
	t.connected.Store(true)
	return nil
}

func (t *fakeTransport) Produce(_ context.Context, kind domain.MediaKind, params domain.RTPParameters) (core.Producer, error) {
	if t.closed.Load() {
		return nil, errors.New("transport closed")
	}
	mimeType := string(kind) + "/fake"
	if len(params.Codecs) > 0 {
		mimeType = params.Codecs[0].MimeType
	}
	n := t.produced.Add(1)
	p := &fakeProducer{
		engine:   t.engine,
		id:       fmt.Sprintf("%s-producer-%s-%d", t.id, kind, n),
		kind:     kind,
		mimeType: mimeType,
	}
	t.engine.mu.Lock()
	t.engine.producers[p.id] = p
	t.engine.mu.Unlock()
	return p, nil
}

func (t *fakeTransport) Consume(_ context.Context, producerID string, _ domain.RTPCapabilities) (core.Consumer, error) {
	t.engine.mu.Lock()
	p, ok := t.engine.producers[producerID]
	t.engine.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("producer %s: %w", producerID, core.ErrNotFound)
	}
	return &fakeConsumer{
		id:         producerID + "-consumer",
		producerID: producerID,
		kind:       p.kind,
	}, nil
}

func (t *fakeTransport) Close() error {
	t.closed.Store(true)
	return nil
}

type fakeProducer struct {
	engine   *fakeEngine
	id       string
	kind     domain.MediaKind
	mimeType string
	closed   atomic.Bool
}

func (p *fakeProducer) ID() string             { return p.id }
func (p *fakeProducer) Kind() domain.MediaKind { return p.kind }

func (p *fakeProducer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.engine.mu.Lock()
	delete(p.engine.producers, p.id)
	p.engine.mu.Unlock()
	return nil
}

type fakeConsumer struct {
	id         string
	producerID string
	kind       domain.MediaKind
	closed     atomic.Bool
}

func (c *fakeConsumer) ID() string             { return c.id }
func (c *fakeConsumer) ProducerID() string     { return c.producerID }
func (c *fakeConsumer) Kind() domain.MediaKind { return c.kind }

func (c *fakeConsumer) RTPParameters() domain.RTPParameters {
	return domain.RTPParameters{Encodings: []domain.RTPEncoding{{SSRC: 1234}}}
}

func (c *fakeConsumer) Close() error {
	c.closed.Store(true)
	return nil
}

// nopSignal satisfies core.SignalConnection for registry entries that
// never get read in a test.
type nopSignal struct{}

func (nopSignal) TrySend(core.Frame) error { return nil }
func (nopSignal) Close()                   {}
