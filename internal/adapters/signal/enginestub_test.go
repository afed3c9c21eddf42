package signal

import (
	"context"
	"fmt"
	"sync"

	"github.com/anhdn/peercall/internal/core"
	"github.com/anhdn/peercall/internal/domain"
)

// stubEngine is an in-memory core.Engine so the full websocket flow
// can run without any network media stack behind it.
type stubEngine struct {
	mu         sync.Mutex
	transports int
	producers  map[string]*stubProducer
}

func newStubEngine() *stubEngine {
	return &stubEngine{producers: make(map[string]*stubProducer)}
}

func (e *stubEngine) RouterRtpCapabilities() domain.RTPCapabilities {
	return domain.RTPCapabilities{Codecs: []domain.RTPCodec{
		{MimeType: "audio/opus", ClockRate: 48000, Channels: 2},
		{MimeType: "video/VP8", ClockRate: 90000},
	}}
}

func (e *stubEngine) CreateTransport(context.Context) (core.Transport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transports++
	return &stubTransport{engine: e, id: fmt.Sprintf("transport-%d", e.transports)}, nil
}

func (e *stubEngine) CanConsume(producerID string, caps domain.RTPCapabilities) bool {
	e.mu.Lock()
	p, ok := e.producers[producerID]
	e.mu.Unlock()
	return ok && caps.SupportsMimeType(p.mimeType)
}

type stubTransport struct {
	engine   *stubEngine
	id       string
	mu       sync.Mutex
	produced int
}

func (t *stubTransport) ID() string { return t.id }

func (t *stubTransport) Info() core.TransportInfo {
	return core.TransportInfo{
		ID:             t.id,
		ICEParameters:  []byte(`{"usernameFragment":"frag","password":"pw"}`),
		ICECandidates:  []byte(`[]`),
		DTLSParameters: []byte(`{"fingerprints":[]}`),
	}
}

func (t *stubTransport) Connect(context.Context, core.ConnectParams) error { return nil }

func (t *stubTransport) Produce(_ context.Context, kind domain.MediaKind, params domain.RTPParameters) (core.Producer, error) {
	mimeType := string(kind) + "/stub"
	if len(params.Codecs) > 0 {
		mimeType = params.Codecs[0].MimeType
	}
	t.mu.Lock()
	t.produced++
	id := fmt.Sprintf("%s-producer-%d", t.id, t.produced)
	t.mu.Unlock()

	p := &stubProducer{engine: t.engine, id: id, kind: kind, mimeType: mimeType}
	t.engine.mu.Lock()
	t.engine.producers[id] = p
	t.engine.mu.Unlock()
	return p, nil
}

func (t *stubTransport) Consume(_ context.Context, producerID string, _ domain.RTPCapabilities) (core.Consumer, error) {
	t.engine.mu.Lock()
	p, ok := t.engine.producers[producerID]
	t.engine.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("producer %s: %w", producerID, core.ErrNotFound)
	}
	return &stubConsumer{id: producerID + "-consumer", producerID: producerID, kind: p.kind}, nil
}

func (t *stubTransport) Close() error { return nil }

type stubProducer struct {
	engine   *stubEngine
	id       string
	kind     domain.MediaKind
	mimeType string
}

func (p *stubProducer) ID() string             { return p.id }
func (p *stubProducer) Kind() domain.MediaKind { return p.kind }

func (p *stubProducer) Close() error {
	p.engine.mu.Lock()
	delete(p.engine.producers, p.id)
	p.engine.mu.Unlock()
	return nil
}

type stubConsumer struct {
	id         string
	producerID string
	kind       domain.MediaKind
}

func (c *stubConsumer) ID() string             { return c.id }
func (c *stubConsumer) ProducerID() string     { return c.producerID }
func (c *stubConsumer) Kind() domain.MediaKind { return c.kind }
func (c *stubConsumer) RTPParameters() domain.RTPParameters {
	return domain.RTPParameters{Encodings: []domain.RTPEncoding{{SSRC: 4242}}}
}
func (c *stubConsumer) Close() error { return nil }
