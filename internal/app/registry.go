package app

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/anhdn/peercall/internal/core"
	"github.com/anhdn/peercall/internal/domain"
)

// peerEntry holds everything one signaling connection owns. All access
// goes through Registry methods under its lock; handles are never
// reachable from two entries.
type peerEntry struct {
	name       string
	signal     core.SignalConnection
	transports []core.Transport
	producers  map[domain.MediaKind]core.Producer
	consumers  map[domain.MediaKind]core.Consumer
}

// Resources is the drained content of a removed entry, handed to the
// cleanup supervisor for closing outside the registry lock.
type Resources struct {
	Transports []core.Transport
	Producers  []core.Producer
	Consumers  []core.Consumer
}

// Registry is the process-wide map of peer id to owned resources.
// Engine calls never run under its lock: callers look a handle up,
// talk to the engine, then install the result through a method that
// re-validates the entry still exists.
type Registry struct {
	mu      sync.RWMutex
	entries map[domain.PeerID]*peerEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[domain.PeerID]*peerEntry)}
}

func (r *Registry) Add(pid domain.PeerID, signal core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[pid] = &peerEntry{
		signal:    signal,
		producers: make(map[domain.MediaKind]core.Producer),
		consumers: make(map[domain.MediaKind]core.Consumer),
	}
	log.Info().Str("module", "app.registry").Str("peer", string(pid)).Msg("peer added")
}

// Remove deletes the entry and returns its resources for closing.
// The second return is false if the peer was already gone.
func (r *Registry) Remove(pid domain.PeerID) (Resources, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[pid]
	if !ok {
		return Resources{}, false
	}
	delete(r.entries, pid)

	res := Resources{Transports: e.transports}
	for _, p := range e.producers {
		res.Producers = append(res.Producers, p)
	}
	for _, c := range e.consumers {
		res.Consumers = append(res.Consumers, c)
	}
	log.Info().Str("module", "app.registry").Str("peer", string(pid)).
		Int("transports", len(res.Transports)).
		Int("producers", len(res.Producers)).
		Int("consumers", len(res.Consumers)).
		Msg("peer removed")
	return res, true
}

func (r *Registry) SetName(pid domain.PeerID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[pid]
	if !ok {
		return false
	}
	e.name = name
	log.Info().Str("module", "app.registry").Str("peer", string(pid)).Str("name", name).Msg("name set")
	return true
}

func (r *Registry) Name(pid domain.PeerID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[pid]
	if !ok {
		return "", false
	}
	return e.name, true
}

func (r *Registry) Signal(pid domain.PeerID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[pid]
	if !ok || e.signal == nil {
		return nil, false
	}
	return e.signal, true
}

// Signals snapshots every live signal connection, for presence fan-out.
func (r *Registry) Signals() []core.SignalConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.SignalConnection, 0, len(r.entries))
	for _, e := range r.entries {
		if e.signal != nil {
			out = append(out, e.signal)
		}
	}
	return out
}

// Presence projects the entries that registered a display name. Order
// is stable by id so repeated broadcasts compare equal.
func (r *Registry) Presence() []domain.PresenceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.PresenceEntry, 0, len(r.entries))
	for pid, e := range r.entries {
		if e.name == "" {
			continue
		}
		out = append(out, domain.PresenceEntry{ID: pid, Name: e.name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AppendTransport installs a freshly created transport. ErrNotFound
// means the peer disconnected while the engine call was in flight; the
// caller must close the transport instead of leaking it.
func (r *Registry) AppendTransport(pid domain.PeerID, t core.Transport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[pid]
	if !ok {
		return fmt.Errorf("peer %s: %w", pid, core.ErrNotFound)
	}
	e.transports = append(e.transports, t)
	log.Info().Str("module", "app.registry").Str("peer", string(pid)).Str("transport", t.ID()).Msg("transport added")
	return nil
}

// Transport resolves a transport id within the owning peer's set only.
// An id valid for a different peer still reports ErrNotFound.
func (r *Registry) Transport(pid domain.PeerID, transportID string) (core.Transport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[pid]
	if !ok {
		return nil, fmt.Errorf("peer %s: %w", pid, core.ErrNotFound)
	}
	for _, t := range e.transports {
		if t.ID() == transportID {
			return t, nil
		}
	}
	return nil, fmt.Errorf("transport %s: %w", transportID, core.ErrNotFound)
}

// SwapProducer substitutes the producer for a kind and returns the
// prior one, nil if there was none. The swap is atomic under the
// registry lock; the caller closes the old handle afterwards.
func (r *Registry) SwapProducer(pid domain.PeerID, kind domain.MediaKind, p core.Producer) (core.Producer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[pid]
	if !ok {
		return nil, fmt.Errorf("peer %s: %w", pid, core.ErrNotFound)
	}
	old := e.producers[kind]
	e.producers[kind] = p
	log.Info().Str("module", "app.registry").Str("peer", string(pid)).
		Str("kind", string(kind)).Str("producer", p.ID()).
		Bool("replaced", old != nil).
		Msg("producer installed")
	return old, nil
}

// ProducerIDs returns the current producer id per kind for a peer.
// The bool is false if the peer is unknown, which callers report as a
// null result rather than an error.
func (r *Registry) ProducerIDs(pid domain.PeerID) (map[domain.MediaKind]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[pid]
	if !ok {
		return nil, false
	}
	out := make(map[domain.MediaKind]string, len(e.producers))
	for kind, p := range e.producers {
		out[kind] = p.ID()
	}
	return out, true
}

// SwapConsumer stores a consumer by kind, returning any prior one of
// the same kind for the caller to close.
func (r *Registry) SwapConsumer(pid domain.PeerID, kind domain.MediaKind, c core.Consumer) (core.Consumer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[pid]
	if !ok {
		return nil, fmt.Errorf("peer %s: %w", pid, core.ErrNotFound)
	}
	old := e.consumers[kind]
	e.consumers[kind] = c
	log.Info().Str("module", "app.registry").Str("peer", string(pid)).
		Str("kind", string(kind)).Str("consumer", c.ID()).
		Msg("consumer installed")
	return old, nil
}
