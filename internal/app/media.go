package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/anhdn/peercall/internal/core"
	"github.com/anhdn/peercall/internal/domain"
)

// ConsumeResult is what the consuming side needs to finish setting up
// its end of the stream.
type ConsumeResult struct {
	ID            string               `json:"id"`
	ProducerID    string               `json:"producerId"`
	Kind          domain.MediaKind     `json:"kind"`
	RTPParameters domain.RTPParameters `json:"rtpParameters"`
}

// RouterRtpCapabilities returns the engine's codec descriptor.
func (o *Orchestrator) RouterRtpCapabilities() domain.RTPCapabilities {
	return o.Engine.RouterRtpCapabilities()
}

// CreateTransport allocates an engine transport and appends it to the
// peer's owned set. If the peer disconnected while the engine call was
// in flight the transport is closed instead of installed.
func (o *Orchestrator) CreateTransport(ctx context.Context, pid domain.PeerID) (core.TransportInfo, error) {
	t, err := o.Engine.CreateTransport(ctx)
	if err != nil {
		return core.TransportInfo{}, fmt.Errorf("create transport: %w", err)
	}
	if err := o.Registry.AppendTransport(pid, t); err != nil {
		log.Warn().Str("module", "app.media").Str("peer", string(pid)).Str("transport", t.ID()).
			Msg("peer gone before transport install, discarding")
		_ = t.Close()
		return core.TransportInfo{}, err
	}
	return t.Info(), nil
}

// ConnectTransport applies the client's security parameters. The
// transport id is resolved within the calling peer's set only.
func (o *Orchestrator) ConnectTransport(ctx context.Context, pid domain.PeerID, transportID string, params core.ConnectParams) error {
	t, err := o.Registry.Transport(pid, transportID)
	if err != nil {
		return err
	}
	if err := t.Connect(ctx, params); err != nil {
		return fmt.Errorf("connect transport %s: %w", transportID, err)
	}
	return nil
}

// Produce creates a producer on an owned transport. A live producer of
// the same kind is replaced: the swap is atomic in the registry and
// the stale handle is closed after. Returns the new producer id.
func (o *Orchestrator) Produce(ctx context.Context, pid domain.PeerID, transportID string, kind domain.MediaKind, params domain.RTPParameters) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unsupported media kind %q", kind)
	}
	t, err := o.Registry.Transport(pid, transportID)
	if err != nil {
		return "", err
	}
	p, err := t.Produce(ctx, kind, params)
	if err != nil {
		return "", fmt.Errorf("produce %s: %w", kind, err)
	}
	old, err := o.Registry.SwapProducer(pid, kind, p)
	if err != nil {
		// Peer disconnected mid-flight; the fresh handle must not
		// outlive the entry it was meant for.
		_ = p.Close()
		return "", err
	}
	if old != nil {
		if cerr := old.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("module", "app.media").Str("peer", string(pid)).
				Str("producer", old.ID()).Msg("closing replaced producer")
		}
	}
	return p.ID(), nil
}

// Producers returns the target's current producer ids per kind, or
// ok=false when the target is unknown. Callers poll this while the
// remote side is still producing, so absence is not an error.
func (o *Orchestrator) Producers(target domain.PeerID) (map[domain.MediaKind]string, bool) {
	return o.Registry.ProducerIDs(target)
}

// Consume checks codec compatibility, resolves the owned transport and
// creates a consumer for the given remote producer. A prior consumer
// of the same kind is overwritten and closed.
func (o *Orchestrator) Consume(ctx context.Context, pid domain.PeerID, transportID, producerID string, caps domain.RTPCapabilities) (ConsumeResult, error) {
	if !o.Engine.CanConsume(producerID, caps) {
		return ConsumeResult{}, fmt.Errorf("producer %s: %w", producerID, core.ErrIncompatible)
	}
	t, err := o.Registry.Transport(pid, transportID)
	if err != nil {
		return ConsumeResult{}, err
	}
	c, err := t.Consume(ctx, producerID, caps)
	if err != nil {
		return ConsumeResult{}, fmt.Errorf("consume %s: %w", producerID, err)
	}
	old, err := o.Registry.SwapConsumer(pid, c.Kind(), c)
	if err != nil {
		_ = c.Close()
		return ConsumeResult{}, err
	}
	if old != nil {
		if cerr := old.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("module", "app.media").Str("peer", string(pid)).
				Str("consumer", old.ID()).Msg("closing replaced consumer")
		}
	}
	return ConsumeResult{
		ID:            c.ID(),
		ProducerID:    producerID,
		Kind:          c.Kind(),
		RTPParameters: c.RTPParameters(),
	}, nil
}
