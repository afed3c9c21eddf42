package app

import (
	"github.com/rs/zerolog/log"

	"github.com/anhdn/peercall/internal/domain"
)

// Cleanup releases everything a peer owns: transports first, then
// producers, then consumers, then the registry entry itself. Engine
// close failures are logged and skipped; the resources are being
// discarded either way. Returns false if the peer was already gone.
func (o *Orchestrator) Cleanup(pid domain.PeerID) bool {
	res, ok := o.Registry.Remove(pid)
	if !ok {
		return false
	}

	for _, t := range res.Transports {
		if err := t.Close(); err != nil {
			log.Warn().Err(err).Str("module", "app.cleanup").Str("peer", string(pid)).
				Str("transport", t.ID()).Msg("closing transport")
		}
	}
	for _, p := range res.Producers {
		if err := p.Close(); err != nil {
			log.Warn().Err(err).Str("module", "app.cleanup").Str("peer", string(pid)).
				Str("producer", p.ID()).Msg("closing producer")
		}
	}
	for _, c := range res.Consumers {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Str("module", "app.cleanup").Str("peer", string(pid)).
				Str("consumer", c.ID()).Msg("closing consumer")
		}
	}
	log.Info().Str("module", "app.cleanup").Str("peer", string(pid)).Msg("peer cleaned up")
	return true
}
