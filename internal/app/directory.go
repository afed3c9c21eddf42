package app

import (
	"github.com/rs/zerolog/log"

	"github.com/anhdn/peercall/internal/domain"
)

// Register sets the display name for a peer. Registering twice simply
// overwrites; the caller rebroadcasts presence afterwards.
func (o *Orchestrator) Register(pid domain.PeerID, name string) error {
	if err := domain.ValidateDisplayName(name); err != nil {
		return err
	}
	if !o.Registry.SetName(pid, name) {
		log.Warn().Str("module", "app.directory").Str("peer", string(pid)).Msg("register for unknown peer")
		return nil
	}
	return nil
}

// Presence returns the discovery list: every peer that registered a
// display name.
func (o *Orchestrator) Presence() []domain.PresenceEntry {
	return o.Registry.Presence()
}
