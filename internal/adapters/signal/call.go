package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/anhdn/peercall/internal/domain"
)

// Call handshake: Idle -> Ringing -> Accepted/Rejected -> Idle. The
// server keeps no per-call state; each transition is one forwarded
// notification and simultaneous cross-calls are not arbitrated.

func (ctl *Controller) handleCallUser(pid domain.PeerID, env envelope) {
	type callPayload struct {
		TargetID domain.PeerID `json:"targetId"`
	}
	var p callPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad call-user payload")
		return
	}
	if !ctl.Invites.Allow(pid) {
		log.Warn().Str("module", "signal").Str("peer", string(pid)).Msg("call invite rate limited")
		return
	}

	name, _ := ctl.Orch.Registry.Name(pid)
	log.Info().Str("module", "signal").Str("from", string(pid)).Str("to", string(p.TargetID)).Msg("call")
	ctl.eventTo(p.TargetID, "incoming-call", struct {
		From domain.PeerID `json:"from"`
		Name string        `json:"name"`
	}{From: pid, Name: name})
}

func (ctl *Controller) handleAnswerCall(pid domain.PeerID, env envelope) {
	type answerPayload struct {
		CallerID domain.PeerID `json:"callerId"`
		Accept   bool          `json:"accept"`
	}
	var p answerPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad answer-call payload")
		return
	}

	log.Info().Str("module", "signal").Str("peer", string(pid)).Bool("accept", p.Accept).Msg("call answered")
	ctl.eventTo(p.CallerID, "call-answered", struct {
		Accept   bool          `json:"accept"`
		AnswerID domain.PeerID `json:"answerId"`
	}{Accept: p.Accept, AnswerID: pid})
}

func (ctl *Controller) handleEndCall(pid domain.PeerID, env envelope) {
	type endPayload struct {
		TargetID domain.PeerID `json:"targetId"`
	}
	var p endPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad end-call payload")
		return
	}

	log.Info().Str("module", "signal").Str("from", string(pid)).Str("to", string(p.TargetID)).Msg("call ended")
	ctl.eventTo(p.TargetID, "call-ended", struct{}{})
}
