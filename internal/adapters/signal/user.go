package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/anhdn/peercall/internal/domain"
)

func (ctl *Controller) handleRegister(pid domain.PeerID, conn *wsSignalConn, env envelope) {
	type registerPayload struct {
		Name string `json:"name"`
	}
	var p registerPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad register payload")
		ctl.replyErr(conn, env, err)
		return
	}
	if err := ctl.Orch.Register(pid, p.Name); err != nil {
		ctl.replyErr(conn, env, err)
		return
	}

	log.Info().Str("module", "signal").Str("peer", string(pid)).Str("name", p.Name).Msg("registered")
	ctl.broadcastUsers()
}

func (ctl *Controller) handleGetUsers(conn *wsSignalConn) {
	ctl.event(conn, "users", ctl.Orch.Presence())
}

// broadcastUsers pushes the full presence list to every connected
// peer. Global fan-out on purpose; the discovery screen shows everyone.
func (ctl *Controller) broadcastUsers() {
	users := ctl.Orch.Presence()
	for _, conn := range ctl.Orch.Registry.Signals() {
		ctl.event(conn, "users", users)
	}
}
