// Package app coordinates peer lifecycle: the resource registry, the
// presence directory and every interaction with the media engine.
package app

import (
	"github.com/anhdn/peercall/internal/core"
)

// Orchestrator glues the registry to the media engine. Signaling
// adapters call into it; it never touches the wire itself.
type Orchestrator struct {
	Registry *Registry
	Engine   core.Engine
}

func NewOrchestrator(reg *Registry, engine core.Engine) *Orchestrator {
	return &Orchestrator{Registry: reg, Engine: engine}
}
