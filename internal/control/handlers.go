package control

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Handlers binds every /v4 route to the shared AppState. It holds no
// mutable state of its own; everything it touches lives on AppState.
type Handlers struct {
	state *AppState
	log   zerolog.Logger
}

// NewHandlers constructs the handler set for state.
func NewHandlers(state *AppState) *Handlers {
	return &Handlers{
		state: state,
		log:   log.With().Str("component", "control").Logger(),
	}
}
