// Package control implements the node's /v4 HTTP control surface and
// WebSocket event stream.
package control

import (
	"time"

	"github.com/lavahost/soundnode/internal/appmetrics"
	"github.com/lavahost/soundnode/internal/config"
	"github.com/lavahost/soundnode/internal/plugin"
	"github.com/lavahost/soundnode/internal/player"
	"github.com/lavahost/soundnode/internal/routeplanner"
	"github.com/lavahost/soundnode/internal/session"
	"github.com/lavahost/soundnode/internal/source"
)

// AppState is the node's single piece of shared mutable state, threaded
// through every handler. Nothing else in this package holds package-level
// mutable state.
type AppState struct {
	Config      config.Config
	Sessions    *session.Manager
	Players     *player.Manager
	RoutePlanner *routeplanner.Planner
	Plugins     *plugin.Registry
	Sources     *source.Registry
	Metrics     *appmetrics.Metrics

	StartedAt   time.Time
	Version     string
	BuildCommit string
	BuildTime   string
}
