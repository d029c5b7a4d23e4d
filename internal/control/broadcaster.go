package control

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lavahost/soundnode/internal/player"
)

// RunBroadcaster drains player events onto their owning sessions and runs
// the periodic playerUpdate and stats ticks. It blocks until ctx
// is cancelled; callers run it in its own goroutine for the node's
// lifetime.
func RunBroadcaster(ctx context.Context, state *AppState) {
	h := NewHandlers(state)

	updateInterval := time.Duration(state.Config.Lavalink.Server.PlayerUpdateInterval) * time.Second
	if updateInterval <= 0 {
		updateInterval = 5 * time.Second
	}
	updateTicker := time.NewTicker(updateInterval)
	defer updateTicker.Stop()

	statsTicker := time.NewTicker(60 * time.Second)
	defer statsTicker.Stop()

	events := state.Players.Events()

	for {
		select {
		case <-ctx.Done():
			return

		case e := <-events:
			h.dispatchPlayerEvent(e)

		case <-updateTicker.C:
			h.broadcastPlayerUpdates(ctx)

		case <-statsTicker.C:
			h.broadcastStats()
		}
	}
}

func (h *Handlers) dispatchPlayerEvent(e player.Event) {
	p, ok := h.state.Players.Get(e.GuildID)
	if !ok {
		return
	}
	sess, ok := h.state.Sessions.Get(p.SessionID())
	if !ok {
		return
	}

	if e.Type == "trackEnd" {
		h.state.Metrics.TrackEndsTotal.WithLabelValues(string(e.Reason)).Inc()
	}

	frame := eventFrame{Op: "event", Type: e.Type, GuildID: e.GuildID, Error: e.Error}
	if e.Track != nil {
		tv := trackView(*e.Track)
		frame.Track = &tv
	}
	if e.Type == "trackEnd" {
		frame.Reason = string(e.Reason)
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	if err := sess.Publish("event", e.GuildID, payload); err != nil {
		log.Warn().Err(err).Str("guild", e.GuildID).Msg("failed to publish player event")
	}
}

func (h *Handlers) broadcastPlayerUpdates(ctx context.Context) {
	for _, p := range h.state.Players.All() {
		p.CheckEndBoundary(ctx)

		sess, ok := h.state.Sessions.Get(p.SessionID())
		if !ok {
			continue
		}
		view := playerView(p)
		payload, err := json.Marshal(playerUpdateFrame{Op: "playerUpdate", GuildID: p.GuildID, State: view.State})
		if err != nil {
			continue
		}
		_ = sess.Publish("playerUpdate", p.GuildID, payload)
	}

	h.state.Metrics.ActivePlayers.Set(float64(h.state.Players.Len()))
	if h.state.RoutePlanner != nil {
		h.state.Metrics.RoutePlannerFailing.Set(float64(len(h.state.RoutePlanner.Status().Details.FailingAddresses)))
	}
}

func (h *Handlers) broadcastStats() {
	stats := h.buildStats()
	payload, err := json.Marshal(statsFrame{Op: "stats", StatsView: stats})
	if err != nil {
		return
	}
	for _, id := range h.state.Sessions.List() {
		sess, ok := h.state.Sessions.Get(id)
		if !ok {
			continue
		}
		_ = sess.Publish("stats", "", payload)
	}
}
