package control

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lavahost/soundnode/internal/apierror"
	"github.com/lavahost/soundnode/internal/filters"
	"github.com/lavahost/soundnode/internal/player"
	"github.com/lavahost/soundnode/internal/track"
)

// playerPatch is the body of PATCH /v4/sessions/{sid}/players/{gid}. A nil
// field is left untouched; Track itself carries its own omissible-like
// "clear vs set vs leave" distinction via TrackPatch.
type playerPatch struct {
	Track       *trackPatch          `json:"track"`
	Position    *int64               `json:"position"`
	EndTime     *int64               `json:"endTime"`
	Paused      *bool                `json:"paused"`
	Volume      *int                 `json:"volume"`
	Filters     *filters.FilterChain `json:"filters"`
	Voice       *voicePatch          `json:"voice"`
	RepeatTrack *bool                `json:"repeatTrack"`
	RepeatQueue *bool                `json:"repeatQueue"`
	Shuffle     *bool                `json:"shuffle"`
}

// trackPatch names the new track by either its encoded form or a raw
// identifier to resolve through the source registry; encoded null with no
// identifier means "stop, clear the current track".
type trackPatch struct {
	Encoded    *string `json:"encoded"`
	Identifier *string `json:"identifier"`
}

type voicePatch struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

// listPlayers handles GET /v4/sessions/{sid}/players.
func (h *Handlers) listPlayers(c *gin.Context) {
	sid := c.Param("sid")
	if _, ok := h.state.Sessions.Get(sid); !ok {
		abortWithError(c, apierror.NotFound("unknown session"))
		return
	}

	var out []PlayerView
	for _, p := range h.state.Players.All() {
		if p.SessionID() != sid {
			continue
		}
		out = append(out, playerView(p))
	}
	if out == nil {
		out = []PlayerView{}
	}
	c.JSON(http.StatusOK, out)
}

// resolvePlayer fetches the player for gid, requiring it belong to sid.
func (h *Handlers) resolvePlayer(c *gin.Context) (*player.Player, bool) {
	sid, gid := c.Param("sid"), c.Param("gid")
	p, ok := h.state.Players.Get(gid)
	if !ok || p.SessionID() != sid {
		abortWithError(c, apierror.NotFound("unknown player"))
		return nil, false
	}
	return p, true
}

// getPlayer handles GET /v4/sessions/{sid}/players/{gid}.
func (h *Handlers) getPlayer(c *gin.Context) {
	p, ok := h.resolvePlayer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, playerView(p))
}

// updatePlayer handles PATCH /v4/sessions/{sid}/players/{gid}, creating
// the player (bound to sid) if it doesn't exist yet. Fields apply in the
// order track -> paused -> filters, so a new track inherits the
// requested paused/filter state in the same request.
func (h *Handlers) updatePlayer(c *gin.Context) {
	sid, gid := c.Param("sid"), c.Param("gid")
	if _, ok := h.state.Sessions.Get(sid); !ok {
		abortWithError(c, apierror.NotFound("unknown session"))
		return
	}

	var patch playerPatch
	if err := bindOptionalJSON(c, &patch); err != nil {
		abortWithError(c, apierror.BadRequest("invalid request body: "+err.Error()))
		return
	}

	isNew := false
	if _, ok := h.state.Players.Get(gid); !ok {
		isNew = true
	}
	p := h.state.Players.GetOrCreate(gid, sid)
	if isNew {
		h.state.Metrics.ActivePlayers.Inc()
	}

	noReplace := c.Query("noReplace") == "true"

	if patch.Voice != nil {
		p.SetVoice(player.VoiceState{
			Token: patch.Voice.Token, Endpoint: patch.Voice.Endpoint, SessionID: patch.Voice.SessionID,
		})
	}

	if patch.Track != nil {
		if err := h.applyTrackPatch(c.Request.Context(), p, patch, noReplace); err != nil {
			abortWithError(c, err)
			return
		}
	} else if patch.Position != nil {
		if err := p.Seek(c.Request.Context(), time.Duration(*patch.Position)*time.Millisecond); err != nil {
			abortWithError(c, apierror.Internal(err.Error()))
			return
		}
	}

	if patch.Track == nil && patch.EndTime != nil {
		p.SetEndTime(patch.EndTime)
	}

	if patch.Paused != nil {
		p.Pause(*patch.Paused)
	}

	if patch.Volume != nil {
		p.SetVolume(*patch.Volume)
	}

	if patch.RepeatTrack != nil || patch.RepeatQueue != nil {
		curTrack, curQueue, _ := p.RepeatState()
		if patch.RepeatTrack != nil {
			curTrack = *patch.RepeatTrack
		}
		if patch.RepeatQueue != nil {
			curQueue = *patch.RepeatQueue
		}
		p.SetRepeat(curTrack, curQueue)
	}
	if patch.Shuffle != nil {
		p.SetShuffle(*patch.Shuffle)
	}

	if patch.Filters != nil {
		disabled := h.state.Config.Lavalink.Server.Filters.Disabled()
		merged := filters.Merge(p.Snapshot().Filters, *patch.Filters)
		if errs := filters.Validate(merged, disabled); len(errs) > 0 {
			writeValidationError(c, errs)
			return
		}
		p.ApplyFilters(*patch.Filters)
	}

	c.JSON(http.StatusOK, playerView(p))
}

// applyTrackPatch resolves and starts (or clears) the patched track.
func (h *Handlers) applyTrackPatch(ctx context.Context, p *player.Player, patch playerPatch, noReplace bool) error {
	tp := patch.Track
	if tp.Encoded == nil && tp.Identifier == nil {
		p.Stop()
		return nil
	}

	var t track.Track
	switch {
	case tp.Encoded != nil:
		decoded, err := track.Decode(*tp.Encoded)
		if err != nil {
			return apierror.BadRequest("invalid encoded track: " + err.Error())
		}
		t = decoded
	case tp.Identifier != nil:
		result, err := h.state.Sources.Resolve(ctx, *tp.Identifier)
		if err != nil {
			return apierror.Internal(err.Error())
		}
		if result.Kind != track.KindTrack {
			return apierror.BadRequest("identifier did not resolve to a single track")
		}
		t = *result.Track
	}

	var start time.Duration
	if patch.Position != nil {
		start = time.Duration(*patch.Position) * time.Millisecond
	}
	if err := p.Play(ctx, t, start, patch.EndTime, noReplace); err != nil {
		return apierror.Internal(err.Error())
	}
	h.state.Metrics.TrackStartsTotal.Inc()
	return nil
}

// destroyPlayer handles DELETE /v4/sessions/{sid}/players/{gid}.
func (h *Handlers) destroyPlayer(c *gin.Context) {
	p, ok := h.resolvePlayer(c)
	if !ok {
		return
	}
	h.state.Players.Remove(p.GuildID)
	h.state.Metrics.ActivePlayers.Dec()
	c.Status(http.StatusNoContent)
}

// skipPlayer handles POST /v4/sessions/{sid}/players/{gid}/skip: it pops
// the front of the queue (repeat and shuffle are not applied) and plays
// it, which ends the current track with reason Replaced. With an empty
// queue it stops the current track (reason Stopped) and reports a null
// track.
func (h *Handlers) skipPlayer(c *gin.Context) {
	p, ok := h.resolvePlayer(c)
	if !ok {
		return
	}
	next, hadNext := p.Queue().PopFront()
	if !hadNext {
		p.Stop()
		c.JSON(http.StatusOK, gin.H{"track": nil})
		return
	}
	if err := p.Play(c.Request.Context(), next, 0, nil, false); err != nil {
		abortWithError(c, apierror.Internal(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"track": trackView(next)})
}

func writeValidationError(c *gin.Context, errs []filters.ValidationError) {
	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = e.Error()
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error":  "ValidationError",
		"fields": fields,
	})
}
