package control

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lavahost/soundnode/internal/apierror"
	"github.com/lavahost/soundnode/internal/session"
)

// sessionPatch is the body of PATCH /v4/sessions/{sid}.
type sessionPatch struct {
	Resuming *bool  `json:"resuming"`
	Timeout  *int64 `json:"timeout"` // seconds, per Lavalink convention
}

func sessionView(s *session.Session) SessionView {
	return SessionView{
		Resuming: s.IsResuming(),
		Timeout:  int64(s.Timeout() / time.Second),
	}
}

// listSessions handles GET /v4/sessions.
func (h *Handlers) listSessions(c *gin.Context) {
	ids := h.state.Sessions.List()
	out := make([]SessionView, 0, len(ids))
	for _, id := range ids {
		if s, ok := h.state.Sessions.Get(id); ok {
			out = append(out, sessionView(s))
		}
	}
	c.JSON(http.StatusOK, out)
}

// getSession handles GET /v4/sessions/{sid}.
func (h *Handlers) getSession(c *gin.Context) {
	s, ok := h.state.Sessions.Get(c.Param("sid"))
	if !ok {
		abortWithError(c, apierror.NotFound("unknown session"))
		return
	}
	c.JSON(http.StatusOK, sessionView(s))
}

// updateSession handles PATCH /v4/sessions/{sid}, creating the session if
// it does not already exist — the node accepts caller-chosen session IDs
// as well as server-generated ones handed out in the ready frame.
func (h *Handlers) updateSession(c *gin.Context) {
	sid := c.Param("sid")
	var patch sessionPatch
	if err := bindOptionalJSON(c, &patch); err != nil {
		abortWithError(c, apierror.BadRequest("invalid request body: "+err.Error()))
		return
	}

	s, ok := h.state.Sessions.Get(sid)
	if !ok {
		s = h.state.Sessions.Create(sid)
		h.state.Metrics.ActiveSessions.Inc()
	}

	resuming := s.IsResuming()
	if patch.Resuming != nil {
		resuming = *patch.Resuming
	}
	timeout := s.Timeout()
	if patch.Timeout != nil {
		timeout = time.Duration(*patch.Timeout) * time.Second
	}
	s.Configure(resuming, timeout)

	c.JSON(http.StatusOK, sessionView(s))
}

// deleteSession handles DELETE /v4/sessions/{sid}: removing a session
// cascades to every player it owns.
func (h *Handlers) deleteSession(c *gin.Context) {
	sid := c.Param("sid")
	if err := h.state.Sessions.Delete(sid); err != nil {
		abortWithError(c, apierror.NotFound("unknown session"))
		return
	}
	h.state.Players.RemoveForSession(sid)
	h.state.Metrics.ActiveSessions.Dec()
	c.Status(http.StatusNoContent)
}

// newSessionID mints a server-generated session ID for a connection that
// didn't present one of its own, mirroring google/uuid's use elsewhere in
// the corpus for opaque ID generation.
func newSessionID() string {
	return uuid.NewString()
}
