package control

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lavahost/soundnode/internal/apierror"
	"github.com/lavahost/soundnode/internal/player"
	"github.com/lavahost/soundnode/internal/track"
)

func queueView(p *player.Player) QueueView {
	repeatTrack, repeatQueue, shuffle := p.RepeatState()
	tracks := p.Queue().Snapshot()
	views := make([]TrackView, len(tracks))
	for i, t := range tracks {
		views[i] = trackView(t)
	}
	return QueueView{Tracks: views, RepeatTrack: repeatTrack, RepeatQueue: repeatQueue, Shuffle: shuffle}
}

// getQueue handles GET .../queue.
func (h *Handlers) getQueue(c *gin.Context) {
	p, ok := h.resolvePlayer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, queueView(p))
}

// queuedTrack is one entry of a batch add: {"encoded": "..."}.
type queuedTrack struct {
	Encoded string `json:"encoded"`
}

// addToQueueRequest is the body of POST .../queue: either a single encoded
// track or a batch of {encoded} objects.
type addToQueueRequest struct {
	Encoded *string       `json:"encoded"`
	Tracks  []queuedTrack `json:"tracks"`
}

// addToQueue handles POST .../queue.
func (h *Handlers) addToQueue(c *gin.Context) {
	p, ok := h.resolvePlayer(c)
	if !ok {
		return
	}
	var req addToQueueRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		abortWithError(c, apierror.BadRequest("invalid request body: "+err.Error()))
		return
	}

	encodedList := make([]string, 0, len(req.Tracks)+1)
	for _, qt := range req.Tracks {
		encodedList = append(encodedList, qt.Encoded)
	}
	if req.Encoded != nil {
		encodedList = append(encodedList, *req.Encoded)
	}
	if len(encodedList) == 0 {
		abortWithError(c, apierror.BadRequest("no tracks supplied"))
		return
	}

	tracks := make([]track.Track, 0, len(encodedList))
	for _, enc := range encodedList {
		t, err := track.Decode(enc)
		if err != nil {
			abortWithError(c, apierror.BadRequest("invalid encoded track: "+err.Error()))
			return
		}
		tracks = append(tracks, t)
	}

	added := p.Queue().Append(tracks...)
	c.JSON(http.StatusOK, gin.H{"added": added})
}

// removeFromQueue handles DELETE .../queue/{index}.
func (h *Handlers) removeFromQueue(c *gin.Context) {
	p, ok := h.resolvePlayer(c)
	if !ok {
		return
	}
	idx, err := parseIndex(c.Param("index"))
	if err != nil {
		abortWithError(c, apierror.BadRequest("index must be an integer"))
		return
	}
	removed, err := p.Queue().RemoveAt(idx)
	if err != nil {
		abortWithError(c, apierror.NotFound("queue index out of range"))
		return
	}
	c.JSON(http.StatusOK, trackView(removed))
}

// clearQueue handles DELETE .../queue.
func (h *Handlers) clearQueue(c *gin.Context) {
	p, ok := h.resolvePlayer(c)
	if !ok {
		return
	}
	cleared := p.Queue().Clear()
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

// moveQueueRequest is the body of POST .../queue/move.
type moveQueueRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// moveInQueue handles POST .../queue/move.
func (h *Handlers) moveInQueue(c *gin.Context) {
	p, ok := h.resolvePlayer(c)
	if !ok {
		return
	}
	var req moveQueueRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		abortWithError(c, apierror.BadRequest("invalid request body: "+err.Error()))
		return
	}
	moved, err := p.Queue().Move(req.From, req.To)
	if err != nil {
		abortWithError(c, apierror.BadRequest("from/to index out of range"))
		return
	}
	c.JSON(http.StatusOK, trackView(moved))
}

// shuffleQueue handles POST .../queue/shuffle: a one-off in-place
// randomization, distinct from the persistent shuffle flag on the player
// (set via PATCH .../players/{gid} -> queue advancement policy).
func (h *Handlers) shuffleQueue(c *gin.Context) {
	p, ok := h.resolvePlayer(c)
	if !ok {
		return
	}
	count := p.Queue().Shuffle()
	c.JSON(http.StatusOK, gin.H{"shuffled": count})
}

func parseIndex(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, apierror.BadRequest("missing index")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, apierror.BadRequest("index must be a non-negative integer")
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}
