package control

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lavahost/soundnode/internal/apierror"
	"github.com/lavahost/soundnode/internal/track"
)

// loadTracks handles GET /v4/loadtracks?identifier=....
func (h *Handlers) loadTracks(c *gin.Context) {
	identifier := c.Query("identifier")
	if identifier == "" {
		abortWithError(c, apierror.BadRequest("identifier query parameter is required"))
		return
	}

	result, err := h.state.Sources.Resolve(c.Request.Context(), identifier)
	if err != nil {
		result = track.NewErrorResult(err.Error(), track.SeverityFault, "")
	}

	for _, name := range h.state.Plugins.Names() {
		p, _ := h.state.Plugins.Get(name)
		rewritten, err := p.OnTrackLoad(identifier, result)
		if err != nil {
			continue
		}
		result = rewritten
	}

	c.JSON(http.StatusOK, loadResultView(result))
}

// decodeTrack handles GET /v4/decodetrack?encodedTrack=....
func (h *Handlers) decodeTrack(c *gin.Context) {
	encoded := c.Query("encodedTrack")
	if encoded == "" {
		abortWithError(c, apierror.BadRequest("encodedTrack query parameter is required"))
		return
	}
	t, err := track.Decode(encoded)
	if err != nil {
		abortWithError(c, apierror.BadRequest("invalid encoded track: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, trackView(t))
}
