package control

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lavahost/soundnode/internal/apierror"
	"github.com/lavahost/soundnode/internal/filters"
)

// getFilters handles GET .../filters.
func (h *Handlers) getFilters(c *gin.Context) {
	p, ok := h.resolvePlayer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p.Snapshot().Filters)
}

// setFilters handles PATCH .../filters.
func (h *Handlers) setFilters(c *gin.Context) {
	p, ok := h.resolvePlayer(c)
	if !ok {
		return
	}

	var patch filters.FilterChain
	if err := bindOptionalJSON(c, &patch); err != nil {
		abortWithError(c, apierror.BadRequest("invalid request body: "+err.Error()))
		return
	}

	disabled := h.state.Config.Lavalink.Server.Filters.Disabled()
	merged := filters.Merge(p.Snapshot().Filters, patch)
	if errs := filters.Validate(merged, disabled); len(errs) > 0 {
		writeValidationError(c, errs)
		return
	}

	result := p.ApplyFilters(patch)
	c.JSON(http.StatusOK, result)
}

// applyPreset handles POST .../filters/preset/{name}.
func (h *Handlers) applyPreset(c *gin.Context) {
	p, ok := h.resolvePlayer(c)
	if !ok {
		return
	}
	preset, ok := filters.Preset(c.Param("name"))
	if !ok {
		abortWithError(c, apierror.NotFound("unknown filter preset"))
		return
	}

	disabled := h.state.Config.Lavalink.Server.Filters.Disabled()
	merged := filters.Merge(p.Snapshot().Filters, preset)
	if errs := filters.Validate(merged, disabled); len(errs) > 0 {
		writeValidationError(c, errs)
		return
	}

	result := p.ApplyFilters(preset)
	c.JSON(http.StatusOK, result)
}
