package control

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lavahost/soundnode/internal/apierror"
)

// routePlannerStatus handles GET /v4/routeplanner/status.
func (h *Handlers) routePlannerStatus(c *gin.Context) {
	if h.state.RoutePlanner == nil {
		c.JSON(http.StatusOK, gin.H{"class": nil, "details": nil})
		return
	}
	c.JSON(http.StatusOK, h.state.RoutePlanner.Status())
}

type freeAddressRequest struct {
	Address string `json:"address"`
}

// freeAddress handles POST /v4/routeplanner/free/address.
func (h *Handlers) freeAddress(c *gin.Context) {
	if h.state.RoutePlanner == nil {
		abortWithError(c, apierror.NotFound("no route planner configured"))
		return
	}
	var req freeAddressRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		abortWithError(c, apierror.BadRequest("invalid request body: "+err.Error()))
		return
	}
	ip := net.ParseIP(req.Address)
	if ip == nil {
		abortWithError(c, apierror.BadRequest("address is not a valid IP"))
		return
	}
	if !h.state.RoutePlanner.UnmarkAddress(ip) {
		abortWithError(c, apierror.NotFound("address is not marked failing"))
		return
	}
	c.Status(http.StatusNoContent)
}

// freeAllAddresses handles POST /v4/routeplanner/free/all.
func (h *Handlers) freeAllAddresses(c *gin.Context) {
	if h.state.RoutePlanner == nil {
		abortWithError(c, apierror.NotFound("no route planner configured"))
		return
	}
	h.state.RoutePlanner.UnmarkAll()
	c.Status(http.StatusNoContent)
}
