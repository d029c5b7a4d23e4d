package control

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the node's Gin engine: unauthenticated health/metrics
// at the root, the /v4 API behind authMiddleware, and the websocket
// event stream at /v4/websocket.
func NewRouter(state *AppState) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	h := NewHandlers(state)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v4 := r.Group("/v4")
	v4.Use(authMiddleware(state.Config.Lavalink.Server.Password))
	{
		v4.GET("/info", h.info)
		v4.GET("/version", h.version)
		v4.GET("/stats", h.stats)
		v4.GET("/websocket", h.serveWebSocket)

		v4.GET("/loadtracks", h.loadTracks)
		v4.GET("/decodetrack", h.decodeTrack)

		v4.GET("/routeplanner/status", h.routePlannerStatus)
		v4.POST("/routeplanner/free/address", h.freeAddress)
		v4.POST("/routeplanner/free/all", h.freeAllAddresses)

		v4.POST("/plugins/reload", h.reloadPlugins)

		sessions := v4.Group("/sessions")
		{
			sessions.GET("", h.listSessions)
			sessions.GET("/:sid", h.getSession)
			sessions.PATCH("/:sid", h.updateSession)
			sessions.DELETE("/:sid", h.deleteSession)

			players := sessions.Group("/:sid/players")
			{
				players.GET("", h.listPlayers)
				players.GET("/:gid", h.getPlayer)
				players.PATCH("/:gid", h.updatePlayer)
				players.DELETE("/:gid", h.destroyPlayer)
				players.POST("/:gid/skip", h.skipPlayer)

				players.GET("/:gid/queue", h.getQueue)
				players.POST("/:gid/queue", h.addToQueue)
				players.DELETE("/:gid/queue", h.clearQueue)
				players.DELETE("/:gid/queue/:index", h.removeFromQueue)
				players.POST("/:gid/queue/move", h.moveInQueue)
				players.POST("/:gid/queue/shuffle", h.shuffleQueue)

				players.GET("/:gid/filters", h.getFilters)
				players.PATCH("/:gid/filters", h.setFilters)
				players.POST("/:gid/filters/preset/:name", h.applyPreset)
			}
		}
	}

	return r
}
