package control

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lavahost/soundnode/internal/apierror"
)

// InfoView is the response to GET /v4/info: static node capability
// description, matching what a bot uses to decide whether this node
// supports a given source or filter before issuing playback requests.
type InfoView struct {
	Version      VersionView `json:"version"`
	BuildTime    int64       `json:"buildTime"`
	SourceManagers []string  `json:"sourceManagers"`
	Filters      []string    `json:"filters"`
	Plugins      []PluginInfoView `json:"plugins"`
}

type VersionView struct {
	Semver string `json:"semver"`
	Major  int    `json:"major"`
	Minor  int    `json:"minor"`
	Patch  int    `json:"patch"`
}

type PluginInfoView struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// info handles GET /v4/info.
func (h *Handlers) info(c *gin.Context) {
	filterNames := make([]string, 0, len(h.state.Config.Lavalink.Server.Filters.Disabled()))
	disabled := h.state.Config.Lavalink.Server.Filters.Disabled()
	for _, name := range filterOrderNames() {
		if !disabled[name] {
			filterNames = append(filterNames, name)
		}
	}

	versions := h.state.Plugins.Versions()
	plugins := make([]PluginInfoView, 0, len(versions))
	for name, version := range versions {
		plugins = append(plugins, PluginInfoView{Name: name, Version: version})
	}

	c.JSON(http.StatusOK, InfoView{
		Version:        parseSemver(h.state.Version),
		BuildTime:      buildTimeMillis(h.state.BuildTime),
		SourceManagers: h.state.Sources.Names(),
		Filters:        filterNames,
		Plugins:        plugins,
	})
}

// reloadPlugins handles POST /v4/plugins/reload. This node only loads
// plugins compiled into its binary, so the request always fails with 501;
// Registry.Reload documents why.
func (h *Handlers) reloadPlugins(c *gin.Context) {
	err := h.state.Plugins.Reload()
	abortWithError(c, apierror.NotImplemented(err.Error()))
}

// version handles GET /v4/version: a bare-text semver response, matching
// Lavalink's plaintext /version convention (distinct from /info's
// structured version sub-object).
func (h *Handlers) version(c *gin.Context) {
	c.String(http.StatusOK, h.state.Version)
}

// StatsView is the response to GET /v4/stats and the periodic stats
// websocket frame.
type StatsView struct {
	Players       int           `json:"players"`
	PlayingPlayers int          `json:"playingPlayers"`
	Uptime        int64         `json:"uptime"`
	Memory        MemoryView    `json:"memory"`
	CPU           CPUView       `json:"cpu"`
}

type MemoryView struct {
	Free       uint64 `json:"free"`
	Used       uint64 `json:"used"`
	Allocated  uint64 `json:"allocated"`
	Reservable uint64 `json:"reservable"`
}

type CPUView struct {
	Cores        int     `json:"cores"`
	SystemLoad   float64 `json:"systemLoad"`
	LavalinkLoad float64 `json:"lavalinkLoad"`
}

func (h *Handlers) buildStats() StatsView {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	players := h.state.Players.All()
	playing := 0
	for _, p := range players {
		if p.State() == "playing" {
			playing++
		}
	}

	return StatsView{
		Players:        len(players),
		PlayingPlayers: playing,
		Uptime:         time.Since(h.state.StartedAt).Milliseconds(),
		Memory: MemoryView{
			Free: mem.Sys - mem.HeapInuse, Used: mem.HeapInuse,
			Allocated: mem.Sys, Reservable: mem.Sys,
		},
		CPU: CPUView{Cores: runtime.NumCPU()},
	}
}

// stats handles GET /v4/stats.
func (h *Handlers) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.buildStats())
}

func filterOrderNames() []string {
	return []string{
		"volume", "equalizer", "karaoke", "timescale", "tremolo",
		"vibrato", "rotation", "distortion", "channelMix", "lowPass",
	}
}

func parseSemver(v string) VersionView {
	view := VersionView{Semver: v}
	fmt.Sscanf(v, "%d.%d.%d", &view.Major, &view.Minor, &view.Patch)
	return view
}

func buildTimeMillis(raw string) int64 {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}
