// Package node wires the node's configuration, shared state, HTTP control
// surface, and websocket broadcaster into a single runnable server.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lavahost/soundnode/internal/appmetrics"
	"github.com/lavahost/soundnode/internal/config"
	"github.com/lavahost/soundnode/internal/control"
	"github.com/lavahost/soundnode/internal/pipeline"
	"github.com/lavahost/soundnode/internal/platform/youtube"
	"github.com/lavahost/soundnode/internal/player"
	"github.com/lavahost/soundnode/internal/plugin"
	"github.com/lavahost/soundnode/internal/routeplanner"
	"github.com/lavahost/soundnode/internal/session"
	"github.com/lavahost/soundnode/internal/source"
	"github.com/lavahost/soundnode/pkg/deps"
)

// BuildInfo carries version metadata stamped in at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Time    string
}

// Run loads configuration from configPath, builds the node's AppState, and
// serves the control surface until the process receives a termination
// signal. It returns only on shutdown or a fatal startup error.
func Run(configPath string, build BuildInfo) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("node: load config: %w", err)
	}

	logger := log.With().Str("component", "node").Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	checker := deps.NewChecker("ffmpeg", "yt-dlp")
	if err := checker.CheckAll(); err != nil {
		logger.Warn().Err(err).Msg("one or more playback dependencies are missing; related features will fail at runtime")
	}

	youtube.LoadConfigFromEnv()

	state, err := buildState(cfg, build)
	if err != nil {
		return fmt.Errorf("node: build state: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go control.RunBroadcaster(ctx, state)

	addr := net.JoinHostPort(cfg.Server.Address, fmt.Sprintf("%d", cfg.Server.Port))
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           control.NewRouter(state),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := notifyShutdown(ctx)
	defer stop()

	go func() {
		<-sigCtx.Done()
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("http server shutdown")
		}
	}()

	logger.Info().Str("addr", addr).Str("version", build.Version).Msg("starting soundnode")

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("node: serve: %w", err)
	}
	return nil
}

func buildState(cfg config.Config, build BuildInfo) (*control.AppState, error) {
	pipelineCfg := pipeline.DefaultConfig()
	pipelineCfg.Prebuffer = time.Duration(cfg.Lavalink.Server.BufferDurationMs) * time.Millisecond
	pipelineCfg.MaxBuffer = time.Duration(cfg.Lavalink.Server.FrameBufferDurationMs) * time.Millisecond
	pipelineCfg.TrackStuckThreshold = time.Duration(cfg.Lavalink.Server.TrackStuckThresholdMs) * time.Millisecond

	factory := func(label string) pipeline.Pipeline {
		return pipeline.New(pipelineCfg, label)
	}

	sources := source.NewRegistry()
	if cfg.Lavalink.Server.Sources.HTTP {
		sources.Register(source.NewHTTPAdapter())
	}
	if cfg.Lavalink.Server.Sources.Youtube {
		sources.Register(source.NewYoutubeAdapter(cfg.Lavalink.Server.YoutubePlaylistLoadLimit))
	}

	var planner *routeplanner.Planner
	if len(cfg.Lavalink.Server.RateLimit.IPBlocks) > 0 {
		p, err := routeplanner.New(routeplanner.Config{
			IPBlocks:           cfg.Lavalink.Server.RateLimit.IPBlocks,
			ExcludedIPs:        cfg.Lavalink.Server.RateLimit.ExcludedIPs,
			Strategy:           routeplanner.Strategy(cfg.Lavalink.Server.RateLimit.Strategy),
			SearchTriggersFail: cfg.Lavalink.Server.RateLimit.SearchTriggersFail,
			RetryLimit:         cfg.Lavalink.Server.RateLimit.RetryLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("route planner: %w", err)
		}
		planner = p
	}

	return &control.AppState{
		Config:       cfg,
		Sessions:     session.NewManager(),
		Players:      player.NewManager(factory),
		RoutePlanner: planner,
		Plugins:      plugin.NewRegistry(),
		Sources:      sources,
		Metrics:      appmetrics.New(prometheus.DefaultRegisterer),
		StartedAt:    time.Now(),
		Version:      build.Version,
		BuildCommit:  build.Commit,
		BuildTime:    build.Time,
	}, nil
}

