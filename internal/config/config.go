// Package config loads the node's declarative configuration document
// from application.yml, then applies SOUNDNODE_-prefixed environment
// overrides on top, the same way internal/platform/youtube layers env
// vars over its defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ResamplingQuality selects the resampler's quality/latency tradeoff.
type ResamplingQuality string

const (
	ResamplingLow    ResamplingQuality = "Low"
	ResamplingMedium ResamplingQuality = "Medium"
	ResamplingHigh   ResamplingQuality = "High"
)

type ServerConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	HTTP2   struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"http2"`
}

type SourcesConfig struct {
	Youtube    bool `yaml:"youtube"`
	Bandcamp   bool `yaml:"bandcamp"`
	Soundcloud bool `yaml:"soundcloud"`
	Twitch     bool `yaml:"twitch"`
	Vimeo      bool `yaml:"vimeo"`
	Nico       bool `yaml:"nico"`
	HTTP       bool `yaml:"http"`
	Local      bool `yaml:"local"`
}

type FiltersConfig struct {
	Volume     bool `yaml:"volume"`
	Equalizer  bool `yaml:"equalizer"`
	Karaoke    bool `yaml:"karaoke"`
	Timescale  bool `yaml:"timescale"`
	Tremolo    bool `yaml:"tremolo"`
	Vibrato    bool `yaml:"vibrato"`
	Distortion bool `yaml:"distortion"`
	Rotation   bool `yaml:"rotation"`
	ChannelMix bool `yaml:"channelMix"`
	LowPass    bool `yaml:"lowPass"`
}

// Disabled returns the set of filter names this configuration turns off,
// in the shape internal/filters.Validate expects.
func (f FiltersConfig) Disabled() map[string]bool {
	disabled := map[string]bool{}
	for name, enabled := range map[string]bool{
		"volume": f.Volume, "equalizer": f.Equalizer, "karaoke": f.Karaoke,
		"timescale": f.Timescale, "tremolo": f.Tremolo, "vibrato": f.Vibrato,
		"distortion": f.Distortion, "rotation": f.Rotation,
		"channelMix": f.ChannelMix, "lowPass": f.LowPass,
	} {
		if !enabled {
			disabled[name] = true
		}
	}
	return disabled
}

type RateLimitConfig struct {
	IPBlocks           []string `yaml:"ipBlocks"`
	ExcludedIPs        []string `yaml:"excludedIps"`
	Strategy           string   `yaml:"strategy"`
	SearchTriggersFail bool     `yaml:"searchTriggersFail"`
	RetryLimit         int      `yaml:"retryLimit"`
}

type TimeoutsConfig struct {
	ConnectTimeoutMs           int `yaml:"connectTimeoutMs"`
	ConnectionRequestTimeoutMs int `yaml:"connectionRequestTimeoutMs"`
	SocketTimeoutMs            int `yaml:"socketTimeoutMs"`
}

type LavalinkServerConfig struct {
	Password                 string            `yaml:"password"`
	Sources                  SourcesConfig     `yaml:"sources"`
	Filters                  FiltersConfig     `yaml:"filters"`
	BufferDurationMs         int               `yaml:"bufferDurationMs"`
	FrameBufferDurationMs    int               `yaml:"frameBufferDurationMs"`
	OpusEncodingQuality      int               `yaml:"opusEncodingQuality"`
	ResamplingQuality        ResamplingQuality `yaml:"resamplingQuality"`
	TrackStuckThresholdMs    int               `yaml:"trackStuckThresholdMs"`
	UseSeekGhosting          bool              `yaml:"useSeekGhosting"`
	PlayerUpdateInterval     int               `yaml:"playerUpdateInterval"`
	YoutubePlaylistLoadLimit int               `yaml:"youtubePlaylistLoadLimit"`
	YoutubeSearchEnabled     bool              `yaml:"youtubeSearchEnabled"`
	SoundcloudSearchEnabled  bool              `yaml:"soundcloudSearchEnabled"`
	RateLimit                RateLimitConfig   `yaml:"ratelimit"`
	Timeouts                 TimeoutsConfig    `yaml:"timeouts"`
}

type LavalinkConfig struct {
	Server LavalinkServerConfig `yaml:"server"`
}

type PluginDependency struct {
	Dependency string `yaml:"dependency"`
	Repository string `yaml:"repository,omitempty"`
	Snapshot   bool   `yaml:"snapshot,omitempty"`
}

type PluginsConfig struct {
	PluginsDir string             `yaml:"pluginsDir"`
	Plugins    []PluginDependency `yaml:"plugins"`
}

// Config is the top-level document: server.*, lavalink.server.*, plugins.*.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Lavalink LavalinkConfig `yaml:"lavalink"`
	Plugins  PluginsConfig  `yaml:"plugins"`
}

// Default returns a configuration with the node's shipped defaults, before
// any file or environment overrides are applied.
func Default() Config {
	var c Config
	c.Server.Port = 2333
	c.Server.Address = "0.0.0.0"
	c.Lavalink.Server.Sources = SourcesConfig{Youtube: true, HTTP: true, Local: true}
	c.Lavalink.Server.Filters = FiltersConfig{
		Volume: true, Equalizer: true, Karaoke: true, Timescale: true,
		Tremolo: true, Vibrato: true, Distortion: true, Rotation: true,
		ChannelMix: true, LowPass: true,
	}
	c.Lavalink.Server.BufferDurationMs = 400
	c.Lavalink.Server.FrameBufferDurationMs = 5000
	c.Lavalink.Server.OpusEncodingQuality = 10
	c.Lavalink.Server.ResamplingQuality = ResamplingHigh
	c.Lavalink.Server.TrackStuckThresholdMs = 10000
	c.Lavalink.Server.PlayerUpdateInterval = 5
	c.Lavalink.Server.YoutubePlaylistLoadLimit = 6
	c.Lavalink.Server.YoutubeSearchEnabled = true
	c.Lavalink.Server.SoundcloudSearchEnabled = true
	c.Lavalink.Server.RateLimit.IPBlocks = []string{"0.0.0.0/0"}
	c.Lavalink.Server.RateLimit.Strategy = "RotateOnBan"
	c.Lavalink.Server.RateLimit.RetryLimit = -1
	c.Lavalink.Server.Timeouts = TimeoutsConfig{
		ConnectTimeoutMs: 3000, ConnectionRequestTimeoutMs: 3000, SocketTimeoutMs: 3000,
	}
	return c
}

// Load reads path (if non-empty and present) over the default
// configuration, then applies SOUNDNODE_-prefixed environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides layers SOUNDNODE_SERVER_PORT,
// SOUNDNODE_LAVALINK_SERVER_PASSWORD, and friends over the loaded
// document, so containerized deployments can skip the file entirely.
func applyEnvOverrides(cfg *Config) {
	if v, ok := lookupEnv("SOUNDNODE_SERVER_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v, ok := lookupEnv("SOUNDNODE_SERVER_ADDRESS"); ok {
		cfg.Server.Address = v
	}
	if v, ok := lookupEnv("SOUNDNODE_LAVALINK_SERVER_PASSWORD"); ok {
		cfg.Lavalink.Server.Password = v
	}
	if v, ok := lookupEnv("SOUNDNODE_LAVALINK_SERVER_RATELIMIT_IPBLOCKS"); ok {
		cfg.Lavalink.Server.RateLimit.IPBlocks = strings.Split(v, ",")
	}
	if v, ok := lookupEnv("SOUNDNODE_LAVALINK_SERVER_RATELIMIT_STRATEGY"); ok {
		cfg.Lavalink.Server.RateLimit.Strategy = v
	}
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
