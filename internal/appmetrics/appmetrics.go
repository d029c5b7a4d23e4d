// Package appmetrics exposes the node's Prometheus collectors.
package appmetrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector this node registers. Callers register it
// once against a registry (or the default one) at startup.
type Metrics struct {
	ActivePlayers     prometheus.Gauge
	ActiveSessions    prometheus.Gauge
	TrackStartsTotal  prometheus.Counter
	TrackEndsTotal    *prometheus.CounterVec
	RoutePlannerFailing prometheus.Gauge
	EventChannelDepth prometheus.Gauge
}

// New constructs and registers every collector against reg. Pass
// prometheus.DefaultRegisterer for the process-global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActivePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "soundnode", Name: "active_players",
			Help: "Number of guilds with a live player.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "soundnode", Name: "active_sessions",
			Help: "Number of tracked client sessions, live or resuming.",
		}),
		TrackStartsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "soundnode", Name: "track_starts_total",
			Help: "Total tracks that began playback.",
		}),
		TrackEndsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soundnode", Name: "track_ends_total",
			Help: "Total tracks that stopped playback, labeled by end reason.",
		}, []string{"reason"}),
		RoutePlannerFailing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "soundnode", Name: "routeplanner_failing_addresses",
			Help: "Number of outbound addresses currently marked failing.",
		}),
		EventChannelDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "soundnode", Name: "event_channel_depth",
			Help: "Number of buffered, undelivered player events.",
		}),
	}

	reg.MustRegister(
		m.ActivePlayers, m.ActiveSessions, m.TrackStartsTotal,
		m.TrackEndsTotal, m.RoutePlannerFailing, m.EventChannelDepth,
	)
	return m
}
