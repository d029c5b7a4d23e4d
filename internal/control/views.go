package control

import (
	"time"

	"github.com/lavahost/soundnode/internal/filters"
	"github.com/lavahost/soundnode/internal/player"
	"github.com/lavahost/soundnode/internal/track"
)

// nowMillis is the wire convention for every timestamp field in this
// package: Unix milliseconds, matching Lavalink's PlayerState.time.
func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// TrackInfo is the descriptive-metadata half of a wire Track.
type TrackInfo struct {
	Identifier string  `json:"identifier"`
	IsSeekable bool    `json:"isSeekable"`
	Author     string  `json:"author"`
	Length     int64   `json:"length"`
	IsStream   bool    `json:"isStream"`
	Position   int64   `json:"position"`
	Title      string  `json:"title"`
	URI        *string `json:"uri,omitempty"`
	SourceName string  `json:"sourceName"`
	ArtworkURL *string `json:"artworkUrl,omitempty"`
	ISRC       *string `json:"isrc,omitempty"`
}

// TrackView is the wire shape of a resolved track: the opaque encoded
// string plus its decoded metadata.
type TrackView struct {
	Encoded   string    `json:"encoded"`
	Info      TrackInfo `json:"info"`
	PluginInfo struct{}  `json:"pluginInfo"`
}

func trackView(t track.Track) TrackView {
	return TrackView{
		Encoded: track.Encode(t),
		Info: TrackInfo{
			Identifier: t.Identifier,
			IsSeekable: t.IsSeekable,
			Author:     t.Author,
			Length:     t.LengthMs,
			IsStream:   t.IsStream,
			Position:   t.PositionMs,
			Title:      t.Title,
			URI:        t.URI,
			SourceName: t.SourceName,
			ArtworkURL: t.ArtworkURL,
			ISRC:       t.ISRC,
		},
	}
}

// LoadResultView is the tagged-union JSON rendering of a track.LoadResult:
// {loadType, data} where data's shape depends on loadType.
type LoadResultView struct {
	LoadType string      `json:"loadType"`
	Data     interface{} `json:"data,omitempty"`
}

type playlistView struct {
	Info    playlistInfoView `json:"info"`
	Tracks  []TrackView      `json:"tracks"`
}

type playlistInfoView struct {
	Name          string `json:"name"`
	SelectedTrack int    `json:"selectedTrack"`
}

type loadErrorView struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

func loadResultView(r track.LoadResult) LoadResultView {
	switch r.Kind {
	case track.KindTrack:
		return LoadResultView{LoadType: "track", Data: trackView(*r.Track)}
	case track.KindPlaylist:
		tracks := make([]TrackView, len(r.Tracks))
		for i, t := range r.Tracks {
			tracks[i] = trackView(t)
		}
		return LoadResultView{LoadType: "playlist", Data: playlistView{
			Info:   playlistInfoView{Name: r.Playlist.Name, SelectedTrack: r.Playlist.SelectedTrack},
			Tracks: tracks,
		}}
	case track.KindSearch:
		tracks := make([]TrackView, len(r.Tracks))
		for i, t := range r.Tracks {
			tracks[i] = trackView(t)
		}
		return LoadResultView{LoadType: "search", Data: tracks}
	case track.KindError:
		return LoadResultView{LoadType: "error", Data: loadErrorView{
			Message: r.Error.Message, Severity: string(r.Error.Severity), Cause: r.Error.Cause,
		}}
	default:
		return LoadResultView{LoadType: "empty"}
	}
}

// VoiceView is the wire shape of a player's voice binding.
type VoiceView struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

// PlayerView is the wire shape of GET/PATCH .../players/{guildId}.
type PlayerView struct {
	GuildID string               `json:"guildId"`
	Track   *TrackView           `json:"track"`
	Volume  int                  `json:"volume"`
	Paused  bool                 `json:"paused"`
	State   PlayerStateView      `json:"state"`
	Voice   VoiceView            `json:"voice"`
	Filters filters.FilterChain  `json:"filters"`
	EndTime *int64               `json:"endTime,omitempty"`
}

// PlayerStateView is the position/connection snapshot carried by both
// the playerUpdate frame and the player view's state field.
type PlayerStateView struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
	Ping      int64 `json:"ping"`
}

func playerView(p *player.Player) PlayerView {
	snap := p.Snapshot()
	v := PlayerView{
		GuildID: snap.GuildID,
		Volume:  snap.Volume,
		Paused:  snap.Paused,
		Filters: snap.Filters,
		Voice: VoiceView{
			Token:     snap.Voice.Token,
			Endpoint:  snap.Voice.Endpoint,
			SessionID: snap.Voice.SessionID,
		},
		State: PlayerStateView{
			Time:      nowMillis(),
			Position:  snap.Position.Milliseconds(),
			Connected: snap.Voice.SessionID != "",
			Ping:      -1,
		},
		EndTime: snap.EndTimeMs,
	}
	if snap.Track != nil {
		tv := trackView(*snap.Track)
		v.Track = &tv
	}
	return v
}

// SessionView is the wire shape of GET/PATCH .../sessions/{id}.
type SessionView struct {
	ResumingKey string `json:"resumingKey,omitempty"`
	Resuming    bool   `json:"resuming"`
	Timeout     int64  `json:"timeout"`
}

// QueueView is the wire shape of GET .../queue.
type QueueView struct {
	Tracks      []TrackView `json:"tracks"`
	RepeatTrack bool        `json:"repeatTrack"`
	RepeatQueue bool        `json:"repeatQueue"`
	Shuffle     bool        `json:"shuffle"`
}
