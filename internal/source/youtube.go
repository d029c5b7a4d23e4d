package source

import (
	"context"
	"strings"

	"github.com/lavahost/soundnode/internal/platform/youtube"
	"github.com/lavahost/soundnode/internal/track"
)

// searchPrefix selects search dispatch: identifiers beginning with
// "ytsearch:" are treated as a search query rather than a URL.
const searchPrefix = "ytsearch:"

const defaultPlaylistLoadLimit = 6

// YoutubeAdapter resolves youtube.com/youtu.be URLs, bare video IDs,
// playlist URLs, and "ytsearch:" queries, wrapping the yt-dlp-based
// Extractor behind the Adapter boundary. The decode pipeline
// hands mediaURI straight to ffmpeg's "-i", so every track this adapter
// returns carries an already-resolved CDN stream URL rather than the
// original watch page.
type YoutubeAdapter struct {
	extractor     *youtube.Extractor
	playlistLimit int
}

// NewYoutubeAdapter constructs a YoutubeAdapter around a fresh Extractor.
// playlistLimit bounds how many entries of a playlist load get their
// stream URL eagerly resolved (one yt-dlp invocation each); values <= 0
// fall back to defaultPlaylistLoadLimit, matching
// lavalink.server.youtubePlaylistLoadLimit's purpose.
func NewYoutubeAdapter(playlistLimit int) *YoutubeAdapter {
	if playlistLimit <= 0 {
		playlistLimit = defaultPlaylistLoadLimit
	}
	return &YoutubeAdapter{extractor: youtube.New(), playlistLimit: playlistLimit}
}

func (a *YoutubeAdapter) Name() string { return "youtube" }

func (a *YoutubeAdapter) CanHandle(identifier string) bool {
	if strings.HasPrefix(identifier, searchPrefix) {
		return true
	}
	return a.extractor.CanHandle(identifier)
}

// Load resolves identifier into a single track, a playlist, or a list of
// search hits depending on its shape.
func (a *YoutubeAdapter) Load(ctx context.Context, identifier string) (track.LoadResult, error) {
	if strings.HasPrefix(identifier, searchPrefix) {
		return a.search(strings.TrimPrefix(identifier, searchPrefix))
	}
	if a.extractor.IsPlaylist(identifier) {
		return a.loadPlaylist(identifier)
	}
	return a.loadSingle(identifier)
}

func (a *YoutubeAdapter) loadSingle(identifier string) (track.LoadResult, error) {
	meta, err := a.extractor.ExtractMetadata(identifier)
	if err != nil {
		return track.NewErrorResult("failed to load YouTube track", track.SeverityCommon, err.Error()), nil
	}
	streamURL, err := a.extractor.ExtractStreamURL(identifier)
	if err != nil {
		return track.NewErrorResult("failed to resolve YouTube stream", track.SeverityCommon, err.Error()), nil
	}
	return track.NewTrackResult(toTrack(identifier, streamURL, meta.Title, meta.Duration, meta.Thumbnail)), nil
}

// loadPlaylist resolves at most playlistLimit entries eagerly; entries
// whose stream fails to resolve are dropped rather than failing the
// whole load, so one broken/region-locked video doesn't sink a playlist.
func (a *YoutubeAdapter) loadPlaylist(identifier string) (track.LoadResult, error) {
	entries, err := a.extractor.ExtractPlaylist(identifier)
	if err != nil {
		return track.NewErrorResult("failed to load YouTube playlist", track.SeverityCommon, err.Error()), nil
	}
	if len(entries) > a.playlistLimit {
		entries = entries[:a.playlistLimit]
	}

	tracks := make([]track.Track, 0, len(entries))
	for _, e := range entries {
		streamURL, err := a.extractor.ExtractStreamURL(e.URL)
		if err != nil {
			continue
		}
		tracks = append(tracks, toTrack(e.URL, streamURL, e.Title, e.Duration, e.Thumbnail))
	}
	info := track.PlaylistInfo{Name: "YouTube Playlist", SelectedTrack: -1}
	return track.NewPlaylistResult(info, tracks), nil
}

func (a *YoutubeAdapter) search(query string) (track.LoadResult, error) {
	results, err := a.extractor.Search(query, 10)
	if err != nil {
		return track.NewErrorResult("YouTube search failed", track.SeverityCommon, err.Error()), nil
	}

	tracks := make([]track.Track, 0, len(results))
	for _, r := range results {
		streamURL, err := a.extractor.ExtractStreamURL(r.URL)
		if err != nil {
			continue
		}
		tracks = append(tracks, toTrack(r.URL, streamURL, r.Title, r.Duration, r.Thumbnail))
	}
	return track.NewSearchResult(tracks), nil
}

func toTrack(identifier, streamURL, title string, durationSeconds int, thumbnail string) track.Track {
	uri := streamURL
	t := track.Track{
		Identifier: identifier,
		Title:      title,
		LengthMs:   int64(durationSeconds) * 1000,
		IsStream:   durationSeconds == 0,
		IsSeekable: durationSeconds > 0,
		SourceName: "youtube",
		URI:        &uri,
	}
	if thumbnail != "" {
		artwork := thumbnail
		t.ArtworkURL = &artwork
	}
	return t
}
