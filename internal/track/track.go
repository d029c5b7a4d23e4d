// Package track defines the portable Track type and the LoadResult tagged
// union returned by source resolution.
package track

// Track is an addressable audio resource plus its descriptive metadata.
type Track struct {
	Identifier   string
	Title        string
	Author       string
	LengthMs     int64
	IsStream     bool
	IsSeekable   bool
	PositionMs   int64
	SourceName   string
	URI          *string
	ArtworkURL   *string
	ISRC         *string
}

// Severity classifies how actionable a load/playback error is.
type Severity string

const (
	SeverityCommon     Severity = "common"
	SeveritySuspicious Severity = "suspicious"
	SeverityFault      Severity = "fault"
)

// LoadError is the error payload of a LoadResult with Kind == KindError.
type LoadError struct {
	Message  string
	Severity Severity
	Cause    string
}

// PlaylistInfo carries the name and selected-track index for a playlist load.
type PlaylistInfo struct {
	Name          string
	SelectedTrack int
}

// Kind tags the variant carried by a LoadResult.
type Kind string

const (
	KindTrack    Kind = "track"
	KindPlaylist Kind = "playlist"
	KindSearch   Kind = "search"
	KindEmpty    Kind = "empty"
	KindError    Kind = "error"
)

// LoadResult is the tagged variant returned by loading an identifier:
// Track(Track) | Playlist{info, tracks} | Search(list<Track>) | Empty | Error{...}.
// Exactly one of the Kind-matching fields is populated.
type LoadResult struct {
	Kind     Kind
	Track    *Track
	Playlist *PlaylistInfo
	Tracks   []Track // playlist members (Kind == KindPlaylist) or search hits (Kind == KindSearch)
	Error    *LoadError
}

// NewTrackResult wraps a single resolved track.
func NewTrackResult(t Track) LoadResult {
	return LoadResult{Kind: KindTrack, Track: &t}
}

// NewPlaylistResult wraps a playlist and its member tracks.
func NewPlaylistResult(info PlaylistInfo, tracks []Track) LoadResult {
	return LoadResult{Kind: KindPlaylist, Playlist: &info, Tracks: tracks}
}

// NewSearchResult wraps a list of search hits.
func NewSearchResult(tracks []Track) LoadResult {
	return LoadResult{Kind: KindSearch, Tracks: tracks}
}

// NewEmptyResult represents "nothing found" for a well-formed identifier.
func NewEmptyResult() LoadResult {
	return LoadResult{Kind: KindEmpty}
}

// NewErrorResult wraps a load failure with its severity.
func NewErrorResult(message string, severity Severity, cause string) LoadResult {
	return LoadResult{Kind: KindError, Error: &LoadError{Message: message, Severity: severity, Cause: cause}}
}
