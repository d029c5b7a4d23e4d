package source

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/lavahost/soundnode/internal/track"
)

// HTTPAdapter resolves any http(s) URL directly, without extracting a
// platform-specific stream URL first. It is the node's source.http.
type HTTPAdapter struct {
	Client *http.Client
}

// NewHTTPAdapter returns an adapter using http.DefaultClient for HEAD probes.
func NewHTTPAdapter() *HTTPAdapter {
	return &HTTPAdapter{Client: http.DefaultClient}
}

func (a *HTTPAdapter) Name() string { return "http" }

func (a *HTTPAdapter) CanHandle(identifier string) bool {
	u, err := url.Parse(identifier)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Load probes identifier with HEAD to confirm reachability, then returns a
// single-track result carrying identifier as both URI and identifier.
func (a *HTTPAdapter) Load(ctx context.Context, identifier string) (track.LoadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, identifier, nil)
	if err != nil {
		return track.NewErrorResult("malformed URL", track.SeverityCommon, err.Error()), nil
	}
	resp, err := a.Client.Do(req)
	if err != nil {
		return track.NewErrorResult("source unreachable", track.SeverityCommon, err.Error()), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return track.NewErrorResult("source returned an error status", track.SeverityCommon, resp.Status), nil
	}

	title := titleFromURL(identifier)
	uri := identifier
	t := track.Track{
		Identifier: identifier,
		Title:      title,
		SourceName: a.Name(),
		IsStream:   resp.Header.Get("Content-Length") == "",
		URI:        &uri,
	}
	return track.NewTrackResult(t), nil
}

func titleFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 0 || parts[len(parts)-1] == "" {
		return u.Host
	}
	return parts[len(parts)-1]
}
