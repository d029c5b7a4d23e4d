package control

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/lavahost/soundnode/internal/appmetrics"
	"github.com/lavahost/soundnode/internal/config"
	"github.com/lavahost/soundnode/internal/filters"
	"github.com/lavahost/soundnode/internal/pipeline"
	"github.com/lavahost/soundnode/internal/player"
	"github.com/lavahost/soundnode/internal/plugin"
	"github.com/lavahost/soundnode/internal/routeplanner"
	"github.com/lavahost/soundnode/internal/session"
	"github.com/lavahost/soundnode/internal/source"
	"github.com/lavahost/soundnode/internal/track"
)

const testPassword = "youshallnotpass"

// stubPipeline satisfies pipeline.Pipeline without spawning ffmpeg, so
// handler tests can start tracks for real through the player state machine.
type stubPipeline struct {
	out   chan []byte
	stuck chan pipeline.Stuck
	once  sync.Once
}

func newStubPipeline() *stubPipeline {
	return &stubPipeline{out: make(chan []byte, 1), stuck: make(chan pipeline.Stuck, 1)}
}

func (s *stubPipeline) Start(ctx context.Context, mediaURI string, chain filters.FilterChain, startPosition time.Duration) error {
	return nil
}
func (s *stubPipeline) Output() <-chan []byte              { return s.out }
func (s *stubPipeline) StuckEvents() <-chan pipeline.Stuck { return s.stuck }
func (s *stubPipeline) Pause()                             {}
func (s *stubPipeline) Resume()                            {}
func (s *stubPipeline) Stop()                              { s.once.Do(func() { close(s.out) }) }
func (s *stubPipeline) Err() error                         { return nil }

// stubAdapter resolves any non-URL identifier to a single track named after
// it, standing in for a real platform adapter.
type stubAdapter struct{}

func (stubAdapter) Name() string { return "stub" }
func (stubAdapter) CanHandle(identifier string) bool {
	return !strings.Contains(identifier, "://")
}
func (stubAdapter) Load(ctx context.Context, identifier string) (track.LoadResult, error) {
	return track.NewTrackResult(track.Track{
		Identifier: identifier,
		Title:      "stub title",
		Author:     "stub author",
		LengthMs:   30000,
		IsSeekable: true,
		SourceName: "stub",
	}), nil
}

func newTestState(t *testing.T) *AppState {
	t.Helper()

	cfg := config.Default()
	cfg.Lavalink.Server.Password = testPassword

	planner, err := routeplanner.New(routeplanner.Config{
		IPBlocks:    []string{"192.168.1.0/30"},
		ExcludedIPs: []string{"192.168.1.1"},
		Strategy:    routeplanner.RotateOnBan,
	})
	require.NoError(t, err)

	sources := source.NewRegistry()
	sources.Register(stubAdapter{})

	players := player.NewManager(func(label string) pipeline.Pipeline {
		return newStubPipeline()
	})
	t.Cleanup(func() {
		for _, p := range players.All() {
			players.Remove(p.GuildID)
		}
	})

	return &AppState{
		Config:       cfg,
		Sessions:     session.NewManager(),
		Players:      players,
		RoutePlanner: planner,
		Plugins:      plugin.NewRegistry(),
		Sources:      sources,
		Metrics:      appmetrics.New(prometheus.NewRegistry()),
		StartedAt:    time.Now(),
		Version:      "4.0.0",
	}
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", testPassword)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func TestAuthRejectsMissingAndWrongCredentials(t *testing.T) {
	router := NewRouter(newTestState(t))

	req := httptest.NewRequest(http.MethodGet, "/v4/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v4/sessions", nil)
	req.Header.Set("Authorization", "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/v4/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	router := NewRouter(newTestState(t))

	rec := doRequest(t, router, http.MethodPatch, "/v4/sessions/s1", `{"resuming":false,"timeout":60000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, false, body["resuming"])
	require.Equal(t, float64(60000), body["timeout"])

	// a second PATCH mutates the same session, leaving unpatched fields alone
	rec = doRequest(t, router, http.MethodPatch, "/v4/sessions/s1", `{"resuming":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	require.Equal(t, true, body["resuming"])
	require.Equal(t, float64(60000), body["timeout"])

	rec = doRequest(t, router, http.MethodDelete, "/v4/sessions/s1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/v4/sessions/s1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorEnvelopeShape(t *testing.T) {
	router := NewRouter(newTestState(t))

	rec := doRequest(t, router, http.MethodGet, "/v4/sessions/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, float64(http.StatusNotFound), body["status"])
	require.Equal(t, "Not Found", body["error"])
	require.Equal(t, "/v4/sessions/nope", body["path"])
	require.Greater(t, body["timestamp"], float64(0))
}

func createSession(t *testing.T, router http.Handler, sid string) {
	t.Helper()
	rec := doRequest(t, router, http.MethodPatch, "/v4/sessions/"+sid, `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreatePlayerAndSetTrack(t *testing.T) {
	router := NewRouter(newTestState(t))
	createSession(t, router, "s1")

	rec := doRequest(t, router, http.MethodPatch, "/v4/sessions/s1/players/g1",
		`{"track":{"identifier":"t1"},"volume":100,"paused":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "g1", body["guildId"])
	require.Equal(t, float64(100), body["volume"])
	require.Equal(t, false, body["paused"])

	tr, ok := body["track"].(map[string]interface{})
	require.True(t, ok, "expected a track object, body: %s", rec.Body.String())
	info := tr["info"].(map[string]interface{})
	require.Equal(t, "t1", info["identifier"])
}

func TestGetPlayerUnknownSessionIs404(t *testing.T) {
	router := NewRouter(newTestState(t))
	rec := doRequest(t, router, http.MethodGet, "/v4/sessions/none/players/g1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDestroyPlayer(t *testing.T) {
	state := newTestState(t)
	router := NewRouter(state)
	createSession(t, router, "s1")
	doRequest(t, router, http.MethodPatch, "/v4/sessions/s1/players/g1", `{}`)

	rec := doRequest(t, router, http.MethodDelete, "/v4/sessions/s1/players/g1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := state.Players.Get("g1")
	require.False(t, ok)
}

func encodedTestTrack(t *testing.T, id string) string {
	t.Helper()
	return track.Encode(track.Track{
		Identifier: id,
		Title:      "title " + id,
		Author:     "author",
		LengthMs:   1000,
		IsSeekable: true,
		SourceName: "stub",
	})
}

func queueIdentifiers(t *testing.T, router http.Handler) []string {
	t.Helper()
	rec := doRequest(t, router, http.MethodGet, "/v4/sessions/s1/players/g1/queue", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		Tracks []struct {
			Info struct {
				Identifier string `json:"identifier"`
			} `json:"info"`
		} `json:"tracks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	out := make([]string, len(view.Tracks))
	for i, tr := range view.Tracks {
		out[i] = tr.Info.Identifier
	}
	return out
}

func TestQueueAddMoveRemoveClear(t *testing.T) {
	router := NewRouter(newTestState(t))
	createSession(t, router, "s1")
	doRequest(t, router, http.MethodPatch, "/v4/sessions/s1/players/g1", `{}`)

	e1 := encodedTestTrack(t, "e1")
	e2 := encodedTestTrack(t, "e2")
	e3 := encodedTestTrack(t, "e3")

	payload, err := json.Marshal(map[string]interface{}{
		"tracks": []map[string]string{{"encoded": e1}, {"encoded": e2}, {"encoded": e3}},
	})
	require.NoError(t, err)
	rec := doRequest(t, router, http.MethodPost, "/v4/sessions/s1/players/g1/queue", string(payload))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(3), decodeBody(t, rec)["added"])

	rec = doRequest(t, router, http.MethodPost, "/v4/sessions/s1/players/g1/queue/move", `{"from":0,"to":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"e2", "e3", "e1"}, queueIdentifiers(t, router))

	rec = doRequest(t, router, http.MethodDelete, "/v4/sessions/s1/players/g1/queue/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var removed struct {
		Info struct {
			Identifier string `json:"identifier"`
		} `json:"info"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &removed))
	require.Equal(t, "e3", removed.Info.Identifier)

	rec = doRequest(t, router, http.MethodDelete, "/v4/sessions/s1/players/g1/queue", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(2), decodeBody(t, rec)["cleared"])
	require.Empty(t, queueIdentifiers(t, router))
}

func TestQueueRemoveOutOfRangeIs404(t *testing.T) {
	router := NewRouter(newTestState(t))
	createSession(t, router, "s1")
	doRequest(t, router, http.MethodPatch, "/v4/sessions/s1/players/g1", `{}`)

	rec := doRequest(t, router, http.MethodDelete, "/v4/sessions/s1/players/g1/queue/0", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSkipPopsNextQueuedTrack(t *testing.T) {
	router := NewRouter(newTestState(t))
	createSession(t, router, "s1")
	doRequest(t, router, http.MethodPatch, "/v4/sessions/s1/players/g1", `{}`)

	payload, err := json.Marshal(map[string]string{"encoded": encodedTestTrack(t, "next-up")})
	require.NoError(t, err)
	rec := doRequest(t, router, http.MethodPost, "/v4/sessions/s1/players/g1/queue", string(payload))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/v4/sessions/s1/players/g1/skip", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	tr := body["track"].(map[string]interface{})
	info := tr["info"].(map[string]interface{})
	require.Equal(t, "next-up", info["identifier"])

	// queue is empty now, so the next skip just stops and reports null
	rec = doRequest(t, router, http.MethodPost, "/v4/sessions/s1/players/g1/skip", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, decodeBody(t, rec)["track"])
}

func TestDecodeTrackRoundTrip(t *testing.T) {
	router := NewRouter(newTestState(t))

	uri := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	original := track.Track{
		Identifier: "dQw4w9WgXcQ",
		Title:      "Rick Astley - Never Gonna Give You Up",
		Author:     "RickAstleyVEVO",
		LengthMs:   212000,
		IsSeekable: true,
		SourceName: "youtube",
		URI:        &uri,
	}
	encoded := track.Encode(original)

	rec := doRequest(t, router, http.MethodGet, "/v4/decodetrack?encodedTrack="+url.QueryEscape(encoded), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		Encoded string `json:"encoded"`
		Info    struct {
			Identifier string `json:"identifier"`
			Title      string `json:"title"`
			Author     string `json:"author"`
			Length     int64  `json:"length"`
			SourceName string `json:"sourceName"`
			URI        string `json:"uri"`
			IsStream   bool   `json:"isStream"`
		} `json:"info"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, encoded, view.Encoded)
	require.Equal(t, "dQw4w9WgXcQ", view.Info.Identifier)
	require.Equal(t, "Rick Astley - Never Gonna Give You Up", view.Info.Title)
	require.Equal(t, "RickAstleyVEVO", view.Info.Author)
	require.Equal(t, int64(212000), view.Info.Length)
	require.Equal(t, "youtube", view.Info.SourceName)
	require.Equal(t, uri, view.Info.URI)
	require.False(t, view.Info.IsStream)
}

func TestDecodeTrackRejectsGarbage(t *testing.T) {
	router := NewRouter(newTestState(t))
	rec := doRequest(t, router, http.MethodGet, "/v4/decodetrack?encodedTrack=not-a-track", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoadTracksResolvesThroughRegistry(t *testing.T) {
	router := NewRouter(newTestState(t))

	rec := doRequest(t, router, http.MethodGet, "/v4/loadtracks?identifier=some-song", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "track", body["loadType"])

	// an identifier no adapter claims yields an empty result, not an error
	rec = doRequest(t, router, http.MethodGet, "/v4/loadtracks?identifier="+url.QueryEscape("gopher://unclaimed"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "empty", decodeBody(t, rec)["loadType"])
}

func TestRoutePlannerStatusAndFree(t *testing.T) {
	state := newTestState(t)
	router := NewRouter(state)

	rec := doRequest(t, router, http.MethodGet, "/v4/routeplanner/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "RotatingIpRoutePlanner", body["class"])

	state.RoutePlanner.MarkFailing(net.ParseIP("192.168.1.2"))

	rec = doRequest(t, router, http.MethodPost, "/v4/routeplanner/free/address", `{"address":"192.168.1.2"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// freeing an address that is not marked failing is a 404
	rec = doRequest(t, router, http.MethodPost, "/v4/routeplanner/free/address", `{"address":"192.168.1.2"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/v4/routeplanner/free/all", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestFiltersRejectOutOfRangeBand(t *testing.T) {
	router := NewRouter(newTestState(t))
	createSession(t, router, "s1")
	doRequest(t, router, http.MethodPatch, "/v4/sessions/s1/players/g1", `{}`)

	rec := doRequest(t, router, http.MethodPatch, "/v4/sessions/s1/players/g1/filters",
		`{"equalizer":[{"band":15,"gain":0.2}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPatch, "/v4/sessions/s1/players/g1/filters",
		`{"equalizer":[{"band":14,"gain":0.2}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestFiltersRejectDisabledFilter(t *testing.T) {
	state := newTestState(t)
	state.Config.Lavalink.Server.Filters.Karaoke = false
	router := NewRouter(state)
	createSession(t, router, "s1")
	doRequest(t, router, http.MethodPatch, "/v4/sessions/s1/players/g1", `{}`)

	rec := doRequest(t, router, http.MethodPatch, "/v4/sessions/s1/players/g1/filters",
		`{"karaoke":{"level":1.0,"monoLevel":1.0,"filterBand":220.0,"filterWidth":100.0}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplyPreset(t *testing.T) {
	router := NewRouter(newTestState(t))
	createSession(t, router, "s1")
	doRequest(t, router, http.MethodPatch, "/v4/sessions/s1/players/g1", `{}`)

	rec := doRequest(t, router, http.MethodPost, "/v4/sessions/s1/players/g1/filters/preset/bassBoost", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Contains(t, body, "equalizer")

	rec = doRequest(t, router, http.MethodPost, "/v4/sessions/s1/players/g1/filters/preset/unknown", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPluginsReloadIs501(t *testing.T) {
	router := NewRouter(newTestState(t))
	rec := doRequest(t, router, http.MethodPost, "/v4/plugins/reload", "")
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestInfoAndVersion(t *testing.T) {
	router := NewRouter(newTestState(t))

	rec := doRequest(t, router, http.MethodGet, "/v4/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Contains(t, body, "sourceManagers")
	require.Contains(t, body, "filters")

	rec = doRequest(t, router, http.MethodGet, "/v4/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "4.0.0", rec.Body.String())
}
