package control

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/lavahost/soundnode/internal/session"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	// Bots connect from arbitrary hosts; origin checking is the
	// shared-secret password's job, not this handshake's.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// wsFrame is one queued outbound frame; kind lets the send queue apply
// the per-kind slow-consumer policy.
type wsFrame struct {
	kind    string
	payload []byte
}

// wsSink adapts a gorilla/websocket connection to session.EventSink,
// serializing writes through a single owning goroutine pumping a
// per-session send channel.
type wsSink struct {
	conn *websocket.Conn
	done chan struct{}

	mu    sync.Mutex
	queue []wsFrame
	wake  chan struct{}
}

// wsSendQueueLimit bounds the per-connection outbound queue. playerUpdate
// frames are evicted first under pressure; other kinds are never dropped.
const wsSendQueueLimit = 256

func newWSSink(conn *websocket.Conn) *wsSink {
	s := &wsSink{conn: conn, done: make(chan struct{}), wake: make(chan struct{}, 1)}
	go s.writeLoop()
	return s
}

func (s *wsSink) writeLoop() {
	for {
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			frame := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame.payload); err != nil {
				return
			}
		}
	}
}

// Send enqueues a frame for the write loop. When the queue is at its
// limit, a playerUpdate frame is coalescible and simply dropped, while
// any other kind evicts the oldest queued playerUpdate to make room —
// the same policy session.Session applies to its resume buffer. If no
// playerUpdate is left to evict, the consumer is so far behind that the
// connection is declared broken rather than the event lost silently.
func (s *wsSink) Send(kind, guildID string, payload []byte) error {
	s.mu.Lock()
	if len(s.queue) >= wsSendQueueLimit {
		if kind == "playerUpdate" {
			s.mu.Unlock()
			return nil
		}
		evicted := false
		for i, f := range s.queue {
			if f.kind == "playerUpdate" {
				s.queue = append(s.queue[:i:i], s.queue[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			s.mu.Unlock()
			_ = s.conn.Close()
			return errors.New("websocket send queue overflow")
		}
	}
	s.queue = append(s.queue, wsFrame{kind: kind, payload: payload})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *wsSink) Close() error {
	close(s.done)
	return s.conn.Close()
}

// serveWebSocket handles GET /v4/websocket, the server-to-client push
// event stream. A caller-supplied Session-Id header resumes an existing session;
// otherwise the node mints one and reports it in the ready frame.
func (h *Handlers) serveWebSocket(c *gin.Context) {
	sid := c.GetHeader("Session-Id")
	resumed := false
	var sess *session.Session
	if sid != "" {
		if existing, ok := h.state.Sessions.Get(sid); ok {
			sess = existing
			resumed = true
		}
	}
	if sess == nil {
		if sid == "" {
			sid = newSessionID()
		}
		sess = h.state.Sessions.Create(sid)
		h.state.Metrics.ActiveSessions.Inc()
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sink := newWSSink(conn)
	sess.Attach(sink)

	ready, _ := json.Marshal(readyFrame{Op: "ready", Resumed: resumed, SessionID: sid})
	_ = sess.Publish("ready", "", ready)

	h.log.Info().Str("session", sid).Bool("resumed", resumed).Msg("websocket connected")

	defer func() {
		_ = sink.Close()
		sess.Detach(func() {
			h.state.Players.RemoveForSession(sid)
			_ = h.state.Sessions.Delete(sid)
			h.state.Metrics.ActiveSessions.Dec()
		})
	}()

	conn.SetReadLimit(1 << 16)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		// Inbound frames carry no client->node payload in this
		// protocol; reading only detects disconnects and pings.
	}
}

type readyFrame struct {
	Op        string `json:"op"`
	Resumed   bool   `json:"resumed"`
	SessionID string `json:"sessionId"`
}

type playerUpdateFrame struct {
	Op      string          `json:"op"`
	GuildID string          `json:"guildId"`
	State   PlayerStateView `json:"state"`
}

type eventFrame struct {
	Op      string     `json:"op"`
	Type    string     `json:"type"`
	GuildID string     `json:"guildId"`
	Track   *TrackView `json:"track,omitempty"`
	Reason  string     `json:"reason,omitempty"`
	Error   string     `json:"error,omitempty"`
}

type statsFrame struct {
	Op string `json:"op"`
	StatsView
}
