package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/obsidianstack/calloutstack/agent/internal/api"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxInboundSize = 512
	queueDepth     = 16
)

// Event names carried in Message.Event.
const (
	EventSnapshot = "snapshot"
	EventChanged  = "changed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Any origin. calloutd is expected to listen on localhost or behind a
	// proxy that applies CORS.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string               `json:"event"`
	Data  api.SnapshotResponse `json:"data"`
}

// Hub fans callout snapshots out to WebSocket sessions. A snapshot is pushed
// when the callout set changes and again every interval.
type Hub struct {
	det      api.Detector
	interval time.Duration
	changed  chan struct{}

	mu       sync.RWMutex
	sessions map[*session]struct{}
}

// New creates a Hub that reads from det and re-broadcasts every interval.
// A non-positive interval disables the periodic broadcast.
func New(det api.Detector, interval time.Duration) *Hub {
	return &Hub{
		det:      det,
		interval: interval,
		changed:  make(chan struct{}, 1),
		sessions: make(map[*session]struct{}),
	}
}

// Notify schedules a "changed" broadcast. It never blocks; notifications
// that arrive before the pending one is sent are coalesced. Suitable as a
// detector.Subscribe callback.
func (h *Hub) Notify() {
	select {
	case h.changed <- struct{}{}:
	default:
	}
}

// Run is the broadcast loop. It blocks until ctx is cancelled and then ends
// every session.
func (h *Hub) Run(ctx context.Context) {
	var tick <-chan time.Time
	if h.interval > 0 {
		t := time.NewTicker(h.interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			h.endAll()
			return
		case <-h.changed:
			h.publish(EventChanged)
		case <-tick:
			h.publish(EventSnapshot)
		}
	}
}

// ServeHTTP upgrades the request, queues the current snapshot and serves the
// session until the peer goes away or the hub shuts down.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		return
	}

	s := newSession(conn)
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
	defer h.drop(s)

	if frame, err := h.frame(EventSnapshot); err == nil {
		s.offer(frame)
	}

	go s.writeLoop()
	s.readLoop()
}

// Count returns the number of open sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) publish(event string) {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	frame, err := h.frame(event)
	if err != nil {
		slog.Warn("ws: encode message failed", "event", event, "err", err)
		return
	}
	for _, s := range targets {
		if !s.offer(frame) {
			slog.Debug("ws: dropping slow client", "remote", s.remote)
			h.drop(s)
		}
	}
}

func (h *Hub) frame(event string) ([]byte, error) {
	return json.Marshal(Message{Event: event, Data: api.BuildSnapshot(h.det)})
}

func (h *Hub) drop(s *session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
	s.end()
}

func (h *Hub) endAll() {
	h.mu.Lock()
	ended := h.sessions
	h.sessions = make(map[*session]struct{})
	h.mu.Unlock()
	for s := range ended {
		s.end()
	}
}

// session is one connected client. The queue is never closed; done signals
// the writer to say goodbye and exit, so offer is safe after end.
type session struct {
	conn   *websocket.Conn
	remote string
	queue  chan []byte
	done   chan struct{}
	once   sync.Once
}

func newSession(conn *websocket.Conn) *session {
	return &session{
		conn:   conn,
		remote: conn.RemoteAddr().String(),
		queue:  make(chan []byte, queueDepth),
		done:   make(chan struct{}),
	}
}

// offer queues frame without blocking. It reports false when the queue is
// full.
func (s *session) offer(frame []byte) bool {
	select {
	case <-s.done:
		return true
	default:
	}
	select {
	case s.queue <- frame:
		return true
	default:
		return false
	}
}

func (s *session) end() { s.once.Do(func() { close(s.done) }) }

// writeLoop owns all writes to the connection: queued frames, pings and the
// final close frame.
func (s *session) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			s.conn.WriteControl(websocket.CloseMessage, //nolint:errcheck
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case frame := <-s.queue:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.end()
				return
			}
		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.end()
				return
			}
		}
	}
}

// readLoop consumes control frames until the peer disconnects or the read
// deadline passes without a pong. Clients never send data.
func (s *session) readLoop() {
	defer s.end()
	s.conn.SetReadLimit(maxInboundSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
