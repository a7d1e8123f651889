package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/obsidianstack/calloutstack/agent/internal/detector"
	wsHub "github.com/obsidianstack/calloutstack/agent/internal/ws"
	"github.com/obsidianstack/calloutstack/pkg/types"
)

// --- helpers ----------------------------------------------------------------

type fakeDetector struct {
	mu       sync.Mutex
	callouts []types.Callout
	gen      uint64
}

func (f *fakeDetector) add(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callouts = append(f.callouts, types.Callout{
		ID:      id,
		Icon:    types.DefaultIcon,
		Color:   types.DefaultColor,
		Sources: []types.Source{types.SnippetSource("s")},
	})
	f.gen++
}

func (f *fakeDetector) Callouts() []types.Callout {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Callout(nil), f.callouts...)
}

func (f *fakeDetector) Callout(types.CalloutID) (types.Callout, bool) { return types.Callout{}, false }
func (f *fakeDetector) Sources() []detector.SourceInfo { return nil }
func (f *fakeDetector) Detected() []detector.DetectedCallout { return nil }
func (f *fakeDetector) Warnings() []detector.Warning { return nil }
func (f *fakeDetector) Refresh(context.Context) bool { return false }

func (f *fakeDetector) Stats() detector.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return detector.Stats{Generation: f.gen, Callouts: len(f.callouts)}
}

type calloutEntry struct {
	ID string `json:"id"`
}

type snapshot struct {
	Generation  uint64            `json:"generation"`
	Callouts    []calloutEntry    `json:"callouts"`
	Detected    []json.RawMessage `json:"detected"`
	GeneratedAt string            `json:"generated_at"`
}

type message struct {
	Event string   `json:"event"`
	Data  snapshot `json:"data"`
}

// startHub starts a test HTTP server with the hub as its handler and runs
// the hub loop with a cancellable context.
func startHub(t *testing.T, det *fakeDetector, interval time.Duration) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(det, interval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

// dial connects a WebSocket client to wsURL and returns the connection.
func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads and decodes one message from conn with a short deadline.
func readMessage(t *testing.T, conn *websocket.Conn) message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m message
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v (raw: %s)", err, raw)
	}
	return m
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateSnapshot(t *testing.T) {
	det := &fakeDetector{}
	det.add("recipe")
	wsURL, _, _ := startHub(t, det, time.Hour)

	m := readMessage(t, dial(t, wsURL))
	if m.Event != wsHub.EventSnapshot {
		t.Errorf("event: got %q, want snapshot", m.Event)
	}
	if m.Data.GeneratedAt == "" {
		t.Error("generated_at: missing")
	}
	if len(m.Data.Callouts) != 1 || m.Data.Callouts[0].ID != "recipe" {
		t.Errorf("callouts: got %+v", m.Data.Callouts)
	}
	if m.Data.Detected == nil {
		t.Error("detected: want empty array, got null")
	}
}

func TestHub_NotifyBroadcastsChange(t *testing.T) {
	det := &fakeDetector{}
	wsURL, hub, _ := startHub(t, det, time.Hour)

	conn := dial(t, wsURL)
	readMessage(t, conn) // consume initial snapshot
	time.Sleep(10 * time.Millisecond)

	det.add("fancy")
	hub.Notify()

	m := readMessage(t, conn)
	if m.Event != wsHub.EventChanged {
		t.Errorf("event: got %q, want changed", m.Event)
	}
	if m.Data.Generation != 1 || len(m.Data.Callouts) != 1 {
		t.Errorf("got generation %d with %d callouts", m.Data.Generation, len(m.Data.Callouts))
	}
}

func TestHub_NotifyNeverBlocks(t *testing.T) {
	hub := wsHub.New(&fakeDetector{}, 0)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Notify()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked without a running hub")
	}
}

func TestHub_ReceivesBroadcastOnTick(t *testing.T) {
	det := &fakeDetector{}
	wsURL, _, _ := startHub(t, det, 20*time.Millisecond)

	conn := dial(t, wsURL)
	readMessage(t, conn)

	det.add("late")

	// A later tick carries the new callout.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m := readMessage(t, conn)
		if m.Event != wsHub.EventSnapshot {
			t.Fatalf("event: got %q, want snapshot", m.Event)
		}
		if len(m.Data.Callouts) == 1 && m.Data.Callouts[0].ID == "late" {
			return
		}
	}
	t.Fatal("no tick broadcast carried the new callout")
}

func TestHub_CountClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, &fakeDetector{}, time.Hour)

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, wsURL)
		readMessage(t, conns[i])
	}

	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}

	conns[0].Close()
	time.Sleep(50 * time.Millisecond) // let readLoop notice the close

	if n := hub.Count(); n != 2 {
		t.Errorf("Count after disconnect: got %d, want 2", n)
	}
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, &fakeDetector{}, time.Hour)

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	cancel()

	time.Sleep(50 * time.Millisecond)
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after cancel: got %d, want 0", n)
	}
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(&fakeDetector{}, time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	// Plain HTTP GET without upgrade headers → 400
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

func TestHub_CancelSendsGoingAway(t *testing.T) {
	wsURL, _, cancel := startHub(t, &fakeDetector{}, time.Hour)

	conn := dial(t, wsURL)
	readMessage(t, conn)
	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("ReadMessage after cancel: got %v, want going-away close", err)
	}
}
