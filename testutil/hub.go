package testutil

import (
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Gondolav/inventory-connector/message"
)

// MockHub is an in-process websocket hub. It accepts connector connections,
// sends query frames and collects the replies.
// Thread-safe for concurrent use.
type MockHub struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conns   []*websocket.Conn
	headers []http.Header
	writeMu sync.Mutex

	attempts  atomic.Int32
	accepted  atomic.Int32
	reject    atomic.Int32
	connected chan struct{}
	replies   chan []byte
}

// NewMockHub starts a hub that is shut down when the test ends.
func NewMockHub(t testing.TB) *MockHub {
	t.Helper()

	h := &MockHub{
		connected: make(chan struct{}, 16),
		replies:   make(chan []byte, 256),
	}
	h.server = httptest.NewServer(http.HandlerFunc(h.handle))
	t.Cleanup(h.Close)
	return h
}

// NewMockTLSHub starts a hub that serves wss with a test certificate.
// TLSConfig returns a client configuration that trusts it.
func NewMockTLSHub(t testing.TB) *MockHub {
	t.Helper()

	h := &MockHub{
		connected: make(chan struct{}, 16),
		replies:   make(chan []byte, 256),
	}
	h.server = httptest.NewTLSServer(http.HandlerFunc(h.handle))
	t.Cleanup(h.Close)
	return h
}

// TLSConfig returns a client TLS configuration trusting a TLS hub's
// certificate, or nil for a plain hub.
func (h *MockHub) TLSConfig() *tls.Config {
	if h.server.TLS == nil {
		return nil
	}
	return h.server.Client().Transport.(*http.Transport).TLSClientConfig.Clone()
}

func (h *MockHub) handle(w http.ResponseWriter, r *http.Request) {
	h.attempts.Add(1)
	if h.reject.Load() > 0 {
		h.reject.Add(-1)
		http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	h.mu.Lock()
	h.conns = append(h.conns, conn)
	h.headers = append(h.headers, r.Header.Clone())
	h.mu.Unlock()
	h.accepted.Add(1)

	select {
	case h.connected <- struct{}{}:
	default:
	}

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			h.replies <- data
		}
	}()
}

// URL returns the ws:// address of the hub.
func (h *MockHub) URL() string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http")
}

// RejectNext makes the next n handshakes fail with 503.
func (h *MockHub) RejectNext(n int) {
	h.reject.Store(int32(n))
}

// Attempts returns the number of handshakes tried, rejected ones included.
func (h *MockHub) Attempts() int {
	return int(h.attempts.Load())
}

// Connections returns the number of accepted connections.
func (h *MockHub) Connections() int {
	return int(h.accepted.Load())
}

// LastHeader returns the handshake headers of the latest connection.
func (h *MockHub) LastHeader() http.Header {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.headers) == 0 {
		return nil
	}
	return h.headers[len(h.headers)-1]
}

// WaitConnected blocks until a new connection is accepted.
func (h *MockHub) WaitConnected(t testing.TB, timeout time.Duration) {
	t.Helper()
	select {
	case <-h.connected:
	case <-time.After(timeout):
		t.Fatalf("no connection within %v", timeout)
	}
}

func (h *MockHub) latest() *websocket.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.conns) == 0 {
		return nil
	}
	return h.conns[len(h.conns)-1]
}

// Send writes a raw frame on the latest connection.
func (h *MockHub) Send(t testing.TB, data []byte) {
	t.Helper()
	conn := h.latest()
	if conn == nil {
		t.Fatal("no connection to send on")
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("send frame: %v", err)
	}
}

// SendQuery encodes item and sends it on the latest connection.
func (h *MockHub) SendQuery(t testing.TB, item message.Item) {
	t.Helper()
	data, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("encode query: %v", err)
	}
	h.Send(t, data)
}

// NextReply waits for the next reply frame from the connector.
func (h *MockHub) NextReply(t testing.TB, timeout time.Duration) message.Response {
	t.Helper()
	select {
	case data := <-h.replies:
		resp, err := message.DecodeResponse(data)
		if err != nil {
			t.Fatalf("decode reply %q: %v", data, err)
		}
		return resp
	case <-time.After(timeout):
		t.Fatalf("no reply within %v", timeout)
		return message.Response{}
	}
}

// NextRawReply waits for the next reply frame and returns it undecoded.
func (h *MockHub) NextRawReply(t testing.TB, timeout time.Duration) []byte {
	t.Helper()
	select {
	case data := <-h.replies:
		return data
	case <-time.After(timeout):
		t.Fatalf("no reply within %v", timeout)
		return nil
	}
}

// AssertNoReply fails if a reply arrives within wait.
func (h *MockHub) AssertNoReply(t testing.TB, wait time.Duration) {
	t.Helper()
	select {
	case data := <-h.replies:
		t.Fatalf("unexpected reply %q", data)
	case <-time.After(wait):
	}
}

// DropConnections closes every accepted connection from the hub side.
func (h *MockHub) DropConnections() {
	h.mu.Lock()
	conns := h.conns
	h.conns = nil
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

// Close drops all connections and stops the server.
func (h *MockHub) Close() {
	h.DropConnections()
	h.server.Close()
}
