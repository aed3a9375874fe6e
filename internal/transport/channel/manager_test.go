package channel

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scc-link-go/internal/platform/errors"
	platformtest "scc-link-go/internal/platform/testing"
)

// testBackend is a scripted websocket endpoint: every received envelope is
// handed to the script along with a concurrency-safe send function.
type testBackend struct {
	srv      *httptest.Server
	upgrades atomic.Int32
	script   func(env Envelope, send func(Envelope))
}

func newTestBackend(t *testing.T, script func(env Envelope, send func(Envelope))) *testBackend {
	t.Helper()

	b := &testBackend{script: script}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.upgrades.Add(1)

		var mu sync.Mutex
		send := func(env Envelope) {
			mu.Lock()
			defer mu.Unlock()
			data, _ := json.Marshal(env)
			_ = socket.WriteMessage(websocket.TextMessage, data)
		}

		for {
			_, data, err := socket.ReadMessage()
			if err != nil {
				return
			}
			var env Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				continue
			}
			if b.script != nil {
				b.script(env, send)
			}
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *testBackend) wsURL() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

func newTestManager(t *testing.T, b *testBackend) *Manager {
	t.Helper()
	m := NewManager(Options{
		URL:            b.wsURL(),
		DialTimeout:    2 * time.Second,
		ReconnectDelay: 10 * time.Millisecond,
		Logger:         platformtest.SetupTestLogger(t),
	})
	t.Cleanup(m.Disconnect)
	return m
}

func TestConnect_Idempotent(t *testing.T) {
	backend := newTestBackend(t, nil)
	m := newTestManager(t, backend)

	require.NoError(t, m.Connect(t.Context()))
	require.NoError(t, m.Connect(t.Context()))

	assert.True(t, m.Connected())
	assert.Equal(t, int32(1), backend.upgrades.Load(), "second Connect must reuse the handle")
}

func TestConnect_DialFailure(t *testing.T) {
	m := NewManager(Options{
		URL:         "ws://127.0.0.1:1/ws",
		DialTimeout: 200 * time.Millisecond,
		Logger:      platformtest.SetupTestLogger(t),
	})
	t.Cleanup(m.Disconnect)

	err := m.Connect(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindTransport))
	assert.False(t, m.Connected())
}

func TestOn_DispatchesPush(t *testing.T) {
	backend := newTestBackend(t, func(env Envelope, send func(Envelope)) {
		if env.Event == "trigger" {
			send(Envelope{Event: "qr-scanned"})
		}
	})
	m := newTestManager(t, backend)

	got := make(chan []byte, 1)
	require.NoError(t, m.On("qr-scanned", func(payload []byte) {
		got <- payload
	}))
	require.NoError(t, m.Connect(t.Context()))
	require.NoError(t, m.Emit("trigger", nil))

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("push never dispatched")
	}
}

func TestOff_StopsDispatch(t *testing.T) {
	backend := newTestBackend(t, func(env Envelope, send func(Envelope)) {
		if env.Event == "trigger" {
			send(Envelope{Event: "qr-scanned"})
		}
	})
	m := newTestManager(t, backend)
	require.NoError(t, m.Connect(t.Context()))

	var calls atomic.Int32
	handler := Handler(func(payload []byte) { calls.Add(1) })
	require.NoError(t, m.On("qr-scanned", handler))
	require.NoError(t, m.Off("qr-scanned", handler))

	require.NoError(t, m.Emit("trigger", nil))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestRemoveAll_TearsDownTrackedListeners(t *testing.T) {
	backend := newTestBackend(t, func(env Envelope, send func(Envelope)) {
		if env.Event == "trigger" {
			send(Envelope{Event: "qr-scanned"})
			send(Envelope{Event: "qr-expired"})
		}
	})
	m := newTestManager(t, backend)
	require.NoError(t, m.Connect(t.Context()))

	var calls atomic.Int32
	require.NoError(t, m.On("qr-scanned", func(payload []byte) { calls.Add(1) }))
	require.NoError(t, m.On("qr-expired", func(payload []byte) { calls.Add(1) }))
	m.RemoveAll()

	require.NoError(t, m.Emit("trigger", nil))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestEmit_DeferredUntilConnect(t *testing.T) {
	received := make(chan string, 1)
	backend := newTestBackend(t, func(env Envelope, send func(Envelope)) {
		received <- env.Event
	})
	m := newTestManager(t, backend)

	// No explicit Connect: the emit must queue, connect and flush.
	require.NoError(t, m.Emit("cancel-qr", map[string]string{"sessionId": "S1"}))

	select {
	case event := <-received:
		assert.Equal(t, "cancel-qr", event)
	case <-time.After(2 * time.Second):
		t.Fatal("deferred emit never flushed")
	}
}

func TestDisconnect_Idempotent(t *testing.T) {
	backend := newTestBackend(t, nil)
	m := newTestManager(t, backend)
	require.NoError(t, m.Connect(t.Context()))

	m.Disconnect()
	m.Disconnect()
	assert.False(t, m.Connected())
}

func TestReconnect_AfterServerDrop(t *testing.T) {
	var drop atomic.Bool
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	var upgrades atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		upgrades.Add(1)
		if drop.CompareAndSwap(true, false) {
			_ = socket.Close()
			return
		}
		for {
			if _, _, err := socket.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	m := NewManager(Options{
		URL:               "ws" + strings.TrimPrefix(srv.URL, "http"),
		DialTimeout:       2 * time.Second,
		ReconnectAttempts: 5,
		ReconnectDelay:    20 * time.Millisecond,
		Logger:            platformtest.SetupTestLogger(t),
	})
	t.Cleanup(m.Disconnect)

	drop.Store(true)
	require.NoError(t, m.Connect(t.Context()))

	assert.Eventually(t, func() bool {
		return m.Connected() && upgrades.Load() >= 2
	}, 3*time.Second, 20*time.Millisecond, "manager should redial after the drop")
}
