package channel

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/gorilla/websocket"

	"scc-link-go/internal/platform/errors"
	"scc-link-go/internal/platform/logging"
)

const (
	defaultDialTimeout       = 10 * time.Second
	defaultReconnectAttempts = 5
	defaultReconnectDelay    = time.Second
)

// Options configures a channel manager.
type Options struct {
	URL               string
	DialTimeout       time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	Logger            *logging.Logger
}

// Handler receives the raw payload of an inbound push event.
type Handler func(payload []byte)

type listener struct {
	event string
	fn    Handler
	ptr   uintptr
}

// Manager owns a single lazily-established websocket connection to the
// backend event channel. Emits and listens trigger an implicit connect; an
// unexpected disconnect is retried a bounded number of times. Connection
// failures never escape Connect callers synchronously beyond the returned
// error; ongoing state is observable via Connected().
type Manager struct {
	opts Options
	bus  evbus.Bus

	mu        sync.Mutex
	conn      *conn
	gen       int
	listeners []listener
	pending   map[string]chan Envelope
	deferred  []Envelope

	connected atomic.Bool
	closing   atomic.Bool
}

// NewManager builds a disconnected manager; the first Emit, On or Call dials.
func NewManager(opts Options) *Manager {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = defaultReconnectAttempts
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	return &Manager{
		opts:    opts,
		bus:     evbus.New(),
		pending: make(map[string]chan Envelope),
	}
}

// Connected reports whether a live connection currently exists.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

// Connect establishes the connection if none exists. Idempotent: a second
// call while connected returns immediately without dialing again.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.conn != nil && !m.conn.IsClosed() {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()
	return m.dial(ctx)
}

func (m *Manager) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: m.opts.DialTimeout}
	socket, resp, err := dialer.DialContext(ctx, m.opts.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		m.connected.Store(false)
		return errors.Wrap(errors.KindTransport, "connect", "channel dial failed", err)
	}

	m.mu.Lock()
	if m.conn != nil && !m.conn.IsClosed() {
		// Lost a connect race; keep the existing handle.
		m.mu.Unlock()
		_ = socket.Close()
		return nil
	}
	c := newConn(socket)
	m.conn = c
	m.gen++
	gen := m.gen
	queued := m.deferred
	m.deferred = nil
	m.mu.Unlock()

	m.closing.Store(false)
	m.connected.Store(true)
	m.opts.Logger.Debug("channel connected to %s", m.opts.URL)

	for _, env := range queued {
		if err := c.WriteEnvelope(env); err != nil {
			m.opts.Logger.Warn("deferred emit %s failed: %v", env.Event, err)
		}
	}

	go m.readLoop(c, gen)
	return nil
}

func (m *Manager) readLoop(c *conn, gen int) {
	for {
		env, err := c.ReadEnvelope()
		if err != nil {
			break
		}
		m.dispatch(env)
	}

	m.mu.Lock()
	stale := m.gen != gen
	m.mu.Unlock()
	if stale {
		return
	}

	m.connected.Store(false)
	_ = c.Close()
	if m.closing.Load() {
		return
	}

	m.opts.Logger.Warn("channel connection lost, reconnecting")
	m.reconnect()
}

func (m *Manager) reconnect() {
	for attempt := 1; attempt <= m.opts.ReconnectAttempts; attempt++ {
		time.Sleep(m.opts.ReconnectDelay)
		if m.closing.Load() {
			return
		}
		if err := m.dial(context.Background()); err == nil {
			m.opts.Logger.Info("channel reconnected after %d attempt(s)", attempt)
			return
		}
	}
	m.opts.Logger.Error("channel reconnect gave up after %d attempts", m.opts.ReconnectAttempts)
}

func (m *Manager) dispatch(env Envelope) {
	if env.Event == eventAck && env.ID != "" {
		m.mu.Lock()
		ch, ok := m.pending[env.ID]
		if ok {
			delete(m.pending, env.ID)
		}
		m.mu.Unlock()
		if ok {
			ch <- env
		} else {
			// Already settled by timeout; late acks are dropped.
			m.opts.Logger.Debug("dropping late ack %s", env.ID)
		}
		return
	}
	m.bus.Publish(env.Event, []byte(env.Payload))
}

// Emit sends a fire-and-forget event. When no connection is live the payload
// is queued, a connect is kicked off in the background and the envelope is
// flushed once the channel comes up.
func (m *Manager) Emit(event string, payload any) error {
	env, err := newEnvelope(event, "", payload)
	if err != nil {
		return errors.Wrap(errors.KindTransport, "emit", "encode payload", err)
	}

	m.mu.Lock()
	c := m.conn
	if c != nil && !c.IsClosed() && m.connected.Load() {
		m.mu.Unlock()
		if err := c.WriteEnvelope(env); err != nil {
			return errors.Wrap(errors.KindTransport, "emit", "write "+event, err)
		}
		return nil
	}
	m.deferred = append(m.deferred, env)
	m.mu.Unlock()

	m.opts.Logger.Warn("channel not connected, deferring %s emit", event)
	go func() {
		if err := m.Connect(context.Background()); err != nil {
			m.opts.Logger.Warn("deferred connect failed: %v", err)
		}
	}()
	return nil
}

// On registers a handler for a named inbound push event and lazily connects
// when no connection exists yet. Registrations are tracked so RemoveAll can
// later tear down everything added through this manager.
func (m *Manager) On(event string, fn Handler) error {
	if err := m.bus.Subscribe(event, fn); err != nil {
		return errors.Wrap(errors.KindTransport, "on", "subscribe "+event, err)
	}

	m.mu.Lock()
	m.listeners = append(m.listeners, listener{
		event: event,
		fn:    fn,
		ptr:   reflect.ValueOf(fn).Pointer(),
	})
	needsConnect := m.conn == nil || m.conn.IsClosed()
	m.mu.Unlock()

	if needsConnect {
		go func() {
			if err := m.Connect(context.Background()); err != nil {
				m.opts.Logger.Warn("lazy connect failed: %v", err)
			}
		}()
	}
	return nil
}

// Off unregisters a single handler previously added via On.
func (m *Manager) Off(event string, fn Handler) error {
	ptr := reflect.ValueOf(fn).Pointer()

	m.mu.Lock()
	kept := m.listeners[:0]
	for _, l := range m.listeners {
		if l.event == event && l.ptr == ptr {
			continue
		}
		kept = append(kept, l)
	}
	m.listeners = kept
	m.mu.Unlock()

	if err := m.bus.Unsubscribe(event, fn); err != nil {
		return errors.Wrap(errors.KindTransport, "off", "unsubscribe "+event, err)
	}
	return nil
}

// RemoveAll unregisters every handler that was added through this manager.
func (m *Manager) RemoveAll() {
	m.mu.Lock()
	tracked := m.listeners
	m.listeners = nil
	m.mu.Unlock()

	for _, l := range tracked {
		_ = m.bus.Unsubscribe(l.event, l.fn)
	}
}

// Disconnect tears down the active connection and all registered listeners.
// Safe to call with no active connection.
func (m *Manager) Disconnect() {
	m.closing.Store(true)

	m.mu.Lock()
	c := m.conn
	m.conn = nil
	m.deferred = nil
	m.mu.Unlock()

	if c != nil {
		_ = c.Close()
	}
	m.RemoveAll()
	m.connected.Store(false)
}
