package qrlogin

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"scc-link-go/internal/contracts/qrlink"
	"scc-link-go/internal/platform/errors"
	"scc-link-go/internal/platform/logging"
	"scc-link-go/internal/transport/channel"
)

// Timeout budgets for the bridge calls behind each operation.
const (
	generateTimeout = 15 * time.Second
	validateTimeout = 10 * time.Second
	confirmTimeout  = 10 * time.Second

	// sessionLifetime is the client-side expiry horizon of a displayed code.
	sessionLifetime = 5 * time.Minute
)

// Channel is the slice of the channel manager the coordinator depends on.
type Channel interface {
	Call(ctx context.Context, event string, payload any, timeout time.Duration) (json.RawMessage, error)
	Emit(event string, payload any) error
	On(event string, fn channel.Handler) error
	Off(event string, fn channel.Handler) error
}

// Authenticator finalizes a remote-confirmed login into application auth
// state, and can discard that state again when the session it belonged to is
// already gone by the time verification finishes.
type Authenticator interface {
	CompleteRemoteLogin(ctx context.Context, token string) (qrlink.User, error)
	Logout(ctx context.Context) error
}

// Hooks lets the embedding UI observe the coordinator. All callbacks are
// optional and invoked outside the coordinator lock.
type Hooks struct {
	OnStatus        func(Status)
	OnAuthenticated func(qrlink.User)
	OnError         func(error)
}

type registration struct {
	event string
	fn    channel.Handler
}

// Coordinator drives the desktop side of the QR login handoff: it requests a
// session, renders the code, listens for the four lifecycle pushes and walks
// the session through idle → generating → waiting → scanned → confirmed,
// or into expired/cancelled. Terminal states are sticky; push listeners are
// registered only while a session is shown and always torn down in bulk, so
// exactly one session's listeners are ever live.
type Coordinator struct {
	channel Channel
	auth    Authenticator
	logger  *logging.Logger
	hooks   Hooks

	lifetime time.Duration

	mu        sync.Mutex
	status    Status
	session   *Session
	listeners []registration
	expiry    *time.Timer
}

// Option adjusts coordinator construction.
type Option func(*Coordinator)

// WithLifetime overrides the 5-minute client-side expiry horizon.
func WithLifetime(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.lifetime = d
		}
	}
}

// NewCoordinator wires a coordinator onto the given channel and authenticator.
func NewCoordinator(ch Channel, auth Authenticator, logger *logging.Logger, hooks Hooks, opts ...Option) *Coordinator {
	c := &Coordinator{
		channel:  ch,
		auth:     auth,
		logger:   logger,
		hooks:    hooks,
		lifetime: sessionLifetime,
		status:   StatusIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the current session status.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Session returns the currently displayed session, if any.
func (c *Coordinator) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Generate requests a fresh QR session. A still-live previous session is
// superseded: its listeners are torn down and a best-effort cancel is sent
// before the new generate call goes out. The status flips to generating
// before any network traffic.
func (c *Coordinator) Generate(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	var superseded string
	if c.session != nil && !c.status.Terminal() {
		superseded = c.session.ID
	}
	c.teardownLocked()
	c.session = nil
	c.status = StatusGenerating
	c.mu.Unlock()

	if superseded != "" {
		_ = c.channel.Emit(qrlink.EventCancel, qrlink.CancelRequest{SessionID: superseded})
	}
	c.notifyStatus(StatusGenerating)

	raw, err := c.channel.Call(ctx, qrlink.EventGenerate, nil, generateTimeout)
	if err != nil {
		return nil, c.failGenerate(err)
	}

	var ack qrlink.GenerateAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		return nil, c.failGenerate(errors.Wrap(errors.KindTransport, "generate", "decode generate ack", err))
	}
	if ack.QRCodeData == "" || ack.SessionID == "" {
		return nil, c.failGenerate(errors.New(errors.KindRejected, "generate", "server returned no session"))
	}

	png, err := Render(ack.QRCodeData)
	if err != nil {
		return nil, c.failGenerate(err)
	}

	now := time.Now()
	session := &Session{
		ID:        ack.SessionID,
		Payload:   ack.QRCodeData,
		PNG:       png,
		CreatedAt: now,
		ExpiresAt: now.Add(c.lifetime),
	}

	c.mu.Lock()
	if c.status != StatusGenerating {
		// Cancelled or superseded while the call was in flight.
		c.mu.Unlock()
		return nil, errors.New(errors.KindSession, "generate", "session superseded")
	}
	c.session = session
	c.status = StatusWaiting
	if err := c.registerListenersLocked(session); err != nil {
		c.teardownLocked()
		c.session = nil
		c.status = StatusIdle
		c.mu.Unlock()
		c.notifyStatus(StatusIdle)
		c.notifyError(err)
		return nil, err
	}
	c.expiry = time.AfterFunc(c.lifetime, func() { c.expire(session) })
	c.mu.Unlock()

	c.notifyStatus(StatusWaiting)
	c.logger.Info("qr session %s waiting for scan", session.ID)
	return session, nil
}

// failGenerate resets the coordinator to its hidden baseline and surfaces err.
func (c *Coordinator) failGenerate(err error) error {
	c.mu.Lock()
	c.teardownLocked()
	c.session = nil
	c.status = StatusIdle
	c.mu.Unlock()

	c.notifyStatus(StatusIdle)
	c.notifyError(err)
	return err
}

// Cancel aborts the current session from the local side. The cancel signal is
// fire-and-forget; local state resets immediately without waiting for the
// server.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return
	}
	id := c.session.ID
	c.teardownLocked()
	c.session = nil
	c.status = StatusIdle
	c.mu.Unlock()

	_ = c.channel.Emit(qrlink.EventCancel, qrlink.CancelRequest{SessionID: id})
	c.notifyStatus(StatusIdle)
	c.logger.Info("qr session %s cancelled locally", id)
}

// Close tears down listeners and timers on component shutdown.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.teardownLocked()
	c.session = nil
	c.status = StatusIdle
	c.mu.Unlock()
}

// registerListenersLocked binds the four push handlers to this specific
// session. Handlers re-check the binding under the lock before acting, so a
// push (or verify round-trip) that outlives its session can never touch a
// successor session's state. Must hold c.mu.
func (c *Coordinator) registerListenersLocked(sess *Session) error {
	regs := []registration{
		{qrlink.PushScanned, func([]byte) { c.handleScanned(sess) }},
		{qrlink.PushLoginSuccess, func(payload []byte) { c.handleLoginSuccess(sess, payload) }},
		{qrlink.PushExpired, func([]byte) { c.expire(sess) }},
		{qrlink.PushCancelled, func([]byte) { c.handleCancelled(sess) }},
	}
	for _, reg := range regs {
		if err := c.channel.On(reg.event, reg.fn); err != nil {
			return err
		}
		c.listeners = append(c.listeners, reg)
	}
	return nil
}

// teardownLocked removes exactly the listeners this coordinator registered
// and disarms the expiry timer. Must hold c.mu.
func (c *Coordinator) teardownLocked() {
	for _, reg := range c.listeners {
		if err := c.channel.Off(reg.event, reg.fn); err != nil {
			c.logger.Warn("failed to remove %s listener: %v", reg.event, err)
		}
	}
	c.listeners = nil

	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
}

func (c *Coordinator) handleScanned(sess *Session) {
	c.mu.Lock()
	if c.session != sess || c.status != StatusWaiting {
		c.mu.Unlock()
		return
	}
	c.status = StatusScanned
	c.mu.Unlock()

	c.notifyStatus(StatusScanned)
	c.logger.Info("qr code scanned on secondary device")
}

func (c *Coordinator) handleLoginSuccess(sess *Session, payload []byte) {
	var push qrlink.LoginSuccess
	if err := json.Unmarshal(payload, &push); err != nil {
		c.notifyError(errors.Wrap(errors.KindTransport, "login", "decode login push", err))
		return
	}

	c.mu.Lock()
	if c.session != sess || (c.status != StatusWaiting && c.status != StatusScanned) {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	user, err := c.auth.CompleteRemoteLogin(context.Background(), push.Token)
	if err != nil {
		// Session stalls; the user must cancel or let it expire.
		c.notifyError(err)
		return
	}

	c.mu.Lock()
	if c.session != sess || (c.status != StatusWaiting && c.status != StatusScanned) {
		// The session was cancelled, superseded or expired while the token
		// was being verified. The adapter already persisted the login, and a
		// retired code must not leave the user signed in.
		c.mu.Unlock()
		if err := c.auth.Logout(context.Background()); err != nil {
			c.logger.Error("failed to discard login for retired session %s: %v", sess.ID, err)
		}
		c.logger.Info("discarded login for retired qr session %s", sess.ID)
		return
	}
	c.status = StatusConfirmed
	c.teardownLocked()
	c.mu.Unlock()

	c.notifyStatus(StatusConfirmed)
	if c.hooks.OnAuthenticated != nil {
		c.hooks.OnAuthenticated(user)
	}
	c.logger.Info("remote login confirmed for %s", user.Email)
}

// expire is idempotent: the server push and the local timer can both fire for
// the same session, the second attempt finds a terminal status and is
// dropped. The session check keeps a superseded session's timer from
// retiring its successor.
func (c *Coordinator) expire(sess *Session) {
	c.mu.Lock()
	if c.session != sess || (c.status != StatusWaiting && c.status != StatusScanned) {
		c.mu.Unlock()
		return
	}
	c.status = StatusExpired
	c.teardownLocked()
	c.mu.Unlock()

	c.notifyStatus(StatusExpired)
	c.notifyError(errors.New(errors.KindSession, "expire", "QR code expired, generate a new code"))
}

func (c *Coordinator) handleCancelled(sess *Session) {
	c.mu.Lock()
	if c.session != sess || (c.status != StatusWaiting && c.status != StatusScanned) {
		c.mu.Unlock()
		return
	}
	c.status = StatusCancelled
	c.teardownLocked()
	c.mu.Unlock()

	c.notifyStatus(StatusCancelled)
	c.notifyError(errors.New(errors.KindSession, "cancel", "login was declined on the other device, generate a new code"))
}

func (c *Coordinator) notifyStatus(status Status) {
	if c.hooks.OnStatus != nil {
		c.hooks.OnStatus(status)
	}
}

func (c *Coordinator) notifyError(err error) {
	if err == nil {
		return
	}
	if c.hooks.OnError != nil {
		c.hooks.OnError(err)
	}
}
