package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"scc-link-go/internal/contracts/qrlink"
	"scc-link-go/internal/platform/logging"
)

// wsClient wraps one upgraded connection with a write mutex so pushes and
// acks from different goroutines cannot interleave frames.
type wsClient struct {
	socket *websocket.Conn
	mu     sync.Mutex
}

func (c *wsClient) send(env qrlink.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.socket.WriteMessage(websocket.TextMessage, data)
}

// qrPayload is the decoded form of the opaque string rendered into the code.
type qrPayload struct {
	SessionID string `json:"sessionId"`
	Nonce     string `json:"nonce"`
}

// Gateway terminates the event channel: it upgrades websocket connections,
// routes the four request events and pushes lifecycle events back to the
// desktop connection that owns each session.
type Gateway struct {
	logger     *logging.Logger
	store      SessionStore
	users      *UserRepository
	tokens     *TokenService
	sessionTTL time.Duration
	upgrader   websocket.Upgrader

	mu     sync.Mutex
	owners map[string]*wsClient
}

// NewGateway wires the channel endpoint.
func NewGateway(store SessionStore, users *UserRepository, tokens *TokenService, sessionTTL time.Duration, logger *logging.Logger) *Gateway {
	if sessionTTL <= 0 {
		sessionTTL = 5 * time.Minute
	}
	return &Gateway{
		logger:     logger,
		store:      store,
		users:      users,
		tokens:     tokens,
		sessionTTL: sessionTTL,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		owners: make(map[string]*wsClient),
	}
}

// Handle upgrades the request and serves envelopes until the peer hangs up.
func (g *Gateway) Handle(w http.ResponseWriter, r *http.Request) {
	socket, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed: %v", err)
		return
	}
	client := &wsClient{socket: socket}
	defer func() {
		_ = socket.Close()
		g.dropOwner(client)
	}()

	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			return
		}
		var env qrlink.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			g.logger.Warn("discarding malformed envelope: %v", err)
			continue
		}
		g.route(r.Context(), client, env)
	}
}

func (g *Gateway) route(ctx context.Context, c *wsClient, env qrlink.Envelope) {
	switch env.Event {
	case qrlink.EventGenerate:
		g.handleGenerate(ctx, c, env)
	case qrlink.EventValidate:
		g.handleValidate(ctx, c, env)
	case qrlink.EventConfirm:
		g.handleConfirm(ctx, c, env)
	case qrlink.EventCancel:
		g.handleCancel(ctx, c, env)
	default:
		g.logger.Debug("ignoring unknown event %s", env.Event)
	}
}

func (g *Gateway) handleGenerate(ctx context.Context, c *wsClient, env qrlink.Envelope) {
	id := uuid.NewString()
	payload, err := encodeQRPayload(qrPayload{SessionID: id, Nonce: uuid.NewString()})
	if err != nil {
		g.ack(c, env.ID, qrlink.GenerateAck{Ack: qrlink.Ack{Message: "failed to create session"}})
		return
	}

	now := time.Now()
	session := LinkSession{
		ID:        id,
		Payload:   payload,
		Status:    SessionPending,
		CreatedAt: now,
		ExpiresAt: now.Add(g.sessionTTL),
	}
	if err := g.store.Put(ctx, session); err != nil {
		g.logger.Error("store session: %v", err)
		g.ack(c, env.ID, qrlink.GenerateAck{Ack: qrlink.Ack{Message: "failed to create session"}})
		return
	}

	g.mu.Lock()
	g.owners[id] = c
	g.mu.Unlock()

	time.AfterFunc(g.sessionTTL, func() { g.expireSession(id) })

	g.ack(c, env.ID, qrlink.GenerateAck{
		Ack:        qrlink.Ack{Success: true},
		QRCodeData: payload,
		SessionID:  id,
	})
	g.logger.Info("qr session %s created", id)
}

func (g *Gateway) handleValidate(ctx context.Context, c *wsClient, env qrlink.Envelope) {
	var req qrlink.ValidateRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		g.ack(c, env.ID, qrlink.Ack{Message: "malformed validate request"})
		return
	}

	decoded, err := decodeQRPayload(req.QRData)
	if err != nil {
		g.ack(c, env.ID, qrlink.Ack{Message: "invalid QR code"})
		return
	}
	session, err := g.store.Get(ctx, decoded.SessionID)
	if err != nil || session.Payload != req.QRData {
		g.ack(c, env.ID, qrlink.Ack{Message: "invalid or expired QR code"})
		return
	}
	if session.Status != SessionPending {
		g.ack(c, env.ID, qrlink.Ack{Message: "QR code already used"})
		return
	}

	user, err := g.users.Authenticate(ctx, req.UserCredentials.Email, req.UserCredentials.Password)
	if err != nil {
		g.ack(c, env.ID, qrlink.Ack{Message: "invalid email or password"})
		return
	}

	session.Status = SessionScanned
	session.UserEmail = user.Email
	if err := g.store.Put(ctx, session); err != nil {
		g.logger.Error("update session %s: %v", session.ID, err)
		g.ack(c, env.ID, qrlink.Ack{Message: "failed to update session"})
		return
	}

	g.push(session.ID, qrlink.Envelope{Event: qrlink.PushScanned})
	g.ack(c, env.ID, qrlink.Ack{Success: true})
	g.logger.Info("qr session %s scanned by %s", session.ID, user.Email)
}

func (g *Gateway) handleConfirm(ctx context.Context, c *wsClient, env qrlink.Envelope) {
	var req qrlink.ConfirmRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		g.ack(c, env.ID, qrlink.Ack{Message: "malformed confirm request"})
		return
	}

	session, err := g.store.Get(ctx, req.SessionID)
	if err != nil {
		g.ack(c, env.ID, qrlink.Ack{Message: "invalid or expired session"})
		return
	}
	if session.Status != SessionScanned {
		g.ack(c, env.ID, qrlink.Ack{Message: "session was not scanned"})
		return
	}

	user, err := g.users.FindByEmail(ctx, session.UserEmail)
	if err != nil {
		g.ack(c, env.ID, qrlink.Ack{Message: "account no longer available"})
		return
	}
	token, err := g.tokens.Issue(user.Contract())
	if err != nil {
		g.logger.Error("issue token for %s: %v", user.Email, err)
		g.ack(c, env.ID, qrlink.Ack{Message: "failed to issue token"})
		return
	}

	session.Status = SessionConfirmed
	if err := g.store.Put(ctx, session); err != nil {
		g.logger.Error("update session %s: %v", session.ID, err)
	}

	g.pushPayload(session.ID, qrlink.PushLoginSuccess, qrlink.LoginSuccess{
		User:  user.Contract(),
		Token: token,
	})
	g.ack(c, env.ID, qrlink.Ack{Success: true})
	g.logger.Info("qr session %s confirmed for %s", session.ID, user.Email)
}

func (g *Gateway) handleCancel(ctx context.Context, c *wsClient, env qrlink.Envelope) {
	var req qrlink.CancelRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil || req.SessionID == "" {
		return
	}

	session, err := g.store.Get(ctx, req.SessionID)
	if err != nil {
		return
	}
	session.Status = SessionCancelled
	if err := g.store.Put(ctx, session); err != nil {
		g.logger.Error("update session %s: %v", session.ID, err)
	}

	g.push(session.ID, qrlink.Envelope{Event: qrlink.PushCancelled})
	g.dropSession(session.ID)
	g.logger.Info("qr session %s cancelled", session.ID)
}

// expireSession pushes qr-expired to the owning desktop when the session ran
// out without reaching a terminal state.
func (g *Gateway) expireSession(id string) {
	session, err := g.store.Get(context.Background(), id)
	if err == nil && (session.Status == SessionConfirmed || session.Status == SessionCancelled) {
		g.dropSession(id)
		return
	}

	g.push(id, qrlink.Envelope{Event: qrlink.PushExpired})
	g.dropSession(id)
	_ = g.store.Delete(context.Background(), id)
	g.logger.Info("qr session %s expired", id)
}

// ack answers a request envelope; fire-and-forget envelopes carry no ID and
// get no acknowledgment.
func (g *Gateway) ack(c *wsClient, id string, payload any) {
	if id == "" {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := c.send(qrlink.Envelope{Event: qrlink.EventAck, ID: id, Payload: raw}); err != nil {
		g.logger.Warn("ack write failed: %v", err)
	}
}

// push delivers an event to the desktop connection owning the session.
func (g *Gateway) push(sessionID string, env qrlink.Envelope) {
	g.mu.Lock()
	owner := g.owners[sessionID]
	g.mu.Unlock()
	if owner == nil {
		return
	}
	if err := owner.send(env); err != nil {
		g.logger.Warn("push %s to session %s failed: %v", env.Event, sessionID, err)
	}
}

func (g *Gateway) pushPayload(sessionID, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	g.push(sessionID, qrlink.Envelope{Event: event, Payload: raw})
}

func (g *Gateway) dropSession(id string) {
	g.mu.Lock()
	delete(g.owners, id)
	g.mu.Unlock()
}

// dropOwner forgets every session owned by a disconnected client.
func (g *Gateway) dropOwner(c *wsClient) {
	g.mu.Lock()
	for id, owner := range g.owners {
		if owner == c {
			delete(g.owners, id)
		}
	}
	g.mu.Unlock()
}

func encodeQRPayload(p qrPayload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func decodeQRPayload(data string) (qrPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return qrPayload{}, err
	}
	var p qrPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return qrPayload{}, err
	}
	return p, nil
}
