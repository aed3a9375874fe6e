package server_test

import (
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"scc-link-go/internal/contracts/qrlink"
	"scc-link-go/internal/domain/auth"
	"scc-link-go/internal/domain/qrlogin"
	"scc-link-go/internal/platform/errors"
	platformtest "scc-link-go/internal/platform/testing"
	"scc-link-go/internal/server"
	"scc-link-go/internal/transport/channel"
)

const (
	e2eEmail    = "maria@cadoz.com"
	e2ePassword = "segredo123"
)

// e2eFixture runs the full backend behind httptest and a real channel manager
// dialed against it, so the flow below crosses an actual websocket.
type e2eFixture struct {
	ts      *httptest.Server
	manager *channel.Manager
	adapter *auth.Adapter
	creds   *auth.MemoryStore
	tokens  *server.TokenService
}

func newE2EFixture(t *testing.T) *e2eFixture {
	t.Helper()
	logger := platformtest.SetupTestLogger(t)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "scc.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	users, err := server.NewUserRepository(db)
	require.NoError(t, err)
	_, err = users.Create(t.Context(), "Maria Silva", e2eEmail, e2ePassword, "operator")
	require.NoError(t, err)

	cfg := platformtest.SetupTestConfig(t)
	tokens, err := server.NewTokenService(cfg.Server.TokenSecret, time.Hour)
	require.NoError(t, err)

	srv := server.New(cfg.Server, server.NewMemoryStore(), users, tokens, logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	manager := channel.NewManager(channel.Options{
		URL:    "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
		Logger: logger,
	})
	t.Cleanup(manager.Disconnect)

	creds := auth.NewMemoryStore()
	adapter := auth.NewAdapter(auth.NewClient(ts.URL), creds, time.Hour, logger)

	return &e2eFixture{ts: ts, manager: manager, adapter: adapter, creds: creds, tokens: tokens}
}

func TestHandoff_EndToEnd(t *testing.T) {
	f := newE2EFixture(t)
	logger := platformtest.SetupTestLogger(t)

	authed := make(chan qrlink.User, 1)
	coord := qrlogin.NewCoordinator(f.manager, f.adapter, logger, qrlogin.Hooks{
		OnAuthenticated: func(u qrlink.User) { authed <- u },
	})
	defer coord.Close()

	session, err := coord.Generate(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	require.NotEmpty(t, session.Payload)
	require.NotEmpty(t, session.PNG)
	assert.Equal(t, qrlogin.StatusWaiting, coord.Status())

	// The scanning device shares the channel in this test; the gateway still
	// routes pushes by session owner.
	approver := qrlogin.NewApprover(f.manager)
	require.NoError(t, approver.Validate(t.Context(), session.Payload, qrlink.Credentials{
		Email:    e2eEmail,
		Password: e2ePassword,
	}))

	require.Eventually(t, func() bool {
		return coord.Status() == qrlogin.StatusScanned
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, approver.Confirm(t.Context(), session.ID))

	select {
	case user := <-authed:
		assert.Equal(t, e2eEmail, user.Email)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for login confirmation")
	}
	assert.Equal(t, qrlogin.StatusConfirmed, coord.Status())

	stored, ok := f.creds.Current()
	require.True(t, ok)
	email, err := f.tokens.Verify(stored.Token)
	require.NoError(t, err)
	assert.Equal(t, e2eEmail, email)
}

func TestHandoff_ValidateRejectsBadCredentials(t *testing.T) {
	f := newE2EFixture(t)
	logger := platformtest.SetupTestLogger(t)

	coord := qrlogin.NewCoordinator(f.manager, f.adapter, logger, qrlogin.Hooks{})
	defer coord.Close()

	session, err := coord.Generate(t.Context())
	require.NoError(t, err)

	approver := qrlogin.NewApprover(f.manager)
	err = approver.Validate(t.Context(), session.Payload, qrlink.Credentials{
		Email:    e2eEmail,
		Password: "wrong",
	})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindRejected))
	assert.Contains(t, err.Error(), "invalid email or password")

	// The session stays usable after a failed attempt.
	assert.Equal(t, qrlogin.StatusWaiting, coord.Status())
	require.NoError(t, approver.Validate(t.Context(), session.Payload, qrlink.Credentials{
		Email:    e2eEmail,
		Password: e2ePassword,
	}))
}

func TestHandoff_ValidateRejectsForgedPayload(t *testing.T) {
	f := newE2EFixture(t)
	logger := platformtest.SetupTestLogger(t)

	coord := qrlogin.NewCoordinator(f.manager, f.adapter, logger, qrlogin.Hooks{})
	defer coord.Close()

	_, err := coord.Generate(t.Context())
	require.NoError(t, err)

	approver := qrlogin.NewApprover(f.manager)
	err = approver.Validate(t.Context(), "bm90LWEtcmVhbC1zZXNzaW9u", qrlink.Credentials{
		Email:    e2eEmail,
		Password: e2ePassword,
	})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindRejected))
}

func TestHandoff_CancelFromSecondaryDevice(t *testing.T) {
	f := newE2EFixture(t)
	logger := platformtest.SetupTestLogger(t)

	statusCh := make(chan qrlogin.Status, 8)
	coord := qrlogin.NewCoordinator(f.manager, f.adapter, logger, qrlogin.Hooks{
		OnStatus: func(s qrlogin.Status) { statusCh <- s },
	})
	defer coord.Close()

	session, err := coord.Generate(t.Context())
	require.NoError(t, err)

	require.NoError(t, f.manager.Emit(qrlink.EventCancel, qrlink.CancelRequest{SessionID: session.ID}))

	require.Eventually(t, func() bool {
		return coord.Status() == qrlogin.StatusCancelled
	}, 3*time.Second, 10*time.Millisecond)

	_, ok := f.creds.Current()
	assert.False(t, ok)
}
