package auth

import (
	"context"
	"time"

	"scc-link-go/internal/contracts/qrlink"
	"scc-link-go/internal/platform/errors"
	"scc-link-go/internal/platform/logging"
)

const defaultCredentialTTL = 24 * time.Hour

// Adapter bridges a confirmed remote login into the same authenticated state
// a direct password login produces. CompleteRemoteLogin is atomic from the
// caller's view: either token and user are both durably stored, or the
// pre-existing credential is restored verbatim.
type Adapter struct {
	api    *Client
	creds  CredentialStore
	ttl    time.Duration
	logger *logging.Logger
}

// NewAdapter builds an adapter around the REST client and credential store.
func NewAdapter(api *Client, creds CredentialStore, ttl time.Duration, logger *logging.Logger) *Adapter {
	if ttl <= 0 {
		ttl = defaultCredentialTTL
	}
	return &Adapter{
		api:    api,
		creds:  creds,
		ttl:    ttl,
		logger: logger,
	}
}

// CompleteRemoteLogin stages the pushed token, verifies it against the
// backend, and commits token plus user on success. Verification failure rolls
// the credential store back to exactly its prior state.
func (a *Adapter) CompleteRemoteLogin(ctx context.Context, token string) (qrlink.User, error) {
	const op = "remote-login"

	if token == "" {
		return qrlink.User{}, errors.New(errors.KindAuth, op, "no token supplied")
	}
	if tokenExpired(token, time.Now()) {
		return qrlink.User{}, errors.New(errors.KindAuth, op, "token already expired")
	}

	prev, had := a.creds.Current()

	// Stage the new token as the active bearer credential.
	if err := a.creds.Save(Credentials{Token: token}); err != nil {
		return qrlink.User{}, err
	}

	user, err := a.api.Verify(ctx, token)
	if err != nil {
		a.rollback(prev, had)
		return qrlink.User{}, errors.Wrap(errors.KindAuth, op, "token verification failed", err)
	}

	if err := a.creds.Save(Credentials{
		Token:     token,
		User:      user,
		ExpiresAt: time.Now().Add(a.ttl),
	}); err != nil {
		a.rollback(prev, had)
		return qrlink.User{}, err
	}

	a.logger.Info("remote login completed for %s", user.Email)
	return user, nil
}

// Login performs a direct email/password login and persists the resulting
// session, so remote and direct paths are indistinguishable downstream.
func (a *Adapter) Login(ctx context.Context, email, password string) (qrlink.User, error) {
	user, token, err := a.api.Login(ctx, email, password)
	if err != nil {
		return qrlink.User{}, err
	}
	if err := a.creds.Save(Credentials{
		Token:     token,
		User:      user,
		ExpiresAt: time.Now().Add(a.ttl),
	}); err != nil {
		return qrlink.User{}, err
	}
	return user, nil
}

// Logout clears local credentials and best-effort invalidates them remotely.
func (a *Adapter) Logout(ctx context.Context) error {
	if creds, ok := a.creds.Current(); ok {
		if err := a.api.Logout(ctx, creds.Token); err != nil {
			a.logger.Warn("remote logout failed: %v", err)
		}
	}
	return a.creds.Clear()
}

// Current exposes the stored credentials, if any are live.
func (a *Adapter) Current() (Credentials, bool) {
	return a.creds.Current()
}

func (a *Adapter) rollback(prev Credentials, had bool) {
	if had {
		if err := a.creds.Save(prev); err != nil {
			a.logger.Error("credential rollback failed: %v", err)
		}
		return
	}
	if err := a.creds.Clear(); err != nil {
		a.logger.Error("credential clear failed: %v", err)
	}
}
