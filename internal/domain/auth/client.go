package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"

	"scc-link-go/internal/contracts/qrlink"
	"scc-link-go/internal/platform/errors"
)

const requestTimeout = 10 * time.Second

// apiEnvelope is the uniform response shape of the auth REST endpoints.
type apiEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		User  qrlink.User `json:"user"`
		Token string      `json:"token"`
	} `json:"data"`
}

// Client talks to the backend's REST auth endpoints.
type Client struct {
	http *resty.Client
}

// NewClient builds a REST auth client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(requestTimeout).
			SetHeader("Accept", "application/json"),
	}
}

// Login performs a direct email/password login.
func (c *Client) Login(ctx context.Context, email, password string) (qrlink.User, string, error) {
	const op = "login"

	var out apiEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&out).
		Post("/api/auth/login")
	if err != nil {
		return qrlink.User{}, "", errors.Wrap(errors.KindTransport, op, "login request failed", err)
	}
	if resp.IsError() || !out.Success {
		return qrlink.User{}, "", errors.New(errors.KindAuth, op, failureMessage(resp, out, "invalid email or password"))
	}
	return out.Data.User, out.Data.Token, nil
}

// Verify fetches the authoritative user object for a bearer token.
func (c *Client) Verify(ctx context.Context, token string) (qrlink.User, error) {
	const op = "verify"

	var out apiEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&out).
		Get("/api/auth/verify")
	if err != nil {
		return qrlink.User{}, errors.Wrap(errors.KindTransport, op, "verify request failed", err)
	}
	if resp.IsError() || !out.Success {
		return qrlink.User{}, errors.New(errors.KindAuth, op, failureMessage(resp, out, "token verification failed"))
	}
	return out.Data.User, nil
}

// Logout invalidates the session server-side. Best effort.
func (c *Client) Logout(ctx context.Context, token string) error {
	const op = "logout"

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		Post("/api/auth/logout")
	if err != nil {
		return errors.Wrap(errors.KindTransport, op, "logout request failed", err)
	}
	if resp.IsError() {
		return errors.New(errors.KindAuth, op, "logout rejected")
	}
	return nil
}

// failureMessage prefers the server-supplied message over the fallback.
func failureMessage(resp *resty.Response, out apiEnvelope, fallback string) string {
	if out.Message != "" {
		return out.Message
	}
	// Error statuses bypass SetResult; give the body one more chance.
	var parsed apiEnvelope
	if err := json.Unmarshal(resp.Body(), &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	return fallback
}
