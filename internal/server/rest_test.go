package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	platformtest "scc-link-go/internal/platform/testing"
)

type restFixture struct {
	ts     *httptest.Server
	users  *UserRepository
	tokens *TokenService
}

func newRESTFixture(t *testing.T) *restFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "scc.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	users, err := NewUserRepository(db)
	require.NoError(t, err)
	_, err = users.Create(t.Context(), "Maria Silva", "maria@cadoz.com", "segredo123", "operator")
	require.NoError(t, err)

	cfg := platformtest.SetupTestConfig(t)
	tokens, err := NewTokenService(cfg.Server.TokenSecret, time.Hour)
	require.NoError(t, err)

	srv := New(cfg.Server, NewMemoryStore(), users, tokens, platformtest.SetupTestLogger(t))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &restFixture{ts: ts, users: users, tokens: tokens}
}

func (f *restFixture) postJSON(t *testing.T, path string, body any) (*http.Response, apiResponse) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.ts.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp, decodeAPIResponse(t, resp)
}

func decodeAPIResponse(t *testing.T, resp *http.Response) apiResponse {
	t.Helper()
	defer resp.Body.Close()
	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRESTLogin_Success(t *testing.T) {
	f := newRESTFixture(t)

	resp, out := f.postJSON(t, "/api/auth/login", map[string]string{
		"email":    "maria@cadoz.com",
		"password": "segredo123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, out.Success)

	data, ok := out.Data.(map[string]interface{})
	require.True(t, ok)
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)

	email, err := f.tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "maria@cadoz.com", email)
}

func TestRESTLogin_BadPassword(t *testing.T) {
	f := newRESTFixture(t)

	resp, out := f.postJSON(t, "/api/auth/login", map[string]string{
		"email":    "maria@cadoz.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, out.Success)
	assert.Equal(t, "invalid email or password", out.Message)
}

func TestRESTLogin_MissingFields(t *testing.T) {
	f := newRESTFixture(t)

	resp, out := f.postJSON(t, "/api/auth/login", map[string]string{"email": "maria@cadoz.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, out.Success)
}

func TestRESTVerify(t *testing.T) {
	f := newRESTFixture(t)

	user, err := f.users.FindByEmail(t.Context(), "maria@cadoz.com")
	require.NoError(t, err)
	token, err := f.tokens.Issue(user.Contract())
	require.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
		wantOK     bool
	}{
		{name: "valid token", authHeader: "Bearer " + token, wantStatus: http.StatusOK, wantOK: true},
		{name: "garbage token", authHeader: "Bearer not-a-jwt", wantStatus: http.StatusUnauthorized},
		{name: "missing header", wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/api/auth/verify", nil)
			require.NoError(t, err)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			out := decodeAPIResponse(t, resp)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantOK, out.Success)
			if tt.wantOK {
				data, ok := out.Data.(map[string]interface{})
				require.True(t, ok)
				userData, ok := data["user"].(map[string]interface{})
				require.True(t, ok)
				assert.Equal(t, "maria@cadoz.com", userData["email"])
			}
		})
	}
}

func TestRESTLogout(t *testing.T) {
	f := newRESTFixture(t)

	resp, out := f.postJSON(t, "/api/auth/logout", map[string]string{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Success)
}
