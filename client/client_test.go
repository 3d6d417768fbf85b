package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "changeme123"

// fakeAuthServer scripts the auth endpoints: it mints opaque token pairs,
// rotates refresh tokens on use and revokes them on logout, mirroring the
// real server's single-use semantics.
type fakeAuthServer struct {
	srv *httptest.Server

	mu              sync.Mutex
	tokenSeq        int
	valid           map[string]bool   // live refresh tokens
	revoked         map[string]bool   // retired refresh tokens
	refreshByAccess map[string]string // access token -> paired refresh token
	refreshCalls    int
	failRefresh     int // when >0, every refresh fails with this status
	failuresLeft    int // fail this many refreshes, then behave normally
	expiresIn       int64
}

func newFakeAuthServer(t *testing.T) *fakeAuthServer {
	f := &fakeAuthServer{
		valid:           make(map[string]bool),
		revoked:         make(map[string]bool),
		refreshByAccess: make(map[string]string),
		expiresIn:       900,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", f.handleLogin)
	mux.HandleFunc("/api/v1/auth/refresh", f.handleRefresh)
	mux.HandleFunc("/api/v1/auth/logout", f.handleLogout)
	mux.HandleFunc("/api/v1/whoami", f.handleWhoami)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAuthServer) mintPairLocked() (string, string) {
	f.tokenSeq++
	access := fmt.Sprintf("access-%d", f.tokenSeq)
	refresh := fmt.Sprintf("refresh-%d", f.tokenSeq)
	f.valid[refresh] = true
	f.refreshByAccess[access] = refresh
	return access, refresh
}

func (f *fakeAuthServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.Password != testPassword {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		return
	}

	f.mu.Lock()
	access, refresh := f.mintPairLocked()
	expiresIn := f.expiresIn
	f.mu.Unlock()

	writeData(w, map[string]interface{}{
		"principal": map[string]interface{}{
			"id":          1,
			"type":        "teacher",
			"email":       req.Email,
			"name":        "Demo Teacher",
			"role":        "teacher",
			"permissions": []string{"courses:read", "courses:write"},
		},
		"access_token":  access,
		"refresh_token": refresh,
		"expires_in":    expiresIn,
	})
}

func (f *fakeAuthServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.refreshCalls++
	if f.failRefresh > 0 {
		status := f.failRefresh
		f.mu.Unlock()
		writeError(w, status, "INTERNAL_ERROR", "refresh exploded")
		return
	}
	if f.failuresLeft > 0 {
		f.failuresLeft--
		f.mu.Unlock()
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "transient failure")
		return
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if f.revoked[req.RefreshToken] {
		f.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "TOKEN_REVOKED", "Token has been revoked")
		return
	}
	if !f.valid[req.RefreshToken] {
		f.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "TOKEN_INVALID", "Invalid refresh token")
		return
	}

	// Rotation: the presented token is dead from here on.
	delete(f.valid, req.RefreshToken)
	f.revoked[req.RefreshToken] = true
	access, refresh := f.mintPairLocked()
	expiresIn := f.expiresIn
	f.mu.Unlock()

	writeData(w, map[string]interface{}{
		"access_token":  access,
		"refresh_token": refresh,
		"expires_in":    expiresIn,
	})
}

func (f *fakeAuthServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	access := bearerToken(r)

	f.mu.Lock()
	if refresh, ok := f.refreshByAccess[access]; ok {
		delete(f.valid, refresh)
		f.revoked[refresh] = true
	}
	f.mu.Unlock()

	writeData(w, map[string]string{"message": "Successfully logged out"})
}

func (f *fakeAuthServer) handleWhoami(w http.ResponseWriter, r *http.Request) {
	writeData(w, map[string]string{"authorization": r.Header.Get("Authorization")})
}

func (f *fakeAuthServer) refreshCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

// directRefresh bypasses the SDK and exchanges a refresh token straight
// against the server, returning the status and error code.
func (f *fakeAuthServer) directRefresh(t *testing.T, refreshToken string) (int, string) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"refresh_token": refreshToken})
	resp, err := http.Post(f.srv.URL+"/api/v1/auth/refresh", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var env struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&env)
	code := ""
	if env.Error != nil {
		code = env.Error.Code
	}
	return resp.StatusCode, code
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) {
		return header[len(prefix):]
	}
	return ""
}

func writeData(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}

func newTestClient(t *testing.T, f *fakeAuthServer, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL: f.srv.URL,
		Retry:   RetryConfig{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func login(t *testing.T, c *Client) *Principal {
	t.Helper()
	principal, err := c.Login(context.Background(), LoginRequest{
		Email:    "teacher@sunrise.example.com",
		Password: testPassword,
	})
	require.NoError(t, err)
	return principal
}

func TestLoginSuccess(t *testing.T) {
	f := newFakeAuthServer(t)
	c := newTestClient(t, f, nil)

	principal := login(t, c)
	assert.Equal(t, uint(1), principal.ID)
	assert.Equal(t, "teacher", principal.Type)
	assert.Contains(t, principal.Permissions, "courses:read")

	assert.Equal(t, StateValid, c.SessionState())

	token, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFakeAuthServer(t)
	c := newTestClient(t, f, nil)

	_, err := c.Login(context.Background(), LoginRequest{
		Email:    "teacher@sunrise.example.com",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, StateNoSession, c.SessionState())
}

func TestAccessTokenWithoutSession(t *testing.T) {
	f := newFakeAuthServer(t)
	c := newTestClient(t, f, nil)

	_, err := c.AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestProactiveRefreshOnSimulatedClock(t *testing.T) {
	f := newFakeAuthServer(t)
	clock := newFakeClock()
	c := newTestClient(t, f, func(cfg *Config) {
		cfg.Now = clock.Now
	})

	login(t, c)
	oldRefresh := "refresh-1"

	// 11 minutes into a 15-minute token puts it inside the 5-minute window.
	clock.Advance(11 * time.Minute)
	require.Equal(t, StateExpiringSoon, c.SessionState())

	c.checkOnce(context.Background())

	require.Equal(t, StateValid, c.SessionState())
	token, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", token, "proactive refresh should have rotated the pair")

	// The rotated-away refresh token is single-use: replaying it fails.
	status, code := f.directRefresh(t, oldRefresh)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "TOKEN_REVOKED", code)
}

func TestExpiredAccessTokenBlocksAndRefreshes(t *testing.T) {
	f := newFakeAuthServer(t)
	clock := newFakeClock()
	c := newTestClient(t, f, func(cfg *Config) {
		cfg.Now = clock.Now
	})

	login(t, c)
	clock.Advance(16 * time.Minute)
	require.Equal(t, StateExpired, c.SessionState())

	token, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", token)
	assert.Equal(t, StateValid, c.SessionState())
}

func TestRefreshRetriesTransientServerError(t *testing.T) {
	f := newFakeAuthServer(t)
	c := newTestClient(t, f, func(cfg *Config) {
		cfg.Retry = RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
	})

	login(t, c)

	f.mu.Lock()
	f.failuresLeft = 1
	f.mu.Unlock()

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, 2, f.refreshCallCount(), "one failure plus one successful retry")
}

func TestBreakerSuppressesRefreshAfterConsecutiveFailures(t *testing.T) {
	f := newFakeAuthServer(t)
	clock := newFakeClock()
	c := newTestClient(t, f, func(cfg *Config) {
		cfg.Now = clock.Now
		cfg.BreakerThreshold = 5
		cfg.BreakerCooldown = 30 * time.Second
	})

	login(t, c)

	f.mu.Lock()
	f.failRefresh = http.StatusInternalServerError
	f.mu.Unlock()

	for i := 0; i < 5; i++ {
		err := c.Refresh(context.Background())
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrBreakerOpen, "breaker opened early on failure %d", i+1)
	}
	require.Equal(t, 5, f.refreshCallCount())

	// Open breaker: the next attempt is suppressed without a network call.
	err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, 5, f.refreshCallCount(), "suppressed refresh still hit the server")

	// After the cooldown one probe goes through again.
	clock.Advance(31 * time.Second)
	err = c.Refresh(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, 6, f.refreshCallCount())
}

func TestTerminalRefreshClearsSession(t *testing.T) {
	f := newFakeAuthServer(t)
	store := NewMemoryTokenStore()
	var expiredCalls int
	c := newTestClient(t, f, func(cfg *Config) {
		cfg.Store = store
		cfg.OnSessionExpired = func() { expiredCalls++ }
	})

	login(t, c)

	// Revoke the live refresh token behind the client's back.
	f.mu.Lock()
	for token := range f.valid {
		delete(f.valid, token)
		f.revoked[token] = true
	}
	f.mu.Unlock()

	err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 1, expiredCalls, "OnSessionExpired should fire exactly once")
	assert.Equal(t, StateRefreshFailed, c.SessionState())

	_, err = c.AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)

	// Stored credentials are wiped, not just the in-memory session.
	_, err = store.Get(storeKeyAccess)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, err = store.Get(storeKeyRefresh)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestLogoutRevokesSessionServerSide(t *testing.T) {
	f := newFakeAuthServer(t)
	store := NewMemoryTokenStore()
	c := newTestClient(t, f, func(cfg *Config) {
		cfg.Store = store
	})

	login(t, c)
	refreshToken, err := store.Get(storeKeyRefresh)
	require.NoError(t, err)

	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, StateNoSession, c.SessionState())

	_, err = store.Get(storeKeyRefresh)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// The session died server-side too: its refresh token is revoked.
	status, code := f.directRefresh(t, refreshToken)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "TOKEN_REVOKED", code)
}

func TestDoAttachesBearerToken(t *testing.T) {
	f := newFakeAuthServer(t)
	c := newTestClient(t, f, nil)

	login(t, c)

	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/v1/whoami", nil)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env struct {
		Data struct {
			Authorization string `json:"authorization"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "Bearer access-1", env.Data.Authorization)
}

func TestLoadSessionResumesFromStore(t *testing.T) {
	f := newFakeAuthServer(t)
	store := NewMemoryTokenStore()

	// Simulate a previous process that saved its pair. The access token must
	// be a real JWT because resume reads identity and expiry from its claims.
	claims := jwt.MapClaims{
		"principal_id":   float64(7),
		"principal_type": "teacher",
		"email":          "teacher@sunrise.example.com",
		"role":           "teacher",
		"exp":            time.Now().Add(10 * time.Minute).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-secret"))
	require.NoError(t, err)
	require.NoError(t, store.Set(storeKeyAccess, signed, 0))
	require.NoError(t, store.Set(storeKeyRefresh, "refresh-durable", 0))

	c := newTestClient(t, f, func(cfg *Config) {
		cfg.Store = store
	})

	require.NoError(t, c.LoadSession())
	assert.Equal(t, StateValid, c.SessionState())

	principal, ok := c.Principal()
	require.True(t, ok)
	assert.Equal(t, uint(7), principal.ID)
	assert.Equal(t, "teacher", principal.Type)
}

func TestLoadSessionWithoutStoredTokens(t *testing.T) {
	f := newFakeAuthServer(t)
	c := newTestClient(t, f, nil)

	err := c.LoadSession()
	assert.ErrorIs(t, err, ErrTokenNotFound)
}
