// Package client is the Go SDK for the LMS API. It logs a principal in,
// keeps the session alive by rotating the token pair before the access token
// expires, and attaches the bearer token to outgoing requests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionState describes where the active session sits in its lifecycle.
type SessionState string

const (
	StateNoSession     SessionState = "no_session"
	StateValid         SessionState = "valid"
	StateExpiringSoon  SessionState = "expiring_soon"
	StateExpired       SessionState = "expired"
	StateRefreshFailed SessionState = "refresh_failed"
)

const (
	DefaultRefreshThreshold = 5 * time.Minute
	DefaultCheckInterval    = 30 * time.Second
	DefaultRequestTimeout   = 10 * time.Second
	DefaultHTTPTimeout      = 30 * time.Second
)

const (
	storeKeyAccess  = "access_token"
	storeKeyRefresh = "refresh_token"
)

// maxResponseBody caps how much of a response the SDK will buffer.
const maxResponseBody = 1 << 20

// RetryConfig bounds the retry loop around refresh calls.
type RetryConfig struct {
	MaxRetries     int           // retry attempts after the first call
	InitialBackoff time.Duration // first backoff, doubled each attempt
	MaxBackoff     time.Duration // backoff ceiling
}

// DefaultRetryConfig returns the default retry configuration: two retries
// with exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// Config configures a Client. Zero values fall back to the defaults above;
// a zero Retry struct falls back to DefaultRetryConfig.
type Config struct {
	BaseURL          string
	HTTPClient       *http.Client
	Store            TokenStore
	RefreshThreshold time.Duration // how close to expiry triggers a proactive refresh
	CheckInterval    time.Duration // background loop cadence
	RequestTimeout   time.Duration // per auth call
	Retry            RetryConfig
	BreakerThreshold int           // consecutive refresh failures before the breaker opens
	BreakerCooldown  time.Duration // how long the breaker stays open
	OnSessionExpired func()        // fired once when a refresh fails terminally
	Now              func() time.Time
}

// Principal mirrors the principal snapshot returned by login and profile.
type Principal struct {
	ID          uint     `json:"id"`
	Type        string   `json:"type"`
	TenantID    *uint    `json:"tenant_id,omitempty"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// LoginRequest carries credentials. Portal narrows the login to one account
// type; tenant disambiguates teacher/student emails, which are unique per
// tenant rather than globally.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Portal   string `json:"portal,omitempty"`
	Tenant   string `json:"tenant,omitempty"`
}

type session struct {
	accessToken     string
	refreshToken    string
	accessExpiresAt time.Time
	principal       Principal
}

// Client owns one session against the API. All methods are safe for
// concurrent use; refreshes are single-flight.
type Client struct {
	baseURL          string
	httpClient       *http.Client
	store            TokenStore
	refreshThreshold time.Duration
	checkInterval    time.Duration
	requestTimeout   time.Duration
	retry            RetryConfig
	breaker          *circuitBreaker
	onSessionExpired func()
	now              func() time.Time

	mu            sync.Mutex
	session       *session
	refreshFailed bool

	refreshMu sync.Mutex

	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// NewClient builds a client for the API at baseURL.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client: BaseURL is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryTokenStore()
	}
	if cfg.RefreshThreshold <= 0 {
		cfg.RefreshThreshold = DefaultRefreshThreshold
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:       cfg.HTTPClient,
		store:            cfg.Store,
		refreshThreshold: cfg.RefreshThreshold,
		checkInterval:    cfg.CheckInterval,
		requestTimeout:   cfg.RequestTimeout,
		retry:            cfg.Retry,
		breaker:          newCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown, cfg.Now),
		onSessionExpired: cfg.OnSessionExpired,
		now:              cfg.Now,
	}, nil
}

// Start launches the background loop that refreshes the session before the
// access token expires. Calling Start twice is a no-op.
func (c *Client) Start() {
	c.mu.Lock()
	if c.loopCancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.loopCancel = cancel
	c.loopDone = make(chan struct{})
	c.mu.Unlock()

	go c.loop(ctx)
}

// Close stops the background loop and drops the in-memory session. Stored
// credentials are left alone so a durable store can resume later.
func (c *Client) Close() {
	c.mu.Lock()
	cancel := c.loopCancel
	done := c.loopDone
	c.loopCancel = nil
	c.session = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (c *Client) loop(ctx context.Context) {
	defer close(c.loopDone)
	ticker := time.NewTicker(c.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkOnce(ctx)
		}
	}
}

// checkOnce runs one proactive pass: refresh when the access token is inside
// the threshold window or already expired.
func (c *Client) checkOnce(ctx context.Context) {
	switch c.SessionState() {
	case StateExpiringSoon, StateExpired:
		// Failures surface through SessionState and OnSessionExpired.
		_ = c.refreshSession(ctx, false)
	}
}

// Login authenticates and opens a new session, replacing any existing one.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*Principal, error) {
	var data loginResponse
	if err := c.postJSON(ctx, "/api/v1/auth/login", req, &data, ""); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == codeInvalidCredentials {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := c.applyPair(data.AccessToken, data.RefreshToken, data.ExpiresIn); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.session != nil {
		c.session.principal = data.Principal
	}
	c.mu.Unlock()
	c.breaker.RecordSuccess()

	principal := data.Principal
	return &principal, nil
}

// Logout revokes the session server-side and clears local credentials. The
// local wipe happens even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return ErrNotAuthenticated
	}

	err := c.postJSON(ctx, "/api/v1/auth/logout", nil, nil, sess.accessToken)

	c.mu.Lock()
	c.session = nil
	c.refreshFailed = false
	c.mu.Unlock()
	_ = c.store.Remove(storeKeyAccess)
	_ = c.store.Remove(storeKeyRefresh)

	return err
}

// Refresh forces an immediate token rotation.
func (c *Client) Refresh(ctx context.Context) error {
	return c.refreshSession(ctx, true)
}

// AccessToken returns a usable access token, refreshing first when the
// current one has expired. A token inside the threshold window is returned
// as-is; rotating it is the background loop's job.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.session == nil {
		failed := c.refreshFailed
		c.mu.Unlock()
		if failed {
			return "", ErrSessionExpired
		}
		return "", ErrNotAuthenticated
	}
	state := c.stateLocked()
	token := c.session.accessToken
	c.mu.Unlock()

	if state != StateExpired {
		return token, nil
	}

	if err := c.refreshSession(ctx, false); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return "", ErrSessionExpired
	}
	return c.session.accessToken, nil
}

// Do attaches the bearer token and sends the request.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	token, err := c.AccessToken(req.Context())
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.httpClient.Do(req)
}

// SessionState reports the current lifecycle state.
func (c *Client) SessionState() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		if c.refreshFailed {
			return StateRefreshFailed
		}
		return StateNoSession
	}
	return c.stateLocked()
}

func (c *Client) stateLocked() SessionState {
	if c.session == nil {
		if c.refreshFailed {
			return StateRefreshFailed
		}
		return StateNoSession
	}
	now := c.now()
	switch {
	case now.After(c.session.accessExpiresAt):
		return StateExpired
	case c.session.accessExpiresAt.Sub(now) <= c.refreshThreshold:
		return StateExpiringSoon
	default:
		return StateValid
	}
}

// Principal returns the logged-in principal snapshot.
func (c *Client) Principal() (Principal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Principal{}, false
	}
	return c.session.principal, true
}

// LoadSession resumes a session from the token store. Without a stored
// refresh token there is nothing to resume; a missing or stale access token
// just means the first use triggers a blocking refresh.
func (c *Client) LoadSession() error {
	refreshToken, err := c.store.Get(storeKeyRefresh)
	if err != nil {
		return err
	}

	sess := &session{refreshToken: refreshToken}
	if accessToken, err := c.store.Get(storeKeyAccess); err == nil {
		if claims, cerr := parseAccessClaims(accessToken); cerr == nil && claims.ExpiresAt != nil {
			sess.accessToken = accessToken
			sess.accessExpiresAt = claims.ExpiresAt.Time
			sess.principal = claims.principal()
		}
	}

	c.mu.Lock()
	c.session = sess
	c.refreshFailed = false
	c.mu.Unlock()
	return nil
}

// refreshSession exchanges the refresh token for a new pair. Single-flight:
// concurrent callers queue on refreshMu and the losers see the fresh state.
func (c *Client) refreshSession(ctx context.Context, force bool) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.Lock()
	if c.session == nil {
		failed := c.refreshFailed
		c.mu.Unlock()
		if failed {
			return ErrSessionExpired
		}
		return ErrNotAuthenticated
	}
	if !force && c.stateLocked() == StateValid {
		// Someone else rotated while we waited on the lock.
		c.mu.Unlock()
		return nil
	}
	refreshToken := c.session.refreshToken
	c.mu.Unlock()

	if !c.breaker.Allow() {
		return ErrBreakerOpen
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		data, err := c.exchangeRefresh(ctx, refreshToken)
		if err == nil {
			c.breaker.RecordSuccess()
			return c.applyPair(data.AccessToken, data.RefreshToken, data.ExpiresIn)
		}
		lastErr = err

		if isTerminalRefresh(err) {
			// The refresh token is dead: clear everything and make the
			// caller log in again.
			c.breaker.RecordFailure()
			c.terminateSession()
			return fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		if !IsRetryable(err) || attempt >= c.retry.MaxRetries {
			break
		}

		wait := backoffWithJitter(attempt, c.retry)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > wait {
			wait = apiErr.RetryAfter
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	c.breaker.RecordFailure()
	return lastErr
}

// terminateSession wipes local credentials after a terminal refresh failure
// and notifies the owner.
func (c *Client) terminateSession() {
	c.mu.Lock()
	c.session = nil
	c.refreshFailed = true
	c.mu.Unlock()

	_ = c.store.Remove(storeKeyAccess)
	_ = c.store.Remove(storeKeyRefresh)

	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}
}

// applyPair installs a fresh token pair in memory and in the store. The
// session's principal is left untouched: rotation never changes who is
// logged in.
func (c *Client) applyPair(accessToken, refreshToken string, expiresIn int64) error {
	ttl := time.Duration(expiresIn) * time.Second
	expiresAt := c.now().Add(ttl)

	c.mu.Lock()
	if c.session == nil {
		c.session = &session{}
	}
	c.session.accessToken = accessToken
	c.session.refreshToken = refreshToken
	c.session.accessExpiresAt = expiresAt
	c.refreshFailed = false
	c.mu.Unlock()

	if err := c.store.Set(storeKeyAccess, accessToken, ttl); err != nil {
		return fmt.Errorf("persisting access token: %w", err)
	}
	if err := c.store.Set(storeKeyRefresh, refreshToken, 0); err != nil {
		return fmt.Errorf("persisting refresh token: %w", err)
	}
	return nil
}

type loginResponse struct {
	Principal    Principal `json:"principal"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (c *Client) exchangeRefresh(ctx context.Context, refreshToken string) (*refreshResponse, error) {
	var data refreshResponse
	err := c.postJSON(ctx, "/api/v1/auth/refresh",
		map[string]string{"refresh_token": refreshToken}, &data, "")
	if err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}, bearer string) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, out)
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details,omitempty"`
	} `json:"error,omitempty"`
}

func decodeEnvelope(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return err
	}

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{
				StatusCode: resp.StatusCode,
				Message:    http.StatusText(resp.StatusCode),
				RetryAfter: parseRetryAfter(resp),
			}
		}
		return fmt.Errorf("decoding response: %w", err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    env.Message,
			RetryAfter: parseRetryAfter(resp),
		}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

// backoffWithJitter doubles the initial backoff per attempt, caps it, then
// picks a point between half and full backoff so lockstep clients fan out.
func backoffWithJitter(attempt int, cfg RetryConfig) time.Duration {
	backoff := cfg.InitialBackoff * time.Duration(1<<uint(attempt))
	if backoff <= 0 || backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}
	if backoff <= 0 {
		return 0
	}
	half := int64(backoff / 2)
	return time.Duration(half + rand.Int63n(half+1))
}

// accessClaims is the subset of server claims the SDK reads. Tokens are
// parsed without verification: the client holds no signing secret and only
// needs expiry and identity hints.
type accessClaims struct {
	PrincipalID   uint     `json:"principal_id"`
	PrincipalType string   `json:"principal_type"`
	TenantID      *uint    `json:"tenant_id,omitempty"`
	Email         string   `json:"email"`
	Role          string   `json:"role"`
	Permissions   []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

func (a *accessClaims) principal() Principal {
	return Principal{
		ID:          a.PrincipalID,
		Type:        a.PrincipalType,
		TenantID:    a.TenantID,
		Email:       a.Email,
		Role:        a.Role,
		Permissions: a.Permissions,
	}
}

func parseAccessClaims(token string) (*accessClaims, error) {
	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}
