package opensky

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/skyroute/flightfeed/pkg/logger"
)

// DefaultTokenURL is the OpenSky OAuth2 token endpoint.
const DefaultTokenURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"

// tokenSafetyMargin is subtracted from expires_in so a token is never used
// right at its expiry. Short-lived tokens lose at most half their lifetime.
const tokenSafetyMargin = 60 * time.Second

// TokenSource supplies request headers for the upstream API.
type TokenSource interface {
	// AuthHeaders returns the headers to send. When no token can be had the
	// result carries no Authorization header and the request is anonymous.
	AuthHeaders(ctx context.Context) http.Header

	// Invalidate drops the cached token, e.g. after the upstream answered 401.
	Invalidate()

	// Authenticated reports whether a valid token is currently held.
	Authenticated() bool
}

// OAuthToken is a bearer token with its effective expiry (safety margin
// already applied).
type OAuthToken struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the token can still be used at now.
func (t *OAuthToken) Valid(now time.Time) bool {
	return t != nil && t.Token != "" && now.Before(t.ExpiresAt)
}

// TokenConfig configures a TokenManager.
type TokenConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string

	// Timeout bounds a single token exchange (default 10s)
	Timeout time.Duration

	// HTTPClient overrides the client used for the exchange
	HTTPClient *http.Client

	// Now overrides the clock (tests)
	Now func() time.Time
}

// TokenManager acquires and caches an OAuth2 client-credentials token.
// At most one token is held; concurrent refreshes share one exchange.
type TokenManager struct {
	cfg        TokenConfig
	httpClient *http.Client
	now        func() time.Time
	log        *logger.Logger

	mu    sync.RWMutex
	token *OAuthToken

	refresh singleflight.Group
}

// NewTokenManager creates a token manager. Without a client id and secret it
// always hands out anonymous headers.
func NewTokenManager(cfg TokenConfig, log *logger.Logger) *TokenManager {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &TokenManager{
		cfg:        cfg,
		httpClient: httpClient,
		now:        now,
		log:        log,
	}
}

// HasCredentials reports whether client credentials are configured.
func (m *TokenManager) HasCredentials() bool {
	return m.cfg.ClientID != "" && m.cfg.ClientSecret != ""
}

// AuthHeaders implements TokenSource.
func (m *TokenManager) AuthHeaders(ctx context.Context) http.Header {
	headers := http.Header{}
	if !m.HasCredentials() {
		return headers
	}

	if tok := m.current(); tok != nil {
		headers.Set("Authorization", "Bearer "+tok.Token)
		return headers
	}

	v, err, shared := m.refresh.Do("token", func() (interface{}, error) {
		// Another caller may have finished a refresh while we queued.
		if tok := m.current(); tok != nil {
			return tok, nil
		}
		return m.acquire(ctx)
	})
	if err != nil {
		m.log.Warn("OpenSky token exchange failed, using anonymous access: %v", err)
		return headers
	}
	if shared {
		m.log.Debug("Joined in-flight token exchange")
	}

	headers.Set("Authorization", "Bearer "+v.(*OAuthToken).Token)
	return headers
}

// Invalidate implements TokenSource.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != nil {
		m.log.Info("OpenSky token invalidated")
	}
	m.token = nil
}

// Authenticated implements TokenSource.
func (m *TokenManager) Authenticated() bool {
	return m.current() != nil
}

// ExpiresAt returns the expiry of the held token, or the zero time.
func (m *TokenManager) ExpiresAt() time.Time {
	if tok := m.current(); tok != nil {
		return tok.ExpiresAt
	}
	return time.Time{}
}

func (m *TokenManager) current() *OAuthToken {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token.Valid(m.now()) {
		return m.token
	}
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// acquire performs one client-credentials exchange and caches the result.
// The exchange outlives a cancelled caller since other callers may share it.
func (m *TokenManager) acquire(ctx context.Context) (*OAuthToken, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.Timeout)
	defer cancel()

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", m.cfg.ClientID)
	form.Set("client_secret", m.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, errors.New("token response has no access_token")
	}

	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	tok := &OAuthToken{
		Token:     tr.AccessToken,
		ExpiresAt: m.now().Add(lifetime - min(tokenSafetyMargin, lifetime/2)),
	}

	m.mu.Lock()
	m.token = tok
	m.mu.Unlock()

	m.log.Info("Acquired OpenSky token (expires %s)", tok.ExpiresAt.Format(time.RFC3339))
	return tok, nil
}

// anonymousSource never authenticates.
type anonymousSource struct{}

func (anonymousSource) AuthHeaders(context.Context) http.Header { return http.Header{} }
func (anonymousSource) Invalidate()                             {}
func (anonymousSource) Authenticated() bool                     { return false }
