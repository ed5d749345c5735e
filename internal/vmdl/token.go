package vmdl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// tokenExpirySkew treats a token as expired slightly before its stated
// lifetime so an upload never races the registry's clock.
const tokenExpirySkew = 5 * time.Second

// TokenConfig carries the credentials for one registry client. Each disease
// uses its own client id against the same tenant.
type TokenConfig struct {
	TokenURL string
	TenantID string
	Username string
	Password string
	ClientID string
}

// TokenSource lazily acquires and caches one bearer token. The token is
// refreshed on first use after expiry, never proactively.
type TokenSource struct {
	cfg  TokenConfig
	http *resty.Client
	log  *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenType   string
	expiresAt   time.Time
	now         func() time.Time
}

// NewTokenSource builds a token source for one client id.
func NewTokenSource(cfg TokenConfig, log *zap.Logger) *TokenSource {
	return &TokenSource{
		cfg:  cfg,
		http: resty.New(),
		log:  log,
		now:  time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// AuthorizationHeader returns the value for the Authorization header,
// refreshing the cached token when it has expired.
func (s *TokenSource) AuthorizationHeader(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && s.now().Before(s.expiresAt) {
		return s.tokenType + " " + s.accessToken, nil
	}

	var out tokenResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type": "password",
			"username":   s.cfg.Username,
			"client_id":  s.cfg.ClientID,
			"password":   s.cfg.Password,
			"scope":      fmt.Sprintf("api://%s/user_impersonation", s.cfg.ClientID),
		}).
		SetResult(&out).
		Post(fmt.Sprintf("%s/%s/oauth2/v2.0/token", s.cfg.TokenURL, s.cfg.TenantID))
	if err != nil {
		return "", fmt.Errorf("acquire token: %w", err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("acquire token: %s", resp.Status())
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("acquire token: empty access_token in response")
	}

	s.accessToken = out.AccessToken
	s.tokenType = out.TokenType
	if s.tokenType == "" {
		s.tokenType = "Bearer"
	}
	s.expiresAt = s.now().Add(time.Duration(out.ExpiresIn)*time.Second - tokenExpirySkew)

	s.log.Debug("registry token refreshed",
		zap.String("client_id", s.cfg.ClientID),
		zap.Time("expires_at", s.expiresAt))
	return s.tokenType + " " + s.accessToken, nil
}
