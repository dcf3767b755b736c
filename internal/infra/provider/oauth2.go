package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
)

// Endpoint holds the OAuth credentials for one provider.
type Endpoint struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// OAuth2Client implements Client on top of golang.org/x/oauth2's
// refresh-token grant, one endpoint per provider name.
type OAuth2Client struct {
	configs map[string]*oauth2.Config
	httpc   *http.Client
}

// NewOAuth2Client creates a client for the given provider endpoints.
func NewOAuth2Client(endpoints map[string]Endpoint, timeout time.Duration) *OAuth2Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	configs := make(map[string]*oauth2.Config, len(endpoints))
	for name, ep := range endpoints {
		configs[name] = &oauth2.Config{
			ClientID:     ep.ClientID,
			ClientSecret: ep.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: ep.TokenURL},
		}
	}
	return &OAuth2Client{
		configs: configs,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// Refresh exchanges the stored refresh token for a new access token.
func (c *OAuth2Client) Refresh(ctx context.Context, conn *domain.Connection) (*TokenPair, error) {
	cfg, ok := c.configs[conn.Identity.Provider]
	if !ok {
		return nil, fmt.Errorf("no oauth endpoint configured for provider %q", conn.Identity.Provider)
	}
	if !conn.HasRefreshToken() {
		return nil, fmt.Errorf("missing refresh token credential for %s", conn.Identity)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpc)
	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: conn.RefreshToken})

	tok, err := src.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return nil, &Failure{
				StatusCode: rerr.Response.StatusCode,
				Body:       string(rerr.Body),
			}
		}
		return nil, &NetworkError{Err: err}
	}

	return &TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}, nil
}
