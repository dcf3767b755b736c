package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
)

func testConnection(provider string) *domain.Connection {
	return &domain.Connection{
		Identity:     domain.Identity{UserID: "user-1", Provider: provider},
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Minute),
		Status:       domain.ConnectionStatusActive,
	}
}

func testClient(tokenURL string) *OAuth2Client {
	return NewOAuth2Client(map[string]Endpoint{
		"google": {ClientID: "cid", ClientSecret: "secret", TokenURL: tokenURL},
	}, 5*time.Second)
}

func TestOAuth2Client_Refresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("expected refresh_token grant, got %q", got)
		}
		if got := r.Form.Get("refresh_token"); got != "refresh-1" {
			t.Errorf("expected stored refresh token, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token": "new-access",
			"refresh_token": "refresh-2",
			"token_type": "Bearer",
			"expires_in": 3600
		}`))
	}))
	defer srv.Close()

	pair, err := testClient(srv.URL).Refresh(context.Background(), testConnection("google"))
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if pair.AccessToken != "new-access" {
		t.Errorf("expected new access token, got %q", pair.AccessToken)
	}
	if pair.RefreshToken != "refresh-2" {
		t.Errorf("expected rotated refresh token, got %q", pair.RefreshToken)
	}
	if pair.ExpiresAt.Before(time.Now().Add(50 * time.Minute)) {
		t.Errorf("expected expiry ~1h out, got %v", pair.ExpiresAt)
	}
}

func TestOAuth2Client_HTTPRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Refresh(context.Background(), testConnection("google"))
	if err == nil {
		t.Fatal("expected error")
	}

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *Failure, got %T: %v", err, err)
	}
	if failure.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", failure.StatusCode)
	}
	if !strings.Contains(failure.Body, "invalid_grant") {
		t.Errorf("expected body to carry the provider error, got %q", failure.Body)
	}
}

func TestOAuth2Client_NetworkFailure(t *testing.T) {
	// Closed server: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := testClient(srv.URL).Refresh(context.Background(), testConnection("google"))
	if err == nil {
		t.Fatal("expected error")
	}

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %T: %v", err, err)
	}
}

func TestOAuth2Client_UnknownProvider(t *testing.T) {
	_, err := testClient("http://localhost:0").Refresh(context.Background(), testConnection("gitlab"))
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "configured") {
		t.Errorf("expected configuration error message, got %q", err.Error())
	}
}

func TestOAuth2Client_MissingRefreshToken(t *testing.T) {
	conn := testConnection("google")
	conn.RefreshToken = ""

	_, err := testClient("http://localhost:0").Refresh(context.Background(), conn)
	if err == nil {
		t.Fatal("expected error for missing refresh token")
	}
	if !strings.Contains(err.Error(), "refresh token") {
		t.Errorf("expected missing refresh token message, got %q", err.Error())
	}
}
