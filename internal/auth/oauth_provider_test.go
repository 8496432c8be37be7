package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/lifemanager/internal/identity"
)

func TestOAuth2Provider_AuthCodeURL_ContainsRequiredParams(t *testing.T) {
	provider := NewOAuth2Provider(GoogleConfig("test-client-id", "secret", "http://localhost:8080/api/auth/oauth2/callback/google"))

	raw := provider.AuthCodeURL("test-state-value")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid url: %v", err)
	}
	q := u.Query()

	tests := []struct {
		param string
		want  string
	}{
		{"client_id", "test-client-id"},
		{"redirect_uri", "http://localhost:8080/api/auth/oauth2/callback/google"},
		{"state", "test-state-value"},
		{"response_type", "code"},
		{"scope", "openid email profile"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			if got := q.Get(tt.param); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.param, got, tt.want)
			}
		})
	}
	if provider.Name() != "google" {
		t.Errorf("Name() = %q", provider.Name())
	}
}

func TestOAuth2Provider_FetchAttributes_KakaoShape(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		// Kakaoはclient_secretをボディで受け取る
		if r.PostForm.Get("client_secret") != "kakao-secret" || r.PostForm.Get("code") != "test-auth-code" {
			t.Errorf("unexpected token request form: %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-access-token",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-access-token" {
			t.Errorf("unexpected Authorization header: %q", got)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 9007199254740993, "kakao_account": {"email": "a@b.com"}, "properties": {"nickname": "ムーミン"}}`))
	}))
	defer userInfoServer.Close()

	cfg := KakaoConfig("kakao-client", "kakao-secret", "http://localhost:8080/api/auth/oauth2/callback/kakao")
	cfg.TokenURL = tokenServer.URL
	cfg.UserInfoURL = userInfoServer.URL
	provider := NewOAuth2Provider(cfg)

	attrs, err := provider.FetchAttributes(context.Background(), "test-auth-code")
	if err != nil {
		t.Fatalf("FetchAttributes() error = %v", err)
	}

	got, err := identity.DefaultRegistry().Normalize("kakao", attrs)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	// 2^53を超えるIDも精度を失わない
	if got.ProviderAccountID != "9007199254740993" {
		t.Errorf("ProviderAccountID = %q", got.ProviderAccountID)
	}
	if got.RawEmail != "a@b.com" || got.DisplayName != "ムーミン" {
		t.Errorf("identity = %+v", got)
	}
}

func TestOAuth2Provider_FetchAttributes_TokenError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_grant",
			"error_description": "Code was already redeemed.",
		})
	}))
	defer tokenServer.Close()

	cfg := GoogleConfig("id", "secret", "http://localhost/cb")
	cfg.TokenURL = tokenServer.URL
	provider := NewOAuth2Provider(cfg)

	_, err := provider.FetchAttributes(context.Background(), "invalid-code")
	if err == nil || !strings.Contains(err.Error(), "exchange") {
		t.Fatalf("FetchAttributes() error = %v, want exchange error", err)
	}
}

func TestOAuth2Provider_FetchAttributes_UserInfoError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer userInfoServer.Close()

	cfg := GoogleConfig("id", "secret", "http://localhost/cb")
	cfg.TokenURL = tokenServer.URL
	cfg.UserInfoURL = userInfoServer.URL
	provider := NewOAuth2Provider(cfg)

	if _, err := provider.FetchAttributes(context.Background(), "valid-code"); err == nil {
		t.Fatal("expected error when user info fetch fails")
	}
}
