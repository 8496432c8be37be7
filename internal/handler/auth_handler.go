package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/lifemanager/internal/auth"
	"github.com/hitoshi/lifemanager/internal/model"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600 // 10分
)

// AuthServiceInterface はローカル認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Signup(ctx context.Context, email, password, name string) (*auth.AuthResponse, error)
	Login(ctx context.Context, email, password string) (*auth.AuthResponse, error)
}

// SocialLoginInterface はソーシャルログインのフローを進めるインターフェース。
type SocialLoginInterface interface {
	Begin(provider string) (authURL, state string, err error)
	Complete(ctx context.Context, provider, code string) (*auth.LoginResult, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieSecure bool
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	social  SocialLoginInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, social SocialLoginInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		social:  social,
		config:  config,
	}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse は登録・ログイン成功時のレスポンス。
type authResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	UserID    int64  `json:"userId"`
	Email     string `json:"email"`
	Name      string `json:"name"`
}

func toAuthResponse(a *auth.AuthResponse) authResponse {
	return authResponse{
		Token:     a.Token,
		TokenType: a.TokenType,
		UserID:    a.UserID,
		Email:     a.Email,
		Name:      a.Name,
	}
}

// Signup はローカルアカウントを作成し、ログイン済みのトークンを返す。
// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp, err := h.service.Signup(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(resp))
}

// Login はメールアドレスとパスワードで認証しトークンを返す。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(resp))
}

// OAuthLogin はプロバイダーの認可画面へリダイレクトする。
// GET /api/auth/oauth2/{provider}
func (h *AuthHandler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	authURL, state, err := h.social.Begin(provider)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/auth/oauth2/",
		MaxAge:   oauthStateMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, authURL, http.StatusFound)
}

// OAuthCallback はプロバイダーからのコールバックを処理し、
// トークン付きのクライアントURLへリダイレクトする。
// GET /api/auth/oauth2/callback/{provider}?code=xxx&state=yyy
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("provider", provider),
		)
		handleServiceError(w, r, model.ErrInvalidOAuthState)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/api/auth/oauth2/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. プロバイダーがエラーを返した場合（同意拒否など）
	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		slog.Warn("oauth provider returned error",
			slog.String("provider", provider),
			slog.String("error", providerErr),
		)
		handleServiceError(w, r, model.NewValidationError("ソーシャルログインがキャンセルされました。"))
		return
	}

	// 3. ログインを完了
	result, err := h.social.Complete(r.Context(), provider, r.URL.Query().Get("code"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	// 4. トークンはリダイレクトでのみ渡す
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}
