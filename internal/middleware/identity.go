// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/lifemanager/internal/metrics"
	"github.com/hitoshi/lifemanager/internal/model"
	"github.com/hitoshi/lifemanager/internal/token"
)

// UserIDHeader は非本番環境でトークンの代わりに受け付けるユーザーIDヘッダー。
const UserIDHeader = "X-User-Id"

const bearerPrefix = "Bearer "

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストにPrincipalを格納するためのキー。
var principalContextKey = contextKey("principal")

// holderContextKey は外側のミドルウェアが内側で解決されたPrincipalを参照するためのキー。
var holderContextKey = contextKey("principal_holder")

type principalHolder struct {
	p *model.Principal
}

func (h *principalHolder) get() *model.Principal { return h.p }

func contextWithHolder(ctx context.Context, h *principalHolder) context.Context {
	return context.WithValue(ctx, holderContextKey, h)
}

// AuthOutcome は1リクエストの資格情報評価の結果種別。
// 値はメトリクスのラベルと共通。
type AuthOutcome string

const (
	OutcomePublicPath       AuthOutcome = "public"
	OutcomeAuthenticated    AuthOutcome = metrics.TokenOutcomeValid
	OutcomeHeader           AuthOutcome = metrics.TokenOutcomeHeader
	OutcomeMissing          AuthOutcome = metrics.TokenOutcomeMissing
	OutcomeMalformed        AuthOutcome = metrics.TokenOutcomeMalformed
	OutcomeExpired          AuthOutcome = metrics.TokenOutcomeExpired
	OutcomeInvalidSignature AuthOutcome = metrics.TokenOutcomeInvalidSignature
	OutcomeUnknownAccount   AuthOutcome = metrics.TokenOutcomeUnknownAccount
)

// AuthResult はAuthenticateの評価結果。
// Principalがnilの場合、リクエストは未認証として処理が続行される。
type AuthResult struct {
	Principal *model.Principal
	Outcome   AuthOutcome
	Err       error
}

// TokenDecoder はBearerトークンを検証してクレームを返す。
type TokenDecoder interface {
	Decode(raw string) (*token.Claims, error)
}

// AccountChecker はuserIdが実在するアカウントを指すかを確認する。
type AccountChecker interface {
	AccountExists(ctx context.Context, userID int64) (bool, error)
}

// IdentityConfig は資格情報ミドルウェアの設定。
type IdentityConfig struct {
	Decoder TokenDecoder

	// IsPublic がtrueを返すパスは資格情報を評価しない。nilの場合はDefaultPublicPath。
	IsPublic func(path string) bool

	// AllowUserIDHeader がtrueの場合のみ X-User-Id ヘッダーを受け付ける。
	AllowUserIDHeader bool

	// AccountChecker が設定されている場合、トークンのuserIdの実在を確認する。
	AccountChecker AccountChecker

	Metrics metrics.MetricsCollector
}

// DefaultPublicPath は /api/auth/ 配下と /health を公開パスとして扱う。
func DefaultPublicPath(path string) bool {
	return strings.HasPrefix(path, "/api/auth/") || path == "/health"
}

// IdentityMiddleware はリクエストごとに資格情報を一度だけ評価する。
type IdentityMiddleware struct {
	cfg IdentityConfig
}

// NewIdentityMiddleware はIdentityMiddlewareを生成する。
func NewIdentityMiddleware(cfg IdentityConfig) *IdentityMiddleware {
	if cfg.IsPublic == nil {
		cfg.IsPublic = DefaultPublicPath
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	return &IdentityMiddleware{cfg: cfg}
}

// AcceptsUserIDHeader は X-User-Id ヘッダーを受け付ける設定かを返す。
func (m *IdentityMiddleware) AcceptsUserIDHeader() bool {
	return m.cfg.AllowUserIDHeader
}

// Handler は評価結果のPrincipalをコンテキストに格納して次のハンドラーへ渡す。
// 資格情報が無効でもリクエストを拒否せず、未認証のまま続行する。
func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := m.Authenticate(r)
		if result.Principal != nil {
			r = r.WithContext(ContextWithPrincipal(r.Context(), result.Principal))
		}
		next.ServeHTTP(w, r)
	})
}

// Authenticate はリクエストの資格情報を評価する。
// 失敗はAuthResult.Outcomeで種別を返し、エラーとして伝播しない。
func (m *IdentityMiddleware) Authenticate(r *http.Request) AuthResult {
	// 1. 公開パスは評価しない
	if m.cfg.IsPublic(r.URL.Path) {
		return AuthResult{Outcome: OutcomePublicPath}
	}

	// 2. Bearerトークンを取り出す
	raw, ok := bearerToken(r)
	if !ok {
		if m.cfg.AllowUserIDHeader && r.Header.Get(UserIDHeader) != "" {
			return m.record(r, m.fromUserIDHeader(r))
		}
		return m.record(r, AuthResult{Outcome: OutcomeMissing})
	}

	// 3. トークンを検証
	claims, err := m.cfg.Decoder.Decode(raw)
	if err != nil {
		return m.record(r, AuthResult{Outcome: classifyTokenError(err), Err: err})
	}

	// 4. 必要に応じてアカウントの実在を確認
	if m.cfg.AccountChecker != nil {
		exists, err := m.cfg.AccountChecker.AccountExists(r.Context(), claims.UserID())
		if err != nil || !exists {
			if err == nil {
				err = model.ErrUnauthenticated
			}
			return m.record(r, AuthResult{Outcome: OutcomeUnknownAccount, Err: err})
		}
	}

	return m.record(r, AuthResult{
		Outcome: OutcomeAuthenticated,
		Principal: &model.Principal{
			UserID: claims.UserID(),
			Email:  claims.Email(),
			Source: model.PrincipalSourceToken,
		},
	})
}

func (m *IdentityMiddleware) fromUserIDHeader(r *http.Request) AuthResult {
	id, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(UserIDHeader)), 10, 64)
	if err != nil || id <= 0 {
		if err == nil {
			err = errors.New("user id must be positive")
		}
		return AuthResult{Outcome: OutcomeMalformed, Err: err}
	}
	return AuthResult{
		Outcome:   OutcomeHeader,
		Principal: &model.Principal{UserID: id, Source: model.PrincipalSourceHeader},
	}
}

func (m *IdentityMiddleware) record(r *http.Request, result AuthResult) AuthResult {
	m.cfg.Metrics.RecordTokenValidation(string(result.Outcome))
	if result.Err != nil {
		slog.Warn("credential rejected",
			slog.String("outcome", string(result.Outcome)),
			slog.String("path", r.URL.Path),
		)
	}
	return result
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, bearerPrefix) {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	return raw, raw != ""
}

func classifyTokenError(err error) AuthOutcome {
	switch {
	case errors.Is(err, token.ErrExpired):
		return OutcomeExpired
	case errors.Is(err, token.ErrInvalidSignature):
		return OutcomeInvalidSignature
	default:
		return OutcomeMalformed
	}
}

// RequirePrincipal はPrincipalのないリクエストに401を返すミドルウェア。
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := PrincipalFromContext(r.Context()); err != nil {
			WriteErrorResponse(w, http.StatusUnauthorized, model.ErrUnauthenticated.Message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PrincipalFromContext はリクエストコンテキストからPrincipalを取得する。
// 未認証の場合はmodel.ErrUnauthenticatedを返す。
func PrincipalFromContext(ctx context.Context) (*model.Principal, error) {
	p, ok := ctx.Value(principalContextKey).(*model.Principal)
	if !ok || p == nil {
		return nil, model.ErrUnauthenticated
	}
	return p, nil
}

// ContextWithPrincipal はコンテキストにPrincipalを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	if h, ok := ctx.Value(holderContextKey).(*principalHolder); ok {
		h.p = p
	}
	return context.WithValue(ctx, principalContextKey, p)
}
