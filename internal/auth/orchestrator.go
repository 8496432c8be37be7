package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/hitoshi/lifemanager/internal/metrics"
	"github.com/hitoshi/lifemanager/internal/model"
)

// LoginStage はソーシャルログインの進行段階を表す。
// 中間状態は永続化せず、プロバイダーのリダイレクトが運ぶ情報だけで進行する。
type LoginStage string

const (
	StageRedirectedToProvider      LoginStage = "RedirectedToProvider"
	StageProviderCallbackReceived  LoginStage = "ProviderCallbackReceived"
	StageIdentityNormalized        LoginStage = "IdentityNormalized"
	StageAccountResolved           LoginStage = "AccountResolved"
	StageTokenIssued               LoginStage = "TokenIssued"
	StageClientRedirectedWithToken LoginStage = "ClientRedirectedWithToken"
	StageAborted                   LoginStage = "Aborted"
)

// TokenIssuer はアカウントに対するトークンを発行する。
type TokenIssuer interface {
	Encode(email string, userID int64) (string, error)
}

// IdentityNormalizer はプロバイダー固有の属性をExternalIdentityに正規化する。
type IdentityNormalizer interface {
	Supports(provider string) bool
	Normalize(provider string, attrs map[string]any) (*model.ExternalIdentity, error)
}

// SocialAccountResolver はExternalIdentityに対応するアカウントを返す。
type SocialAccountResolver interface {
	ResolveSocialLogin(ctx context.Context, identity *model.ExternalIdentity) (*model.User, error)
}

// LoginResult はComplete の結果。
// Stageは最後に到達した段階で、失敗時はStageAbortedになりFailedAfterに直前の段階が入る。
type LoginResult struct {
	Stage       LoginStage
	FailedAfter LoginStage
	User        *model.User
	RedirectURL string
}

// LoginOrchestrator はプロバイダーへのリダイレクトからクライアントへの
// トークン付きリダイレクトまでのソーシャルログインを調整する。
type LoginOrchestrator struct {
	providers      map[string]OAuthProvider
	normalizer     IdentityNormalizer
	accounts       SocialAccountResolver
	tokens         TokenIssuer
	clientRedirect string
	metrics        metrics.MetricsCollector
}

// NewLoginOrchestrator はLoginOrchestratorを生成する。
// clientRedirectはトークンを受け取るクライアントのURL。
func NewLoginOrchestrator(
	providers []OAuthProvider,
	normalizer IdentityNormalizer,
	accounts SocialAccountResolver,
	tokens TokenIssuer,
	clientRedirect string,
	mc metrics.MetricsCollector,
) *LoginOrchestrator {
	byName := make(map[string]OAuthProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &LoginOrchestrator{
		providers:      byName,
		normalizer:     normalizer,
		accounts:       accounts,
		tokens:         tokens,
		clientRedirect: clientRedirect,
		metrics:        mc,
	}
}

// Begin はプロバイダーの認可URLと、コールバック照合用のstateを返す。
func (o *LoginOrchestrator) Begin(providerName string) (authURL, state string, err error) {
	provider, err := o.provider(providerName)
	if err != nil {
		return "", "", err
	}

	state, err = generateState()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	return provider.AuthCodeURL(state), state, nil
}

// Complete はプロバイダーのコールバックを処理し、トークン付きのクライアントURLを返す。
// メールアドレスが取得できない場合や未対応のプロバイダーの場合は
// アカウント解決に進まずに中断する。
func (o *LoginOrchestrator) Complete(ctx context.Context, providerName, code string) (*LoginResult, error) {
	result := &LoginResult{Stage: StageProviderCallbackReceived}

	provider, err := o.provider(providerName)
	if err != nil {
		return o.abort(result, providerName, err)
	}
	if code == "" {
		return o.abort(result, providerName, model.NewValidationError("認可コードがありません。"))
	}

	// 1. 認可コードを交換してプロフィール属性を取得
	attrs, err := provider.FetchAttributes(ctx, code)
	if err != nil {
		return o.abort(result, providerName, fmt.Errorf("failed to fetch provider attributes: %w", err))
	}

	return o.completeWithAttributes(ctx, result, providerName, attrs)
}

func (o *LoginOrchestrator) completeWithAttributes(ctx context.Context, result *LoginResult, providerName string, attrs map[string]any) (*LoginResult, error) {
	// 2. プロフィールを正規化
	identity, err := o.normalizer.Normalize(providerName, attrs)
	if err != nil {
		return o.abort(result, providerName, err)
	}
	result.Stage = StageIdentityNormalized

	// 3. アカウントを特定または作成
	user, err := o.accounts.ResolveSocialLogin(ctx, identity)
	if err != nil {
		return o.abort(result, providerName, err)
	}
	result.Stage = StageAccountResolved
	result.User = user

	// 4. トークンを発行
	tok, err := o.tokens.Encode(user.Email, user.ID)
	if err != nil {
		return o.abort(result, providerName, err)
	}
	result.Stage = StageTokenIssued

	// 5. クライアントへのリダイレクト先を組み立てる
	redirect, err := BuildClientRedirect(o.clientRedirect, tok, user.ID, user.Name)
	if err != nil {
		return o.abort(result, providerName, err)
	}
	result.Stage = StageClientRedirectedWithToken
	result.RedirectURL = redirect

	o.metrics.RecordLogin(providerName, true)
	slog.Info("social login succeeded",
		slog.Int64("user_id", user.ID),
		slog.String("provider", providerName),
	)
	return result, nil
}

func (o *LoginOrchestrator) abort(result *LoginResult, providerName string, err error) (*LoginResult, error) {
	result.FailedAfter = result.Stage
	result.Stage = StageAborted
	o.metrics.RecordLogin(providerName, false)
	slog.Warn("social login aborted",
		slog.String("provider", providerName),
		slog.String("failed_after", string(result.FailedAfter)),
		slog.String("error", err.Error()),
	)
	return result, err
}

func (o *LoginOrchestrator) provider(name string) (OAuthProvider, error) {
	p, ok := o.providers[name]
	if !ok || !o.normalizer.Supports(name) {
		return nil, model.ErrUnsupportedProvider
	}
	return p, nil
}

// BuildClientRedirect はクライアントURLに token、userId、name をクエリパラメータとして付与する。
// ベースURLの既存のクエリパラメータは保持する。
func BuildClientRedirect(base, token string, userID int64, name string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid client redirect url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("client redirect url must be absolute: %q", base)
	}

	q := u.Query()
	q.Set("token", token)
	q.Set("userId", strconv.FormatInt(userID, 10))
	q.Set("name", name)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// generateState は暗号的に安全なstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
