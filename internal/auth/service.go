package auth

import (
	"context"
	"fmt"

	"github.com/hitoshi/lifemanager/internal/metrics"
	"github.com/hitoshi/lifemanager/internal/model"
)

// TokenTypeBearer はAuthorizationヘッダーで使うトークン種別。
const TokenTypeBearer = "Bearer"

// AuthResponse はローカル登録・ログイン成功時に返す資格情報。
type AuthResponse struct {
	Token     string
	TokenType string
	UserID    int64
	Email     string
	Name      string
}

// Service はメール+パスワードによる登録とログインを提供する。
// 登録に成功した場合はそのままログイン状態のトークンを返す。
type Service struct {
	accounts *AccountResolver
	tokens   TokenIssuer
	metrics  metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(accounts *AccountResolver, tokens TokenIssuer, mc metrics.MetricsCollector) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{accounts: accounts, tokens: tokens, metrics: mc}
}

// Signup はローカルアカウントを作成してトークンを発行する。
func (s *Service) Signup(ctx context.Context, email, password, name string) (*AuthResponse, error) {
	user, err := s.accounts.ResolveLocalSignup(ctx, email, password, name)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordSignup(model.AuthProviderLocal)
	return s.issue(user)
}

// Login はローカルアカウントを認証してトークンを発行する。
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	user, err := s.accounts.ResolveLocalLogin(ctx, email, password)
	if err != nil {
		s.metrics.RecordLogin(model.AuthProviderLocal, false)
		return nil, err
	}
	s.metrics.RecordLogin(model.AuthProviderLocal, true)
	return s.issue(user)
}

// ChangePassword は現在のパスワードを確認して新しいパスワードに変更する。
func (s *Service) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	return s.accounts.ChangePassword(ctx, userID, currentPassword, newPassword)
}

func (s *Service) issue(user *model.User) (*AuthResponse, error) {
	tok, err := s.tokens.Encode(user.Email, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &AuthResponse{
		Token:     tok,
		TokenType: TokenTypeBearer,
		UserID:    user.ID,
		Email:     user.DisplayEmail(),
		Name:      user.Name,
	}, nil
}
