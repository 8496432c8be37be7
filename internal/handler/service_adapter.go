package handler

import (
	"context"

	"github.com/hitoshi/lifemanager/internal/auth"
	"github.com/hitoshi/lifemanager/internal/user"
)

// UserServiceAdapter は user.Service と auth.Service を UserServiceInterface に適合させるアダプタ。
// プロフィールはuser、パスワード変更はauthが扱う。
type UserServiceAdapter struct {
	profiles *user.Service
	accounts *auth.Service
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(profiles *user.Service, accounts *auth.Service) *UserServiceAdapter {
	return &UserServiceAdapter{profiles: profiles, accounts: accounts}
}

// GetProfile はユーザーのプロフィールを返す。
func (a *UserServiceAdapter) GetProfile(ctx context.Context, userID int64) (*user.Profile, error) {
	return a.profiles.GetProfile(ctx, userID)
}

// UpdateName は表示名を変更する。
func (a *UserServiceAdapter) UpdateName(ctx context.Context, userID int64, name string) (*user.Profile, error) {
	return a.profiles.UpdateName(ctx, userID, name)
}

// ChangePassword はパスワードを変更する。
func (a *UserServiceAdapter) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	return a.accounts.ChangePassword(ctx, userID, currentPassword, newPassword)
}

// --- compile-time interface checks ---

var _ UserServiceInterface = (*UserServiceAdapter)(nil)
var _ AuthServiceInterface = (*auth.Service)(nil)
var _ SocialLoginInterface = (*auth.LoginOrchestrator)(nil)
