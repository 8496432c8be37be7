// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/hitoshi/lifemanager/internal/model"
	"github.com/hitoshi/lifemanager/internal/security"
)

// MaxNameLength は表示名の最大文字数。
const MaxNameLength = 100

// ProfileStore はプロフィールの取得と更新に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type ProfileStore interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
	UpdateName(ctx context.Context, id int64, name string) error
}

// Profile は外部に公開するユーザー情報。
// Emailはプロバイダー接頭辞を除いた表示用の値。
type Profile struct {
	ID           int64
	Email        string
	Name         string
	AuthProvider string
}

// Service はユーザー管理のサービス層。
type Service struct {
	users     ProfileStore
	sanitizer security.TextSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users ProfileStore, sanitizer security.TextSanitizer) *Service {
	return &Service{users: users, sanitizer: sanitizer}
}

// GetProfile はユーザーのプロフィールを返す。
func (s *Service) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	u, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toProfile(u), nil
}

// UpdateName は表示名を変更する。空白のみの名前は受け付けない。
func (s *Service) UpdateName(ctx context.Context, userID int64, name string) (*Profile, error) {
	name = s.sanitizer.Sanitize(name)
	if name == "" {
		return nil, model.NewValidationError("名前は必須です。")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, model.NewValidationError(fmt.Sprintf("名前は%d文字以内である必要があります。", MaxNameLength))
	}

	u, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateName(ctx, u.ID, name); err != nil {
		return nil, fmt.Errorf("名前の更新に失敗しました: %w", err)
	}
	u.Name = name

	slog.Info("user name updated",
		slog.Int64("user_id", u.ID),
	)
	return toProfile(u), nil
}

func (s *Service) find(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewNotFoundError("ユーザー")
	}
	return u, nil
}

func toProfile(u *model.User) *Profile {
	provider := u.AuthProvider
	if provider == "" {
		provider = model.AuthProviderLocal
	}
	return &Profile{
		ID:           u.ID,
		Email:        u.DisplayEmail(),
		Name:         u.Name,
		AuthProvider: provider,
	}
}
