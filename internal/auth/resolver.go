// Package auth はパスワード認証・ソーシャルログインによるアカウント解決と
// OAuth2ログインフローを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/lifemanager/internal/model"
	"github.com/hitoshi/lifemanager/internal/repository"
	"github.com/hitoshi/lifemanager/internal/security"
)

// MaxNameLength は表示名の最大文字数。
const MaxNameLength = 100

// AccountResolver は正規化済みの資格情報から内部ユーザーアカウントを特定し、
// 必要に応じて原子的に作成する。
type AccountResolver struct {
	users     repository.UserRepository
	hasher    PasswordHasher
	sanitizer security.TextSanitizer

	// 存在しないメールアドレスでもbcrypt照合を行い、応答時間の差を小さくするためのハッシュ
	dummyOnce sync.Once
	dummyHash string
}

// NewAccountResolver はAccountResolverを生成する。
func NewAccountResolver(users repository.UserRepository, hasher PasswordHasher, sanitizer security.TextSanitizer) *AccountResolver {
	return &AccountResolver{
		users:     users,
		hasher:    hasher,
		sanitizer: sanitizer,
	}
}

// ResolveLocalSignup はメールアドレスとパスワードでローカルアカウントを作成する。
// メールアドレスが既に使用されている場合はmodel.ErrEmailTakenを返す。
func (r *AccountResolver) ResolveLocalSignup(ctx context.Context, email, rawPassword, displayName string) (*model.User, error) {
	// 1. 入力検証
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(rawPassword) < model.MinPasswordLength {
		return nil, model.ErrWeakPassword
	}
	name, err := r.cleanName(displayName)
	if err != nil {
		return nil, err
	}

	// 2. 既存チェック
	existing, err := r.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, model.ErrEmailTaken
	}

	// 3. パスワードをハッシュ化して作成
	hash, err := r.hashPassword(rawPassword)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		AuthProvider: model.AuthProviderLocal,
	}
	if err := r.users.Create(ctx, user); err != nil {
		// 既存チェックと作成の間に同じメールアドレスで登録された場合
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("local account created", slog.Int64("user_id", user.ID))
	return user, nil
}

// ResolveLocalLogin はメールアドレスとパスワードでローカルアカウントを認証する。
// メールアドレスが存在しない場合もパスワードが誤っている場合も
// 同じmodel.ErrBadCredentialsを返す。
func (r *AccountResolver) ResolveLocalLogin(ctx context.Context, email, rawPassword string) (*model.User, error) {
	user, err := r.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil || !user.IsLocal() {
		r.hasher.Compare(r.dummyPasswordHash(), rawPassword)
		return nil, model.ErrBadCredentials
	}
	if !r.hasher.Compare(user.PasswordHash, rawPassword) {
		return nil, model.ErrBadCredentials
	}
	return user, nil
}

// ResolveSocialLogin は外部IdPのプロフィールに対応するアカウントを返す。
// 保存メールアドレスは "<provider>_<rawEmail>" に名前空間化される。
// 既存アカウントの場合は表示名を更新し、未登録の場合は使用不可のパスワードで作成する。
// 同一プロフィールで同時に初回ログインしても作成されるアカウントは1つだけで、
// 全ての呼び出しが同じアカウントを返す。
func (r *AccountResolver) ResolveSocialLogin(ctx context.Context, identity *model.ExternalIdentity) (*model.User, error) {
	if identity == nil || strings.TrimSpace(identity.RawEmail) == "" {
		return nil, model.ErrMissingEmail
	}
	if identity.ProviderName == "" || identity.ProviderName == model.AuthProviderLocal {
		return nil, model.ErrUnsupportedProvider
	}

	email := model.NamespacedEmail(identity.ProviderName, strings.TrimSpace(identity.RawEmail))
	name := r.truncateName(r.sanitizer.Sanitize(identity.DisplayName))

	// 1. 既存アカウントを検索
	existing, err := r.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		return r.refreshSocialAccount(ctx, existing, identity.ProviderName, name)
	}

	// 2. 未登録: パスワード経路では決してログインできないランダム値のハッシュで作成
	placeholder, err := r.hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to generate placeholder password: %w", err)
	}

	user, created, err := r.users.InsertOrGetByEmail(ctx, &model.User{
		Email:             email,
		PasswordHash:      placeholder,
		Name:              name,
		AuthProvider:      identity.ProviderName,
		ProviderAccountID: identity.ProviderAccountID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create social account: %w", err)
	}
	if !created {
		// 並行ログインに負けた場合は勝者の行を使う
		return r.refreshSocialAccount(ctx, user, identity.ProviderName, name)
	}

	slog.Info("social account created",
		slog.Int64("user_id", user.ID),
		slog.String("provider", identity.ProviderName),
	)
	return user, nil
}

// refreshSocialAccount は既存のソーシャルアカウントの表示名を更新して返す。
func (r *AccountResolver) refreshSocialAccount(ctx context.Context, user *model.User, provider, name string) (*model.User, error) {
	// ローカル登録で "<provider>_..." のメールアドレスを先取りされていた場合、
	// そのアカウントをソーシャルログインで乗っ取らせない
	if user.AuthProvider != provider {
		slog.Warn("social login email is owned by a different provider",
			slog.Int64("user_id", user.ID),
			slog.String("provider", provider),
		)
		return nil, model.ErrEmailTaken
	}

	if name != "" && name != user.Name {
		if err := r.users.UpdateName(ctx, user.ID, name); err != nil {
			return nil, fmt.Errorf("failed to refresh display name: %w", err)
		}
		user.Name = name
	}
	return user, nil
}

// ChangePassword は現在のパスワードを確認してから新しいパスワードに変更する。
func (r *AccountResolver) ChangePassword(ctx context.Context, userID int64, currentRawPassword, newRawPassword string) error {
	// 1. アカウントの取得
	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewNotFoundError("ユーザー")
	}

	// 2. 現在のパスワードの照合
	if !r.hasher.Compare(user.PasswordHash, currentRawPassword) {
		return model.ErrBadCurrentPassword
	}

	// 3. 新しいパスワードのポリシー確認
	if utf8.RuneCountInString(newRawPassword) < model.MinPasswordLength {
		return model.ErrWeakPassword
	}

	// 4. 保存
	hash, err := r.hashPassword(newRawPassword)
	if err != nil {
		return err
	}
	if err := r.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password changed", slog.Int64("user_id", userID))
	return nil
}

// hashPassword はハッシュ化し、bcryptの長さ制限をバリデーションエラーに変換する。
func (r *AccountResolver) hashPassword(raw string) (string, error) {
	hash, err := r.hasher.Hash(raw)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", model.NewValidationError("パスワードは72バイト以下である必要があります。")
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

func (r *AccountResolver) dummyPasswordHash() string {
	r.dummyOnce.Do(func() {
		h, err := r.hasher.Hash(uuid.NewString())
		if err == nil {
			r.dummyHash = h
		}
	})
	return r.dummyHash
}

// cleanName は表示名をサニタイズし長さを検証する。
func (r *AccountResolver) cleanName(raw string) (string, error) {
	name := r.sanitizer.Sanitize(raw)
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", model.NewValidationError(fmt.Sprintf("名前は%d文字以内で入力してください。", MaxNameLength))
	}
	return name, nil
}

// truncateName はプロバイダーから届いた長すぎる表示名を切り詰める。
func (r *AccountResolver) truncateName(name string) string {
	if utf8.RuneCountInString(name) <= MaxNameLength {
		return name
	}
	return string([]rune(name)[:MaxNameLength])
}

// validateEmail はメールアドレスの最低限の形式を検証する。
func validateEmail(email string) error {
	if email == "" {
		return model.NewValidationError("メールアドレスは必須です。")
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return model.NewValidationError("メールアドレスの形式が正しくありません。")
	}
	return nil
}
