// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// AuthProviderLocal はメール+パスワードで登録したアカウントのプロバイダー名。
const AuthProviderLocal = "local"

// User はサービス利用ユーザーを表す。
// ソーシャルアカウントのEmailは "<provider>_<rawEmail>" の形式で保存され、
// ローカルアカウントと同じメールアドレスでも衝突しない。
type User struct {
	ID                int64
	Email             string
	PasswordHash      string // ソーシャルアカウントでは使用不可のランダム値のハッシュ
	Name              string
	AuthProvider      string // "local", "kakao", "google" 等
	ProviderAccountID string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsLocal はローカル（パスワード）アカウントかどうかを返す。
func (u *User) IsLocal() bool {
	return u.AuthProvider == "" || u.AuthProvider == AuthProviderLocal
}

// DisplayEmail は外部に提示するメールアドレスを返す。
// ソーシャルアカウントの場合はプロバイダー接頭辞を取り除く。
func (u *User) DisplayEmail() string {
	if u.IsLocal() {
		return u.Email
	}
	return StripProviderPrefix(u.AuthProvider, u.Email)
}

// NamespacedEmail はソーシャルアカウント用の保存メールアドレスを生成する。
func NamespacedEmail(provider, rawEmail string) string {
	return provider + "_" + rawEmail
}

// StripProviderPrefix は "<provider>_" 接頭辞を取り除く。接頭辞がなければそのまま返す。
func StripProviderPrefix(provider, email string) string {
	return strings.TrimPrefix(email, provider+"_")
}

// ExternalIdentity は外部IdPのプロフィールを正規化した情報を表す。
// ログイン試行ごとに生成され、永続化されない。
type ExternalIdentity struct {
	ProviderName      string
	ProviderAccountID string
	RawEmail          string
	DisplayName       string
}

// PrincipalSource はPrincipalがどの経路で解決されたかを表す。
type PrincipalSource string

const (
	// PrincipalSourceToken は署名付きトークンから解決されたことを示す。
	PrincipalSourceToken PrincipalSource = "token"
	// PrincipalSourceHeader は X-User-Id ヘッダーから解決されたことを示す（非本番のみ）。
	PrincipalSourceHeader PrincipalSource = "header"
)

// Principal は1リクエストの間だけ有効な認証済み呼び出し元を表す。
type Principal struct {
	UserID int64
	Email  string
	Source PrincipalSource
}
