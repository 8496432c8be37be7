// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は呼び出し元が回復可能なエラーを表す。
// Codeで種別を判別し、errors.Isで定義済みエラーと比較できる。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, account, resource, validation, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is はCodeが一致する場合にtrueを返す。
// メッセージが異なるバリデーションエラー同士もerrors.Isで同一視できる。
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated     = "UNAUTHENTICATED"
	ErrCodeUnsupportedProvider = "UNSUPPORTED_PROVIDER"
	ErrCodeMissingEmail        = "MISSING_EMAIL"
	ErrCodeEmailTaken          = "EMAIL_TAKEN"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeBadCredentials      = "BAD_CREDENTIALS"
	ErrCodeBadCurrentPassword  = "BAD_CURRENT_PASSWORD"
	ErrCodeWeakPassword        = "WEAK_PASSWORD"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeValidation          = "VALIDATION_FAILED"
	ErrCodeInvalidOAuthState   = "INVALID_OAUTH_STATE"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 8

var (
	// ErrUnauthenticated は保護されたパスで有効な資格情報がない場合のエラー。
	ErrUnauthenticated = &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証が必要です。",
		Category: "auth",
	}

	// ErrUnsupportedProvider は未対応のソーシャルログインが指定された場合のエラー。
	ErrUnsupportedProvider = &APIError{
		Code:     ErrCodeUnsupportedProvider,
		Message:  "対応していないソーシャルログインです。",
		Category: "auth",
	}

	// ErrMissingEmail はプロバイダーのプロフィールからメールアドレスを取得できない場合のエラー。
	ErrMissingEmail = &APIError{
		Code:     ErrCodeMissingEmail,
		Message:  "メールアドレスを取得できませんでした。",
		Category: "auth",
	}

	// ErrEmailTaken はメールアドレスが既に使用されている場合のエラー。
	ErrEmailTaken = &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "既に使用されているメールアドレスです。",
		Category: "account",
	}

	// ErrNotFound は指定されたリソースが見つからない場合のエラー。
	ErrNotFound = &APIError{
		Code:     ErrCodeNotFound,
		Message:  "指定されたリソースが見つかりません。",
		Category: "resource",
	}

	// ErrBadCredentials はログインに失敗した場合のエラー。
	// メールアドレスの有無とパスワード誤りを区別しない。
	ErrBadCredentials = &APIError{
		Code:     ErrCodeBadCredentials,
		Message:  "メールアドレスまたはパスワードが一致しません。",
		Category: "auth",
	}

	// ErrBadCurrentPassword はパスワード変更時に現在のパスワードが一致しない場合のエラー。
	ErrBadCurrentPassword = &APIError{
		Code:     ErrCodeBadCurrentPassword,
		Message:  "現在のパスワードが一致しません。",
		Category: "account",
	}

	// ErrWeakPassword は新しいパスワードがポリシーを満たさない場合のエラー。
	ErrWeakPassword = &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  fmt.Sprintf("新しいパスワードは%d文字以上である必要があります。", MinPasswordLength),
		Category: "validation",
	}

	// ErrForbidden は他ユーザーのリソースを操作しようとした場合のエラー。
	ErrForbidden = &APIError{
		Code:     ErrCodeForbidden,
		Message:  "このリソースを操作する権限がありません。",
		Category: "resource",
	}

	// ErrInvalidOAuthState はOAuthコールバックのstateが一致しない場合のエラー。
	ErrInvalidOAuthState = &APIError{
		Code:     ErrCodeInvalidOAuthState,
		Message:  "不正なstateパラメータです。",
		Category: "auth",
	}

	// ErrValidation はバリデーションエラーの比較用。
	ErrValidation = &APIError{Code: ErrCodeValidation}
)

// NewValidationError は入力値のバリデーションエラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
	}
}

// NewNotFoundError はリソース種別を含む未検出エラーを生成する。
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%sが見つかりません。", resource),
		Category: "resource",
	}
}
