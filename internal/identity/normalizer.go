// Package identity は外部IdPごとに形の異なるプロフィール属性を
// 共通のExternalIdentityに正規化する。
package identity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/lifemanager/internal/model"
)

// Normalizer はプロバイダー固有の属性マップをExternalIdentityに変換する。
// メールアドレスはアカウント同一性の結合キーのため必須で、
// 取得できない場合はmodel.ErrMissingEmailを返す。
type Normalizer interface {
	// Provider はプロバイダー名（"kakao", "google" 等）を返す。
	Provider() string
	// Normalize は属性マップからExternalIdentityを生成する。
	Normalize(attrs map[string]any) (*model.ExternalIdentity, error)
}

// Registry はプロバイダー名からNormalizerを引く。
type Registry struct {
	normalizers map[string]Normalizer
}

// NewRegistry は指定したNormalizerを登録したRegistryを生成する。
func NewRegistry(normalizers ...Normalizer) *Registry {
	r := &Registry{normalizers: make(map[string]Normalizer, len(normalizers))}
	for _, n := range normalizers {
		r.normalizers[n.Provider()] = n
	}
	return r
}

// DefaultRegistry は対応済みの全プロバイダーを登録したRegistryを返す。
func DefaultRegistry() *Registry {
	return NewRegistry(KakaoNormalizer{}, GoogleNormalizer{})
}

// Supports はプロバイダーが登録済みかを返す。
func (r *Registry) Supports(provider string) bool {
	_, ok := r.normalizers[provider]
	return ok
}

// Normalize はプロバイダー名に対応するNormalizerで属性を正規化する。
// 未登録のプロバイダーにはmodel.ErrUnsupportedProviderを返す。
func (r *Registry) Normalize(provider string, attrs map[string]any) (*model.ExternalIdentity, error) {
	n, ok := r.normalizers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedProvider, provider)
	}
	return n.Normalize(attrs)
}

// KakaoNormalizer はKakaoのユーザー情報を正規化する。
//
//	{"id": 123, "kakao_account": {"email": "..."}, "properties": {"nickname": "..."}}
type KakaoNormalizer struct{}

// Provider はプロバイダー名を返す。
func (KakaoNormalizer) Provider() string { return "kakao" }

// Normalize はKakaoの属性をExternalIdentityに変換する。
func (k KakaoNormalizer) Normalize(attrs map[string]any) (*model.ExternalIdentity, error) {
	email := nestedString(attrs, "kakao_account", "email")
	if email == "" {
		return nil, model.ErrMissingEmail
	}
	return &model.ExternalIdentity{
		ProviderName:      k.Provider(),
		ProviderAccountID: stringify(attrs["id"]),
		RawEmail:          email,
		DisplayName:       nestedString(attrs, "properties", "nickname"),
	}, nil
}

// GoogleNormalizer はGoogleのuserinfoレスポンスを正規化する。
//
//	{"sub": "...", "email": "...", "name": "..."}
type GoogleNormalizer struct{}

// Provider はプロバイダー名を返す。
func (GoogleNormalizer) Provider() string { return "google" }

// Normalize はGoogleの属性をExternalIdentityに変換する。
func (g GoogleNormalizer) Normalize(attrs map[string]any) (*model.ExternalIdentity, error) {
	email := stringify(attrs["email"])
	if email == "" {
		return nil, model.ErrMissingEmail
	}
	return &model.ExternalIdentity{
		ProviderName:      g.Provider(),
		ProviderAccountID: stringify(attrs["sub"]),
		RawEmail:          email,
		DisplayName:       stringify(attrs["name"]),
	}, nil
}

// nestedString は attrs[outer][inner] を文字列として取り出す。
// 途中が欠落または型が異なる場合は空文字列を返す。
func nestedString(attrs map[string]any, outer, inner string) string {
	m, ok := attrs[outer].(map[string]any)
	if !ok {
		return ""
	}
	return stringify(m[inner])
}

// stringify はJSONデコード結果の値を文字列に変換する。
// KakaoのidはJSON数値で届くため、float64も整数表記にする。
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case fmt.Stringer:
		return t.String()
	default:
		return ""
	}
}

// compile-time interface check
var (
	_ Normalizer = KakaoNormalizer{}
	_ Normalizer = GoogleNormalizer{}
)
