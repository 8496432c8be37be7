package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// maxUserInfoBytes はuserinfoレスポンスの読み込み上限。
const maxUserInfoBytes = 1 << 20

// OAuthProvider は外部IdPとの認可コードフローを抽象化する。
type OAuthProvider interface {
	// Name はプロバイダー名（"kakao", "google" 等）を返す。
	Name() string
	// AuthCodeURL はstateを含む認可エンドポイントのURLを生成する。
	AuthCodeURL(state string) string
	// FetchAttributes は認可コードをアクセストークンに交換し、
	// userinfoエンドポイントの生の属性マップを返す。
	FetchAttributes(ctx context.Context, code string) (map[string]any, error)
}

// OAuth2ProviderConfig はOAuth2プロバイダーの設定。
type OAuth2ProviderConfig struct {
	Name         string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// クライアント認証方式。KakaoはPOSTボディでのclient_secret送信を要求する。
	AuthStyle oauth2.AuthStyle
}

// KakaoConfig はKakaoの既定エンドポイントを設定した構成を返す。
func KakaoConfig(clientID, clientSecret, redirectURL string) OAuth2ProviderConfig {
	return OAuth2ProviderConfig{
		Name:         "kakao",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"account_email", "profile_nickname"},
		AuthURL:      "https://kauth.kakao.com/oauth/authorize",
		TokenURL:     "https://kauth.kakao.com/oauth/token",
		UserInfoURL:  "https://kapi.kakao.com/v2/user/me",
		AuthStyle:    oauth2.AuthStyleInParams,
	}
}

// GoogleConfig はGoogleの既定エンドポイントを設定した構成を返す。
func GoogleConfig(clientID, clientSecret, redirectURL string) OAuth2ProviderConfig {
	return OAuth2ProviderConfig{
		Name:         "google",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		AuthURL:      "https://accounts.google.com/o/oauth2/auth",
		TokenURL:     "https://oauth2.googleapis.com/token",
		UserInfoURL:  "https://www.googleapis.com/oauth2/v3/userinfo",
	}
}

// OAuth2Provider はgolang.org/x/oauth2による汎用OAuthProvider。
type OAuth2Provider struct {
	name        string
	config      oauth2.Config
	userInfoURL string
}

// NewOAuth2Provider はOAuth2Providerを生成する。
func NewOAuth2Provider(cfg OAuth2ProviderConfig) *OAuth2Provider {
	return &OAuth2Provider{
		name: cfg.Name,
		config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: cfg.AuthStyle,
			},
		},
		userInfoURL: cfg.UserInfoURL,
	}
}

// Name はプロバイダー名を返す。
func (p *OAuth2Provider) Name() string {
	return p.name
}

// AuthCodeURL は認可エンドポイントのURLを生成する。
func (p *OAuth2Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// FetchAttributes は認可コードを交換し、userinfoの属性マップを取得する。
func (p *OAuth2Provider) FetchAttributes(ctx context.Context, code string) (map[string]any, error) {
	// 1. 認可コードをアクセストークンに交換
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	// 2. アクセストークン付きのクライアントでuserinfoを取得
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	resp, err := p.config.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch failed with status %d", resp.StatusCode)
	}

	// 3. 数値IDの精度を保つためjson.Numberとしてデコード
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var attrs map[string]any
	if err := dec.Decode(&attrs); err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}
	return attrs, nil
}

// compile-time interface check
var _ OAuthProvider = (*OAuth2Provider)(nil)
