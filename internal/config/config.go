package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// MinJWTSecretLength はトークン署名鍵の最小バイト数。
const MinJWTSecretLength = 32

// EnvProduction は本番環境を示すAPP_ENVの値。
const EnvProduction = "production"

// OAuthClient はソーシャルログインプロバイダーのクライアント設定。
type OAuthClient struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled はクライアントIDが設定されている場合にtrueを返す。
func (c OAuthClient) Enabled() bool {
	return c.ClientID != ""
}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Token
	JWTSecret string
	JWTTTL    time.Duration

	// Social login
	OAuth2RedirectURI string // トークンを受け取るクライアントのURL
	Kakao             OAuthClient
	Google            OAuthClient

	// Identity
	AppEnv            string
	AllowUserIDHeader bool
	VerifyAccount     bool

	// Password
	PasswordHashCost int

	// Logging
	LogFormat string
	LogLevel  string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool

	// CORS
	CORSAllowedOrigin string
}

// IsProduction は本番環境で動作している場合にtrueを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// Load はカレントディレクトリの .env と環境変数からConfigを読み込む。
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile はpathの.envファイルと環境変数からConfigを読み込む。
// ファイルが存在しない場合は環境変数のみを使う。値は環境変数が優先される。
// 必須環境変数が未設定、または値が不正な場合はエラーを返す。
func LoadFile(path string) (*Config, error) {
	env, err := newEnv(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = env.get("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = env.get("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.OAuth2RedirectURI = env.get("OAUTH2_REDIRECT_URI")
	if cfg.OAuth2RedirectURI == "" {
		missing = append(missing, "OAUTH2_REDIRECT_URI")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.JWTTTL = env.getDuration("JWT_TTL", 24*time.Hour)
	cfg.AppEnv = env.getString("APP_ENV", "development")
	cfg.AllowUserIDHeader = env.getBool("ALLOW_USER_ID_HEADER", false)
	cfg.VerifyAccount = env.getBool("AUTH_VERIFY_ACCOUNT", false)
	cfg.PasswordHashCost = env.getInt("PASSWORD_HASH_COST", bcrypt.DefaultCost)
	cfg.LogFormat = strings.ToLower(env.getString("LOG_FORMAT", "json"))
	cfg.LogLevel = strings.ToLower(env.getString("LOG_LEVEL", "info"))
	cfg.ServerPort = env.getString("SERVER_PORT", "8080")
	cfg.BaseURL = strings.TrimRight(env.getString("BASE_URL", "http://localhost:"+cfg.ServerPort), "/")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CORSAllowedOrigin = env.getString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	cfg.Kakao = OAuthClient{
		ClientID:     env.get("KAKAO_CLIENT_ID"),
		ClientSecret: env.get("KAKAO_CLIENT_SECRET"),
		RedirectURL:  env.getString("KAKAO_REDIRECT_URL", cfg.BaseURL+"/api/auth/oauth2/callback/kakao"),
	}
	cfg.Google = OAuthClient{
		ClientID:     env.get("GOOGLE_CLIENT_ID"),
		ClientSecret: env.get("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  env.getString("GOOGLE_REDIRECT_URL", cfg.BaseURL+"/api/auth/oauth2/callback/google"),
	}

	if len(env.invalid) > 0 {
		return nil, fmt.Errorf("invalid environment variables: %v", env.invalid)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLength)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive: %s", c.JWTTTL)
	}
	if c.AllowUserIDHeader && c.IsProduction() {
		return errors.New("ALLOW_USER_ID_HEADER must not be enabled when APP_ENV=production")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text: %q", c.LogFormat)
	}
	return nil
}

// envSource は環境変数と.envファイルの値を参照する。
type envSource struct {
	file    map[string]string
	invalid []string
}

func newEnv(path string) (*envSource, error) {
	e := &envSource{file: map[string]string{}}
	if path == "" {
		return e, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return e, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	e.file = values
	return e, nil
}

func (e *envSource) get(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return e.file[key]
}

func (e *envSource) getString(key, defaultVal string) string {
	if v := e.get(key); v != "" {
		return v
	}
	return defaultVal
}

func (e *envSource) getInt(key string, defaultVal int) int {
	v := e.get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.invalid = append(e.invalid, key)
		return defaultVal
	}
	return i
}

func (e *envSource) getBool(key string, defaultVal bool) bool {
	v := e.get(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.invalid = append(e.invalid, key)
		return defaultVal
	}
	return b
}

func (e *envSource) getDuration(key string, defaultVal time.Duration) time.Duration {
	v := e.get(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.invalid = append(e.invalid, key)
		return defaultVal
	}
	return d
}
