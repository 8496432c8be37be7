package middleware

import (
	"net/http"
	"strings"
)

// CORSConfig はCORSミドルウェアの設定。
type CORSConfig struct {
	AllowedOrigin string

	// AllowUserIDHeader がtrueの場合のみ X-User-Id をプリフライトで許可する。
	// IdentityConfig.AllowUserIDHeader と揃える。
	AllowUserIDHeader bool
}

// NewCORSMiddleware は指定されたオリジンに対するCORSミドルウェアを返す。
// 資格情報はAuthorizationヘッダーで運ぶため、Cookieの送信は許可しない。
// OPTIONSプリフライトリクエストには204で応答する。
func NewCORSMiddleware(cfg CORSConfig) func(next http.Handler) http.Handler {
	allowHeaders := []string{"Authorization", "Content-Type", RequestIDHeader}
	if cfg.AllowUserIDHeader {
		allowHeaders = append(allowHeaders, UserIDHeader)
	}
	allowHeadersValue := strings.Join(allowHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", cfg.AllowedOrigin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", allowHeadersValue)
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)
			h.Set("Access-Control-Max-Age", "3600")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
