// Package token はセッションの代わりに使う署名付きIDトークンの発行と検証を提供する。
//
// トークンは header.payload.signature の3セグメントからなるHS256 JWTで、
// payloadには sub(メールアドレス)、userId、iat、exp（エポック秒）を含む。
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// 検証失敗の種別。Decodeは常にこのいずれかをラップして返す。
var (
	ErrMalformed        = errors.New("token: malformed")
	ErrExpired          = errors.New("token: expired")
	ErrInvalidSignature = errors.New("token: invalid signature")
)

// signingMethod はトークン署名に使う対称MACアルゴリズム。リクエストごとに変更できない。
var signingMethod = jwtv5.SigningMethodHS256

// Claims はトークンに埋め込まれる署名済みの属性。
type Claims struct {
	UserIDClaim int64 `json:"userId"`
	jwtv5.RegisteredClaims
}

// UserID はトークンのユーザーIDを返す。
func (c *Claims) UserID() int64 {
	return c.UserIDClaim
}

// Email はトークンのsub（メールアドレス）を返す。
func (c *Claims) Email() string {
	return c.Subject
}

// Codec はサーバー秘密鍵でトークンを署名・検証する。
// 生成後は不変で、複数goroutineから同時に利用できる。
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option はCodecの生成オプション。
type Option func(*Codec)

// WithClock は現在時刻の取得関数を差し替える。テストで発行時刻を操作するために使う。
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec はCodecを生成する。secretが空、またはttlが正でない場合はエラーを返す。
func NewCodec(secret string, ttl time.Duration, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive: %s", ttl)
	}
	c := &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL はトークンの有効期間を返す。
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Encode はメールアドレスとユーザーIDからトークンを発行する。
// iat=現在時刻、exp=現在時刻+TTL。
func (c *Codec) Encode(email string, userID int64) (string, error) {
	now := c.now().Truncate(time.Second)
	claims := &Claims{
		UserIDClaim: userID,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(c.ttl)),
		},
	}

	signed, err := jwtv5.NewWithClaims(signingMethod, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode は署名と有効期限を検証してClaimsを返す。
// 失敗時はErrMalformed、ErrExpired、ErrInvalidSignatureのいずれかを返す。
func (c *Codec) Decode(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwtv5.ParseWithClaims(raw, claims, c.keyFunc,
		jwtv5.WithValidMethods([]string{signingMethod.Alg()}),
		jwtv5.WithTimeFunc(c.now),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithStrictDecoding(),
	)
	if err != nil {
		return nil, classify(raw, err)
	}

	if claims.UserIDClaim <= 0 || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing userId or sub claim", ErrMalformed)
	}
	return claims, nil
}

func (c *Codec) keyFunc(_ *jwtv5.Token) (any, error) {
	return c.secret, nil
}

// classify はjwtライブラリのエラーを3種類の失敗に分類する。
func classify(raw string, err error) error {
	switch {
	case errors.Is(err, jwtv5.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwtv5.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwtv5.ErrTokenMalformed):
		// header/payloadが読めるのに失敗した場合は署名セグメントの改ざんとみなす
		if headerAndPayloadReadable(raw) {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

// headerAndPayloadReadable は先頭2セグメントがbase64url JSONとして読めるかを返す。
func headerAndPayloadReadable(raw string) bool {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return false
	}
	for _, seg := range parts[:2] {
		b, err := base64.RawURLEncoding.Strict().DecodeString(seg)
		if err != nil {
			return false
		}
		var v map[string]any
		if err := json.Unmarshal(b, &v); err != nil {
			return false
		}
	}
	return true
}
