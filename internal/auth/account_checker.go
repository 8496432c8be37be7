package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/hitoshi/lifemanager/internal/model"
)

// DefaultAccountCacheTTL はアカウント存在確認結果のキャッシュ期間。
const DefaultAccountCacheTTL = time.Minute

// UserFinder はIDでユーザーを取得する。
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// CachedAccountChecker はトークンのuserIdが実在するアカウントを指すかを確認する。
// 結果はプロセス内にTTL付きでキャッシュし、リクエストごとのDB参照を抑える。
type CachedAccountChecker struct {
	users UserFinder
	cache *gocache.Cache
}

// NewCachedAccountChecker はCachedAccountCheckerを生成する。ttlが0以下の場合は既定値を使う。
func NewCachedAccountChecker(users UserFinder, ttl time.Duration) *CachedAccountChecker {
	if ttl <= 0 {
		ttl = DefaultAccountCacheTTL
	}
	return &CachedAccountChecker{
		users: users,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// AccountExists はuserIDのアカウントが存在する場合にtrueを返す。
func (c *CachedAccountChecker) AccountExists(ctx context.Context, userID int64) (bool, error) {
	key := strconv.FormatInt(userID, 10)
	if v, ok := c.cache.Get(key); ok {
		return v.(bool), nil
	}

	user, err := c.users.FindByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check account: %w", err)
	}
	exists := user != nil
	c.cache.SetDefault(key, exists)
	return exists, nil
}

// Forget はキャッシュからuserIDの結果を取り除く。
func (c *CachedAccountChecker) Forget(userID int64) {
	c.cache.Delete(strconv.FormatInt(userID, 10))
}
