// Package access はリソース所有者の検証を提供する。
package access

import (
	"github.com/hitoshi/lifemanager/internal/model"
)

// Owned は所有者を持つリソースを表す。
type Owned interface {
	OwnerID() int64
}

// RequireOwner は呼び出し元がリソースの所有者であることを検証する。
// リソースを識別子で取得した後、変更・削除を適用する前に必ず呼び出す。
// 所有者でない場合はmodel.ErrForbiddenを返す。
func RequireOwner(principal model.Principal, resourceOwnerID int64) error {
	if principal.UserID <= 0 || principal.UserID != resourceOwnerID {
		return model.ErrForbidden
	}
	return nil
}

// RequireOwnerOf はOwnedリソースに対するRequireOwner。
func RequireOwnerOf(principal model.Principal, resource Owned) error {
	return RequireOwner(principal, resource.OwnerID())
}
