// Package ledger は収入・支出記録のドメインロジックを提供する。
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/lifemanager/internal/access"
	"github.com/hitoshi/lifemanager/internal/model"
	"github.com/hitoshi/lifemanager/internal/repository"
	"github.com/hitoshi/lifemanager/internal/security"
)

// DefaultSortBy は一覧取得の既定の並び順。
const DefaultSortBy = "transactionDate"

const (
	maxCategoryLength    = 50
	maxDescriptionLength = 500
)

// amountPattern はNUMERIC(15,2)に収まる非負の10進数表記。
var amountPattern = regexp.MustCompile(`^[0-9]{1,13}(\.[0-9]{1,2})?$`)

// UserFinder は取引の所有者となるユーザーの存在確認に使う。
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// Input は取引の作成・更新の入力。Amountは10進数の文字列。
type Input struct {
	Type            model.TransactionType
	Amount          string
	Category        string
	Description     string
	TransactionDate model.Date
}

// Service は収入・支出記録のサービス層。
type Service struct {
	txs       repository.TransactionRepository
	users     UserFinder
	sanitizer security.TextSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(txs repository.TransactionRepository, users UserFinder, sanitizer security.TextSanitizer) *Service {
	return &Service{txs: txs, users: users, sanitizer: sanitizer}
}

// Create は呼び出し元を所有者とする取引を記録する。
func (s *Service) Create(ctx context.Context, principal model.Principal, in Input) (*model.Transaction, error) {
	in, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("ユーザー")
	}

	tx := &model.Transaction{UserID: user.ID}
	apply(tx, in)
	if err := s.txs.Create(ctx, tx); err != nil {
		return nil, err
	}

	slog.Info("transaction recorded",
		slog.Int64("user_id", user.ID),
		slog.Int64("transaction_id", tx.ID),
		slog.String("type", string(tx.Type)),
	)
	return tx, nil
}

// List は取引日が [start, end] に含まれる取引をページ単位で返す。
func (s *Service) List(ctx context.Context, principal model.Principal, start, end model.Date, page repository.PageRequest) (*repository.Page[*model.Transaction], error) {
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}
	page, err := page.Normalize(repository.TransactionSortColumns, DefaultSortBy)
	if err != nil {
		return nil, err
	}

	items, total, err := s.txs.ListByUserAndDateBetween(ctx, principal.UserID, start, end, page)
	if err != nil {
		return nil, err
	}
	return &repository.Page[*model.Transaction]{
		Content:       items,
		Page:          page.Page,
		Size:          page.Size,
		TotalElements: total,
	}, nil
}

// Summary は期間内の収入合計、支出合計、差額を返す。
func (s *Service) Summary(ctx context.Context, principal model.Principal, start, end model.Date) (*model.TransactionSummary, error) {
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}
	return s.txs.Summarize(ctx, principal.UserID, start, end)
}

// Update は取引の内容を置き換える。
func (s *Service) Update(ctx context.Context, principal model.Principal, id int64, in Input) (*model.Transaction, error) {
	in, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	tx, err := s.owned(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	apply(tx, in)
	if err := s.txs.Update(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// Delete は取引を削除する。
func (s *Service) Delete(ctx context.Context, principal model.Principal, id int64) error {
	if _, err := s.owned(ctx, principal, id); err != nil {
		return err
	}
	if err := s.txs.Delete(ctx, id); err != nil {
		return err
	}

	slog.Info("transaction deleted",
		slog.Int64("user_id", principal.UserID),
		slog.Int64("transaction_id", id),
	)
	return nil
}

func (s *Service) owned(ctx context.Context, principal model.Principal, id int64) (*model.Transaction, error) {
	tx, err := s.txs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, model.NewNotFoundError("取引")
	}
	if err := access.RequireOwnerOf(principal, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *Service) validate(in Input) (Input, error) {
	in.Amount = strings.TrimSpace(in.Amount)
	in.Category = s.sanitizer.Sanitize(in.Category)
	in.Description = s.sanitizer.Sanitize(in.Description)

	switch {
	case !in.Type.Valid():
		return in, model.NewValidationError("種別はINCOMEまたはEXPENSEである必要があります。")
	case in.Amount == "":
		return in, model.NewValidationError("金額は必須です。")
	case !amountPattern.MatchString(in.Amount):
		return in, model.NewValidationError("金額は小数点以下2桁までの数値である必要があります。")
	case isZeroAmount(in.Amount):
		return in, model.NewValidationError("金額は0より大きい必要があります。")
	case in.Category == "":
		return in, model.NewValidationError("カテゴリは必須です。")
	case utf8.RuneCountInString(in.Category) > maxCategoryLength:
		return in, model.NewValidationError(fmt.Sprintf("カテゴリは%d文字以内である必要があります。", maxCategoryLength))
	case utf8.RuneCountInString(in.Description) > maxDescriptionLength:
		return in, model.NewValidationError(fmt.Sprintf("説明は%d文字以内である必要があります。", maxDescriptionLength))
	case in.TransactionDate.IsZero():
		return in, model.NewValidationError("取引日は必須です。")
	}
	return in, nil
}

func validateWindow(start, end model.Date) error {
	if start.IsZero() || end.IsZero() {
		return model.NewValidationError("startDateとendDateは必須です。")
	}
	if end.Before(start.Time) {
		return model.NewValidationError("endDateはstartDate以降である必要があります。")
	}
	return nil
}

// isZeroAmount はamountPatternに一致する文字列が0を表すかを返す。
func isZeroAmount(amount string) bool {
	return strings.Trim(amount, "0.") == ""
}

func apply(tx *model.Transaction, in Input) {
	tx.Type = in.Type
	tx.Amount = in.Amount
	tx.Category = in.Category
	tx.Description = in.Description
	tx.TransactionDate = in.TransactionDate
}
