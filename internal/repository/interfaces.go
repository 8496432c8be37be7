// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/lifemanager/internal/model"
)

// ErrDuplicateEmail はメールアドレスの一意制約に違反した場合のエラー。
var ErrDuplicateEmail = errors.New("repository: duplicate email")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail は保存メールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDとタイムスタンプをuserに設定する。
	// メールアドレスが既に存在する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// InsertOrGetByEmail はメールアドレスの一意制約を使って原子的にユーザーを作成する。
	// 既に同じメールアドレスの行があれば挿入せずその行を返す。
	// createdは今回の呼び出しで行を作成した場合にtrueになる。
	InsertOrGetByEmail(ctx context.Context, user *model.User) (u *model.User, created bool, err error)

	// UpdateName は表示名を更新する。
	UpdateName(ctx context.Context, id int64, name string) error

	// UpdatePasswordHash はパスワードハッシュを更新する。
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}

// ScheduleRepository は予定データの永続化インターフェース。
type ScheduleRepository interface {
	// FindByID は指定IDの予定を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Schedule, error)

	// Create は予定を作成し、採番されたIDとタイムスタンプを設定する。
	Create(ctx context.Context, schedule *model.Schedule) error

	// Update は予定の内容を更新する。所有者は変更しない。
	Update(ctx context.Context, schedule *model.Schedule) error

	// Delete は指定IDの予定を削除する。
	Delete(ctx context.Context, id int64) error

	// ListByUser はユーザーの予定をページ単位で返す。totalは全件数。
	ListByUser(ctx context.Context, userID int64, page PageRequest) (schedules []*model.Schedule, total int, err error)

	// ListByUserAndStartBetween は開始日時が [start, end] に含まれる予定を開始日時の昇順で返す。
	ListByUserAndStartBetween(ctx context.Context, userID int64, start, end time.Time) ([]*model.Schedule, error)
}

// TransactionRepository は収入・支出データの永続化インターフェース。
type TransactionRepository interface {
	// FindByID は指定IDの取引を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Transaction, error)

	// Create は取引を作成し、採番されたIDとタイムスタンプを設定する。
	Create(ctx context.Context, tx *model.Transaction) error

	// Update は取引の内容を更新する。所有者は変更しない。
	Update(ctx context.Context, tx *model.Transaction) error

	// Delete は指定IDの取引を削除する。
	Delete(ctx context.Context, id int64) error

	// ListByUserAndDateBetween は取引日が [start, end] に含まれる取引をページ単位で返す。
	ListByUserAndDateBetween(ctx context.Context, userID int64, start, end model.Date, page PageRequest) (txs []*model.Transaction, total int, err error)

	// Summarize は期間内の収入・支出合計と差額を返す。
	Summarize(ctx context.Context, userID int64, start, end model.Date) (*model.TransactionSummary, error)
}

// PageRequest はページングと並び順の指定。
// SortByはリポジトリごとのソート可能カラム名（APIのフィールド名）で指定する。
type PageRequest struct {
	Page       int // 0始まり
	Size       int
	SortBy     string
	Descending bool
}

// ページングの既定値と上限
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize は既定値を補い、ページ番号・件数・並び順を検証する。
// SortByはcolumnsのキーのいずれかでなければならない。
func (p PageRequest) Normalize(columns map[string]string, defaultSort string) (PageRequest, error) {
	if p.Size == 0 {
		p.Size = DefaultPageSize
	}
	if p.SortBy == "" {
		p.SortBy = defaultSort
	}
	if p.Page < 0 {
		return p, model.NewValidationError("pageは0以上である必要があります。")
	}
	if p.Size < 1 || p.Size > MaxPageSize {
		return p, model.NewValidationError(fmt.Sprintf("sizeは1以上%d以下である必要があります。", MaxPageSize))
	}
	if _, ok := columns[p.SortBy]; !ok {
		return p, model.NewValidationError(fmt.Sprintf("sortByに %q は指定できません。", p.SortBy))
	}
	return p, nil
}

// Offset はSQLのOFFSET値を返す。
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Page はページング結果の共通表現。
type Page[T any] struct {
	Content       []T
	Page          int
	Size          int
	TotalElements int
}

// TotalPages は総ページ数を返す。
func (p Page[T]) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return (p.TotalElements + p.Size - 1) / p.Size
}
