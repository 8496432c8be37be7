// Package schedule は予定管理のドメインロジックを提供する。
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/lifemanager/internal/access"
	"github.com/hitoshi/lifemanager/internal/model"
	"github.com/hitoshi/lifemanager/internal/repository"
	"github.com/hitoshi/lifemanager/internal/security"
)

// DefaultSortBy は一覧取得の既定の並び順。
const DefaultSortBy = "startDatetime"

// 入力値の上限（カラム定義と一致させる）
const (
	maxTitleLength    = 200
	maxCategoryLength = 50
	maxColorLength    = 20
)

// UserFinder は予定の所有者となるユーザーの存在確認に使う。
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// Input は予定の作成・更新の入力。
type Input struct {
	Title         string
	Description   string
	StartDatetime time.Time
	EndDatetime   time.Time
	IsAllDay      bool
	Category      string
	Color         string
}

// Service は予定管理のサービス層。
// 変更と削除は必ず対象を取得した後に所有者を検証してから適用する。
type Service struct {
	schedules repository.ScheduleRepository
	users     UserFinder
	sanitizer security.TextSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(schedules repository.ScheduleRepository, users UserFinder, sanitizer security.TextSanitizer) *Service {
	return &Service{schedules: schedules, users: users, sanitizer: sanitizer}
}

// Create は呼び出し元を所有者とする予定を作成する。
func (s *Service) Create(ctx context.Context, principal model.Principal, in Input) (*model.Schedule, error) {
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

	sched := &model.Schedule{UserID: user.ID}
	apply(sched, in)
	if err := s.schedules.Create(ctx, sched); err != nil {
		return nil, err
	}

	slog.Info("schedule created",
		slog.Int64("user_id", user.ID),
		slog.Int64("schedule_id", sched.ID),
	)
	return sched, nil
}

// List は呼び出し元の予定をページ単位で返す。
func (s *Service) List(ctx context.Context, principal model.Principal, page repository.PageRequest) (*repository.Page[*model.Schedule], error) {
	page, err := page.Normalize(repository.ScheduleSortColumns, DefaultSortBy)
	if err != nil {
		return nil, err
	}

	items, total, err := s.schedules.ListByUser(ctx, principal.UserID, page)
	if err != nil {
		return nil, err
	}
	return &repository.Page[*model.Schedule]{
		Content:       items,
		Page:          page.Page,
		Size:          page.Size,
		TotalElements: total,
	}, nil
}

// Range は開始日時が [start, end] に含まれる予定を開始日時の昇順で返す。
func (s *Service) Range(ctx context.Context, principal model.Principal, start, end time.Time) ([]*model.Schedule, error) {
	if start.IsZero() || end.IsZero() {
		return nil, model.NewValidationError("startとendは必須です。")
	}
	if end.Before(start) {
		return nil, model.NewValidationError("endはstart以降である必要があります。")
	}
	return s.schedules.ListByUserAndStartBetween(ctx, principal.UserID, start, end)
}

// Update は予定の内容を置き換える。
func (s *Service) Update(ctx context.Context, principal model.Principal, id int64, in Input) (*model.Schedule, error) {
	in, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	sched, err := s.owned(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	apply(sched, in)
	if err := s.schedules.Update(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// Delete は予定を削除する。
func (s *Service) Delete(ctx context.Context, principal model.Principal, id int64) error {
	if _, err := s.owned(ctx, principal, id); err != nil {
		return err
	}
	if err := s.schedules.Delete(ctx, id); err != nil {
		return err
	}

	slog.Info("schedule deleted",
		slog.Int64("user_id", principal.UserID),
		slog.Int64("schedule_id", id),
	)
	return nil
}

// owned は予定を取得し、呼び出し元が所有者であることを検証する。
func (s *Service) owned(ctx context.Context, principal model.Principal, id int64) (*model.Schedule, error) {
	sched, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sched == nil {
		return nil, model.NewNotFoundError("予定")
	}
	if err := access.RequireOwnerOf(principal, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

func (s *Service) validate(in Input) (Input, error) {
	in.Title = s.sanitizer.Sanitize(in.Title)
	in.Description = s.sanitizer.Sanitize(in.Description)
	in.Category = s.sanitizer.Sanitize(in.Category)
	in.Color = s.sanitizer.Sanitize(in.Color)

	switch {
	case in.Title == "":
		return in, model.NewValidationError("タイトルは必須です。")
	case utf8.RuneCountInString(in.Title) > maxTitleLength:
		return in, model.NewValidationError(fmt.Sprintf("タイトルは%d文字以内である必要があります。", maxTitleLength))
	case in.StartDatetime.IsZero():
		return in, model.NewValidationError("開始日時は必須です。")
	case in.EndDatetime.IsZero():
		return in, model.NewValidationError("終了日時は必須です。")
	case in.EndDatetime.Before(in.StartDatetime):
		return in, model.NewValidationError("終了日時は開始日時以降である必要があります。")
	case utf8.RuneCountInString(in.Category) > maxCategoryLength:
		return in, model.NewValidationError(fmt.Sprintf("カテゴリは%d文字以内である必要があります。", maxCategoryLength))
	case utf8.RuneCountInString(in.Color) > maxColorLength:
		return in, model.NewValidationError(fmt.Sprintf("色は%d文字以内である必要があります。", maxColorLength))
	}
	return in, nil
}

func apply(sched *model.Schedule, in Input) {
	sched.Title = in.Title
	sched.Description = in.Description
	sched.StartDatetime = in.StartDatetime
	sched.EndDatetime = in.EndDatetime
	sched.IsAllDay = in.IsAllDay
	sched.Category = in.Category
	sched.Color = in.Color
}
