package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/lifemanager/internal/model"
)

// ScheduleSortColumns はListByUserで指定可能な並び順とカラムの対応。
var ScheduleSortColumns = map[string]string{
	"startDatetime": "start_datetime",
	"endDatetime":   "end_datetime",
	"createdAt":     "created_at",
	"title":         "title",
}

const scheduleColumns = `id, user_id, title, description, start_datetime, end_datetime, is_all_day, category, color, created_at, updated_at`

// PostgresScheduleRepo はPostgreSQLを使用した予定リポジトリ。
type PostgresScheduleRepo struct {
	db *sql.DB
}

// NewPostgresScheduleRepo はPostgresScheduleRepoを生成する。
func NewPostgresScheduleRepo(db *sql.DB) *PostgresScheduleRepo {
	return &PostgresScheduleRepo{db: db}
}

func scanSchedule(row rowScanner) (*model.Schedule, error) {
	s := &model.Schedule{}
	err := row.Scan(&s.ID, &s.UserID, &s.Title, &s.Description, &s.StartDatetime, &s.EndDatetime,
		&s.IsAllDay, &s.Category, &s.Color, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FindByID は指定IDの予定を取得する。見つからない場合はnilを返す。
func (r *PostgresScheduleRepo) FindByID(ctx context.Context, id int64) (*model.Schedule, error) {
	s, err := scanSchedule(r.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("予定の取得に失敗しました: %w", err)
	}
	return s, nil
}

// Create は予定を作成する。
func (r *PostgresScheduleRepo) Create(ctx context.Context, s *model.Schedule) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO schedules (user_id, title, description, start_datetime, end_datetime, is_all_day, category, color)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		s.UserID, s.Title, s.Description, s.StartDatetime, s.EndDatetime, s.IsAllDay, s.Category, s.Color,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("予定の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は予定の内容を更新する。
func (r *PostgresScheduleRepo) Update(ctx context.Context, s *model.Schedule) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE schedules
		 SET title = $2, description = $3, start_datetime = $4, end_datetime = $5,
		     is_all_day = $6, category = $7, color = $8, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		s.ID, s.Title, s.Description, s.StartDatetime, s.EndDatetime, s.IsAllDay, s.Category, s.Color,
	).Scan(&s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("schedule not found: %d", s.ID)
	}
	if err != nil {
		return fmt.Errorf("予定の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDの予定を削除する。
func (r *PostgresScheduleRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("予定の削除に失敗しました: %w", err)
	}
	return nil
}

// ListByUser はユーザーの予定をページ単位で返す。
func (r *PostgresScheduleRepo) ListByUser(ctx context.Context, userID int64, page PageRequest) ([]*model.Schedule, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schedules WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("予定数の取得に失敗しました: %w", err)
	}

	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE user_id = $1` +
		orderBy(ScheduleSortColumns, "start_datetime", page) + ` LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, userID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("予定一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	schedules, err := collectSchedules(rows)
	if err != nil {
		return nil, 0, err
	}
	return schedules, total, nil
}

// ListByUserAndStartBetween は開始日時が期間内の予定を開始日時の昇順で返す。
func (r *PostgresScheduleRepo) ListByUserAndStartBetween(ctx context.Context, userID int64, start, end time.Time) ([]*model.Schedule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules
		 WHERE user_id = $1 AND start_datetime BETWEEN $2 AND $3
		 ORDER BY start_datetime ASC, id ASC`,
		userID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("期間内の予定取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectSchedules(rows)
}

func collectSchedules(rows *sql.Rows) ([]*model.Schedule, error) {
	schedules := make([]*model.Schedule, 0)
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("予定のスキャンに失敗しました: %w", err)
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("予定の読み込み中にエラーが発生しました: %w", err)
	}
	return schedules, nil
}

// orderBy はホワイトリストに基づいてORDER BY句を組み立てる。
// 未知のSortByはfallbackカラムに置き換える。同順位はidで安定させる。
func orderBy(columns map[string]string, fallback string, page PageRequest) string {
	col, ok := columns[page.SortBy]
	if !ok {
		col = fallback
	}
	dir := "ASC"
	if page.Descending {
		dir = "DESC"
	}
	return " ORDER BY " + col + " " + dir + ", id " + dir
}

// compile-time interface check
var _ ScheduleRepository = (*PostgresScheduleRepo)(nil)
