package model

import "time"

// Schedule はカレンダーの予定を表す。
type Schedule struct {
	ID            int64
	UserID        int64
	Title         string
	Description   string
	StartDatetime time.Time
	EndDatetime   time.Time
	IsAllDay      bool
	Category      string // 仕事、個人、約束 等
	Color         string // カレンダー表示色
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OwnerID は予定を所有するユーザーIDを返す。
func (s *Schedule) OwnerID() int64 {
	return s.UserID
}
