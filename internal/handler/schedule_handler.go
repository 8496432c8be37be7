package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/lifemanager/internal/model"
	"github.com/hitoshi/lifemanager/internal/repository"
	"github.com/hitoshi/lifemanager/internal/schedule"
)

// ScheduleServiceInterface は予定ハンドラーが必要とするサービスインターフェース。
type ScheduleServiceInterface interface {
	Create(ctx context.Context, principal model.Principal, in schedule.Input) (*model.Schedule, error)
	List(ctx context.Context, principal model.Principal, page repository.PageRequest) (*repository.Page[*model.Schedule], error)
	Range(ctx context.Context, principal model.Principal, start, end time.Time) ([]*model.Schedule, error)
	Update(ctx context.Context, principal model.Principal, id int64, in schedule.Input) (*model.Schedule, error)
	Delete(ctx context.Context, principal model.Principal, id int64) error
}

// ScheduleHandler は予定管理のHTTPハンドラー。
type ScheduleHandler struct {
	service ScheduleServiceInterface
}

// NewScheduleHandler はScheduleHandlerを生成する。
func NewScheduleHandler(service ScheduleServiceInterface) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

// localDateTimeLayouts はタイムゾーンなしで受け付ける日時形式。UTCとして解釈する。
var localDateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// parseDateTime はRFC3339またはタイムゾーンなしの日時を解析する。
func parseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range localDateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", s)
}

// dateTime はJSONの日時表現。空文字列とnullはゼロ値になる。
type dateTime struct {
	time.Time
}

func (d *dateTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := parseDateTime(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

type scheduleRequest struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	StartDatetime dateTime `json:"startDatetime"`
	EndDatetime   dateTime `json:"endDatetime"`
	IsAllDay      bool     `json:"isAllDay"`
	Category      string   `json:"category"`
	Color         string   `json:"color"`
}

func (r scheduleRequest) toInput() schedule.Input {
	return schedule.Input{
		Title:         r.Title,
		Description:   r.Description,
		StartDatetime: r.StartDatetime.Time,
		EndDatetime:   r.EndDatetime.Time,
		IsAllDay:      r.IsAllDay,
		Category:      r.Category,
		Color:         r.Color,
	}
}

// scheduleResponse は予定のAPIレスポンス。
type scheduleResponse struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	StartDatetime time.Time `json:"startDatetime"`
	EndDatetime   time.Time `json:"endDatetime"`
	IsAllDay      bool      `json:"isAllDay"`
	Category      string    `json:"category"`
	Color         string    `json:"color"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toScheduleResponse(s *model.Schedule) scheduleResponse {
	return scheduleResponse{
		ID:            s.ID,
		Title:         s.Title,
		Description:   s.Description,
		StartDatetime: s.StartDatetime,
		EndDatetime:   s.EndDatetime,
		IsAllDay:      s.IsAllDay,
		Category:      s.Category,
		Color:         s.Color,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func toScheduleResponses(items []*model.Schedule) []scheduleResponse {
	out := make([]scheduleResponse, len(items))
	for i, s := range items {
		out[i] = toScheduleResponse(s)
	}
	return out
}

// Create は予定を作成する。
// POST /api/schedules
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req scheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	created, err := h.service.Create(r.Context(), principal, req.toInput())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(created))
}

// List は予定をページ単位で返す。
// GET /api/schedules?page=0&size=10&sortBy=startDatetime&sortDirection=desc
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	page, err := pageRequestFromQuery(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.List(r.Context(), principal, page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(result, toScheduleResponses(result.Content)))
}

// Range は開始日時が期間内の予定を返す。
// GET /api/schedules/range?start=...&end=...
func (h *ScheduleHandler) Range(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	start, err := parseDateTime(r.URL.Query().Get("start"))
	if err != nil {
		handleServiceError(w, r, model.NewValidationError("startの日時形式が不正です。"))
		return
	}
	end, err := parseDateTime(r.URL.Query().Get("end"))
	if err != nil {
		handleServiceError(w, r, model.NewValidationError("endの日時形式が不正です。"))
		return
	}

	items, err := h.service.Range(r.Context(), principal, start, end)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponses(items))
}

// Update は予定を更新する。
// PUT /api/schedules/{id}
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	var req scheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	updated, err := h.service.Update(r.Context(), principal, id, req.toInput())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(updated))
}

// Delete は予定を削除する。
// DELETE /api/schedules/{id}
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
