package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/lifemanager/internal/ledger"
	"github.com/hitoshi/lifemanager/internal/model"
	"github.com/hitoshi/lifemanager/internal/repository"
)

// TransactionServiceInterface は取引ハンドラーが必要とするサービスインターフェース。
type TransactionServiceInterface interface {
	Create(ctx context.Context, principal model.Principal, in ledger.Input) (*model.Transaction, error)
	List(ctx context.Context, principal model.Principal, start, end model.Date, page repository.PageRequest) (*repository.Page[*model.Transaction], error)
	Summary(ctx context.Context, principal model.Principal, start, end model.Date) (*model.TransactionSummary, error)
	Update(ctx context.Context, principal model.Principal, id int64, in ledger.Input) (*model.Transaction, error)
	Delete(ctx context.Context, principal model.Principal, id int64) error
}

// TransactionHandler は収入・支出記録のHTTPハンドラー。
type TransactionHandler struct {
	service TransactionServiceInterface
}

// NewTransactionHandler はTransactionHandlerを生成する。
func NewTransactionHandler(service TransactionServiceInterface) *TransactionHandler {
	return &TransactionHandler{service: service}
}

// decimalAmount はJSONの数値または文字列で受け取る金額。
// 浮動小数点を経由せず、元の10進数表記を保持する。
type decimalAmount string

func (a *decimalAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = decimalAmount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = decimalAmount(n.String())
	return nil
}

type transactionRequest struct {
	Type            model.TransactionType `json:"type"`
	Amount          decimalAmount         `json:"amount"`
	Category        string                `json:"category"`
	Description     string                `json:"description"`
	TransactionDate model.Date            `json:"transactionDate"`
}

func (r transactionRequest) toInput() ledger.Input {
	return ledger.Input{
		Type:            r.Type,
		Amount:          string(r.Amount),
		Category:        r.Category,
		Description:     r.Description,
		TransactionDate: r.TransactionDate,
	}
}

// transactionResponse は取引のAPIレスポンス。金額はJSONの数値として出力する。
type transactionResponse struct {
	ID              int64                 `json:"id"`
	Type            model.TransactionType `json:"type"`
	Amount          json.Number           `json:"amount"`
	Category        string                `json:"category"`
	Description     string                `json:"description"`
	TransactionDate model.Date            `json:"transactionDate"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

type summaryResponse struct {
	TotalIncome  json.Number `json:"totalIncome"`
	TotalExpense json.Number `json:"totalExpense"`
	Balance      json.Number `json:"balance"`
}

func toTransactionResponse(t *model.Transaction) transactionResponse {
	return transactionResponse{
		ID:              t.ID,
		Type:            t.Type,
		Amount:          json.Number(t.Amount),
		Category:        t.Category,
		Description:     t.Description,
		TransactionDate: t.TransactionDate,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

// dateWindow はstartDateとendDateのクエリパラメータを解析する。
func dateWindow(r *http.Request) (model.Date, model.Date, error) {
	q := r.URL.Query()
	start, err := model.ParseDate(q.Get("startDate"))
	if err != nil {
		return model.Date{}, model.Date{}, model.NewValidationError("startDateはYYYY-MM-DD形式である必要があります。")
	}
	end, err := model.ParseDate(q.Get("endDate"))
	if err != nil {
		return model.Date{}, model.Date{}, model.NewValidationError("endDateはYYYY-MM-DD形式である必要があります。")
	}
	return start, end, nil
}

// Create は取引を記録する。
// POST /api/transactions
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	created, err := h.service.Create(r.Context(), principal, req.toInput())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(created))
}

// List は期間内の取引をページ単位で返す。
// GET /api/transactions?startDate=2025-10-01&endDate=2025-10-31&page=0&size=10
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	start, end, err := dateWindow(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	page, err := pageRequestFromQuery(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.List(r.Context(), principal, start, end, page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	content := make([]transactionResponse, len(result.Content))
	for i, t := range result.Content {
		content[i] = toTransactionResponse(t)
	}
	writeJSON(w, http.StatusOK, newPageResponse(result, content))
}

// Summary は期間内の収入・支出合計と差額を返す。
// GET /api/transactions/summary?startDate=...&endDate=...
func (h *TransactionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	start, end, err := dateWindow(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	summary, err := h.service.Summary(r.Context(), principal, start, end)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		TotalIncome:  json.Number(summary.TotalIncome),
		TotalExpense: json.Number(summary.TotalExpense),
		Balance:      json.Number(summary.Balance),
	})
}

// Update は取引を更新する。
// PUT /api/transactions/{id}
func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	updated, err := h.service.Update(r.Context(), principal, id, req.toInput())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(updated))
}

// Delete は取引を削除する。
// DELETE /api/transactions/{id}
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
