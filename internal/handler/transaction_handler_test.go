package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/lifemanager/internal/ledger"
	"github.com/hitoshi/lifemanager/internal/model"
	"github.com/hitoshi/lifemanager/internal/repository"
)

// --- モック定義 ---

type mockTransactionService struct {
	createFn  func(ctx context.Context, principal model.Principal, in ledger.Input) (*model.Transaction, error)
	listFn    func(ctx context.Context, principal model.Principal, start, end model.Date, page repository.PageRequest) (*repository.Page[*model.Transaction], error)
	summaryFn func(ctx context.Context, principal model.Principal, start, end model.Date) (*model.TransactionSummary, error)
	updateFn  func(ctx context.Context, principal model.Principal, id int64, in ledger.Input) (*model.Transaction, error)
	deleteFn  func(ctx context.Context, principal model.Principal, id int64) error
}

func (m *mockTransactionService) Create(ctx context.Context, principal model.Principal, in ledger.Input) (*model.Transaction, error) {
	return m.createFn(ctx, principal, in)
}

func (m *mockTransactionService) List(ctx context.Context, principal model.Principal, start, end model.Date, page repository.PageRequest) (*repository.Page[*model.Transaction], error) {
	return m.listFn(ctx, principal, start, end, page)
}

func (m *mockTransactionService) Summary(ctx context.Context, principal model.Principal, start, end model.Date) (*model.TransactionSummary, error) {
	return m.summaryFn(ctx, principal, start, end)
}

func (m *mockTransactionService) Update(ctx context.Context, principal model.Principal, id int64, in ledger.Input) (*model.Transaction, error) {
	return m.updateFn(ctx, principal, id, in)
}

func (m *mockTransactionService) Delete(ctx context.Context, principal model.Principal, id int64) error {
	return m.deleteFn(ctx, principal, id)
}

func sampleTransaction(id, userID int64, amount string) *model.Transaction {
	return &model.Transaction{
		ID:              id,
		UserID:          userID,
		Type:            model.TransactionTypeExpense,
		Amount:          amount,
		Category:        "食費",
		TransactionDate: model.Date{Time: time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC)},
	}
}

// --- テスト ---

func TestTransactionHandler_Create_AcceptsNumberOrStringAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   string
	}{
		{"json number", `1200.50`, "1200.50"},
		{"json string", `"1200.50"`, "1200.50"},
		{"integer", `300`, "300"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ledger.Input
			svc := &mockTransactionService{
				createFn: func(ctx context.Context, principal model.Principal, in ledger.Input) (*model.Transaction, error) {
					got = in
					return sampleTransaction(1, principal.UserID, in.Amount), nil
				},
			}
			h := NewTransactionHandler(svc)

			body := `{"type":"EXPENSE","amount":` + tt.amount + `,"category":"食費","transactionDate":"2025-10-03"}`
			req := withPrincipal(httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body)), 2)
			w := httptest.NewRecorder()
			h.Create(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200; body = %s", w.Code, w.Body.String())
			}
			if got.Amount != tt.want || got.Type != model.TransactionTypeExpense || got.TransactionDate.String() != "2025-10-03" {
				t.Errorf("input = %+v", got)
			}
			// 金額は丸めずにJSONの数値として返す
			if !strings.Contains(w.Body.String(), `"amount":`+tt.want) {
				t.Errorf("body = %s", w.Body.String())
			}
		})
	}
}

func TestTransactionHandler_Create_InvalidDate_Returns400(t *testing.T) {
	h := NewTransactionHandler(&mockTransactionService{})

	body := `{"type":"INCOME","amount":100,"category":"給与","transactionDate":"2025/10/03"}`
	req := withPrincipal(httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body)), 2)
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestTransactionHandler_List_RequiresDateWindow(t *testing.T) {
	called := false
	svc := &mockTransactionService{
		listFn: func(ctx context.Context, principal model.Principal, start, end model.Date, page repository.PageRequest) (*repository.Page[*model.Transaction], error) {
			called = true
			if start.String() != "2025-10-01" || end.String() != "2025-10-31" {
				t.Errorf("window = %s .. %s", start, end)
			}
			return &repository.Page[*model.Transaction]{
				Content:       []*model.Transaction{sampleTransaction(1, 2, "10.00")},
				Size:          10,
				TotalElements: 1,
			}, nil
		},
	}
	h := NewTransactionHandler(svc)

	w := httptest.NewRecorder()
	h.List(w, withPrincipal(httptest.NewRequest(http.MethodGet, "/api/transactions?startDate=2025-10-01", nil), 2))
	if w.Code != http.StatusBadRequest || called {
		t.Errorf("missing endDate: status = %d, called = %v", w.Code, called)
	}

	w = httptest.NewRecorder()
	h.List(w, withPrincipal(httptest.NewRequest(http.MethodGet, "/api/transactions?startDate=2025-10-01&endDate=2025-10-31", nil), 2))
	if w.Code != http.StatusOK || !called {
		t.Fatalf("status = %d, called = %v; body = %s", w.Code, called, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"totalElements":1`) || !strings.Contains(w.Body.String(), `"first":true`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestTransactionHandler_Summary(t *testing.T) {
	svc := &mockTransactionService{
		summaryFn: func(ctx context.Context, principal model.Principal, start, end model.Date) (*model.TransactionSummary, error) {
			return &model.TransactionSummary{TotalIncome: "3000.00", TotalExpense: "1200.50", Balance: "1799.50"}, nil
		},
	}
	h := NewTransactionHandler(svc)

	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/api/transactions/summary?startDate=2025-10-01&endDate=2025-10-31", nil), 2)
	w := httptest.NewRecorder()
	h.Summary(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	want := `{"totalIncome":3000.00,"totalExpense":1200.50,"balance":1799.50}`
	if got := strings.TrimSpace(w.Body.String()); got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
}

func TestTransactionHandler_Delete_NotOwner(t *testing.T) {
	svc := &mockTransactionService{
		deleteFn: func(ctx context.Context, principal model.Principal, id int64) error {
			return model.ErrForbidden
		},
	}
	h := NewTransactionHandler(svc)

	req := withURLParam(withPrincipal(httptest.NewRequest(http.MethodDelete, "/api/transactions/8", nil), 2), "id", "8")
	w := httptest.NewRecorder()
	h.Delete(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
