package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/lifemanager/internal/model"
	"github.com/hitoshi/lifemanager/internal/repository"
	"github.com/hitoshi/lifemanager/internal/security"
)

// --- モック ---

type mockTransactionRepo struct {
	findByIDFn  func(ctx context.Context, id int64) (*model.Transaction, error)
	createFn    func(ctx context.Context, tx *model.Transaction) error
	updateFn    func(ctx context.Context, tx *model.Transaction) error
	deleteFn    func(ctx context.Context, id int64) error
	listFn      func(ctx context.Context, userID int64, start, end model.Date, page repository.PageRequest) ([]*model.Transaction, int, error)
	summarizeFn func(ctx context.Context, userID int64, start, end model.Date) (*model.TransactionSummary, error)
}

func (m *mockTransactionRepo) FindByID(ctx context.Context, id int64) (*model.Transaction, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockTransactionRepo) Create(ctx context.Context, tx *model.Transaction) error {
	if m.createFn != nil {
		return m.createFn(ctx, tx)
	}
	tx.ID = 1
	return nil
}
func (m *mockTransactionRepo) Update(ctx context.Context, tx *model.Transaction) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, tx)
	}
	return nil
}
func (m *mockTransactionRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}
func (m *mockTransactionRepo) ListByUserAndDateBetween(ctx context.Context, userID int64, start, end model.Date, page repository.PageRequest) ([]*model.Transaction, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, start, end, page)
	}
	return nil, 0, nil
}
func (m *mockTransactionRepo) Summarize(ctx context.Context, userID int64, start, end model.Date) (*model.TransactionSummary, error) {
	if m.summarizeFn != nil {
		return m.summarizeFn(ctx, userID, start, end)
	}
	return &model.TransactionSummary{TotalIncome: "0.00", TotalExpense: "0.00", Balance: "0.00"}, nil
}

type mockUserFinder struct {
	findByIDFn func(ctx context.Context, id int64) (*model.User, error)
}

func (m *mockUserFinder) FindByID(ctx context.Context, id int64) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return &model.User{ID: id}, nil
}

// --- ヘルパー ---

var (
	owner    = model.Principal{UserID: 1}
	stranger = model.Principal{UserID: 2}
)

func mustDate(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q) error = %v", s, err)
	}
	return d
}

func validInput(t *testing.T) Input {
	return Input{
		Type:            model.TransactionTypeExpense,
		Amount:          "1200.50",
		Category:        "食費",
		Description:     "ランチ",
		TransactionDate: mustDate(t, "2025-10-01"),
	}
}

func newTestService(repo *mockTransactionRepo) *Service {
	return NewService(repo, &mockUserFinder{}, security.NewTextSanitizer())
}

// --- テスト ---

func TestService_Create(t *testing.T) {
	var saved *model.Transaction
	repo := &mockTransactionRepo{
		createFn: func(ctx context.Context, tx *model.Transaction) error {
			saved = tx
			tx.ID = 3
			return nil
		},
	}

	got, err := newTestService(repo).Create(context.Background(), owner, validInput(t))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got.ID != 3 || saved.UserID != 1 || saved.Amount != "1200.50" || saved.TransactionDate.String() != "2025-10-01" {
		t.Errorf("saved = %+v", saved)
	}
}

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *Input)
	}{
		{"種別なし", func(in *Input) { in.Type = "" }},
		{"未知の種別", func(in *Input) { in.Type = "TRANSFER" }},
		{"金額なし", func(in *Input) { in.Amount = "" }},
		{"金額ゼロ", func(in *Input) { in.Amount = "0.00" }},
		{"負の金額", func(in *Input) { in.Amount = "-5" }},
		{"小数点以下3桁", func(in *Input) { in.Amount = "1.005" }},
		{"数値以外", func(in *Input) { in.Amount = "1e3" }},
		{"桁あふれ", func(in *Input) { in.Amount = "12345678901234" }},
		{"カテゴリなし", func(in *Input) { in.Category = "" }},
		{"取引日なし", func(in *Input) { in.TransactionDate = model.Date{} }},
	}

	svc := newTestService(&mockTransactionRepo{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput(t)
			tt.mutate(&in)
			if _, err := svc.Create(context.Background(), owner, in); !errors.Is(err, model.ErrValidation) {
				t.Errorf("Create() error = %v, want validation error", err)
			}
		})
	}
}

func TestService_Create_AcceptsAmountForms(t *testing.T) {
	svc := newTestService(&mockTransactionRepo{})
	for _, amount := range []string{"80", "0.01", "80.5", " 3000.50 "} {
		in := validInput(t)
		in.Amount = amount
		if _, err := svc.Create(context.Background(), owner, in); err != nil {
			t.Errorf("Create(amount=%q) error = %v", amount, err)
		}
	}
}

func TestService_UpdateAndDelete_RequireOwner(t *testing.T) {
	mutated := 0
	repo := &mockTransactionRepo{
		findByIDFn: func(ctx context.Context, id int64) (*model.Transaction, error) {
			return &model.Transaction{ID: id, UserID: 1, Type: model.TransactionTypeIncome, Amount: "10.00"}, nil
		},
		updateFn: func(ctx context.Context, tx *model.Transaction) error {
			mutated++
			return nil
		},
		deleteFn: func(ctx context.Context, id int64) error {
			mutated++
			return nil
		},
	}
	svc := newTestService(repo)

	if _, err := svc.Update(context.Background(), stranger, 9, validInput(t)); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("Update() by stranger error = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(context.Background(), stranger, 9); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("Delete() by stranger error = %v, want ErrForbidden", err)
	}
	if mutated != 0 {
		t.Fatalf("mutations applied for non-owner: %d", mutated)
	}

	got, err := svc.Update(context.Background(), owner, 9, validInput(t))
	if err != nil {
		t.Fatalf("Update() by owner error = %v", err)
	}
	if got.Type != model.TransactionTypeExpense || got.Amount != "1200.50" {
		t.Errorf("updated = %+v", got)
	}
	if err := svc.Delete(context.Background(), owner, 9); err != nil {
		t.Errorf("Delete() by owner error = %v", err)
	}
	if mutated != 2 {
		t.Errorf("mutations = %d, want 2", mutated)
	}
}

func TestService_NotFound(t *testing.T) {
	svc := newTestService(&mockTransactionRepo{})

	if _, err := svc.Update(context.Background(), owner, 404, validInput(t)); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(context.Background(), owner, 404); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestService_ListAndSummary(t *testing.T) {
	start, end := mustDate(t, "2025-10-01"), mustDate(t, "2025-10-31")
	var gotPage repository.PageRequest
	repo := &mockTransactionRepo{
		listFn: func(ctx context.Context, userID int64, s, e model.Date, page repository.PageRequest) ([]*model.Transaction, int, error) {
			gotPage = page
			return []*model.Transaction{{ID: 1}}, 1, nil
		},
		summarizeFn: func(ctx context.Context, userID int64, s, e model.Date) (*model.TransactionSummary, error) {
			if userID != 1 || s != start || e != end {
				t.Errorf("Summarize(%d, %s, %s)", userID, s, e)
			}
			return &model.TransactionSummary{TotalIncome: "3000.50", TotalExpense: "120.25", Balance: "2880.25"}, nil
		},
	}
	svc := newTestService(repo)

	page, err := svc.List(context.Background(), owner, start, end, repository.PageRequest{Page: 0})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if gotPage.SortBy != DefaultSortBy || page.TotalElements != 1 {
		t.Errorf("page request = %+v, page = %+v", gotPage, page)
	}

	summary, err := svc.Summary(context.Background(), owner, start, end)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.Balance != "2880.25" {
		t.Errorf("Balance = %q", summary.Balance)
	}

	if _, err := svc.Summary(context.Background(), owner, end, start); !errors.Is(err, model.ErrValidation) {
		t.Errorf("Summary() with reversed window error = %v", err)
	}
	if _, err := svc.List(context.Background(), owner, model.Date{}, end, repository.PageRequest{}); !errors.Is(err, model.ErrValidation) {
		t.Errorf("List() without start error = %v", err)
	}
}
