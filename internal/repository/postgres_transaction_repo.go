package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/lifemanager/internal/model"
)

// TransactionSortColumns はListByUserAndDateBetweenで指定可能な並び順とカラムの対応。
var TransactionSortColumns = map[string]string{
	"transactionDate": "transaction_date",
	"amount":          "amount",
	"createdAt":       "created_at",
	"category":        "category",
}

// amountは文字列で読み出し、NUMERICの精度を保つ
const transactionColumns = `id, user_id, type, amount::text, category, description, transaction_date, created_at, updated_at`

// PostgresTransactionRepo はPostgreSQLを使用した取引リポジトリ。
type PostgresTransactionRepo struct {
	db *sql.DB
}

// NewPostgresTransactionRepo はPostgresTransactionRepoを生成する。
func NewPostgresTransactionRepo(db *sql.DB) *PostgresTransactionRepo {
	return &PostgresTransactionRepo{db: db}
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	t := &model.Transaction{}
	var typ string
	err := row.Scan(&t.ID, &t.UserID, &typ, &t.Amount, &t.Category, &t.Description,
		&t.TransactionDate.Time, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Type = model.TransactionType(typ)
	return t, nil
}

// FindByID は指定IDの取引を取得する。見つからない場合はnilを返す。
func (r *PostgresTransactionRepo) FindByID(ctx context.Context, id int64) (*model.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("取引の取得に失敗しました: %w", err)
	}
	return t, nil
}

// Create は取引を作成する。
func (r *PostgresTransactionRepo) Create(ctx context.Context, t *model.Transaction) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO transactions (user_id, type, amount, category, description, transaction_date)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, amount::text, created_at, updated_at`,
		t.UserID, string(t.Type), t.Amount, t.Category, t.Description, t.TransactionDate.Time,
	).Scan(&t.ID, &t.Amount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("取引の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は取引の内容を更新する。
func (r *PostgresTransactionRepo) Update(ctx context.Context, t *model.Transaction) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE transactions
		 SET type = $2, amount = $3, category = $4, description = $5, transaction_date = $6, updated_at = NOW()
		 WHERE id = $1
		 RETURNING amount::text, updated_at`,
		t.ID, string(t.Type), t.Amount, t.Category, t.Description, t.TransactionDate.Time,
	).Scan(&t.Amount, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("transaction not found: %d", t.ID)
	}
	if err != nil {
		return fmt.Errorf("取引の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDの取引を削除する。
func (r *PostgresTransactionRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("取引の削除に失敗しました: %w", err)
	}
	return nil
}

// ListByUserAndDateBetween は期間内の取引をページ単位で返す。
func (r *PostgresTransactionRepo) ListByUserAndDateBetween(ctx context.Context, userID int64, start, end model.Date, page PageRequest) ([]*model.Transaction, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE user_id = $1 AND transaction_date BETWEEN $2 AND $3`,
		userID, start.Time, end.Time,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("取引数の取得に失敗しました: %w", err)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = $1 AND transaction_date BETWEEN $2 AND $3` +
		orderBy(TransactionSortColumns, "transaction_date", page) + ` LIMIT $4 OFFSET $5`
	rows, err := r.db.QueryContext(ctx, query, userID, start.Time, end.Time, page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("取引一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	txs := make([]*model.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("取引のスキャンに失敗しました: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("取引の読み込み中にエラーが発生しました: %w", err)
	}
	return txs, total, nil
}

// Summarize は期間内の収入・支出合計と差額をSQLで集計する。
func (r *PostgresTransactionRepo) Summarize(ctx context.Context, userID int64, start, end model.Date) (*model.TransactionSummary, error) {
	summary := &model.TransactionSummary{}
	err := r.db.QueryRowContext(ctx,
		`SELECT
			income::text,
			expense::text,
			(income - expense)::text
		 FROM (
			SELECT
				COALESCE(SUM(amount) FILTER (WHERE type = 'INCOME'), 0)::numeric(15,2)  AS income,
				COALESCE(SUM(amount) FILTER (WHERE type = 'EXPENSE'), 0)::numeric(15,2) AS expense
			FROM transactions
			WHERE user_id = $1 AND transaction_date BETWEEN $2 AND $3
		 ) totals`,
		userID, start.Time, end.Time,
	).Scan(&summary.TotalIncome, &summary.TotalExpense, &summary.Balance)
	if err != nil {
		return nil, fmt.Errorf("取引の集計に失敗しました: %w", err)
	}
	return summary, nil
}

// compile-time interface check
var _ TransactionRepository = (*PostgresTransactionRepo)(nil)
