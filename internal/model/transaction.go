package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TransactionType は収入/支出の種別を表す。
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "INCOME"
	TransactionTypeExpense TransactionType = "EXPENSE"
)

// Valid は定義済みの種別かどうかを返す。
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// Transaction は収入・支出の記録を表す。
// Amountは小数点以下2桁までの10進数文字列（NUMERIC(15,2)）で保持し、浮動小数点演算を避ける。
type Transaction struct {
	ID              int64
	UserID          int64
	Type            TransactionType
	Amount          string
	Category        string
	Description     string
	TransactionDate Date
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OwnerID は記録を所有するユーザーIDを返す。
func (t *Transaction) OwnerID() int64 {
	return t.UserID
}

// TransactionSummary は期間内の収入・支出の集計結果を表す。
type TransactionSummary struct {
	TotalIncome  string
	TotalExpense string
	Balance      string
}

// dateLayout は取引日のJSON/クエリ表現。
const dateLayout = "2006-01-02"

// Date は時刻を持たない日付を表す。JSONでは "YYYY-MM-DD" 形式になる。
type Date struct {
	time.Time
}

// ParseDate は "YYYY-MM-DD" 形式の文字列をDateに変換する。
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// String は "YYYY-MM-DD" 形式を返す。
func (d Date) String() string {
	return d.Format(dateLayout)
}

// MarshalJSON はjson.Marshalerを実装する。
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
