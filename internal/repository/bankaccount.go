package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/tfinance/tfinance-api/internal/model"
)

var ErrAccountNotFound = errors.New("bank account not found")

// BankAccountRepository handles bank account persistence. Every query is
// scoped to the owning user.
type BankAccountRepository struct {
	db DBTX
}

func NewBankAccountRepository(db DBTX) *BankAccountRepository {
	return &BankAccountRepository{db: db}
}

// Create inserts the account and sets its generated ID.
func (r *BankAccountRepository) Create(ctx context.Context, a *model.BankAccount) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO bank_accounts (user_id, name, balance) VALUES (?, ?, ?)`,
		a.UserID, a.Name, a.Balance.StringFixed(2))
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// ListByUser returns the user's accounts ordered by id.
func (r *BankAccountRepository) ListByUser(ctx context.Context, userID int64) ([]model.BankAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, balance FROM bank_accounts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []model.BankAccount
	for rows.Next() {
		var (
			a       model.BankAccount
			balance decimal.Decimal
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &balance); err != nil {
			return nil, err
		}
		a.Balance = balance
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Delete removes the account if it belongs to userID.
func (r *BankAccountRepository) Delete(ctx context.Context, userID, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bank_accounts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}
