package model

import "github.com/shopspring/decimal"

// BankAccount is a named balance owned by a user.
type BankAccount struct {
	ID      int64
	UserID  int64
	Name    string
	Balance decimal.Decimal
}

// BankAccountRequest is the body of an account creation request.
type BankAccountRequest struct {
	Name string `json:"name" validate:"required,min=7,max=100"`
}

// BankAccountResponse is a bank account as the client sees it. Balance is
// a JSON number because the dashboard formats it with toLocaleString.
type BankAccountResponse struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
}

// ToResponse converts the account for the API.
func (a *BankAccount) ToResponse() BankAccountResponse {
	return BankAccountResponse{ID: a.ID, Name: a.Name, Balance: a.Balance.InexactFloat64()}
}
