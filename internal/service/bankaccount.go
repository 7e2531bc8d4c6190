package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tfinance/tfinance-api/internal/model"
	"github.com/tfinance/tfinance-api/internal/repository"
	"github.com/tfinance/tfinance-api/internal/validation"
)

var ErrAccountNotFound = errors.New("bank account not found")

// BankAccountService handles bank account business logic.
type BankAccountService struct {
	repo     BankAccountStore
	validate *validator.Validate
}

// NewBankAccountService creates a new BankAccountService.
func NewBankAccountService(repo BankAccountStore, validate *validator.Validate) *BankAccountService {
	return &BankAccountService{repo: repo, validate: validate}
}

// List returns all accounts of a user ordered by id.
func (s *BankAccountService) List(ctx context.Context, userID int64) ([]model.BankAccountResponse, error) {
	accounts, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return accountsToResponse(accounts), nil
}

// Create opens an account with a zero balance.
func (s *BankAccountService) Create(ctx context.Context, userID int64, req model.BankAccountRequest) (model.BankAccountResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.Struct(s.validate, req); err != nil {
		return model.BankAccountResponse{}, err
	}

	account := model.BankAccount{
		UserID:  userID,
		Name:    req.Name,
		Balance: decimal.Zero,
	}
	if err := s.repo.Create(ctx, &account); err != nil {
		return model.BankAccountResponse{}, err
	}
	return account.ToResponse(), nil
}

// Delete removes an account owned by userID.
func (s *BankAccountService) Delete(ctx context.Context, userID, id int64) error {
	err := s.repo.Delete(ctx, userID, id)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return ErrAccountNotFound
	}
	return err
}

// accountsToResponse converts accounts for the API. Never returns nil.
func accountsToResponse(accounts []model.BankAccount) []model.BankAccountResponse {
	result := make([]model.BankAccountResponse, len(accounts))
	for i := range accounts {
		result[i] = accounts[i].ToResponse()
	}
	return result
}
