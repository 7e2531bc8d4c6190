package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tfinance/tfinance-api/internal/job"
	"github.com/tfinance/tfinance-api/internal/model"
	"github.com/tfinance/tfinance-api/internal/repository"
	"github.com/tfinance/tfinance-api/internal/storage"
	"github.com/tfinance/tfinance-api/internal/yookassa"
)

type fakeUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*model.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[int64]*model.User{}}
}

func (f *fakeUsers) add(u model.User) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u.ID = f.nextID
	f.byID[u.ID] = &u
	return &u
}

func (f *fakeUsers) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == user.Email || u.Login == user.Login {
			return repository.ErrDuplicateUser
		}
	}
	f.nextID++
	user.ID = f.nextID
	cp := *user
	f.byID[user.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByLoginOrEmail(_ context.Context, value string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Login == value {
			cp := *u
			return &cp, nil
		}
	}
	for _, u := range f.byID {
		if u.Email == value {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUsers) ExistsByEmailOrLogin(_ context.Context, email, login string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email || u.Login == login {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) confirm(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.IsEmailConfirmed = true
	return nil
}

func (f *fakeUsers) grant(id int64, from, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.IsPremium = true
	u.PremiumCreatedAt = &from
	u.PremiumExpiresAt = &until
	return nil
}

type fakeSessions struct {
	mu   sync.Mutex
	byID map[string]model.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byID: map[string]model.Session{}}
}

func (f *fakeSessions) Create(_ context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[s.ID] = *s
	return nil
}

func (f *fakeSessions) Get(_ context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return &s, nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

func (f *fakeSessions) DeleteByUser(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.byID {
		if s.UserID == userID {
			delete(f.byID, id)
		}
	}
	return nil
}

func (f *fakeSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.byID {
		if s.Expired(now) {
			delete(f.byID, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

type fakeTokens struct {
	mu     sync.Mutex
	users  *fakeUsers
	nextID int64
	tokens []*model.EmailVerificationToken
	purged time.Time
}

func newFakeTokens(users *fakeUsers) *fakeTokens {
	return &fakeTokens{users: users}
}

func (f *fakeTokens) Create(_ context.Context, t *model.EmailVerificationToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t.ID = f.nextID
	cp := *t
	f.tokens = append(f.tokens, &cp)
	return nil
}

func (f *fakeTokens) GetActiveByToken(_ context.Context, token string) (*model.EmailVerificationToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.Token == token && !t.IsUsed {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrTokenNotFound
}

func (f *fakeTokens) Confirm(_ context.Context, t *model.EmailVerificationToken) error {
	if err := f.users.confirm(t.UserID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stored := range f.tokens {
		if stored.ID == t.ID {
			stored.IsUsed = true
			return nil
		}
	}
	return repository.ErrTokenNotFound
}

func (f *fakeTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purged = now
	return 0, nil
}

func (f *fakeTokens) expire(token string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.Token == token {
			t.ExpiresAt = at
		}
	}
}

func (f *fakeTokens) all() []model.EmailVerificationToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.EmailVerificationToken, len(f.tokens))
	for i, t := range f.tokens {
		out[i] = *t
	}
	return out
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []job.VerificationEmail
	err  error
}

func (f *fakeDispatcher) EnqueueVerificationEmail(_ context.Context, p job.VerificationEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, p)
	return nil
}

func (f *fakeDispatcher) Close() error { return nil }

func (f *fakeDispatcher) emails() []job.VerificationEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]job.VerificationEmail(nil), f.sent...)
}

type fakePayments struct {
	mu     sync.Mutex
	users  *fakeUsers
	nextID int64
	byID   map[string]*model.Payment
	grants int
}

func newFakePayments(users *fakeUsers) *fakePayments {
	return &fakePayments{users: users, byID: map[string]*model.Payment{}}
}

func (f *fakePayments) Create(_ context.Context, p *model.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[p.ProviderPaymentID]; ok {
		return repository.ErrDuplicatePayment
	}
	f.nextID++
	p.ID = f.nextID
	cp := *p
	f.byID[p.ProviderPaymentID] = &cp
	return nil
}

func (f *fakePayments) GetByProviderID(_ context.Context, providerID string) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[providerID]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePayments) UpdateStatus(_ context.Context, id int64, status string, paidAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		if p.ID == id {
			p.Status = status
			if paidAt != nil {
				p.PaidAt = paidAt
			}
			return nil
		}
	}
	return repository.ErrPaymentNotFound
}

func (f *fakePayments) Complete(ctx context.Context, p *model.Payment, grant bool, from, until time.Time) error {
	if grant {
		if err := f.users.grant(p.UserID, from, until); err != nil {
			return err
		}
		f.mu.Lock()
		f.grants++
		f.mu.Unlock()
	}
	return f.UpdateStatus(ctx, p.ID, p.Status, p.PaidAt)
}

type fakeGateway struct {
	mu        sync.Mutex
	payments  map[string]*yookassa.Payment
	createErr error
	getErr    error
	created   int
	lastDesc  string
	lastPrice decimal.Decimal
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: map[string]*yookassa.Payment{}}
}

func (f *fakeGateway) CreatePayment(_ context.Context, amount decimal.Decimal, currency, description string, _ int64) (*yookassa.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created++
	f.lastDesc = description
	f.lastPrice = amount
	created := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	p := &yookassa.Payment{
		ID:           fmt.Sprintf("pay-%d", f.created),
		Status:       "pending",
		Amount:       &yookassa.Amount{Value: amount.StringFixed(2), Currency: currency},
		Confirmation: &yookassa.Confirmation{Type: "redirect", ConfirmationURL: "https://yoomoney.ru/checkout?id=1"},
		CreatedAt:    &created,
	}
	f.payments[p.ID] = p
	return p, nil
}

func (f *fakeGateway) GetPayment(_ context.Context, id string) (*yookassa.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.payments[id]
	if !ok {
		return nil, &yookassa.APIError{StatusCode: 404, Body: "not found"}
	}
	cp := *p
	return &cp, nil
}

func (f *fakeGateway) set(id, status string, paidAt *time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[id] = &yookassa.Payment{ID: id, Status: status, PaidAt: paidAt}
}

type fakeAccounts struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]model.BankAccount
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: map[int64]model.BankAccount{}}
}

func (f *fakeAccounts) Create(_ context.Context, a *model.BankAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	a.ID = f.nextID
	f.accounts[a.ID] = *a
	return nil
}

func (f *fakeAccounts) ListByUser(_ context.Context, userID int64) ([]model.BankAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.BankAccount
	for _, a := range f.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAccounts) Delete(_ context.Context, userID, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok || a.UserID != userID {
		return repository.ErrAccountNotFound
	}
	delete(f.accounts, id)
	return nil
}

type fakeFiles struct {
	objects map[string][]byte
}

func (f *fakeFiles) Open(_ context.Context, key string) (io.ReadCloser, storage.Object, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.Object{}, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), storage.Object{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: "application/zip",
	}, nil
}
