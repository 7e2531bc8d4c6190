package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tfinance/tfinance-api/internal/middleware"
	"github.com/tfinance/tfinance-api/internal/model"
)

// BankAccountService is the account behaviour the handlers need.
type BankAccountService interface {
	List(ctx context.Context, userID int64) ([]model.BankAccountResponse, error)
	Create(ctx context.Context, userID int64, req model.BankAccountRequest) (model.BankAccountResponse, error)
	Delete(ctx context.Context, userID, id int64) error
}

// BankAccountHandler handles HTTP requests for bank account operations.
type BankAccountHandler struct {
	service BankAccountService
}

// NewBankAccountHandler creates a new BankAccountHandler.
func NewBankAccountHandler(svc BankAccountService) *BankAccountHandler {
	return &BankAccountHandler{service: svc}
}

// HandleList handles GET /api/user/bank-account requests.
func (h *BankAccountHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse(msgUnauthorized))
		return
	}

	accounts, err := h.service.List(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, accounts)
}

// HandleCreate handles POST /api/user/bank-account requests.
func (h *BankAccountHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse(msgUnauthorized))
		return
	}

	var req model.BankAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Create(r.Context(), p.UserID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// HandleDelete handles DELETE /api/user/bank-account/{id} requests.
func (h *BankAccountHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse(msgUnauthorized))
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse(msgInvalidAccountID))
		return
	}

	if err := h.service.Delete(r.Context(), p.UserID, id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleDeprecatedPremium handles POST /api/user/premium, which was replaced
// by the payment flow.
func HandleDeprecatedPremium(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusBadRequest, errorResponse(msgDeprecated))
}
