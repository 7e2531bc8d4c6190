package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tfinance/tfinance-api/internal/middleware"
	"github.com/tfinance/tfinance-api/internal/model"
)

// PaymentService is the payment behaviour the handlers need.
type PaymentService interface {
	CreatePremiumPayment(ctx context.Context, userID int64) (model.CreatePaymentResponse, error)
	HandleWebhook(ctx context.Context, body []byte) error
	GetStatus(ctx context.Context, userID int64, providerID string) (model.PaymentStatusResponse, error)
}

// PaymentHandler handles HTTP requests for premium payments.
type PaymentHandler struct {
	service PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentService) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

// HandleCreate handles POST /api/payment/create requests.
func (h *PaymentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse(msgUnauthorized))
		return
	}

	resp, err := h.service.CreatePremiumPayment(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleWebhook handles POST /api/payment/webhook notifications from the gateway.
func (h *PaymentHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(msgBadRequestBody))
		return
	}

	if err := h.service.HandleWebhook(r.Context(), body); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, errorResponse(msgWebhookProcessed))
}

// HandleStatus handles GET /api/payment/status/{paymentId} requests.
func (h *PaymentHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse(msgUnauthorized))
		return
	}

	resp, err := h.service.GetStatus(r.Context(), p.UserID, chi.URLParam(r, "paymentId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
