package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tfinance/tfinance-api/internal/model"
	"github.com/tfinance/tfinance-api/internal/service"
	"github.com/tfinance/tfinance-api/internal/validation"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorResponse(msg string) model.MessageResponse {
	return model.MessageResponse{Message: msg}
}

// decodeJSON reads a JSON body into v and answers 400/413 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse(msgBodyTooLarge))
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse(msgBadRequestBody))
		return false
	}
	return true
}

// statusFor maps service errors to HTTP statuses. Unknown errors are 500.
func statusFor(err error) int {
	var ve *validation.Error
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrEmailNotConfirmed),
		errors.Is(err, service.ErrTokenMissing),
		errors.Is(err, service.ErrTokenInvalid),
		errors.Is(err, service.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrPremiumRequired):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, service.ErrAccountNotFound),
		errors.Is(err, service.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyPremium),
		errors.Is(err, service.ErrInvalidWebhook):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrGatewayUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the mapped status. Messages of 5xx errors are
// logged, not returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := clientMessage(err)
	switch {
	case status == http.StatusBadGateway:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("payment gateway call failed")
	case status >= http.StatusInternalServerError:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = msgInternalError
	}
	writeJSON(w, status, errorResponse(msg))
}
