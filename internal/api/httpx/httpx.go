package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sellium/payments-backend/internal/errs"
)

type APIError struct {
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, msg string, details interface{}) {
	WriteJSON(w, status, APIError{
		Error:   msg,
		Code:    code,
		Details: details,
	})
}

// WriteDomainError maps the error taxonomy to HTTP statuses. Provider
// failures surface as a generic upstream error; compensation has already
// run by the time they reach a handler.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errs.IsValidation(err):
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, errs.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrDuplicate):
		WriteError(w, http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, errs.ErrInsufficientFunds):
		WriteError(w, http.StatusUnprocessableEntity, "insufficient_funds", err.Error(), nil)
	case errors.Is(err, errs.ErrUnsupported):
		WriteError(w, http.StatusNotImplemented, "unsupported", err.Error(), nil)
	case errs.IsProvider(err):
		WriteError(w, http.StatusBadGateway, "provider_error", "payment processor request failed", nil)
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}
