package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/example/eventshop/internal/apperr"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
	Fields  []string    `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondError maps a failure to the error envelope. Untyped errors are
// logged and surfaced as a generic 500 so internals never leak.
func respondError(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		log.Printf("[API] internal error: %v", err)
		appErr = apperr.New(apperr.CodeInternal, "internal server error")
	}
	respondJSON(w, apperr.StatusOf(appErr), errorBody{Error: errorDetail{
		Code:    appErr.Code,
		Message: appErr.Message,
		Fields:  appErr.Fields,
	}})
}

func respondCode(w http.ResponseWriter, code apperr.Code, message string) {
	respondError(w, apperr.New(code, message))
}

// decodeJSON rejects unparseable bodies with VALIDATION_ERROR.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.New(apperr.CodeValidationError, "invalid request body")
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter) {
	respondJSON(w, http.StatusMethodNotAllowed, errorBody{Error: errorDetail{
		Code:    apperr.CodeValidationError,
		Message: "method not allowed",
	}})
}
