package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/lasource18/options-price-calculator/internal/domain"
)

// maxBodyBytes bounds request bodies; pricing requests are a few hundred bytes.
const maxBodyBytes = 1 << 16

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code        int    `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Detail      any    `json:"detail,omitempty"`
}

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"code":500,"name":"Internal Server Error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends an error body for status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{
		Code:        status,
		Name:        http.StatusText(status),
		Description: msg,
	})
}

// statusFor maps the pricing error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrNumericalDomain):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNonConvergence),
		errors.Is(err, domain.ErrLookup),
		errors.Is(err, domain.ErrBudgetExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status. Unexpected errors are
// logged and hidden from the client. detail, if non-nil, is attached to
// client errors (e.g. the best implied volatility found).
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error, detail any) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("error", err.Error()),
		)
		writeError(w, status, op+" failed")
		return
	}
	writeJSON(w, status, errorBody{
		Code:        status,
		Name:        http.StatusText(status),
		Description: err.Error(),
		Detail:      detail,
	})
}

// decodeJSON reads a single JSON object from the body into v, rejecting
// unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %v: %w", err, domain.ErrInvalidInput)
	}
	return nil
}

// pathParam extracts a named path parameter using Go 1.22+ routing.
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}
