package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"servingd/internal/manager"
	"servingd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeOutcome writes the response envelope shared by the control endpoints.
func writeOutcome(w http.ResponseWriter, code int, status, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(types.Outcome{Status: status, Message: msg, Data: data})
}

// writeJSONError writes a failure envelope whose class is derived from the HTTP code.
func writeJSONError(w http.ResponseWriter, code int, msg string) {
	writeOutcome(w, code, statusClass(code), msg, nil)
}

func statusClass(code int) string {
	switch code {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return types.StatusBadRequest
	case http.StatusUnauthorized:
		return types.StatusUnauthorized
	case http.StatusForbidden:
		return types.StatusForbidden
	case http.StatusNotFound:
		return types.StatusNotFound
	case http.StatusNotAcceptable:
		return types.StatusNotAcceptable
	case http.StatusServiceUnavailable, http.StatusTooManyRequests:
		return types.StatusResourceExhausted
	default:
		if code < 400 {
			return types.StatusSuccess
		}
		return types.StatusException
	}
}

// statusFor maps orchestrator errors to an HTTP status code.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case manager.IsNotFound(err):
		return http.StatusNotFound
	case manager.IsResourceExhausted(err), manager.IsShuttingDown(err):
		return http.StatusServiceUnavailable
	case manager.IsModelExecutionError(err):
		return http.StatusNotAcceptable
	case manager.IsRetriesExhausted(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &he):
		return he.StatusCode()
	default:
		return http.StatusInternalServerError
	}
}
