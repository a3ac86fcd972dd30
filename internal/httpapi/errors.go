package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"ingestd/internal/gate"
	"ingestd/pkg/types"
)

// emitStatus maps an Emit result to an HTTP status. A consumer-reported
// failure is a completed cycle and stays 200 with ok=false.
func emitStatus(err error) int {
	switch {
	case err == nil, gate.IsRejected(err):
		return http.StatusOK
	case gate.IsNoListener(err):
		return http.StatusServiceUnavailable
	case gate.IsBusy(err):
		return http.StatusTooManyRequests
	case gate.IsTimeout(err):
		return http.StatusGatewayTimeout
	case errors.Is(err, gate.ErrUnsubscribed),
		errors.Is(err, gate.ErrDispatch),
		errors.Is(err, gate.ErrUnresolved):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// resolveStatus maps a Resolve error to an HTTP status.
func resolveStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusNoContent
	case gate.IsProtocolViolation(err):
		return http.StatusConflict
	case errors.Is(err, gate.ErrInvalidOutcome):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
