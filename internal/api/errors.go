package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-devialet/internal/devialet"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest        = "bad_request"
	ErrCodeNotFound          = "not_found"
	ErrCodeInternal          = "internal_error"
	ErrCodeValidation        = "validation_error"
	ErrCodeMethodNotAllow    = "method_not_allowed"
	ErrCodeUnsupported       = "unsupported_feature"
	ErrCodeDeviceUnavailable = "device_unavailable"
	ErrCodeDeviceError       = "device_error"
	ErrCodeNoState           = "no_state"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDeviceError maps a devialet error onto an HTTP status.
//
//	validation   400
//	unsupported  409
//	device       502
//	connection   503
func writeDeviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, devialet.ErrValidation):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, devialet.ErrUnsupportedFeature):
		writeError(w, http.StatusConflict, ErrCodeUnsupported, err.Error())
	case errors.Is(err, devialet.ErrConnection):
		writeError(w, http.StatusServiceUnavailable, ErrCodeDeviceUnavailable, err.Error())
	case errors.Is(err, devialet.ErrDevice):
		writeError(w, http.StatusBadGateway, ErrCodeDeviceError, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
