package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/tellerline/teller/internal/bank"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// errRateLimited is returned to clients that exhausted their token bucket.
var errRateLimited = errors.New("too many requests")

// errEmptyBody is returned by decode when the request has no body at all.
var errEmptyBody = fmt.Errorf("%w: request body is empty", bank.ErrInvalidInput)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// classify maps a service error onto an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, bank.ErrInvalidInput), errors.Is(err, bank.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, bank.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, bank.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, bank.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, bank.ErrInsufficientFunds):
		return http.StatusConflict, "insufficient_funds"
	case errors.Is(err, bank.ErrLimitExceeded):
		return http.StatusConflict, "limit_exceeded"
	case errors.Is(err, bank.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, bank.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError renders err as {"error":{"code","message"}}. Internal errors are
// logged and replaced with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}

// decode reads a JSON body into dst, rejecting unknown fields and trailing data.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("%w: decoding body: %v", bank.ErrInvalidInput, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON body", bank.ErrInvalidInput)
	}
	return nil
}
