package api //nolint:revive // package name is intentional

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/tripmux"
	llmerrors "github.com/blueberrycongee/tripmux/pkg/errors"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes the error payload.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

const (
	typeInvalidRequest = "invalid_request_error"
	typeUpstream       = "upstream_error"
	typeUnavailable    = "service_unavailable"
	typeInternal       = "internal_error"
)

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, detail := h.describeError(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(ErrorResponse{Error: detail}); encErr != nil {
		h.logger.Error("failed to encode error response", "error", encErr)
	}
}

func (h *Handler) describeError(err error) (int, ErrorDetail) {
	switch {
	case errors.Is(err, tripmux.ErrInvalidRequest):
		return http.StatusBadRequest, ErrorDetail{Message: err.Error(), Type: typeInvalidRequest}
	case errors.Is(err, tripmux.ErrClientClosed):
		return http.StatusServiceUnavailable, ErrorDetail{Message: err.Error(), Type: typeUnavailable}
	}

	var e *llmerrors.Error
	if !errors.As(err, &e) {
		// Unclassified errors never reach the client verbatim.
		return http.StatusInternalServerError, ErrorDetail{Message: "internal server error", Type: typeInternal}
	}
	return e.HTTPStatusCode(), ErrorDetail{
		Message: h.redactor.Redact(e.Message),
		Type:    typeUpstream,
		Code:    string(e.Kind),
	}
}

func invalidRequest(msg string) error {
	return fmt.Errorf("%w: %s", tripmux.ErrInvalidRequest, msg)
}
