package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clipstream/backend/internal/apperror"
	"github.com/clipstream/backend/internal/logging"
)

// Envelope is the uniform response wrapper every endpoint returns.
type Envelope struct {
	StatusCode int      `json:"statusCode"`
	Data       any      `json:"data"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

// respondJSON writes a success envelope.
func respondJSON(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	writeEnvelope(ctx, w, Envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status >= 200 && status < 300,
		Errors:     []string{},
	})
}

// respondError maps the error taxonomy onto a status code and writes an
// error envelope. Causes outside the taxonomy are logged and rendered as a
// generic internal error so no detail leaks to the client.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	status := apperror.StatusCode(err)
	message := err.Error()

	logger := logging.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		var appErr *apperror.Error
		if errors.As(err, &appErr) && appErr.Cause != nil {
			logger.Error("request failed", "status", status, "message", message, "cause", appErr.Cause)
		} else {
			logger.Error("request failed", "status", status, "error", err)
		}
		message = "internal server error"
	} else {
		logger.Warn("request returned client error", "status", status, "error", message)
	}

	writeEnvelope(ctx, w, Envelope{
		StatusCode: status,
		Data:       nil,
		Message:    message,
		Success:    false,
		Errors:     []string{message},
	})
}

func writeEnvelope(ctx context.Context, w http.ResponseWriter, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.StatusCode)

	if err := json.NewEncoder(w).Encode(env); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", env.StatusCode, "error", err)
	}
}

// Rejecter lets the auth middleware render its rejections through the
// uniform envelope.
type Rejecter struct{}

// Reject writes an error envelope with the given status and message.
func (Rejecter) Reject(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeEnvelope(r.Context(), w, Envelope{
		StatusCode: status,
		Data:       nil,
		Message:    message,
		Success:    false,
		Errors:     []string{message},
	})
}
