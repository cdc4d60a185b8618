package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/floralens/identify/internal/adapters/inbound/http/middleware"
)

const apiVersion = "v1"

type (
	// ResponseMeta contains response metadata for tracing and API versioning.
	ResponseMeta struct {
		RequestID     string `json:"requestId"`
		CorrelationID string `json:"correlationId,omitempty"`
		APIVersion    string `json:"apiVersion"`
	}

	// EnvelopedResponse wraps response data with metadata.
	EnvelopedResponse struct {
		Data any          `json:"data"`
		Meta ResponseMeta `json:"meta"`
	}

	// ErrorResponse is the error body shared by every endpoint.
	ErrorResponse struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	}
)

// NewMeta creates response metadata from the request context.
func NewMeta(r *http.Request) ResponseMeta {
	return ResponseMeta{
		RequestID:     middleware.GetRequestID(r.Context()),
		CorrelationID: middleware.GetCorrelationID(r.Context()),
		APIVersion:    apiVersion,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
