// Package handlers implements the HTTP handlers for the browse API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Error codes carried in the response envelope.
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
	CodeNotFound          = "NOT_FOUND"
	CodeGenerationTimeout = "GENERATION_TIMEOUT"
	CodeGenerationFailed  = "GENERATION_FAILED"
)

// Response is the uniform envelope for every JSON response.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorInfo describes a failed request. Message must always be safe to show
// to callers.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)

	// The status line is already out, so an encode failure can only be
	// abandoned here.
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful envelope around data.
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// WriteError writes a failure envelope.
func WriteError(w http.ResponseWriter, status int, code, message string, retryable bool, logger *zap.Logger) {
	if logger != nil {
		logger.Error("API error",
			zap.String("code", code),
			zap.String("message", message),
			zap.Int("status", status),
			zap.Bool("retryable", retryable),
		)
	}

	WriteJSON(w, status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
		Timestamp: time.Now(),
	})
}

// DecodeJSONBody decodes the request body into dst, rejecting unknown fields.
// On failure it writes the error response and returns a non-nil error.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) error {
	if r.Body == nil {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "request body is empty", false, logger)
		return errors.New("request body is empty")
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body", false, logger)
		return err
	}

	return nil
}

// ValidateContentType rejects requests whose body is not declared as JSON.
func ValidateContentType(w http.ResponseWriter, r *http.Request, logger *zap.Logger) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType != "application/json" && contentType != "application/json; charset=utf-8" {
		WriteError(w, http.StatusUnsupportedMediaType, CodeInvalidRequest, "Content-Type must be application/json", false, logger)
		return false
	}
	return true
}

// RequireMethod rejects requests with the wrong HTTP method.
func RequireMethod(w http.ResponseWriter, r *http.Request, method string, logger *zap.Logger) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		WriteError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed", false, logger)
		return false
	}
	return true
}
