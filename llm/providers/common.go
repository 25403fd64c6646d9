// Package providers contains the concrete chat completion adapters. Each
// adapter maps upstream failures onto the shared llm.Error taxonomy so that
// callers never see raw transport errors.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/BaSui01/apibrowse/llm"
)

// MapHTTPError maps an upstream HTTP status to an llm.Error with the
// appropriate retry marker.
func MapHTTPError(status int, msg, provider string) *llm.Error {
	code := llm.ErrUpstreamError
	retryable := status >= 500

	switch status {
	case http.StatusBadRequest:
		code = llm.ErrInvalidRequest
	case http.StatusUnauthorized:
		code = llm.ErrUnauthorized
	case http.StatusForbidden:
		code = llm.ErrForbidden
	case http.StatusTooManyRequests:
		code = llm.ErrRateLimited
		retryable = true
	case http.StatusGatewayTimeout:
		code = llm.ErrUpstreamTimeout
		retryable = true
	}

	return &llm.Error{
		Code:       code,
		Message:    msg,
		HTTPStatus: status,
		Retryable:  retryable,
		Provider:   provider,
	}
}

// ReadErrorMessage extracts a human-readable error message from an upstream
// error body. It understands the OpenAI-style {"error":{"message":...}}
// envelope and falls back to the raw body.
func ReadErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return string(raw)
}

// classifyTransportError distinguishes timeouts from other network failures.
func classifyTransportError(err error, provider string) *llm.Error {
	code := llm.ErrUpstreamError
	status := http.StatusBadGateway

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		code = llm.ErrUpstreamTimeout
		status = http.StatusGatewayTimeout
	}

	return &llm.Error{
		Code:       code,
		Message:    err.Error(),
		HTTPStatus: status,
		Retryable:  true,
		Provider:   provider,
	}
}

// chooseModel selects the request model, the configured default, or the
// hardcoded fallback, in that order.
func chooseModel(reqModel, defaultModel, fallback string) string {
	if reqModel != "" {
		return reqModel
	}
	if defaultModel != "" {
		return defaultModel
	}
	return fallback
}
