package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// ErrSafetyBlocked marks a response rejected by the provider's safety filters.
// It is never retried across the fallback list.
var ErrSafetyBlocked = errors.New("request blocked by the model's safety filters")

// recoverableStatusCodes are the transient provider failures that justify
// advancing to the next backend: quota exhaustion, internal errors,
// unavailability and upstream deadline.
var recoverableStatusCodes = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// IsRecoverable classifies a backend failure. Anything not listed here aborts
// the fallback chain immediately.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSafetyBlocked) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return recoverableStatusCodes[apiErr.Code]
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

// safetyBlocked reports whether the provider flagged the response itself as
// blocked rather than returning an error.
func safetyBlocked(msg *schema.Message) bool {
	if msg == nil || msg.ResponseMeta == nil {
		return false
	}
	return strings.EqualFold(msg.ResponseMeta.FinishReason, string(genai.FinishReasonSafety))
}
