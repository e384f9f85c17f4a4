package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Kind is the closed classification of LLM transport failures. Classification
// happens once, at the gateway boundary; nothing downstream inspects
// provider-specific error shapes.
type Kind int

const (
	// KindUnknown covers unclassifiable failures. Not retried, to avoid
	// masking unknown failure modes.
	KindUnknown Kind = iota

	// KindTimeout covers per-call deadline expiry. Retryable.
	KindTimeout

	// KindNetwork covers connection-class failures. Retryable.
	KindNetwork

	// KindServer covers transient upstream 5xx responses. Retryable.
	KindServer

	// KindClient covers upstream 4xx client errors. Not retryable.
	KindClient

	// KindRateLimit covers 429 responses that are genuine rate limits.
	// Never retried internally; may carry a retry-after hint.
	KindRateLimit

	// KindQuota covers 429 responses caused by exhausted quota or billing.
	// Not retryable.
	KindQuota
)

// String returns the kind's stable name.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindRateLimit:
		return "rate_limit"
	case KindQuota:
		return "quota"
	default:
		return "unknown"
	}
}

// Error is a classified LLM transport failure.
type Error struct {
	Kind       Kind
	StatusCode int

	// RetryAfter is the provider's retry-after hint for rate-limit failures.
	// Classify cannot populate it (the openai client does not surface
	// response headers on its error types); it is caller-supplied where the
	// transport exposes the header, and zero means no hint.
	RetryAfter time.Duration

	Retryable bool
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("llm %s: %s", e.Kind, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("llm %s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("llm %s error", e.Kind)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// quotaMarkers identify 429 responses that are quota/billing failures rather
// than transient rate limits.
var quotaMarkers = []string{"insufficient_quota", "quota", "billing"}

// Classify maps an arbitrary failure from the chat-completion transport into
// the closed error-kind set. Already-classified errors pass through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	if isTimeout(err) {
		return &Error{Kind: KindTimeout, Retryable: true, Message: err.Error(), Cause: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, apiErr.Code, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode > 0 {
			return classifyStatus(reqErr.HTTPStatusCode, nil, err)
		}
		return &Error{Kind: KindNetwork, Retryable: true, Message: err.Error(), Cause: err}
	}

	if isNetwork(err) {
		return &Error{Kind: KindNetwork, Retryable: true, Message: err.Error(), Cause: err}
	}

	return &Error{Kind: KindUnknown, Retryable: false, Message: err.Error(), Cause: err}
}

func classifyStatus(status int, code any, cause error) *Error {
	switch {
	case status == 429:
		if isQuotaError(code, cause) {
			return &Error{
				Kind:       KindQuota,
				StatusCode: status,
				Retryable:  false,
				Message:    fmt.Sprintf("quota exceeded, check billing and plan details: %v", cause),
				Cause:      cause,
			}
		}
		return &Error{
			Kind:       KindRateLimit,
			StatusCode: status,
			Retryable:  false,
			Message:    fmt.Sprintf("rate limit exceeded: %v", cause),
			Cause:      cause,
		}
	case status == 500 || status == 502 || status == 503 || status == 504:
		return &Error{Kind: KindServer, StatusCode: status, Retryable: true, Message: cause.Error(), Cause: cause}
	case status >= 400 && status < 500:
		return &Error{
			Kind:       KindClient,
			StatusCode: status,
			Retryable:  false,
			Message:    fmt.Sprintf("non-retryable error: %v", cause),
			Cause:      cause,
		}
	case status >= 500 && status < 600:
		return &Error{Kind: KindServer, StatusCode: status, Retryable: true, Message: cause.Error(), Cause: cause}
	default:
		return &Error{Kind: KindUnknown, StatusCode: status, Retryable: false, Message: cause.Error(), Cause: cause}
	}
}

func isQuotaError(code any, cause error) bool {
	if s, ok := code.(string); ok {
		if strings.EqualFold(s, "insufficient_quota") {
			return true
		}
	}
	msg := strings.ToLower(cause.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "deadline exceeded", "timed out"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func isNetwork(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	patterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"network is unreachable",
		"no such host",
		"dial tcp",
		"eof",
	}
	for _, pattern := range patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
