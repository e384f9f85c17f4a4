package v1

import (
	"errors"
	"net/http"

	"github.com/hrygo/decisionflow/ai/core/llm"
	"github.com/hrygo/decisionflow/ai/pipeline"
	"github.com/hrygo/decisionflow/ai/validation"
)

// ErrorCode categorizes API failures for clients.
type ErrorCode string

const (
	CodeInvalidRequest         ErrorCode = "INVALID_REQUEST"
	CodeSchemaValidationFailed ErrorCode = "SCHEMA_VALIDATION_FAILED"
	CodePipelineError          ErrorCode = "PIPELINE_ERROR"
	CodeServiceUnavailable     ErrorCode = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded      ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeQuotaExceeded          ErrorCode = "QUOTA_EXCEEDED"
	CodeAgentTimeout           ErrorCode = "AGENT_TIMEOUT"
	CodeInternalError          ErrorCode = "INTERNAL_ERROR"
)

// ErrorDetail carries the code, a human-readable message and optional
// context such as the failing agent.
type ErrorDetail struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the standardized error envelope. Every error reply carries
// the request id for correlation.
type ErrorResponse struct {
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id"`
}

// mapError translates an internal failure into the HTTP status and the error
// envelope returned to the client.
func mapError(err error, requestID string) (int, ErrorResponse) {
	details := map[string]any{}

	code := CodeInternalError
	status := http.StatusInternalServerError

	var execErr *pipeline.ExecutionError
	if errors.As(err, &execErr) {
		details["agent"] = execErr.Agent
		code = CodePipelineError

		var valErr *validation.Error
		var llmErr *llm.Error
		switch {
		case errors.As(err, &valErr):
			code = CodeSchemaValidationFailed
			details["validation_errors"] = valErr.Errors
		case errors.As(err, &llmErr):
			switch llmErr.Kind {
			case llm.KindRateLimit:
				code = CodeRateLimitExceeded
				status = http.StatusTooManyRequests
				if llmErr.RetryAfter > 0 {
					details["retry_after_seconds"] = llmErr.RetryAfter.Seconds()
				}
			case llm.KindQuota:
				code = CodeQuotaExceeded
				status = http.StatusTooManyRequests
			case llm.KindTimeout:
				code = CodeAgentTimeout
				status = http.StatusGatewayTimeout
			default:
				code = CodeServiceUnavailable
				status = http.StatusServiceUnavailable
			}
		}
	}

	return status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: err.Error(),
			Details: details,
		},
		RequestID: requestID,
	}
}

// invalidRequest builds the envelope for a request rejected before the
// pipeline runs.
func invalidRequest(err error, requestID string) (int, ErrorResponse) {
	return http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    CodeInvalidRequest,
			Message: err.Error(),
		},
		RequestID: requestID,
	}
}
