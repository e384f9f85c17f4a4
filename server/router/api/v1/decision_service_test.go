package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/decisionflow/ai/agents"
	"github.com/hrygo/decisionflow/ai/core/llm"
	"github.com/hrygo/decisionflow/ai/decision"
	"github.com/hrygo/decisionflow/ai/pipeline"
	"github.com/hrygo/decisionflow/ai/validation"
)

// scriptedGateway serves canned completions per agent name.
type scriptedGateway struct {
	responses map[string]string
	errs      map[string]error
}

func (g *scriptedGateway) Complete(_ context.Context, _ string, _ ...llm.CallOption) (string, error) {
	return "", errors.New("unexpected raw Complete call")
}

func (g *scriptedGateway) CompleteWithPromptTemplate(_ context.Context, agentName string, _ map[string]string, _ ...llm.CallOption) (string, error) {
	if err := g.errs[agentName]; err != nil {
		return "", err
	}
	return g.responses[agentName], nil
}

func happyPathGateway() *scriptedGateway {
	return &scriptedGateway{
		errs: map[string]error{},
		responses: map[string]string{
			agents.NameClarifier: `{"missing_fields": [], "questions": []}`,
			agents.NameCriteriaBuilder: `{"criteria": [
				{"name": "cost", "weight": 0.5, "rationale": "a"},
				{"name": "speed", "weight": 0.5, "rationale": "b"}
			]}`,
			agents.NameBiasChecker: `{"bias_findings": []}`,
			agents.NameOptionEvaluator: `{"scores": [
				{"criterion_name": "cost", "score": 0.7, "justification": "j"},
				{"criterion_name": "speed", "score": 0.6, "justification": "j"}
			]}`,
			agents.NameDecisionSynthesizer: `{
				"winner": "Kafka",
				"confidence": 0.7,
				"confidence_breakdown": {
					"input_completeness": 0.9,
					"agent_agreement": 0.8,
					"evidence_strength": 0.7,
					"bias_impact": 0.1
				}
			}`,
		},
	}
}

func newTestService(gw llm.Gateway) *DecisionService {
	validator := validation.NewService(nil)
	p := pipeline.New(
		agents.NewClarifier(gw, validator),
		agents.NewCriteriaBuilder(gw, validator),
		agents.NewBiasChecker(gw, validator),
		agents.NewOptionEvaluator(gw, validator),
		agents.NewDecisionSynthesizer(gw, validator),
		nil,
	)
	return &DecisionService{Runner: pipeline.NewRunner(p, "1.0", "1.0.0", "1.0.0")}
}

func doAnalyze(t *testing.T, svc *DecisionService, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/decisions/analyze", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, svc.AnalyzeDecision(c))
	return rec
}

const validBody = `{
	"decision_context": "Choose a message broker for the new event backbone.",
	"options": ["Kafka", "NATS"]
}`

func TestAnalyzeDecisionSuccess(t *testing.T) {
	rec := doAnalyze(t, newTestService(happyPathGateway()), validBody, map[string]string{
		echo.HeaderXRequestID: "req-7",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp decision.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Kafka", resp.Winner)
	assert.Equal(t, "req-7", resp.RequestID)
	assert.Equal(t, "1.0", resp.Meta.APIVersion)
}

func TestAnalyzeDecisionRejectsInvalidRequest(t *testing.T) {
	body := `{"decision_context": "too short", "options": ["a", "b"]}`
	rec := doAnalyze(t, newTestService(happyPathGateway()), body, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, CodeInvalidRequest, envelope.Error.Code)
	assert.Contains(t, envelope.Error.Message, "decision_context")
}

func TestAnalyzeDecisionRejectsMalformedJSON(t *testing.T) {
	rec := doAnalyze(t, newTestService(happyPathGateway()), `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeDecisionMapsPipelineFailure(t *testing.T) {
	gw := happyPathGateway()
	gw.errs[agents.NameBiasChecker] = &llm.Error{Kind: llm.KindServer, StatusCode: 502, Retryable: true, Message: "upstream broke"}

	rec := doAnalyze(t, newTestService(gw), validBody, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var envelope ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, CodeServiceUnavailable, envelope.Error.Code)
	assert.Equal(t, agents.NameBiasChecker, envelope.Error.Details["agent"])
}

func TestAnalyzeDecisionMapsRateLimit(t *testing.T) {
	gw := happyPathGateway()
	gw.errs[agents.NameClarifier] = &llm.Error{Kind: llm.KindRateLimit, StatusCode: 429, Message: "rate limit exceeded"}

	rec := doAnalyze(t, newTestService(gw), validBody, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var envelope ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, CodeRateLimitExceeded, envelope.Error.Code)
}

func TestMapErrorTable(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrorCode
	}{
		{
			name: "quota",
			err: &pipeline.ExecutionError{Agent: "clarifier", Cause: &agents.Error{
				Agent: "clarifier", Message: "LLM call failed",
				Cause: &llm.Error{Kind: llm.KindQuota, StatusCode: 429},
			}},
			wantStatus: http.StatusTooManyRequests,
			wantCode:   CodeQuotaExceeded,
		},
		{
			name: "timeout",
			err: &pipeline.ExecutionError{Agent: "clarifier", Cause: &agents.Error{
				Agent: "clarifier", Message: "LLM call failed",
				Cause: &llm.Error{Kind: llm.KindTimeout, Retryable: true},
			}},
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   CodeAgentTimeout,
		},
		{
			name: "schema validation",
			err: &pipeline.ExecutionError{Agent: "criteria_builder", Cause: &validation.Error{
				AgentName: "criteria_builder", Errors: []string{"criteria list is empty"},
			}},
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeSchemaValidationFailed,
		},
		{
			name:       "generic pipeline failure",
			err:        &pipeline.ExecutionError{Agent: "bias_checker", Cause: errors.New("boom")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodePipelineError,
		},
		{
			name:       "unclassified error",
			err:        errors.New("mystery"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, envelope := mapError(tt.err, "req-1")
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, envelope.Error.Code)
			assert.Equal(t, "req-1", envelope.RequestID)
		})
	}
}

func TestMapErrorSurfacesRetryAfter(t *testing.T) {
	err := &pipeline.ExecutionError{Agent: "clarifier", Cause: &agents.Error{
		Agent: "clarifier", Message: "LLM call failed",
		Cause: &llm.Error{Kind: llm.KindRateLimit, StatusCode: 429, RetryAfter: 3 * time.Second},
	}}

	status, envelope := mapError(err, "req-1")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, CodeRateLimitExceeded, envelope.Error.Code)
	assert.Equal(t, 3.0, envelope.Error.Details["retry_after_seconds"])
}
