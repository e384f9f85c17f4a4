// Package agents implements the five pipeline agents. Each agent is stateless:
// it extracts its typed input from the shared pipeline state, renders its
// prompt template, calls the LLM gateway, and parses and validates its own
// output. The orchestrator, not the agent, writes outputs back into state.
package agents

import (
	"encoding/json"
	"fmt"

	"github.com/hrygo/decisionflow/ai/internal/strutil"
	"github.com/hrygo/decisionflow/ai/validation"
)

// Stable agent names, used for prompt lookup and error attribution.
const (
	NameClarifier           = "clarifier"
	NameCriteriaBuilder     = "criteria_builder"
	NameBiasChecker         = "bias_checker"
	NameOptionEvaluator     = "option_evaluator"
	NameDecisionSynthesizer = "decision_synthesizer"
)

// rawExcerptLen bounds the raw-response excerpt attached to malformed-output
// errors.
const rawExcerptLen = 200

// Error is an agent-level failure carrying the failing agent's name.
type Error struct {
	Agent   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("agent %s: %s: %v", e.Agent, e.Message, e.Cause)
	}
	return fmt.Sprintf("agent %s: %s", e.Agent, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// DependencyError reports that an agent required an upstream output slot that
// was never populated. Fatal and never retried.
type DependencyError struct {
	Agent   string
	Missing string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("agent %s: missing required upstream output %q", e.Agent, e.Missing)
}

// extractJSON strips optional markdown code-fence markup from a completion and
// verifies the remainder is well-formed JSON. Malformed output is a fatal
// agent-level failure including a truncated excerpt of the raw response.
func extractJSON(agent, completion string) ([]byte, error) {
	text := validation.StripCodeFence(completion)
	if !json.Valid([]byte(text)) {
		return nil, &Error{
			Agent:   agent,
			Message: fmt.Sprintf("failed to parse LLM response as JSON, response: %q", strutil.Truncate(completion, rawExcerptLen)),
		}
	}
	return []byte(text), nil
}

// mustJSON serializes a prompt variable; values here are built from validated
// state and cannot fail to marshal.
func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

// jsonOrNone renders an optional prompt variable, mirroring the "None"
// placeholder the prompt templates expect for absent values.
func jsonOrNone(v any, present bool) string {
	if !present {
		return "None"
	}
	return mustJSON(v)
}
