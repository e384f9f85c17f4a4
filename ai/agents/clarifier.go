package agents

import (
	"context"

	"github.com/hrygo/decisionflow/ai/core/llm"
	"github.com/hrygo/decisionflow/ai/decision"
	"github.com/hrygo/decisionflow/ai/validation"
)

// Clarifier identifies missing inputs and structured follow-up questions. It
// is the first agent in the pipeline and depends on nothing but the
// normalized input. A non-empty result is advisory: it signals "needs more
// information" but does not halt the pipeline.
type Clarifier struct {
	gateway   llm.Gateway
	validator *validation.Service
}

// NewClarifier creates the Clarifier agent.
func NewClarifier(gateway llm.Gateway, validator *validation.Service) *Clarifier {
	return &Clarifier{gateway: gateway, validator: validator}
}

// Name returns the agent's stable name.
func (c *Clarifier) Name() string { return NameClarifier }

// Execute runs the agent against the current pipeline state.
func (c *Clarifier) Execute(ctx context.Context, state *decision.State) (*decision.ClarifierOutput, error) {
	input := state.Input

	vars := map[string]string{
		"decision_context":     input.DecisionContext,
		"options":              mustJSON(input.Options),
		"constraints":          jsonOrNone(input.Constraints, len(input.Constraints) > 0),
		"criteria_preferences": jsonOrNone(input.CriteriaPreferences, len(input.CriteriaPreferences) > 0),
	}

	completion, err := c.gateway.CompleteWithPromptTemplate(ctx, c.Name(), vars)
	if err != nil {
		return nil, &Error{Agent: c.Name(), Message: "LLM call failed", Cause: err}
	}

	raw, err := extractJSON(c.Name(), completion)
	if err != nil {
		return nil, err
	}

	return validation.Validate[decision.ClarifierOutput](ctx, c.validator, raw, c.Name())
}
