package agents

import (
	"context"

	"github.com/hrygo/decisionflow/ai/core/llm"
	"github.com/hrygo/decisionflow/ai/decision"
	"github.com/hrygo/decisionflow/ai/validation"
)

// CriteriaBuilder converts the decision context into weighted evaluation
// criteria. Weights coming back from the model are deterministically
// renormalized to sum to 1.0 before the output is accepted.
type CriteriaBuilder struct {
	gateway   llm.Gateway
	validator *validation.Service
}

// NewCriteriaBuilder creates the Criteria Builder agent.
func NewCriteriaBuilder(gateway llm.Gateway, validator *validation.Service) *CriteriaBuilder {
	return &CriteriaBuilder{gateway: gateway, validator: validator}
}

// Name returns the agent's stable name.
func (c *CriteriaBuilder) Name() string { return NameCriteriaBuilder }

// Execute runs the agent against the current pipeline state.
func (c *CriteriaBuilder) Execute(ctx context.Context, state *decision.State) (*decision.CriteriaBuilderOutput, error) {
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

	output, err := validation.Validate[decision.CriteriaBuilderOutput](ctx, c.validator, raw, c.Name())
	if err != nil {
		return nil, err
	}

	normalized, err := decision.NormalizeWeights(output.Criteria)
	if err != nil {
		return nil, &validation.Error{AgentName: c.Name(), Errors: []string{"weight normalization failed: " + err.Error()}}
	}
	if err := decision.CheckWeightSum(normalized); err != nil {
		return nil, &validation.Error{AgentName: c.Name(), Errors: []string{err.Error()}}
	}

	output.Criteria = normalized
	return output, nil
}
