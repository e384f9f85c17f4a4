package agents

import (
	"context"

	"github.com/hrygo/decisionflow/ai/core/llm"
	"github.com/hrygo/decisionflow/ai/decision"
	"github.com/hrygo/decisionflow/ai/validation"
)

// BiasChecker detects named cognitive biases in the decision framing. It
// requires the Criteria Builder's output and validates every finding against
// the closed bias-type set, canonicalizing to lowercase. An unrecognized type
// is a fatal validation failure, never silently dropped.
type BiasChecker struct {
	gateway   llm.Gateway
	validator *validation.Service
}

// NewBiasChecker creates the Bias Checker agent.
func NewBiasChecker(gateway llm.Gateway, validator *validation.Service) *BiasChecker {
	return &BiasChecker{gateway: gateway, validator: validator}
}

// Name returns the agent's stable name.
func (b *BiasChecker) Name() string { return NameBiasChecker }

// Execute runs the agent against the current pipeline state.
func (b *BiasChecker) Execute(ctx context.Context, state *decision.State) (*decision.BiasCheckerOutput, error) {
	if state.Criteria == nil {
		return nil, &DependencyError{Agent: b.Name(), Missing: NameCriteriaBuilder}
	}
	input := state.Input

	vars := map[string]string{
		"decision_context": input.DecisionContext,
		"options":          mustJSON(input.Options),
		"criteria":         mustJSON(state.Criteria.Criteria),
	}

	completion, err := b.gateway.CompleteWithPromptTemplate(ctx, b.Name(), vars)
	if err != nil {
		return nil, &Error{Agent: b.Name(), Message: "LLM call failed", Cause: err}
	}

	raw, err := extractJSON(b.Name(), completion)
	if err != nil {
		return nil, err
	}

	return validation.Validate[decision.BiasCheckerOutput](ctx, b.validator, raw, b.Name())
}
