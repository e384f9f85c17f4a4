package agents

import (
	"context"
	"fmt"

	"github.com/hrygo/decisionflow/ai/core/llm"
	"github.com/hrygo/decisionflow/ai/decision"
	"github.com/hrygo/decisionflow/ai/validation"
)

// DecisionSynthesizer produces the final recommendation from every upstream
// output. The winner must be literally one of the input options, and the
// confidence value plus all four breakdown factors must lie in [0, 1].
type DecisionSynthesizer struct {
	gateway   llm.Gateway
	validator *validation.Service
}

// NewDecisionSynthesizer creates the Decision Synthesizer agent.
func NewDecisionSynthesizer(gateway llm.Gateway, validator *validation.Service) *DecisionSynthesizer {
	return &DecisionSynthesizer{gateway: gateway, validator: validator}
}

// Name returns the agent's stable name.
func (d *DecisionSynthesizer) Name() string { return NameDecisionSynthesizer }

// Execute runs the agent against the current pipeline state.
func (d *DecisionSynthesizer) Execute(ctx context.Context, state *decision.State) (*decision.SynthesizerOutput, error) {
	if state.Criteria == nil {
		return nil, &DependencyError{Agent: d.Name(), Missing: NameCriteriaBuilder}
	}
	if state.Biases == nil {
		return nil, &DependencyError{Agent: d.Name(), Missing: NameBiasChecker}
	}
	if state.Evaluations == nil {
		return nil, &DependencyError{Agent: d.Name(), Missing: NameOptionEvaluator}
	}
	input := state.Input

	vars := map[string]string{
		"decision_context": input.DecisionContext,
		"options":          mustJSON(input.Options),
		"criteria":         mustJSON(state.Criteria.Criteria),
		"scores":           mustJSON(state.Evaluations.Scores),
		"bias_findings":    mustJSON(state.Biases.BiasFindings),
	}

	completion, err := d.gateway.CompleteWithPromptTemplate(ctx, d.Name(), vars)
	if err != nil {
		return nil, &Error{Agent: d.Name(), Message: "LLM call failed", Cause: err}
	}

	raw, err := extractJSON(d.Name(), completion)
	if err != nil {
		return nil, err
	}

	output, err := validation.Validate[decision.SynthesizerOutput](ctx, d.validator, raw, d.Name())
	if err != nil {
		return nil, err
	}

	if !containsOption(input.Options, output.Winner) {
		return nil, &validation.Error{
			AgentName: d.Name(),
			Errors: []string{
				fmt.Sprintf("winner %q is not one of the options %v", output.Winner, input.Options),
			},
		}
	}

	return output, nil
}

func containsOption(options []string, winner string) bool {
	for _, opt := range options {
		if opt == winner {
			return true
		}
	}
	return false
}
