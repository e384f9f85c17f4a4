package agents

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/decisionflow/ai/core/llm"
	"github.com/hrygo/decisionflow/ai/decision"
	"github.com/hrygo/decisionflow/ai/validation"
)

// OptionEvaluator scores every option against the weighted criteria, one
// gateway completion per option. The per-option calls are independent and run
// concurrently; completion order is unspecified, but every option must score
// (or the whole step fails) before the output is produced. Raw model scores
// are silently clamped into [0, 1].
type OptionEvaluator struct {
	gateway   llm.Gateway
	validator *validation.Service
}

// NewOptionEvaluator creates the Option Evaluator agent.
func NewOptionEvaluator(gateway llm.Gateway, validator *validation.Service) *OptionEvaluator {
	return &OptionEvaluator{gateway: gateway, validator: validator}
}

// Name returns the agent's stable name.
func (e *OptionEvaluator) Name() string { return NameOptionEvaluator }

// optionScoresPayload is the per-option completion shape. Scores are not
// range-checked here: out-of-range values are clamped, not rejected.
type optionScoresPayload struct {
	Scores []decision.OptionScore `json:"scores"`
}

// Validate checks the payload structure.
func (p *optionScoresPayload) Validate() error {
	if len(p.Scores) == 0 {
		return fmt.Errorf("scores list is empty")
	}
	for i, s := range p.Scores {
		if strings.TrimSpace(s.CriterionName) == "" {
			return fmt.Errorf("scores[%d] criterion_name is empty", i)
		}
	}
	return nil
}

// Execute runs the agent against the current pipeline state.
func (e *OptionEvaluator) Execute(ctx context.Context, state *decision.State) (*decision.OptionEvaluatorOutput, error) {
	if state.Criteria == nil {
		return nil, &DependencyError{Agent: e.Name(), Missing: NameCriteriaBuilder}
	}
	input := state.Input
	criteria := state.Criteria.Criteria

	var mu sync.Mutex
	scores := make(map[string]decision.OptionScores, len(input.Options))

	g, gctx := errgroup.WithContext(ctx)
	for _, option := range input.Options {
		option := option
		g.Go(func() error {
			optionScores, err := e.evaluateOption(gctx, input, criteria, option)
			if err != nil {
				return err
			}
			mu.Lock()
			scores[option] = optionScores
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	output := &decision.OptionEvaluatorOutput{Scores: scores}
	if err := output.Validate(); err != nil {
		return nil, &validation.Error{AgentName: e.Name(), Errors: []string{err.Error()}}
	}
	return output, nil
}

func (e *OptionEvaluator) evaluateOption(ctx context.Context, input decision.NormalizedInput, criteria []decision.Criterion, option string) (decision.OptionScores, error) {
	vars := map[string]string{
		"decision_context": input.DecisionContext,
		"option":           option,
		"options":          mustJSON(input.Options),
		"criteria":         mustJSON(criteria),
	}

	completion, err := e.gateway.CompleteWithPromptTemplate(ctx, e.Name(), vars)
	if err != nil {
		return decision.OptionScores{}, &Error{
			Agent:   e.Name(),
			Message: fmt.Sprintf("LLM call failed for option %q", option),
			Cause:   err,
		}
	}

	raw, err := extractJSON(e.Name(), completion)
	if err != nil {
		return decision.OptionScores{}, err
	}

	payload, err := validation.Validate[optionScoresPayload](ctx, e.validator, raw, e.Name())
	if err != nil {
		return decision.OptionScores{}, err
	}

	breakdown := make([]decision.OptionScore, len(payload.Scores))
	for i, s := range payload.Scores {
		breakdown[i] = decision.OptionScore{
			CriterionName: s.CriterionName,
			Score:         decision.ClampScore(s.Score),
			Justification: s.Justification,
		}
	}

	return decision.OptionScores{
		TotalScore: decision.WeightedTotal(breakdown, criteria),
		Breakdown:  breakdown,
	}, nil
}
