package agents

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/decisionflow/ai/core/llm"
	"github.com/hrygo/decisionflow/ai/decision"
	"github.com/hrygo/decisionflow/ai/validation"
)

// scriptedGateway returns canned completions per agent name. A respond
// function can override the static script for per-call behavior.
type scriptedGateway struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	respond   func(agentName string, vars map[string]string) (string, error)
	calls     []string
	lastVars  map[string]map[string]string
}

func newScriptedGateway() *scriptedGateway {
	return &scriptedGateway{
		responses: map[string]string{},
		errs:      map[string]error{},
		lastVars:  map[string]map[string]string{},
	}
}

func (g *scriptedGateway) Complete(_ context.Context, _ string, _ ...llm.CallOption) (string, error) {
	return "", errors.New("unexpected raw Complete call")
}

func (g *scriptedGateway) CompleteWithPromptTemplate(_ context.Context, agentName string, vars map[string]string, _ ...llm.CallOption) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, agentName)
	g.lastVars[agentName] = vars

	if g.respond != nil {
		return g.respond(agentName, vars)
	}
	if err := g.errs[agentName]; err != nil {
		return "", err
	}
	return g.responses[agentName], nil
}

func testState() *decision.State {
	return decision.NewState("req-1", "1.0", "1.0.0", "1.0.0", decision.NormalizedInput{
		DecisionContext: "Choose a message broker for the new event backbone.",
		Options:         []string{"Kafka", "NATS"},
		Constraints:     map[string]any{"budget": "low"},
	})
}

func populatedCriteria() *decision.CriteriaBuilderOutput {
	return &decision.CriteriaBuilderOutput{Criteria: []decision.Criterion{
		{Name: "cost", Weight: 0.6, Rationale: "budget is tight"},
		{Name: "throughput", Weight: 0.4, Rationale: "event volume"},
	}}
}

func TestClarifierParsesOutput(t *testing.T) {
	gw := newScriptedGateway()
	gw.responses[NameClarifier] = "```json\n{\"missing_fields\": [\"budget\"], \"questions\": [\"What is the budget?\"]}\n```"

	out, err := NewClarifier(gw, validation.NewService(nil)).Execute(context.Background(), testState())
	require.NoError(t, err)
	assert.True(t, out.NeedsInfo())
	assert.Equal(t, []string{"budget"}, out.MissingFields)

	vars := gw.lastVars[NameClarifier]
	assert.Equal(t, "Choose a message broker for the new event backbone.", vars["decision_context"])
	assert.Equal(t, `["Kafka","NATS"]`, vars["options"])
	assert.Contains(t, vars["constraints"], "budget")
	assert.Equal(t, "None", vars["criteria_preferences"])
}

func TestClarifierWrapsGatewayFailure(t *testing.T) {
	gw := newScriptedGateway()
	gw.errs[NameClarifier] = &llm.Error{Kind: llm.KindServer, Retryable: true, Message: "upstream broke"}

	_, err := NewClarifier(gw, validation.NewService(nil)).Execute(context.Background(), testState())

	var agentErr *Error
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, NameClarifier, agentErr.Agent)

	var llmErr *llm.Error
	assert.ErrorAs(t, err, &llmErr)
}

func TestClarifierRejectsNonJSONCompletion(t *testing.T) {
	gw := newScriptedGateway()
	gw.responses[NameClarifier] = "I think you should just pick Kafka."

	_, err := NewClarifier(gw, validation.NewService(nil)).Execute(context.Background(), testState())

	var agentErr *Error
	require.ErrorAs(t, err, &agentErr)
	assert.Contains(t, agentErr.Message, "failed to parse LLM response as JSON")
}

func TestCriteriaBuilderNormalizesWeights(t *testing.T) {
	gw := newScriptedGateway()
	gw.responses[NameCriteriaBuilder] = `{"criteria": [
		{"name": "cost", "weight": 0.9, "rationale": "a"},
		{"name": "throughput", "weight": 0.9, "rationale": "b"}
	]}`

	out, err := NewCriteriaBuilder(gw, validation.NewService(nil)).Execute(context.Background(), testState())
	require.NoError(t, err)

	require.Len(t, out.Criteria, 2)
	assert.InDelta(t, 0.5, out.Criteria[0].Weight, 1e-9)
	assert.InDelta(t, 0.5, out.Criteria[1].Weight, 1e-9)
	require.NoError(t, decision.CheckWeightSum(out.Criteria))
}

func TestCriteriaBuilderRejectsEmptyList(t *testing.T) {
	gw := newScriptedGateway()
	gw.responses[NameCriteriaBuilder] = `{"criteria": []}`

	_, err := NewCriteriaBuilder(gw, validation.NewService(nil)).Execute(context.Background(), testState())

	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, NameCriteriaBuilder, verr.AgentName)
}

func TestBiasCheckerRequiresCriteria(t *testing.T) {
	gw := newScriptedGateway()

	_, err := NewBiasChecker(gw, validation.NewService(nil)).Execute(context.Background(), testState())

	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, NameCriteriaBuilder, depErr.Missing)
	assert.Empty(t, gw.calls)
}

func TestBiasCheckerCanonicalizesBiasTypes(t *testing.T) {
	gw := newScriptedGateway()
	gw.responses[NameBiasChecker] = `{"bias_findings": [
		{"bias_type": "SUNK_COST", "description": "past spend", "evidence": "we already paid"}
	]}`

	state := testState()
	state.Criteria = populatedCriteria()

	out, err := NewBiasChecker(gw, validation.NewService(nil)).Execute(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, out.BiasFindings, 1)
	assert.Equal(t, "sunk_cost", out.BiasFindings[0].BiasType)
}

func TestBiasCheckerRejectsUnknownBiasType(t *testing.T) {
	gw := newScriptedGateway()
	gw.responses[NameBiasChecker] = `{"bias_findings": [
		{"bias_type": "made_up_bias", "description": "d", "evidence": "e"}
	]}`

	state := testState()
	state.Criteria = populatedCriteria()

	_, err := NewBiasChecker(gw, validation.NewService(nil)).Execute(context.Background(), state)

	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
}

func TestOptionEvaluatorScoresEveryOption(t *testing.T) {
	gw := newScriptedGateway()
	gw.respond = func(agentName string, vars map[string]string) (string, error) {
		if agentName != NameOptionEvaluator {
			return "", fmt.Errorf("unexpected agent %q", agentName)
		}
		score := map[string]float64{"Kafka": 0.8, "NATS": 0.6}[vars["option"]]
		return fmt.Sprintf(`{"scores": [
			{"criterion_name": "cost", "score": %v, "justification": "j"},
			{"criterion_name": "throughput", "score": 0.5, "justification": "j"}
		]}`, score), nil
	}

	state := testState()
	state.Criteria = populatedCriteria()

	out, err := NewOptionEvaluator(gw, validation.NewService(nil)).Execute(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, out.Scores, 2)

	kafka := out.Scores["Kafka"]
	assert.InDelta(t, 0.6*0.8+0.4*0.5, kafka.TotalScore, 1e-9)
	nats := out.Scores["NATS"]
	assert.InDelta(t, 0.6*0.6+0.4*0.5, nats.TotalScore, 1e-9)
}

func TestOptionEvaluatorClampsOutOfRangeScores(t *testing.T) {
	gw := newScriptedGateway()
	gw.respond = func(_ string, _ map[string]string) (string, error) {
		return `{"scores": [
			{"criterion_name": "cost", "score": 1.8, "justification": "j"},
			{"criterion_name": "throughput", "score": -0.3, "justification": "j"}
		]}`, nil
	}

	state := testState()
	state.Criteria = populatedCriteria()

	out, err := NewOptionEvaluator(gw, validation.NewService(nil)).Execute(context.Background(), state)
	require.NoError(t, err)

	for _, scores := range out.Scores {
		assert.InDelta(t, 0.6, scores.TotalScore, 1e-9)
		assert.Equal(t, 1.0, scores.Breakdown[0].Score)
		assert.Equal(t, 0.0, scores.Breakdown[1].Score)
	}
}

func TestOptionEvaluatorFailsWhenAnyOptionFails(t *testing.T) {
	gw := newScriptedGateway()
	gw.respond = func(_ string, vars map[string]string) (string, error) {
		if vars["option"] == "NATS" {
			return "", &llm.Error{Kind: llm.KindServer, Retryable: true, Message: "boom"}
		}
		return `{"scores": [{"criterion_name": "cost", "score": 0.5, "justification": "j"}]}`, nil
	}

	state := testState()
	state.Criteria = populatedCriteria()

	_, err := NewOptionEvaluator(gw, validation.NewService(nil)).Execute(context.Background(), state)

	var agentErr *Error
	require.ErrorAs(t, err, &agentErr)
	assert.Contains(t, agentErr.Message, `option "NATS"`)
}

func synthesizerState() *decision.State {
	state := testState()
	state.Criteria = populatedCriteria()
	state.Biases = &decision.BiasCheckerOutput{BiasFindings: []decision.BiasFinding{}}
	state.Evaluations = &decision.OptionEvaluatorOutput{Scores: map[string]decision.OptionScores{
		"Kafka": {TotalScore: 0.7},
		"NATS":  {TotalScore: 0.5},
	}}
	return state
}

func TestDecisionSynthesizerAcceptsValidWinner(t *testing.T) {
	gw := newScriptedGateway()
	gw.responses[NameDecisionSynthesizer] = `{
		"winner": "Kafka",
		"confidence": 0.82,
		"confidence_breakdown": {
			"input_completeness": 0.9,
			"agent_agreement": 0.8,
			"evidence_strength": 0.7,
			"bias_impact": 0.1
		},
		"trade_offs": [],
		"assumptions": ["traffic stays under 1M events/day"],
		"what_would_change_decision": []
	}`

	out, err := NewDecisionSynthesizer(gw, validation.NewService(nil)).Execute(context.Background(), synthesizerState())
	require.NoError(t, err)
	assert.Equal(t, "Kafka", out.Winner)
	assert.InDelta(t, 0.82, out.Confidence, 1e-9)
}

func TestDecisionSynthesizerRejectsForeignWinner(t *testing.T) {
	gw := newScriptedGateway()
	gw.responses[NameDecisionSynthesizer] = `{
		"winner": "RabbitMQ",
		"confidence": 0.9,
		"confidence_breakdown": {
			"input_completeness": 0.9,
			"agent_agreement": 0.9,
			"evidence_strength": 0.9,
			"bias_impact": 0.1
		}
	}`

	_, err := NewDecisionSynthesizer(gw, validation.NewService(nil)).Execute(context.Background(), synthesizerState())

	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), `winner "RabbitMQ" is not one of the options`)
}

func TestDecisionSynthesizerDependencyOrder(t *testing.T) {
	gw := newScriptedGateway()
	agent := NewDecisionSynthesizer(gw, validation.NewService(nil))

	state := testState()
	_, err := agent.Execute(context.Background(), state)
	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, NameCriteriaBuilder, depErr.Missing)

	state.Criteria = populatedCriteria()
	_, err = agent.Execute(context.Background(), state)
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, NameBiasChecker, depErr.Missing)

	state.Biases = &decision.BiasCheckerOutput{}
	_, err = agent.Execute(context.Background(), state)
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, NameOptionEvaluator, depErr.Missing)
}

func TestExtractJSONTruncatesExcerpt(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}

	_, err := extractJSON("clarifier", string(long))
	var agentErr *Error
	require.ErrorAs(t, err, &agentErr)
	assert.LessOrEqual(t, len(agentErr.Message), rawExcerptLen+len(`failed to parse LLM response as JSON, response: "..."`))
	assert.Contains(t, agentErr.Message, "...")
}
