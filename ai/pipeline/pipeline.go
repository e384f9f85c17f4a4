// Package pipeline executes the five decision-analysis agents as a fixed
// ordered sequence over one request-scoped state, failing fast on the first
// agent error and assembling the final response as a pure projection of the
// accumulated state.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hrygo/decisionflow/ai/agents"
	"github.com/hrygo/decisionflow/ai/decision"
)

// ExecutionError wraps any agent-level failure with the failing agent's name
// and the request id. No partial response is ever returned alongside it.
type ExecutionError struct {
	RequestID string
	Agent     string
	Cause     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("pipeline execution failed (agent=%s, request_id=%s): %v", e.Agent, e.RequestID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Recorder receives pipeline outcomes for metrics export.
type Recorder interface {
	ObserveAgent(agent, outcome string, duration time.Duration)
	ObservePipelineRun(outcome string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAgent(string, string, time.Duration) {}
func (nopRecorder) ObservePipelineRun(string, time.Duration)   {}

// step is one pipeline stage: the agent's name plus a closure that runs the
// agent and performs the single authoritative write into its state slot.
// Keeping the sequence as data means adding or reordering stages is a data
// change, not a control-flow rewrite.
type step struct {
	name string
	run  func(ctx context.Context, state *decision.State) error
}

// Pipeline is the deterministic five-step state machine.
type Pipeline struct {
	steps []step
	stats Recorder
}

// New wires the five agents into their fixed execution order.
func New(
	clarifier *agents.Clarifier,
	criteriaBuilder *agents.CriteriaBuilder,
	biasChecker *agents.BiasChecker,
	optionEvaluator *agents.OptionEvaluator,
	synthesizer *agents.DecisionSynthesizer,
	stats Recorder,
) *Pipeline {
	if stats == nil {
		stats = nopRecorder{}
	}
	return &Pipeline{
		stats: stats,
		steps: []step{
			{
				name: clarifier.Name(),
				run: func(ctx context.Context, state *decision.State) error {
					out, err := clarifier.Execute(ctx, state)
					if err != nil {
						return err
					}
					state.Clarifier = out
					if out.NeedsInfo() {
						// Advisory only: downstream agents still run against
						// the incomplete input.
						slog.Info("pipeline: clarifier flagged missing information, continuing",
							"request_id", state.RequestID,
							"missing_fields", len(out.MissingFields),
							"questions", len(out.Questions),
						)
					}
					return nil
				},
			},
			{
				name: criteriaBuilder.Name(),
				run: func(ctx context.Context, state *decision.State) error {
					out, err := criteriaBuilder.Execute(ctx, state)
					if err != nil {
						return err
					}
					state.Criteria = out
					return nil
				},
			},
			{
				name: biasChecker.Name(),
				run: func(ctx context.Context, state *decision.State) error {
					out, err := biasChecker.Execute(ctx, state)
					if err != nil {
						return err
					}
					state.Biases = out
					return nil
				},
			},
			{
				name: optionEvaluator.Name(),
				run: func(ctx context.Context, state *decision.State) error {
					out, err := optionEvaluator.Execute(ctx, state)
					if err != nil {
						return err
					}
					state.Evaluations = out
					return nil
				},
			},
			{
				name: synthesizer.Name(),
				run: func(ctx context.Context, state *decision.State) error {
					out, err := synthesizer.Execute(ctx, state)
					if err != nil {
						return err
					}
					state.Synthesis = out
					return nil
				},
			},
		},
	}
}

// Execute runs the ordered steps over the state and assembles the response.
// The first failing step aborts the remaining ones.
func (p *Pipeline) Execute(ctx context.Context, state *decision.State) (*decision.Response, error) {
	startTime := time.Now()
	slog.Info("pipeline: starting execution",
		"request_id", state.RequestID,
		"options", len(state.Input.Options),
		"logic_version", state.LogicVersion,
	)

	for _, s := range p.steps {
		stepStart := time.Now()
		if err := s.run(ctx, state); err != nil {
			p.stats.ObserveAgent(s.name, "error", time.Since(stepStart))
			p.stats.ObservePipelineRun("error", time.Since(startTime))
			slog.Error("pipeline: agent failed",
				"request_id", state.RequestID,
				"agent", s.name,
				"error", err,
			)
			return nil, &ExecutionError{RequestID: state.RequestID, Agent: s.name, Cause: err}
		}
		p.stats.ObserveAgent(s.name, "ok", time.Since(stepStart))
		slog.Debug("pipeline: agent completed",
			"request_id", state.RequestID,
			"agent", s.name,
			"duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	response := assemble(state)
	p.stats.ObservePipelineRun("ok", time.Since(startTime))
	slog.Info("pipeline: execution completed",
		"request_id", state.RequestID,
		"winner", response.Winner,
		"confidence", response.Confidence,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)
	return response, nil
}

// assemble projects the final response from the populated state slots and the
// original normalized input. It never computes results independently.
func assemble(state *decision.State) *decision.Response {
	return &decision.Response{
		Decision:                state.Input.DecisionContext,
		Options:                 state.Input.Options,
		Criteria:                state.Criteria.Criteria,
		Scores:                  state.Evaluations.Scores,
		Winner:                  state.Synthesis.Winner,
		Confidence:              state.Synthesis.Confidence,
		ConfidenceBreakdown:     state.Synthesis.ConfidenceBreakdown,
		BiasesDetected:          state.Biases.BiasFindings,
		TradeOffs:               state.Synthesis.TradeOffs,
		Assumptions:             state.Synthesis.Assumptions,
		Risks:                   []map[string]any{},
		WhatWouldChangeDecision: state.Synthesis.WhatWouldChangeDecision,
		Meta: decision.VersionMetadata{
			APIVersion:    state.APIVersion,
			LogicVersion:  state.LogicVersion,
			SchemaVersion: state.SchemaVersion,
		},
		RequestID: state.RequestID,
	}
}
