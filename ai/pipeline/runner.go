package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hrygo/decisionflow/ai/decision"
)

// Runner is the public entry point for one decision analysis. It validates
// the request, normalizes it, seeds a fresh state and hands it to the fixed
// agent sequence. One Runner serves concurrent requests; all per-request data
// lives in the state.
type Runner struct {
	pipeline      *Pipeline
	apiVersion    string
	logicVersion  string
	schemaVersion string
}

// NewRunner binds a pipeline to the version metadata stamped on every
// response.
func NewRunner(p *Pipeline, apiVersion, logicVersion, schemaVersion string) *Runner {
	return &Runner{
		pipeline:      p,
		apiVersion:    apiVersion,
		logicVersion:  logicVersion,
		schemaVersion: schemaVersion,
	}
}

// Run executes the full analysis for one request. An empty requestID gets a
// generated UUID so every log line and error is traceable.
func (r *Runner) Run(ctx context.Context, req *decision.Request, requestID string) (*decision.Response, error) {
	if req == nil {
		return nil, errors.New("nil decision request")
	}
	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid decision request")
	}
	if requestID == "" {
		requestID = uuid.New().String()
	}

	input := decision.Normalize(req)
	state := decision.NewState(requestID, r.apiVersion, r.logicVersion, r.schemaVersion, input)
	return r.pipeline.Execute(ctx, state)
}
