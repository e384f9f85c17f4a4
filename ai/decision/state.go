package decision

// State is the request-scoped mutable record shared across all five agents for
// one request. It is owned exclusively by the pipeline for the duration of one
// run: agents read from it, and the pipeline writes each agent's output into
// its slot exactly once, in fixed order. Slots are never overwritten.
type State struct {
	RequestID     string
	APIVersion    string
	LogicVersion  string
	SchemaVersion string

	// Input is immutable after construction.
	Input NormalizedInput

	// Output slots, populated strictly in pipeline order. A later slot is
	// never populated before every earlier slot is.
	Clarifier   *ClarifierOutput
	Criteria    *CriteriaBuilderOutput
	Biases      *BiasCheckerOutput
	Evaluations *OptionEvaluatorOutput
	Synthesis   *SynthesizerOutput
}

// NewState builds the initial state for one request with only the
// normalized-input fields populated.
func NewState(requestID, apiVersion, logicVersion, schemaVersion string, input NormalizedInput) *State {
	return &State{
		RequestID:     requestID,
		APIVersion:    apiVersion,
		LogicVersion:  logicVersion,
		SchemaVersion: schemaVersion,
		Input:         input,
	}
}
