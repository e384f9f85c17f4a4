// Package decision defines the domain types shared by the analysis pipeline:
// the request/response contract, the per-agent output schemas, and the
// request-scoped pipeline state.
package decision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MinOptions and MaxOptions bound the number of options per request.
	MinOptions = 2
	MaxOptions = 20

	// MinContextLen and MaxContextLen bound the decision context text.
	MinContextLen = 10
	MaxContextLen = 10000
)

// Request is the inbound decision-analysis request.
type Request struct {
	DecisionContext     string         `json:"decision_context"`
	Options             []string       `json:"options"`
	Constraints         map[string]any `json:"constraints,omitempty"`
	CriteriaPreferences []string       `json:"criteria_preferences,omitempty"`
	ContextMetadata     map[string]any `json:"context_metadata,omitempty"`
}

// Validate checks the request boundary constraints.
func (r *Request) Validate() error {
	// Character count, not bytes: multi-byte contexts must not hit the
	// ceiling early.
	if n := utf8.RuneCountInString(strings.TrimSpace(r.DecisionContext)); n < MinContextLen || n > MaxContextLen {
		return fmt.Errorf("decision_context length %d out of range [%d, %d]", n, MinContextLen, MaxContextLen)
	}
	if n := len(r.Options); n < MinOptions || n > MaxOptions {
		return fmt.Errorf("options count %d out of range [%d, %d]", n, MinOptions, MaxOptions)
	}
	for i, opt := range r.Options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("options[%d] is empty", i)
		}
	}
	return nil
}

// NormalizedInput is the sanitized form of a Request, immutable once the
// pipeline state is created. The sanitizer is currently a passthrough copy.
type NormalizedInput struct {
	DecisionContext     string         `json:"decision_context"`
	Options             []string       `json:"options"`
	Constraints         map[string]any `json:"constraints,omitempty"`
	CriteriaPreferences []string       `json:"criteria_preferences,omitempty"`
	ContextMetadata     map[string]any `json:"context_metadata,omitempty"`
}

// Normalize sanitizes a validated request into its normalized form.
func Normalize(r *Request) NormalizedInput {
	opts := make([]string, len(r.Options))
	copy(opts, r.Options)
	return NormalizedInput{
		DecisionContext:     r.DecisionContext,
		Options:             opts,
		Constraints:         r.Constraints,
		CriteriaPreferences: r.CriteriaPreferences,
		ContextMetadata:     r.ContextMetadata,
	}
}

// Criterion is one weighted evaluation criterion.
type Criterion struct {
	Name      string  `json:"name"`
	Weight    float64 `json:"weight"`
	Rationale string  `json:"rationale"`
}

// Validate checks a single criterion.
func (c *Criterion) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("criterion name is empty")
	}
	if c.Weight < 0 || c.Weight > 1 {
		return fmt.Errorf("criterion %q weight %v out of range [0, 1]", c.Name, c.Weight)
	}
	return nil
}

// BiasFinding is one detected cognitive bias.
type BiasFinding struct {
	BiasType    string `json:"bias_type"`
	Description string `json:"description"`
	Evidence    string `json:"evidence"`
}

// OptionScore is the score of one option against one criterion.
type OptionScore struct {
	CriterionName string  `json:"criterion_name"`
	Score         float64 `json:"score"`
	Justification string  `json:"justification"`
}

// OptionScores aggregates per-criterion scores for one option.
type OptionScores struct {
	TotalScore float64       `json:"total_score"`
	Breakdown  []OptionScore `json:"breakdown"`
}

// ConfidenceBreakdown decomposes the scalar confidence value into four
// independently bounded factors.
type ConfidenceBreakdown struct {
	InputCompleteness float64 `json:"input_completeness"`
	AgentAgreement    float64 `json:"agent_agreement"`
	EvidenceStrength  float64 `json:"evidence_strength"`
	BiasImpact        float64 `json:"bias_impact"`
}

// UnmarshalJSON rejects payloads missing any of the four factors. A zero
// value must come from the model, never from an absent key.
func (b *ConfidenceBreakdown) UnmarshalJSON(data []byte) error {
	aux := struct {
		InputCompleteness *float64 `json:"input_completeness"`
		AgentAgreement    *float64 `json:"agent_agreement"`
		EvidenceStrength  *float64 `json:"evidence_strength"`
		BiasImpact        *float64 `json:"bias_impact"`
	}{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&aux); err != nil {
		return err
	}
	for name, v := range map[string]*float64{
		"input_completeness": aux.InputCompleteness,
		"agent_agreement":    aux.AgentAgreement,
		"evidence_strength":  aux.EvidenceStrength,
		"bias_impact":        aux.BiasImpact,
	} {
		if v == nil {
			return fmt.Errorf("confidence breakdown factor %s is missing", name)
		}
	}
	b.InputCompleteness = *aux.InputCompleteness
	b.AgentAgreement = *aux.AgentAgreement
	b.EvidenceStrength = *aux.EvidenceStrength
	b.BiasImpact = *aux.BiasImpact
	return nil
}

// Validate checks that every factor lies in [0, 1].
func (b *ConfidenceBreakdown) Validate() error {
	factors := map[string]float64{
		"input_completeness": b.InputCompleteness,
		"agent_agreement":    b.AgentAgreement,
		"evidence_strength":  b.EvidenceStrength,
		"bias_impact":        b.BiasImpact,
	}
	for _, name := range []string{"input_completeness", "agent_agreement", "evidence_strength", "bias_impact"} {
		v := factors[name]
		if v < 0 || v > 1 {
			return fmt.Errorf("confidence breakdown factor %s (%v) out of range [0, 1]", name, v)
		}
	}
	return nil
}

// VersionMetadata identifies the contract versions a response was produced under.
type VersionMetadata struct {
	APIVersion    string `json:"api_version"`
	LogicVersion  string `json:"logic_version"`
	SchemaVersion string `json:"schema_version"`
}

// Response is the terminal artifact of a successful pipeline run. It is built
// once, by projecting the final pipeline state, and never partially emitted.
type Response struct {
	Decision                string                  `json:"decision"`
	Options                 []string                `json:"options"`
	Criteria                []Criterion             `json:"criteria"`
	Scores                  map[string]OptionScores `json:"scores"`
	Winner                  string                  `json:"winner"`
	Confidence              float64                 `json:"confidence"`
	ConfidenceBreakdown     ConfidenceBreakdown     `json:"confidence_breakdown"`
	BiasesDetected          []BiasFinding           `json:"biases_detected"`
	TradeOffs               []map[string]any        `json:"trade_offs"`
	Assumptions             []string                `json:"assumptions"`
	Risks                   []map[string]any        `json:"risks"`
	WhatWouldChangeDecision []string                `json:"what_would_change_decision"`
	Meta                    VersionMetadata         `json:"meta"`
	RequestID               string                  `json:"request_id"`
}
