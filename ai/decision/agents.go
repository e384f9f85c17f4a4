package decision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// BiasTypes is the closed set of recognized cognitive bias types.
// LLM output is matched case-insensitively and canonicalized to lowercase.
var BiasTypes = map[string]bool{
	"sunk_cost":    true,
	"confirmation": true,
	"optimism":     true,
	"authority":    true,
}

// CanonicalBiasType canonicalizes a bias type to its lowercase form, failing
// on anything outside the closed set.
func CanonicalBiasType(biasType string) (string, error) {
	lower := strings.ToLower(biasType)
	if BiasTypes[lower] {
		return lower, nil
	}
	allowed := make([]string, 0, len(BiasTypes))
	for t := range BiasTypes {
		allowed = append(allowed, t)
	}
	sort.Strings(allowed)
	return "", fmt.Errorf("invalid bias_type %q, must be one of: %s", biasType, strings.Join(allowed, ", "))
}

// ClarifierOutput lists what the Clarifier found missing. Both slices may be
// empty; a non-empty result is advisory and does not halt the pipeline.
type ClarifierOutput struct {
	MissingFields []string `json:"missing_fields"`
	Questions     []string `json:"questions"`
}

// NeedsInfo reports whether the Clarifier flagged missing information.
func (o *ClarifierOutput) NeedsInfo() bool {
	return len(o.MissingFields) > 0 || len(o.Questions) > 0
}

// Validate checks the clarifier output. Empty slices are valid; nil slices are
// normalized so the output always serializes as JSON arrays.
func (o *ClarifierOutput) Validate() error {
	if o.MissingFields == nil {
		o.MissingFields = []string{}
	}
	if o.Questions == nil {
		o.Questions = []string{}
	}
	return nil
}

// CriteriaBuilderOutput carries the weighted evaluation criteria. Weights are
// normalized to sum to 1.0 before the output is accepted.
type CriteriaBuilderOutput struct {
	Criteria []Criterion `json:"criteria"`
}

// Validate checks that the criteria list is non-empty and each entry is valid.
func (o *CriteriaBuilderOutput) Validate() error {
	if len(o.Criteria) == 0 {
		return fmt.Errorf("criteria list is empty")
	}
	for i := range o.Criteria {
		if err := o.Criteria[i].Validate(); err != nil {
			return fmt.Errorf("criteria[%d]: %w", i, err)
		}
	}
	return nil
}

// BiasCheckerOutput carries zero or more detected biases.
type BiasCheckerOutput struct {
	BiasFindings []BiasFinding `json:"bias_findings"`
}

// Validate canonicalizes every finding's bias type against the closed set.
func (o *BiasCheckerOutput) Validate() error {
	if o.BiasFindings == nil {
		o.BiasFindings = []BiasFinding{}
	}
	for i := range o.BiasFindings {
		canonical, err := CanonicalBiasType(o.BiasFindings[i].BiasType)
		if err != nil {
			return fmt.Errorf("bias_findings[%d]: %w", i, err)
		}
		o.BiasFindings[i].BiasType = canonical
	}
	return nil
}

// OptionEvaluatorOutput maps option name to its aggregated scores.
type OptionEvaluatorOutput struct {
	Scores map[string]OptionScores `json:"scores"`
}

// Validate checks that every score and total is within [0, 1].
func (o *OptionEvaluatorOutput) Validate() error {
	if len(o.Scores) == 0 {
		return fmt.Errorf("scores map is empty")
	}
	for option, scores := range o.Scores {
		if scores.TotalScore < 0 || scores.TotalScore > 1 {
			return fmt.Errorf("option %q total_score %v out of range [0, 1]", option, scores.TotalScore)
		}
		for i, s := range scores.Breakdown {
			if s.Score < 0 || s.Score > 1 {
				return fmt.Errorf("option %q breakdown[%d] score %v out of range [0, 1]", option, i, s.Score)
			}
		}
	}
	return nil
}

// SynthesizerOutput is the Decision Synthesizer's verdict.
type SynthesizerOutput struct {
	Winner                  string              `json:"winner"`
	Confidence              float64             `json:"confidence"`
	ConfidenceBreakdown     ConfidenceBreakdown `json:"confidence_breakdown"`
	TradeOffs               []map[string]any    `json:"trade_offs"`
	Assumptions             []string            `json:"assumptions"`
	WhatWouldChangeDecision []string            `json:"what_would_change_decision"`
}

// UnmarshalJSON rejects payloads missing the mandatory confidence value or
// the breakdown block; a missing key must not be accepted as confidence 0.
func (o *SynthesizerOutput) UnmarshalJSON(data []byte) error {
	type plain SynthesizerOutput
	aux := struct {
		Confidence          *float64             `json:"confidence"`
		ConfidenceBreakdown *ConfidenceBreakdown `json:"confidence_breakdown"`
		*plain
	}{plain: (*plain)(o)}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&aux); err != nil {
		return err
	}
	if aux.Confidence == nil {
		return fmt.Errorf("confidence is missing")
	}
	if aux.ConfidenceBreakdown == nil {
		return fmt.Errorf("confidence_breakdown is missing")
	}
	o.Confidence = *aux.Confidence
	o.ConfidenceBreakdown = *aux.ConfidenceBreakdown
	return nil
}

// Validate bounds-checks the confidence value and all breakdown factors.
// Winner membership is checked by the synthesizer agent, which knows the
// option list.
func (o *SynthesizerOutput) Validate() error {
	if strings.TrimSpace(o.Winner) == "" {
		return fmt.Errorf("winner is empty")
	}
	if o.Confidence < 0 || o.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0, 1]", o.Confidence)
	}
	if err := o.ConfidenceBreakdown.Validate(); err != nil {
		return err
	}
	if o.TradeOffs == nil {
		o.TradeOffs = []map[string]any{}
	}
	if o.Assumptions == nil {
		o.Assumptions = []string{}
	}
	if o.WhatWouldChangeDecision == nil {
		o.WhatWouldChangeDecision = []string{}
	}
	return nil
}
