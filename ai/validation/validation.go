// Package validation checks JSON payloads against their target types and,
// when a payload is well-formed but structurally invalid, attempts a single
// LLM-assisted repair round-trip before giving up.
package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/hrygo/decisionflow/ai/core/llm"
	"github.com/hrygo/decisionflow/ai/internal/strutil"
)

// RepairTemplateName is the prompt template used for schema repair.
const RepairTemplateName = "repair"

// maxRepairPayload bounds the invalid JSON excerpt embedded in the repair
// prompt.
const maxRepairPayload = 2000

// Validatable is implemented by every schema type the service validates.
// Validate may canonicalize fields in place (e.g. lowercase enum values).
type Validatable interface {
	Validate() error
}

// Target constrains a pointer-to-schema type.
type Target[T any] interface {
	*T
	Validatable
}

// Error reports a failed validation, distinguishing whether a repair
// round-trip was attempted before giving up.
type Error struct {
	AgentName       string
	Errors          []string
	RepairAttempted bool
}

func (e *Error) Error() string {
	if e.RepairAttempted {
		return fmt.Sprintf("schema validation failed after repair attempt: %s", strings.Join(e.Errors, "; "))
	}
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Errors, "; "))
}

// Service validates payloads with optional one-shot repair through the
// gateway. A nil gateway disables repair.
type Service struct {
	gateway llm.Gateway
}

// NewService creates a validation service. Pass a nil gateway to disable the
// repair round-trip.
func NewService(gateway llm.Gateway) *Service {
	return &Service{gateway: gateway}
}

// Decode strictly decodes JSON into a fresh T, rejecting unknown fields, then
// runs the type's own validation.
func Decode[T any, PT Target[T]](data []byte) (*T, error) {
	var value T
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	if err := PT(&value).Validate(); err != nil {
		return nil, err
	}
	return &value, nil
}

// Validate decodes and validates data into T. When the payload is invalid and
// the service has a gateway, exactly one repair round-trip is attempted: the
// invalid payload, the target's JSON Schema, and the validation errors are
// rendered into the repair prompt, the completion is parsed, and the result is
// re-validated. A second failure is terminal and reported distinctly from an
// unattempted-repair failure.
func Validate[T any, PT Target[T]](ctx context.Context, svc *Service, data []byte, agentName string) (*T, error) {
	value, err := Decode[T, PT](data)
	if err == nil {
		return value, nil
	}

	verr := &Error{AgentName: agentName, Errors: []string{err.Error()}}
	if svc == nil || svc.gateway == nil {
		return nil, verr
	}

	repaired, repairErr := svc.repair(ctx, data, schemaFor[T](), verr.Errors, agentName)
	verr.RepairAttempted = true
	if repairErr != nil {
		verr.Errors = append(verr.Errors, repairErr.Error())
		return nil, verr
	}

	value, err = Decode[T, PT](repaired)
	if err != nil {
		verr.Errors = append(verr.Errors, err.Error())
		return nil, verr
	}
	return value, nil
}

func (s *Service) repair(ctx context.Context, invalid []byte, schema []byte, validationErrors []string, agentName string) ([]byte, error) {
	payload := strutil.Truncate(string(invalid), maxRepairPayload)
	errsJSON, err := json.Marshal(validationErrors)
	if err != nil {
		return nil, fmt.Errorf("marshal validation errors: %w", err)
	}

	vars := map[string]string{
		"invalid_json":      payload,
		"json_schema":       string(schema),
		"validation_errors": string(errsJSON),
		"agent_name":        agentName,
	}

	completion, err := s.gateway.CompleteWithPromptTemplate(ctx, RepairTemplateName, vars)
	if err != nil {
		return nil, fmt.Errorf("repair call failed: %w", err)
	}

	repaired := []byte(StripCodeFence(completion))
	if !json.Valid(repaired) {
		return nil, fmt.Errorf("repair response is not valid JSON")
	}
	return repaired, nil
}

// schemaFor renders the JSON Schema of T for the repair prompt.
func schemaFor[T any]() []byte {
	reflector := jsonschema.Reflector{DoNotReference: true}
	var value T
	schema := reflector.Reflect(&value)
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return []byte("{}")
	}
	return data
}

// StripCodeFence removes optional surrounding markdown code-fence markup
// (leading/trailing triple backticks with an optional "json" language tag)
// from a completion.
func StripCodeFence(s string) string {
	text := strings.TrimSpace(s)
	if strings.HasPrefix(text, "```json") {
		text = text[len("```json"):]
	} else if strings.HasPrefix(text, "```") {
		text = text[len("```"):]
	}
	if strings.HasSuffix(text, "```") {
		text = text[:len(text)-len("```")]
	}
	return strings.TrimSpace(text)
}
