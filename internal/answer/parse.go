package answer

import (
	"encoding/json"
	"fmt"

	"github.com/Jeffawe/LedgerMind/internal/schema"
)

// Parse decodes model output into an EngineAnswer after checking it against
// the answer contract.
func Parse(raw []byte) (EngineAnswer, error) {
	if err := schema.Validate(schema.Answer, raw); err != nil {
		return EngineAnswer{}, fmt.Errorf("answer.Parse: %w", err)
	}
	var a EngineAnswer
	if err := json.Unmarshal(raw, &a); err != nil {
		return EngineAnswer{}, fmt.Errorf("answer.Parse: %w", err)
	}
	return a, nil
}

// UnmarshalJSON accepts the version under either "schema" or
// "schema_version". Only a missing key takes the current version; a present
// but empty value is kept so the validator can report it.
func (a *EngineAnswer) UnmarshalJSON(data []byte) error {
	type plain EngineAnswer
	var body plain
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	var version struct {
		Schema        *string `json:"schema"`
		SchemaVersion *string `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &version); err != nil {
		return err
	}
	switch {
	case version.Schema != nil:
		body.SchemaVersion = *version.Schema
	case version.SchemaVersion != nil:
		body.SchemaVersion = *version.SchemaVersion
	default:
		body.SchemaVersion = SchemaVersion
	}
	*a = EngineAnswer(body)
	return nil
}
