// Package schema holds the JSON Schema contracts for model output and tool
// arguments and validates documents against them.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed contracts/*.json
var contractFS embed.FS

// Contract names an embedded schema document.
type Contract string

const (
	Plan   Contract = "plan.v1.json"
	Answer Contract = "answer.v1.json"
)

func (c Contract) Valid() bool {
	return c == Plan || c == Answer
}

// ValidationError describes a single schema violation.
type ValidationError struct {
	Path    string
	Message string
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Errors is a list of violations reported together.
type Errors []ValidationError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, v := range e {
		parts = append(parts, v.Error())
	}
	return strings.Join(parts, "; ")
}

var (
	compileOnce sync.Once
	compiled    map[Contract]*jsonschema.Schema
	compileErr  error
)

func compileContracts() {
	compiled = make(map[Contract]*jsonschema.Schema)
	for _, c := range []Contract{Plan, Answer} {
		doc, err := Document(c)
		if err != nil {
			compileErr = err
			return
		}
		sch, err := compile(string(c), doc)
		if err != nil {
			compileErr = fmt.Errorf("schema: compile %s: %w", c, err)
			return
		}
		compiled[c] = sch
	}
}

func compile(name string, doc any) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(name)
}

// Text returns the raw contract document.
func Text(c Contract) string {
	data, err := contractFS.ReadFile("contracts/" + string(c))
	if err != nil {
		return ""
	}
	return string(data)
}

// Document returns the contract decoded as a generic JSON value.
func Document(c Contract) (map[string]any, error) {
	data, err := contractFS.ReadFile("contracts/" + string(c))
	if err != nil {
		return nil, fmt.Errorf("schema.Document: unknown contract %q: %w", c, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema.Document: parse %q: %w", c, err)
	}
	return doc, nil
}

// Validate checks raw JSON against contract c.
func Validate(c Contract, raw []byte) error {
	compileOnce.Do(compileContracts)
	if compileErr != nil {
		return compileErr
	}
	sch, ok := compiled[c]
	if !ok {
		return fmt.Errorf("schema.Validate: unknown contract %q", c)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("schema.Validate: %w", err)
	}
	return flatten(sch.Validate(inst))
}

// ValidateValue checks an in-memory value against an ad-hoc schema document,
// as used for tool argument schemas.
func ValidateValue(schemaDoc map[string]any, value any) error {
	if len(schemaDoc) == 0 {
		return nil
	}
	docBytes, err := json.Marshal(schemaDoc)
	if err != nil {
		return fmt.Errorf("schema.ValidateValue: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(docBytes))
	if err != nil {
		return fmt.Errorf("schema.ValidateValue: %w", err)
	}
	sch, err := compile("args.json", doc)
	if err != nil {
		return fmt.Errorf("schema.ValidateValue: %w", err)
	}
	// Round-trip so Go-built values ([]string, int) take their JSON shape.
	valBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("schema.ValidateValue: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(valBytes))
	if err != nil {
		return fmt.Errorf("schema.ValidateValue: %w", err)
	}
	return flatten(sch.Validate(inst))
}

func flatten(err error) error {
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	var out Errors
	var walk func(v *jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			out = append(out, ValidationError{
				Path:    "/" + strings.Join(v.InstanceLocation, "/"),
				Message: leafMessage(v),
			})
			return
		}
		for _, c := range v.Causes {
			walk(c)
		}
	}
	walk(ve)
	if len(out) == 0 {
		return err
	}
	return out
}

func leafMessage(v *jsonschema.ValidationError) string {
	msg := v.Error()
	// The library prefixes messages with the instance location.
	if i := strings.LastIndex(msg, ": "); i >= 0 && i+2 < len(msg) {
		return msg[i+2:]
	}
	return msg
}
