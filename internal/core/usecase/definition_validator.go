package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atvirokodosprendimai/pcm/internal/core/domain"
)

const fieldDefinitionSchema = `{
	"type": "object",
	"required": ["slug", "type"],
	"additionalProperties": false,
	"properties": {
		"slug": {"type": "string", "minLength": 1},
		"name": {"type": "string"},
		"type": {"type": "string", "minLength": 1}
	}
}`

var createDefinitionSchema = `{
	"type": "object",
	"required": ["properties"],
	"additionalProperties": false,
	"properties": {
		"properties": {
			"type": "object",
			"required": ["slug", "name"],
			"additionalProperties": false,
			"properties": {
				"slug": {"type": "string", "minLength": 1},
				"name": {"type": "string", "minLength": 1}
			}
		},
		"fields": {"type": "array", "items": ` + fieldDefinitionSchema + `}
	}
}`

var updateDefinitionSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"properties": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"slug": {"type": "string"},
				"name": {"type": "string"}
			}
		},
		"fields": {"type": "array", "items": ` + fieldDefinitionSchema + `}
	}
}`

const renameFieldSchema = `{
	"type": "object",
	"required": ["slug"],
	"additionalProperties": false,
	"properties": {
		"slug": {"type": "string", "minLength": 1}
	}
}`

// CollectionDefinition is the request document of the create and update operations.
type CollectionDefinition struct {
	Properties domain.CollectionProperties `json:"properties"`
	Fields     []domain.FieldDefinition    `json:"fields"`
}

type FieldRename struct {
	Slug string `json:"slug"`
}

// DefinitionValidator checks request documents against JSON schemas compiled once at
// construction.
type DefinitionValidator struct {
	create *santhosh.Schema
	update *santhosh.Schema
	rename *santhosh.Schema
}

func NewDefinitionValidator() (*DefinitionValidator, error) {
	create, err := compileSchema("create.json", createDefinitionSchema)
	if err != nil {
		return nil, fmt.Errorf("compile create schema: %w", err)
	}
	update, err := compileSchema("update.json", updateDefinitionSchema)
	if err != nil {
		return nil, fmt.Errorf("compile update schema: %w", err)
	}
	rename, err := compileSchema("rename.json", renameFieldSchema)
	if err != nil {
		return nil, fmt.Errorf("compile rename schema: %w", err)
	}
	return &DefinitionValidator{create: create, update: update, rename: rename}, nil
}

// DecodeCreate validates raw and decodes it. Returns *domain.DefinitionViolationError when
// the document does not match the schema.
func (v *DefinitionValidator) DecodeCreate(raw json.RawMessage) (CollectionDefinition, error) {
	var def CollectionDefinition
	if err := decodeValidated(v.create, raw, &def); err != nil {
		return CollectionDefinition{}, err
	}
	return def, nil
}

func (v *DefinitionValidator) DecodeUpdate(raw json.RawMessage) (CollectionDefinition, error) {
	var def CollectionDefinition
	if err := decodeValidated(v.update, raw, &def); err != nil {
		return CollectionDefinition{}, err
	}
	return def, nil
}

func (v *DefinitionValidator) DecodeRename(raw json.RawMessage) (FieldRename, error) {
	var rename FieldRename
	if err := decodeValidated(v.rename, raw, &rename); err != nil {
		return FieldRename{}, err
	}
	return rename, nil
}

func compileSchema(name, doc string) (*santhosh.Schema, error) {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource(name, strings.NewReader(doc)); err != nil {
		return nil, err
	}
	return compiler.Compile(name)
}

func decodeValidated(sch *santhosh.Schema, raw json.RawMessage, out any) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return &domain.DefinitionViolationError{Errors: []string{"body must be valid json"}}
	}
	if err := sch.Validate(v); err != nil {
		var ve *santhosh.ValidationError
		if errors.As(err, &ve) {
			return &domain.DefinitionViolationError{Errors: collectValidationErrors(ve)}
		}
		return &domain.DefinitionViolationError{Errors: []string{err.Error()}}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode definition: %w", err)
	}
	return nil
}

func collectValidationErrors(ve *santhosh.ValidationError) []string {
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, collectValidationErrors(cause)...)
	}
	if len(ve.Causes) == 0 {
		msgs = append(msgs, ve.Error())
	}
	return msgs
}
