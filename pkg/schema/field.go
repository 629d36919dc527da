// Package schema defines the structured shapes returned by the search backend
// and the validation rules they must satisfy.
package schema

import (
	"fmt"
	"strings"
)

// FieldType represents the type of a schema field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// Field represents a single field in the schema.
type Field struct {
	Name        string    `json:"name,omitempty" yaml:"name,omitempty"`
	Type        FieldType `json:"type" yaml:"type"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Items       *Field    `json:"items,omitempty" yaml:"items,omitempty"`           // For array types
	Properties  []Field   `json:"properties,omitempty" yaml:"properties,omitempty"` // For object types
	Validators  []string  `json:"validators,omitempty" yaml:"validators,omitempty"` // Validation tags
}

// validatorParam returns the parameter of the first validator with the given
// tag, e.g. "5" for "max=5".
func (f Field) validatorParam(tag string) (string, bool) {
	for _, v := range f.Validators {
		name, param, _ := strings.Cut(v, "=")
		if name == "dive" {
			// Rules after dive apply to the elements, not the field.
			return "", false
		}
		if name == tag {
			return param, true
		}
	}
	return "", false
}

// ValidationError represents a validation failure on a single field.
type ValidationError struct {
	Field   string
	Rule    string
	Message string
	Value   any
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every rule violated by a candidate object.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return "validation failed"
	case 1:
		return "validation failed: " + e[0].Error()
	}
	parts := make([]string, len(e))
	for i, ve := range e {
		parts[i] = ve.Error()
	}
	return fmt.Sprintf("validation failed (%d errors): %s", len(e), strings.Join(parts, "; "))
}

// Fields returns the names of the offending fields in order.
func (e ValidationErrors) Fields() []string {
	names := make([]string, len(e))
	for i, ve := range e {
		names[i] = ve.Field
	}
	return names
}
