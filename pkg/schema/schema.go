package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrEmptyResponse is returned by Parse when the model produced no JSON.
var ErrEmptyResponse = errors.New("empty response")

// Schema describes a structured output type for the search backend.
type Schema struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []Field `json:"fields" yaml:"fields"`

	target   reflect.Type // Original struct type for unmarshaling
	validate *validator.Validate
}

// SchemaOption configures schema creation.
type SchemaOption func(*schemaBuilder)

type schemaBuilder struct {
	description string
}

// WithDescription sets the schema description.
func WithDescription(desc string) SchemaOption {
	return func(b *schemaBuilder) {
		b.description = desc
	}
}

// NewSchema creates a Schema from a struct type using reflection.
func NewSchema[T any](opts ...SchemaOption) (Schema, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return Schema{}, fmt.Errorf("schema must be created from a struct type, got interface")
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return Schema{}, fmt.Errorf("schema must be created from a struct type, got %v", t.Kind())
	}

	builder := &schemaBuilder{}
	for _, opt := range opts {
		opt(builder)
	}

	fields, err := extractFields(t)
	if err != nil {
		return Schema{}, err
	}

	return Schema{
		Name:        t.Name(),
		Description: builder.description,
		Fields:      fields,
		target:      t,
		validate:    defaultValidator,
	}, nil
}

// MustSchema is NewSchema for package-level declarations of known-good types.
func MustSchema[T any](opts ...SchemaOption) Schema {
	s, err := NewSchema[T](opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// extractFields recursively extracts field definitions from a struct type.
func extractFields(t reflect.Type) ([]Field, error) {
	fields := make([]Field, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		if getJSONName(sf) == "-" {
			continue
		}

		field, err := extractFieldFromType(sf.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		field.Name = getJSONName(sf)
		field.Description = sf.Tag.Get("description")
		field.Required = !hasOmitempty(sf) && sf.Type.Kind() != reflect.Ptr
		field.Validators = parseValidators(sf.Tag.Get("validate"))

		fields = append(fields, field)
	}

	return fields, nil
}

// extractFieldFromType extracts a Field definition from a reflect.Type.
func extractFieldFromType(t reflect.Type) (Field, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	field := Field{}

	switch t.Kind() {
	case reflect.String:
		field.Type = TypeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		field.Type = TypeInteger
	case reflect.Float32, reflect.Float64:
		field.Type = TypeNumber
	case reflect.Bool:
		field.Type = TypeBoolean
	case reflect.Slice:
		field.Type = TypeArray
		itemField, err := extractFieldFromType(t.Elem())
		if err != nil {
			return Field{}, err
		}
		field.Items = &itemField
	case reflect.Struct:
		field.Type = TypeObject
		props, err := extractFields(t)
		if err != nil {
			return Field{}, err
		}
		field.Properties = props
	default:
		return Field{}, fmt.Errorf("unsupported type: %v", t.Kind())
	}

	return field, nil
}

// getJSONName returns the JSON field name from struct tags.
func getJSONName(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "" {
		return sf.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name != "" {
		return name
	}
	return sf.Name
}

// hasOmitempty checks if the json tag contains omitempty.
func hasOmitempty(sf reflect.StructField) bool {
	return strings.Contains(sf.Tag.Get("json"), "omitempty")
}

// parseValidators extracts validator tags.
func parseValidators(tag string) []string {
	if tag == "" {
		return nil
	}
	return strings.Split(tag, ",")
}

// Parse decodes a model response into a new instance of the target type and
// validates it. Markdown code fences around the JSON are tolerated.
// On success the result is a pointer to the target struct.
func (s Schema) Parse(data []byte) (any, error) {
	if s.target == nil {
		return nil, fmt.Errorf("schema %q has no target type", s.Name)
	}

	content := StripMarkdownCodeBlock(string(data))
	if content == "" {
		return nil, ErrEmptyResponse
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal: %w", err)
	}
	if missing := s.missingRequired(raw); len(missing) > 0 {
		return nil, missing
	}

	v := reflect.New(s.target).Interface()
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal: %w", err)
	}

	validate := s.validate
	if validate == nil {
		validate = defaultValidator
	}
	if err := validateWith(validate, v); err != nil {
		return nil, err
	}
	return v, nil
}

// missingRequired reports required top-level fields that are absent or null.
func (s Schema) missingRequired(raw map[string]json.RawMessage) ValidationErrors {
	var errs ValidationErrors
	for _, f := range s.Fields {
		if !f.Required {
			continue
		}
		if v, ok := raw[f.Name]; ok && string(bytes.TrimSpace(v)) != "null" {
			continue
		}
		errs = append(errs, ValidationError{Field: f.Name, Rule: "required", Message: "is required"})
	}
	return errs
}

// Decode parses data into a *T using the schema built for T.
func Decode[T any](data []byte) (*T, error) {
	s, err := NewSchema[T]()
	if err != nil {
		return nil, err
	}
	v, err := s.Parse(data)
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}

// StripMarkdownCodeBlock removes markdown code block wrappers from JSON responses.
// Some models wrap their JSON output in ```json ... ``` blocks.
func StripMarkdownCodeBlock(s string) string {
	s = strings.TrimSpace(s)

	switch {
	case strings.HasPrefix(s, "```json"):
		s = strings.TrimPrefix(s, "```json")
	case strings.HasPrefix(s, "```"):
		s = strings.TrimPrefix(s, "```")
	default:
		return s
	}

	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
