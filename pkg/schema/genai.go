package schema

import "google.golang.org/genai"

var genaiTypes = map[FieldType]genai.Type{
	TypeString:  genai.TypeString,
	TypeNumber:  genai.TypeNumber,
	TypeInteger: genai.TypeInteger,
	TypeBoolean: genai.TypeBoolean,
	TypeArray:   genai.TypeArray,
	TypeObject:  genai.TypeObject,
}

// ToGenAISchema converts the schema to the Gemini response schema format.
// Property order follows struct field order.
func (s Schema) ToGenAISchema() *genai.Schema {
	out := objectToGenAI(s.Fields)
	out.Description = s.Description
	return out
}

func objectToGenAI(fields []Field) *genai.Schema {
	out := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(fields)),
	}
	for _, f := range fields {
		out.Properties[f.Name] = fieldToGenAI(f)
		out.PropertyOrdering = append(out.PropertyOrdering, f.Name)
		if f.Required {
			out.Required = append(out.Required, f.Name)
		}
	}
	return out
}

func fieldToGenAI(f Field) *genai.Schema {
	var out *genai.Schema
	if f.Type == TypeObject {
		out = objectToGenAI(f.Properties)
	} else {
		out = &genai.Schema{Type: genaiTypes[f.Type]}
	}
	out.Description = f.Description

	if f.Type == TypeArray {
		if f.Items != nil {
			out.Items = fieldToGenAI(*f.Items)
		}
		if n, ok := f.intParam("min"); ok {
			out.MinItems = genai.Ptr(n)
		}
		if n, ok := f.intParam("max"); ok {
			out.MaxItems = genai.Ptr(n)
		}
	}
	return out
}
