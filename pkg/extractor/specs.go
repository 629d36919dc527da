package extractor

import (
	"context"
	"fmt"

	"github.com/jmylchreest/grounding/pkg/schema"
)

// Specs output columns.
const (
	ColWeightKg = "Product Weight in kg (3 decimals)"
	ColLengthCm = "Dim (L) CM"
	ColWidthCm  = "Dim (W) CM"
	ColHeightCm = "Dim (H) CM"

	ColWeightLbs = "Product Weight in lbs"
	ColLengthIn  = "Dim (L) IN"
	ColWidthIn   = "Dim (W) IN"
	ColHeightIn  = "Dim (H) IN"
)

var productSpecSchema = schema.MustSchema[schema.ProductSpecification](
	schema.WithDescription("Verified physical specifications of a single product."),
)

// Specs extracts product weight and dimensions.
type Specs struct {
	base
	columns []string
}

// NewSpecs creates a specs extractor.
func NewSpecs(searcher Searcher, opts ...Option) *Specs {
	o := buildOptions(opts)

	columns := []string{
		ColManufacturer, ColPartNumber, ColDescription,
		ColWeightKg, ColLengthCm, ColWidthCm, ColHeightCm,
	}
	columns = append(columns, sourceColumns(o.maxSources)...)
	if o.imperial {
		columns = append(columns, ColWeightLbs, ColLengthIn, ColWidthIn, ColHeightIn)
	}

	return &Specs{
		base: base{
			name:     "specs",
			searcher: searcher,
			schema:   productSpecSchema,
			opts:     o,
		},
		columns: columns,
	}
}

// Columns returns the output CSV header.
func (e *Specs) Columns() []string {
	return append([]string(nil), e.columns...)
}

// Extract looks up the specifications of a product.
func (e *Specs) Extract(ctx context.Context, manufacturer, partNumber, description string) (*Result, error) {
	if err := ValidateInputs(manufacturer, partNumber, description); err != nil {
		return nil, err
	}
	return e.extract(ctx, e.BuildPrompt(manufacturer, partNumber, description), manufacturer, partNumber)
}

// FormatRow maps a specs result onto the output columns. Zero values are
// written as empty strings.
func (e *Specs) FormatRow(manufacturer, partNumber, description string, res *Result) (Record, error) {
	if res == nil {
		return Record{}, ErrNoStructuredData
	}
	spec, ok := res.Data.(*schema.ProductSpecification)
	if !ok {
		return Record{}, fmt.Errorf("specs: unexpected result type %T", res.Data)
	}

	values := []string{
		manufacturer, partNumber, description,
		nonZero(spec.WeightKg, formatWeight),
		nonZero(spec.LengthCm, formatDecimal),
		nonZero(spec.WidthCm, formatDecimal),
		nonZero(spec.HeightCm, formatDecimal),
	}
	values = append(values, formatSources(spec.ReferenceSources, e.opts.maxSources)...)

	if e.opts.imperial {
		imp := spec.Imperial()
		values = append(values,
			nonZero(imp.WeightLbs, formatWeight),
			nonZero(imp.LengthIn, formatWeight),
			nonZero(imp.WidthIn, formatWeight),
			nonZero(imp.HeightIn, formatWeight),
		)
	}

	return Record{Columns: e.Columns(), Values: values}, nil
}

// EmptyRow returns the placeholder row for a failed extraction.
func (e *Specs) EmptyRow(manufacturer, partNumber, description string) Record {
	return emptyRow(e.Columns(), manufacturer, partNumber, description)
}

func nonZero(v float64, format func(float64) string) string {
	if v == 0 {
		return ""
	}
	return format(v)
}

// BuildPrompt returns the specifications prompt.
func (e *Specs) BuildPrompt(manufacturer, partNumber, description string) string {
	return fmt.Sprintf(`You are a precise product specification extraction assistant. Extract ONLY verified technical specifications for this exact product:

Product Details:
- Manufacturer: %[1]s
- Part Number: %[2]s
- Description: %[3]s

SEARCH REQUIREMENTS:
Search using EXACT product identifiers: "%[1]s %[2]s" OR "%[1]s %[2]s %[3]s"
Prioritize official manufacturer websites, technical datasheets, and authorized distributors.
Verify the part number matches exactly. Reject specifications for similar but different part numbers.

REQUIRED OUTPUT (JSON format):
{
    "weight_kg": [exact weight in kg as decimal number, must be > 0],
    "length_cm": [exact length in cm as decimal number, must be > 0],
    "width_cm": [exact width in cm as decimal number, must be > 0],
    "height_cm": [exact height in cm as decimal number, must be > 0],
    "reference_sources": [array of 1-5 valid URLs to official sources with exact part number confirmation]
}

SEARCH STRATEGY:
1. Search for: "%[1]s %[2]s specifications datasheet"
2. Search for: "%[1]s %[2]s dimensions weight"
3. Search the manufacturer's official website using the part number
4. Check authorized distributors: Digi-Key, Mouser, Arrow, etc.
5. Look for technical documentation and product manuals
6. Cross-reference multiple sources to ensure part number accuracy

VALIDATION RULES:
- Verify the part number EXACTLY matches in all source documents
- All measurements must be positive numbers
- Weight should be realistic for the product type and category
- Dimensions should be consistent across sources
- URLs must link to pages that explicitly mention the exact part number
- Reject specifications from generic or similar products
- If exact specs are not found after a thorough search, return null values rather than estimates

CRITICAL: Only return specifications if you can verify they are for the EXACT part number provided.
Do not use specifications from similar or related products.
`, manufacturer, partNumber, description)
}

var _ Extractor = (*Specs)(nil)
