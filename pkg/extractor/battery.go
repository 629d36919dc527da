package extractor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jmylchreest/grounding/pkg/schema"
)

// Battery output columns.
const (
	ColContainsBattery = "Does the product contain a battery?"
	ColBatteryCount    = "Number of Batteries Per Unit"
	ColBatteryWeight   = "Weight of Single Battery (in KG to 3 decimals)"
	ColBatteryType     = "Battery type or model"
	ColChemistry       = "Battery Chemistry"
	ColRechargeable    = "Is the battery rechargeable?"
	ColBatteryBrand    = "BATTERY BRAND IF AVAILABLE"
	ColIntegrated      = "Is the battery Integrated or Stand Alone"
)

var batterySchema = schema.MustSchema[schema.BatteryInformation](
	schema.WithDescription("Verified battery information for a single product."),
)

// Battery extracts battery presence and attributes.
type Battery struct {
	base
	columns []string
}

// NewBattery creates a battery extractor.
func NewBattery(searcher Searcher, opts ...Option) *Battery {
	o := buildOptions(opts)

	columns := []string{
		ColManufacturer, ColPartNumber, ColDescription,
		ColContainsBattery, ColBatteryCount, ColBatteryWeight,
		ColBatteryType, ColChemistry, ColRechargeable,
		ColBatteryBrand, ColIntegrated,
	}
	columns = append(columns, sourceColumns(o.maxSources)...)

	return &Battery{
		base: base{
			name:     "battery",
			searcher: searcher,
			schema:   batterySchema,
			opts:     o,
		},
		columns: columns,
	}
}

// Columns returns the output CSV header.
func (e *Battery) Columns() []string {
	return append([]string(nil), e.columns...)
}

// Extract looks up the battery information of a product.
func (e *Battery) Extract(ctx context.Context, manufacturer, partNumber, description string) (*Result, error) {
	if err := ValidateInputs(manufacturer, partNumber, description); err != nil {
		return nil, err
	}
	return e.extract(ctx, e.BuildPrompt(manufacturer, partNumber, description), manufacturer, partNumber)
}

// FormatRow maps a battery result onto the output columns.
func (e *Battery) FormatRow(manufacturer, partNumber, description string, res *Result) (Record, error) {
	if res == nil {
		return Record{}, ErrNoStructuredData
	}
	b, ok := res.Data.(*schema.BatteryInformation)
	if !ok {
		return Record{}, fmt.Errorf("battery: unexpected result type %T", res.Data)
	}

	integrated := "Stand Alone"
	if b.IsIntegrated {
		integrated = "Integrated"
	}

	values := []string{
		manufacturer, partNumber, description,
		yesNo(b.ContainsBattery),
		strconv.Itoa(b.BatteryCount),
		formatWeight(b.BatteryWeightKg),
		b.BatteryTypeModel,
		b.BatteryChemistry,
		yesNo(b.IsRechargeable),
		b.BatteryBrand,
		integrated,
	}
	values = append(values, formatSources(b.ReferenceSources, e.opts.maxSources)...)

	return Record{Columns: e.Columns(), Values: values}, nil
}

// EmptyRow returns the placeholder row for a failed extraction.
func (e *Battery) EmptyRow(manufacturer, partNumber, description string) Record {
	return emptyRow(e.Columns(), manufacturer, partNumber, description)
}

// BuildPrompt returns the battery prompt.
func (e *Battery) BuildPrompt(manufacturer, partNumber, description string) string {
	return fmt.Sprintf(`You are a precise battery information extraction assistant. Extract ONLY verified battery specifications for this exact product:

Product Details:
- Manufacturer: %[1]s
- Part Number: %[2]s
- Description: %[3]s

SEARCH REQUIREMENTS:
Search using EXACT product identifiers: "%[1]s %[2]s" OR "%[1]s %[2]s %[3]s"
Prioritize official manufacturer websites, technical datasheets, user manuals, and authorized distributors.
Verify the part number matches exactly. Reject information for similar but different part numbers.

REQUIRED OUTPUT (JSON format):
{
    "contains_battery": [true/false - does this product contain any battery],
    "battery_count": [number of batteries per unit, 0 if no battery],
    "battery_weight_kg": [weight of single battery in kg to 3 decimals, 0.000 if no battery],
    "battery_type_model": [specific battery type/model like "AA", "18650", "BL-5C", empty string if no battery],
    "battery_chemistry": [battery chemistry like "Li-ion", "NiMH", "Alkaline", "Li-Po", empty string if no battery],
    "is_rechargeable": [true/false - is the battery rechargeable, false if no battery],
    "battery_brand": [battery brand if specified, empty string if not available or no battery],
    "is_integrated": [true if battery is built-in/integrated, false if removable/standalone],
    "reference_sources": [array of 1-5 valid URLs to official sources with exact part number confirmation]
}

SEARCH STRATEGY:
1. Search for: "%[1]s %[2]s battery specifications"
2. Search for: "%[1]s %[2]s user manual datasheet"
3. Search for: "%[1]s %[2]s power requirements"
4. Search the manufacturer's official website using the part number
5. Check authorized distributors and technical documentation
6. Look for FCC ID documents, which often contain battery information
7. Search for product teardowns or technical reviews

VALIDATION RULES:
- Verify the part number EXACTLY matches in all source documents
- If the product has no battery, set contains_battery=false, battery_count=0, battery_weight_kg=0.000
- For integrated batteries, look for charging specifications and built-in power
- For standalone batteries, check if they are included or sold separately
- Battery weight should be realistic for the battery type and product category
- Common battery chemistries: Li-ion, Li-Po, NiMH, NiCd, Alkaline, Lithium
- URLs must link to pages that explicitly mention the exact part number
- Reject information from generic or similar products
- If battery info is not found after a thorough search, return contains_battery=false

SPECIAL CONSIDERATIONS:
- Headsets and audio devices often have rechargeable Li-ion batteries
- Network testing equipment may use AA/AAA batteries or rechargeable packs
- Some products may have backup batteries in addition to main power
- Check for charging docks, USB charging, or external power adapters as indicators
- Look for battery life specifications in hours as confirmation of battery presence

CRITICAL: Only return battery information if you can verify it is for the EXACT part number provided.
Do not use information from similar or related products.
`, manufacturer, partNumber, description)
}

var _ Extractor = (*Battery)(nil)
