package schema

// ProductSpecification holds the physical specifications of a product.
type ProductSpecification struct {
	WeightKg         float64  `json:"weight_kg" description:"Product weight in kilograms" validate:"gt=0"`
	LengthCm         float64  `json:"length_cm" description:"Product length in centimeters" validate:"gt=0"`
	WidthCm          float64  `json:"width_cm" description:"Product width in centimeters" validate:"gt=0"`
	HeightCm         float64  `json:"height_cm" description:"Product height in centimeters" validate:"gt=0"`
	ReferenceSources []string `json:"reference_sources" description:"Reference source URLs" validate:"min=1,max=5,dive,sourceurl"`
}

// BatteryInformation describes the batteries contained in a product.
// When ContainsBattery is false, count and weight must both be zero; when it
// is true, both must be positive.
type BatteryInformation struct {
	ContainsBattery  bool     `json:"contains_battery" description:"Whether the product contains a battery"`
	BatteryCount     int      `json:"battery_count" description:"Number of batteries per unit (0 if no battery)" validate:"gte=0"`
	BatteryWeightKg  float64  `json:"battery_weight_kg" description:"Weight of single battery in kilograms (0 if no battery)" validate:"gte=0"`
	BatteryTypeModel string   `json:"battery_type_model" description:"Battery type or model (empty string if no battery)"`
	BatteryChemistry string   `json:"battery_chemistry" description:"Battery chemistry (e.g., Li-ion, NiMH, Alkaline)"`
	IsRechargeable   bool     `json:"is_rechargeable" description:"Whether the battery is rechargeable"`
	BatteryBrand     string   `json:"battery_brand" description:"Battery brand if available (empty string if not available)"`
	IsIntegrated     bool     `json:"is_integrated" description:"True if integrated, False if standalone"`
	ReferenceSources []string `json:"reference_sources" description:"Reference source URLs" validate:"min=1,max=5,dive,sourceurl"`
}

// Conversion factors for imperial output.
const (
	PoundsPerKilogram   = 2.20462
	InchesPerCentimeter = 0.393701
)

// ImperialSpecification is a ProductSpecification in pounds and inches.
type ImperialSpecification struct {
	WeightLbs float64 `json:"weight_lbs"`
	LengthIn  float64 `json:"length_in"`
	WidthIn   float64 `json:"width_in"`
	HeightIn  float64 `json:"height_in"`
}

// Imperial converts the metric specification to imperial units.
func (p ProductSpecification) Imperial() ImperialSpecification {
	return ImperialSpecification{
		WeightLbs: p.WeightKg * PoundsPerKilogram,
		LengthIn:  p.LengthCm * InchesPerCentimeter,
		WidthIn:   p.WidthCm * InchesPerCentimeter,
		HeightIn:  p.HeightCm * InchesPerCentimeter,
	}
}
