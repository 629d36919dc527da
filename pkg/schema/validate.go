package schema

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// sourceURLPattern accepts http(s) URLs whose host is a dotted domain with a
// 2-6 letter TLD, localhost, or a dotted IPv4 address, with optional port
// and path.
var sourceURLPattern = regexp.MustCompile(`(?i)^https?://` +
	`(?:(?:[A-Z0-9](?:[A-Z0-9-]{0,61}[A-Z0-9])?\.)+[A-Z]{2,6}\.?|` +
	`localhost|` +
	`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})` +
	`(?::\d+)?` +
	`(?:/?|[/?]\S+)$`)

// IsSourceURL reports whether s is an acceptable reference source URL.
func IsSourceURL(s string) bool {
	return sourceURLPattern.MatchString(s)
}

// Battery cross-field rule tags reported by the struct-level validator.
const (
	ruleZeroWithoutBattery  = "zero_without_battery"
	rulePositiveWithBattery = "positive_with_battery"
)

var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names so errors match what the model produced.
	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		name := getJSONName(sf)
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("sourceurl", func(fl validator.FieldLevel) bool {
		return IsSourceURL(fl.Field().String())
	})

	v.RegisterStructValidation(validateBattery, BatteryInformation{})
	return v
}

// validateBattery enforces the contains_battery cross-field rule.
func validateBattery(sl validator.StructLevel) {
	b, ok := sl.Current().Interface().(BatteryInformation)
	if !ok {
		return
	}

	if !b.ContainsBattery {
		if b.BatteryCount != 0 {
			sl.ReportError(b.BatteryCount, "battery_count", "BatteryCount", ruleZeroWithoutBattery, "")
		}
		if b.BatteryWeightKg != 0 {
			sl.ReportError(b.BatteryWeightKg, "battery_weight_kg", "BatteryWeightKg", ruleZeroWithoutBattery, "")
		}
		return
	}

	if b.BatteryCount <= 0 {
		sl.ReportError(b.BatteryCount, "battery_count", "BatteryCount", rulePositiveWithBattery, "")
	}
	if b.BatteryWeightKg <= 0 {
		sl.ReportError(b.BatteryWeightKg, "battery_weight_kg", "BatteryWeightKg", rulePositiveWithBattery, "")
	}
}

// Validate checks v against its declared rules. It returns nil or a
// ValidationErrors value naming every offending field.
func Validate(v any) error {
	return validateWith(defaultValidator, v)
}

func validateWith(validate *validator.Validate, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate: %w", err)
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fieldPath(e),
			Rule:    e.Tag(),
			Message: formatValidationError(e),
			Value:   e.Value(),
		})
	}
	return out
}

// fieldPath turns "BatteryInformation.reference_sources[1]" into
// "reference_sources[1]".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return e.Field()
}

// formatValidationError creates a human-readable error message.
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s, got %v", e.Param(), e.Value())
	case "gte":
		return fmt.Sprintf("must be at least %s, got %v", e.Param(), e.Value())
	case "min":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", e.Param())
		}
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s item(s)", e.Param())
		}
		return fmt.Sprintf("must be at most %s", e.Param())
	case "sourceurl":
		return fmt.Sprintf("invalid URL format: %v", e.Value())
	case ruleZeroWithoutBattery:
		return fmt.Sprintf("must be 0 when product contains no battery, got %v", e.Value())
	case rulePositiveWithBattery:
		return fmt.Sprintf("must be greater than 0 when product contains battery, got %v", e.Value())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}
