// Package extractor turns product identifiers into validated structured
// records using a search backend.
//
// Two strategies are provided: Specs (weight and dimensions) and Battery
// (battery presence and attributes). Both build a deterministic prompt,
// run a structured search with their schema and map the result onto a fixed
// set of CSV columns.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/grounding/internal/logger"
	"github.com/jmylchreest/grounding/pkg/schema"
	"github.com/jmylchreest/grounding/pkg/search"
)

var (
	// ErrInvalidInput is returned when a product identifier is blank.
	ErrInvalidInput = errors.New("all product identifiers (manufacturer, part number, description) must be provided")
	// ErrNoStructuredData is returned when the backend produced no valid object.
	ErrNoStructuredData = errors.New("no structured data returned from model")
)

// Identifier column names shared by all input and output files.
const (
	ColManufacturer = "Manufacturer"
	ColPartNumber   = "Part Number"
	ColDescription  = "Description"
)

// DefaultMaxSources is the number of SourceN columns written.
const DefaultMaxSources = 3

// Searcher is the part of search.Client used by extractors.
type Searcher interface {
	StructuredSearch(ctx context.Context, query string, s *schema.Schema) (*search.Response, error)
}

// Extractor extracts one kind of product information.
type Extractor interface {
	// Name returns the extractor identifier ("specs" or "battery").
	Name() string

	// Columns returns the output CSV header in order.
	Columns() []string

	// BuildPrompt returns the search prompt for a product.
	BuildPrompt(manufacturer, partNumber, description string) string

	// Extract runs the structured search for a product.
	Extract(ctx context.Context, manufacturer, partNumber, description string) (*Result, error)

	// FormatRow maps an extraction result onto the output columns.
	FormatRow(manufacturer, partNumber, description string, res *Result) (Record, error)

	// EmptyRow returns the placeholder row used when extraction fails.
	EmptyRow(manufacturer, partNumber, description string) Record
}

// Result holds the extraction output.
type Result struct {
	// Data is the validated object, *schema.ProductSpecification or
	// *schema.BatteryInformation.
	Data any

	// Model is the model that answered.
	Model string

	// Usage tracks token consumption.
	Usage search.Usage

	// Grounding is the web evidence, when the backend returned any.
	Grounding *search.Grounding

	// Duration is the time spent in the backend call.
	Duration time.Duration
}

// Record is one output row: values aligned with columns.
type Record struct {
	Columns []string
	Values  []string
}

// Get returns the value of column, or "" if the column is absent.
func (r Record) Get(column string) string {
	for i, c := range r.Columns {
		if c == column && i < len(r.Values) {
			return r.Values[i]
		}
	}
	return ""
}

// Option configures an extractor.
type Option func(*options)

type options struct {
	maxSources int
	imperial   bool
}

// WithMaxSources sets how many SourceN columns are written.
func WithMaxSources(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSources = n
		}
	}
}

// WithImperial adds imperial weight and dimension columns to Specs output.
// Battery output is unaffected.
func WithImperial(enabled bool) Option {
	return func(o *options) { o.imperial = enabled }
}

func buildOptions(opts []Option) options {
	o := options{maxSources: DefaultMaxSources}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Names lists the available extractor names.
func Names() []string {
	return []string{"specs", "battery"}
}

// ByName constructs the named extractor.
func ByName(name string, searcher Searcher, opts ...Option) (Extractor, error) {
	switch name {
	case "specs":
		return NewSpecs(searcher, opts...), nil
	case "battery":
		return NewBattery(searcher, opts...), nil
	default:
		return nil, fmt.Errorf("unknown extractor: %s (available: %s)", name, strings.Join(Names(), ", "))
	}
}

// base holds the logic shared by both strategies.
type base struct {
	name     string
	searcher Searcher
	schema   schema.Schema
	opts     options
}

func (b *base) Name() string { return b.name }

// ValidateInputs checks that no identifier is blank.
func ValidateInputs(manufacturer, partNumber, description string) error {
	if strings.TrimSpace(manufacturer) == "" ||
		strings.TrimSpace(partNumber) == "" ||
		strings.TrimSpace(description) == "" {
		return ErrInvalidInput
	}
	return nil
}

func (b *base) extract(ctx context.Context, prompt, manufacturer, partNumber string) (*Result, error) {
	logger.Info("extracting", "extractor", b.name, "manufacturer", manufacturer, "part_number", partNumber)
	logger.Debug("extractor prompt built", "extractor", b.name, "prompt_size", len(prompt))

	resp, err := b.searcher.StructuredSearch(ctx, prompt, &b.schema)
	if err != nil {
		return nil, err
	}
	if resp.Parsed == nil {
		logger.Error("no structured data returned",
			"extractor", b.name,
			"manufacturer", manufacturer,
			"part_number", partNumber,
			"error", resp.ParseError)
		if resp.ParseError != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoStructuredData, resp.ParseError)
		}
		return nil, ErrNoStructuredData
	}

	return &Result{
		Data:      resp.Parsed,
		Model:     resp.Model,
		Usage:     resp.Usage,
		Grounding: resp.Grounding,
		Duration:  resp.Duration,
	}, nil
}

// emptyRow keeps the identifiers and blanks every other column.
func emptyRow(columns []string, manufacturer, partNumber, description string) Record {
	values := make([]string, len(columns))
	for i, c := range columns {
		switch c {
		case ColManufacturer:
			values[i] = manufacturer
		case ColPartNumber:
			values[i] = partNumber
		case ColDescription:
			values[i] = description
		}
	}
	return Record{Columns: columns, Values: values}
}

func sourceColumns(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = "Source" + strconv.Itoa(i+1)
	}
	return cols
}

// formatSources truncates sources to n entries, padding with "".
func formatSources(sources []string, n int) []string {
	out := make([]string, n)
	copy(out, sources)
	return out
}

func formatWeight(kg float64) string {
	return strconv.FormatFloat(kg, 'f', 3, 64)
}

// formatDecimal renders v in its shortest form with at least one
// fractional digit: 10.5 -> "10.5", 6 -> "6.0".
func formatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
