// Package pipeline drives an extractor over every row of a product CSV.
//
// Rows are processed strictly in order. A row whose extraction fails is
// logged and replaced by the extractor's placeholder row, so the output
// always has one row per processed input row.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmylchreest/grounding/internal/logger"
	"github.com/jmylchreest/grounding/internal/output"
	"github.com/jmylchreest/grounding/pkg/extractor"
	"github.com/jmylchreest/grounding/pkg/retry"
)

var (
	// ErrInputNotFound is returned when the input file does not exist.
	ErrInputNotFound = errors.New("input file not found")
	// ErrNotCSV is returned when the input file lacks a .csv suffix.
	ErrNotCSV = errors.New("input file must be a CSV file")
)

// RowEvent reports the outcome of one row.
type RowEvent struct {
	// Index is the 0-based data row index.
	Index        int
	Manufacturer string
	PartNumber   string
	Err          error
	Duration     time.Duration
}

// Summary describes a finished run.
type Summary struct {
	Extractor string        `json:"extractor" yaml:"extractor"`
	Input     string        `json:"input,omitempty" yaml:"input,omitempty"`
	Output    string        `json:"output,omitempty" yaml:"output,omitempty"`
	Rows      int           `json:"rows" yaml:"rows"`
	Succeeded int           `json:"succeeded" yaml:"succeeded"`
	Failed    int           `json:"failed" yaml:"failed"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// Pipeline runs one extractor over a CSV.
type Pipeline struct {
	extractor extractor.Extractor
	testMode  bool
	retry     retry.Policy
	onRow     func(RowEvent)
	console   io.Writer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTestMode limits the run to the first data row.
func WithTestMode(enabled bool) Option {
	return func(p *Pipeline) { p.testMode = enabled }
}

// WithRetry retries failed extractions. Invalid input is never retried.
func WithRetry(policy retry.Policy) Option {
	return func(p *Pipeline) { p.retry = policy }
}

// WithRowHook registers a callback invoked after every row.
func WithRowHook(fn func(RowEvent)) Option {
	return func(p *Pipeline) { p.onRow = fn }
}

// WithConsole sets where operator progress lines are printed.
func WithConsole(w io.Writer) Option {
	return func(p *Pipeline) { p.console = w }
}

// New creates a pipeline. Without WithRetry each row is attempted once.
func New(e extractor.Extractor, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor: e,
		retry:     retry.Policy{Attempts: 1},
		console:   io.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run reads products from r and writes the extractor's output CSV to w.
// It fails only on read, write or context errors; row failures are
// recorded in the summary.
func (p *Pipeline) Run(ctx context.Context, r io.Reader, w io.Writer) (*Summary, error) {
	start := time.Now()
	name := p.extractor.Name()

	rows, err := output.NewRowReader(r)
	if err != nil {
		return nil, err
	}
	for _, col := range []string{extractor.ColManufacturer, extractor.ColPartNumber, extractor.ColDescription} {
		if !rows.HasColumn(col) {
			logger.Warn("input is missing a required column", "column", col)
		}
	}

	summary := &Summary{Extractor: name}
	var records []extractor.Record

	for index := 0; ; index++ {
		if p.testMode && index > 0 {
			logger.Info("test mode enabled, stopping after first row")
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read input row %d: %w", index+1, err)
		}

		manufacturer := row.Get(extractor.ColManufacturer)
		partNumber := row.Get(extractor.ColPartNumber)
		description := row.Get(extractor.ColDescription)

		record, rowErr := p.processRow(ctx, index, row.Line, manufacturer, partNumber, description)
		if rowErr != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		records = append(records, record)
		summary.Rows++
		if rowErr != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}

	logger.Info("rows processed", "extractor", name, "rows", summary.Rows, "failed", summary.Failed)

	cw := output.NewCSVWriter(w)
	if err := cw.WriteHeader(p.extractor.Columns()); err != nil {
		return nil, err
	}
	for _, rec := range records {
		if err := cw.WriteRow(rec.Values); err != nil {
			return nil, err
		}
	}
	if err := cw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write output: %w", err)
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

func (p *Pipeline) processRow(ctx context.Context, index, line int, manufacturer, partNumber, description string) (extractor.Record, error) {
	logger.Info("processing row", "row", index+1, "line", line, "manufacturer", manufacturer, "part_number", partNumber)
	fmt.Fprintf(p.console, "Processing: %s - %s\n", manufacturer, partNumber)

	start := time.Now()
	record, err := p.extractRow(ctx, manufacturer, partNumber, description)
	event := RowEvent{
		Index:        index,
		Manufacturer: manufacturer,
		PartNumber:   partNumber,
		Err:          err,
		Duration:     time.Since(start),
	}
	if p.onRow != nil {
		p.onRow(event)
	}

	if err != nil {
		logger.Error("row failed", "row", index+1, "line", line, "manufacturer", manufacturer, "part_number", partNumber, "error", err)
		fmt.Fprintf(p.console, "Error processing %s - %s: %v\n", manufacturer, partNumber, err)
		return p.extractor.EmptyRow(manufacturer, partNumber, description), err
	}

	logger.Info("row succeeded", "row", index+1, "manufacturer", manufacturer, "part_number", partNumber)
	return record, nil
}

func (p *Pipeline) extractRow(ctx context.Context, manufacturer, partNumber, description string) (extractor.Record, error) {
	res, err := retry.Do(ctx, p.retry, func(ctx context.Context) (*extractor.Result, error) {
		res, err := p.extractor.Extract(ctx, manufacturer, partNumber, description)
		if errors.Is(err, extractor.ErrInvalidInput) {
			return nil, retry.Permanent(err)
		}
		return res, err
	})
	if err != nil {
		return extractor.Record{}, err
	}
	return p.extractor.FormatRow(manufacturer, partNumber, description, res)
}

// RunFile runs the pipeline from inPath to outPath, creating the output
// directory when needed.
func (p *Pipeline) RunFile(ctx context.Context, inPath, outPath string) (*Summary, error) {
	if err := CheckInput(inPath); err != nil {
		return nil, err
	}

	logger.Info("starting csv processing",
		"extractor", p.extractor.Name(),
		"input", inPath,
		"output", outPath,
		"test_mode", p.testMode)

	in, err := os.Open(inPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := output.Create(outPath)
	if err != nil {
		return nil, err
	}
	defer out.Discard()

	summary, err := p.Run(ctx, in, out)
	if err != nil {
		return nil, err
	}
	if err := out.Commit(); err != nil {
		return nil, err
	}

	summary.Input = inPath
	summary.Output = outPath
	logger.Info("processing complete", "output", outPath, "rows", summary.Rows, "duration", summary.Duration)
	fmt.Fprintf(p.console, "Processing complete. Output saved to %s\n", outPath)
	return summary, nil
}

// CheckInput verifies that path exists and names a .csv file.
func CheckInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return fmt.Errorf("failed to stat input: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrNotCSV, path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return fmt.Errorf("%w: %s", ErrNotCSV, path)
	}
	return nil
}

// OutputPath derives the default output path for an extractor:
// <dir>/<stem>_<name>_output.csv.
func OutputPath(inPath, dir, name string) string {
	stem := strings.TrimSuffix(filepath.Base(inPath), filepath.Ext(inPath))
	return filepath.Join(dir, stem+"_"+name+"_output.csv")
}
