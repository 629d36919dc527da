package evaluator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/grounding/internal/logger"
	"github.com/jmylchreest/grounding/internal/output"
	"github.com/jmylchreest/grounding/pkg/extractor"
	"github.com/jmylchreest/grounding/pkg/pipeline"
)

// Evaluation output columns.
var Columns = []string{
	"Row", "Manufacturer", "Part Number", "Source Number", "URL",
	"Accessible", "Status Code", "Has Correct Info", "Confidence Score", "Validation Notes",
}

// Source columns checked for each row, in order.
var sourceColumns = []string{"Source1", "Source2", "Source3"}

// Entry is one evaluated (row, source) pair.
type Entry struct {
	Row          int
	Manufacturer string
	PartNumber   string
	SourceNumber int
	Result       ValidationResult
}

// Values renders the entry as an output CSV row. Booleans are written as
// True/False and undetermined values as empty cells.
func (e Entry) Values() []string {
	r := e.Result
	values := []string{
		strconv.Itoa(e.Row),
		e.Manufacturer,
		e.PartNumber,
		strconv.Itoa(e.SourceNumber),
		r.URL,
		boolString(r.Accessible),
		"",
		"",
		"",
		r.Notes,
	}
	if r.StatusCode != nil {
		values[6] = strconv.Itoa(*r.StatusCode)
	}
	if r.HasCorrectInfo != nil {
		values[7] = boolString(*r.HasCorrectInfo)
	}
	if r.ConfidenceScore != nil {
		values[8] = formatScore(*r.ConfidenceScore)
	}
	return values
}

// Summary aggregates an evaluation run.
type Summary struct {
	Input          string        `json:"input,omitempty" yaml:"input,omitempty"`
	Output         string        `json:"output,omitempty" yaml:"output,omitempty"`
	TestMode       bool          `json:"test_mode" yaml:"test_mode"`
	Rows           int           `json:"rows" yaml:"rows"`
	SkippedRows    int           `json:"skipped_rows" yaml:"skipped_rows"`
	TotalURLs      int           `json:"total_urls" yaml:"total_urls"`
	AccessibleURLs int           `json:"accessible_urls" yaml:"accessible_urls"`
	CorrectURLs    int           `json:"correct_urls" yaml:"correct_urls"`
	AccessibleRate float64       `json:"accessible_rate" yaml:"accessible_rate"`
	CorrectRate    float64       `json:"correct_rate" yaml:"correct_rate"`
	Duration       time.Duration `json:"duration" yaml:"duration"`
}

func (s *Summary) add(r ValidationResult) {
	s.TotalURLs++
	if r.Accessible {
		s.AccessibleURLs++
	}
	if r.HasCorrectInfo != nil && *r.HasCorrectInfo {
		s.CorrectURLs++
	}
	s.AccessibleRate = ratio(s.AccessibleURLs, s.TotalURLs)
	s.CorrectRate = ratio(s.CorrectURLs, s.TotalURLs)
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// Print writes the operator summary block.
func (s *Summary) Print(w io.Writer) {
	title := "EVALUATION SUMMARY"
	if s.TestMode {
		title = "TEST MODE EVALUATION SUMMARY"
	}
	fmt.Fprintf(w, "\n=== %s ===\n", title)
	fmt.Fprintf(w, "Total URLs evaluated: %d\n", s.TotalURLs)
	fmt.Fprintf(w, "Accessible URLs: %d (%.1f%%)\n", s.AccessibleURLs, s.AccessibleRate*100)
	fmt.Fprintf(w, "URLs with correct info: %d (%.1f%%)\n", s.CorrectURLs, s.CorrectRate*100)
	if s.Output != "" {
		fmt.Fprintf(w, "Results saved to: %s\n", s.Output)
	}
}

// EvaluateCSV evaluates every source URL of an extraction output read from
// r and writes the report CSV to w. Rows missing any identifier are
// skipped. It fails only on read, write or context errors.
func (e *Evaluator) EvaluateCSV(ctx context.Context, r io.Reader, w io.Writer) (*Summary, error) {
	start := time.Now()

	rows, err := output.NewRowReader(r)
	if err != nil {
		return nil, err
	}

	summary := &Summary{TestMode: e.testMode}
	var entries []Entry

	for rowNum := 1; ; rowNum++ {
		if e.testMode && rowNum > 1 {
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
			return nil, fmt.Errorf("failed to read input row %d: %w", rowNum, err)
		}

		manufacturer := row.Get(extractor.ColManufacturer)
		partNumber := row.Get(extractor.ColPartNumber)
		description := row.Get(extractor.ColDescription)
		if manufacturer == "" || partNumber == "" || description == "" {
			logger.Info("skipping row: missing product information", "row", rowNum, "line", row.Line)
			summary.SkippedRows++
			continue
		}
		summary.Rows++

		expected := Expected{
			Weight: row.Get(extractor.ColWeightKg),
			Length: row.Get(extractor.ColLengthCm),
			Width:  row.Get(extractor.ColWidthCm),
			Height: row.Get(extractor.ColHeightCm),
		}

		logger.Info("evaluating row", "row", rowNum, "line", row.Line, "manufacturer", manufacturer, "part_number", partNumber)
		fmt.Fprintf(e.console, "Processing: %s - %s\n", manufacturer, partNumber)

		for i, col := range sourceColumns {
			url := strings.TrimSpace(row.Get(col))
			if url == "" {
				continue
			}

			fmt.Fprintf(e.console, "  Checking %s: %s\n", col, url)
			result := e.EvaluateURL(ctx, url, manufacturer, partNumber, description, expected)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			logger.Debug("url evaluated",
				"url", url,
				"accessible", result.Accessible,
				"notes", result.Notes)

			entries = append(entries, Entry{
				Row:          rowNum,
				Manufacturer: manufacturer,
				PartNumber:   partNumber,
				SourceNumber: i + 1,
				Result:       result,
			})
			summary.add(result)
			if e.onResult != nil {
				e.onResult(result)
			}

			if err := sleep(ctx, e.delay); err != nil {
				return nil, err
			}
		}
	}

	cw := output.NewCSVWriter(w)
	if err := cw.WriteHeader(Columns); err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if err := cw.WriteRow(entry.Values()); err != nil {
			return nil, err
		}
	}
	if err := cw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write output: %w", err)
	}

	summary.Duration = time.Since(start)
	logger.Info("evaluation finished",
		"urls", summary.TotalURLs,
		"accessible", summary.AccessibleURLs,
		"correct", summary.CorrectURLs)
	return summary, nil
}

// EvaluateFile evaluates inPath and writes the report to outPath, creating
// the output directory when needed.
func (e *Evaluator) EvaluateFile(ctx context.Context, inPath, outPath string) (*Summary, error) {
	if err := pipeline.CheckInput(inPath); err != nil {
		return nil, err
	}
	logger.Info("starting evaluation", "input", inPath, "output", outPath, "test_mode", e.testMode)

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

	summary, err := e.EvaluateCSV(ctx, in, out)
	if err != nil {
		return nil, err
	}
	if err := out.Commit(); err != nil {
		return nil, err
	}

	summary.Input = inPath
	summary.Output = outPath
	return summary, nil
}

// OutputPath derives the default report path: the input path with its
// .csv suffix replaced by _evaluation.csv, or _evaluation_test.csv in test
// mode.
func OutputPath(inPath string, testMode bool) string {
	suffix := "_evaluation.csv"
	if testMode {
		suffix = "_evaluation_test.csv"
	}
	return strings.TrimSuffix(inPath, filepath.Ext(inPath)) + suffix
}

func boolString(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// formatScore writes the shortest representation with at least one
// decimal place.
func formatScore(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}
