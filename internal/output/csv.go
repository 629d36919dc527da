package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CSVWriter writes a header followed by rows of the same width.
// Lines end in CRLF.
type CSVWriter struct {
	w       *csv.Writer
	columns int
}

// NewCSVWriter creates a CSV writer.
func NewCSVWriter(w io.Writer) *CSVWriter {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	return &CSVWriter{w: cw}
}

// WriteHeader writes the column names. It must be called once, first.
func (w *CSVWriter) WriteHeader(columns []string) error {
	if w.columns != 0 {
		return errors.New("csv header already written")
	}
	if len(columns) == 0 {
		return errors.New("csv header has no columns")
	}
	w.columns = len(columns)
	return w.w.Write(columns)
}

// WriteRow writes one row. Short rows are padded with empty values.
func (w *CSVWriter) WriteRow(values []string) error {
	if w.columns == 0 {
		return errors.New("csv header not written")
	}
	if len(values) > w.columns {
		return fmt.Errorf("csv row has %d values, header has %d columns", len(values), w.columns)
	}
	if len(values) < w.columns {
		padded := make([]string, w.columns)
		copy(padded, values)
		values = padded
	}
	return w.w.Write(values)
}

// Flush writes buffered rows to the underlying writer.
func (w *CSVWriter) Flush() error {
	w.w.Flush()
	return w.w.Error()
}

// RowReader reads a CSV file with a header row, addressing values by
// column name.
type RowReader struct {
	r      *csv.Reader
	header []string
	index  map[string]int
}

// Row is one data row of a RowReader.
type Row struct {
	// Line is the 1-based line number of the row in the file.
	Line   int
	values []string
	index  map[string]int
}

// NewRowReader reads the header from r. A UTF-8 byte order mark is ignored.
// Quotes inside unquoted fields are kept literally, so a description such
// as 27" monitor reads as written.
func NewRowReader(r io.Reader) (*RowReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv input is empty")
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	return &RowReader{r: cr, header: header, index: index}, nil
}

// Header returns the column names.
func (r *RowReader) Header() []string {
	return append([]string(nil), r.header...)
}

// HasColumn reports whether the header contains name.
func (r *RowReader) HasColumn(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Next returns the next row, or io.EOF after the last.
func (r *RowReader) Next() (Row, error) {
	values, err := r.r.Read()
	if err != nil {
		return Row{}, err
	}
	line, _ := r.r.FieldPos(0)
	return Row{Line: line, values: values, index: r.index}, nil
}

// Get returns the value in column name, or "" when the column or value is
// missing.
func (r Row) Get(name string) string {
	i, ok := r.index[name]
	if !ok || i >= len(r.values) {
		return ""
	}
	return r.values[i]
}

// Lookup returns the value in column name and whether it was present.
func (r Row) Lookup(name string) (string, bool) {
	i, ok := r.index[name]
	if !ok || i >= len(r.values) {
		return "", false
	}
	return r.values[i], true
}
