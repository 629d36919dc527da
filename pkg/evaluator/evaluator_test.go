package evaluator

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jmylchreest/grounding/pkg/fetcher"
	"github.com/jmylchreest/grounding/pkg/pipeline"
	"github.com/jmylchreest/grounding/pkg/search"
)

type checkResult struct {
	status int
	err    error
}

type fakeChecker map[string]checkResult

func (f fakeChecker) Check(_ context.Context, url string) (int, error) {
	r, ok := f[url]
	if !ok {
		return 0, errors.New("dial tcp: no such host")
	}
	return r.status, r.err
}

type fakeFetcher map[string]fetcher.Content

func (f fakeFetcher) Fetch(_ context.Context, url string) (fetcher.Content, error) {
	c, ok := f[url]
	if !ok {
		return fetcher.Content{URL: url}, errors.New("connection reset")
	}
	return c, nil
}

func (f fakeFetcher) Close() error { return nil }
func (f fakeFetcher) Type() string { return "fake" }

type fakeJudge struct {
	reply   string
	err     error
	prompts []string
}

func (j *fakeJudge) Generate(_ context.Context, prompt string) (*search.Response, error) {
	j.prompts = append(j.prompts, prompt)
	if j.err != nil {
		return nil, j.err
	}
	return &search.Response{Text: j.reply}, nil
}

func intPtr(v int) *int           { return &v }
func boolPtr(v bool) *bool        { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestEvaluateURL(t *testing.T) {
	checker := fakeChecker{
		"https://ok.example":       {status: 200},
		"https://gone.example":     {status: 404},
		"https://nobody.example":   {status: 200},
		"https://textonly.example": {status: 200},
	}
	pages := fakeFetcher{
		"https://ok.example":       {HTML: "<p>XYZ-100 85 g</p>", Text: "XYZ-100 85 g"},
		"https://textonly.example": {HTML: "<p></p>", Text: ""},
	}

	tests := []struct {
		name  string
		url   string
		reply string
		mode  ContentMode
		want  ValidationResult
	}{
		{
			name: "unreachable",
			url:  "https://down.example",
			want: ValidationResult{URL: "https://down.example", Notes: NoteNotAccessible},
		},
		{
			name: "error status",
			url:  "https://gone.example",
			want: ValidationResult{URL: "https://gone.example", StatusCode: intPtr(404), Notes: NoteNotAccessible},
		},
		{
			name: "blank url",
			url:  "   ",
			want: ValidationResult{Notes: NoteNotAccessible},
		},
		{
			name: "fetch failed",
			url:  "https://nobody.example",
			want: ValidationResult{URL: "https://nobody.example", Accessible: true, StatusCode: intPtr(200), Notes: NoteFetchFailed},
		},
		{
			name: "empty text content",
			url:  "https://textonly.example",
			mode: ContentText,
			want: ValidationResult{URL: "https://textonly.example", Accessible: true, StatusCode: intPtr(200), Notes: NoteFetchFailed},
		},
		{
			name:  "correct",
			url:   "https://ok.example",
			reply: "CORRECT|0.92|Matches manufacturer site",
			want: ValidationResult{
				URL: "https://ok.example", Accessible: true, StatusCode: intPtr(200),
				HasCorrectInfo: boolPtr(true), ConfidenceScore: floatPtr(0.92), Notes: "Matches manufacturer site",
			},
		},
		{
			name:  "partial",
			url:   "https://ok.example",
			reply: "PARTIAL|0.5|Weight missing",
			want: ValidationResult{
				URL: "https://ok.example", Accessible: true, StatusCode: intPtr(200),
				HasCorrectInfo: boolPtr(false), ConfidenceScore: floatPtr(0.5), Notes: "Weight missing",
			},
		},
		{
			name:  "unparseable",
			url:   "https://ok.example",
			reply: "Looks right to me",
			want: ValidationResult{
				URL: "https://ok.example", Accessible: true, StatusCode: intPtr(200),
				HasCorrectInfo: boolPtr(false), ConfidenceScore: floatPtr(0), Notes: NoteUnparseable,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			judge := &fakeJudge{reply: tt.reply}
			e := New(checker, pages, judge, WithContentMode(tt.mode), WithDelay(0))
			got := e.EvaluateURL(context.Background(), tt.url, "Acme", "XYZ-100", "Mouse", Expected{})
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("EvaluateURL() mismatch (-want +got):\n%s", diff)
			}
			if tt.want.HasCorrectInfo == nil && len(judge.prompts) != 0 {
				t.Errorf("judge called for %s", tt.name)
			}
		})
	}
}

func TestEvaluateURL_JudgeError(t *testing.T) {
	judge := &fakeJudge{err: errors.New("quota exceeded")}
	e := New(fakeChecker{"https://ok.example": {status: 200}},
		fakeFetcher{"https://ok.example": {HTML: "page"}}, judge)

	got := e.EvaluateURL(context.Background(), "https://ok.example", "Acme", "XYZ-100", "Mouse", Expected{})
	if got.HasCorrectInfo == nil || *got.HasCorrectInfo || got.ConfidenceScore == nil || *got.ConfidenceScore != 0 {
		t.Errorf("result = %+v", got)
	}
	if got.Notes != "Validation error: quota exceeded" {
		t.Errorf("Notes = %q", got.Notes)
	}
}

func TestEvaluateURL_ContentModeAndPrompt(t *testing.T) {
	long := strings.Repeat("x", 3000)
	pages := fakeFetcher{"https://ok.example": {HTML: "<html>" + long, Text: "visible text"}}
	checker := fakeChecker{"https://ok.example": {status: 200}}

	raw := &fakeJudge{reply: "CORRECT|1|ok"}
	New(checker, pages, raw).EvaluateURL(context.Background(), "https://ok.example", "Acme", "XYZ-100", "Mouse",
		Expected{Weight: "0.085", Length: "10.5"})
	prompt := raw.prompts[0]
	for _, want := range []string{
		"- Expected Weight: 0.085 kg",
		"- Expected Dimensions: 10.5 x N/A x N/A cm",
		"Webpage Content (first 2000 chars):\n<html>" + strings.Repeat("x", 1994) + "\n",
		"Format: STATUS|CONFIDENCE|EXPLANATION",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	text := &fakeJudge{reply: "CORRECT|1|ok"}
	New(checker, pages, text, WithContentMode(ContentText), WithJudgeChars(500)).
		EvaluateURL(context.Background(), "https://ok.example", "Acme", "XYZ-100", "Mouse", Expected{})
	if !strings.Contains(text.prompts[0], "(first 500 chars):\nvisible text\n") {
		t.Errorf("text prompt:\n%s", text.prompts[0])
	}
}

func TestParseJudgement(t *testing.T) {
	tests := []struct {
		in         string
		correct    bool
		confidence float64
		notes      string
	}{
		{"CORRECT|0.92|Matches manufacturer site", true, 0.92, "Matches manufacturer site"},
		{"  CORRECT | 0.8 | spaced  \n", true, 0.8, "spaced"},
		{"correct|0.9|lower case", false, 0.9, "lower case"},
		{"INCORRECT|0.7|Different product", false, 0.7, "Different product"},
		{"CORRECT|0.9|first|second", true, 0.9, "first"},
		{"CORRECT|0.9", false, 0, NoteUnparseable},
		{"CORRECT|high|bad number", false, 0, NoteUnparseable},
		{"", false, 0, NoteUnparseable},
	}
	for _, tt := range tests {
		correct, confidence, notes := ParseJudgement(tt.in)
		if correct != tt.correct || confidence != tt.confidence || notes != tt.notes {
			t.Errorf("ParseJudgement(%q) = (%v, %v, %q), want (%v, %v, %q)",
				tt.in, correct, confidence, notes, tt.correct, tt.confidence, tt.notes)
		}
	}
}

func TestParseContentMode(t *testing.T) {
	for in, want := range map[string]ContentMode{"": ContentRaw, "raw": ContentRaw, "TEXT": ContentText} {
		got, err := ParseContentMode(in)
		if err != nil || got != want {
			t.Errorf("ParseContentMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseContentMode("markdown"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

const extraction = "Manufacturer,Part Number,Description,Product Weight in kg (3 decimals),Dim (L) CM,Dim (W) CM,Dim (H) CM,Source1,Source2,Source3\n" +
	"Acme,XYZ-100,Mouse,0.085,10.5,6.0,3.5,https://ok.example,https://down.example,\n" +
	",MISSING,Nothing,,,,,https://ok.example,,\n" +
	"Beta,B-2,Keyboard,,,,,,,https://gone.example\n"

func newReportEvaluator(opts ...Option) *Evaluator {
	checker := fakeChecker{
		"https://ok.example":   {status: 200},
		"https://gone.example": {status: 410},
	}
	pages := fakeFetcher{"https://ok.example": {HTML: "XYZ-100 weighs 85 g"}}
	judge := &fakeJudge{reply: "CORRECT|0.92|Matches manufacturer site"}
	return New(checker, pages, judge, append([]Option{WithDelay(0)}, opts...)...)
}

func TestEvaluateCSV(t *testing.T) {
	var hooked []ValidationResult
	e := newReportEvaluator(WithResultHook(func(r ValidationResult) { hooked = append(hooked, r) }))
	var out bytes.Buffer

	summary, err := e.EvaluateCSV(context.Background(), strings.NewReader(extraction), &out)
	if err != nil {
		t.Fatalf("EvaluateCSV() error = %v", err)
	}

	want := "Row,Manufacturer,Part Number,Source Number,URL,Accessible,Status Code,Has Correct Info,Confidence Score,Validation Notes\r\n" +
		"1,Acme,XYZ-100,1,https://ok.example,True,200,True,0.92,Matches manufacturer site\r\n" +
		"1,Acme,XYZ-100,2,https://down.example,False,,,,URL not accessible\r\n" +
		"3,Beta,B-2,3,https://gone.example,False,410,,,URL not accessible\r\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}

	wantSummary := Summary{
		Rows: 2, SkippedRows: 1, TotalURLs: 3, AccessibleURLs: 1, CorrectURLs: 1,
		AccessibleRate: 1.0 / 3, CorrectRate: 1.0 / 3,
	}
	summary.Duration = 0
	if diff := cmp.Diff(wantSummary, *summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if len(hooked) != 3 {
		t.Errorf("hook called %d times, want 3", len(hooked))
	}
}

func TestEvaluateCSV_TestMode(t *testing.T) {
	var console bytes.Buffer
	e := newReportEvaluator(WithTestMode(true), WithConsole(&console))
	var out bytes.Buffer

	summary, err := e.EvaluateCSV(context.Background(), strings.NewReader(extraction), &out)
	if err != nil {
		t.Fatalf("EvaluateCSV() error = %v", err)
	}
	if summary.TotalURLs != 2 || strings.Contains(out.String(), "Beta") {
		t.Errorf("test mode evaluated later rows: %+v\n%s", summary, out.String())
	}
	for _, want := range []string{"Processing: Acme - XYZ-100\n", "  Checking Source2: https://down.example\n"} {
		if !strings.Contains(console.String(), want) {
			t.Errorf("console missing %q:\n%s", want, console.String())
		}
	}
}

func TestEvaluateCSV_DelayHonoursContext(t *testing.T) {
	e := newReportEvaluator(WithDelay(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := e.EvaluateCSV(ctx, strings.NewReader(extraction), &bytes.Buffer{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want DeadlineExceeded", err)
	}
}

func TestSummaryPrint(t *testing.T) {
	var buf bytes.Buffer
	(&Summary{}).Print(&buf)
	want := "\n=== EVALUATION SUMMARY ===\n" +
		"Total URLs evaluated: 0\n" +
		"Accessible URLs: 0 (0.0%)\n" +
		"URLs with correct info: 0 (0.0%)\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("Print() mismatch (-want +got):\n%s", diff)
	}

	buf.Reset()
	s := &Summary{TestMode: true, Output: "out.csv"}
	s.add(ValidationResult{Accessible: true, HasCorrectInfo: boolPtr(true)})
	s.add(ValidationResult{})
	s.Print(&buf)
	for _, want := range []string{"=== TEST MODE EVALUATION SUMMARY ===", "Accessible URLs: 1 (50.0%)", "Results saved to: out.csv"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("Print() missing %q:\n%s", want, buf.String())
		}
	}
}

func TestEntryValues(t *testing.T) {
	e := Entry{Row: 4, Manufacturer: "Acme", PartNumber: "X", SourceNumber: 1, Result: ValidationResult{
		URL: "https://a", Accessible: true, StatusCode: intPtr(301), HasCorrectInfo: boolPtr(false),
		ConfidenceScore: floatPtr(1), Notes: "n",
	}}
	want := []string{"4", "Acme", "X", "1", "https://a", "True", "301", "False", "1.0", "n"}
	if diff := cmp.Diff(want, e.Values()); diff != "" {
		t.Errorf("Values() mismatch (-want +got):\n%s", diff)
	}
}

func TestOutputPath(t *testing.T) {
	if got := OutputPath("data/out/products_specs_output.csv", false); got != "data/out/products_specs_output_evaluation.csv" {
		t.Errorf("OutputPath() = %s", got)
	}
	if got := OutputPath("results.csv", true); got != "results_evaluation_test.csv" {
		t.Errorf("OutputPath(test) = %s", got)
	}
}

func TestEvaluateFile_HTTP(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/product", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>Acme XYZ-100 weighs 85 g</body></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	in := filepath.Join(dir, "specs.csv")
	csv := "Manufacturer,Part Number,Description,Source1,Source2\n" +
		"Acme,XYZ-100,Mouse," + srv.URL + "/product," + srv.URL + "/missing\n"
	if err := os.WriteFile(in, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	static := fetcher.NewStatic(fetcher.Config{})
	judge := &fakeJudge{reply: "CORRECT|0.9|Product page"}
	e := New(static, static, judge, WithDelay(0), WithContentMode(ContentText))

	out := OutputPath(in, false)
	summary, err := e.EvaluateFile(context.Background(), in, out)
	if err != nil {
		t.Fatalf("EvaluateFile() error = %v", err)
	}
	if summary.TotalURLs != 2 || summary.AccessibleURLs != 1 || summary.CorrectURLs != 1 {
		t.Errorf("summary = %+v", summary)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "/missing,False,404,,,URL not accessible") {
		t.Errorf("report:\n%s", data)
	}
	if len(judge.prompts) != 1 || !strings.Contains(judge.prompts[0], "Acme XYZ-100 weighs 85 g") {
		t.Errorf("judge prompts = %q", judge.prompts)
	}

	if _, err := e.EvaluateFile(context.Background(), filepath.Join(dir, "nope.csv"), out); !errors.Is(err, pipeline.ErrInputNotFound) {
		t.Errorf("missing input error = %v", err)
	}
}
