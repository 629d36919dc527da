package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/jmylchreest/grounding/pkg/evaluator"
	"github.com/jmylchreest/grounding/pkg/pipeline"
	"github.com/jmylchreest/grounding/pkg/search"
)

func TestWriteFile(t *testing.T) {
	m := New("run-1")

	m.OnCall(context.Background(), search.CallEvent{
		Backend:  "gemini",
		Kind:     "structured",
		Usage:    search.Usage{InputTokens: 120, OutputTokens: 30},
		Duration: 1500 * time.Millisecond,
	})
	m.OnCall(context.Background(), search.CallEvent{Backend: "gemini", Kind: "structured", Error: errors.New("quota")})

	rows := m.RowHook("specs")
	rows(pipeline.RowEvent{})
	rows(pipeline.RowEvent{Err: errors.New("boom")})

	correct := true
	urls := m.ResultHook()
	urls(evaluator.ValidationResult{Accessible: true, HasCorrectInfo: &correct})
	urls(evaluator.ValidationResult{})

	path := filepath.Join(t.TempDir(), "grounding.prom")
	if err := m.WriteFile(path); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)

	for _, want := range []string{
		`grounding_search_calls_total{backend="gemini",kind="structured",outcome="success",run_id="run-1"} 1`,
		`grounding_search_calls_total{backend="gemini",kind="structured",outcome="error",run_id="run-1"} 1`,
		`grounding_search_tokens_total{backend="gemini",direction="input",run_id="run-1"} 120`,
		`grounding_search_tokens_total{backend="gemini",direction="output",run_id="run-1"} 30`,
		`grounding_rows_total{extractor="specs",outcome="success",run_id="run-1"} 1`,
		`grounding_rows_total{extractor="specs",outcome="error",run_id="run-1"} 1`,
		`grounding_urls_evaluated_total{accessible="true",correct="true",run_id="run-1"} 1`,
		`grounding_urls_evaluated_total{accessible="false",correct="unknown",run_id="run-1"} 1`,
		`grounding_build_info{commit="unknown",go_version="` + runtime.Version() + `",run_id="run-1",version="dev"} 1`,
		`grounding_search_call_duration_seconds_count{backend="gemini",kind="structured",run_id="run-1"} 2`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics missing %s\n%s", want, text)
		}
	}
}

func TestNew_WithoutRunID(t *testing.T) {
	m := New("")
	m.RowHook("battery")(pipeline.RowEvent{})
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	// build_info and rows_total; vectors without observations are omitted.
	if len(families) != 2 {
		t.Fatalf("got %d metric families, want 2", len(families))
	}
	for _, family := range families {
		for _, label := range family.GetMetric()[0].GetLabel() {
			if label.GetName() == "run_id" {
				t.Errorf("%s has unexpected run_id label", family.GetName())
			}
		}
	}
}
