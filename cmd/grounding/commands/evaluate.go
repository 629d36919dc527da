package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/grounding/internal/logger"
	"github.com/jmylchreest/grounding/internal/output"
	"github.com/jmylchreest/grounding/pkg/evaluator"
	"github.com/jmylchreest/grounding/pkg/fetcher"
	"github.com/jmylchreest/grounding/pkg/pipeline"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <input.csv>",
	Short: "Verify the reference URLs of an extraction output",
	Long: `Check every Source1..Source3 URL of an extraction output CSV: is it
reachable, can its content be fetched, and does an LLM judge it to
describe the right product with consistent specifications.

The report defaults to <input>_evaluation.csv, or
<input>_evaluation_test.csv in test mode.

Examples:
  grounding evaluate products_specs_output.csv
  grounding evaluate products_specs_output.csv --test --content-mode text
  grounding evaluate out.csv --fetch-mode dynamic --summary summary.json`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	flags := evaluateCmd.Flags()
	flags.StringP("output", "o", "", "report CSV file")
	flags.Bool("test", false, "test mode: evaluate only the first row")
	flags.String("fetch-mode", "", "fetch mode: static, dynamic")
	flags.String("content-mode", "", "content sent to the judge: raw, text")
	flags.String("summary", "", "also write the summary to this file (.json or .yaml)")

	_ = v.BindPFlag("evaluation.fetch_mode", flags.Lookup("fetch-mode"))
	_ = v.BindPFlag("evaluation.content_mode", flags.Lookup("content-mode"))
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	cfg := current.cfg
	outFlag, _ := cmd.Flags().GetString("output")
	testFlag, _ := cmd.Flags().GetBool("test")
	summaryPath, _ := cmd.Flags().GetString("summary")
	testMode := testFlag || cfg.Processing.TestMode

	inPath := cfg.Data.ResolveInput(args[0])
	if err := pipeline.CheckInput(inPath); err != nil {
		logger.Error("input rejected", "input", inPath, "error", err)
		return err
	}
	if summaryPath != "" {
		format, err := output.FormatFromPath(summaryPath)
		if err != nil {
			return err
		}
		if format == output.FormatCSV {
			return fmt.Errorf("summary must be written as .json or .yaml: %s", summaryPath)
		}
	}

	outPath := outFlag
	if outPath == "" {
		outPath = evaluator.OutputPath(inPath, testMode)
	}

	contentMode, err := evaluator.ParseContentMode(cfg.Evaluation.ContentMode)
	if err != nil {
		return err
	}

	fetchCfg := fetcher.Config{
		UserAgent:    cfg.Evaluation.UserAgent,
		CheckTimeout: cfg.Evaluation.CheckTimeout,
		FetchTimeout: cfg.Evaluation.FetchTimeout,
		MaxChars:     cfg.Evaluation.MaxContentChars,
	}
	checker := fetcher.NewStatic(fetchCfg)
	pages, err := fetcher.New(cfg.Evaluation.FetchMode, fetchCfg)
	if err != nil {
		return err
	}
	defer func() { _ = pages.Close() }()
	logger.Debug("fetcher ready", "type", pages.Type(), "content_mode", contentMode)

	client, err := newSearchClient(ctx)
	if err != nil {
		return err
	}

	ev := evaluator.New(checker, pages, client,
		evaluator.WithContentMode(contentMode),
		evaluator.WithJudgeChars(cfg.Evaluation.JudgeContentChars),
		evaluator.WithDelay(cfg.Evaluation.Delay),
		evaluator.WithTestMode(testMode),
		evaluator.WithConsole(cmd.OutOrStdout()),
		evaluator.WithResultHook(current.metrics.ResultHook()),
	)

	summary, err := ev.EvaluateFile(ctx, inPath, outPath)
	if err != nil {
		logger.Error("evaluation failed", "error", err)
		return err
	}
	summary.Print(cmd.OutOrStdout())
	logger.Info("evaluation complete",
		"urls", humanize.Comma(int64(summary.TotalURLs)),
		"duration", summary.Duration)

	if summaryPath != "" {
		if err := output.WriteFile(summaryPath, summary); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Summary saved to: %s\n", summaryPath)
	}
	return nil
}
