package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/grounding/internal/logger"
	"github.com/jmylchreest/grounding/pkg/extractor"
	"github.com/jmylchreest/grounding/pkg/pipeline"
	"github.com/jmylchreest/grounding/pkg/retry"
)

var extractCmd = &cobra.Command{
	Use:   "extract specs|battery|both",
	Short: "Extract product data for every row of a CSV",
	Long: `Extract product specifications or battery information for each row of
an input CSV with Manufacturer, Part Number and Description columns.

Output files default to <input stem>_specs_output.csv and
<input stem>_battery_output.csv in the configured output directory.
With "both", the default names are always used.

Examples:
  grounding extract specs -i products.csv
  grounding extract battery -i products.csv -o battery.csv --test
  grounding extract specs -i products.csv --imperial`,
	ValidArgs: []string{"specs", "battery", "both"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE:      runExtract,
}

// extraction describes one extractor run within a command.
type extraction struct {
	name   string
	banner string
	label  string
}

var extractions = map[string]extraction{
	"specs":   {name: "specs", banner: "PRODUCT SPECIFICATIONS EXTRACTION", label: "Product specifications"},
	"battery": {name: "battery", banner: "BATTERY INFORMATION EXTRACTION", label: "Battery information"},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	flags := extractCmd.Flags()
	flags.StringP("input", "i", "", "input CSV file (required)")
	flags.StringP("output", "o", "", "output CSV file (ignored for both)")
	flags.Bool("test", false, "test mode: process only the first row")
	flags.Bool("imperial", false, "add imperial weight and dimension columns to specs output")

	_ = extractCmd.MarkFlagRequired("input")
	_ = v.BindPFlag("processing.imperial", flags.Lookup("imperial"))
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	cfg := current.cfg
	kind := args[0]
	input, _ := cmd.Flags().GetString("input")
	outFlag, _ := cmd.Flags().GetString("output")
	testFlag, _ := cmd.Flags().GetBool("test")
	testMode := testFlag || cfg.Processing.TestMode

	inPath := cfg.Data.ResolveInput(input)
	if err := pipeline.CheckInput(inPath); err != nil {
		logger.Error("input rejected", "input", inPath, "error", err)
		return err
	}

	logger.Info("starting extraction", "type", kind, "input", inPath, "test_mode", testMode)

	client, err := newSearchClient(ctx)
	if err != nil {
		return err
	}

	names := []string{kind}
	if kind == "both" {
		names = []string{"specs", "battery"}
	}

	stdout := cmd.OutOrStdout()
	for i, name := range names {
		run := extractions[name]

		outPath := outFlag
		if outPath == "" || kind == "both" {
			outPath = pipeline.OutputPath(inPath, cfg.Data.OutputDir, name)
		}

		ext, err := extractor.ByName(name, client,
			extractor.WithMaxSources(cfg.Processing.MaxSources),
			extractor.WithImperial(cfg.Processing.Imperial),
		)
		if err != nil {
			return err
		}

		p := pipeline.New(ext,
			pipeline.WithTestMode(testMode),
			pipeline.WithRetry(retry.Policy{
				Attempts: cfg.Processing.RetryAttempts,
				Delay:    cfg.Processing.RetryDelay,
			}),
			pipeline.WithRowHook(current.metrics.RowHook(name)),
			pipeline.WithConsole(stdout),
		)

		if i > 0 {
			fmt.Fprintln(stdout)
		}
		printBanner(stdout, run.banner)

		summary, err := p.RunFile(ctx, inPath, outPath)
		if err != nil {
			logger.Error("extraction failed", "type", name, "error", err)
			return err
		}
		fmt.Fprintf(stdout, "\n%s saved to: %s\n", run.label, outPath)
		fmt.Fprintf(stdout, "%s rows, %s failed, took %s\n",
			humanize.Comma(int64(summary.Rows)),
			humanize.Comma(int64(summary.Failed)),
			summary.Duration.Round(time.Millisecond))
	}

	logger.Info("extraction completed successfully")
	fmt.Fprintln(stdout, "\nAll extractions completed successfully!")
	return nil
}

func printBanner(w io.Writer, title string) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, rule)
}
