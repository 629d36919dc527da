// Package commands implements the CLI commands for grounding.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/grounding/internal/config"
	"github.com/jmylchreest/grounding/internal/logger"
	"github.com/jmylchreest/grounding/internal/metrics"
	"github.com/jmylchreest/grounding/pkg/search"
)

// skipSetup marks commands that run without loading configuration.
const skipSetup = "skip-setup"

// defaultLogFile is used by extraction runs that touch battery data when no
// log file is configured.
const defaultLogFile = "processing.log"

// session holds what a command run needs after setup.
type session struct {
	cfg     *config.Config
	runID   string
	metrics *metrics.Metrics
}

var (
	// v receives flag bindings and is handed to config.Load.
	v = viper.New()

	cfgFile string
	current *session
)

var rootCmd = &cobra.Command{
	Use:   "grounding",
	Short: "Product data extraction with grounded LLM search",
	Long: `Grounding looks up product specifications and battery information
for every row of a CSV file using an LLM with live web search grounding,
and verifies the cited reference URLs.

Examples:
  # Extract weight and dimensions
  grounding extract specs -i products.csv

  # Extract both specs and battery info for the first row only
  grounding extract both -i products.csv --test

  # Verify the sources of an extraction run
  grounding evaluate products_specs_output.csv

  # Ask a one-off grounded question
  grounding search "Logitech MX Master 3S weight" --citations`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file, JSON or YAML (default .grounding.yaml in . or $HOME)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-file", "", "also write logs to this file")
	flags.String("log-format", "", "log format: text, json")
	flags.StringP("provider", "p", "", "search backend: "+strings.Join(search.AvailableBackends(), ", "))
	flags.StringP("model", "m", "", "model name (backend-specific)")
	flags.String("metrics-file", "", "write Prometheus metrics to this file when the run ends")

	_ = v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("logging.file", flags.Lookup("log-file"))
	_ = v.BindPFlag("logging.format", flags.Lookup("log-format"))
	_ = v.BindPFlag("search.provider", flags.Lookup("provider"))
	_ = v.BindPFlag("search.model", flags.Lookup("model"))
	_ = v.BindPFlag("metrics.file", flags.Lookup("metrics-file"))
}

// setup loads configuration and initializes logging and metrics.
func setup(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipSetup] != "" {
		return nil
	}

	cfg, err := config.Load(config.Options{File: cfgFile, Viper: v})
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	runID := uuid.NewString()

	logFile := cfg.Logging.File
	if logFile == "" && wantsDefaultLogFile(cmd, args) {
		logFile = defaultLogFile
	}
	if !cfg.Logging.FileEnabled {
		logFile = ""
	}
	if err := logger.Init(logger.Options{
		Level:          cfg.Logging.Level,
		JSON:           cfg.Logging.Format == "json",
		DisableConsole: !cfg.Logging.ConsoleEnabled,
		File:           logFile,
		Attrs:          []any{"run_id", runID},
	}); err != nil {
		return err
	}

	current = &session{
		cfg:     cfg,
		runID:   runID,
		metrics: metrics.New(runID),
	}
	logger.Debug("configuration loaded", "file", cfg.File, "provider", cfg.Search.Provider)
	return nil
}

func wantsDefaultLogFile(cmd *cobra.Command, args []string) bool {
	return cmd.Name() == "extract" && len(args) > 0 && (args[0] == "battery" || args[0] == "both")
}

// finish writes metrics and releases the log file.
func finish() error {
	var errs []error
	if current != nil && current.cfg.Metrics.File != "" {
		if err := current.metrics.WriteFile(current.cfg.Metrics.File); err != nil {
			errs = append(errs, err)
		} else {
			logger.Debug("metrics written", "file", current.cfg.Metrics.File)
		}
	}
	if err := logger.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		logError("%v", err)
	}
	if ferr := finish(); ferr != nil {
		logError("%v", ferr)
		if err == nil {
			err = ferr
		}
	}
	return err
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// newSearchClient builds the configured search client with metrics attached.
func newSearchClient(ctx context.Context) (*search.Client, error) {
	cfg := current.cfg.Search
	backend, err := search.NewBackend(ctx, cfg.Provider, search.BackendConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("search backend ready", "backend", backend.Name(), "model", backend.Model())

	return search.New(backend,
		search.WithSearchSampling(search.Sampling{
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			TopK:        cfg.TopK,
		}),
		search.WithStructuredSampling(search.Sampling{
			Temperature: cfg.StructuredTemperature,
			TopP:        cfg.StructuredTopP,
		}),
		search.WithGroundedStructured(cfg.GroundedStructured),
		search.WithObserver(current.metrics),
	), nil
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

