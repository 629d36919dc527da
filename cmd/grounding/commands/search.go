package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/grounding/internal/output"
	"github.com/jmylchreest/grounding/pkg/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run one grounded search and show its sources",
	Long: `Send a free-text question to the search backend with live web
grounding and print the answer, the search queries it issued and the
sources it relied on.

Examples:
  grounding search "Jabra Evolve2 65 battery capacity"
  grounding search "HP EliteBook 840 G9 weight" --citations
  grounding search "Dell U2723QE dimensions" --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	flags := searchCmd.Flags()
	flags.Bool("citations", false, "also print the answer with inline citation links")
	flags.String("format", "text", "output format: text, json, yaml")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	citations, _ := cmd.Flags().GetBool("citations")
	format, _ := cmd.Flags().GetString("format")
	query := strings.Join(args, " ")

	client, err := newSearchClient(ctx)
	if err != nil {
		return err
	}

	result, err := client.Grounded(ctx, query)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case "text":
		printGrounded(out, result, citations)
		return nil
	case "json", "yaml":
		w, err := output.NewWriter(out, output.Format(format))
		if err != nil {
			return err
		}
		if err := w.Write(result); err != nil {
			return err
		}
		return w.Close()
	default:
		return fmt.Errorf("unsupported format: %s (use text, json or yaml)", format)
	}
}

func printGrounded(w io.Writer, r *search.GroundedResult, citations bool) {
	fmt.Fprintf(w, "Query: %s\n", r.Query)
	fmt.Fprintf(w, "Response: %s\n", r.Text)
	if citations {
		fmt.Fprintf(w, "Response with citations: %s\n", r.TextWithCitations)
	}
	fmt.Fprintf(w, "Sources found: %d\n", r.SourcesCount)

	if len(r.SearchQueries) > 0 {
		fmt.Fprintf(w, "\nSearch Queries Used: %s\n", strings.Join(r.SearchQueries, "; "))
	}
	if len(r.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, s := range r.Sources {
			if s.URI == "" {
				continue
			}
			fmt.Fprintf(w, "  %d. %s - %s\n", i+1, s.Title, s.URI)
		}
	}
}
