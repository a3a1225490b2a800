package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/parallelrag/ragd/internal/catalog"
	"github.com/parallelrag/ragd/internal/config"
	"github.com/parallelrag/ragd/internal/ingest"
	"github.com/parallelrag/ragd/internal/metrics"
)

// --- models ---

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available models grouped by category",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		registry := buildRegistry(cfg)
		availability := registry.Availability()
		grouped := catalog.Default().ByCategory()

		categories := make([]string, 0, len(grouped))
		for c := range grouped {
			categories = append(categories, c)
		}
		sort.Strings(categories)

		for _, category := range categories {
			fmt.Printf("\n%s\n", colorize(colorBold, category))
			for _, d := range grouped[category] {
				marker := colorize(colorGreen, "●")
				if !availability[d.Provider] {
					marker = colorize(colorRed, "○")
				}
				fmt.Printf("  %s %-24s %s\n", marker, d.ID, d.Name)
			}
		}

		if !availability["huggingface"] {
			fmt.Println()
			printWarning("HUGGINGFACE_API_KEY is not configured; models are unavailable")
		}
		return nil
	},
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Extract documents into the retrieval corpus",
	Long: `Extract documents into the retrieval corpus.

PDF files are text-extracted; .txt and .md files are copied through.
The corpus directory is served to the external retrieval service.

Examples:
  ragd ingest ./docs/handbook.pdf
  ragd ingest --concurrency 8 ./notes/*.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		printStep("Extracting %d file(s) into %s", len(args), cfg.Storage.CorpusDir)
		extractor := ingest.NewExtractor(cfg.Storage.CorpusDir, concurrency)
		results, err := extractor.IngestFiles(cmd.Context(), args)
		if err != nil {
			return err
		}

		failed := 0
		for _, res := range results {
			if res.Err != nil {
				failed++
				printError("%s: %v", res.Source, res.Err)
				continue
			}
			printSuccess("%s -> %s", res.Source, res.Output)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(results))
		}
		return nil
	},
}

// --- metrics ---

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show the metrics workbook row count",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openMetricsStore()
		if err != nil {
			return err
		}

		count, err := store.Count()
		if err != nil {
			return fmt.Errorf("reading metrics workbook: %w", err)
		}

		printStatus("Workbook", "%s", store.Path())
		printStatus("Records", "%d", count)
		return nil
	},
}

var metricsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all recorded metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL recorded metrics. Use --confirm to proceed.")
			return nil
		}

		store, err := openMetricsStore()
		if err != nil {
			return err
		}

		if err := store.Clear(); err != nil {
			return fmt.Errorf("clearing metrics: %w", err)
		}
		printSuccess("Metrics cleared")
		return nil
	},
}

func openMetricsStore() (*metrics.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return metrics.NewStore(cfg.Storage.DataDir, nil)
}

func init() {
	ingestCmd.Flags().Int("concurrency", 0, "number of files to extract in parallel (default 4)")
	metricsClearCmd.Flags().Bool("confirm", false, "confirm metrics deletion")
	metricsCmd.AddCommand(metricsClearCmd)
}
