package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gofixture/internal/config"
	"github.com/dbsmedya/gofixture/internal/database"
	"github.com/dbsmedya/gofixture/internal/extractor"
	"github.com/dbsmedya/gofixture/internal/fixture"
	"github.com/dbsmedya/gofixture/internal/logger"
	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/store"
)

var (
	extractJob       string
	extractModel     string
	extractApp       string
	extractFilterKey string
	extractSchema    string
	extractSplit     bool
	extractDryRun    bool
)

var extractCmd = &cobra.Command{
	Use:   "extract KEY [KEY...]",
	Short: "Extract fixtures for one or more root keys",
	Long: `Extract walks the dependency closure of each root record and writes it
as a fixture document, one directory per root key.

The root is taken from a configured job, from --model (reflected walk), or
from --schema (declared walk over a YAML schema file).

Examples:
  gofixture extract --job albums 1 2 3
  gofixture extract --model testapp.album --filter-key name "Kind of Blue"
  gofixture extract --schema event.yaml --split 42`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractJob, "job", "j", "",
		"Job name from configuration file")
	extractCmd.Flags().StringVarP(&extractModel, "model", "m", "",
		"Root model (app.model, or a model name unique in the schema)")
	extractCmd.Flags().StringVar(&extractApp, "app", "",
		"App of --model")
	extractCmd.Flags().StringVarP(&extractFilterKey, "filter-key", "k", "",
		"Attribute the keys are matched against (default pk)")
	extractCmd.Flags().StringVar(&extractSchema, "schema", "",
		"Declared schema file")
	extractCmd.Flags().BoolVar(&extractSplit, "split", false,
		"Write one file per declared node (with --schema)")
	extractCmd.Flags().BoolVar(&extractDryRun, "dry-run", false,
		"Walk and report without writing documents")
	extractCmd.MarkFlagsMutuallyExclusive("job", "model", "schema")

	rootCmd.AddCommand(extractCmd)
}

func extractTarget() target {
	return target{
		Job:        extractJob,
		Model:      extractModel,
		App:        extractApp,
		FilterKey:  extractFilterKey,
		SchemaFile: extractSchema,
		SplitFiles: extractSplit,
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := database.SetupSignalHandler(context.Background(), func(sig os.Signal) {
		log.Warnf("Received %s, stopping after the current root key", sig)
	})
	defer cancel()

	mgr := database.NewManager(cfg)
	if err := mgr.ConnectSource(ctx); err != nil {
		return err
	}
	defer func() { _ = mgr.Close() }()

	reg, err := buildRegistry(ctx, cfg, mgr, false, log)
	if err != nil {
		return err
	}

	src, err := store.NewSQLStore(mgr.Source, mgr.SourceDialect(), reg, log)
	if err != nil {
		return err
	}

	res, plan, err := extractKeys(ctx, cfg, reg, src, extractTarget(), parseKeys(args), extractDryRun, log)
	if res != nil {
		printRunResult(plan.Name(), res, extractDryRun)
	}
	if err != nil {
		return err
	}

	if failed := res.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d root keys failed", len(failed), len(res.Results))
	}
	return nil
}

// extractKeys resolves the target, checks it against the registry and runs
// it for every key.
func extractKeys(ctx context.Context, cfg *config.Config, reg *schema.Registry, src store.Store, t target, keys []interface{}, dryRun bool, log *logger.Logger) (*extractor.RunResult, extractor.Plan, error) {
	plan, extraction, err := resolvePlan(cfg, reg, t)
	if err != nil {
		return nil, nil, err
	}

	pre, err := extractor.NewPreflight(reg, log)
	if err != nil {
		return nil, nil, err
	}
	if err := pre.Check(plan); err != nil {
		return nil, plan, fmt.Errorf("preflight failed: %w", err)
	}

	w := extractor.NewWalker(schema.NewReflector(reg), src, log)
	w.SetMaxDepth(extraction.MaxDepth)

	var writer *fixture.Writer
	if !dryRun {
		writer = fixture.NewWriter(extraction.OutputDir, extraction.Indent, log)
	}

	runLog := log
	if t.Job != "" {
		runLog = log.WithJob(t.Job)
	}
	runner, err := extractor.NewRunner(plan, w, writer, extractor.RunnerOptions{
		Deduplicate: extraction.Deduplicate,
		DryRun:      dryRun,
	}, runLog)
	if err != nil {
		return nil, plan, err
	}

	res, err := runner.Run(ctx, keys)
	return res, plan, err
}

// printRunResult reports each root key and a summary.
func printRunResult(name string, res *extractor.RunResult, dryRun bool) {
	title := "Extraction: %s"
	if dryRun {
		title = "Extraction (dry run): %s"
	}
	printHeader(title, name)
	fmt.Fprintln(outputWriter)

	for _, r := range res.Results {
		if r.Err != nil {
			fmt.Fprintf(outputWriter, "  %s %v: %v\n", failMark(), r.Key, r.Err)
			continue
		}
		dest := dimStyle.Sprint("(not written)")
		if len(r.Paths) > 0 {
			dest = r.Path()
			if len(r.Paths) > 1 {
				dest = fmt.Sprintf("%s (+%d more)", dest, len(r.Paths)-1)
			}
		}
		fmt.Fprintf(outputWriter, "  %s %v -> %s\n", okMark(), r.Key, dest)
		fmt.Fprintf(outputWriter, "     %d records, %d queries, depth %d, %d duplicates dropped, %s\n",
			r.Records, r.Stats.Queries, r.Stats.MaxDepth, r.Stats.Duplicates, r.Stats.Duration.Round(time.Millisecond))
	}

	fmt.Fprintln(outputWriter)
	printSection("Summary")
	fmt.Fprintf(outputWriter, "  Root keys: %d (%d failed)\n", len(res.Results), len(res.Failed()))
	fmt.Fprintf(outputWriter, "  Records:   %d\n", res.Records())
	fmt.Fprintf(outputWriter, "  Duration:  %s\n", res.Duration.Round(time.Millisecond))
}
