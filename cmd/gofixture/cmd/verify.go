package cmd

import (
	"context"
	"fmt"
	"os"

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
	verifyJob       string
	verifyModel     string
	verifyApp       string
	verifyFilterKey string
	verifySchema    string
	verifyFixtures  []string
	verifyMethod    string
)

var verifyCmd = &cobra.Command{
	Use:   "verify [KEY...]",
	Short: "Check that extracted records are present in the destination",
	Long: `Verify compares records with the destination database.

With root keys, the closure of each key is extracted from the source and
compared. With --fixture, the records of existing documents are compared
and the source database is not used.

Examples:
  gofixture verify --job albums 1 2
  gofixture verify --fixture fixtures/album_1 --method sha256`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyJob, "job", "j", "",
		"Job name from configuration file")
	verifyCmd.Flags().StringVarP(&verifyModel, "model", "m", "",
		"Root model (app.model)")
	verifyCmd.Flags().StringVar(&verifyApp, "app", "",
		"App of --model")
	verifyCmd.Flags().StringVarP(&verifyFilterKey, "filter-key", "k", "",
		"Attribute the keys are matched against (default pk)")
	verifyCmd.Flags().StringVar(&verifySchema, "schema", "",
		"Declared schema file")
	verifyCmd.Flags().StringSliceVarP(&verifyFixtures, "fixture", "f", nil,
		"Fixture document or directory to verify (repeatable)")
	verifyCmd.Flags().StringVar(&verifyMethod, "method", "",
		"Override verification method (count, sha256)")

	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	if len(verifyFixtures) == 0 && len(args) == 0 {
		return fmt.Errorf("either root keys or --fixture is required")
	}
	if len(verifyFixtures) > 0 && len(args) > 0 {
		return fmt.Errorf("root keys and --fixture are mutually exclusive")
	}

	cfg, err := loadValidConfig()
	if err != nil {
		return err
	}
	if verifyMethod != "" {
		cfg.Verification.Method = verifyMethod
	}
	if !cfg.Destination.IsConfigured() {
		return fmt.Errorf("destination database is not configured")
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := database.SetupSignalHandler(context.Background(), func(sig os.Signal) {
		log.Warnf("Received %s, stopping verification", sig)
	})
	defer cancel()

	mgr := database.NewManager(cfg)
	defer func() { _ = mgr.Close() }()

	var (
		reg     *schema.Registry
		entries []fixture.Entry
	)
	if len(verifyFixtures) > 0 {
		if entries, err = readDocuments(verifyFixtures); err != nil {
			return err
		}
		if reg, err = buildRegistry(ctx, cfg, mgr, true, log); err != nil {
			return err
		}
	} else {
		if err := mgr.ConnectSource(ctx); err != nil {
			return err
		}
		if reg, err = buildRegistry(ctx, cfg, mgr, false, log); err != nil {
			return err
		}
		src, err := store.NewSQLStore(mgr.Source, mgr.SourceDialect(), reg, log)
		if err != nil {
			return err
		}
		t := target{Job: verifyJob, Model: verifyModel, App: verifyApp, FilterKey: verifyFilterKey, SchemaFile: verifySchema}
		if entries, err = collectEntries(ctx, cfg, reg, src, t, parseKeys(args), log); err != nil {
			return err
		}
	}

	if mgr.Destination == nil {
		if err := mgr.ConnectDestination(ctx); err != nil {
			return err
		}
	}
	dest, err := store.NewSQLStore(mgr.Destination, mgr.DestinationDialect(), reg, log)
	if err != nil {
		return err
	}

	printHeader("Verify: %d entries", len(entries))
	fmt.Fprintln(outputWriter)
	return verifyEntries(ctx, cfg, reg, dest, entries, log)
}

// collectEntries extracts every key without writing and returns all
// entries, in key order.
func collectEntries(ctx context.Context, cfg *config.Config, reg *schema.Registry, src store.Store, t target, keys []interface{}, log *logger.Logger) ([]fixture.Entry, error) {
	plan, extraction, err := resolvePlan(cfg, reg, t)
	if err != nil {
		return nil, err
	}
	pre, err := extractor.NewPreflight(reg, log)
	if err != nil {
		return nil, err
	}
	if err := pre.Check(plan); err != nil {
		return nil, fmt.Errorf("preflight failed: %w", err)
	}

	w := extractor.NewWalker(schema.NewReflector(reg), src, log)
	w.SetMaxDepth(extraction.MaxDepth)

	var entries []fixture.Entry
	for _, key := range keys {
		bundles, _, err := plan.Bundles(ctx, w, key)
		if err != nil {
			return nil, fmt.Errorf("root key %v: %w", key, err)
		}
		for _, b := range bundles {
			entries = append(entries, b.Entries()...)
		}
	}
	return entries, nil
}
