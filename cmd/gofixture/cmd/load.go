package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gofixture/internal/config"
	"github.com/dbsmedya/gofixture/internal/database"
	"github.com/dbsmedya/gofixture/internal/fixture"
	"github.com/dbsmedya/gofixture/internal/lock"
	"github.com/dbsmedya/gofixture/internal/logger"
	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/store"
	"github.com/dbsmedya/gofixture/internal/verifier"
)

var loadCmd = &cobra.Command{
	Use:   "load PATH [PATH...]",
	Short: "Load fixture documents into the destination database",
	Long: `Load reads fixture documents (files, or directories written by extract)
and inserts their records into the destination database, parents first.
Records whose primary key already exists are skipped, so documents with
repeated entries load cleanly. Concurrent loads into the same destination
are serialized with an advisory lock.

After loading, the records are verified against the destination using the
configured method unless --skip-verify is given.

Example:
  gofixture load fixtures/album_1 fixtures/album_2`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLoad,
}

var loadLockTimeout int

func init() {
	loadCmd.Flags().IntVar(&loadLockTimeout, "lock-timeout", lock.TimeoutMedium,
		"Seconds to wait for another load into the same destination")

	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidConfig()
	if err != nil {
		return err
	}
	if !cfg.Destination.IsConfigured() {
		return fmt.Errorf("destination database is not configured")
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	entries, err := readDocuments(args)
	if err != nil {
		return err
	}

	ctx, cancel := database.SetupSignalHandler(context.Background(), func(sig os.Signal) {
		log.Warnf("Received %s, rolling back the load", sig)
	})
	defer cancel()

	mgr := database.NewManager(cfg)
	if err := mgr.ConnectDestination(ctx); err != nil {
		return err
	}
	defer func() { _ = mgr.Close() }()

	reg, err := buildRegistry(ctx, cfg, mgr, true, log)
	if err != nil {
		return err
	}

	dest, err := store.NewSQLStore(mgr.Destination, mgr.DestinationDialect(), reg, log)
	if err != nil {
		return err
	}

	printHeader("Load: %d document entries", len(entries))
	fmt.Fprintln(outputWriter)

	lockTarget := cfg.Destination.Database
	if lockTarget == "" {
		lockTarget = cfg.Destination.Path
	}
	// The load and its verification run on the lock's connection, so a
	// single-connection pool cannot starve them.
	return lock.WithLoadLock(ctx, mgr.Destination, mgr.DestinationDialect(), lockTarget, loadLockTimeout, func(conn *sql.Conn) error {
		return loadEntries(ctx, cfg, reg, dest.OnConn(conn), entries, log)
	})
}

// readDocuments reads every path in order and concatenates the entries.
func readDocuments(paths []string) ([]fixture.Entry, error) {
	var entries []fixture.Entry
	for _, p := range paths {
		doc, err := fixture.ReadPath(p)
		if err != nil {
			return nil, err
		}
		entries = append(entries, doc...)
	}
	return entries, nil
}

// destinationStore is a store that can be both loaded and verified.
type destinationStore interface {
	store.Store
	store.Sink
}

// loadEntries loads entries into dest and verifies them unless verification
// is disabled.
func loadEntries(ctx context.Context, cfg *config.Config, reg *schema.Registry, dest destinationStore, entries []fixture.Entry, log *logger.Logger) error {
	loader, err := store.NewLoader(dest, reg, cfg.Safety.DisableForeignKeyChecks, log)
	if err != nil {
		return err
	}

	stats, err := loader.Load(ctx, fixture.Rows(entries))
	if err != nil {
		fmt.Fprintf(outputWriter, "  %s Load failed: %v\n", failMark(), err)
		return err
	}

	printSection("Loaded")
	fmt.Fprintf(outputWriter, "  Models:   %d\n", stats.Models)
	fmt.Fprintf(outputWriter, "  Rows:     %d (%d already present)\n", stats.Rows, stats.Skipped)
	fmt.Fprintf(outputWriter, "  Links:    %d\n", stats.Links)
	fmt.Fprintf(outputWriter, "  Duration: %s\n", stats.Duration.Round(time.Millisecond))
	if stats.CyclicOrder {
		fmt.Fprintf(outputWriter, "  %s\n", dimStyle.Sprint("Models form a cycle; rows were loaded in fallback order"))
	}

	if cfg.Verification.SkipVerification {
		log.Info("Verification skipped")
		return nil
	}
	fmt.Fprintln(outputWriter)
	return verifyEntries(ctx, cfg, reg, dest, entries, log)
}

// verifyEntries compares entries with dest and prints the outcome.
func verifyEntries(ctx context.Context, cfg *config.Config, reg *schema.Registry, dest store.Store, entries []fixture.Entry, log *logger.Logger) error {
	v, err := verifier.NewVerifier(dest, reg, verifier.VerificationMethod(cfg.Verification.Method), log)
	if err != nil {
		return err
	}

	stats, err := v.Verify(ctx, entries)
	printVerifyStats(stats)
	return err
}

func printVerifyStats(stats *verifier.VerifyStats) {
	if stats == nil {
		return
	}
	printSection(fmt.Sprintf("Verification (%s)", stats.Method))
	for _, r := range stats.Results {
		if r.Match {
			fmt.Fprintf(outputWriter, "  %s %s: %d records\n", okMark(), r.Model, r.SourceCount)
			continue
		}
		fmt.Fprintf(outputWriter, "  %s %s: %s\n", failMark(), r.Model, r.ErrorMessage)
	}
	fmt.Fprintf(outputWriter, "  Models: %d verified, %d passed, %d failed (%d records, %d repeated entries)\n",
		stats.ModelsVerified, stats.ModelsPassed, stats.ModelsFailed, stats.TotalRecords, stats.Duplicates)
}
