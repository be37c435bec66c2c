package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gofixture/internal/database"
	"github.com/dbsmedya/gofixture/internal/logger"
	"github.com/dbsmedya/gofixture/internal/schema"
)

var (
	inspectDestination bool
	inspectWriteModels string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the models gofixture sees",
	Long: `Inspect prints every model of the schema with its table, primary key,
fields and relations.

The schema comes from schema.models_file when it is set, otherwise the
source database (or the destination with --destination) is introspected.
--write-models saves the result as a models file that can be edited and
referenced from schema.models_file.

Example:
  gofixture inspect --write-models models.yaml`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectDestination, "destination", false,
		"Introspect the destination database instead of the source")
	inspectCmd.Flags().StringVarP(&inspectWriteModels, "write-models", "w", "",
		"Write the models to a YAML file")

	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	mgr := database.NewManager(cfg)
	defer func() { _ = mgr.Close() }()

	reg, err := buildRegistry(ctx, cfg, mgr, inspectDestination, log)
	if err != nil {
		return err
	}

	printModels(reg)

	if inspectWriteModels != "" {
		data, err := schema.MarshalModels(reg)
		if err != nil {
			return err
		}
		if err := os.WriteFile(inspectWriteModels, data, 0o644); err != nil {
			return fmt.Errorf("failed to write models file: %w", err)
		}
		fmt.Fprintf(outputWriter, "\n%s Models written to %s\n", okMark(), inspectWriteModels)
	}
	return nil
}

// printModels prints one row per model, then its relations.
func printModels(reg *schema.Registry) {
	models := reg.Models()
	printHeader("Models: %d", len(models))
	fmt.Fprintln(outputWriter)

	rows := make([][]string, 0, len(models))
	for _, m := range models {
		rows = append(rows, []string{
			m.Type.String(),
			m.Table,
			m.PrimaryKey,
			fmt.Sprintf("%d", len(m.Fields)),
			fmt.Sprintf("%d", len(m.ForeignKeys)),
			fmt.Sprintf("%d", len(m.ManyToMany)),
		})
	}
	printTable([]string{"MODEL", "TABLE", "PK", "FIELDS", "FK", "M2M"}, rows)

	var relations []string
	for _, m := range models {
		for _, fk := range m.ForeignKeys {
			relations = append(relations, fmt.Sprintf("  • %s.%s → %s (FK: %s)", m.Type, fk.Attribute, fk.Target, fk.Column))
		}
		for _, mm := range m.ManyToMany {
			relations = append(relations, fmt.Sprintf("  • %s.%s ↔ %s (through %s)", m.Type, mm.Attribute, mm.Target, mm.Through))
		}
	}
	if len(relations) == 0 {
		return
	}
	fmt.Fprintln(outputWriter)
	printSection("Relations")
	fmt.Fprintln(outputWriter, strings.Join(relations, "\n"))
}
