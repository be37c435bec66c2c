package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/dbsmedya/gofixture/internal/config"
	"github.com/dbsmedya/gofixture/internal/database"
	"github.com/dbsmedya/gofixture/internal/extractor"
	"github.com/dbsmedya/gofixture/internal/introspect"
	"github.com/dbsmedya/gofixture/internal/logger"
	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/sqlutil"
)

// loadConfig reads the config file and applies CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyOverrides(GetCLIOverrides().Config())
	return cfg, nil
}

// loadValidConfig is loadConfig followed by validation.
func loadValidConfig() (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildRegistry loads the models file when one is configured, otherwise it
// introspects the source database (or the destination when fromDestination
// is set), connecting to it if needed.
func buildRegistry(ctx context.Context, cfg *config.Config, mgr *database.Manager, fromDestination bool, log *logger.Logger) (*schema.Registry, error) {
	if cfg.Schema.ModelsFile != "" {
		log.Debugf("Loading models from %s", cfg.Schema.ModelsFile)
		return schema.LoadModelsFile(cfg.Schema.ModelsFile)
	}

	var (
		db      *sql.DB
		dialect sqlutil.Dialect
		dbName  string
	)
	if fromDestination {
		if mgr.Destination == nil {
			if err := mgr.ConnectDestination(ctx); err != nil {
				return nil, err
			}
		}
		db, dialect, dbName = mgr.Destination, mgr.DestinationDialect(), cfg.Destination.Database
	} else {
		if mgr.Source == nil {
			if err := mgr.ConnectSource(ctx); err != nil {
				return nil, err
			}
		}
		db, dialect, dbName = mgr.Source, mgr.SourceDialect(), cfg.Source.Database
	}

	src, err := introspect.NewSource(dialect, db, dbName)
	if err != nil {
		return nil, err
	}

	log.Debugf("Introspecting %s database (app_label=%s)", dialect, cfg.Schema.AppLabel)
	reg, err := introspect.BuildRegistry(ctx, src, introspect.Options{
		AppLabel: cfg.Schema.AppLabel,
		Tables:   cfg.Schema.Tables,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect schema: %w", err)
	}
	return reg, nil
}

// target selects what to extract: a configured job, or an ad-hoc model.
type target struct {
	Job        string
	Model      string // "app.model", or a bare model with App
	App        string
	FilterKey  string
	SchemaFile string
	SplitFiles bool
}

// resolvePlan turns a target into a plan and the extraction settings that
// apply to it.
func resolvePlan(cfg *config.Config, reg *schema.Registry, t target) (extractor.Plan, config.ExtractionConfig, error) {
	overrides := GetCLIOverrides().Config()

	if t.Job != "" {
		job, err := cfg.GetJob(t.Job)
		if err != nil {
			return nil, config.ExtractionConfig{}, err
		}
		extraction := cfg.ApplyJobOverrides(t.Job, overrides)

		if job.IsDeclared() {
			s, err := extractor.LoadDeclaredSchema(job.SchemaFile)
			if err != nil {
				return nil, extraction, err
			}
			return extractor.NewDeclaredPlan(s, job.SplitFiles), extraction, nil
		}

		rootType, err := resolveType(reg, job.App, job.Model)
		if err != nil {
			return nil, extraction, fmt.Errorf("job %q: %w", t.Job, err)
		}
		return extractor.NewReflectedPlan(rootType, job.FilterKey), extraction, nil
	}

	if t.SchemaFile != "" {
		s, err := extractor.LoadDeclaredSchema(t.SchemaFile)
		if err != nil {
			return nil, cfg.Extraction, err
		}
		return extractor.NewDeclaredPlan(s, t.SplitFiles), cfg.Extraction, nil
	}

	if t.Model == "" {
		return nil, cfg.Extraction, fmt.Errorf("either --job, --schema or --model is required")
	}
	rootType, err := resolveType(reg, t.App, t.Model)
	if err != nil {
		return nil, cfg.Extraction, err
	}
	return extractor.NewReflectedPlan(rootType, t.FilterKey), cfg.Extraction, nil
}

// resolveType accepts "app.model", app and model separately, or a model
// name that is unique in the registry.
func resolveType(reg *schema.Registry, app, model string) (schema.LogicalType, error) {
	switch {
	case model == "":
		return schema.LogicalType{}, fmt.Errorf("model is required")
	case app != "":
		return schema.NewLogicalType(app, model), nil
	case strings.Contains(model, "."):
		return schema.ParseLogicalType(model)
	}

	m, err := reg.ResolveName(model)
	if err != nil {
		return schema.LogicalType{}, err
	}
	return m.Type, nil
}

// parseKeys converts command-line root keys. Integers become int64 so they
// compare equal to integer keys read from the store.
func parseKeys(args []string) []interface{} {
	keys := make([]interface{}, len(args))
	for i, arg := range args {
		keys[i] = parseKey(arg)
	}
	return keys
}

func parseKey(s string) interface{} {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}
