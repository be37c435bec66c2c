// Package config provides configuration structures and loading for gofixture.
package config

// Config represents the complete application configuration.
type Config struct {
	Source       DatabaseConfig       `yaml:"source" mapstructure:"source"`
	Destination  DatabaseConfig       `yaml:"destination" mapstructure:"destination"`
	Schema       SchemaConfig         `yaml:"schema" mapstructure:"schema"`
	Jobs         map[string]JobConfig `yaml:"jobs" mapstructure:"jobs"`
	Extraction   ExtractionConfig     `yaml:"extraction" mapstructure:"extraction"`
	Safety       SafetyConfig         `yaml:"safety" mapstructure:"safety"`
	Verification VerificationConfig   `yaml:"verification" mapstructure:"verification"`
	Logging      LoggingConfig        `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents a database connection configuration.
type DatabaseConfig struct {
	Driver             string `yaml:"driver" mapstructure:"driver"` // mysql, postgres, sqlite
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"` // 0 selects the driver default
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	Path               string `yaml:"path" mapstructure:"path"` // sqlite file
	TLS                string `yaml:"tls" mapstructure:"tls"`   // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// IsConfigured reports whether any connection target has been set.
func (db DatabaseConfig) IsConfigured() bool {
	return db.Host != "" || db.Path != "" || db.Database != ""
}

// EffectivePort returns the configured port or the driver's default.
func (db DatabaseConfig) EffectivePort() int {
	if db.Port > 0 {
		return db.Port
	}
	switch db.Driver {
	case "postgres":
		return 5432
	case "sqlite":
		return 0
	default:
		return 3306
	}
}

// SchemaConfig tells gofixture where the model descriptions come from. When
// ModelsFile is empty the source database is introspected.
type SchemaConfig struct {
	ModelsFile string   `yaml:"models_file" mapstructure:"models_file"`
	AppLabel   string   `yaml:"app_label" mapstructure:"app_label"` // app used for introspected tables
	Tables     []string `yaml:"tables" mapstructure:"tables"`       // restrict introspection to these tables
}

// JobConfig names a root type (or a declared schema) to extract from.
type JobConfig struct {
	App        string            `yaml:"app" mapstructure:"app"`
	Model      string            `yaml:"model" mapstructure:"model"`
	FilterKey  string            `yaml:"filter_key" mapstructure:"filter_key"` // defaults to "pk"
	SchemaFile string            `yaml:"schema_file" mapstructure:"schema_file"`
	SplitFiles bool              `yaml:"split_files" mapstructure:"split_files"`
	Extraction *ExtractionConfig `yaml:"extraction,omitempty" mapstructure:"extraction"`
}

// IsDeclared reports whether the job walks a declared schema file instead of
// reflecting relations.
func (jc *JobConfig) IsDeclared() bool {
	return jc.SchemaFile != ""
}

// ExtractionConfig controls the closure walk and the output documents.
type ExtractionConfig struct {
	OutputDir   string `yaml:"output_dir" mapstructure:"output_dir"`
	Deduplicate bool   `yaml:"deduplicate" mapstructure:"deduplicate"`
	MaxDepth    int    `yaml:"max_depth" mapstructure:"max_depth"` // 0 = unlimited
	Indent      int    `yaml:"indent" mapstructure:"indent"`
}

// SafetyConfig represents safety settings for load operations.
type SafetyConfig struct {
	DisableForeignKeyChecks bool `yaml:"disable_foreign_key_checks" mapstructure:"disable_foreign_key_checks"`
}

// VerificationConfig represents round-trip verification settings.
type VerificationConfig struct {
	Method           string `yaml:"method" mapstructure:"method"` // "count" or "sha256"
	SkipVerification bool   `yaml:"skip_verification" mapstructure:"skip_verification"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Source: DatabaseConfig{
			Driver:             "mysql",
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Destination: DatabaseConfig{
			Driver:             "mysql",
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Extraction: ExtractionConfig{
			OutputDir:   "fixtures",
			Deduplicate: false,
			MaxDepth:    0,
			Indent:      4,
		},
		Safety: SafetyConfig{
			DisableForeignKeyChecks: false,
		},
		Verification: VerificationConfig{
			Method:           "sha256",
			SkipVerification: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

// GetJobExtraction returns the extraction config for a job by name, falling back to global if not set.
func (c *Config) GetJobExtraction(jobName string) ExtractionConfig {
	job, err := c.GetJob(jobName)
	if err != nil {
		return c.Extraction
	}
	return job.GetJobExtraction(c.Extraction)
}

// GetJobExtraction returns the extraction config for a job, falling back to global if not set.
func (jc *JobConfig) GetJobExtraction(global ExtractionConfig) ExtractionConfig {
	if jc.Extraction == nil {
		return global
	}

	result := global
	if jc.Extraction.OutputDir != "" {
		result.OutputDir = jc.Extraction.OutputDir
	}
	if jc.Extraction.MaxDepth > 0 {
		result.MaxDepth = jc.Extraction.MaxDepth
	}
	if jc.Extraction.Indent > 0 {
		result.Indent = jc.Extraction.Indent
	}
	result.Deduplicate = jc.Extraction.Deduplicate || global.Deduplicate
	return result
}
