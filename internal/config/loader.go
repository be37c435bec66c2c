package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from the specified file path.
// It supports YAML files and performs environment variable substitution.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	substituteEnvVars(cfg)
	normalize(cfg)

	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) {
	for _, db := range []*DatabaseConfig{&cfg.Source, &cfg.Destination} {
		db.Host = expandEnvVar(db.Host)
		db.User = expandEnvVar(db.User)
		db.Password = expandEnvVar(db.Password)
		db.Database = expandEnvVar(db.Database)
		db.Path = expandEnvVar(db.Path)
	}

	cfg.Schema.ModelsFile = expandEnvVar(cfg.Schema.ModelsFile)
	cfg.Extraction.OutputDir = expandEnvVar(cfg.Extraction.OutputDir)
	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)

	for name, job := range cfg.Jobs {
		job.SchemaFile = expandEnvVar(job.SchemaFile)
		cfg.Jobs[name] = job
	}
}

// normalize lowercases enumerations so "PostgreSQL" and "postgres" agree.
func normalize(cfg *Config) {
	for _, db := range []*DatabaseConfig{&cfg.Source, &cfg.Destination} {
		switch d := strings.ToLower(db.Driver); d {
		case "postgresql", "pgx":
			db.Driver = "postgres"
		case "sqlite3":
			db.Driver = "sqlite"
		default:
			db.Driver = d
		}
	}
	cfg.Verification.Method = strings.ToLower(cfg.Verification.Method)
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}

// GetJob retrieves a specific job configuration by name.
func (c *Config) GetJob(name string) (*JobConfig, error) {
	job, exists := c.Jobs[name]
	if !exists {
		return nil, fmt.Errorf("job %q not found in configuration", name)
	}
	return &job, nil
}

// ListJobs returns all job names defined in the configuration, sorted.
func (c *Config) ListJobs() []string {
	jobs := make([]string, 0, len(c.Jobs))
	for name := range c.Jobs {
		jobs = append(jobs, name)
	}
	sort.Strings(jobs)
	return jobs
}

// Overrides carries CLI flag values applied on top of the file.
// Zero values leave the file setting untouched.
type Overrides struct {
	LogLevel    string
	LogFormat   string
	OutputDir   string
	Deduplicate bool
	MaxDepth    int
	Indent      int
	SkipVerify  bool
}

// ApplyOverrides applies CLI flag overrides to the global configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Logging.Format = o.LogFormat
	}
	if o.OutputDir != "" {
		c.Extraction.OutputDir = o.OutputDir
	}
	if o.Deduplicate {
		c.Extraction.Deduplicate = true
	}
	if o.MaxDepth > 0 {
		c.Extraction.MaxDepth = o.MaxDepth
	}
	if o.Indent > 0 {
		c.Extraction.Indent = o.Indent
	}
	if o.SkipVerify {
		c.Verification.SkipVerification = true
	}
}

// ApplyJobOverrides combines global, job-specific and CLI extraction values.
func (c *Config) ApplyJobOverrides(jobName string, o Overrides) ExtractionConfig {
	extraction := c.GetJobExtraction(jobName)

	if o.OutputDir != "" {
		extraction.OutputDir = o.OutputDir
	}
	if o.Deduplicate {
		extraction.Deduplicate = true
	}
	if o.MaxDepth > 0 {
		extraction.MaxDepth = o.MaxDepth
	}
	if o.Indent > 0 {
		extraction.Indent = o.Indent
	}

	return extraction
}
