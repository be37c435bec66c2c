package config

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
// The destination is only checked when it is configured, since extraction
// never writes to a database.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateDatabase("source", &c.Source)...)

	if c.Destination.IsConfigured() {
		errors = append(errors, c.validateDatabase("destination", &c.Destination)...)
	}

	// Sorted so the error list is stable across runs
	for _, name := range c.ListJobs() {
		job := c.Jobs[name]
		errors = append(errors, c.validateJob(name, &job)...)
	}

	errors = append(errors, c.validateExtraction("extraction", &c.Extraction)...)
	errors = append(errors, c.validateVerification()...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateDatabase(prefix string, db *DatabaseConfig) ValidationErrors {
	var errors ValidationErrors

	validDrivers := map[string]bool{"mysql": true, "postgres": true, "sqlite": true}
	if !validDrivers[db.Driver] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".driver",
			Message: "driver must be 'mysql', 'postgres', or 'sqlite'",
		})
		return errors
	}

	if db.Driver == "sqlite" {
		if db.Path == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".path",
				Message: "path is required for sqlite",
			})
		}
		return errors
	}

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".host",
			Message: "host is required",
		})
	}

	if db.Port < 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".user",
			Message: "user is required",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".database",
			Message: "database name is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateJob(name string, job *JobConfig) ValidationErrors {
	var errors ValidationErrors
	prefix := fmt.Sprintf("jobs.%s", name)

	hasModel := job.App != "" || job.Model != ""
	switch {
	case job.IsDeclared() && hasModel:
		errors = append(errors, ValidationError{
			Field:   prefix,
			Message: "schema_file and app/model are mutually exclusive",
		})
	case job.IsDeclared():
		if job.FilterKey != "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".filter_key",
				Message: "filter_key is taken from the schema file",
			})
		}
	default:
		if job.App == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".app",
				Message: "app is required (or schema_file)",
			})
		}
		if job.Model == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".model",
				Message: "model is required (or schema_file)",
			})
		}
		if job.SplitFiles {
			errors = append(errors, ValidationError{
				Field:   prefix + ".split_files",
				Message: "split_files requires schema_file",
			})
		}
	}

	if job.Extraction != nil {
		errors = append(errors, c.validateExtraction(prefix+".extraction", job.Extraction)...)
	}

	return errors
}

func (c *Config) validateExtraction(prefix string, ex *ExtractionConfig) ValidationErrors {
	var errors ValidationErrors

	if ex.MaxDepth < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_depth",
			Message: "max_depth cannot be negative",
		})
	}

	if ex.Indent < 0 || ex.Indent > 16 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".indent",
			Message: "indent must be between 0 and 16",
		})
	}

	return errors
}

func (c *Config) validateVerification() ValidationErrors {
	var errors ValidationErrors

	validMethods := map[string]bool{"count": true, "sha256": true, "": true}
	if !validMethods[c.Verification.Method] {
		errors = append(errors, ValidationError{
			Field:   "verification.method",
			Message: "method must be 'count' or 'sha256'",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}

// Fields returns the field names of a validation error set, sorted.
func (e ValidationErrors) Fields() []string {
	out := make([]string, 0, len(e))
	for _, v := range e {
		out = append(out, v.Field)
	}
	sort.Strings(out)
	return out
}
