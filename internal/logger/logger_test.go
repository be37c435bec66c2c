package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dbsmedya/gofixture/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "debug"},
		{"info", "info"},
		{"", "info"},
		{"warn", "warn"},
		{"error", "error"},
		{"unknown", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level := parseLevel(tt.input)
			if level.String() != tt.expected {
				t.Errorf("parseLevel(%q) = %v, expected %v", tt.input, level.String(), tt.expected)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name:    "json format info level",
			cfg:     &config.LoggingConfig{Level: "info", Format: "json", Output: "stderr"},
			wantErr: false,
		},
		{
			name:    "text format debug level",
			cfg:     &config.LoggingConfig{Level: "debug", Format: "text", Output: "stdout"},
			wantErr: false,
		},
		{
			name:    "file output",
			cfg:     &config.LoggingConfig{Level: "warn", Format: "json", Output: filepath.Join(tmpDir, "log.json")},
			wantErr: false,
		},
		{
			name:    "unwritable file output",
			cfg:     &config.LoggingConfig{Level: "warn", Format: "json", Output: filepath.Join(tmpDir, "missing", "log.json")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if logger == nil && !tt.wantErr {
				t.Error("New() returned nil logger without error")
			}
			if logger != nil {
				_ = logger.Sync()
			}
		})
	}
}

func TestNewDefault(t *testing.T) {
	logger := NewDefault()
	if logger == nil {
		t.Fatal("NewDefault() returned nil")
	}
	logger.Info("test message")
	_ = logger.Sync()
}

func TestContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core))

	scoped := logger.WithJob("albums").WithModel("testapp.album").WithRootKey("7")
	if scoped == logger {
		t.Error("context methods should return a new logger instance")
	}
	scoped.Infow("extracted", "records", 3)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	expected := map[string]interface{}{
		"job":      "albums",
		"model":    "testapp.album",
		"root_key": "7",
		"records":  int64(3),
	}
	for k, v := range expected {
		if ctx[k] != v {
			t.Errorf("expected %s=%v, got %v", k, v, ctx[k])
		}
	}
}

func TestWithFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := FromZap(zap.New(core))

	logger.WithFields(map[string]interface{}{
		"b_field": "value",
		"a_field": 123,
	}).Info("test with fields")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].Context
	if len(fields) != 2 || fields[0].Key != "a_field" || fields[1].Key != "b_field" {
		t.Errorf("expected fields in key order, got %+v", fields)
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.WithModel("testapp.artist").Error("discarded")
	if err := logger.Sync(); err != nil {
		t.Errorf("nop Sync should not fail: %v", err)
	}
}

func TestBuildEncoder(t *testing.T) {
	for _, format := range []string{"json", "text", "unknown"} {
		if buildEncoder(format) == nil {
			t.Errorf("buildEncoder(%q) returned nil", format)
		}
	}
}

func TestBuildWriters(t *testing.T) {
	for _, output := range []string{"stdout", "stderr", ""} {
		w, err := buildWriters(output)
		if err != nil || w == nil {
			t.Errorf("buildWriters(%q) = %v, %v", output, w, err)
		}
	}

	tmpFile := filepath.Join(t.TempDir(), "out.log")
	w, err := buildWriters(tmpFile)
	if err != nil || w == nil {
		t.Errorf("buildWriters(file) = %v, %v", w, err)
	}
}

func TestLoggingOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logger-test.json")

	cfg := &config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: path,
	}

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.Info("test info message")
	logger.Debug("filtered debug message")
	logger.WithRootKey("42").Warn("root key failed")

	_ = logger.Sync()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	contentStr := string(content)
	if !strings.Contains(contentStr, "test info message") {
		t.Error("Log file should contain 'test info message'")
	}
	if strings.Contains(contentStr, "filtered debug message") {
		t.Error("Debug message should be filtered at info level")
	}
	if !strings.Contains(contentStr, `"root_key":"42"`) {
		t.Error("Log file should contain root key context")
	}
}
