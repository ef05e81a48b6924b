package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARNING", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"ALWAYS", LevelAlways},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig returned error for missing file: %v", err)
	}
	if cfg.Level != "INFO" {
		t.Errorf("Level = %q, want INFO", cfg.Level)
	}
	if !cfg.Console() {
		t.Error("Console() = false, want true")
	}
	if cfg.FileEnabled {
		t.Error("FileEnabled = true, want false")
	}
	if cfg.FilePath != "logs/levelforge.log" {
		t.Errorf("FilePath = %q, want logs/levelforge.log", cfg.FilePath)
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logging.yaml")
	yamlContent := `logging:
  level: DEBUG
  console_enabled: false
  console_format: json
  file_enabled: true
  file_path: forge.log
  file_max_size_mb: 20
`
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Level != "DEBUG" {
		t.Errorf("Level = %q, want DEBUG", cfg.Level)
	}
	if cfg.Console() {
		t.Error("Console() = true, want false")
	}
	if !cfg.FileEnabled || cfg.FilePath != "forge.log" {
		t.Errorf("file = %v %q, want true forge.log", cfg.FileEnabled, cfg.FilePath)
	}
	if cfg.FileMaxSizeMB != 20 {
		t.Errorf("FileMaxSizeMB = %d, want 20", cfg.FileMaxSizeMB)
	}
	if cfg.FileMaxBackups != 3 {
		t.Errorf("FileMaxBackups = %d, want default 3", cfg.FileMaxBackups)
	}
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logging.yaml")
	if err := os.WriteFile(path, []byte("logging: [not, a, map"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig should fail on malformed YAML")
	}
}

func TestEnvVarOverride(t *testing.T) {
	t.Setenv(EnvPrefix+"LEVEL", "ERROR")
	t.Setenv(EnvPrefix+"CONSOLE_FORMAT", "json")
	t.Setenv(EnvPrefix+"CONSOLE_ENABLED", "false")
	t.Setenv(EnvPrefix+"FILE_ENABLED", "true")
	t.Setenv(EnvPrefix+"FILE_PATH", "/custom/path.log")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Level != "ERROR" {
		t.Errorf("Level = %q, want ERROR", cfg.Level)
	}
	if cfg.ConsoleFormat != "json" {
		t.Errorf("ConsoleFormat = %q, want json", cfg.ConsoleFormat)
	}
	if cfg.Console() {
		t.Error("Console() = true, want false")
	}
	if !cfg.FileEnabled || cfg.FilePath != "/custom/path.log" {
		t.Errorf("file = %v %q", cfg.FileEnabled, cfg.FilePath)
	}
}

func TestSetOutputFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "text", "INFO")
	defer install(nil, nil)

	Info("Composed room", "room", "/Game/Rooms/Hall")
	Debug("hidden detail")

	out := buf.String()
	if !strings.Contains(out, "Composed room") || !strings.Contains(out, "room=/Game/Rooms/Hall") {
		t.Errorf("missing INFO record: %s", out)
	}
	if strings.Contains(out, "hidden detail") {
		t.Errorf("DEBUG record written at INFO level: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "json", "DEBUG")
	defer install(nil, nil)

	Info("Generation seed", "operation", "build", "seed", 42)

	out := buf.String()
	if !strings.Contains(out, `"msg":"Generation seed"`) {
		t.Errorf("missing msg field: %s", out)
	}
	if !strings.Contains(out, `"seed":42`) {
		t.Errorf("missing numeric field: %s", out)
	}
}

func TestAlwaysBypassesLogLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "text", "ERROR")
	defer install(nil, nil)

	Info("info message")
	Warning("warning message")
	Error("error message")
	Always("seed message")

	out := buf.String()
	if strings.Contains(out, "info message") || strings.Contains(out, "warning message") {
		t.Errorf("records below ERROR were written: %s", out)
	}
	if !strings.Contains(out, "error message") {
		t.Error("ERROR record missing")
	}
	if !strings.Contains(out, "seed message") || !strings.Contains(out, "level=ALWAYS") {
		t.Errorf("ALWAYS record missing or mislabelled: %s", out)
	}
}

func TestFormattedLogging(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "text", "DEBUG")
	defer install(nil, nil)

	Debugf("Debug: %d + %d = %d", 1, 2, 3)
	Infof("Info: %s", "test")
	Warningf("Warning: %.2f%%", 99.95)
	Errorf("Error: %v", "failed")
	Alwaysf("Always: %s %d", "count", 5)

	out := buf.String()
	for _, want := range []string{"Debug: 1 + 2 = 3", "Info: test", "Warning: 99.95%", "Error: failed", "Always: count 5"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestMultiHandler(t *testing.T) {
	var text, jsonBuf bytes.Buffer
	h := newMultiHandler(
		newHandler(&text, "text", slog.LevelInfo),
		newHandler(&jsonBuf, "json", slog.LevelWarn),
	)
	install(slog.New(h).With("session", "s1"), nil)
	defer install(nil, nil)

	Info("only text")
	Warning("both")

	if !strings.Contains(text.String(), "only text") || !strings.Contains(text.String(), "session=s1") {
		t.Errorf("text handler output: %s", text.String())
	}
	if strings.Contains(jsonBuf.String(), "only text") {
		t.Error("json handler received a record below its level")
	}
	if !strings.Contains(jsonBuf.String(), `"session":"s1"`) {
		t.Errorf("json handler lost attrs: %s", jsonBuf.String())
	}
}

func TestInitializeWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "forge.log")
	console := false
	err := Initialize(Config{
		Level:          "INFO",
		ConsoleEnabled: &console,
		FileEnabled:    true,
		FilePath:       path,
		FileFormat:     "text",
		FileMaxSizeMB:  1,
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	Info("written to file")
	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	defer install(nil, nil)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file content: %s", data)
	}
}

func TestNilLogger(t *testing.T) {
	install(nil, nil)
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("logging without a logger panicked: %v", r)
		}
	}()
	Debug("debug")
	Info("info")
	Warning("warning")
	Error("error")
	Always("always")
}
