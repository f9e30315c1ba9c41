package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != FormatConsole || cfg.Output != "stderr" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{Level: "loud", Format: FormatJSON}
	if err := cfg.Validate(); err == nil {
		t.Error("expected invalid level to be rejected")
	}
	cfg = Config{Level: "debug", Format: "xml"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected invalid format to be rejected")
	}
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "warn", Format: FormatJSON}, &buf, "evsettingsd")

	l.Info().Msg("dropped")
	l.Warn().Str("namespace", "system").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["service"] != "evsettingsd" || entry["message"] != "kept" || entry["namespace"] != "system" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "bogus", NoColor: true}, &buf, "")
	l.Info().Msg("hello")
	l.Debug().Msg("hidden")

	out := buf.String()
	if !strings.Contains(out, "hello") || strings.Contains(out, "hidden") {
		t.Errorf("unexpected console output %q", out)
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evsettings.log")
	l := New(Config{Format: FormatJSON, Output: path}, "test")
	l.Error().Msg("to file")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "to file") {
		t.Errorf("log file missing entry: %q", raw)
	}
}
