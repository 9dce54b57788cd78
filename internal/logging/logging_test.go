package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSONWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := WithExportID(WithComponent(New(&buf, "info"), "export"), "exp-1")

	logger.Debug("hidden")
	logger.Info("export started", "slices", 2)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "export started" {
		t.Errorf("msg = %v", line["msg"])
	}
	if line["component"] != "export" || line["export_id"] != "exp-1" {
		t.Errorf("missing attributes: %v", line)
	}
	if line["slices"] != float64(2) {
		t.Errorf("slices = %v", line["slices"])
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("short"); got != "****" {
		t.Errorf("SanitizeToken(short) = %q", got)
	}
	if got := SanitizeToken("abcdefghijklmnop"); got != "abcd...mnop" {
		t.Errorf("SanitizeToken = %q", got)
	}
}

func TestSanitizePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got := SanitizePath(filepath.Join(home, "Videos", "clip.mp4"))
	want := "~" + string(filepath.Separator) + filepath.Join("Videos", "clip.mp4")
	if got != want {
		t.Errorf("SanitizePath = %q, want %q", got, want)
	}

	outside := filepath.Join(filepath.Dir(home), "elsewhere", "clip.mp4")
	if filepath.Dir(home) != home {
		if got := SanitizePath(outside); got != outside {
			t.Errorf("SanitizePath(%q) = %q, want unchanged", outside, got)
		}
	}
	if got := SanitizePath(home + "xyz"); got != home+"xyz" {
		t.Errorf("sibling with home prefix rewritten: %q", got)
	}
}
