package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/bookmarkd/api/internal/config"
)

func TestNewHandler_JSONLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, config.LogConfig{Level: "warn", Format: "json"}))

	logger.Info("dropped")
	logger.Warn("kept", "strategy", "cache")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if rec["msg"] != "kept" || rec["strategy"] != "cache" {
		t.Errorf("record = %v", rec)
	}
}

func TestNewHandler_TeesToExtra(t *testing.T) {
	var main, extra bytes.Buffer
	other := slog.NewTextHandler(&extra, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewHandler(&main, config.LogConfig{Level: "info"}, other, nil))

	logger.Debug("too quiet")
	logger.With("key", "abc").Info("resolved")

	if !strings.Contains(main.String(), "resolved") || !strings.Contains(extra.String(), "key=abc") {
		t.Errorf("main=%q extra=%q", main.String(), extra.String())
	}
	if strings.Contains(extra.String(), "too quiet") {
		t.Error("extra handler should honor the configured level")
	}
}
