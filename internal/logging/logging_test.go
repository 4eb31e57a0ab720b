package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"histosaga-service/internal/config"
)

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "histosaga.log")
	log, err := New(config.Log{Level: "debug", Format: "console", File: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.Debug("session opened")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"session opened"`) {
		t.Fatalf("expected json entry in file, got %s", data)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(config.Log{Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
