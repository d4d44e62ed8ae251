package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/zoomarc/zoomarc/internal/config"
)

func newTestLogger(t *testing.T, level string, jsonFormat bool) (Logger, *bytes.Buffer) {
	t.Helper()
	logger, err := NewLogger(config.LoggingConfig{Level: level, JSONFormat: jsonFormat})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	return logger, &buf
}

func TestLogLevelFiltering(t *testing.T) {
	logger, buf := newTestLogger(t, "warn", false)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("levels below threshold were logged: %q", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("levels at or above threshold missing: %q", out)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Level: "loud"})
	if err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestJSONFormat(t *testing.T) {
	logger, buf := newTestLogger(t, "info", true)

	logger.Info("downloaded %d files", 3)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["level"] != "INFO" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry["message"] != "downloaded 3 files" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestRunIDInContext(t *testing.T) {
	logger, buf := newTestLogger(t, "info", false)

	ctx := WithRunID(context.Background(), "abc12345")
	logger.InfoWithContext(ctx, "starting run")

	if !strings.Contains(buf.String(), "[abc12345]") {
		t.Errorf("run id missing from output: %q", buf.String())
	}
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if len(a) != 8 {
		t.Errorf("run id length = %d", len(a))
	}
	if a == b {
		t.Error("run ids are not unique")
	}
}

func TestWithFields(t *testing.T) {
	logger, buf := newTestLogger(t, "info", true)

	logger.WithFields(InfoLevel, "user done", map[string]interface{}{
		"user":  "alice@example.com",
		"files": 4,
	})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["user"] != "alice@example.com" {
		t.Errorf("user field = %v", entry["user"])
	}
	if entry["files"] != float64(4) {
		t.Errorf("files field = %v", entry["files"])
	}
}

func TestSetLevel(t *testing.T) {
	logger, buf := newTestLogger(t, "error", false)

	logger.Info("hidden")
	logger.SetLevel(DebugLevel)
	logger.Debug("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("message below threshold logged")
	}
	if !strings.Contains(out, "visible") {
		t.Error("message missing after SetLevel")
	}
}
