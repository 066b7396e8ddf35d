package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestProcessLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: LevelInfo, Output: &buf, Service: "test-svc"})

	Debug("suppressed below the configured level")
	Info("listening on %s", ":8080")
	WithError(errors.New("boom")).WithField("path", "/x").Error("internal error")
	WithFields(map[string]any{"user_id": "u1", "count": 3}).Warn("slow path")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), buf.String())
	}

	var entries []map[string]any
	for _, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("not JSON: %q", line)
		}
		entries = append(entries, entry)
	}

	if entries[0]["message"] != "listening on :8080" || entries[0]["level"] != "info" {
		t.Errorf("info entry = %v", entries[0])
	}
	if entries[0]["service"] != "test-svc" {
		t.Errorf("service = %v, want test-svc", entries[0]["service"])
	}
	if _, ok := entries[0]["time"]; !ok {
		t.Error("no timestamp on entry")
	}

	if entries[1]["error"] != "boom" || entries[1]["path"] != "/x" || entries[1]["level"] != "error" {
		t.Errorf("error entry = %v", entries[1])
	}

	if entries[2]["user_id"] != "u1" || entries[2]["count"] != float64(3) {
		t.Errorf("fields entry = %v", entries[2])
	}
}

func TestWithErrorNil(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: LevelInfo, Output: &buf})

	WithError(nil).Info("fine")

	if strings.Contains(buf.String(), `"error"`) {
		t.Errorf("nil error bound a field: %q", buf.String())
	}
}
