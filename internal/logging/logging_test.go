package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if ValidLevel("bogus") || !ValidLevel("warn") {
		t.Error("ValidLevel mismatch")
	}
}

func TestNewLoggerWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", "json", &buf)
	logger.Debug("hidden")
	logger.Info("relay up", KeyPort, 3478)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if rec["msg"] != "relay up" || rec[KeyPort] != float64(3478) {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestLogPanic(t *testing.T) {
	var buf bytes.Buffer
	LogPanic(NewLoggerWithWriter("error", "text", &buf), "consume", "boom")
	out := buf.String()
	if !strings.Contains(out, "panic recovered") || !strings.Contains(out, "boom") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestNewDynamicLogger(t *testing.T) {
	var buf bytes.Buffer
	lv := new(slog.LevelVar)
	logger := NewDynamicLogger(lv, "text", &buf)

	logger.Debug("before")
	lv.Set(slog.LevelDebug)
	logger.Debug("after")

	out := buf.String()
	if strings.Contains(out, "before") || !strings.Contains(out, "after") {
		t.Errorf("level change not applied: %q", out)
	}
}
