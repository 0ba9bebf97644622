package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func testLogger(buf *bytes.Buffer, level Level) *Logger {
	return &Logger{
		output:     buf,
		level:      level,
		component:  "test",
		jsonFormat: true,
		fields:     make(map[string]interface{}),
	}
}

func TestLogWritesKeyValueFields(t *testing.T) {
	var buf bytes.Buffer
	l := testLogger(&buf, DEBUG)

	l.Info("snapshot cached", "index", "NIFTY", "rows", 42, "error", errors.New("boom"))

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry.Message != "snapshot cached" {
		t.Errorf("unexpected message %q", entry.Message)
	}
	if entry.Level != "INFO" || entry.Component != "test" {
		t.Errorf("unexpected level/component: %s %s", entry.Level, entry.Component)
	}
	if entry.Fields["index"] != "NIFTY" {
		t.Errorf("index field lost: %v", entry.Fields)
	}
	if entry.Fields["rows"] != float64(42) {
		t.Errorf("rows field lost: %v", entry.Fields)
	}
	if entry.Fields["error"] != "boom" {
		t.Errorf("error should flatten to its message, got %v", entry.Fields["error"])
	}
}

func TestMessageIsNeverFormatted(t *testing.T) {
	var buf bytes.Buffer
	l := testLogger(&buf, DEBUG)

	// Percent signs in messages must pass through untouched
	l.Warn("fill 100% complete", "pct", 100)

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry.Message != "fill 100% complete" {
		t.Errorf("message was mangled: %q", entry.Message)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := testLogger(&buf, WARN)

	l.Info("below threshold")
	if buf.Len() != 0 {
		t.Error("INFO should be filtered at WARN level")
	}

	l.Error("above threshold")
	if buf.Len() == 0 {
		t.Error("ERROR should pass at WARN level")
	}
}

func TestWithTraceIDPropagates(t *testing.T) {
	var buf bytes.Buffer
	l := testLogger(&buf, DEBUG).WithTraceID("cycle-42")

	l.Info("tick")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry.TraceID != "cycle-42" {
		t.Errorf("trace ID lost, got %q", entry.TraceID)
	}
}

func TestContextRoundtrip(t *testing.T) {
	l := testLogger(&bytes.Buffer{}, DEBUG)
	ctx := WithLogger(context.Background(), l)

	if got := FromContext(ctx); got != l {
		t.Error("expected the stored logger back from the context")
	}
	if got := FromContext(context.Background()); got == nil {
		t.Error("bare context should fall back to the default logger")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DEBUG,
		"WARNING": WARN,
		"error":   ERROR,
		"bogus":   INFO,
	}
	for s, want := range cases {
		if got := ParseLevel(s); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", s, got, want)
		}
	}
}
