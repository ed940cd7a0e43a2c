package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func noColor() *bool { b := false; return &b }

func TestConsoleHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Output: &buf, Color: noColor()})
	if err != nil {
		t.Fatal(err)
	}
	logger = NewComponentLogger(logger, "matcher")
	logger.WithGroup("clip").Info("scored clip", "id", "take 01.mp4", "score", 0.97, "took", 1500*time.Millisecond)
	logger.Debug("window", "err", errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	first := lines[0]
	for _, want := range []string{"INFO  matcher: scored clip", `clip.id="take 01.mp4"`, "clip.score=0.97", "clip.took=1.5s"} {
		if !strings.Contains(first, want) {
			t.Fatalf("expected %q in %q", want, first)
		}
	}
	if !strings.Contains(lines[1], `DEBUG matcher: window err="boom"`) {
		t.Fatalf("unexpected debug line %q", lines[1])
	}
}

func TestConsoleHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Options{Level: "warn", Output: &buf, Color: noColor()})
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Format: "json", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("assembly finished", "cuts", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if rec["level"] != "info" || rec["msg"] != "assembly finished" || rec["cuts"] != float64(3) {
		t.Fatalf("unexpected record: %v", rec)
	}
	if _, ok := rec["ts"]; !ok {
		t.Fatalf("missing ts: %v", rec)
	}
}

func TestNew_RejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"": slog.LevelInfo, "DEBUG": slog.LevelDebug, "warning": slog.LevelWarn, "error": slog.LevelError, "bogus": slog.LevelInfo}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatalf("expected no-op logger")
	}
	l := NewNop()
	if FromContext(WithLogger(context.Background(), l)) != l {
		t.Fatalf("logger not returned from context")
	}
}
