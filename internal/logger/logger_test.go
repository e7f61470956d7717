package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/Strob0t/fleetconsole/internal/config"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Logging{Level: "debug", Service: "test-svc"}
	l, closer := New(cfg, &buf)
	defer closer.Close()

	l.Debug("dialing", "url", "ws://localhost:8080")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if rec["service"] != "test-svc" || rec["msg"] != "dialing" || rec["url"] != "ws://localhost:8080" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNewAsync(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Logging{Level: "info", Service: "test-svc", Async: true}
	l, closer := New(cfg, &buf)

	l.Info("connected")
	l.Debug("filtered out")
	closer.Close()

	out := buf.String()
	if !strings.Contains(out, `"msg":"connected"`) {
		t.Errorf("expected flushed record, got %q", out)
	}
	if strings.Contains(out, "filtered out") {
		t.Errorf("debug record should be filtered at info level, got %q", out)
	}
}

func TestNewFanout(t *testing.T) {
	var buf bytes.Buffer
	extra := newRecordingHandler()
	l, closer := New(config.Logging{Level: "info", Service: "svc"}, &buf, extra)
	defer closer.Close()

	l.Warn("reconnecting")

	if extra.count() != 1 {
		t.Fatalf("expected extra handler to receive 1 record, got %d", extra.count())
	}
	if !strings.Contains(buf.String(), "reconnecting") {
		t.Errorf("expected JSON output to contain record, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"ERROR", "ERROR"},
		{"unknown", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input).String()
			if got != tt.want {
				t.Errorf("parseLevel(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestAttemptContext(t *testing.T) {
	ctx := context.Background()

	if got := Attempt(ctx); got != 0 {
		t.Errorf("expected no attempt, got %d", got)
	}

	ctx = WithAttempt(ctx, 3)
	if got := Attempt(ctx); got != 3 {
		t.Errorf("expected attempt 3, got %d", got)
	}

	var buf bytes.Buffer
	l, closer := New(config.Logging{Level: "info", Service: "svc"}, &buf)
	defer closer.Close()
	l.InfoContext(ctx, "dial failed")

	if !strings.Contains(buf.String(), `"attempt":3`) {
		t.Errorf("expected attempt attribute, got %q", buf.String())
	}
}

func TestFanoutRespectsLevels(t *testing.T) {
	infoOnly := slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError})
	all := newRecordingHandler()
	h := Fanout(infoOnly, all)

	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout enabled when any handler is")
	}
	slog.New(h).With("k", "v").Debug("x")
	if all.count() != 1 {
		t.Fatalf("expected 1 record, got %d", all.count())
	}
}
