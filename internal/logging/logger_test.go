package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = "json"
	log := NewWithWriter(cfg, &buf)
	log.Info().Str("key", "windows").Msg("persisted")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["message"] != "persisted" || entry["key"] != "windows" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = "json"
	ctx := WithContext(context.Background(), NewWithWriter(cfg, &buf))
	ctx = WithComponent(ctx, "registry")
	ctx = WithWindowID(ctx, 3)
	FromContext(ctx).Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["component"] != "registry" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["window_id"] != float64(3) {
		t.Errorf("window_id = %v", entry["window_id"])
	}
}

func TestFromContext_NoLogger(t *testing.T) {
	// Must not panic and must be usable.
	FromContext(context.Background()).Info().Msg("dropped")
}
