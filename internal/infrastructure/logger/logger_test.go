package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"unknown", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerFormatsOutput(t *testing.T) {
	tests := []struct {
		name       string
		format     string
		level      string
		assertions func(t *testing.T, output string)
	}{
		{
			name:   "console format is not json",
			format: "console",
			level:  "info",
			assertions: func(t *testing.T, output string) {
				if strings.HasPrefix(strings.TrimSpace(output), "{") || !strings.Contains(output, "hello") {
					t.Fatalf("expected console output with message, got %q", output)
				}
			},
		},
		{
			name:   "json format starts with brace",
			format: "json",
			level:  "debug",
			assertions: func(t *testing.T, output string) {
				if !strings.HasPrefix(strings.TrimSpace(output), "{") {
					t.Fatalf("expected json output to start with '{', got %q", output)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWithWriter(Config{Level: tt.level, Format: tt.format}, &buf)
			l.Info().Msg("hello")
			tt.assertions(t, buf.String())
		})
	}
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "warn", Format: "json"}, &buf)

	l.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered at warn level, got %q", buf.String())
	}

	l.Warn().Msg("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("expected warn message, got %q", buf.String())
	}
}

func TestWithRequest(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithUserID(ctx, "alice")

	WithRequest(ctx, base).Info().Msg("appended")

	var fields map[string]any
	if err := json.Unmarshal(buf.Bytes(), &fields); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if fields["request_id"] != "req-1" || fields["user_id"] != "alice" {
		t.Fatalf("expected request fields, got %v", fields)
	}
	if RequestID(ctx) != "req-1" {
		t.Fatalf("expected request id from context")
	}

	buf.Reset()
	WithRequest(context.Background(), base).Info().Msg("bare")
	if strings.Contains(buf.String(), "request_id") {
		t.Fatalf("expected no request fields, got %q", buf.String())
	}
}
