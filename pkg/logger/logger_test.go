package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func logLine(t *testing.T, ctx context.Context) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	WithContext(ctx, NewWithWriter("user", "info", &buf)).Info("hello")

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	return out
}

func spanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	if err != nil {
		t.Fatal(err)
	}
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	if err != nil {
		t.Fatal(err)
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestWithContext_Fields(t *testing.T) {
	tests := []struct {
		name   string
		ctx    func(t *testing.T) context.Context
		want   map[string]string
		absent []string
	}{
		{
			name:   "bare context",
			ctx:    func(*testing.T) context.Context { return context.Background() },
			absent: []string{"correlation_id", "user_id", "trace_id", "span_id"},
		},
		{
			name: "correlation id",
			ctx: func(*testing.T) context.Context {
				return WithCorrelationID(context.Background(), "req-123")
			},
			want:   map[string]string{"correlation_id": "req-123"},
			absent: []string{"user_id", "trace_id"},
		},
		{
			name: "authenticated request",
			ctx: func(*testing.T) context.Context {
				return WithUserID(WithCorrelationID(context.Background(), "req-9"), "42")
			},
			want: map[string]string{"correlation_id": "req-9", "user_id": "42"},
		},
		{
			name: "traced request",
			ctx: func(t *testing.T) context.Context {
				return WithUserID(spanContext(t), "7")
			},
			want: map[string]string{
				"user_id":  "7",
				"trace_id": "4bf92f3577b34da6a3ce929d0e0e4736",
				"span_id":  "00f067aa0ba902b7",
			},
			absent: []string{"correlation_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := logLine(t, tt.ctx(t))
			if out["service"] != "user" {
				t.Errorf("service = %v, want user", out["service"])
			}
			for k, v := range tt.want {
				if out[k] != v {
					t.Errorf("%s = %v, want %q", k, out[k], v)
				}
			}
			for _, k := range tt.absent {
				if _, ok := out[k]; ok {
					t.Errorf("%s should not be present", k)
				}
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	l := NewWithWriter("user", "info", &bytes.Buffer{})
	if got := FromContext(NewContext(context.Background(), l)); got != l {
		t.Error("FromContext should return the logger stored via NewContext")
	}
	if FromContext(context.Background()) == nil {
		t.Error("FromContext should return a non-nil fallback logger")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"alice@example.com": "a****@example.com",
		"a@x.com":           "a@x.com",
		"no-at-sign":        "***",
		"@x.com":            "***",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Errorf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewWithWriter_ServiceAttribute(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("user", "info", &buf).Info("boot")

	var out map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if got := out["service"]; got != "user" {
		t.Errorf("service = %v, want %q", got, "user")
	}
}

func TestNewWithWriter_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("user", "warn", &buf).Info("dropped")

	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got %q", buf.String())
	}
}
