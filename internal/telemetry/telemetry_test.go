package telemetry

import (
	"context"
	"testing"
)

func TestOTLPHostPort(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"collector:4318", "collector:4318"},
		{"http://tempo:4318", "tempo:4318"},
		{"https://otel.example.com", "otel.example.com:4318"},
		{" http://localhost:9999/v1/traces ", "localhost:9999"},
	}
	for _, tt := range tests {
		got, err := otlpHostPort(tt.in)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("%q: expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestInitTracing_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), ServiceName, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("expected no-op shutdown, got %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger("production", "debug"); err != nil {
		t.Fatalf("production logger: %v", err)
	}
	if _, err := NewLogger("development", ""); err != nil {
		t.Fatalf("development logger: %v", err)
	}
	if _, err := NewLogger("development", "loud"); err == nil {
		t.Fatalf("expected invalid level error")
	}
}
