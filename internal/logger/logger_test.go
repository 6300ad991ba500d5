package logger

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestInit(t *testing.T) {
	logger := Init("test-service", slog.LevelInfo)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestTraceID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	// No trace ID set
	if tid := TraceID(ctx); tid != "" {
		t.Errorf("expected empty trace id, got %q", tid)
	}

	// Set and retrieve
	ctx = WithTraceID(ctx, "test-trace-123")
	if tid := TraceID(ctx); tid != "test-trace-123" {
		t.Errorf("expected 'test-trace-123', got %q", tid)
	}
}

func TestRegime_RoundTrip(t *testing.T) {
	ctx := context.Background()

	if regime := Regime(ctx); regime != "" {
		t.Errorf("expected empty regime, got %q", regime)
	}

	ctx = WithRegime(ctx, "EXTREME")
	if regime := Regime(ctx); regime != "EXTREME" {
		t.Errorf("expected 'EXTREME', got %q", regime)
	}
}

func TestNextTickSeq_Monotonic(t *testing.T) {
	first := NextTickSeq()
	second := NextTickSeq()
	if second <= first {
		t.Errorf("expected NextTickSeq to increase, got %d then %d", first, second)
	}
}

func TestGenerateTraceID(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 123456789, time.UTC)
	tid := GenerateTraceID("tick", 42, ts)

	if tid == "" {
		t.Fatal("expected non-empty trace id")
	}
	if !strings.HasPrefix(tid, "tick-42-") {
		t.Errorf("expected trace id to start with 'tick-42-', got %s", tid)
	}
	// Verify it contains the nano timestamp
	if !strings.Contains(tid, "123456789") {
		t.Errorf("expected trace id to contain nanoseconds, got %s", tid)
	}
}

func TestGenerateTraceID_DistinctSequenceNumbersDistinctIDs(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 123456789, time.UTC)
	a := GenerateTraceID("tick", 1, ts)
	b := GenerateTraceID("tick", 2, ts)
	if a == b {
		t.Errorf("expected distinct trace ids for distinct sequence numbers, both got %s", a)
	}
}

func TestFields(t *testing.T) {
	ctx := context.Background()

	if attrs := Fields(ctx); attrs != nil {
		t.Errorf("expected nil attrs with nothing set, got %v", attrs)
	}

	ctx = WithTraceID(ctx, "abc-123")
	attrs := Fields(ctx)
	if len(attrs) != 1 {
		t.Fatalf("expected a single attr for trace id, got %v", attrs)
	}

	ctx = WithRegime(ctx, "HIGH")
	attrs = Fields(ctx)
	if len(attrs) != 2 {
		t.Fatalf("expected two attrs with both trace id and regime set, got %v", attrs)
	}
}
