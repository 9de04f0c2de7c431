package otelx

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInit_Disabled_InstallsSDKProvider(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{Enabled: false})
	if err != nil {
		t.Fatalf("Init disabled: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("TracerProvider type = %T, want *sdktrace.TracerProvider", otel.GetTracerProvider())
	}
}

func TestInit_Disabled_SpansHaveValidIDs(t *testing.T) {
	_, _ = Init(context.Background(), Options{Enabled: false})

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	if !span.SpanContext().IsValid() {
		t.Fatal("spans should carry trace ids for log correlation")
	}
}

func TestInit_SetsCompositePropagator(t *testing.T) {
	_, _ = Init(context.Background(), Options{Enabled: false})

	fields := otel.GetTextMapPropagator().Fields()
	want := map[string]bool{"traceparent": false, "baggage": false}
	for _, f := range fields {
		if _, ok := want[f]; ok {
			want[f] = true
		}
	}
	for f, seen := range want {
		if !seen {
			t.Fatalf("propagator fields %v missing %q", fields, f)
		}
	}
}

func TestInit_Enabled_RequiresEndpoint(t *testing.T) {
	if _, err := Init(context.Background(), Options{Enabled: true}); err == nil {
		t.Fatal("expected an error without an endpoint")
	}
}

func TestInit_Enabled_ReturnsPromptly(t *testing.T) {
	start := time.Now()
	shutdown, err := Init(context.Background(), Options{
		Enabled:  true,
		Endpoint: "localhost:1",
		Insecure: true,
		Headers:  map[string]string{"x-tenant": "tiles"},
		Sample:   1.0,
		Service:  "titiler",
		Version:  "v0.0.0-test",
	})
	if elapsed := time.Since(start); elapsed > 15*time.Second {
		t.Fatalf("Init took %v", elapsed)
	}
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = shutdown(ctx)
}

func TestClampRatio(t *testing.T) {
	for in, want := range map[float64]float64{-1: 0, 0: 0, 0.25: 0.25, 1: 1, 7: 1} {
		if got := clampRatio(in); got != want {
			t.Fatalf("clampRatio(%v) = %v, want %v", in, got, want)
		}
	}
}
