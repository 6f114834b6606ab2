package otel

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestInitialize_StdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	err := Initialize(context.Background(), Config{
		ServiceName: "poolserver-test",
		Exporter:    "stdout",
		Writer:      &buf,
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !IsInitialized() {
		t.Fatal("IsInitialized() should be true after Initialize")
	}

	_, span := Tracer("test").Start(context.Background(), "tcp.conn")
	span.End()

	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if IsInitialized() {
		t.Error("IsInitialized() should be false after Shutdown")
	}

	out := buf.String()
	if !strings.Contains(out, "tcp.conn") {
		t.Errorf("exported output missing span name:\n%s", out)
	}
	if !strings.Contains(out, "poolserver-test") {
		t.Errorf("exported output missing service name:\n%s", out)
	}
}

func TestInitialize_UnknownExporter(t *testing.T) {
	if err := Initialize(context.Background(), Config{Exporter: "jaeger"}); err == nil {
		t.Error("Initialize should reject unsupported exporters")
	}
	if IsInitialized() {
		t.Error("a failed Initialize must not install a provider")
	}
}

func TestShutdown_WithoutInitialize(t *testing.T) {
	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown without provider error = %v", err)
	}
}
