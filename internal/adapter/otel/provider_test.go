package otel_test

import (
	"context"
	"testing"

	adapter "github.com/neomorfeo/processiq/internal/adapter/otel"
)

func TestSetup_Exporters(t *testing.T) {
	for _, exporter := range []string{"stdout", "none"} {
		t.Run(exporter, func(t *testing.T) {
			providers, err := adapter.Setup(context.Background(), adapter.Config{
				ServiceName:    "test",
				ServiceVersion: "0.0.1",
				Environment:    "test",
				Exporter:       exporter,
			})
			if err != nil {
				t.Fatalf("Setup failed: %v", err)
			}
			if err := providers.Shutdown(context.Background()); err != nil {
				t.Fatalf("Shutdown failed: %v", err)
			}
		})
	}
}

func TestSetup_InvalidExporter(t *testing.T) {
	_, err := adapter.Setup(context.Background(), adapter.Config{
		ServiceName:    "test",
		ServiceVersion: "0.0.1",
		Environment:    "test",
		Exporter:       "invalid",
	})
	if err == nil {
		t.Fatal("expected error for invalid exporter")
	}
}

func TestOpenDB_AppliesPragmas(t *testing.T) {
	db, err := adapter.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var foreignKeys, busyTimeout int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatalf("reading foreign_keys: %v", err)
	}
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("reading busy_timeout: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("foreign_keys = %d, want 1", foreignKeys)
	}
	if busyTimeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", busyTimeout)
	}
}
