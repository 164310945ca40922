package main

import (
	"context"
	"testing"
	"time"
)

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("CATALOG_STORAGE_DRIVER", "postgres")
	t.Setenv("CATALOG_POSTGRES_DSN", "")

	if err := run(context.Background()); err == nil {
		t.Fatal("expected error for postgres without dsn")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Setenv("CATALOG_HTTP_ADDR", "127.0.0.1:0")
	t.Setenv("CATALOG_METRICS_ADDR", "127.0.0.1:0")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
}
