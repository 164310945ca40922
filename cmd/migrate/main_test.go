package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

func testPostgresDSN(t *testing.T) string {
	t.Helper()

	for _, dsn := range []string{
		strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_TEST_DSN")),
		strings.TrimSpace(os.Getenv("ORDER_POSTGRES_DSN")),
	} {
		if dsn == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		store, err := postgres.Open(ctx, dsn)
		cancel()
		if err != nil {
			continue
		}
		_ = store.Close()
		return dsn
	}

	t.Skip("postgres dsn is not available")
	return ""
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(append([]string{"migrate"}, args...))
	return out.String(), err
}

func TestResolveDSN(t *testing.T) {
	lookup := func(values map[string]string) func(string) (string, bool) {
		return func(key string) (string, bool) {
			v, ok := values[key]
			return v, ok
		}
	}

	dsn, err := resolveDSN(" postgres://flag ", postgres.MigrationsOrders, lookup(nil))
	if err != nil || dsn != "postgres://flag" {
		t.Fatalf("expected flag dsn, got %q (%v)", dsn, err)
	}

	dsn, err = resolveDSN("", postgres.MigrationsCatalog, lookup(map[string]string{
		"ORDER_POSTGRES_DSN":   "postgres://orders",
		"CATALOG_POSTGRES_DSN": "postgres://catalog",
	}))
	if err != nil || dsn != "postgres://catalog" {
		t.Fatalf("expected catalog dsn, got %q (%v)", dsn, err)
	}

	_, err = resolveDSN("", postgres.MigrationsOrders, lookup(map[string]string{"ORDER_POSTGRES_DSN": "  "}))
	if err == nil || !strings.Contains(err.Error(), "ORDER_POSTGRES_DSN") {
		t.Fatalf("expected missing dsn error, got %v", err)
	}
}

func TestCLI_UnknownSet(t *testing.T) {
	_, err := runCLI(t, "--set=billing", "--dsn=postgres://x", "status")
	if err == nil || !strings.Contains(err.Error(), "unknown migration set") {
		t.Fatalf("expected unknown set error, got %v", err)
	}
}

func TestCLI_MissingDSN(t *testing.T) {
	t.Setenv("CATALOG_POSTGRES_DSN", "")

	_, err := runCLI(t, "--set=catalog", "status")
	if err == nil || !strings.Contains(err.Error(), "CATALOG_POSTGRES_DSN") {
		t.Fatalf("expected missing dsn error, got %v", err)
	}
}

func TestCLI_StatusUpDown(t *testing.T) {
	dsn := testPostgresDSN(t)

	for _, args := range [][]string{
		{"--dsn=" + dsn, "status"},
		{"--dsn=" + dsn, "up"},
		{"--dsn=" + dsn, "down", "--steps=1"},
		{"--dsn=" + dsn, "up"},
		{"--set=catalog", "--dsn=" + dsn, "up"},
	} {
		out, err := runCLI(t, args...)
		if err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		if !strings.Contains(out, "version=") {
			t.Fatalf("%v: unexpected output %q", args, out)
		}
	}
}
