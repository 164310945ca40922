package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

const defaultTimeout = 30 * time.Second

// dsnEnv: переменная с DSN по умолчанию для каждого набора миграций.
var dsnEnv = map[postgres.MigrationSet]string{
	postgres.MigrationsOrders:  "ORDER_POSTGRES_DSN",
	postgres.MigrationsCatalog: "CATALOG_POSTGRES_DSN",
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:  "migrate",
		Usage: "применяет миграции схем сервиса заказов и каталога",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "set", Value: string(postgres.MigrationsOrders), Usage: "набор миграций: orders|catalog"},
			&cli.StringFlag{Name: "dsn", Usage: "PostgreSQL DSN (по умолчанию ORDER_POSTGRES_DSN или CATALOG_POSTGRES_DSN)"},
			&cli.DurationFlag{Name: "timeout", Value: defaultTimeout},
		},
		Writer:    out,
		ErrWriter: out,
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "применить миграции (steps=0: все)",
				Flags: []cli.Flag{&cli.IntFlag{Name: "steps"}},
				Action: withStore(func(ctx context.Context, c *cli.Context, store *postgres.Store, set postgres.MigrationSet) error {
					if err := store.MigrateUp(ctx, set, c.Int("steps")); err != nil {
						return fmt.Errorf("migrate up failed: %w", err)
					}
					return printStatus(ctx, out, "migrate up ok", store, set)
				}),
			},
			{
				Name:  "down",
				Usage: "откатить миграции (по умолчанию одну)",
				Flags: []cli.Flag{&cli.IntFlag{Name: "steps", Value: 1}},
				Action: withStore(func(ctx context.Context, c *cli.Context, store *postgres.Store, set postgres.MigrationSet) error {
					steps := max(c.Int("steps"), 1)
					if err := store.MigrateDown(ctx, set, steps); err != nil {
						return fmt.Errorf("migrate down failed: %w", err)
					}
					return printStatus(ctx, out, "migrate down ok", store, set)
				}),
			},
			{
				Name:  "status",
				Usage: "показать текущую версию схемы",
				Action: withStore(func(ctx context.Context, _ *cli.Context, store *postgres.Store, set postgres.MigrationSet) error {
					return printStatus(ctx, out, "migration status", store, set)
				}),
			},
		},
	}
}

type storeAction func(ctx context.Context, c *cli.Context, store *postgres.Store, set postgres.MigrationSet) error

// withStore разбирает общие флаги, открывает базу и передаёт её действию.
func withStore(action storeAction) cli.ActionFunc {
	return func(c *cli.Context) error {
		set, err := postgres.ParseMigrationSet(strings.TrimSpace(c.String("set")))
		if err != nil {
			return err
		}
		dsn, err := resolveDSN(c.String("dsn"), set, os.LookupEnv)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
		defer cancel()

		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return fmt.Errorf("open postgres store: %w", err)
		}
		defer store.Close()

		return action(ctx, c, store, set)
	}
}

func resolveDSN(flagValue string, set postgres.MigrationSet, lookup func(string) (string, bool)) (string, error) {
	if dsn := strings.TrimSpace(flagValue); dsn != "" {
		return dsn, nil
	}
	env := dsnEnv[set]
	if value, ok := lookup(env); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), nil
	}
	return "", fmt.Errorf("%s (or --dsn) is required", env)
}

func printStatus(ctx context.Context, out io.Writer, prefix string, store *postgres.Store, set postgres.MigrationSet) error {
	version, dirty, err := store.MigrationStatus(ctx, set)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s: set=%s version=%d dirty=%t\n", prefix, set, version, dirty)
	return err
}

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
