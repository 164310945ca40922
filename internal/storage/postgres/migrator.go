package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/orders/*.sql sql/catalog/*.sql
var migrationsFS embed.FS

// MigrationSet выбирает схему одного из сервисов.
type MigrationSet string

const (
	// MigrationsOrders: заказы, позиции, расхождения инвентаря, outbox и timeline.
	MigrationsOrders MigrationSet = "orders"
	// MigrationsCatalog: товары и остатки.
	MigrationsCatalog MigrationSet = "catalog"
)

// ParseMigrationSet проверяет имя набора миграций.
func ParseMigrationSet(raw string) (MigrationSet, error) {
	switch MigrationSet(raw) {
	case MigrationsOrders, MigrationsCatalog:
		return MigrationSet(raw), nil
	}
	return "", fmt.Errorf("unknown migration set %q (expected orders|catalog)", raw)
}

// Наборы ведут собственные таблицы версий, поэтому могут жить в одной базе.
func (m MigrationSet) table() string {
	return "schema_migrations_" + string(m)
}

// MigrateUp применяет up-миграции.
// steps=0 означает "применить все доступные".
func (s *Store) MigrateUp(ctx context.Context, set MigrationSet, steps int) error {
	return s.withMigrator(ctx, set, func(m *migrate.Migrate) error {
		var err error
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
		return ignoreNoop(err)
	})
}

// MigrateDown откатывает миграции.
// steps<=0 интерпретируется как 1 шаг для безопасного поведения.
func (s *Store) MigrateDown(ctx context.Context, set MigrationSet, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.withMigrator(ctx, set, func(m *migrate.Migrate) error {
		return ignoreNoop(m.Steps(-steps))
	})
}

// MigrationStatus возвращает текущую версию набора и признак незавершённой миграции.
func (s *Store) MigrationStatus(ctx context.Context, set MigrationSet) (uint, bool, error) {
	var (
		version uint
		dirty   bool
	)
	err := s.withMigrator(ctx, set, func(m *migrate.Migrate) error {
		var err error
		version, dirty, err = m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			version, dirty = 0, false
			return nil
		}
		return err
	})
	return version, dirty, err
}

// ignoreNoop считает успехом отсутствие изменений и частичное выполнение шагов.
func ignoreNoop(err error) error {
	var short migrate.ErrShortLimit
	switch {
	case err == nil,
		errors.Is(err, migrate.ErrNoChange),
		errors.Is(err, migrate.ErrNilVersion),
		errors.As(err, &short):
		return nil
	}
	return err
}

// withMigrator открывает отдельное подключение: Close у migrate закрывает и переданную базу.
func (s *Store) withMigrator(ctx context.Context, set MigrationSet, fn func(*migrate.Migrate) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}
	if _, err := ParseMigrationSet(string(set)); err != nil {
		return err
	}

	db, err := sql.Open(driverName, s.dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping migration connection: %w", err)
	}

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{MigrationsTable: set.table()})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("create migration driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "sql/"+string(set))
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("load %s migrations: %w", set, err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		_ = source.Close()
		_ = driver.Close()
		return fmt.Errorf("init migrator: %w", err)
	}
	defer m.Close()

	if err := fn(m); err != nil {
		return fmt.Errorf("%s migrations: %w", set, err)
	}
	return nil
}
