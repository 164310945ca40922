package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const driftColumns = `id, order_id, order_number, product_id, delta, status, attempts, last_error, next_attempt_at, created_at, updated_at`

type driftRow struct {
	ID            string    `db:"id"`
	OrderID       string    `db:"order_id"`
	OrderNumber   string    `db:"order_number"`
	ProductID     string    `db:"product_id"`
	Delta         int       `db:"delta"`
	Status        string    `db:"status"`
	Attempts      int       `db:"attempts"`
	LastError     string    `db:"last_error"`
	NextAttemptAt time.Time `db:"next_attempt_at"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (row driftRow) toDomain() domain.InventoryDrift {
	return domain.InventoryDrift{
		ID:            row.ID,
		OrderID:       row.OrderID,
		OrderNumber:   row.OrderNumber,
		ProductID:     row.ProductID,
		Delta:         row.Delta,
		Status:        domain.DriftStatus(row.Status),
		Attempts:      row.Attempts,
		LastError:     row.LastError,
		NextAttemptAt: row.NextAttemptAt.UTC(),
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

type driftRepository struct {
	db *sqlx.DB
}

// NewDriftRepository создаёт PostgreSQL-реализацию DriftRepository.
func NewDriftRepository(store *Store) domain.DriftRepository {
	return &driftRepository{db: store.DBX()}
}

func (r *driftRepository) Record(ctx context.Context, drift domain.InventoryDrift) (domain.InventoryDrift, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if drift.ID == "" {
		drift.ID = uuid.NewString()
	}
	if drift.Status == "" {
		drift.Status = domain.DriftStatusPending
	}
	now := time.Now().UTC()
	if drift.CreatedAt.IsZero() {
		drift.CreatedAt = now
	}
	drift.UpdatedAt = now
	if drift.NextAttemptAt.IsZero() {
		drift.NextAttemptAt = drift.CreatedAt
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO inventory_drift (`+driftColumns+`)
		VALUES (:id, :order_id, :order_number, :product_id, :delta, :status, :attempts, :last_error, :next_attempt_at, :created_at, :updated_at)
	`, driftRow{
		ID:            drift.ID,
		OrderID:       drift.OrderID,
		OrderNumber:   drift.OrderNumber,
		ProductID:     drift.ProductID,
		Delta:         drift.Delta,
		Status:        string(drift.Status),
		Attempts:      drift.Attempts,
		LastError:     drift.LastError,
		NextAttemptAt: drift.NextAttemptAt,
		CreatedAt:     drift.CreatedAt,
		UpdatedAt:     drift.UpdatedAt,
	})
	if err != nil {
		return domain.InventoryDrift{}, fmt.Errorf("insert inventory drift: %w", err)
	}
	return drift, nil
}

func (r *driftRepository) PullPending(ctx context.Context, now time.Time, limit int) ([]domain.InventoryDrift, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.selectDrift(ctx, `
		WHERE status = 'pending' AND next_attempt_at <= $1
		ORDER BY next_attempt_at, created_at, id
		LIMIT $2`, now, limit)
}

func (r *driftRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.InventoryDrift, error) {
	if !isUUID(orderID) {
		return []domain.InventoryDrift{}, nil
	}
	return r.selectDrift(ctx, `WHERE order_id = $1 ORDER BY created_at, id`, orderID)
}

func (r *driftRepository) selectDrift(ctx context.Context, clause string, args ...any) ([]domain.InventoryDrift, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var rows []driftRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+driftColumns+` FROM inventory_drift `+clause, args...); err != nil {
		return nil, fmt.Errorf("select inventory drift: %w", err)
	}
	result := make([]domain.InventoryDrift, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (r *driftRepository) Update(ctx context.Context, drift domain.InventoryDrift) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE inventory_drift
		SET status = $2,
		    attempts = $3,
		    last_error = $4,
		    next_attempt_at = COALESCE($5, next_attempt_at),
		    updated_at = $6
		WHERE id = $1
	`, drift.ID, string(drift.Status), drift.Attempts, drift.LastError, nullTime(drift.NextAttemptAt), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update inventory drift: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrDriftNotFound
	}
	return nil
}

func (r *driftRepository) Stats(ctx context.Context) (domain.DriftStats, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var row struct {
		Pending int          `db:"pending"`
		Oldest  sql.NullTime `db:"oldest"`
	}
	if err := r.db.GetContext(ctx, &row, `
		SELECT COUNT(*) AS pending, MIN(created_at) AS oldest
		FROM inventory_drift
		WHERE status = 'pending'
	`); err != nil {
		return domain.DriftStats{}, fmt.Errorf("inventory drift stats: %w", err)
	}

	stats := domain.DriftStats{PendingCount: row.Pending}
	if row.Oldest.Valid {
		stats.OldestPendingAt = row.Oldest.Time.UTC()
	}
	return stats, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

var _ domain.DriftRepository = (*driftRepository)(nil)
