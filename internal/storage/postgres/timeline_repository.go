package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type timelineRow struct {
	OrderID  string    `db:"order_id"`
	Type     string    `db:"type"`
	Reason   string    `db:"reason"`
	Occurred time.Time `db:"occurred"`
}

type timelineRepository struct {
	db *sqlx.DB
}

// NewTimelineRepository создаёт PostgreSQL-реализацию TimelineRepository.
func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepository{db: store.DBX()}
}

func (r *timelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}

	if _, err := r.db.NamedExecContext(ctx, `
		INSERT INTO timeline_events (order_id, type, reason, occurred)
		VALUES (:order_id, :type, :reason, :occurred)
	`, timelineRow(event)); err != nil {
		return fmt.Errorf("append timeline event: %w", err)
	}

	return nil
}

// List возвращает события заказа; при равном времени порядок вставки сохраняется.
func (r *timelineRepository) List(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	if !isUUID(orderID) {
		return []domain.TimelineEvent{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var rows []timelineRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT order_id, type, reason, occurred
		FROM timeline_events
		WHERE order_id = $1
		ORDER BY occurred ASC, id ASC
	`, orderID); err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}

	events := make([]domain.TimelineEvent, 0, len(rows))
	for _, row := range rows {
		event := domain.TimelineEvent(row)
		event.Occurred = event.Occurred.UTC()
		events = append(events, event)
	}
	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
