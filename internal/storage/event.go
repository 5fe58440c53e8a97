package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmattos/bilheteria/internal/domain/models"
)

// EventStorage описывает методы для работы с журналом аудита заказов.
// Журнал append-only: записи никогда не обновляются и не удаляются.
type EventStorage interface {
	// CreateEventTx пишет событие аудита в той же транзакции, что и мутация.
	CreateEventTx(ctx context.Context, tx *sql.Tx, event *models.OrderEvent) error
	// GetEventsByOrderID возвращает историю заказа в хронологическом порядке.
	GetEventsByOrderID(ctx context.Context, orderID int64) ([]*models.OrderEvent, error)
}

type eventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) EventStorage {
	return &eventRepository{db: db}
}

func (r *eventRepository) CreateEventTx(ctx context.Context, tx *sql.Tx, event *models.OrderEvent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO order_events (order_id, action, user_id, created_at, reason, ip_address)
		 VALUES ($1, $2, $3, NOW(), $4, $5)`,
		event.OrderID, event.Action, event.UserID, event.Reason, event.IPAddress)
	if err != nil {
		return fmt.Errorf("failed to create order event: %w", err)
	}
	return nil
}

func (r *eventRepository) GetEventsByOrderID(ctx context.Context, orderID int64) ([]*models.OrderEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, action, user_id, created_at, reason, ip_address
		 FROM order_events
		 WHERE order_id = $1
		 ORDER BY created_at ASC, id ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order events: %w", err)
	}
	defer rows.Close()

	var events []*models.OrderEvent
	for rows.Next() {
		event := &models.OrderEvent{}
		if err := rows.Scan(&event.ID, &event.OrderID, &event.Action, &event.UserID,
			&event.CreatedAt, &event.Reason, &event.IPAddress); err != nil {
			return nil, fmt.Errorf("failed to scan order event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
