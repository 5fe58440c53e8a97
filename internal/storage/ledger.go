package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ItemGroup — одна группа строк (день × тип билета × сырые строки оплаты/мотива)
// с суммами, посчитанными на стороне БД. Сырые строки не нормализуются здесь:
// классификация по категориям выполняется выше, при чтении.
type ItemGroup struct {
	Day            time.Time
	TicketType     string
	PaymentMethod  string
	DiscountReason string // пустая строка, если мотив не указан
	Qty            int
	RevenueCents   int64
}

// StateGroup — группа (штат × тип билета) с суммами из БД. Заказы без
// указанного штата попадают в группу с пустой строкой.
type StateGroup struct {
	State        string
	TicketType   string
	Qty          int
	RevenueCents int64
}

// LedgerStorage — читающая часть конвейера агрегации. Группировка и
// суммирование выполняются в SQL, чтобы не тащить все позиции в память
// при больших диапазонах дат.
type LedgerStorage interface {
	SelectDailyGroups(ctx context.Context, from, to time.Time) ([]ItemGroup, error)
	SelectStateGroups(ctx context.Context, from, to time.Time) ([]StateGroup, error)
}

type ledgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) LedgerStorage {
	return &ledgerRepository{db: db}
}

// SelectDailyGroups возвращает группы в детерминированном порядке:
// повторный вызов над неизменившимися данными даёт идентичный результат.
// Удалённые заказы исключаются всегда.
func (r *ledgerRepository) SelectDailyGroups(ctx context.Context, from, to time.Time) ([]ItemGroup, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DATE(o.created_at) AS day,
		       oi.ticket_type,
		       o.payment_method,
		       COALESCE(oi.discount_reason, '') AS discount_reason,
		       SUM(oi.qty) AS qty,
		       SUM(oi.qty * oi.unit_price_cents) AS revenue_cents
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.deleted_at IS NULL
		  AND DATE(o.created_at) >= $1
		  AND DATE(o.created_at) <= $2
		GROUP BY day, oi.ticket_type, o.payment_method, COALESCE(oi.discount_reason, '')
		ORDER BY day ASC, oi.ticket_type ASC, o.payment_method ASC, discount_reason ASC`,
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily groups: %w", err)
	}
	defer rows.Close()

	var groups []ItemGroup
	for rows.Next() {
		var g ItemGroup
		if err := rows.Scan(&g.Day, &g.TicketType, &g.PaymentMethod, &g.DiscountReason, &g.Qty, &g.RevenueCents); err != nil {
			return nil, fmt.Errorf("failed to scan daily group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

// SelectStateGroups группирует продажи по штату посетителя (UF) и типу
// билета за период. Порядок детерминированный, удалённые заказы исключаются.
func (r *ledgerRepository) SelectStateGroups(ctx context.Context, from, to time.Time) ([]StateGroup, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(o.state, '') AS state,
		       oi.ticket_type,
		       SUM(oi.qty) AS qty,
		       SUM(oi.qty * oi.unit_price_cents) AS revenue_cents
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.deleted_at IS NULL
		  AND DATE(o.created_at) >= $1
		  AND DATE(o.created_at) <= $2
		GROUP BY COALESCE(o.state, ''), oi.ticket_type
		ORDER BY state ASC, oi.ticket_type ASC`,
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to query state groups: %w", err)
	}
	defer rows.Close()

	var groups []StateGroup
	for rows.Next() {
		var g StateGroup
		if err := rows.Scan(&g.State, &g.TicketType, &g.Qty, &g.RevenueCents); err != nil {
			return nil, fmt.Errorf("failed to scan state group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}
