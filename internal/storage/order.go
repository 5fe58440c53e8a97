package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/dmattos/bilheteria/internal/domain/models"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderAlreadyDeleted = errors.New("order already deleted")
	ErrOrderLocked         = errors.New("order is locked by another operation")
)

// OrderStorage описывает методы для работы с заказами и их позициями.
// Мутации принимают *sql.Tx: границы транзакции держит сервисный слой,
// чтобы шапка, позиции, группа и событие аудита коммитились атомарно.
type OrderStorage interface {
	CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error)
	InsertItemsTx(ctx context.Context, tx *sql.Tx, orderID int64, items []models.OrderItem) error
	DeleteItemsTx(ctx context.Context, tx *sql.Tx, orderID int64) error
	UpdateHeaderTx(ctx context.Context, tx *sql.Tx, orderID int64, state, city, note *string) error
	LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error)
	SoftDeleteTx(ctx context.Context, tx *sql.Tx, id int64, deletedAt time.Time) error
	GetOrderByID(ctx context.Context, id int64, includeDeleted bool) (*models.Order, error)
	GetItemsByOrderID(ctx context.Context, orderID int64) ([]*models.OrderItem, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]*models.OrderSummary, error)
}

// OrderFilter — параметры административной выборки заказов.
type OrderFilter struct {
	From           time.Time
	To             time.Time
	IncludeDeleted bool // только для аудиторских представлений
	Limit          int
	Offset         int
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *orderRepository {
	return &orderRepository{db: db}
}

const orderColumns = "id, created_at, user_id, channel, payment_method, state, city, note, deleted_at"

func scanOrder(row *sql.Row) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(&order.ID, &order.CreatedAt, &order.UserID, &order.Channel, &order.PaymentMethod,
		&order.State, &order.City, &order.Note, &order.DeletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// CreateOrderTx вставляет шапку заказа и возвращает её id.
func (r *orderRepository) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO orders (created_at, user_id, channel, payment_method, state, city, note)
		 VALUES (NOW(), $1, $2, $3, $4, $5, $6) RETURNING id`,
		order.UserID, order.Channel, order.PaymentMethod, order.State, order.City, order.Note,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create order: %w", err)
	}
	return id, nil
}

func (r *orderRepository) InsertItemsTx(ctx context.Context, tx *sql.Tx, orderID int64, items []models.OrderItem) error {
	for _, item := range items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, ticket_type, qty, unit_price_cents, discount_reason)
			 VALUES ($1, $2, $3, $4, $5)`,
			orderID, item.TicketType, item.Qty, item.UnitPriceCents, item.DiscountReason)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

// DeleteItemsTx очищает набор позиций перед заменой. Позиции не редактируются
// по одной — набор заменяется целиком внутри одной транзакции.
func (r *orderRepository) DeleteItemsTx(ctx context.Context, tx *sql.Tx, orderID int64) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM order_items WHERE order_id = $1", orderID); err != nil {
		return fmt.Errorf("failed to delete order items: %w", err)
	}
	return nil
}

func (r *orderRepository) UpdateHeaderTx(ctx context.Context, tx *sql.Tx, orderID int64, state, city, note *string) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET state = $1, city = $2, note = $3 WHERE id = $4", state, city, note, orderID)
	if err != nil {
		return fmt.Errorf("failed to update order header: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// LockOrderByIDTx берёт блокировку строки заказа на время транзакции.
// Возвращает заказ даже если он удалён: проверка deleted_at — на вызывающем.
func (r *orderRepository) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE NOWAIT", id)
	order, err := scanOrder(row)
	if err != nil {
		if pqErr, ok := errAsPq(err); ok && pqErr.Code == "55P03" { // lock_not_available
			return nil, ErrOrderLocked
		}
		return nil, err
	}
	return order, nil
}

// SoftDeleteTx — условный UPDATE по deleted_at IS NULL. Гонка двух удалений
// разрешается здесь: проигравший получит ErrOrderAlreadyDeleted, а не второе
// событие аудита.
func (r *orderRepository) SoftDeleteTx(ctx context.Context, tx *sql.Tx, id int64, deletedAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL", deletedAt, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	// Ноль строк: либо заказа нет, либо он уже удалён
	var existing sql.NullTime
	row := tx.QueryRowContext(ctx, "SELECT deleted_at FROM orders WHERE id = $1", id)
	if err := row.Scan(&existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		return err
	}
	return ErrOrderAlreadyDeleted
}

// GetOrderByID по умолчанию видит только живые заказы; includeDeleted=true
// используется аудиторскими представлениями.
func (r *orderRepository) GetOrderByID(ctx context.Context, id int64, includeDeleted bool) (*models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE id = $1"
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}
	return scanOrder(r.db.QueryRowContext(ctx, query, id))
}

func (r *orderRepository) GetItemsByOrderID(ctx context.Context, orderID int64) ([]*models.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, ticket_type, qty, unit_price_cents, discount_reason
		 FROM order_items WHERE order_id = $1 ORDER BY ticket_type`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []*models.OrderItem
	for rows.Next() {
		item := &models.OrderItem{}
		if err := rows.Scan(&item.ID, &item.OrderID, &item.TicketType, &item.Qty, &item.UnitPriceCents, &item.DiscountReason); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ListOrders возвращает выборку для админ-списка: агрегаты по позициям
// считаются на стороне БД, а не в приложении.
func (r *orderRepository) ListOrders(ctx context.Context, filter OrderFilter) ([]*models.OrderSummary, error) {
	query := `
		SELECT o.id, o.created_at, o.user_id, o.channel, o.payment_method, o.state,
		       COALESCE(SUM(CASE WHEN oi.ticket_type = 'full' THEN oi.qty ELSE 0 END), 0) AS full_qty,
		       COALESCE(SUM(CASE WHEN oi.ticket_type = 'half' THEN oi.qty ELSE 0 END), 0) AS half_qty,
		       COALESCE(SUM(CASE WHEN oi.ticket_type = 'free' THEN oi.qty ELSE 0 END), 0) AS free_qty,
		       COALESCE(SUM(oi.qty * oi.unit_price_cents), 0) AS revenue_cents,
		       o.deleted_at
		FROM orders o
		LEFT JOIN order_items oi ON oi.order_id = o.id
		WHERE DATE(o.created_at) >= $1 AND DATE(o.created_at) <= $2`
	if !filter.IncludeDeleted {
		query += " AND o.deleted_at IS NULL"
	}
	query += " GROUP BY o.id ORDER BY o.created_at DESC, o.id DESC LIMIT $3 OFFSET $4"

	rows, err := r.db.QueryContext(ctx, query,
		filter.From.Format("2006-01-02"), filter.To.Format("2006-01-02"), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.OrderSummary
	for rows.Next() {
		o := &models.OrderSummary{}
		if err := rows.Scan(&o.ID, &o.CreatedAt, &o.UserID, &o.Channel, &o.PaymentMethod, &o.State,
			&o.FullQty, &o.HalfQty, &o.FreeQty, &o.RevenueCents, &o.DeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order summary: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func errAsPq(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr, true
	}
	return nil, false
}
