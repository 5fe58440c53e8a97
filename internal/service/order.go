package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmattos/bilheteria/internal/domain/models"
	"github.com/dmattos/bilheteria/internal/storage"
)

// ErrValidation — нарушение бизнес-правила во входных данных.
// Сервис перепроверяет правила независимо от того, что уже проверил
// транспортный слой.
var ErrValidation = errors.New("validation error")

// TicketPrices — тариф, применяемый при создании заказа. Free всегда 0.
type TicketPrices struct {
	FullCents int64
	HalfCents int64
}

// OrderItemInput — позиция будущего заказа (тип, количество, мотив).
type OrderItemInput struct {
	TicketType     string
	Qty            int
	DiscountReason *string
}

// GroupVisitInput — метаданные группового визита.
type GroupVisitInput struct {
	VisitType       string
	HasLetter       bool
	InstitutionName string
	ResponsibleName string
	TotalStudents   int
	TotalTeachers   int
	State           *string
	City            *string
	ScheduledDate   *time.Time
}

// CreateOrderInput — полный вход операции создания продажи.
type CreateOrderInput struct {
	Channel       string
	PaymentMethod string
	State         *string
	City          *string
	Note          *string
	Items         []OrderItemInput
	Group         *GroupVisitInput
}

// HeaderUpdate — изменяемые при редактировании поля шапки.
type HeaderUpdate struct {
	State *string
	City  *string
	Note  *string
}

// OrderDetails — заказ вместе с позициями и (опционально) группой.
type OrderDetails struct {
	Order *models.Order       `json:"order"`
	Items []*models.OrderItem `json:"items"`
	Group *models.GroupVisit  `json:"group,omitempty"`
}

// OrderService определяет атомарные операции над заказами.
// Каждая мутация пишет ровно одно событие аудита в той же транзакции.
type OrderService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput, actorID int64, clientIP *string) (int64, error)
	ReplaceOrderItems(ctx context.Context, orderID int64, items []OrderItemInput, header HeaderUpdate, actorID int64, reason string, clientIP *string) error
	SoftDeleteOrder(ctx context.Context, orderID, actorID int64, reason string, clientIP *string) error
	GetOrder(ctx context.Context, orderID int64, includeDeleted bool) (*OrderDetails, error)
	ListOrders(ctx context.Context, filter storage.OrderFilter) ([]*models.OrderSummary, error)
}

type orderService struct {
	log       *slog.Logger
	db        *sql.DB
	prices    TicketPrices
	orderRepo storage.OrderStorage
	groupRepo storage.GroupStorage
	eventRepo storage.EventStorage
}

func NewOrderService(log *slog.Logger, db *sql.DB, prices TicketPrices, orderRepo storage.OrderStorage, groupRepo storage.GroupStorage, eventRepo storage.EventStorage) OrderService {
	return &orderService{
		log:       log,
		db:        db,
		prices:    prices,
		orderRepo: orderRepo,
		groupRepo: groupRepo,
		eventRepo: eventRepo,
	}
}

// buildItems проверяет бизнес-правила и назначает цены по тарифу.
// Правила: суммарное количество > 0; каждая позиция с qty > 0;
// half и free обязаны иметь мотив; цена free всегда 0.
func (s *orderService) buildItems(items []OrderItemInput) ([]models.OrderItem, error) {
	total := 0
	out := make([]models.OrderItem, 0, len(items))
	for _, in := range items {
		if in.Qty <= 0 {
			return nil, fmt.Errorf("%w: item quantity must be positive", ErrValidation)
		}
		total += in.Qty

		var priceCents int64
		switch in.TicketType {
		case models.TicketFull:
			priceCents = s.prices.FullCents
		case models.TicketHalf:
			priceCents = s.prices.HalfCents
		case models.TicketFree:
			priceCents = 0
		default:
			return nil, fmt.Errorf("%w: unknown ticket type %q", ErrValidation, in.TicketType)
		}

		// Мотив обязателен, когда цена снижена или нулевая
		if in.TicketType == models.TicketHalf || in.TicketType == models.TicketFree {
			if in.DiscountReason == nil || *in.DiscountReason == "" {
				return nil, fmt.Errorf("%w: discount reason is required for %s tickets", ErrValidation, in.TicketType)
			}
		}

		out = append(out, models.OrderItem{
			TicketType:     in.TicketType,
			Qty:            in.Qty,
			UnitPriceCents: priceCents,
			DiscountReason: in.DiscountReason,
		})
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: order must contain at least one ticket", ErrValidation)
	}
	return out, nil
}

func validChannel(channel string) bool {
	switch channel {
	case models.ChannelCounter, models.ChannelGroup, models.ChannelOnline:
		return true
	}
	return false
}

// CreateOrder создаёт шапку, позиции, группу (для группового канала) и событие
// 'created' в одной транзакции. Либо всё, либо ничего.
func (s *orderService) CreateOrder(ctx context.Context, in CreateOrderInput, actorID int64, clientIP *string) (int64, error) {
	const op = "service.OrderService.CreateOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("actorID", actorID), slog.String("channel", in.Channel))

	if !validChannel(in.Channel) {
		return 0, fmt.Errorf("%s: %w: unknown channel %q", op, ErrValidation, in.Channel)
	}
	if in.PaymentMethod == "" {
		return 0, fmt.Errorf("%s: %w: payment method is required", op, ErrValidation)
	}
	if in.Channel == models.ChannelGroup && in.Group == nil {
		return 0, fmt.Errorf("%s: %w: group channel requires group visit data", op, ErrValidation)
	}
	if in.Channel != models.ChannelGroup && in.Group != nil {
		return 0, fmt.Errorf("%s: %w: group visit data is only valid for the group channel", op, ErrValidation)
	}

	items, err := s.buildItems(in.Items)
	if err != nil {
		logger.Warn("order rejected", slog.Any("error", err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	orderID, err := s.orderRepo.CreateOrderTx(ctx, tx, &models.Order{
		UserID:        actorID,
		Channel:       in.Channel,
		PaymentMethod: in.PaymentMethod,
		State:         in.State,
		City:          in.City,
		Note:          in.Note,
	})
	if err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to create order", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to create order: %w", op, err)
	}

	if err := s.orderRepo.InsertItemsTx(ctx, tx, orderID, items); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to insert items", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to insert items: %w", op, err)
	}

	if in.Group != nil {
		group := &models.GroupVisit{
			OrderID:         orderID,
			VisitType:       in.Group.VisitType,
			HasLetter:       in.Group.HasLetter,
			InstitutionName: in.Group.InstitutionName,
			ResponsibleName: in.Group.ResponsibleName,
			TotalStudents:   in.Group.TotalStudents,
			TotalTeachers:   in.Group.TotalTeachers,
			State:           in.Group.State,
			City:            in.Group.City,
			ScheduledDate:   in.Group.ScheduledDate,
		}
		if _, err := s.groupRepo.CreateGroupVisitTx(ctx, tx, group); err != nil {
			s.rollback(tx, logger)
			logger.Error("failed to create group visit", slog.Any("error", err))
			return 0, fmt.Errorf("%s: failed to create group visit: %w", op, err)
		}
	}

	if err := s.eventRepo.CreateEventTx(ctx, tx, &models.OrderEvent{
		OrderID:   orderID,
		Action:    models.ActionCreated,
		UserID:    actorID,
		IPAddress: clientIP,
	}); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to create audit event", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to create audit event: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("order created", slog.Int64("orderID", orderID))
	return orderID, nil
}

// ReplaceOrderItems заменяет набор позиций заказа целиком и пишет событие
// 'updated'. Позиции не редактируются по одной.
func (s *orderService) ReplaceOrderItems(ctx context.Context, orderID int64, items []OrderItemInput, header HeaderUpdate, actorID int64, reason string, clientIP *string) error {
	const op = "service.OrderService.ReplaceOrderItems"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.Int64("actorID", actorID))

	newItems, err := s.buildItems(items)
	if err != nil {
		logger.Warn("replacement rejected", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	// Блокируем строку заказа, чтобы замена не пересеклась с удалением
	order, err := s.orderRepo.LockOrderByIDTx(ctx, tx, orderID)
	if err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to lock order", slog.Any("error", err))
		return fmt.Errorf("%s: failed to lock order: %w", op, err)
	}
	if order.DeletedAt != nil {
		s.rollback(tx, logger)
		return fmt.Errorf("%s: %w", op, storage.ErrOrderAlreadyDeleted)
	}

	if err := s.orderRepo.DeleteItemsTx(ctx, tx, orderID); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to delete old items", slog.Any("error", err))
		return fmt.Errorf("%s: failed to delete old items: %w", op, err)
	}

	if err := s.orderRepo.InsertItemsTx(ctx, tx, orderID, newItems); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to insert new items", slog.Any("error", err))
		return fmt.Errorf("%s: failed to insert new items: %w", op, err)
	}

	if err := s.orderRepo.UpdateHeaderTx(ctx, tx, orderID, header.State, header.City, header.Note); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to update header", slog.Any("error", err))
		return fmt.Errorf("%s: failed to update header: %w", op, err)
	}

	eventReason := &reason
	if reason == "" {
		eventReason = nil
	}
	if err := s.eventRepo.CreateEventTx(ctx, tx, &models.OrderEvent{
		OrderID:   orderID,
		Action:    models.ActionUpdated,
		UserID:    actorID,
		Reason:    eventReason,
		IPAddress: clientIP,
	}); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to create audit event", slog.Any("error", err))
		return fmt.Errorf("%s: failed to create audit event: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("order items replaced")
	return nil
}

// SoftDeleteOrder помечает заказ удалённым и пишет событие 'deleted'.
// Повторный вызов вернёт ErrOrderAlreadyDeleted: условный UPDATE по
// deleted_at IS NULL гарантирует ровно одно событие удаления даже при гонке.
func (s *orderService) SoftDeleteOrder(ctx context.Context, orderID, actorID int64, reason string, clientIP *string) error {
	const op = "service.OrderService.SoftDeleteOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.Int64("actorID", actorID))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	if err := s.orderRepo.SoftDeleteTx(ctx, tx, orderID, time.Now()); err != nil {
		s.rollback(tx, logger)
		if errors.Is(err, storage.ErrOrderNotFound) || errors.Is(err, storage.ErrOrderAlreadyDeleted) {
			logger.Warn("soft delete refused", slog.Any("error", err))
			return fmt.Errorf("%s: %w", op, err)
		}
		logger.Error("failed to soft delete order", slog.Any("error", err))
		return fmt.Errorf("%s: failed to soft delete order: %w", op, err)
	}

	eventReason := &reason
	if reason == "" {
		eventReason = nil
	}
	if err := s.eventRepo.CreateEventTx(ctx, tx, &models.OrderEvent{
		OrderID:   orderID,
		Action:    models.ActionDeleted,
		UserID:    actorID,
		Reason:    eventReason,
		IPAddress: clientIP,
	}); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to create audit event", slog.Any("error", err))
		return fmt.Errorf("%s: failed to create audit event: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("order soft deleted")
	return nil
}

// GetOrder возвращает заказ с позициями и группой. includeDeleted=true
// используется аудиторскими экранами; обычные чтения видят только живые заказы.
func (s *orderService) GetOrder(ctx context.Context, orderID int64, includeDeleted bool) (*OrderDetails, error) {
	const op = "service.OrderService.GetOrder"

	order, err := s.orderRepo.GetOrderByID(ctx, orderID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items, err := s.orderRepo.GetItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get items: %w", op, err)
	}

	details := &OrderDetails{Order: order, Items: items}
	if order.Channel == models.ChannelGroup {
		group, err := s.groupRepo.GetGroupByOrderID(ctx, orderID)
		if err != nil && !errors.Is(err, storage.ErrGroupNotFound) {
			return nil, fmt.Errorf("%s: failed to get group visit: %w", op, err)
		}
		details.Group = group
	}
	return details, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter storage.OrderFilter) ([]*models.OrderSummary, error) {
	const op = "service.OrderService.ListOrders"
	orders, err := s.orderRepo.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

func (s *orderService) rollback(tx *sql.Tx, logger *slog.Logger) {
	if rbErr := tx.Rollback(); rbErr != nil {
		logger.Error("transaction rollback failed", slog.Any("error", rbErr))
	}
}
