package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmattos/bilheteria/internal/domain/models"
	"github.com/dmattos/bilheteria/internal/storage"
)

// AuditService — читающая сторона журнала аудита. Запись событий встроена
// в мутации OrderService и отдельного API не имеет.
type AuditService interface {
	// History возвращает события заказа от старых к новым.
	// Работает и для удалённых заказов: история неприкосновенна.
	History(ctx context.Context, orderID int64) ([]*models.OrderEvent, error)
	// CheckOrderEvents проверяет инварианты журнала для одного заказа.
	CheckOrderEvents(ctx context.Context, orderID int64) error
}

type auditService struct {
	log       *slog.Logger
	orderRepo storage.OrderStorage
	eventRepo storage.EventStorage
}

func NewAuditService(log *slog.Logger, orderRepo storage.OrderStorage, eventRepo storage.EventStorage) AuditService {
	return &auditService{log: log, orderRepo: orderRepo, eventRepo: eventRepo}
}

func (s *auditService) History(ctx context.Context, orderID int64) ([]*models.OrderEvent, error) {
	const op = "service.AuditService.History"

	// Заказ должен существовать хотя бы физически (включая удалённые)
	if _, err := s.orderRepo.GetOrderByID(ctx, orderID, true); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	events, err := s.eventRepo.GetEventsByOrderID(ctx, orderID)
	if err != nil {
		s.log.Error("failed to get order events", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return events, nil
}

// CheckOrderEvents проверяет: первое событие — created; событие deleted
// является последним тогда и только тогда, когда у заказа выставлен deleted_at.
func (s *auditService) CheckOrderEvents(ctx context.Context, orderID int64) error {
	const op = "service.AuditService.CheckOrderEvents"

	order, err := s.orderRepo.GetOrderByID(ctx, orderID, true)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	events, err := s.eventRepo.GetEventsByOrderID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if len(events) == 0 {
		return fmt.Errorf("%s: order %d has no events", op, orderID)
	}
	if events[0].Action != models.ActionCreated {
		return fmt.Errorf("%s: order %d first event is %q, want %q", op, orderID, events[0].Action, models.ActionCreated)
	}

	last := events[len(events)-1]
	if order.DeletedAt != nil && last.Action != models.ActionDeleted {
		return fmt.Errorf("%s: order %d is deleted but last event is %q", op, orderID, last.Action)
	}
	if order.DeletedAt == nil {
		for _, e := range events {
			if e.Action == models.ActionDeleted {
				return fmt.Errorf("%s: order %d is not deleted but has a deleted event", op, orderID)
			}
		}
	}
	return nil
}
