package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmattos/bilheteria/internal/domain/models"
	"github.com/dmattos/bilheteria/internal/jwt-new/jwtmiddleware"
	"github.com/dmattos/bilheteria/internal/service"
	"github.com/dmattos/bilheteria/internal/storage"
)

// OrderItemRequest — одна позиция заказа во входном JSON.
type OrderItemRequest struct {
	TicketType     string  `json:"ticket_type" validate:"required"`
	Qty            int     `json:"qty" validate:"required,gt=0"`
	DiscountReason *string `json:"discount_reason,omitempty"`
}

// GroupVisitRequest — данные группового визита (только для channel=group).
type GroupVisitRequest struct {
	VisitType       string  `json:"visit_type" validate:"required"`
	HasLetter       bool    `json:"has_letter"`
	InstitutionName string  `json:"institution_name" validate:"required"`
	ResponsibleName string  `json:"responsible_name" validate:"required"`
	TotalStudents   int     `json:"total_students" validate:"gte=0"`
	TotalTeachers   int     `json:"total_teachers" validate:"gte=0"`
	State           *string `json:"state,omitempty"`
	City            *string `json:"city,omitempty"`
	ScheduledDate   *string `json:"scheduled_date,omitempty"` // YYYY-MM-DD
}

// CreateOrderRequest — входной JSON для POST /api/orders.
type CreateOrderRequest struct {
	Channel       string             `json:"channel" validate:"required"`
	PaymentMethod string             `json:"payment_method" validate:"required"`
	State         *string            `json:"state,omitempty"`
	City          *string            `json:"city,omitempty"`
	Note          *string            `json:"note,omitempty"`
	Items         []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	Group         *GroupVisitRequest `json:"group,omitempty"`
}

// CreateOrderResponse возвращает идентификатор созданного заказа.
type CreateOrderResponse struct {
	OrderID int64 `json:"order_id"`
}

func toItemInputs(items []OrderItemRequest) []service.OrderItemInput {
	out := make([]service.OrderItemInput, 0, len(items))
	for _, it := range items {
		out = append(out, service.OrderItemInput{
			TicketType:     it.TicketType,
			Qty:            it.Qty,
			DiscountReason: it.DiscountReason,
		})
	}
	return out
}

func toGroupInput(g *GroupVisitRequest) (*service.GroupVisitInput, error) {
	if g == nil {
		return nil, nil
	}
	in := &service.GroupVisitInput{
		VisitType:       g.VisitType,
		HasLetter:       g.HasLetter,
		InstitutionName: g.InstitutionName,
		ResponsibleName: g.ResponsibleName,
		TotalStudents:   g.TotalStudents,
		TotalTeachers:   g.TotalTeachers,
		State:           g.State,
		City:            g.City,
	}
	if g.ScheduledDate != nil {
		d, err := time.Parse("2006-01-02", *g.ScheduledDate)
		if err != nil {
			return nil, err
		}
		in.ScheduledDate = &d
	}
	return in, nil
}

// CreateOrderHandler обрабатывает запрос POST /api/orders.
func CreateOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		var req CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		group, err := toGroupInput(req.Group)
		if err != nil {
			logger.Error("invalid scheduled date", slog.Any("error", err))
			http.Error(w, "invalid scheduled_date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		in := service.CreateOrderInput{
			Channel:       req.Channel,
			PaymentMethod: req.PaymentMethod,
			State:         req.State,
			City:          req.City,
			Note:          req.Note,
			Items:         toItemInputs(req.Items),
			Group:         group,
		}

		orderID, err := orderService.CreateOrder(r.Context(), in, userID, clientIP(r))
		if err != nil {
			logger.Error("failed to create order", slog.Any("error", err))
			writeServiceError(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(CreateOrderResponse{OrderID: orderID}); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
		}
	}
}

// ReplaceItemsRequest — входной JSON для PUT /api/orders/{id}/items.
// Позиции заменяются целиком, мотив правки обязателен.
type ReplaceItemsRequest struct {
	Items  []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	Reason string             `json:"reason" validate:"required"`
	State  *string            `json:"state,omitempty"`
	City   *string            `json:"city,omitempty"`
	Note   *string            `json:"note,omitempty"`
}

// ReplaceItemsHandler обрабатывает запрос PUT /api/orders/{id}/items.
func ReplaceItemsHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ReplaceItemsHandler"
		logger := log.With(slog.String("op", op))

		orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		var req ReplaceItemsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		header := service.HeaderUpdate{State: req.State, City: req.City, Note: req.Note}
		err = orderService.ReplaceOrderItems(r.Context(), orderID, toItemInputs(req.Items), header, userID, req.Reason, clientIP(r))
		if err != nil {
			logger.Error("failed to replace order items", slog.Any("error", err))
			writeServiceError(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"message": "order updated"}); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
		}
	}
}

// DeleteOrderRequest — тело DELETE /api/orders/{id}: мотив отмены обязателен.
type DeleteOrderRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// DeleteOrderHandler обрабатывает запрос DELETE /api/orders/{id}.
// Политика доступа: admin отменяет продажу за любой день, manager — только
// за текущий, clerk не отменяет вовсе.
func DeleteOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteOrderHandler"
		logger := log.With(slog.String("op", op))

		orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		var req DeleteOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		role, _ := jwtmiddleware.RoleFromContext(r.Context())
		switch role {
		case models.RoleAdmin:
			// без ограничений по дате
		case models.RoleManager:
			details, err := orderService.GetOrder(r.Context(), orderID, true)
			if err != nil {
				logger.Error("failed to load order for policy check", slog.Any("error", err))
				writeServiceError(w, logger, err)
				return
			}
			now := time.Now()
			created := details.Order.CreatedAt
			if created.Year() != now.Year() || created.YearDay() != now.YearDay() {
				http.Error(w, "managers may only cancel same-day orders", http.StatusForbidden)
				return
			}
		default:
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		if err := orderService.SoftDeleteOrder(r.Context(), orderID, userID, req.Reason, clientIP(r)); err != nil {
			logger.Error("failed to delete order", slog.Any("error", err))
			writeServiceError(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"message": "order deleted"}); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
		}
	}
}

// GetOrderHandler обрабатывает запрос GET /api/orders/{id}.
// Удалённые заказы видны только admin и manager (через ?include_deleted=true).
func GetOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetOrderHandler"
		logger := log.With(slog.String("op", op))

		orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		includeDeleted := false
		if r.URL.Query().Get("include_deleted") == "true" {
			role, _ := jwtmiddleware.RoleFromContext(r.Context())
			includeDeleted = role == models.RoleAdmin || role == models.RoleManager
		}

		details, err := orderService.GetOrder(r.Context(), orderID, includeDeleted)
		if err != nil {
			if !errors.Is(err, storage.ErrOrderNotFound) {
				logger.Error("failed to get order", slog.Any("error", err))
			}
			writeServiceError(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(details); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
		}
	}
}

// ListOrdersHandler обрабатывает запрос GET /api/orders.
// Параметры: from, to (YYYY-MM-DD), include_deleted, limit, offset.
func ListOrdersHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListOrdersHandler"
		logger := log.With(slog.String("op", op))

		q := r.URL.Query()
		// Без параметров окно открыто: нулевой From проходит нижнюю границу,
		// а To по умолчанию — сегодняшний день.
		filter := storage.OrderFilter{Limit: 100, To: time.Now()}

		if v := q.Get("from"); v != "" {
			d, err := time.Parse("2006-01-02", v)
			if err != nil {
				http.Error(w, "invalid from, want YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			filter.From = d
		}
		if v := q.Get("to"); v != "" {
			d, err := time.Parse("2006-01-02", v)
			if err != nil {
				http.Error(w, "invalid to, want YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			filter.To = d
		}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 1000 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			filter.Limit = n
		}
		if v := q.Get("offset"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				http.Error(w, "invalid offset", http.StatusBadRequest)
				return
			}
			filter.Offset = n
		}
		if q.Get("include_deleted") == "true" {
			role, _ := jwtmiddleware.RoleFromContext(r.Context())
			filter.IncludeDeleted = role == models.RoleAdmin || role == models.RoleManager
		}

		orders, err := orderService.ListOrders(r.Context(), filter)
		if err != nil {
			logger.Error("failed to list orders", slog.Any("error", err))
			writeServiceError(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(orders); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
		}
	}
}
