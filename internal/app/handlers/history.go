package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmattos/bilheteria/internal/service"
)

// OrderHistoryHandler обрабатывает запрос GET /api/orders/{id}/history.
// История доступна и для удалённых заказов: журнал только растёт.
func OrderHistoryHandler(log *slog.Logger, auditService service.AuditService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.OrderHistoryHandler"
		logger := log.With(slog.String("op", op))

		orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		events, err := auditService.History(r.Context(), orderID)
		if err != nil {
			logger.Error("failed to get order history", slog.Any("error", err))
			writeServiceError(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(events); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	}
}
