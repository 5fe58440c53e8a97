package handlers

import (
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/dmattos/bilheteria/internal/service"
	"github.com/dmattos/bilheteria/internal/storage"
)

// writeServiceError переводит ошибки бизнес-слоя в HTTP-статусы.
// Всё неузнанное — 500 без деталей наружу.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrOrderNotFound),
		errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, storage.ErrGroupNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, storage.ErrOrderAlreadyDeleted),
		errors.Is(err, storage.ErrOrderLocked):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logger.Error("unexpected service error", slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// clientIP достаёт адрес клиента из запроса для журнала аудита.
func clientIP(r *http.Request) *string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return nil
	}
	return &host
}
