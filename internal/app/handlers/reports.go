package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmattos/bilheteria/internal/service"
)

// BorderoHandler обрабатывает запрос GET /api/reports/bordero?from=&to=.
// Возвращает построчное бордеро за диапазон дат: строка на каждый
// календарный день плюс итоговая. Рендеринг таблиц остаётся за клиентом.
func BorderoHandler(log *slog.Logger, reportService service.ReportService, prices service.TicketPrices) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.BorderoHandler"
		logger := log.With(slog.String("op", op))

		q := r.URL.Query()
		from, err := time.Parse("2006-01-02", q.Get("from"))
		if err != nil {
			http.Error(w, "invalid from, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		to, err := time.Parse("2006-01-02", q.Get("to"))
		if err != nil {
			http.Error(w, "invalid to, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		if to.Before(from) {
			http.Error(w, "to must not precede from", http.StatusBadRequest)
			return
		}

		report, err := reportService.BuildLedger(r.Context(), from, to, prices)
		if err != nil {
			logger.Error("failed to build ledger", slog.Any("error", err))
			writeServiceError(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(report); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	}
}

// ByStateHandler обрабатывает запрос GET /api/reports/by-state?from=&to=.
// Возвращает сводку продаж по штату посетителя за диапазон дат.
func ByStateHandler(log *slog.Logger, reportService service.ReportService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ByStateHandler"
		logger := log.With(slog.String("op", op))

		q := r.URL.Query()
		from, err := time.Parse("2006-01-02", q.Get("from"))
		if err != nil {
			http.Error(w, "invalid from, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		to, err := time.Parse("2006-01-02", q.Get("to"))
		if err != nil {
			http.Error(w, "invalid to, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		if to.Before(from) {
			http.Error(w, "to must not precede from", http.StatusBadRequest)
			return
		}

		rows, err := reportService.AggregateByState(r.Context(), from, to)
		if err != nil {
			logger.Error("failed to aggregate by state", slog.Any("error", err))
			writeServiceError(w, logger, err)
			return
		}
		if rows == nil {
			rows = []service.StateRow{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rows); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	}
}
