package main

import (
	"context"

	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"

	"github.com/dmattos/bilheteria/internal/app"
	"github.com/dmattos/bilheteria/internal/app/handlers"
	"github.com/dmattos/bilheteria/internal/config"
	"github.com/dmattos/bilheteria/internal/domain/models"
	"github.com/dmattos/bilheteria/internal/jwt-new/jwtmiddleware"
	"github.com/dmattos/bilheteria/internal/lib/logger"
	"github.com/dmattos/bilheteria/internal/lib/logger/handlers/urllog"
	"github.com/dmattos/bilheteria/internal/service"
	"github.com/dmattos/bilheteria/internal/storage"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.DB.Close()

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)
	groupRepo := storage.NewGroupRepository(application.DB)
	eventRepo := storage.NewEventRepository(application.DB)
	ledgerRepo := storage.NewLedgerRepository(application.DB)

	prices := service.TicketPrices{
		FullCents: cfg.Tickets.FullPriceCents,
		HalfCents: cfg.Tickets.HalfPriceCents,
	}

	authService := service.NewAuthService(application.Logger, userRepo, time.Duration(application.Config.JWT.TokenTTL)*time.Minute)
	orderService := service.NewOrderService(application.Logger, application.DB, prices, orderRepo, groupRepo, eventRepo)
	auditService := service.NewAuditService(application.Logger, orderRepo, eventRepo)
	reportService := service.NewReportService(application.Logger, ledgerRepo)
	userService := service.NewUserService(application.Logger, userRepo)

	// эндпоинт для аутентификации
	router.Post("/api/auth", handlers.AuthHandler(application.Logger, authService))

	router.Group(func(r chi.Router) {
		jwtMW := jwtmiddleware.NewJWTMiddleware()
		r.Use(jwtMW)

		// продажи: создание, просмотр, правка позиций
		r.Post("/api/orders", handlers.CreateOrderHandler(application.Logger, orderService))
		r.Get("/api/orders", handlers.ListOrdersHandler(application.Logger, orderService))
		r.Get("/api/orders/{id}", handlers.GetOrderHandler(application.Logger, orderService))
		r.Put("/api/orders/{id}/items", handlers.ReplaceItemsHandler(application.Logger, orderService))
		r.Get("/api/orders/{id}/history", handlers.OrderHistoryHandler(application.Logger, auditService))

		// отмена продажи: политика по ролям проверяется в обработчике
		r.With(jwtmiddleware.RequireRoles(models.RoleAdmin, models.RoleManager)).
			Delete("/api/orders/{id}", handlers.DeleteOrderHandler(application.Logger, orderService))

		// отчёты
		r.Get("/api/reports/bordero", handlers.BorderoHandler(application.Logger, reportService, prices))
		r.Get("/api/reports/by-state", handlers.ByStateHandler(application.Logger, reportService))

		// администрирование учётных записей
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(jwtmiddleware.RequireRoles(models.RoleAdmin))
			r.Post("/users", handlers.ProvisionUserHandler(application.Logger, userService))
			r.Delete("/users/{id}", handlers.DeactivateUserHandler(application.Logger, userService))
		})
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}
