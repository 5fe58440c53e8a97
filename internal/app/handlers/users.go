package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmattos/bilheteria/internal/service"
)

// ProvisionUserRequest — входной JSON для POST /api/admin/users.
type ProvisionUserRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=admin manager clerk"`
}

// ProvisionUserResponse возвращает созданную учётную запись без хэша пароля.
type ProvisionUserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// ProvisionUserHandler обрабатывает запрос POST /api/admin/users.
// Самостоятельной регистрации нет: кассиров заводит администратор.
func ProvisionUserHandler(log *slog.Logger, userService service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ProvisionUserHandler"
		logger := log.With(slog.String("op", op))

		var req ProvisionUserRequest
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

		user, err := userService.Provision(r.Context(), req.Username, req.Password, req.Role)
		if err != nil {
			logger.Error("failed to provision user", slog.Any("error", err))
			writeServiceError(w, logger, err)
			return
		}

		resp := ProvisionUserResponse{ID: user.ID, Username: user.Username, Role: user.Role}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
		}
	}
}

// DeactivateUserHandler обрабатывает запрос DELETE /api/admin/users/{id}.
// Учётная запись деактивируется, а не стирается: её события аудита живут дальше.
func DeactivateUserHandler(log *slog.Logger, userService service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeactivateUserHandler"
		logger := log.With(slog.String("op", op))

		userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}

		if err := userService.Deactivate(r.Context(), userID); err != nil {
			logger.Error("failed to deactivate user", slog.Any("error", err))
			writeServiceError(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"message": "user deactivated"}); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
		}
	}
}
