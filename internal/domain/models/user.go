package models

import "time"

// Роли пользователей
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleClerk   = "clerk"
)

// User представляет оператора кассы или администратора.
// Пользователи никогда не удаляются физически — только деактивация через IsActive.
type User struct {
	ID        int64
	Username  string
	PassHash  []byte
	Role      string // admin, manager или clerk
	IsActive  bool
	CreatedAt time.Time
}
