package models

import "time"

// Действия в журнале аудита
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// OrderEvent представляет запись append-only журнала аудита.
// События никогда не обновляются и не удаляются.
type OrderEvent struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	Action    string    `json:"action"` // created, updated, deleted
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Reason    *string   `json:"reason,omitempty"`
	IPAddress *string   `json:"ip_address,omitempty"`
}
