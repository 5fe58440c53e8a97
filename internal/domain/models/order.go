package models

import "time"

// Каналы продажи
const (
	ChannelCounter = "counter"
	ChannelGroup   = "group"
	ChannelOnline  = "online"
)

// Типы билетов
const (
	TicketFull = "full"
	TicketHalf = "half"
	TicketFree = "free"
)

// Order представляет одну продажу: шапка заказа с одной или несколькими позициями.
// DeletedAt != nil означает логическое удаление: заказ исключается из всех агрегаций,
// но физически остаётся в базе ради аудита.
type Order struct {
	ID            int64      `json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	UserID        int64      `json:"user_id"`
	Channel       string     `json:"channel"`        // counter, group, online
	PaymentMethod string     `json:"payment_method"` // свободный текст, хранится как ввели
	State         *string    `json:"state,omitempty"`
	City          *string    `json:"city,omitempty"`
	Note          *string    `json:"note,omitempty"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// OrderItem — позиция заказа для одного типа билета.
// UnitPriceCents фиксируется тарифом на момент создания заказа и
// задним числом не меняется. Для free всегда 0.
type OrderItem struct {
	ID             int64   `json:"id"`
	OrderID        int64   `json:"order_id"`
	TicketType     string  `json:"ticket_type"` // full, half, free
	Qty            int     `json:"qty"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	DiscountReason *string `json:"discount_reason,omitempty"` // мотив скидки/гратуидада, свободный текст
}

// OrderSummary — строка административного списка заказов:
// агрегаты по позициям считаются на стороне БД.
type OrderSummary struct {
	ID            int64      `json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	UserID        int64      `json:"user_id"`
	Channel       string     `json:"channel"`
	PaymentMethod string     `json:"payment_method"`
	State         *string    `json:"state,omitempty"`
	FullQty       int        `json:"full_qty"`
	HalfQty       int        `json:"half_qty"`
	FreeQty       int        `json:"free_qty"`
	RevenueCents  int64      `json:"revenue_cents"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}
