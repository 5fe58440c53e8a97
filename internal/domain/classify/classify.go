package classify

import "strings"

// PaymentBucket — нормализованная категория формы оплаты для бордеро.
type PaymentBucket string

const (
	PaymentCash PaymentBucket = "cash"
	PaymentPix  PaymentBucket = "pix"
	PaymentCard PaymentBucket = "card"
)

// FreeReasonBucket — категория мотива бесплатного билета.
type FreeReasonBucket string

const (
	FreeDay           FreeReasonBucket = "DAY_FREE"
	FreeAccessibility FreeReasonBucket = "ACCESSIBILITY_FREE"
	FreeOther         FreeReasonBucket = "OTHER_FREE"
)

// Таблицы точных соответствий. Сравнение всегда по trim + lower.
var cashMethods = map[string]struct{}{
	"cash":     {},
	"dinheiro": {},
	"especie":  {},
}

var dayFreeReasons = map[string]struct{}{
	"day_free":     {},
	"free_day":     {},
	"dia_gratuito": {},
}

var accessibilityReasons = map[string]struct{}{
	"accessibility":  {},
	"acessibilidade": {},
	"pcd":            {},
}

// ForPayment приводит свободный текст формы оплаты к одной из трёх категорий.
// Функция тотальна: любая нераспознанная строка уходит в card, чтобы выручка
// никогда не выпадала из бордеро из-за кривого ввода. Сознательное решение,
// а не баг: см. /reports в старой кассе.
func ForPayment(raw string) PaymentBucket {
	norm := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := cashMethods[norm]; ok {
		return PaymentCash
	}
	if norm == "pix" {
		return PaymentPix
	}
	return PaymentCard
}

// ForFreeReason приводит мотив гратуидада к одной из трёх категорий.
// Тотальна: пустая строка и всё нераспознанное уходит в OTHER_FREE.
func ForFreeReason(raw string) FreeReasonBucket {
	norm := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := dayFreeReasons[norm]; ok {
		return FreeDay
	}
	if _, ok := accessibilityReasons[norm]; ok {
		return FreeAccessibility
	}
	return FreeOther
}
