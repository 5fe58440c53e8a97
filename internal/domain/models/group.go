package models

import "time"

// Типы групповых визитов
const (
	VisitScheduled = "scheduled"
	VisitWalkIn    = "walk-in"
)

// GroupVisit — метаданные группового визита, расширение заказа один-к-одному.
// Жизненный цикл привязан к заказу: удаляется каскадом soft delete заказа.
type GroupVisit struct {
	ID              int64      `json:"id"`
	OrderID         int64      `json:"order_id"`
	VisitType       string     `json:"visit_type"` // scheduled или walk-in
	HasLetter       bool       `json:"has_letter"` // есть ли официальное письмо от учреждения
	InstitutionName string     `json:"institution_name"`
	ResponsibleName string     `json:"responsible_name"`
	TotalStudents   int        `json:"total_students"`
	TotalTeachers   int        `json:"total_teachers"`
	State           *string    `json:"state,omitempty"`
	City            *string    `json:"city,omitempty"`
	ScheduledDate   *time.Time `json:"scheduled_date,omitempty"`
}
