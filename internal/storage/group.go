package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmattos/bilheteria/internal/domain/models"
)

var ErrGroupNotFound = errors.New("group visit not found")

// GroupStorage описывает методы для работы с метаданными групповых визитов.
type GroupStorage interface {
	// CreateGroupVisitTx вставляет запись группы в транзакции создания заказа.
	CreateGroupVisitTx(ctx context.Context, tx *sql.Tx, group *models.GroupVisit) (int64, error)
	GetGroupByOrderID(ctx context.Context, orderID int64) (*models.GroupVisit, error)
}

type groupRepository struct {
	db *sql.DB
}

func NewGroupRepository(db *sql.DB) GroupStorage {
	return &groupRepository{db: db}
}

func (r *groupRepository) CreateGroupVisitTx(ctx context.Context, tx *sql.Tx, group *models.GroupVisit) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO group_visits (order_id, visit_type, has_letter, institution_name, responsible_name,
		                           total_students, total_teachers, state, city, scheduled_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		group.OrderID, group.VisitType, group.HasLetter, group.InstitutionName, group.ResponsibleName,
		group.TotalStudents, group.TotalTeachers, group.State, group.City, group.ScheduledDate,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create group visit: %w", err)
	}
	return id, nil
}

func (r *groupRepository) GetGroupByOrderID(ctx context.Context, orderID int64) (*models.GroupVisit, error) {
	group := &models.GroupVisit{}
	row := r.db.QueryRowContext(ctx,
		`SELECT id, order_id, visit_type, has_letter, institution_name, responsible_name,
		        total_students, total_teachers, state, city, scheduled_date
		 FROM group_visits WHERE order_id = $1`, orderID)
	err := row.Scan(&group.ID, &group.OrderID, &group.VisitType, &group.HasLetter, &group.InstitutionName,
		&group.ResponsibleName, &group.TotalStudents, &group.TotalTeachers, &group.State, &group.City, &group.ScheduledDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return group, nil
}
