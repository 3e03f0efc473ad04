package repository

import (
	"context"

	"github.com/parkwise/reservation-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HistoryRepository archives terminated reservations to Postgres. The
// in-memory store stays authoritative for reads; this is a durable
// write-through log for reporting and audit.
type HistoryRepository interface {
	Archive(ctx context.Context, res *models.Reservation) error
	FindByUser(ctx context.Context, userID string) ([]models.Reservation, error)
}

type historyRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Archive(ctx context.Context, res *models.Reservation) error {
	// Upsert on id: duplicate archive attempts are idempotent.
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(res).Error
}

func (r *historyRepository) FindByUser(ctx context.Context, userID string) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("reservation_start DESC").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}
