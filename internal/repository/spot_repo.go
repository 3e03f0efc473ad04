package repository

import (
	"context"

	"github.com/parkwise/reservation-service/internal/models"
	"gorm.io/gorm"
)

type SpotRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Spot, error)
	UpdateStatus(ctx context.Context, id uint, status models.SpotStatus) error
	Upsert(ctx context.Context, spot *models.Spot) error
}

type spotRepository struct {
	db *gorm.DB
}

func NewSpotRepository(db *gorm.DB) SpotRepository {
	return &spotRepository{db: db}
}

func (r *spotRepository) FindByID(ctx context.Context, id uint) (*models.Spot, error) {
	var spot models.Spot
	if err := r.db.WithContext(ctx).First(&spot, id).Error; err != nil {
		return nil, err
	}
	return &spot, nil
}

func (r *spotRepository) UpdateStatus(ctx context.Context, id uint, status models.SpotStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Spot{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *spotRepository) Upsert(ctx context.Context, spot *models.Spot) error {
	return r.db.WithContext(ctx).Save(spot).Error
}
