package inventory

import (
	"context"

	"gorm.io/gorm"

	"cyclecount-service/internal/cyclecount"
	"cyclecount-service/internal/model"
)

// Store reads inventory levels for count scheduling and detail views.
// Adjustment writes go through the cycle count repository so they share the
// approval transaction.
type Store struct {
	db *gorm.DB
}

// NewStore creates an inventory store bound to the given database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ cyclecount.InventoryReader = (*Store)(nil)

// LevelsForLocation returns the levels for one location, or every location
// when locationID is nil, with products loaded.
func (s *Store) LevelsForLocation(ctx context.Context, locationID *uint) ([]model.InventoryLevel, error) {
	query := s.db.WithContext(ctx).Preload("Product")
	if locationID != nil {
		query = query.Where("location_id = ?", *locationID)
	}

	var levels []model.InventoryLevel
	if err := query.Find(&levels).Error; err != nil {
		return nil, err
	}
	return levels, nil
}
