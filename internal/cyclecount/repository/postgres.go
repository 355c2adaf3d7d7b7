package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"cyclecount-service/internal/cyclecount"
	"cyclecount-service/internal/model"
)

// CountRepository is the gorm-backed implementation of cyclecount.Repository.
type CountRepository struct {
	db *gorm.DB
}

// NewCountRepository creates a repository bound to the given database.
func NewCountRepository(db *gorm.DB) *CountRepository {
	return &CountRepository{db: db}
}

var _ cyclecount.Repository = (*CountRepository)(nil)

func (r *CountRepository) CreateCount(ctx context.Context, count *model.CycleCount) error {
	err := r.db.WithContext(ctx).Create(count).Error
	// count_number is the only unique column on these tables, so a
	// duplicate-key error here means the per-day sequence raced.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", cyclecount.ErrDuplicateCountNumber, count.CountNumber)
	}
	return err
}

func (r *CountRepository) GetCount(ctx context.Context, id uint) (*model.CycleCount, error) {
	var count model.CycleCount
	err := r.db.WithContext(ctx).
		Preload("Items.Product").
		First(&count, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &count, nil
}

func (r *CountRepository) ListCounts(ctx context.Context, filter cyclecount.ListFilter) ([]model.CycleCount, error) {
	query := r.db.WithContext(ctx).Model(&model.CycleCount{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CountType != "" {
		query = query.Where("count_type = ?", filter.CountType)
	}
	if filter.LocationID != nil {
		query = query.Where("location_id = ?", *filter.LocationID)
	}

	var counts []model.CycleCount
	if err := query.Order("created_at DESC").Find(&counts).Error; err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *CountRepository) GetItem(ctx context.Context, id uint) (*model.CycleCountItem, error) {
	var item model.CycleCountItem
	err := r.db.WithContext(ctx).Preload("Product").First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *CountRepository) SaveCount(ctx context.Context, count *model.CycleCount) error {
	// Items are written through SaveItem and FinalizeRejection; saving them
	// here would re-persist quantities the caller may have only cleared in
	// memory.
	return r.db.WithContext(ctx).Omit("Items").Save(count).Error
}

func (r *CountRepository) SaveItem(ctx context.Context, item *model.CycleCountItem) error {
	return r.db.WithContext(ctx).Omit("Product").Save(item).Error
}

// FinalizeRejection wipes every recorded quantity and moves the count back to
// pending in one transaction. A failing status write rolls back the wipe, so
// a rejected count can never lose its counts while staying in
// pending_approval.
func (r *CountRepository) FinalizeRejection(ctx context.Context, count *model.CycleCount) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.CycleCountItem{}).
			Where("cycle_count_id = ?", count.ID).
			Updates(map[string]interface{}{
				"counted_qty": nil,
				"notes":       "",
				"counted_by":  nil,
				"counted_at":  nil,
			}).Error
		if err != nil {
			return err
		}
		return tx.Omit("Items").Save(count).Error
	})
}

// FinalizeApproval applies the approved adjustments and the completed status
// in one transaction. A failing inventory write rolls back everything, so a
// half-approved count cannot exist.
func (r *CountRepository) FinalizeApproval(ctx context.Context, count *model.CycleCount, adjustments []model.InventoryAdjustment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range adjustments {
			adj := &adjustments[i]

			level := tx.Model(&model.InventoryLevel{}).
				Where("product_id = ? AND location_id = ?", adj.ProductID, adj.LocationID)
			if adj.SublocationID != nil {
				level = level.Where("sublocation_id = ?", *adj.SublocationID)
			} else {
				level = level.Where("sublocation_id IS NULL")
			}

			result := level.Update("on_hand", gorm.Expr("on_hand + ?", adj.Delta))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("no inventory level for product %d at location %d", adj.ProductID, adj.LocationID)
			}

			if err := tx.Create(adj).Error; err != nil {
				return err
			}
		}

		return tx.Omit("Items").Save(count).Error
	})
}

func (r *CountRepository) CountsCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.CycleCount{}).
		Where("created_at >= ?", since).
		Count(&n).Error
	return n, err
}
