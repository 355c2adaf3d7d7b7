package model

import (
	"time"
)

// InventoryLevel holds the on-hand quantity for one product at one
// location/sublocation. Cycle count items snapshot ExpectedQty from these
// rows at schedule time.
type InventoryLevel struct {
	ID            uint      `json:"id" gorm:"primarykey"`
	ProductID     uint      `json:"product_id" gorm:"uniqueIndex:idx_level_scope;not null"`
	LocationID    uint      `json:"location_id" gorm:"uniqueIndex:idx_level_scope;not null"`
	SublocationID *uint     `json:"sublocation_id,omitempty" gorm:"uniqueIndex:idx_level_scope"`
	OnHand        int       `json:"on_hand" gorm:"default:0"`
	Reserved      int       `json:"reserved" gorm:"default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Product Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

// InventoryAdjustment is the audit trail for every stock movement issued by
// an approved cycle count.
type InventoryAdjustment struct {
	ID            uint      `json:"id" gorm:"primarykey"`
	ProductID     uint      `json:"product_id" gorm:"index;not null"`
	LocationID    uint      `json:"location_id" gorm:"index;not null"`
	SublocationID *uint     `json:"sublocation_id,omitempty"`
	Delta         int       `json:"delta" gorm:"not null"`
	Reason        string    `json:"reason" gorm:"type:varchar(255);not null"`
	CycleCountID  *uint     `json:"cycle_count_id,omitempty" gorm:"index"`
	AdjustedBy    uint      `json:"adjusted_by" gorm:"not null"`
	CreatedAt     time.Time `json:"created_at"`
}
