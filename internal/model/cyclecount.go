package model

import (
	"time"
)

// CountType determines how a cycle count is scoped.
type CountType string

const (
	CountTypeCycle CountType = "cycle"
	CountTypeFull  CountType = "full"
	CountTypeSpot  CountType = "spot"
)

// CountStatus is the lifecycle state of a cycle count.
type CountStatus string

const (
	StatusPending         CountStatus = "pending"
	StatusInProgress      CountStatus = "in_progress"
	StatusPendingApproval CountStatus = "pending_approval"
	StatusCompleted       CountStatus = "completed"
	StatusCancelled       CountStatus = "cancelled"
)

// CycleCount represents one counting exercise against a location (or the
// whole warehouse for full counts).
type CycleCount struct {
	ID            uint        `json:"id" gorm:"primarykey"`
	CountNumber   string      `json:"count_number" gorm:"type:varchar(32);unique;not null"`
	CountType     CountType   `json:"count_type" gorm:"type:varchar(16);not null"`
	LocationID    *uint       `json:"location_id" gorm:"index"`
	Status        CountStatus `json:"status" gorm:"type:varchar(24);not null;default:'pending';index"`
	ScheduledDate *time.Time  `json:"scheduled_date,omitempty"`
	AssignedTo    *uint       `json:"assigned_to,omitempty"`
	BlindCount    bool        `json:"blind_count" gorm:"default:false"`
	Notes         string      `json:"notes" gorm:"type:text"`
	StartedAt     *time.Time  `json:"started_at,omitempty"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
	ApprovedAt    *time.Time  `json:"approved_at,omitempty"`
	ApprovedBy    *uint       `json:"approved_by,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`

	Items []CycleCountItem `json:"items,omitempty" gorm:"foreignKey:CycleCountID;constraint:OnDelete:CASCADE"`
}

// Terminal reports whether the count has reached a final state. Item writes
// are refused once a count is terminal.
func (c *CycleCount) Terminal() bool {
	return c.Status == StatusCompleted || c.Status == StatusCancelled
}

// CycleCountItem is one product line within a count. ExpectedQty is a
// point-in-time snapshot taken when the count is scheduled and is never
// re-synced afterwards.
type CycleCountItem struct {
	ID            uint       `json:"id" gorm:"primarykey"`
	CycleCountID  uint       `json:"cycle_count_id" gorm:"index;not null"`
	ProductID     uint       `json:"product_id" gorm:"index;not null"`
	LocationID    uint       `json:"location_id" gorm:"not null"`
	SublocationID *uint      `json:"sublocation_id,omitempty"`
	ExpectedQty   int        `json:"expected_qty" gorm:"not null"`
	CountedQty    *int       `json:"counted_qty,omitempty"`
	Notes         string     `json:"notes" gorm:"type:text"`
	CountedBy     *uint      `json:"counted_by,omitempty"`
	CountedAt     *time.Time `json:"counted_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Product Product `json:"product" gorm:"foreignKey:ProductID"`
}

// Variance returns counted minus expected. It is always derived from the two
// quantities, never stored, so it cannot go stale after an edit. The second
// return value is false until the item has been counted.
func (i *CycleCountItem) Variance() (int, bool) {
	if i.CountedQty == nil {
		return 0, false
	}
	return *i.CountedQty - i.ExpectedQty, true
}

// Counted reports whether a quantity has been recorded for the item.
func (i *CycleCountItem) Counted() bool {
	return i.CountedQty != nil
}
