package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ABCClass tiers products by value for count scoping (A = high value).
type ABCClass string

const (
	ABCClassA ABCClass = "A"
	ABCClassB ABCClass = "B"
	ABCClassC ABCClass = "C"
)

// Product represents the product master data
type Product struct {
	ID          uint            `json:"id" gorm:"primarykey"`
	Name        string          `json:"name" gorm:"type:varchar(255);not null"`
	Description string          `json:"description" gorm:"type:text"`
	SKU         string          `json:"sku" gorm:"type:varchar(100);unique;not null"`
	Barcode     string          `json:"barcode" gorm:"type:varchar(100);index"`
	UnitCost    decimal.Decimal `json:"unit_cost" gorm:"type:numeric(12,2);not null"`
	ABCClass    ABCClass        `json:"abc_class" gorm:"type:varchar(1);default:'C'"`
	IsActive    bool            `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `json:"deleted_at,omitempty" gorm:"index"`
}
