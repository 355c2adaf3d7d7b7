package model

import (
	"time"
)

// Location is a warehouse zone that a cycle count can be scoped to.
type Location struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null;unique"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sublocation is a bin or shelf within a location.
type Sublocation struct {
	ID         uint      `json:"id" gorm:"primarykey"`
	LocationID uint      `json:"location_id" gorm:"index;not null"`
	Name       string    `json:"name" gorm:"type:varchar(100);not null"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
