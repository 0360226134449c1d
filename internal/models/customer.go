package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer is the tenant root. Every provider group, provider and user
// hangs off exactly one customer.
type Customer struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	ContactName  string    `gorm:"size:255" json:"contact_name"`
	ContactEmail string    `gorm:"size:255" json:"contact_email"`
	Active       bool      `gorm:"default:true" json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ProviderGroup struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_groups_customer_name" json:"customer_id"`
	Name       string    `gorm:"size:255;not null;uniqueIndex:idx_groups_customer_name" json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Customer   Customer  `gorm:"foreignKey:CustomerID" json:"-"`
}
