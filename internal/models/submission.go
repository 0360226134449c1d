package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Submission is a claims submission record. It is created by a separate
// ingest pipeline; this app only lists it for display.
type Submission struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"customer_id"`
	ProviderID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"provider_id"`
	Status      string         `gorm:"size:50;not null" json:"status"`
	Payload     datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	SubmittedAt time.Time      `gorm:"not null;index" json:"submitted_at"`
	CreatedAt   time.Time      `json:"created_at"`
	Provider    Provider       `gorm:"foreignKey:ProviderID" json:"-"`
}
