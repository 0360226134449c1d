package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Provider is a healthcare provider keyed by its 10-digit NPI.
// PCGProviderID and the snapshot blobs link the row to the external
// claims/eMDR registration service.
type Provider struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"customer_id"`
	ProviderGroupID *uuid.UUID `gorm:"type:uuid;index" json:"provider_group_id"`
	NPI             string     `gorm:"size:10;not null;uniqueIndex" json:"npi"`
	Name            string     `gorm:"size:255;not null" json:"name"`

	AddressLine1 string `gorm:"size:255" json:"address_line1"`
	AddressLine2 string `gorm:"size:255" json:"address_line2"`
	City         string `gorm:"size:100" json:"city"`
	State        string `gorm:"size:2" json:"state"`
	Zip          string `gorm:"size:10" json:"zip"`

	PCGProviderID      string         `gorm:"size:64;index" json:"pcg_provider_id"`
	LastSnapshot       datatypes.JSON `gorm:"type:jsonb" json:"-"`
	LastUpdateResponse datatypes.JSON `gorm:"type:jsonb" json:"-"`

	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Customer Customer      `gorm:"foreignKey:CustomerID" json:"-"`
	Group    *ProviderGroup `gorm:"foreignKey:ProviderGroupID" json:"-"`
}

// ProviderRegistrationStatus mirrors the external service's registration
// state for one provider. The sync path overwrites it wholesale; the rest
// of the app only reads it.
type ProviderRegistrationStatus struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProviderID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"provider_id"`
	RegStatus      string    `gorm:"size:50" json:"reg_status"`
	Stage          string    `gorm:"size:50" json:"stage"`
	TransactionID  string    `gorm:"size:64" json:"transaction_id"`
	EmdrRegistered bool      `gorm:"default:false" json:"emdr_registered"`
	ElectronicOnly bool      `gorm:"default:false" json:"electronic_only"`
	Errors         string    `gorm:"type:text" json:"errors"`
	FetchedAt      time.Time `json:"fetched_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
