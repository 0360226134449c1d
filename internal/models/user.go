package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an administrative or basic portal account. Role is replaced
// wholesale on update; email and username are stored lowercased and are
// globally unique.
type User struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"customer_id"`
	ProviderGroupID *uuid.UUID `gorm:"type:uuid;index" json:"provider_group_id"`
	Name            string     `gorm:"size:255;not null" json:"name"`
	Email           string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Username        string     `gorm:"size:32;not null;uniqueIndex" json:"username"`
	Role            string     `gorm:"size:32;not null" json:"role"`
	PasswordHash    string     `gorm:"not null" json:"-"`

	Active             bool `gorm:"default:true" json:"active"`
	MustChangePassword bool `gorm:"default:false" json:"must_change_password"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Customer Customer       `gorm:"foreignKey:CustomerID" json:"-"`
	Group    *ProviderGroup `gorm:"foreignKey:ProviderGroupID" json:"-"`
}

// Session is a server-side login session. The raw token never touches the
// database; only its SHA-256 hash is stored. Deleting a user's sessions
// forces re-authentication on the next request.
type Session struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	TokenHash string    `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
}

// UserNPI assigns one provider to one user. A user with a provider group
// may only hold providers of that group; a user without a group only
// ungrouped providers. Assignment is always a full-set replace.
type UserNPI struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_user_npis_user_provider" json:"user_id"`
	ProviderID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_user_npis_user_provider" json:"provider_id"`
	CreatedAt  time.Time `json:"created_at"`
	User       User      `gorm:"foreignKey:UserID" json:"-"`
	Provider   Provider  `gorm:"foreignKey:ProviderID" json:"-"`
}
