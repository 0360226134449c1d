package dto

import (
	"time"

	"github.com/google/uuid"
)

// Provider mutation intents.
const (
	IntentRegisterEmdr   = "register-emdr"
	IntentDeregisterEmdr = "deregister-emdr"
	IntentElectronicOnly = "electronic-only"
)

type ProviderMutationRequest struct {
	Intent     string `json:"intent" form:"intent"`
	ProviderID string `json:"provider_id" form:"provider_id"`

	// create / update
	NPI             string `json:"npi" form:"npi"`
	Name            string `json:"name" form:"name"`
	ProviderGroupID string `json:"provider_group_id" form:"provider_group_id"`
	AddressLine1    string `json:"address_line1" form:"address_line1"`
	AddressLine2    string `json:"address_line2" form:"address_line2"`
	City            string `json:"city" form:"city"`
	State           string `json:"state" form:"state"`
	Zip             string `json:"zip" form:"zip"`
	Active          *bool  `json:"active" form:"active"`
}

type ProviderResponse struct {
	ID              uuid.UUID  `json:"id"`
	CustomerID      uuid.UUID  `json:"customer_id"`
	ProviderGroupID *uuid.UUID `json:"provider_group_id,omitempty"`
	NPI             string     `json:"npi"`
	Name            string     `json:"name"`
	Active          bool       `json:"active"`

	Registration *RegistrationStatusResponse `json:"registration,omitempty"`
}

type RegistrationStatusResponse struct {
	RegStatus      string    `json:"reg_status"`
	Stage          string    `json:"stage"`
	TransactionID  string    `json:"transaction_id"`
	EmdrRegistered bool      `json:"emdr_registered"`
	ElectronicOnly bool      `json:"electronic_only"`
	Errors         string    `json:"errors,omitempty"`
	FetchedAt      time.Time `json:"fetched_at"`
}

type CustomerMutationRequest struct {
	Intent       string `json:"intent" form:"intent"`
	CustomerID   string `json:"customer_id" form:"customer_id"`
	Name         string `json:"name" form:"name"`
	ContactName  string `json:"contact_name" form:"contact_name"`
	ContactEmail string `json:"contact_email" form:"contact_email"`
	Active       *bool  `json:"active" form:"active"`
}

type GroupMutationRequest struct {
	Intent  string `json:"intent" form:"intent"`
	GroupID string `json:"group_id" form:"group_id"`
	Name    string `json:"name" form:"name"`
}

type SyncResponse struct {
	Fetched  int `json:"fetched"`
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
	Statuses int `json:"statuses"`
}
