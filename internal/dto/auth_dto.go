package dto

import "github.com/google/uuid"

type LoginRequest struct {
	Login    string `json:"login" form:"login"` // username or email
	Password string `json:"password" form:"password"`
}

type LoginResponse struct {
	Token              string       `json:"token"`
	MustChangePassword bool         `json:"must_change_password"`
	User               UserResponse `json:"user"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" form:"current_password"`
	NewPassword     string `json:"new_password" form:"new_password"`
}

type UserResponse struct {
	ID              uuid.UUID  `json:"id"`
	CustomerID      uuid.UUID  `json:"customer_id"`
	ProviderGroupID *uuid.UUID `json:"provider_group_id,omitempty"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Username        string     `json:"username"`
	Role            string     `json:"role"`
	Active          bool       `json:"active"`
}
