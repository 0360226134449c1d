package dto

// User mutation intents, dispatched from the intent form field.
const (
	IntentCreate            = "create"
	IntentUpdate            = "update"
	IntentDelete            = "delete"
	IntentResetPassword     = "reset-password"
	IntentAssignNPIs        = "assign-npis"
	IntentSetActive         = "set-active"
	IntentCheckAvailability = "check-availability"
)

// UserMutationRequest is the union of all user-route form submissions.
// Which fields matter depends on Intent.
type UserMutationRequest struct {
	Intent string `json:"intent" form:"intent"`
	UserID string `json:"user_id" form:"user_id"`

	// create, system-admin callers only; everyone else is pinned to
	// their own customer
	CustomerID string `json:"customer_id" form:"customer_id"`

	// create / update
	Name            string `json:"name" form:"name"`
	Email           string `json:"email" form:"email"`
	Username        string `json:"username" form:"username"`
	Role            string `json:"role" form:"role"`
	ProviderGroupID string `json:"provider_group_id" form:"provider_group_id"`
	Active          *bool  `json:"active" form:"active"`

	// delete (system route requires the literal username)
	ConfirmUsername string `json:"confirm_username" form:"confirm_username"`

	// reset-password
	Mode        string `json:"mode" form:"mode"` // auto | manual
	NewPassword string `json:"new_password" form:"new_password"`

	// assign-npis: full replacement set of provider ids
	ProviderIDs []string `json:"provider_ids" form:"provider_ids"`

	// check-availability
	Field string `json:"field" form:"field"` // email | username
	Value string `json:"value" form:"value"`
}
