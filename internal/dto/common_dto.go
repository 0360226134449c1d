package dto

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// FieldErrors carries per-field validation failures back to the form.
type FieldErrors map[string]string

type ValidationResponse struct {
	Error  bool        `json:"error"`
	Fields FieldErrors `json:"fields"`
}

// Toast is the transient notification shown after a redirect.
type Toast struct {
	Type        string `json:"type"` // success | error | message
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// MutationResponse is the redirect-with-toast pattern: every successful
// mutation tells the client where to go and what to show.
type MutationResponse struct {
	Toast    Toast  `json:"toast"`
	Redirect string `json:"redirect"`
}

func SuccessToast(title, description, redirect string) MutationResponse {
	return MutationResponse{
		Toast:    Toast{Type: "success", Title: title, Description: description},
		Redirect: redirect,
	}
}

// AvailabilityResponse is the live-check micro-response for email and
// username fields.
type AvailabilityResponse struct {
	Exists bool `json:"exists"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
}
