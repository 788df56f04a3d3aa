package models

// User is the authenticated account profile as reported by the backend. It is
// never persisted locally; the client re-derives it from the stored token on
// every start.
type User struct {
	// ID is the backend's user row id.
	ID int64 `json:"id"`

	// Email is the primary account email.
	Email string `json:"email"`

	// Name is the display name.
	Name string `json:"name"`

	// GoogleEmail is the linked Google account, if any.
	GoogleEmail string `json:"google_email,omitempty"`

	// HubSpotName is the linked HubSpot portal name, if any.
	HubSpotName string `json:"hubspot_name,omitempty"`

	// HasGoogle indicates a linked Google integration.
	HasGoogle bool `json:"has_google"`

	// HasHubSpot indicates a linked HubSpot integration.
	HasHubSpot bool `json:"has_hubspot"`
}

// Linked reports whether the given provider is connected for this user.
func (u *User) Linked(provider Provider) bool {
	if u == nil {
		return false
	}
	switch provider {
	case ProviderGmail:
		return u.HasGoogle
	case ProviderHubSpot:
		return u.HasHubSpot
	default:
		return false
	}
}

// DisplayName returns the name, falling back to the email address.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Validate checks if the profile is well formed.
func (u *User) Validate() error {
	validation := &ValidationErrors{}
	if u.ID == 0 {
		validation.AddMessage("id", "id is required")
	}
	if u.Email == "" {
		validation.AddMessage("email", "email is required")
	}
	return validation.Err()
}
