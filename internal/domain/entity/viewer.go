package entity

// Viewer is the authenticated party a chat view acts as.
type Viewer struct {
	UserID      string `json:"user_id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Label is the name denormalized into sent messages.
func (v Viewer) Label() string {
	if v.DisplayName != "" {
		return v.DisplayName
	}
	switch v.Role {
	case RoleAdmin:
		return "TidyHome"
	default:
		return "Customer"
	}
}
