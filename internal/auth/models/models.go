package models

// UserInfo represents authenticated user information from any provider
type UserInfo struct {
	ID       string                 `json:"id,omitempty" yaml:"id,omitempty"`
	Email    string                 `json:"email,omitempty" yaml:"email,omitempty"`
	Name     string                 `json:"name,omitempty" yaml:"name,omitempty"`
	Picture  string                 `json:"picture,omitempty" yaml:"picture,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// DisplayName returns the best human readable label for the user.
func (u *UserInfo) DisplayName() string {
	if u == nil {
		return ""
	}
	switch {
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	default:
		return u.ID
	}
}
