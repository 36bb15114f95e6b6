package domain

type Profile struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	Role         Role    `json:"role"`
	DisplayName  string  `json:"display_name"`
	Email        string  `json:"email,omitempty"`
	Phone        string  `json:"phone,omitempty"`
	AvatarURL    string  `json:"avatar_url,omitempty"`
	SchoolID     *string `json:"school_id,omitempty"`
	Sport        string  `json:"sport,omitempty"`
	Position     string  `json:"position,omitempty"`
	Organization string  `json:"organization,omitempty"`

	// Minimal marks a degraded view built from the user row alone because the
	// role profile could not be resolved or repaired.
	Minimal bool `json:"minimal,omitempty"`
}

// MinimalProfile builds the fallback view served when a non-student profile
// cannot be repaired.
func MinimalProfile(u *User) *Profile {
	return &Profile{
		UserID:      u.ID,
		Role:        u.Role,
		DisplayName: u.Name,
		Email:       u.Email,
		SchoolID:    u.SchoolID,
		Minimal:     true,
	}
}
