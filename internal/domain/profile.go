package domain

// ProviderProfile is the canonical view of one provider callback. It is never
// persisted as-is.
type ProviderProfile struct {
	Kind        ProviderKind `json:"kind" validate:"required"`
	SubjectID   string       `json:"subject_id" validate:"required"`
	Email       string       `json:"email,omitempty" validate:"omitempty,email"`
	DisplayName string       `json:"display_name,omitempty"`
	Picture     string       `json:"picture,omitempty"`
	Location    string       `json:"location,omitempty"`
	Website     string       `json:"website,omitempty"`
	Gender      string       `json:"gender,omitempty"`
}

// Attributes returns the profile attributes in local Profile form.
func (p ProviderProfile) Attributes() Profile {
	return Profile{
		Name:     p.DisplayName,
		Picture:  p.Picture,
		Location: p.Location,
		Website:  p.Website,
		Gender:   p.Gender,
	}
}

// SessionContext describes the caller of a callback. CallerIdentityID is empty
// for anonymous callers.
type SessionContext struct {
	CallerIdentityID string
}

// Anonymous reports whether the caller has no authenticated session.
func (s SessionContext) Anonymous() bool {
	return s.CallerIdentityID == ""
}
