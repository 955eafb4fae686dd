package models

// Identity is the opaque user reference issued by the identity provider.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// IsZero reports whether no user is set.
func (i Identity) IsZero() bool {
	return i.UserID == ""
}
