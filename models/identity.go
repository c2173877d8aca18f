package models

type Role string

const (
	RoleUser       Role = "User"
	RoleDoctor     Role = "Doctor"
	RolePharmacist Role = "Pharmacist"
	RoleAdmin      Role = "Admin"
)

// NormalizeRole maps unknown or empty roles to User.
func NormalizeRole(role string) Role {
	switch Role(role) {
	case RoleDoctor, RolePharmacist, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}

// Identity is the caller attached to a chat message by the auth middleware.
type Identity struct {
	UserID string `json:"id,omitempty"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	Role   Role   `json:"role,omitempty"`
}

// IsAuthenticated reports whether the identity carries a user id or email.
func (i *Identity) IsAuthenticated() bool {
	return i != nil && (i.UserID != "" || i.Email != "")
}

// SessionKey identifies the chat session owned by this caller.
func (i *Identity) SessionKey() string {
	if i.UserID != "" {
		return "user:" + i.UserID
	}
	return "email:" + i.Email
}

// Owns reports whether the record owner fields point at this identity.
// Empty owner fields never conflict.
func (i *Identity) Owns(userID, userEmail string) bool {
	if !i.IsAuthenticated() {
		return false
	}
	if i.UserID != "" && userID != "" && userID != i.UserID {
		return false
	}
	if i.Email != "" && userEmail != "" && userEmail != i.Email {
		return false
	}
	return true
}
