package model

import "time"

// Roles carried in the JWT role claim.
const (
	RoleUser    = "User"
	RolePremium = "Premium"
)

// User represents a user in the database.
type User struct {
	ID               int64
	Email            string
	Login            string
	PasswordHash     string
	IsPremium        bool
	PremiumCreatedAt *time.Time
	PremiumExpiresAt *time.Time
	IsEmailConfirmed bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PremiumActive reports whether the premium window covers now.
func (u *User) PremiumActive(now time.Time) bool {
	if !u.IsPremium || u.PremiumCreatedAt == nil || u.PremiumExpiresAt == nil {
		return false
	}
	return !now.Before(*u.PremiumCreatedAt) && !now.After(*u.PremiumExpiresAt)
}

// Role returns the role claim for the user at the given time.
func (u *User) Role(now time.Time) string {
	if u.PremiumActive(now) {
		return RolePremium
	}
	return RoleUser
}

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Email    string `json:"email"`
	Login    string `json:"login"`
	Password string `json:"password"`
}

// LoginRequest accepts either the login or the email in LoginOrEmail.
type LoginRequest struct {
	LoginOrEmail string `json:"loginOrEmail"`
	Password     string `json:"password"`
}

// ClientInfo describes the client a session is created for.
type ClientInfo struct {
	UserAgent string
	IP        string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Login     string
}

// Principal is the authenticated identity behind a valid token.
type Principal struct {
	UserID    int64
	SessionID string
	Login     string
	Email     string
	Role      string
}

// MessageResponse is the body of most JSON responses.
type MessageResponse struct {
	Message string `json:"message"`
}

// AuthResponse is returned by login and validate.
type AuthResponse struct {
	Message  string `json:"message"`
	Username string `json:"username,omitempty"`
}

// UserResponse represents user data safe for API responses (no sensitive fields).
type UserResponse struct {
	ID               int64      `json:"id"`
	Email            string     `json:"email"`
	Login            string     `json:"login"`
	IsPremium        bool       `json:"isPremium"`
	PremiumExpiresAt *time.Time `json:"premiumExpiresAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}
