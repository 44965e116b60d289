package dto

import "github.com/spec-kit/helpdesk/internal/domain"

// RegisterRequest payload for POST /users.
type RegisterRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	IsStaff  bool   `json:"isStaff" form:"isStaff"`
}

// LoginRequest payload for POST /users/login.
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// AuthUser is the account echoed back with a fresh token.
type AuthUser struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsStaff  bool   `json:"isStaff"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token string   `json:"token"`
	User  AuthUser `json:"user"`
}

// PublicUser is what other callers may see of an account.
type PublicUser struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	IsStaff  bool   `json:"isStaff"`
}

// NewAuthResponse builds the register/login body.
func NewAuthResponse(token string, u *domain.User) AuthResponse {
	return AuthResponse{
		Token: token,
		User: AuthUser{
			ID:       u.ID,
			Username: u.Username,
			Email:    u.Email,
			IsStaff:  u.IsStaff,
		},
	}
}

// NewPublicUser converts a domain user.
func NewPublicUser(u *domain.User) PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, Role: u.Role(), IsStaff: u.IsStaff}
}

// MessageResponse carries a plain confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}
