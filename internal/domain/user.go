package domain

import "time"

// User is a registered account. Staff users triage and assign tickets.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsStaff      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role returns the display role derived from the staff flag.
func (u *User) Role() string {
	if u.IsStaff {
		return RoleStaff
	}
	return RoleCustomer
}

const (
	RoleStaff    = "staff"
	RoleCustomer = "customer"
)

// UnknownUserName is rendered in place of a user that no longer exists.
const UnknownUserName = "Unknown user"
