package domain

// Actor is the caller of a core operation, resolved from a bearer credential.
// The zero value is an anonymous, non-staff caller.
type Actor struct {
	UserID   string
	Username string
	Email    string
	IsStaff  bool
}

// Authenticated reports whether the actor carries an identity.
func (a Actor) Authenticated() bool {
	return a.UserID != ""
}

// Owns reports whether the actor is the owner of t.
func (a Actor) Owns(t *Ticket) bool {
	return a.Authenticated() && t != nil && t.OwnerID == a.UserID
}
