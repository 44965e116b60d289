package domain

import "time"

// Comment is an append-only message in a ticket thread. Author holds the
// poster's username at the time of posting, not a reference to the user.
type Comment struct {
	ID        string
	TicketID  string
	Author    string
	Text      string
	CreatedAt time.Time
}
