package board

import (
	"context"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
)

// UserLookup fetches public account fields.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*dto.PublicUser, error)
}

// ResolveNames looks up the username of every distinct assignee. Lookups
// that fail are left out of the result.
func ResolveNames(ctx context.Context, users UserLookup, tickets []domain.Ticket) map[string]string {
	names := map[string]string{}
	seen := map[string]bool{}
	for _, t := range tickets {
		if t.AssignedTo == nil || seen[*t.AssignedTo] {
			continue
		}
		id := *t.AssignedTo
		seen[id] = true
		u, err := users.GetUser(ctx, id)
		if err != nil || u == nil || u.ID == "" {
			continue
		}
		names[u.ID] = u.Username
	}
	return names
}

// AssigneeName renders an assignee. Unassigned tickets render as "" and ids
// missing from names, such as deleted users, as domain.UnknownUserName.
func AssigneeName(names map[string]string, assignedTo *string) string {
	if assignedTo == nil || *assignedTo == "" {
		return ""
	}
	if name, ok := names[*assignedTo]; ok {
		return name
	}
	return domain.UnknownUserName
}
