package service

import (
	"strings"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const (
	msgEditForbidden   = `only tickets with status "created" can be edited`
	msgNotOwner        = "only the ticket owner can edit this ticket"
	msgAssignForbidden = "only staff can assign tickets to staff members"
	msgDeleteForbidden = "only staff can delete tickets"
)

// CanEdit reports whether actor may mutate t at all. Staff always may;
// everybody else only while they own the ticket and it is still created.
func CanEdit(actor domain.Actor, t *domain.Ticket) bool {
	return authorizeUpdate(actor, t, TicketChanges{}) == nil
}

// authorizeUpdate runs every role gate before anything is written, so a
// rejected request never applies part of its changes.
func authorizeUpdate(actor domain.Actor, t *domain.Ticket, changes TicketChanges) error {
	if actor.IsStaff {
		return nil
	}
	if t.Status != domain.TicketStatusCreated {
		return apperrors.NewForbidden(msgEditForbidden)
	}
	if !actor.Owns(t) {
		return apperrors.NewForbidden(msgNotOwner)
	}
	if changes.AssignedTo != nil {
		return apperrors.NewForbidden(msgAssignForbidden)
	}
	return nil
}

// applyFieldChanges merges the text and enum fields into t. Empty or
// whitespace-only values leave the stored field untouched. It returns the
// names of the fields that changed.
func applyFieldChanges(t *domain.Ticket, changes TicketChanges) ([]string, error) {
	var changed []string
	set := func(name string, dst *string, val *string) {
		if v, ok := nonEmpty(val); ok && v != *dst {
			*dst = v
			changed = append(changed, name)
		}
	}
	set("title", &t.Title, changes.Title)
	set("description", &t.Description, changes.Description)
	set("type", &t.Type, changes.Type)

	if v, ok := nonEmpty(changes.Priority); ok {
		priority := domain.TicketPriority(v)
		if !priority.Valid() {
			return nil, invalidEnum("priority", v)
		}
		if priority != t.Priority {
			t.Priority = priority
			changed = append(changed, "priority")
		}
	}
	if v, ok := nonEmpty(changes.Status); ok {
		status := domain.TicketStatus(v)
		if !status.Valid() {
			return nil, invalidEnum("status", v)
		}
		if status != t.Status {
			t.Status = status
			changed = append(changed, "status")
		}
	}
	return changed, nil
}

// MergeImages applies index removals to current, closing gaps, then appends
// added until the ticket holds MaxTicketImages. It returns the new list and
// the references that were removed.
func MergeImages(current []string, removeIdx []int, added []string) (result, removed []string) {
	kept, removed, accept := planImages(current, removeIdx, len(added))
	return append(kept, added[:accept]...), removed
}

// planImages does the removal half of MergeImages and reports how many of
// addCount new images still fit. Out-of-range and repeated indexes are ignored.
func planImages(current []string, removeIdx []int, addCount int) (kept, removed []string, accept int) {
	drop := make(map[int]bool, len(removeIdx))
	for _, idx := range removeIdx {
		if idx >= 0 && idx < len(current) {
			drop[idx] = true
		}
	}
	kept = make([]string, 0, domain.MaxTicketImages)
	for i, ref := range current {
		if drop[i] {
			removed = append(removed, ref)
			continue
		}
		kept = append(kept, ref)
	}
	accept = domain.MaxTicketImages - len(kept)
	if accept > addCount {
		accept = addCount
	}
	if accept < 0 {
		accept = 0
	}
	return kept, removed, accept
}

func nonEmpty(val *string) (string, bool) {
	if val == nil {
		return "", false
	}
	v := strings.TrimSpace(*val)
	return v, v != ""
}

func invalidEnum(field, value string) error {
	return apperrors.NewValidationError("invalid "+field, map[string]any{field: value})
}
