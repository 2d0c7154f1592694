// Package lifecycle holds the complaint state machine. It performs no I/O:
// services check an action here before calling the API and apply it here to
// build the optimistic copy shown until the next poll.
package lifecycle

import (
	"fmt"
	"time"

	"sk3-portal/internal/model"
)

var transitions = map[model.Status][]model.Status{
	model.StatusPending:  {model.StatusAssigned},
	model.StatusAssigned: {model.StatusResolved, model.StatusDismissed},
}

func CanTransition(from, to model.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Target is the status an action moves a complaint to. Actions that leave the
// status untouched report ok=false.
func Target(action model.Action) (model.Status, bool) {
	switch action {
	case model.ActionCreate:
		return model.StatusPending, true
	case model.ActionAssign:
		return model.StatusAssigned, true
	case model.ActionResolve:
		return model.StatusResolved, true
	case model.ActionDismiss:
		return model.StatusDismissed, true
	default:
		return "", false
	}
}

// Check reports whether action may be taken on c.
func Check(c model.Complaint, action model.Action) error {
	switch action {
	case model.ActionNotify, model.ActionArchive:
		return nil
	case model.ActionCreate:
		return fmt.Errorf("%w: complaint %d already exists", ErrInvalidTransition, c.ID)
	}

	target, ok := Target(action)
	if !ok {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	if !CanTransition(c.Status, target) {
		return fmt.Errorf("%w: %s -> %s for complaint %d", ErrInvalidTransition, c.Status, target, c.ID)
	}
	return nil
}

// Apply returns a copy of c advanced by action. The input is never modified.
func Apply(c model.Complaint, action model.Action, by model.PersonnelRef, detail string, at time.Time) (model.Complaint, error) {
	if err := Check(c, action); err != nil {
		return c, err
	}

	next := c
	stamp := at
	switch action {
	case model.ActionAssign:
		ref := by
		next.Status = model.StatusAssigned
		next.AssignedPersonnel = &ref
	case model.ActionResolve:
		ref := by
		next.Status = model.StatusResolved
		next.Resolution = detail
		next.ResolvedBy = &ref
		next.ResolvedAt = &stamp
	case model.ActionDismiss:
		ref := by
		next.Status = model.StatusDismissed
		next.DismissReason = detail
		next.DismissedBy = &ref
		next.DismissedAt = &stamp
	case model.ActionArchive:
		if next.ArchivedAt == nil {
			next.ArchivedAt = &stamp
		}
	}
	return next, nil
}
