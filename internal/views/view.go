// Package views owns the polled dashboard lists of each logged-in session.
package views

import (
	"fmt"
	"time"

	"sk3-portal/internal/config"
	"sk3-portal/internal/model"
)

type ViewID string

const (
	Active             ViewID = "active"
	Archived           ViewID = "archived"
	Emergency          ViewID = "emergency"
	ArchivedEmergency  ViewID = "archived-emergency"
	Resolved           ViewID = "resolved"
	Dismissed          ViewID = "dismissed"
	Tickets            ViewID = "tickets"
	Personnel          ViewID = "personnel"
	PendingAccounts    ViewID = "pending-accounts"
	Assigned           ViewID = "assigned"
	TaskforceDismissed ViewID = "taskforce-dismissed"
)

var (
	adminViews = []ViewID{
		Active, Archived, Emergency, ArchivedEmergency, Resolved,
		Dismissed, Tickets, Personnel, PendingAccounts,
	}
	taskforceViews = []ViewID{Assigned, TaskforceDismissed}
)

func ParseViewID(raw string) (ViewID, error) {
	id := ViewID(raw)
	switch id {
	case Active, Archived, Emergency, ArchivedEmergency, Resolved, Dismissed,
		Tickets, Personnel, PendingAccounts, Assigned, TaskforceDismissed:
		return id, nil
	default:
		return "", fmt.Errorf("unknown view %q", raw)
	}
}

// ViewsFor lists the views a role may open. Commuters have none.
func ViewsFor(role model.Role) []ViewID {
	var src []ViewID
	switch role {
	case model.RoleAdmin:
		src = adminViews
	case model.RolePersonnel:
		src = taskforceViews
	default:
		return nil
	}
	out := make([]ViewID, len(src))
	copy(out, src)
	return out
}

func Allowed(role model.Role, view ViewID) bool {
	for _, v := range ViewsFor(role) {
		if v == view {
			return true
		}
	}
	return false
}

// Filterable reports whether the view forwards a ListQuery to the API.
func (v ViewID) Filterable() bool {
	switch v {
	case Active, Archived, Emergency, ArchivedEmergency, Resolved, Dismissed, Tickets, TaskforceDismissed:
		return true
	default:
		return false
	}
}

func interval(v ViewID, polls config.PollConfig) time.Duration {
	switch v {
	case Active:
		return polls.Active
	case Archived:
		return polls.Archived
	case Emergency:
		return polls.Emergency
	case ArchivedEmergency:
		return polls.ArchivedEmergency
	case Resolved:
		return polls.Resolved
	case Dismissed, TaskforceDismissed:
		return polls.Dismissed
	case Tickets:
		return polls.Tickets
	case Personnel:
		return polls.Personnel
	case PendingAccounts:
		return polls.PendingAccounts
	case Assigned:
		return polls.Assigned
	default:
		return 0
	}
}
