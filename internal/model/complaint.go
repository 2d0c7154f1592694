package model

import (
	"strings"
	"time"
)

type ComplaintKind string

const (
	ComplaintKindStandard  ComplaintKind = "standard"
	ComplaintKindEmergency ComplaintKind = "emergency"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAssigned  Status = "assigned"
	StatusResolved  Status = "resolved"
	StatusDismissed Status = "dismissed"
)

// Terminal reports whether no transition may leave the status.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusDismissed
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusResolved, StatusDismissed:
		return true
	default:
		return false
	}
}

type Category string

const (
	CategoryOvercharging  Category = "Overcharging"
	CategoryAssault       Category = "Assault"
	CategoryLostBelonging Category = "Lost Belonging"
	CategoryAccident      Category = "Accident"
	CategoryHitAndRun     Category = "Hit and Run"
)

var categories = []Category{
	CategoryOvercharging,
	CategoryAssault,
	CategoryLostBelonging,
	CategoryAccident,
	CategoryHitAndRun,
}

func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory matches case-insensitively against the fixed category set.
func ParseCategory(raw string) (Category, bool) {
	raw = strings.TrimSpace(raw)
	for _, c := range categories {
		if strings.EqualFold(string(c), raw) {
			return c, true
		}
	}
	return "", false
}

type PersonnelRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Complaint struct {
	ID               int64         `json:"id"`
	Kind             ComplaintKind `json:"kind,omitempty"`
	Name             string        `json:"name"`
	ContactNumber    string        `json:"contact_number"`
	Category         Category      `json:"category"`
	Details          string        `json:"details"`
	IncidentDateTime string        `json:"incident_datetime"`
	Location         string        `json:"location"`
	Latitude         *float64      `json:"latitude,omitempty"`
	Longitude        *float64      `json:"longitude,omitempty"`
	PlateNumber      string        `json:"plate_number"`
	Driver           *Driver       `json:"driver,omitempty"`
	Status           Status        `json:"status"`

	AssignedPersonnel *PersonnelRef `json:"assigned_personnel,omitempty"`

	Resolution   string        `json:"resolution,omitempty"`
	TicketNumber string        `json:"ticket_number,omitempty"`
	ResolvedBy   *PersonnelRef `json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time    `json:"resolved_at,omitempty"`

	DismissReason string        `json:"dismiss_reason,omitempty"`
	DismissedBy   *PersonnelRef `json:"dismissed_by,omitempty"`
	DismissedAt   *time.Time    `json:"dismissed_at,omitempty"`

	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

func (c Complaint) Archived() bool {
	return c.ArchivedAt != nil
}

// Normalize lower-cases the status reported by the API and fills it in when the
// API omitted it.
func (c *Complaint) Normalize(kind ComplaintKind) {
	if c.Kind == "" {
		c.Kind = kind
	}
	status := Status(strings.ToLower(strings.TrimSpace(string(c.Status))))
	if !status.Valid() {
		switch {
		case c.DismissedAt != nil || c.DismissReason != "":
			status = StatusDismissed
		case c.ResolvedAt != nil || c.TicketNumber != "":
			status = StatusResolved
		case c.AssignedPersonnel != nil:
			status = StatusAssigned
		default:
			status = StatusPending
		}
	}
	c.Status = status
}

// Key identifies a complaint inside a list. Standard and emergency complaints
// are numbered independently by the API, so emergency ids are negated.
func Key(kind ComplaintKind, id int64) int64 {
	if kind == ComplaintKindEmergency {
		return -id
	}
	return id
}

func ComplaintKey(c Complaint) int64 {
	return Key(c.Kind, c.ID)
}

// ReportInput is the payload of the commuter and emergency report forms.
type ReportInput struct {
	CommuterID       *int64   `json:"commuter_id,omitempty"`
	Name             string   `json:"name"`
	ContactNumber    string   `json:"contact_number"`
	Category         Category `json:"category"`
	Details          string   `json:"details"`
	IncidentDateTime string   `json:"incident_datetime"`
	Location         string   `json:"location"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	PlateNumber      string   `json:"plate_number"`
}
