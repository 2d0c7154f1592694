package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"sk3-portal/internal/model"
	"sk3-portal/internal/repository"
	"sk3-portal/internal/views"
)

// API is the part of the remote SK3 API the lifecycle operations call.
type API interface {
	SubmitReport(ctx context.Context, in model.ReportInput) (*model.Complaint, error)
	SubmitEmergency(ctx context.Context, in model.ReportInput) (*model.Complaint, error)
	Assign(ctx context.Context, kind model.ComplaintKind, complaintID, personnelID int64) error
	Archive(ctx context.Context, complaintID int64) error
	ArchiveEmergency(ctx context.Context, complaintID int64) error
	SendSMS(ctx context.Context, complaintID int64, message string) error
	Resolve(ctx context.Context, kind model.ComplaintKind, complaintID int64, req model.ResolveRequest) error
	Dismiss(ctx context.Context, kind model.ComplaintKind, complaintID int64, req model.DismissRequest) error
	LoginCommuter(ctx context.Context, creds model.Credentials) (*model.Commuter, error)
	LoginAdmin(ctx context.Context, creds model.Credentials) (*model.Admin, error)
	LoginPersonnel(ctx context.Context, creds model.Credentials) (*model.Personnel, error)
	ApproveAccount(ctx context.Context, commuterID int64) error
	CreatePersonnel(ctx context.Context, in model.PersonnelInput) (*model.Personnel, error)
	DeletePersonnel(ctx context.Context, personnelID int64) error
	DriverByPlate(ctx context.Context, plate string) (*model.Driver, error)
}

type Journal interface {
	Log(ctx context.Context, entry *model.ActionLog) error
	ListByComplaint(ctx context.Context, kind model.ComplaintKind, complaintID int64) ([]model.ActionLog, error)
	ListRecent(ctx context.Context, filter repository.ActionLogFilter) ([]model.ActionLog, error)
}

// Actor is the logged-in session an operation runs for.
type Actor struct {
	SessionID string
	Identity  model.Identity
}

type journalEntry struct {
	kind      model.ComplaintKind
	complaint int64
	action    model.Action
	old       model.Status
	next      model.Status
	note      string
}

// recorder writes journal rows. A failed write is logged and never fails the
// action that produced it.
type recorder struct {
	journal Journal
	log     zerolog.Logger
	now     func() time.Time
}

func (r recorder) record(ctx context.Context, actor *Actor, e journalEntry) {
	if r.journal == nil {
		return
	}
	if e.kind == "" {
		e.kind = model.ComplaintKindStandard
	}
	entry := &model.ActionLog{
		ComplaintID: e.complaint,
		Kind:        e.kind,
		Action:      e.action,
		Note:        e.note,
		CreatedAt:   r.now(),
	}
	if actor != nil {
		id := actor.Identity.ID()
		entry.ActorRole = actor.Identity.Role
		entry.ActorID = &id
	}
	if e.old != "" {
		old := e.old
		entry.OldStatus = &old
	}
	if e.next != "" {
		next := e.next
		entry.NewStatus = &next
	}
	if err := r.journal.Log(ctx, entry); err != nil {
		r.log.Error().Err(err).
			Int64("complaint_id", e.complaint).
			Str("action", string(e.action)).
			Msg("failed to write action journal")
	}
}

// workspace returns the dashboard of actor, mounting it on first access.
func workspace(reg *views.Registry, actor Actor) (*views.Workspace, error) {
	if w, ok := reg.Get(actor.SessionID); ok && w.Owner().Role == actor.Identity.Role && w.Owner().ID() == actor.Identity.ID() {
		return w, nil
	}
	w, err := reg.Mount(actor.SessionID, actor.Identity)
	if err != nil {
		return nil, ErrPermissionDenied
	}
	return w, nil
}
