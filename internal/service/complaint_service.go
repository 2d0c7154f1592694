package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"sk3-portal/internal/lifecycle"
	"sk3-portal/internal/model"
	"sk3-portal/internal/poller"
	"sk3-portal/internal/repository"
	"sk3-portal/internal/validation"
	"sk3-portal/internal/views"
)

type ComplaintService struct {
	api      API
	registry *views.Registry
	drafts   *validation.Drafts
	recorder
}

func NewComplaintService(api API, registry *views.Registry, drafts *validation.Drafts, journal Journal, log zerolog.Logger) *ComplaintService {
	return &ComplaintService{
		api:      api,
		registry: registry,
		drafts:   drafts,
		recorder: recorder{journal: journal, log: log, now: time.Now},
	}
}

// CaptureLocation records a device fix or map click on the report form
// identified by draftKey and returns the location a submit would use.
func (s *ComplaintService) CaptureLocation(draftKey string, source validation.Source, lat, lng float64, label string) (validation.Point, error) {
	geo := s.drafts.Geo(draftKey)
	if err := geo.Set(source, lat, lng, label); err != nil {
		verr := lifecycle.NewValidationError()
		verr.Add("location", err.Error())
		return validation.Point{}, verr
	}
	point, _ := geo.Resolved()
	return point, nil
}

// ReportDefaults pre-fills the commuter report form from the session.
func (s *ComplaintService) ReportDefaults(actor Actor) model.ReportInput {
	var in model.ReportInput
	if actor.Identity.IsCommuter() {
		id := actor.Identity.Commuter.ID
		in.CommuterID = &id
		in.Name = actor.Identity.Commuter.Name
		in.ContactNumber = actor.Identity.Commuter.ContactNumber
	}
	return in
}

// SubmitReport files a commuter report. Name and contact fall back to the
// session when the form left them empty.
func (s *ComplaintService) SubmitReport(ctx context.Context, actor Actor, draftKey string, in model.ReportInput) (*model.Complaint, error) {
	if !actor.Identity.IsCommuter() {
		return nil, &lifecycle.AuthorizationError{Role: string(model.RoleCommuter)}
	}
	defaults := s.ReportDefaults(actor)
	in.CommuterID = defaults.CommuterID
	if in.Name == "" {
		in.Name = defaults.Name
	}
	if in.ContactNumber == "" {
		in.ContactNumber = defaults.ContactNumber
	}
	return s.submit(ctx, &actor, draftKey, in, model.ComplaintKindStandard)
}

// SubmitEmergency files a report from the public emergency form.
func (s *ComplaintService) SubmitEmergency(ctx context.Context, draftKey string, in model.ReportInput) (*model.Complaint, error) {
	in.CommuterID = nil
	return s.submit(ctx, nil, draftKey, in, model.ComplaintKindEmergency)
}

func (s *ComplaintService) submit(ctx context.Context, actor *Actor, draftKey string, in model.ReportInput, kind model.ComplaintKind) (*model.Complaint, error) {
	valid, err := validation.Report(in, s.drafts.Geo(draftKey))
	if err != nil {
		return nil, err
	}

	var created *model.Complaint
	if kind == model.ComplaintKindEmergency {
		created, err = s.api.SubmitEmergency(ctx, valid)
	} else {
		created, err = s.api.SubmitReport(ctx, valid)
	}
	if err != nil {
		return nil, fmt.Errorf("submit report: %w", err)
	}
	s.drafts.Discard(draftKey)

	s.record(ctx, actor, journalEntry{
		kind:      kind,
		complaint: created.ID,
		action:    model.ActionCreate,
		next:      model.StatusPending,
		note:      string(valid.Category) + " " + valid.PlateNumber,
	})
	return created, nil
}

// findComplaint looks the complaint up in list, refetching once when it is not
// there yet.
func findComplaint(ctx context.Context, list *poller.List[model.Complaint], kind model.ComplaintKind, id int64) (model.Complaint, error) {
	key := model.Key(kind, id)
	if c, ok := list.Find(key); ok {
		return c, nil
	}
	if err := list.Refresh(ctx); err != nil && !errors.Is(err, poller.ErrStopped) {
		return model.Complaint{}, err
	}
	if c, ok := list.Find(key); ok {
		return c, nil
	}
	return model.Complaint{}, fmt.Errorf("%s complaint %d: %w", kind, id, ErrNotFound)
}

// liveViews returns the view a complaint of kind waits in and the view it is
// archived to.
func liveViews(kind model.ComplaintKind) (views.ViewID, views.ViewID) {
	if kind == model.ComplaintKindEmergency {
		return views.Emergency, views.ArchivedEmergency
	}
	return views.Active, views.Archived
}

// Assign hands a pending complaint to one personnel. The live list of its kind
// is refetched afterwards instead of flipping the status locally.
func (s *ComplaintService) Assign(ctx context.Context, actor Actor, kind model.ComplaintKind, complaintID, personnelID int64) (*model.Complaint, error) {
	if personnelID <= 0 {
		return nil, &lifecycle.MissingSelectionError{ComplaintID: complaintID}
	}
	ws, err := workspace(s.registry, actor)
	if err != nil {
		return nil, err
	}
	liveView, _ := liveViews(kind)
	live, err := ws.Complaints(liveView)
	if err != nil {
		return nil, ErrPermissionDenied
	}
	current, err := findComplaint(ctx, live, kind, complaintID)
	if err != nil {
		return nil, err
	}

	ref := model.PersonnelRef{ID: personnelID}
	if roster := ws.PersonnelList(); roster != nil {
		if p, ok := roster.Find(personnelID); ok {
			ref.Name = p.FullName
		}
	}
	next, err := lifecycle.Apply(current, model.ActionAssign, ref, "", time.Now())
	if err != nil {
		return nil, err
	}

	if err := s.api.Assign(ctx, kind, complaintID, personnelID); err != nil {
		return nil, fmt.Errorf("assign complaint: %w", err)
	}
	if err := live.Refresh(ctx); err != nil && !errors.Is(err, poller.ErrStopped) {
		s.log.Warn().Err(err).Int64("complaint_id", complaintID).Msg("refresh after assign failed")
	}

	s.record(ctx, &actor, journalEntry{
		kind:      current.Kind,
		complaint: complaintID,
		action:    model.ActionAssign,
		old:       current.Status,
		next:      next.Status,
		note:      fmt.Sprintf("personnel %d %s", personnelID, ref.Name),
	})
	return &next, nil
}

// Notify sends an SMS about a complaint. The complaint itself is unchanged.
func (s *ComplaintService) Notify(ctx context.Context, actor Actor, complaintID int64, message string) error {
	message, err := validation.Required("message", message, "Message is required")
	if err != nil {
		return err
	}
	if err := s.api.SendSMS(ctx, complaintID, message); err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	s.record(ctx, &actor, journalEntry{
		complaint: complaintID,
		action:    model.ActionNotify,
		note:      message,
	})
	return nil
}

// Archive hides the complaint from its live list before calling the API and
// brings it back when the call fails. The archived list picks it up on its
// next successful fetch.
func (s *ComplaintService) Archive(ctx context.Context, actor Actor, kind model.ComplaintKind, complaintID int64) error {
	ws, err := workspace(s.registry, actor)
	if err != nil {
		return err
	}
	liveView, archivedView := liveViews(kind)
	live, err := ws.Complaints(liveView)
	if err != nil {
		return ErrPermissionDenied
	}

	key := model.Key(kind, complaintID)
	current, known := live.Find(key)
	if known {
		if err := lifecycle.Check(current, model.ActionArchive); err != nil {
			return err
		}
	}

	live.Remove(key)
	if kind == model.ComplaintKindEmergency {
		err = s.api.ArchiveEmergency(ctx, complaintID)
	} else {
		err = s.api.Archive(ctx, complaintID)
	}
	if err != nil {
		live.Restore(key)
		return fmt.Errorf("archive complaint: %w", err)
	}

	if err := ws.Refresh(ctx, archivedView); err != nil && !errors.Is(err, poller.ErrStopped) {
		s.log.Warn().Err(err).Int64("complaint_id", complaintID).Msg("refresh after archive failed")
	}

	s.record(ctx, &actor, journalEntry{
		kind:      kind,
		complaint: complaintID,
		action:    model.ActionArchive,
		old:       current.Status,
		next:      current.Status,
	})
	return nil
}

// List returns the snapshot of view, applying q first when the view is
// filterable. A failed refetch shows up as the snapshot's error.
func (s *ComplaintService) List(ctx context.Context, actor Actor, view views.ViewID, q *model.ListQuery) (interface{}, error) {
	return snapshot(ctx, s.registry, s.log, actor, view, q)
}

func snapshot(ctx context.Context, reg *views.Registry, log zerolog.Logger, actor Actor, view views.ViewID, q *model.ListQuery) (interface{}, error) {
	if !views.Allowed(actor.Identity.Role, view) {
		return nil, ErrPermissionDenied
	}
	ws, err := workspace(reg, actor)
	if err != nil {
		return nil, err
	}
	if q != nil && view.Filterable() {
		if err := ws.SetQuery(ctx, view, *q); err != nil && !errors.Is(err, poller.ErrStopped) {
			log.Debug().Err(err).Str("view", string(view)).Msg("refetch after filter change failed")
		}
	}
	return ws.Snapshot(view)
}

// Subscribe streams change signals of view for the live dashboard.
func (s *ComplaintService) Subscribe(actor Actor, view views.ViewID) (<-chan struct{}, func(), error) {
	return subscribe(s.registry, actor, view)
}

func subscribe(reg *views.Registry, actor Actor, view views.ViewID) (<-chan struct{}, func(), error) {
	if !views.Allowed(actor.Identity.Role, view) {
		return nil, nil, ErrPermissionDenied
	}
	ws, err := workspace(reg, actor)
	if err != nil {
		return nil, nil, err
	}
	return ws.Subscribe(view)
}

// Snapshot renders view without touching its filter.
func (s *ComplaintService) Snapshot(actor Actor, view views.ViewID) (interface{}, error) {
	return snapshot(context.Background(), s.registry, s.log, actor, view, nil)
}

func (s *ComplaintService) CreatePersonnel(ctx context.Context, actor Actor, in model.PersonnelInput) (*model.Personnel, error) {
	valid, err := validation.Personnel(in)
	if err != nil {
		return nil, err
	}
	created, err := s.api.CreatePersonnel(ctx, valid)
	if err != nil {
		return nil, fmt.Errorf("create personnel: %w", err)
	}
	if ws, err := workspace(s.registry, actor); err == nil {
		if err := ws.Refresh(ctx, views.Personnel); err != nil && !errors.Is(err, poller.ErrStopped) {
			s.log.Warn().Err(err).Msg("refresh personnel after create failed")
		}
	}
	return created, nil
}

func (s *ComplaintService) DeletePersonnel(ctx context.Context, actor Actor, personnelID int64) error {
	ws, err := workspace(s.registry, actor)
	if err != nil {
		return err
	}
	roster := ws.PersonnelList()
	if roster == nil {
		return ErrPermissionDenied
	}
	roster.Remove(personnelID)
	if err := s.api.DeletePersonnel(ctx, personnelID); err != nil {
		roster.Restore(personnelID)
		return fmt.Errorf("delete personnel: %w", err)
	}
	return nil
}

func (s *ComplaintService) ApprovePendingAccount(ctx context.Context, actor Actor, commuterID int64) error {
	ws, err := workspace(s.registry, actor)
	if err != nil {
		return err
	}
	pending := ws.PendingAccountList()
	if pending == nil {
		return ErrPermissionDenied
	}
	pending.Remove(commuterID)
	if err := s.api.ApproveAccount(ctx, commuterID); err != nil {
		pending.Restore(commuterID)
		return fmt.Errorf("approve account: %w", err)
	}
	return nil
}

func (s *ComplaintService) DriverByPlate(ctx context.Context, plate string) (*model.Driver, error) {
	plate, err := validation.Required("plate_number", plate, "Plate number is required")
	if err != nil {
		return nil, err
	}
	driver, err := s.api.DriverByPlate(ctx, plate)
	if err != nil {
		return nil, fmt.Errorf("driver lookup: %w", err)
	}
	return driver, nil
}

// Actions returns the journal of one complaint, oldest first.
func (s *ComplaintService) Actions(ctx context.Context, kind model.ComplaintKind, complaintID int64) ([]model.ActionLog, error) {
	if s.journal == nil {
		return []model.ActionLog{}, nil
	}
	return s.journal.ListByComplaint(ctx, kind, complaintID)
}

// RecentActions lists the newest journal rows across all complaints for the
// admin audit page.
func (s *ComplaintService) RecentActions(ctx context.Context, filter repository.ActionLogFilter) ([]model.ActionLog, error) {
	if s.journal == nil {
		return []model.ActionLog{}, nil
	}
	return s.journal.ListRecent(ctx, filter)
}
