package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"sk3-portal/internal/evidence"
	"sk3-portal/internal/lifecycle"
	"sk3-portal/internal/model"
	"sk3-portal/internal/ocr"
	"sk3-portal/internal/validation"
	"sk3-portal/internal/views"
)

type TaskforceService struct {
	api        API
	registry   *views.Registry
	recognizer ocr.Recognizer
	archive    evidence.Archive
	strictOCR  bool
	recorder
}

func NewTaskforceService(
	api API,
	registry *views.Registry,
	recognizer ocr.Recognizer,
	archive evidence.Archive,
	strictOCR bool,
	journal Journal,
	log zerolog.Logger,
) *TaskforceService {
	if archive == nil {
		archive = evidence.Nop{}
	}
	return &TaskforceService{
		api:        api,
		registry:   registry,
		recognizer: recognizer,
		archive:    archive,
		strictOCR:  strictOCR,
		recorder:   recorder{journal: journal, log: log, now: time.Now},
	}
}

// TicketImage is the photo picked in the resolve dialog. ComplaintID is the
// complaint the photo was selected for.
type TicketImage struct {
	ComplaintID int64
	Filename    string
	Data        []byte
}

type ResolveInput struct {
	Resolution string
	Image      *TicketImage
}

type ResolveResult struct {
	Complaint    model.Complaint `json:"complaint"`
	TicketNumber string          `json:"ticket_number"`
	OCRFallback  bool            `json:"ocr_fallback"`
	EvidenceKey  string          `json:"evidence_key,omitempty"`
}

func (s *TaskforceService) assigned(actor Actor) (*views.Workspace, error) {
	if !actor.Identity.IsPersonnel() {
		return nil, &lifecycle.AuthorizationError{Role: string(model.RolePersonnel)}
	}
	return workspace(s.registry, actor)
}

// Resolve closes an assigned complaint with the ticket number read from the
// photo. When no digits are found the NOT_FOUND placeholder is sent unless
// strict OCR is configured.
func (s *TaskforceService) Resolve(ctx context.Context, actor Actor, kind model.ComplaintKind, complaintID int64, in ResolveInput) (*ResolveResult, error) {
	resolution, err := validation.Required("resolution", in.Resolution, "Resolution is required")
	if err != nil {
		return nil, err
	}
	if in.Image == nil || len(in.Image.Data) == 0 || in.Image.ComplaintID != complaintID {
		return nil, &lifecycle.MissingImageError{ComplaintID: complaintID}
	}

	ws, err := s.assigned(actor)
	if err != nil {
		return nil, err
	}
	list, err := ws.Complaints(views.Assigned)
	if err != nil {
		return nil, ErrPermissionDenied
	}
	current, err := findComplaint(ctx, list, kind, complaintID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.Check(current, model.ActionResolve); err != nil {
		return nil, err
	}

	text, err := s.recognizer.Recognize(ctx, in.Image.Data, in.Image.Filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lifecycle.ErrOcrExtraction, err)
	}
	ticket, extractErr := ocr.ExtractTicketNumber(text)
	if extractErr != nil {
		if s.strictOCR {
			return nil, extractErr
		}
		s.log.Warn().Int64("complaint_id", complaintID).Msg("no ticket number in image, resolving with placeholder")
	}

	resolver := actor.Identity.Ref()
	err = s.api.Resolve(ctx, kind, complaintID, model.ResolveRequest{
		Resolution:   resolution,
		TicketNumber: ticket,
		ResolvedBy:   resolver.ID,
		ResolverName: resolver.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve complaint: %w", err)
	}
	list.Remove(model.ComplaintKey(current))

	next, err := lifecycle.Apply(current, model.ActionResolve, resolver, resolution, time.Now())
	if err != nil {
		return nil, err
	}
	next.TicketNumber = ticket

	result := &ResolveResult{
		Complaint:    next,
		TicketNumber: ticket,
		OCRFallback:  extractErr != nil,
	}
	key, err := s.archive.Store(ctx, complaintID, ticket, in.Image.Filename, in.Image.Data)
	if err != nil {
		s.log.Error().Err(err).Int64("complaint_id", complaintID).Msg("failed to store ticket photo")
	}
	result.EvidenceKey = key

	note := "ticket " + ticket
	if result.OCRFallback {
		note += " (ocr fallback)"
	}
	s.record(ctx, &actor, journalEntry{
		kind:      current.Kind,
		complaint: complaintID,
		action:    model.ActionResolve,
		old:       current.Status,
		next:      next.Status,
		note:      note,
	})
	return result, nil
}

// Dismiss closes an assigned complaint without a ticket. The dismissed copy is
// shown in the personnel's dismissed list right away.
func (s *TaskforceService) Dismiss(ctx context.Context, actor Actor, kind model.ComplaintKind, complaintID int64, reason string) (*model.Complaint, error) {
	reason, err := validation.Required("reason", reason, "Reason is required")
	if err != nil {
		return nil, err
	}
	ws, err := s.assigned(actor)
	if err != nil {
		return nil, err
	}
	list, err := ws.Complaints(views.Assigned)
	if err != nil {
		return nil, ErrPermissionDenied
	}
	current, err := findComplaint(ctx, list, kind, complaintID)
	if err != nil {
		return nil, err
	}

	dismisser := actor.Identity.Ref()
	next, err := lifecycle.Apply(current, model.ActionDismiss, dismisser, reason, time.Now())
	if err != nil {
		return nil, err
	}

	err = s.api.Dismiss(ctx, kind, complaintID, model.DismissRequest{
		Reason:        reason,
		DismissedBy:   dismisser.ID,
		DismisserName: dismisser.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("dismiss complaint: %w", err)
	}
	list.Remove(model.ComplaintKey(current))
	if dismissed, err := ws.Complaints(views.TaskforceDismissed); err == nil {
		dismissed.Append(next)
	}

	s.record(ctx, &actor, journalEntry{
		kind:      current.Kind,
		complaint: complaintID,
		action:    model.ActionDismiss,
		old:       current.Status,
		next:      next.Status,
		note:      reason,
	})
	return &next, nil
}

func (s *TaskforceService) List(ctx context.Context, actor Actor, view views.ViewID, q *model.ListQuery) (interface{}, error) {
	if !actor.Identity.IsPersonnel() {
		return nil, &lifecycle.AuthorizationError{Role: string(model.RolePersonnel)}
	}
	return snapshot(ctx, s.registry, s.log, actor, view, q)
}

func (s *TaskforceService) Snapshot(actor Actor, view views.ViewID) (interface{}, error) {
	return s.List(context.Background(), actor, view, nil)
}

func (s *TaskforceService) Subscribe(actor Actor, view views.ViewID) (<-chan struct{}, func(), error) {
	if !actor.Identity.IsPersonnel() {
		return nil, nil, &lifecycle.AuthorizationError{Role: string(model.RolePersonnel)}
	}
	return subscribe(s.registry, actor, view)
}
