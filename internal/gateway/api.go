package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"sk3-portal/internal/model"
)

const (
	pathComplaints          = "/complaints"
	pathEmergency           = "/emergency-complaints"
	pathArchived            = "/complaints/archived"
	pathArchivedEmergency   = "/emergency-complaints/archived"
	pathResolved            = "/complaints/resolved"
	pathDismissed           = "/complaints/dismissed"
	pathTickets             = "/tickets"
	pathSMS                 = "/notifications/sms"
	pathPersonnel           = "/personnel"
	pathPendingCommuters    = "/commuters/pending"
	pathCommuterLogin       = "/auth/commuter/login"
	pathAdminLogin          = "/auth/admin/login"
	pathPersonnelLogin      = "/auth/personnel/login"
	pathDriversByPlate      = "/drivers/plate/"
	pathComplaintActionBase = "/complaints/"
)

func idPath(base string, id int64, suffix string) string {
	return base + strconv.FormatInt(id, 10) + suffix
}

func (c *Client) listComplaints(ctx context.Context, path string, kind model.ComplaintKind, query url.Values) ([]model.Complaint, error) {
	var items []model.Complaint
	if err := c.get(ctx, path, query, &items); err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Normalize(kind)
	}
	return items, nil
}

func (c *Client) SubmitReport(ctx context.Context, in model.ReportInput) (*model.Complaint, error) {
	var created model.Complaint
	if err := c.post(ctx, pathComplaints, in, &created); err != nil {
		return nil, err
	}
	created.Normalize(model.ComplaintKindStandard)
	return &created, nil
}

func (c *Client) SubmitEmergency(ctx context.Context, in model.ReportInput) (*model.Complaint, error) {
	var created model.Complaint
	if err := c.post(ctx, pathEmergency, in, &created); err != nil {
		return nil, err
	}
	created.Normalize(model.ComplaintKindEmergency)
	return &created, nil
}

func (c *Client) ListComplaints(ctx context.Context, q model.ListQuery) ([]model.Complaint, error) {
	return c.listComplaints(ctx, pathComplaints, model.ComplaintKindStandard, q.Values())
}

func (c *Client) ListArchived(ctx context.Context, q model.ListQuery) ([]model.Complaint, error) {
	return c.listComplaints(ctx, pathArchived, model.ComplaintKindStandard, q.Values())
}

func (c *Client) ListEmergency(ctx context.Context, q model.ListQuery) ([]model.Complaint, error) {
	return c.listComplaints(ctx, pathEmergency, model.ComplaintKindEmergency, q.Values())
}

func (c *Client) ListArchivedEmergency(ctx context.Context, q model.ListQuery) ([]model.Complaint, error) {
	return c.listComplaints(ctx, pathArchivedEmergency, model.ComplaintKindEmergency, q.Values())
}

func (c *Client) ListResolved(ctx context.Context, q model.ListQuery) ([]model.Complaint, error) {
	return c.listComplaints(ctx, pathResolved, model.ComplaintKindStandard, q.Values())
}

func (c *Client) ListDismissed(ctx context.Context, q model.ListQuery) ([]model.Complaint, error) {
	return c.listComplaints(ctx, pathDismissed, model.ComplaintKindStandard, q.Values())
}

func (c *Client) ListTickets(ctx context.Context, q model.ListQuery) ([]model.Complaint, error) {
	return c.listComplaints(ctx, pathTickets, model.ComplaintKindStandard, q.Values())
}

// ListAssigned returns the complaints currently assigned to one personnel.
func (c *Client) ListAssigned(ctx context.Context, personnelID int64) ([]model.Complaint, error) {
	return c.listComplaints(ctx, idPath(pathPersonnel+"/", personnelID, "/complaints"), model.ComplaintKindStandard, nil)
}

// actionBase is the path prefix of per-complaint actions for kind.
func actionBase(kind model.ComplaintKind) string {
	if kind == model.ComplaintKindEmergency {
		return pathEmergency + "/"
	}
	return pathComplaintActionBase
}

func (c *Client) Assign(ctx context.Context, kind model.ComplaintKind, complaintID, personnelID int64) error {
	return c.post(ctx, idPath(actionBase(kind), complaintID, "/assign"), model.AssignRequest{PersonnelID: personnelID}, nil)
}

func (c *Client) Archive(ctx context.Context, complaintID int64) error {
	return c.post(ctx, idPath(pathComplaintActionBase, complaintID, "/archive"), nil, nil)
}

func (c *Client) ArchiveEmergency(ctx context.Context, complaintID int64) error {
	return c.post(ctx, idPath(actionBase(model.ComplaintKindEmergency), complaintID, "/archive"), nil, nil)
}

func (c *Client) SendSMS(ctx context.Context, complaintID int64, message string) error {
	return c.post(ctx, pathSMS, model.SMSRequest{ComplaintID: complaintID, Message: message}, nil)
}

func (c *Client) Resolve(ctx context.Context, kind model.ComplaintKind, complaintID int64, req model.ResolveRequest) error {
	return c.post(ctx, idPath(actionBase(kind), complaintID, "/resolve"), req, nil)
}

func (c *Client) Dismiss(ctx context.Context, kind model.ComplaintKind, complaintID int64, req model.DismissRequest) error {
	return c.post(ctx, idPath(actionBase(kind), complaintID, "/dismiss"), req, nil)
}

func (c *Client) LoginCommuter(ctx context.Context, creds model.Credentials) (*model.Commuter, error) {
	var commuter model.Commuter
	if err := c.post(ctx, pathCommuterLogin, creds, &commuter); err != nil {
		return nil, err
	}
	return &commuter, nil
}

func (c *Client) LoginAdmin(ctx context.Context, creds model.Credentials) (*model.Admin, error) {
	var admin model.Admin
	if err := c.post(ctx, pathAdminLogin, creds, &admin); err != nil {
		return nil, err
	}
	return &admin, nil
}

func (c *Client) LoginPersonnel(ctx context.Context, creds model.Credentials) (*model.Personnel, error) {
	var personnel model.Personnel
	if err := c.post(ctx, pathPersonnelLogin, creds, &personnel); err != nil {
		return nil, err
	}
	return &personnel, nil
}

func (c *Client) ListPendingAccounts(ctx context.Context) ([]model.PendingAccount, error) {
	var accounts []model.PendingAccount
	if err := c.get(ctx, pathPendingCommuters, nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *Client) ApproveAccount(ctx context.Context, commuterID int64) error {
	return c.post(ctx, idPath("/commuters/", commuterID, "/approve"), nil, nil)
}

func (c *Client) ListPersonnel(ctx context.Context) ([]model.Personnel, error) {
	var personnel []model.Personnel
	if err := c.get(ctx, pathPersonnel, nil, &personnel); err != nil {
		return nil, err
	}
	return personnel, nil
}

func (c *Client) CreatePersonnel(ctx context.Context, in model.PersonnelInput) (*model.Personnel, error) {
	var created model.Personnel
	if err := c.post(ctx, pathPersonnel, in, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) DeletePersonnel(ctx context.Context, personnelID int64) error {
	return c.delete(ctx, idPath(pathPersonnel+"/", personnelID, ""))
}

func (c *Client) DriverByPlate(ctx context.Context, plate string) (*model.Driver, error) {
	if plate == "" {
		return nil, fmt.Errorf("plate number is empty")
	}
	var driver model.Driver
	if err := c.get(ctx, pathDriversByPlate+url.PathEscape(plate), nil, &driver); err != nil {
		return nil, err
	}
	return &driver, nil
}
