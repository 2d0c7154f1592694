package views

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sk3-portal/internal/config"
	"sk3-portal/internal/model"
	"sk3-portal/internal/poller"
)

var (
	ErrViewNotAllowed = errors.New("view is not available to this session")
	ErrNotComplaints  = errors.New("view does not list complaints")
)

// Source is the part of the API a workspace polls.
type Source interface {
	DriverLookup
	ListComplaints(ctx context.Context, q model.ListQuery) ([]model.Complaint, error)
	ListArchived(ctx context.Context, q model.ListQuery) ([]model.Complaint, error)
	ListEmergency(ctx context.Context, q model.ListQuery) ([]model.Complaint, error)
	ListArchivedEmergency(ctx context.Context, q model.ListQuery) ([]model.Complaint, error)
	ListResolved(ctx context.Context, q model.ListQuery) ([]model.Complaint, error)
	ListDismissed(ctx context.Context, q model.ListQuery) ([]model.Complaint, error)
	ListTickets(ctx context.Context, q model.ListQuery) ([]model.Complaint, error)
	ListAssigned(ctx context.Context, personnelID int64) ([]model.Complaint, error)
	ListPersonnel(ctx context.Context) ([]model.Personnel, error)
	ListPendingAccounts(ctx context.Context) ([]model.PendingAccount, error)
}

// Workspace is the set of lists one dashboard session keeps polling. It is
// mounted on first access after login and stopped on logout or when idle.
type Workspace struct {
	owner   model.Identity
	src     Source
	drivers *driverCache
	log     zerolog.Logger
	cancel  context.CancelFunc

	complaints map[ViewID]*poller.List[model.Complaint]
	personnel  *poller.List[model.Personnel]
	pending    *poller.List[model.PendingAccount]

	mu       sync.Mutex
	queries  map[ViewID]model.ListQuery
	lastUsed time.Time
}

func newWorkspace(owner model.Identity, src Source, polls config.PollConfig, log zerolog.Logger) *Workspace {
	w := &Workspace{
		owner:      owner,
		src:        src,
		log:        log.With().Str("role", string(owner.Role)).Int64("owner_id", owner.ID()).Logger(),
		complaints: make(map[ViewID]*poller.List[model.Complaint]),
		queries:    make(map[ViewID]model.ListQuery),
	}
	w.drivers = newDriverCache(src, w.log)

	for _, view := range ViewsFor(owner.Role) {
		opts := poller.Options{Interval: interval(view, polls), Log: w.log}
		switch view {
		case Personnel:
			w.personnel = poller.NewList(string(view), src.ListPersonnel, model.PersonnelID, opts)
		case PendingAccounts:
			w.pending = poller.NewList(string(view), src.ListPendingAccounts, model.PendingAccountID, opts)
		default:
			if view == Active || view == TaskforceDismissed {
				opts.Mode = poller.Merge
			}
			w.complaints[view] = poller.NewList(string(view), w.fetcher(view), model.ComplaintKey, opts)
		}
	}
	return w
}

func (w *Workspace) fetcher(view ViewID) poller.FetchFunc[model.Complaint] {
	return func(ctx context.Context) ([]model.Complaint, error) {
		q := w.Query(view)
		switch view {
		case Active:
			items, err := w.src.ListComplaints(ctx, q)
			if err != nil {
				return nil, err
			}
			w.drivers.enrich(ctx, items)
			return items, nil
		case Archived:
			return w.src.ListArchived(ctx, q)
		case Emergency:
			return w.src.ListEmergency(ctx, q)
		case ArchivedEmergency:
			return w.src.ListArchivedEmergency(ctx, q)
		case Resolved:
			return w.src.ListResolved(ctx, q)
		case Dismissed:
			return w.src.ListDismissed(ctx, q)
		case Tickets:
			return w.src.ListTickets(ctx, q)
		case Assigned:
			return w.src.ListAssigned(ctx, w.owner.ID())
		case TaskforceDismissed:
			items, err := w.src.ListDismissed(ctx, q)
			if err != nil {
				return nil, err
			}
			return dismissedBy(items, w.owner.ID()), nil
		default:
			return nil, fmt.Errorf("view %s has no complaint source", view)
		}
	}
}

func dismissedBy(items []model.Complaint, personnelID int64) []model.Complaint {
	out := items[:0]
	for _, c := range items {
		if c.DismissedBy != nil && c.DismissedBy.ID == personnelID {
			out = append(out, c)
		}
	}
	return out
}

func (w *Workspace) start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	for _, list := range w.complaints {
		list.Start(ctx)
	}
	if w.personnel != nil {
		w.personnel.Start(ctx)
	}
	if w.pending != nil {
		w.pending.Start(ctx)
	}
	w.touch(time.Now())
}

func (w *Workspace) stop() {
	for _, list := range w.complaints {
		list.Stop()
	}
	if w.personnel != nil {
		w.personnel.Stop()
	}
	if w.pending != nil {
		w.pending.Stop()
	}
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Workspace) touch(at time.Time) {
	w.mu.Lock()
	w.lastUsed = at
	w.mu.Unlock()
}

func (w *Workspace) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastUsed
}

func (w *Workspace) Owner() model.Identity {
	return w.owner
}

func (w *Workspace) Query(view ViewID) model.ListQuery {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.queries[view]
}

// SetQuery changes the filter of a view, drops what the old filter produced
// and refetches right away. An unchanged filter is a no-op.
func (w *Workspace) SetQuery(ctx context.Context, view ViewID, q model.ListQuery) error {
	if !view.Filterable() {
		return nil
	}
	list, err := w.Complaints(view)
	if err != nil {
		return err
	}
	w.mu.Lock()
	changed := w.queries[view] != q
	w.queries[view] = q
	w.mu.Unlock()
	if !changed {
		return nil
	}
	list.Reset()
	return list.Refresh(ctx)
}

// Complaints returns the complaint list behind view.
func (w *Workspace) Complaints(view ViewID) (*poller.List[model.Complaint], error) {
	if !Allowed(w.owner.Role, view) {
		return nil, ErrViewNotAllowed
	}
	list, ok := w.complaints[view]
	if !ok {
		return nil, ErrNotComplaints
	}
	return list, nil
}

// Snapshot renders the current state of view.
func (w *Workspace) Snapshot(view ViewID) (interface{}, error) {
	if !Allowed(w.owner.Role, view) {
		return nil, ErrViewNotAllowed
	}
	switch view {
	case Personnel:
		return w.personnel.Snapshot(), nil
	case PendingAccounts:
		return w.pending.Snapshot(), nil
	default:
		list, err := w.Complaints(view)
		if err != nil {
			return nil, err
		}
		return list.Snapshot(), nil
	}
}

func (w *Workspace) Refresh(ctx context.Context, view ViewID) error {
	if !Allowed(w.owner.Role, view) {
		return ErrViewNotAllowed
	}
	switch view {
	case Personnel:
		return w.personnel.Refresh(ctx)
	case PendingAccounts:
		return w.pending.Refresh(ctx)
	default:
		list, err := w.Complaints(view)
		if err != nil {
			return err
		}
		return list.Refresh(ctx)
	}
}

func (w *Workspace) Subscribe(view ViewID) (<-chan struct{}, func(), error) {
	if !Allowed(w.owner.Role, view) {
		return nil, nil, ErrViewNotAllowed
	}
	switch view {
	case Personnel:
		ch, cancel := w.personnel.Subscribe()
		return ch, cancel, nil
	case PendingAccounts:
		ch, cancel := w.pending.Subscribe()
		return ch, cancel, nil
	default:
		list, err := w.Complaints(view)
		if err != nil {
			return nil, nil, err
		}
		ch, cancel := list.Subscribe()
		return ch, cancel, nil
	}
}

func (w *Workspace) PersonnelList() *poller.List[model.Personnel] {
	return w.personnel
}

func (w *Workspace) PendingAccountList() *poller.List[model.PendingAccount] {
	return w.pending
}
