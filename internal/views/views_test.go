package views

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sk3-portal/internal/config"
	"sk3-portal/internal/gateway"
	"sk3-portal/internal/model"
	"sk3-portal/internal/poller"
)

type fakeSource struct {
	mu          sync.Mutex
	active      []model.Complaint
	dismissed   []model.Complaint
	assigned    map[int64][]model.Complaint
	drivers     map[string]model.Driver
	driverCalls map[string]int
	lastQuery   model.ListQuery
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		assigned:    map[int64][]model.Complaint{},
		drivers:     map[string]model.Driver{},
		driverCalls: map[string]int{},
	}
}

func (f *fakeSource) copyOf(items []model.Complaint) []model.Complaint {
	out := make([]model.Complaint, len(items))
	copy(out, items)
	return out
}

func (f *fakeSource) ListComplaints(_ context.Context, q model.ListQuery) ([]model.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	if q.Month == "" {
		return f.copyOf(f.active), nil
	}
	var out []model.Complaint
	for _, c := range f.active {
		if c.CreatedAt != nil && c.CreatedAt.Format("2006-01") == q.Month {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeSource) ListArchived(context.Context, model.ListQuery) ([]model.Complaint, error) {
	return nil, nil
}

func (f *fakeSource) ListEmergency(context.Context, model.ListQuery) ([]model.Complaint, error) {
	return nil, nil
}

func (f *fakeSource) ListArchivedEmergency(context.Context, model.ListQuery) ([]model.Complaint, error) {
	return nil, nil
}

func (f *fakeSource) ListResolved(context.Context, model.ListQuery) ([]model.Complaint, error) {
	return nil, nil
}

func (f *fakeSource) ListDismissed(context.Context, model.ListQuery) ([]model.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.copyOf(f.dismissed), nil
}

func (f *fakeSource) ListTickets(context.Context, model.ListQuery) ([]model.Complaint, error) {
	return nil, nil
}

func (f *fakeSource) ListAssigned(_ context.Context, personnelID int64) ([]model.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.copyOf(f.assigned[personnelID]), nil
}

func (f *fakeSource) ListPersonnel(context.Context) ([]model.Personnel, error) {
	return []model.Personnel{{ID: 7, FullName: "Ana"}}, nil
}

func (f *fakeSource) ListPendingAccounts(context.Context) ([]model.PendingAccount, error) {
	return nil, nil
}

func (f *fakeSource) DriverByPlate(_ context.Context, plate string) (*model.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.driverCalls[plate]++
	d, ok := f.drivers[plate]
	if !ok {
		return nil, &gateway.APIError{Method: http.MethodGet, Path: "/drivers/plate/" + plate, StatusCode: http.StatusNotFound}
	}
	return &d, nil
}

func slowPolls() config.PollConfig {
	return config.PollConfig{
		Active: time.Minute, Archived: time.Minute, Emergency: time.Minute,
		ArchivedEmergency: time.Minute, Resolved: time.Minute, Dismissed: time.Minute,
		Tickets: time.Minute, Personnel: time.Minute, PendingAccounts: time.Minute,
		Assigned: time.Minute,
	}
}

func adminOwner() model.Identity {
	return model.AdminIdentity(model.Admin{ID: 1, Username: "admin"})
}

func TestParseViewID(t *testing.T) {
	v, err := ParseViewID("archived-emergency")
	require.NoError(t, err)
	assert.Equal(t, ArchivedEmergency, v)

	_, err = ParseViewID("everything")
	assert.Error(t, err)
}

func TestViewsForRole(t *testing.T) {
	assert.Len(t, ViewsFor(model.RoleAdmin), 9)
	assert.Equal(t, []ViewID{Assigned, TaskforceDismissed}, ViewsFor(model.RolePersonnel))
	assert.Empty(t, ViewsFor(model.RoleCommuter))
	assert.True(t, Allowed(model.RoleAdmin, Tickets))
	assert.False(t, Allowed(model.RolePersonnel, Active))
}

func TestActiveListIsEnrichedWithCachedDrivers(t *testing.T) {
	src := newFakeSource()
	src.active = []model.Complaint{
		{ID: 1, PlateNumber: "ABC-123", Status: model.StatusPending},
		{ID: 2, PlateNumber: "ABC-123", Status: model.StatusPending},
		{ID: 3, PlateNumber: "ZZZ-999", Status: model.StatusPending},
	}
	src.drivers["ABC-123"] = model.Driver{ID: 10, FullName: "Mang Jose", PlateNumber: "ABC-123"}

	w := newWorkspace(adminOwner(), src, slowPolls(), zerolog.Nop())
	ctx := context.Background()
	list, err := w.Complaints(Active)
	require.NoError(t, err)

	require.NoError(t, list.Refresh(ctx))
	require.NoError(t, list.Refresh(ctx))

	snap := list.Snapshot()
	require.Len(t, snap.Items, 3)
	require.NotNil(t, snap.Items[0].Driver)
	assert.Equal(t, "Mang Jose", snap.Items[0].Driver.FullName)
	assert.Nil(t, snap.Items[2].Driver)

	assert.Equal(t, 1, src.driverCalls["ABC-123"])
	assert.Equal(t, 1, src.driverCalls["ZZZ-999"], "unknown plates are cached too")
}

func TestSetQueryRefetchesWithFilter(t *testing.T) {
	src := newFakeSource()
	w := newWorkspace(adminOwner(), src, slowPolls(), zerolog.Nop())

	q := model.ListQuery{Timeframe: model.TimeframeMonth, Month: "2024-05"}
	require.NoError(t, w.SetQuery(context.Background(), Active, q))

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, q, src.lastQuery)
	assert.Equal(t, q, w.Query(Active))
}

func TestSetQueryDropsRowsOutsideTheNewFilter(t *testing.T) {
	april := time.Date(2024, 4, 10, 8, 0, 0, 0, time.UTC)
	may := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	src := newFakeSource()
	src.active = []model.Complaint{
		{ID: 3, Status: model.StatusPending, CreatedAt: &may},
		{ID: 2, Status: model.StatusPending, CreatedAt: &april},
		{ID: 1, Status: model.StatusPending, CreatedAt: &april},
	}
	w := newWorkspace(adminOwner(), src, slowPolls(), zerolog.Nop())
	ctx := context.Background()

	list, err := w.Complaints(Active)
	require.NoError(t, err)
	require.NoError(t, list.Refresh(ctx))
	require.Len(t, list.Snapshot().Items, 3)

	require.NoError(t, w.SetQuery(ctx, Active, model.ListQuery{Timeframe: model.TimeframeMonth, Month: "2024-05"}))
	items := list.Snapshot().Items
	require.Len(t, items, 1)
	assert.Equal(t, int64(3), items[0].ID)

	require.NoError(t, w.SetQuery(ctx, Active, model.ListQuery{Timeframe: model.TimeframeMonth, Month: "2024-04"}))
	var got []int64
	for _, c := range list.Snapshot().Items {
		got = append(got, c.ID)
	}
	assert.Equal(t, []int64{2, 1}, got)
}

func TestTaskforceDismissedKeepsOwnDismissals(t *testing.T) {
	src := newFakeSource()
	src.dismissed = []model.Complaint{
		{ID: 1, Status: model.StatusDismissed, DismissedBy: &model.PersonnelRef{ID: 7}},
		{ID: 2, Status: model.StatusDismissed, DismissedBy: &model.PersonnelRef{ID: 8}},
	}
	owner := model.PersonnelIdentity(model.Personnel{ID: 7, FullName: "Ana"})
	w := newWorkspace(owner, src, slowPolls(), zerolog.Nop())

	list, err := w.Complaints(TaskforceDismissed)
	require.NoError(t, err)
	require.NoError(t, list.Refresh(context.Background()))

	snap := list.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, int64(1), snap.Items[0].ID)
}

func TestWorkspaceRejectsForeignViews(t *testing.T) {
	owner := model.PersonnelIdentity(model.Personnel{ID: 7})
	w := newWorkspace(owner, newFakeSource(), slowPolls(), zerolog.Nop())

	_, err := w.Snapshot(Active)
	assert.ErrorIs(t, err, ErrViewNotAllowed)

	admin := newWorkspace(adminOwner(), newFakeSource(), slowPolls(), zerolog.Nop())
	_, err = admin.Complaints(Personnel)
	assert.ErrorIs(t, err, ErrNotComplaints)

	snap, err := admin.Snapshot(Personnel)
	require.NoError(t, err)
	assert.IsType(t, poller.Snapshot[model.Personnel]{}, snap)
}

func TestRegistryMountGetUnmount(t *testing.T) {
	src := newFakeSource()
	reg := NewRegistry(src, slowPolls(), time.Hour, zerolog.Nop())
	defer reg.Close()

	w, err := reg.Mount("s1", adminOwner())
	require.NoError(t, err)

	again, err := reg.Mount("s1", adminOwner())
	require.NoError(t, err)
	assert.Same(t, w, again)

	list, _ := w.Complaints(Active)
	require.Eventually(t, func() bool { return list.Snapshot().Loaded }, time.Second, 5*time.Millisecond)

	got, ok := reg.Get("s1")
	require.True(t, ok)
	assert.Same(t, w, got)

	reg.Unmount("s1")
	_, ok = reg.Get("s1")
	assert.False(t, ok)
	assert.ErrorIs(t, list.Refresh(context.Background()), poller.ErrStopped)

	_, err = reg.Mount("s2", model.CommuterIdentity(model.Commuter{ID: 1, Verified: true}))
	assert.ErrorIs(t, err, ErrNoViews)
}

func TestRegistryRemountsForNewOwner(t *testing.T) {
	reg := NewRegistry(newFakeSource(), slowPolls(), time.Hour, zerolog.Nop())
	defer reg.Close()

	first, err := reg.Mount("s1", adminOwner())
	require.NoError(t, err)
	second, err := reg.Mount("s1", model.PersonnelIdentity(model.Personnel{ID: 7}))
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	list, _ := first.Complaints(Active)
	assert.ErrorIs(t, list.Refresh(context.Background()), poller.ErrStopped)
}

func TestRegistryReapsIdleWorkspaces(t *testing.T) {
	reg := NewRegistry(newFakeSource(), slowPolls(), 30*time.Minute, zerolog.Nop())
	defer reg.Close()
	now := time.Now()
	reg.now = func() time.Time { return now }

	_, err := reg.Mount("idle", adminOwner())
	require.NoError(t, err)
	now = now.Add(20 * time.Minute)
	_, err = reg.Mount("busy", adminOwner())
	require.NoError(t, err)

	now = now.Add(15 * time.Minute)
	assert.Equal(t, 1, reg.Reap())

	_, ok := reg.Get("idle")
	assert.False(t, ok)
	_, ok = reg.Get("busy")
	assert.True(t, ok)
}
