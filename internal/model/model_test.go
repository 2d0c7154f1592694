package model

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory("  hit AND run ")
	require.True(t, ok)
	assert.Equal(t, CategoryHitAndRun, c)

	_, ok = ParseCategory("Speeding")
	assert.False(t, ok)
	_, ok = ParseCategory("")
	assert.False(t, ok)

	assert.Len(t, Categories(), 5)
}

func TestNormalizeStatus(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		in   Complaint
		want Status
	}{
		{"upper case", Complaint{Status: "ASSIGNED"}, StatusAssigned},
		{"empty", Complaint{}, StatusPending},
		{"empty with personnel", Complaint{AssignedPersonnel: &PersonnelRef{ID: 7}}, StatusAssigned},
		{"unknown with ticket", Complaint{Status: "closed", TicketNumber: "1"}, StatusResolved},
		{"empty with dismissal", Complaint{DismissedAt: &now}, StatusDismissed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := tc.in
			c.Normalize(ComplaintKindEmergency)
			assert.Equal(t, tc.want, c.Status)
			assert.Equal(t, ComplaintKindEmergency, c.Kind)
		})
	}

	c := Complaint{Kind: ComplaintKindStandard}
	c.Normalize(ComplaintKindEmergency)
	assert.Equal(t, ComplaintKindStandard, c.Kind, "kind from the API is kept")
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusAssigned.Terminal())
	assert.True(t, StatusResolved.Terminal())
	assert.True(t, StatusDismissed.Terminal())
}

func TestParseListQuery(t *testing.T) {
	q, err := ParseListQuery(url.Values{
		"timeframe":        {"Custom"},
		"start_date":       {"2024-03-01"},
		"end_date":         {"2024-03-31"},
		"include_archived": {"1"},
	})
	require.NoError(t, err)
	assert.Equal(t, TimeframeCustom, q.Timeframe)
	assert.True(t, q.IncludeArchived)
	assert.Equal(t, "custom", q.Values().Get("timeframe"))
	assert.Equal(t, "true", q.Values().Get("include_archived"))

	_, err = ParseListQuery(url.Values{"timeframe": {"custom"}})
	assert.Error(t, err)

	_, err = ParseListQuery(url.Values{"start_date": {"2024-03-31"}, "end_date": {"2024-03-01"}})
	assert.Error(t, err)

	_, err = ParseListQuery(url.Values{"month": {"March"}})
	assert.Error(t, err)

	_, err = ParseListQuery(url.Values{"include_archived": {"maybe"}})
	assert.Error(t, err)

	q, err = ParseListQuery(url.Values{})
	require.NoError(t, err)
	assert.Empty(t, q.Values())
}

func TestIdentity(t *testing.T) {
	id := PersonnelIdentity(Personnel{ID: 7, FullName: "Juan Dela Cruz"})
	assert.True(t, id.IsPersonnel())
	assert.False(t, id.IsAdmin())
	assert.Equal(t, PersonnelRef{ID: 7, Name: "Juan Dela Cruz"}, id.Ref())

	admin := AdminIdentity(Admin{ID: 1, Username: "root"})
	assert.Equal(t, "root", admin.DisplayName())

	assert.Equal(t, int64(0), Identity{Role: RoleCommuter}.ID())
}
