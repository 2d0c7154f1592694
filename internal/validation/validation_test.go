package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sk3-portal/internal/lifecycle"
	"sk3-portal/internal/model"
)

func validReport() model.ReportInput {
	return model.ReportInput{
		Name:             "Maria Santos",
		ContactNumber:    "09171234567",
		Category:         "overcharging",
		Details:          "Driver asked for 100 pesos for a 20 peso trip",
		IncidentDateTime: "2024-05-01T08:30",
		PlateNumber:      "abc-123",
	}
}

func capturedAt(t *testing.T, lat, lng float64) *GeoCapture {
	t.Helper()
	geo := NewGeoCapture()
	require.NoError(t, geo.Pick(lat, lng, ""))
	return geo
}

func TestReportValid(t *testing.T) {
	out, err := Report(validReport(), capturedAt(t, 14.5995, 120.9842))
	require.NoError(t, err)

	assert.Equal(t, model.CategoryOvercharging, out.Category)
	assert.Equal(t, "ABC-123", out.PlateNumber)
	require.NotNil(t, out.Latitude)
	assert.InDelta(t, 14.5995, *out.Latitude, 1e-9)
	assert.Equal(t, "14.599500, 120.984200", out.Location)
}

func TestReportEachRequiredField(t *testing.T) {
	cases := map[string]func(*model.ReportInput){
		"name":              func(r *model.ReportInput) { r.Name = "  " },
		"contact_number":    func(r *model.ReportInput) { r.ContactNumber = "" },
		"category":          func(r *model.ReportInput) { r.Category = "" },
		"details":           func(r *model.ReportInput) { r.Details = "" },
		"incident_datetime": func(r *model.ReportInput) { r.IncidentDateTime = "" },
		"plate_number":      func(r *model.ReportInput) { r.PlateNumber = "" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			in := validReport()
			mutate(&in)

			_, err := Report(in, capturedAt(t, 14.6, 121.0))
			var verr *lifecycle.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Len(t, verr.Fields, 1)
			assert.Contains(t, verr.Fields, field)
		})
	}
}

func TestReportRequiresCoordinates(t *testing.T) {
	in := validReport()
	in.Location = "Quiapo church"

	_, err := Report(in, NewGeoCapture())
	var verr *lifecycle.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "location")

	_, err = Report(in, nil)
	require.Error(t, err)
}

func TestReportTypedLabelOverridesDerived(t *testing.T) {
	in := validReport()
	in.Location = "Quiapo church"

	out, err := Report(in, capturedAt(t, 14.5987, 120.9836))
	require.NoError(t, err)
	assert.Equal(t, "Quiapo church", out.Location)
}

func TestReportRejectsUnknownCategoryAndBadDate(t *testing.T) {
	in := validReport()
	in.Category = "Littering"
	in.IncidentDateTime = "yesterday"

	_, err := Report(in, capturedAt(t, 14.6, 121.0))
	var verr *lifecycle.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Category is not recognized", verr.Fields["category"])
	assert.Equal(t, "Incident date and time is invalid", verr.Fields["incident_datetime"])
}

func TestPersonnelForcesRole(t *testing.T) {
	out, err := Personnel(model.PersonnelInput{
		FullName:      "Juan Dela Cruz",
		Username:      "jdelacruz",
		Password:      "s3cret!",
		ContactNumber: "0917 555 0101",
		Role:          "Administrator",
		Location:      "Barangay 12",
	})
	require.NoError(t, err)
	assert.Equal(t, model.PersonnelRoleSK, out.Role)

	_, err = Personnel(model.PersonnelInput{})
	var verr *lifecycle.ValidationError
	require.True(t, errors.As(err, &verr))
	for _, field := range []string{"full_name", "contact_number", "username", "password", "location"} {
		assert.Contains(t, verr.Fields, field)
	}
}

func TestRequired(t *testing.T) {
	v, err := Required("message", "  on the way ", "Message is required")
	require.NoError(t, err)
	assert.Equal(t, "on the way", v)

	_, err = Required("message", " ", "Message is required")
	var verr *lifecycle.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Message is required", verr.Fields["message"])
}

func TestGeoCaptureLatestClickWins(t *testing.T) {
	geo := NewGeoCapture()
	_, ok := geo.Resolved()
	assert.False(t, ok)

	require.NoError(t, geo.SetDevice(14.60, 121.00, "Current location"))
	point, ok := geo.Resolved()
	require.True(t, ok)
	assert.Equal(t, SourceDevice, point.Source)

	require.NoError(t, geo.Pick(14.61, 121.01, ""))
	require.NoError(t, geo.Pick(14.62, 121.02, "Terminal"))
	point, _ = geo.Resolved()
	assert.Equal(t, SourceMap, point.Source)
	assert.InDelta(t, 14.62, point.Latitude, 1e-9)
	assert.Equal(t, "Terminal", point.Label)

	// a late device fix does not override the user's pick
	require.NoError(t, geo.SetDevice(14.70, 121.10, ""))
	point, _ = geo.Resolved()
	assert.InDelta(t, 14.62, point.Latitude, 1e-9)
}

func TestGeoCaptureRejectsBadCoordinates(t *testing.T) {
	geo := NewGeoCapture()
	assert.Error(t, geo.Pick(91, 0, ""))
	assert.Error(t, geo.Pick(0, 0, ""))
	assert.Error(t, geo.Set("satellite", 14.6, 121.0, ""))
}

func TestDraftsExpire(t *testing.T) {
	drafts := NewDrafts(time.Hour)
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	drafts.now = func() time.Time { return now }

	geo := drafts.Geo("session-1")
	require.NoError(t, geo.Pick(14.6, 121.0, ""))
	assert.Same(t, geo, drafts.Geo("session-1"))

	now = now.Add(2 * time.Hour)
	drafts.Geo("session-2")
	_, ok := drafts.Geo("session-1").Resolved()
	assert.False(t, ok)
}
