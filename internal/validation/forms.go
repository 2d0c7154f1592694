// Package validation checks form input on submit and tracks the coordinate a
// report is filed at.
package validation

import (
	"regexp"
	"strings"
	"time"

	"sk3-portal/internal/lifecycle"
	"sk3-portal/internal/model"
)

var (
	phoneRx = regexp.MustCompile(`^\+?[0-9][0-9 \-]{6,18}[0-9]$`)
	plateRx = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 \-]{1,11}$`)
)

var incidentLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseIncidentTime accepts RFC 3339 and the datetime-local layouts browsers send.
func ParseIncidentTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range incidentLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Report validates a commuter or emergency report together with its captured
// location. On success it returns the normalized input ready to send.
func Report(in model.ReportInput, geo *GeoCapture) (model.ReportInput, error) {
	verr := lifecycle.NewValidationError()

	out := in
	out.Name = strings.TrimSpace(in.Name)
	out.ContactNumber = strings.TrimSpace(in.ContactNumber)
	out.Details = strings.TrimSpace(in.Details)
	out.PlateNumber = strings.ToUpper(strings.TrimSpace(in.PlateNumber))
	out.IncidentDateTime = strings.TrimSpace(in.IncidentDateTime)

	if out.Name == "" {
		verr.Add("name", "Name is required")
	}
	switch {
	case out.ContactNumber == "":
		verr.Add("contact_number", "Contact number is required")
	case !phoneRx.MatchString(out.ContactNumber):
		verr.Add("contact_number", "Contact number is invalid")
	}
	if blank(string(in.Category)) {
		verr.Add("category", "Category is required")
	} else if category, ok := model.ParseCategory(string(in.Category)); ok {
		out.Category = category
	} else {
		verr.Add("category", "Category is not recognized")
	}
	if out.Details == "" {
		verr.Add("details", "Details are required")
	}
	switch {
	case out.IncidentDateTime == "":
		verr.Add("incident_datetime", "Incident date and time is required")
	default:
		if _, ok := ParseIncidentTime(out.IncidentDateTime); !ok {
			verr.Add("incident_datetime", "Incident date and time is invalid")
		}
	}
	switch {
	case out.PlateNumber == "":
		verr.Add("plate_number", "Plate number is required")
	case !plateRx.MatchString(out.PlateNumber):
		verr.Add("plate_number", "Plate number is invalid")
	}

	point, ok := geo.Resolved()
	if !ok {
		verr.Add("location", "Select a location on the map")
	} else {
		lat, lng := point.Latitude, point.Longitude
		out.Latitude = &lat
		out.Longitude = &lng
		out.Location = point.Label
		if typed := strings.TrimSpace(in.Location); typed != "" {
			out.Location = typed
		}
	}

	if err := verr.OrNil(); err != nil {
		return in, err
	}
	return out, nil
}

// Personnel validates the admin's personnel creation form. The role is always
// forced to the SK Personnel role.
func Personnel(in model.PersonnelInput) (model.PersonnelInput, error) {
	verr := lifecycle.NewValidationError()

	out := in
	out.FullName = strings.TrimSpace(in.FullName)
	out.Username = strings.TrimSpace(in.Username)
	out.ContactNumber = strings.TrimSpace(in.ContactNumber)
	out.Location = strings.TrimSpace(in.Location)
	out.Role = model.PersonnelRoleSK

	if out.FullName == "" {
		verr.Add("full_name", "Name is required")
	}
	switch {
	case out.ContactNumber == "":
		verr.Add("contact_number", "Contact number is required")
	case !phoneRx.MatchString(out.ContactNumber):
		verr.Add("contact_number", "Contact number is invalid")
	}
	if out.Username == "" {
		verr.Add("username", "Username is required")
	}
	switch {
	case in.Password == "":
		verr.Add("password", "Password is required")
	case len(in.Password) < 6:
		verr.Add("password", "Password must be at least 6 characters")
	}
	if out.Location == "" {
		verr.Add("location", "Location is required")
	}

	if err := verr.OrNil(); err != nil {
		return in, err
	}
	return out, nil
}

// Required checks a single free-text field, as used by the notify, resolve and
// dismiss dialogs.
func Required(field, value, message string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		verr := lifecycle.NewValidationError()
		verr.Add(field, message)
		return "", verr
	}
	return value, nil
}
