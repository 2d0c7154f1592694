package model

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Timeframe string

const (
	TimeframeAll    Timeframe = "all"
	TimeframeToday  Timeframe = "today"
	TimeframeWeek   Timeframe = "week"
	TimeframeMonth  Timeframe = "month"
	TimeframeYear   Timeframe = "year"
	TimeframeCustom Timeframe = "custom"
)

// ListQuery carries the filters every list endpoint of the API accepts.
type ListQuery struct {
	Timeframe       Timeframe `json:"timeframe,omitempty"`
	Month           string    `json:"month,omitempty"`
	StartDate       string    `json:"start_date,omitempty"`
	EndDate         string    `json:"end_date,omitempty"`
	IncludeArchived bool      `json:"include_archived,omitempty"`
}

func (q ListQuery) Validate() error {
	switch q.Timeframe {
	case "", TimeframeAll, TimeframeToday, TimeframeWeek, TimeframeMonth, TimeframeYear, TimeframeCustom:
	default:
		return fmt.Errorf("unknown timeframe %q", q.Timeframe)
	}
	if q.Month != "" {
		if _, err := time.Parse("2006-01", q.Month); err != nil {
			return fmt.Errorf("month must be YYYY-MM")
		}
	}
	var start, end time.Time
	var err error
	if q.StartDate != "" {
		if start, err = time.Parse(time.DateOnly, q.StartDate); err != nil {
			return fmt.Errorf("start_date must be YYYY-MM-DD")
		}
	}
	if q.EndDate != "" {
		if end, err = time.Parse(time.DateOnly, q.EndDate); err != nil {
			return fmt.Errorf("end_date must be YYYY-MM-DD")
		}
	}
	if q.Timeframe == TimeframeCustom && (q.StartDate == "" || q.EndDate == "") {
		return fmt.Errorf("custom timeframe requires start_date and end_date")
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("end_date is before start_date")
	}
	return nil
}

func (q ListQuery) Values() url.Values {
	values := url.Values{}
	if q.Timeframe != "" {
		values.Set("timeframe", string(q.Timeframe))
	}
	if q.Month != "" {
		values.Set("month", q.Month)
	}
	if q.StartDate != "" {
		values.Set("start_date", q.StartDate)
	}
	if q.EndDate != "" {
		values.Set("end_date", q.EndDate)
	}
	if q.IncludeArchived {
		values.Set("include_archived", "true")
	}
	return values
}

func ParseListQuery(values url.Values) (ListQuery, error) {
	q := ListQuery{
		Timeframe: Timeframe(strings.ToLower(strings.TrimSpace(values.Get("timeframe")))),
		Month:     strings.TrimSpace(values.Get("month")),
		StartDate: strings.TrimSpace(values.Get("start_date")),
		EndDate:   strings.TrimSpace(values.Get("end_date")),
	}
	if raw := strings.TrimSpace(values.Get("include_archived")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return q, fmt.Errorf("include_archived must be a boolean")
		}
		q.IncludeArchived = v
	}
	return q, q.Validate()
}

type AssignRequest struct {
	PersonnelID int64 `json:"personnel_id"`
}

type SMSRequest struct {
	ComplaintID int64  `json:"complaint_id"`
	Message     string `json:"message"`
}

type ResolveRequest struct {
	Resolution   string `json:"resolution"`
	TicketNumber string `json:"ticket_number"`
	ResolvedBy   int64  `json:"resolved_by"`
	ResolverName string `json:"resolver_name"`
}

type DismissRequest struct {
	Reason        string `json:"reason"`
	DismissedBy   int64  `json:"dismissed_by"`
	DismisserName string `json:"dismisser_name"`
}
