// Package gatewaytest runs an in-memory SK3 API for tests.
package gatewaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"time"

	"sk3-portal/internal/model"
)

// Server is a fake SK3 API. Its state is plain data guarded by one mutex and
// may be seeded or inspected by tests through the exported helpers.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	nextID     int64
	complaints map[int64]*model.Complaint
	personnel  map[int64]model.Personnel
	drivers    map[string]model.Driver
	pending    map[int64]model.PendingAccount
	calls      map[string]int
	failures   map[string]int
	gates      map[string]chan struct{}
	sms        []model.SMSRequest
}

func NewServer() *Server {
	s := &Server{
		nextID:     100,
		complaints: make(map[int64]*model.Complaint),
		personnel: map[int64]model.Personnel{
			7: {ID: 7, FullName: "Ana Santos", Username: "ana", Role: model.PersonnelRoleSK, Location: "Brgy. 1"},
			8: {ID: 8, FullName: "Ben Cruz", Username: "ben", Role: model.PersonnelRoleSK, Location: "Brgy. 2"},
		},
		drivers: map[string]model.Driver{
			"ABC-123": {ID: 10, FullName: "Jose Rizal", PlateNumber: "ABC-123", Toda: "TODA 5"},
		},
		pending: map[int64]model.PendingAccount{
			31: {ID: 31, Name: "Pia", ContactNumber: "09171234567"},
		},
		calls:    make(map[string]int),
		failures: make(map[string]int),
		gates:    make(map[string]chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /complaints", s.submit(model.ComplaintKindStandard))
	mux.HandleFunc("POST /emergency-complaints", s.submit(model.ComplaintKindEmergency))
	mux.HandleFunc("GET /complaints", s.list(liveOnly, func(c *model.Complaint) bool {
		return c.Kind == model.ComplaintKindStandard && !c.Status.Terminal()
	}))
	mux.HandleFunc("GET /emergency-complaints", s.list(liveOnly, ofKind(model.ComplaintKindEmergency)))
	mux.HandleFunc("GET /complaints/archived", s.list(archivedOnly, ofKind(model.ComplaintKindStandard)))
	mux.HandleFunc("GET /emergency-complaints/archived", s.list(archivedOnly, ofKind(model.ComplaintKindEmergency)))
	mux.HandleFunc("GET /complaints/resolved", s.list(anyArchive, func(c *model.Complaint) bool {
		return c.Status == model.StatusResolved
	}))
	mux.HandleFunc("GET /complaints/dismissed", s.list(anyArchive, func(c *model.Complaint) bool {
		return c.Status == model.StatusDismissed
	}))
	mux.HandleFunc("GET /tickets", s.list(anyArchive, func(c *model.Complaint) bool {
		return c.Status == model.StatusResolved && c.TicketNumber != ""
	}))
	mux.HandleFunc("GET /personnel/{id}/complaints", s.assigned)
	for _, kind := range []model.ComplaintKind{model.ComplaintKindStandard, model.ComplaintKindEmergency} {
		base := "POST /complaints/{id}"
		if kind == model.ComplaintKindEmergency {
			base = "POST /emergency-complaints/{id}"
		}
		mux.HandleFunc(base+"/assign", s.assign(kind))
		mux.HandleFunc(base+"/archive", s.archive(kind))
		mux.HandleFunc(base+"/resolve", s.resolve(kind))
		mux.HandleFunc(base+"/dismiss", s.dismiss(kind))
	}
	mux.HandleFunc("POST /notifications/sms", s.sendSMS)
	mux.HandleFunc("GET /personnel", s.listPersonnel)
	mux.HandleFunc("POST /personnel", s.createPersonnel)
	mux.HandleFunc("DELETE /personnel/{id}", s.deletePersonnel)
	mux.HandleFunc("GET /commuters/pending", s.listPending)
	mux.HandleFunc("POST /commuters/{id}/approve", s.approve)
	mux.HandleFunc("POST /auth/{role}/login", s.login)
	mux.HandleFunc("GET /drivers/plate/{plate}", s.driver)

	s.Server = httptest.NewServer(s.track(mux))
	return s
}

// track counts calls per route pattern and applies injected failures and gates.
func (s *Server) track(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, pattern := mux.Handler(r)

		s.mu.Lock()
		s.calls[pattern]++
		gate := s.gates[pattern]
		fail := s.failures[pattern]
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if fail != 0 {
			writeError(w, fail, "injected failure")
			return
		}
		mux.ServeHTTP(w, r)
	})
}

// Calls returns how often the route pattern (for example
// "POST /complaints/{id}/assign") was hit.
func (s *Server) Calls(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[pattern]
}

// Fail makes every call to pattern answer with status until Fail(pattern, 0).
func (s *Server) Fail(pattern string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, pattern)
		return
	}
	s.failures[pattern] = status
}

// Hold blocks calls to pattern until the returned release function runs.
func (s *Server) Hold(pattern string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[pattern] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, pattern)
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Seed stores c as if it had been submitted and returns its id.
func (s *Server) Seed(c model.Complaint) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		s.nextID++
		c.ID = s.nextID
	}
	if c.Kind == "" {
		c.Kind = model.ComplaintKindStandard
	}
	if c.Status == "" {
		c.Status = model.StatusPending
	}
	s.complaints[c.ID] = &c
	return c.ID
}

func (s *Server) Complaint(id int64) (model.Complaint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.complaints[id]
	if !ok {
		return model.Complaint{}, false
	}
	return *c, true
}

func (s *Server) SMS() []model.SMSRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SMSRequest, len(s.sms))
	copy(out, s.sms)
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": payload})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

func (s *Server) submit(kind model.ComplaintKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.ReportInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		now := time.Now().UTC()
		c := model.Complaint{
			Kind:             kind,
			Name:             in.Name,
			ContactNumber:    in.ContactNumber,
			Category:         in.Category,
			Details:          in.Details,
			IncidentDateTime: in.IncidentDateTime,
			Location:         in.Location,
			Latitude:         in.Latitude,
			Longitude:        in.Longitude,
			PlateNumber:      in.PlateNumber,
			Status:           model.StatusPending,
			CreatedAt:        &now,
		}
		id := s.Seed(c)
		created, _ := s.Complaint(id)
		writeJSON(w, http.StatusCreated, created)
	}
}

type archiveScope int

const (
	anyArchive archiveScope = iota
	liveOnly
	archivedOnly
)

func ofKind(kind model.ComplaintKind) func(*model.Complaint) bool {
	return func(c *model.Complaint) bool { return c.Kind == kind }
}

// inQuery applies the month, date range and include_archived filters the real
// API accepts. Dates are compared against CreatedAt in UTC.
func inQuery(c *model.Complaint, scope archiveScope, q model.ListQuery) bool {
	switch scope {
	case liveOnly:
		if c.Archived() && !q.IncludeArchived {
			return false
		}
	case archivedOnly:
		if !c.Archived() {
			return false
		}
	}
	if q.Month == "" && q.StartDate == "" && q.EndDate == "" {
		return true
	}
	if c.CreatedAt == nil {
		return false
	}
	created := c.CreatedAt.UTC()
	if q.Month != "" && created.Format("2006-01") != q.Month {
		return false
	}
	day := created.Format(time.DateOnly)
	if q.StartDate != "" && day < q.StartDate {
		return false
	}
	if q.EndDate != "" && day > q.EndDate {
		return false
	}
	return true
}

func (s *Server) list(scope archiveScope, match func(*model.Complaint) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := model.ParseListQuery(r.URL.Query())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.mu.Lock()
		items := make([]model.Complaint, 0, len(s.complaints))
		for _, c := range s.complaints {
			if match(c) && inQuery(c, scope, q) {
				items = append(items, *c)
			}
		}
		s.mu.Unlock()
		sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
		writeJSON(w, http.StatusOK, items)
	}
}

func (s *Server) assigned(w http.ResponseWriter, r *http.Request) {
	personnelID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	s.list(liveOnly, func(c *model.Complaint) bool {
		return c.Status == model.StatusAssigned &&
			c.AssignedPersonnel != nil && c.AssignedPersonnel.ID == personnelID
	})(w, r)
}

// mutate runs fn on the complaint of kind named in the path while holding the
// lock.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, kind model.ComplaintKind, fn func(c *model.Complaint) (int, string)) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	s.mu.Lock()
	c, ok := s.complaints[id]
	if !ok || c.Kind != kind {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "complaint not found")
		return
	}
	status, msg := fn(c)
	snapshot := *c
	s.mu.Unlock()

	if status >= 300 {
		writeError(w, status, msg)
		return
	}
	writeJSON(w, status, snapshot)
}

func (s *Server) assign(kind model.ComplaintKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body model.AssignRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		s.mutate(w, r, kind, func(c *model.Complaint) (int, string) {
			if c.Status != model.StatusPending {
				return http.StatusConflict, "complaint is not pending"
			}
			p, ok := s.personnel[body.PersonnelID]
			if !ok {
				return http.StatusUnprocessableEntity, "unknown personnel"
			}
			c.Status = model.StatusAssigned
			c.AssignedPersonnel = &model.PersonnelRef{ID: p.ID, Name: p.FullName}
			return http.StatusOK, ""
		})
	}
}

func (s *Server) archive(kind model.ComplaintKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mutate(w, r, kind, func(c *model.Complaint) (int, string) {
			if c.Archived() {
				return http.StatusConflict, "already archived"
			}
			now := time.Now().UTC()
			c.ArchivedAt = &now
			return http.StatusOK, ""
		})
	}
}

func (s *Server) resolve(kind model.ComplaintKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body model.ResolveRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		s.mutate(w, r, kind, func(c *model.Complaint) (int, string) {
			if c.Status != model.StatusAssigned {
				return http.StatusConflict, "complaint is not assigned"
			}
			now := time.Now().UTC()
			c.Status = model.StatusResolved
			c.Resolution = body.Resolution
			c.TicketNumber = body.TicketNumber
			c.ResolvedBy = &model.PersonnelRef{ID: body.ResolvedBy, Name: body.ResolverName}
			c.ResolvedAt = &now
			return http.StatusOK, ""
		})
	}
}

func (s *Server) dismiss(kind model.ComplaintKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body model.DismissRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		s.mutate(w, r, kind, func(c *model.Complaint) (int, string) {
			if c.Status != model.StatusAssigned {
				return http.StatusConflict, "complaint is not assigned"
			}
			now := time.Now().UTC()
			c.Status = model.StatusDismissed
			c.DismissReason = body.Reason
			c.DismissedBy = &model.PersonnelRef{ID: body.DismissedBy, Name: body.DismisserName}
			c.DismissedAt = &now
			return http.StatusOK, ""
		})
	}
}

func (s *Server) sendSMS(w http.ResponseWriter, r *http.Request) {
	var body model.SMSRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	s.sms = append(s.sms, body)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

func (s *Server) listPersonnel(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := make([]model.Personnel, 0, len(s.personnel))
	for _, p := range s.personnel {
		items = append(items, p)
	}
	s.mu.Unlock()
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) createPersonnel(w http.ResponseWriter, r *http.Request) {
	var in model.PersonnelInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	s.nextID++
	p := model.Personnel{
		ID:            s.nextID,
		FullName:      in.FullName,
		Username:      in.Username,
		ContactNumber: in.ContactNumber,
		Role:          in.Role,
		Location:      in.Location,
	}
	s.personnel[p.ID] = p
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) deletePersonnel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	s.mu.Lock()
	_, exists := s.personnel[id]
	delete(s.personnel, id)
	s.mu.Unlock()
	if !exists {
		writeError(w, http.StatusNotFound, "personnel not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listPending(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := make([]model.PendingAccount, 0, len(s.pending))
	for _, a := range s.pending {
		items = append(items, a)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	s.mu.Lock()
	_, exists := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()
	if !exists {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"approved": true})
}

// login accepts password "secret" for the fixed accounts: admin "admin",
// personnel "ana" and "ben", commuter "lito" (verified) and "nora" (not yet
// verified).
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if creds.Password != "secret" {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	switch r.PathValue("role") {
	case "admin":
		if creds.Username == "admin" {
			writeJSON(w, http.StatusOK, model.Admin{ID: 1, Username: "admin", FullName: "SK Admin"})
			return
		}
	case "personnel":
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, p := range s.personnel {
			if p.Username == creds.Username {
				writeJSON(w, http.StatusOK, p)
				return
			}
		}
	case "commuter":
		switch creds.Username {
		case "lito":
			writeJSON(w, http.StatusOK, model.Commuter{ID: 21, Name: "Lito Lapid", ContactNumber: "09171112222", Verified: true})
			return
		case "nora":
			writeJSON(w, http.StatusOK, model.Commuter{ID: 22, Name: "Nora Aunor", ContactNumber: "09173334444", Verified: false})
			return
		}
	}
	writeError(w, http.StatusUnauthorized, "invalid credentials")
}

func (s *Server) driver(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	d, ok := s.drivers[r.PathValue("plate")]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "driver not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}
