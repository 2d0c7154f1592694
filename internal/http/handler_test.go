package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sk3-portal/internal/config"
	"sk3-portal/internal/gateway"
	"sk3-portal/internal/gateway/gatewaytest"
	"sk3-portal/internal/model"
	"sk3-portal/internal/ocr"
	"sk3-portal/internal/service"
	"sk3-portal/internal/session"
	"sk3-portal/internal/validation"
	"sk3-portal/internal/views"
)

const testCookie = "sk3_session"

type testEnv struct {
	api    *gatewaytest.Server
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := gatewaytest.NewServer()
	t.Cleanup(api.Close)

	log := zerolog.Nop()
	client := gateway.New(api.URL, 2*time.Second, log)
	polls := config.PollConfig{
		Active: time.Minute, Archived: time.Minute, Emergency: time.Minute,
		ArchivedEmergency: time.Minute, Resolved: time.Minute, Dismissed: time.Minute,
		Tickets: time.Minute, Personnel: time.Minute, PendingAccounts: time.Minute,
		Assigned: time.Minute,
	}
	registry := views.NewRegistry(client, polls, time.Hour, log)
	t.Cleanup(registry.Close)

	recognizer := ocr.RecognizerFunc(func(context.Context, []byte, string) (string, error) {
		return "TICKET NO. 004521", nil
	})
	store := session.NewStore(session.NewMemoryBackend(), time.Hour, log)
	tokens := session.NewTokens("test-secret", time.Hour)

	complaints := service.NewComplaintService(client, registry, validation.NewDrafts(time.Hour), nil, log)
	taskforce := service.NewTaskforceService(client, registry, recognizer, nil, false, nil, log)
	auth := service.NewAuthService(client, store, tokens, registry, log)

	handler := NewHandler(complaints, taskforce, auth, CookieConfig{Name: testCookie, TTL: time.Hour}, log)
	return &testEnv{api: api, router: NewRouter(handler, auth, "test")}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, role model.Role, username string) *http.Cookie {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/auth/"+string(role)+"/login",
		model.Credentials{Username: username, Password: "secret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == testCookie {
			require.True(t, c.HttpOnly)
			return c
		}
	}
	t.Fatalf("no session cookie in login response")
	return nil
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func validReport() model.ReportInput {
	return model.ReportInput{
		Category:         model.CategoryOvercharging,
		Details:          "Charged 50 for a 20 ride",
		IncidentDateTime: "2026-10-01T08:30",
		PlateNumber:      "abc-123",
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadiness(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHandler(nil, nil, nil, CookieConfig{Name: testCookie}, zerolog.Nop())
	down := NewRouter(handler, nil, "test",
		ReadinessCheck{Name: "postgres", Check: func(context.Context) error { return nil }},
		ReadinessCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	)

	rec := httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
	assert.NotContains(t, rec.Body.String(), "postgres")

	rec = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesWithoutSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/admin/views/active", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "/login/admin", body["redirect"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/taskforce/views/assigned", nil)
	req.Header.Set("Accept", "text/html")
	page := httptest.NewRecorder()
	env.router.ServeHTTP(page, req)
	assert.Equal(t, http.StatusFound, page.Code)
	assert.Equal(t, "/login/personnel", page.Header().Get("Location"))
}

func TestSessionOfAnotherRoleIsRejected(t *testing.T) {
	env := newTestEnv(t)
	commuter := env.login(t, model.RoleCommuter, "lito")

	rec := env.do(t, http.MethodGet, "/api/v1/admin/views", nil, commuter)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginErrors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/admin/login", model.Credentials{})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "username")

	rec = env.do(t, http.MethodPost, "/api/v1/auth/admin/login", model.Credentials{Username: "admin", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/commuter/login", model.Credentials{Username: "nora", Password: "secret"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutEndsSession(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, model.RoleAdmin, "admin")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/logout", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/views", nil, admin)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCommuterReport(t *testing.T) {
	env := newTestEnv(t)
	commuter := env.login(t, model.RoleCommuter, "lito")

	rec := env.do(t, http.MethodGet, "/api/v1/commuter/me", nil, commuter)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Lito Lapid")

	rec = env.do(t, http.MethodPost, "/api/v1/commuter/reports", validReport(), commuter)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Select a location on the map")
	assert.Zero(t, env.api.Calls("POST /complaints"))

	rec = env.do(t, http.MethodPost, "/api/v1/commuter/report/location", gin.H{
		"source": "map", "latitude": 14.5995, "longitude": 120.9842,
	}, commuter)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/commuter/reports", validReport(), commuter)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created model.Complaint
	decodeData(t, rec, &created)
	stored, ok := env.api.Complaint(created.ID)
	require.True(t, ok)
	assert.Equal(t, "Lito Lapid", stored.Name)
	assert.Equal(t, "ABC-123", stored.PlateNumber)
}

func TestEmergencyReportUsesDraftCookie(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/emergency/location", gin.H{
		"source": "device", "latitude": 14.6, "longitude": 121.0,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var draft *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == draftCookie {
			draft = c
		}
	}
	require.NotNil(t, draft)

	in := validReport()
	in.Name = "Maria"
	in.ContactNumber = "09170000000"

	rec = env.do(t, http.MethodPost, "/api/v1/emergency/reports", in)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, "a new draft has no location")

	rec = env.do(t, http.MethodPost, "/api/v1/emergency/reports", in, draft)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, env.api.Calls("POST /emergency-complaints"))
}

func TestAssignEndpoint(t *testing.T) {
	env := newTestEnv(t)
	id := env.api.Seed(model.Complaint{Name: "Lito", PlateNumber: "ABC-123", Category: model.CategoryAssault})
	admin := env.login(t, model.RoleAdmin, "admin")
	path := "/api/v1/admin/complaints/" + strconv.FormatInt(id, 10) + "/assign"

	rec := env.do(t, http.MethodPost, path, model.AssignRequest{}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, path, model.AssignRequest{PersonnelID: 7}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated model.Complaint
	decodeData(t, rec, &updated)
	assert.Equal(t, model.StatusAssigned, updated.Status)

	rec = env.do(t, http.MethodPost, path, model.AssignRequest{PersonnelID: 8}, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/admin/complaints/abc/assign", model.AssignRequest{PersonnelID: 7}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminViewFilters(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, model.RoleAdmin, "admin")

	rec := env.do(t, http.MethodGet, "/api/v1/admin/views", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pending-accounts")

	rec = env.do(t, http.MethodGet, "/api/v1/admin/views/active?timeframe=week", nil, admin)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/views/active?timeframe=decade", nil, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/views/assigned", nil, admin)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/views/nope", nil, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type complaintSnapshot struct {
	Items  []model.Complaint `json:"items"`
	Loaded bool              `json:"loaded"`
}

func viewIDs(t *testing.T, rec *httptest.ResponseRecorder) []int64 {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var snap complaintSnapshot
	decodeData(t, rec, &snap)
	assert.True(t, snap.Loaded)
	ids := make([]int64, 0, len(snap.Items))
	for _, c := range snap.Items {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestAdminViewMonthFilterNarrowsRows(t *testing.T) {
	env := newTestEnv(t)
	april := time.Date(2024, 4, 12, 9, 0, 0, 0, time.UTC)
	may := time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC)
	mayArchivedAt := time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)
	inApril := env.api.Seed(model.Complaint{PlateNumber: "ABC-123", CreatedAt: &april})
	inMay := env.api.Seed(model.Complaint{PlateNumber: "ABC-123", CreatedAt: &may})
	archived := env.api.Seed(model.Complaint{PlateNumber: "ABC-123", CreatedAt: &may, ArchivedAt: &mayArchivedAt})
	admin := env.login(t, model.RoleAdmin, "admin")

	rec := env.do(t, http.MethodGet, "/api/v1/admin/views/active?timeframe=month&month=2024-05", nil, admin)
	assert.Equal(t, []int64{inMay}, viewIDs(t, rec))

	rec = env.do(t, http.MethodGet, "/api/v1/admin/views/active?timeframe=month&month=2024-04", nil, admin)
	assert.Equal(t, []int64{inApril}, viewIDs(t, rec), "rows of the previous month are gone")

	rec = env.do(t, http.MethodGet, "/api/v1/admin/views/active?timeframe=month&month=2024-05&include_archived=true", nil, admin)
	assert.Equal(t, []int64{archived, inMay}, viewIDs(t, rec))

	rec = env.do(t, http.MethodGet, "/api/v1/admin/views/archived?timeframe=month&month=2024-04", nil, admin)
	assert.Empty(t, viewIDs(t, rec))
}

func TestTaskforceViewFilters(t *testing.T) {
	env := newTestEnv(t)
	april := time.Date(2024, 4, 12, 9, 0, 0, 0, time.UTC)
	may := time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC)
	ana := &model.PersonnelRef{ID: 7, Name: "Ana Santos"}
	env.api.Seed(model.Complaint{Status: model.StatusDismissed, DismissedBy: ana, DismissReason: "April", CreatedAt: &april})
	inMay := env.api.Seed(model.Complaint{Status: model.StatusDismissed, DismissedBy: ana, DismissReason: "May", CreatedAt: &may})
	personnel := env.login(t, model.RolePersonnel, "ana")

	rec := env.do(t, http.MethodGet, "/api/v1/taskforce/views/taskforce-dismissed?timeframe=decade", nil, personnel)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/taskforce/views/taskforce-dismissed?timeframe=month&month=2024-05", nil, personnel)
	assert.Equal(t, []int64{inMay}, viewIDs(t, rec))
}

func TestEmergencyAssignAndResolveEndpoints(t *testing.T) {
	env := newTestEnv(t)
	id := env.api.Seed(model.Complaint{Kind: model.ComplaintKindEmergency, Name: "Passerby", Category: model.CategoryAssault})
	admin := env.login(t, model.RoleAdmin, "admin")
	idPart := strconv.FormatInt(id, 10)

	rec := env.do(t, http.MethodPost, "/api/v1/admin/complaints/"+idPart+"/assign", model.AssignRequest{PersonnelID: 7}, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/admin/emergency/"+idPart+"/assign", model.AssignRequest{PersonnelID: 7}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated model.Complaint
	decodeData(t, rec, &updated)
	assert.Equal(t, model.StatusAssigned, updated.Status)
	assert.Equal(t, model.ComplaintKindEmergency, updated.Kind)

	personnel := env.login(t, model.RolePersonnel, "ana")
	body, contentType := multipartResolve(t, map[string]string{"resolution": "Responded", "complaint_id": idPart}, []byte("jpeg"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/taskforce/emergency/"+idPart+"/resolve", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(personnel)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, _ := env.api.Complaint(id)
	assert.Equal(t, model.StatusResolved, stored.Status)
	assert.Equal(t, "004521", stored.TicketNumber)
	assert.Equal(t, 1, env.api.Calls("POST /emergency-complaints/{id}/resolve"))
}

func TestUpstreamFailureMapsToBadGateway(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, model.RoleAdmin, "admin")
	env.api.Fail("POST /personnel", http.StatusInternalServerError)

	rec := env.do(t, http.MethodPost, "/api/v1/admin/personnel", model.PersonnelInput{
		FullName: "Cora Diaz", Username: "cora", Password: "secret12", ContactNumber: "09175556666", Location: "Brgy. 3",
	}, admin)
	assert.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())
}

func TestDriverLookup(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, model.RoleAdmin, "admin")

	rec := env.do(t, http.MethodGet, "/api/v1/admin/drivers/ABC-123", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Jose Rizal")

	rec = env.do(t, http.MethodGet, "/api/v1/admin/drivers/ZZZ-999", nil, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartResolve(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if image != nil {
		part, err := w.CreateFormFile("ticket_image", "ticket.jpg")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestResolveEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ana := &model.PersonnelRef{ID: 7, Name: "Ana Santos"}
	id := env.api.Seed(model.Complaint{Name: "Lito", PlateNumber: "ABC-123", Status: model.StatusAssigned, AssignedPersonnel: ana})
	other := env.api.Seed(model.Complaint{Name: "Pia", PlateNumber: "XYZ-789", Status: model.StatusAssigned, AssignedPersonnel: ana})
	personnel := env.login(t, model.RolePersonnel, "ana")
	path := "/api/v1/taskforce/complaints/" + strconv.FormatInt(id, 10) + "/resolve"

	send := func(fields map[string]string, image []byte) *httptest.ResponseRecorder {
		body, contentType := multipartResolve(t, fields, image)
		req := httptest.NewRequest(http.MethodPost, path, body)
		req.Header.Set("Content-Type", contentType)
		req.AddCookie(personnel)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	rec := send(map[string]string{"resolution": "Fined"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(map[string]string{"resolution": "Fined", "complaint_id": strconv.FormatInt(other, 10)}, []byte("jpeg"))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "photo picked for another complaint")

	rec = send(map[string]string{"resolution": " "}, []byte("jpeg"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = send(map[string]string{"resolution": "Fined", "complaint_id": strconv.FormatInt(id, 10)}, []byte("jpeg"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result service.ResolveResult
	decodeData(t, rec, &result)
	assert.Equal(t, "004521", result.TicketNumber)
	assert.False(t, result.OCRFallback)

	stored, _ := env.api.Complaint(id)
	assert.Equal(t, model.StatusResolved, stored.Status)
}

func TestDismissEndpoint(t *testing.T) {
	env := newTestEnv(t)
	id := env.api.Seed(model.Complaint{
		Name: "Lito", PlateNumber: "ABC-123", Status: model.StatusAssigned,
		AssignedPersonnel: &model.PersonnelRef{ID: 7, Name: "Ana Santos"},
	})
	personnel := env.login(t, model.RolePersonnel, "ana")
	path := "/api/v1/taskforce/complaints/" + strconv.FormatInt(id, 10) + "/dismiss"

	rec := env.do(t, http.MethodPost, path, gin.H{"reason": ""}, personnel)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPost, path, gin.H{"reason": "Driver not found"}, personnel)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/taskforce/views/taskforce-dismissed", nil, personnel)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Driver not found")
}

func TestStreamSendsSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.api.Seed(model.Complaint{Name: "Lito", PlateNumber: "ABC-123"})
	admin := env.login(t, model.RoleAdmin, "admin")

	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/admin/views/active/stream"
	header := http.Header{}
	header.Set("Cookie", admin.Name+"="+admin.Value)
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		View views.ViewID    `json:"view"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, views.Active, frame.View)
	assert.NotEmpty(t, frame.Data)
}
