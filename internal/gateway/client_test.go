package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sk3-portal/internal/gateway"
	"sk3-portal/internal/model"
)

func newClient(t *testing.T, handler http.HandlerFunc) *gateway.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return gateway.New(server.URL+"/api/", 2*time.Second, zerolog.Nop())
}

func TestListComplaintsSendsQueryAndNormalizes(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/complaints", r.URL.Path)
		assert.Equal(t, "month", r.URL.Query().Get("timeframe"))
		assert.Equal(t, "2024-05", r.URL.Query().Get("month"))
		assert.Equal(t, "true", r.URL.Query().Get("include_archived"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": 1, "status": "Pending", "category": "Overcharging"},
				{"id": 2, "assigned_personnel": map[string]any{"id": 7, "name": "Juan"}},
			},
		})
	})

	items, err := client.ListComplaints(context.Background(), model.ListQuery{
		Timeframe:       model.TimeframeMonth,
		Month:           "2024-05",
		IncludeArchived: true,
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, model.StatusPending, items[0].Status)
	assert.Equal(t, model.ComplaintKindStandard, items[0].Kind)
	assert.Equal(t, model.StatusAssigned, items[1].Status)
}

func TestListAcceptsBareArrayAndItemsEnvelope(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/personnel":
			w.Write([]byte(`[{"id":7,"full_name":"Juan Dela Cruz","role":"SK Personnel"}]`))
		case "/api/emergency-complaints":
			w.Write([]byte(`{"data":{"items":[{"id":4,"status":"pending"}]}}`))
		default:
			http.NotFound(w, r)
		}
	})

	personnel, err := client.ListPersonnel(context.Background())
	require.NoError(t, err)
	require.Len(t, personnel, 1)
	assert.Equal(t, "Juan Dela Cruz", personnel[0].FullName)

	emergency, err := client.ListEmergency(context.Background(), model.ListQuery{})
	require.NoError(t, err)
	require.Len(t, emergency, 1)
	assert.Equal(t, model.ComplaintKindEmergency, emergency[0].Kind)
}

func TestAssignPostsPersonnel(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/complaints/12/assign", r.URL.Path)
		var body model.AssignRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(7), body.PersonnelID)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.Assign(context.Background(), model.ComplaintKindStandard, 12, 7))
}

func TestEmergencyActionsUseEmergencyPaths(t *testing.T) {
	var paths []string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	require.NoError(t, client.Assign(ctx, model.ComplaintKindEmergency, 4, 7))
	require.NoError(t, client.Resolve(ctx, model.ComplaintKindEmergency, 4, model.ResolveRequest{Resolution: "done"}))
	require.NoError(t, client.Dismiss(ctx, model.ComplaintKindEmergency, 4, model.DismissRequest{Reason: "duplicate"}))
	require.NoError(t, client.Resolve(ctx, model.ComplaintKindStandard, 4, model.ResolveRequest{Resolution: "done"}))

	assert.Equal(t, []string{
		"/api/emergency-complaints/4/assign",
		"/api/emergency-complaints/4/resolve",
		"/api/emergency-complaints/4/dismiss",
		"/api/complaints/4/resolve",
	}, paths)
}

func TestListAssignedKeepsServerKind(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/personnel/7/complaints", r.URL.Path)
		w.Write([]byte(`[{"id":4,"kind":"emergency","status":"assigned"},{"id":5,"status":"assigned"}]`))
	})

	items, err := client.ListAssigned(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, model.ComplaintKindEmergency, items[0].Kind)
	assert.Equal(t, model.ComplaintKindStandard, items[1].Kind)
}

func TestAPIErrorCarriesStatusAndMessage(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"complaint already archived"}`))
	})

	err := client.Archive(context.Background(), 5)
	require.Error(t, err)

	var apiErr *gateway.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "complaint already archived", apiErr.Message)
	assert.True(t, errors.Is(err, gateway.ErrNetwork))
	assert.Equal(t, http.StatusConflict, gateway.StatusCode(err))
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	client := gateway.New("http://127.0.0.1:1", 200*time.Millisecond, zerolog.Nop())

	err := client.SendSMS(context.Background(), 1, "on the way")
	require.Error(t, err)

	var netErr *gateway.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.True(t, errors.Is(err, gateway.ErrNetwork))
	assert.Equal(t, 0, gateway.StatusCode(err))
}

func TestDriverByPlateEscapesPath(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/drivers/plate/ABC 123", r.URL.Path)
		w.Write([]byte(`{"id":3,"full_name":"Pedro Reyes","plate_number":"ABC 123"}`))
	})

	driver, err := client.DriverByPlate(context.Background(), "ABC 123")
	require.NoError(t, err)
	assert.Equal(t, "Pedro Reyes", driver.FullName)
}
