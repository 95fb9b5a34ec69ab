package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStore serves canned query results for handler tests.
type mockStore struct {
	stubStore
	records []*Record
	summary *Summary

	lastFilter Filter
	lastLimit  int
}

func (m *mockStore) FindByProcessInstanceID(ctx context.Context, instanceID string) ([]*Record, error) {
	var out []*Record
	for _, r := range m.records {
		if r.ProcessInstanceID == instanceID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) FindByUserID(ctx context.Context, userID string) ([]*Record, error) {
	var out []*Record
	for _, r := range m.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) FindByTaskID(ctx context.Context, taskID string) ([]*Record, error) {
	var out []*Record
	for _, r := range m.records {
		if r.TaskID == taskID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) FindRecent(ctx context.Context, limit int) ([]*Record, error) {
	m.lastLimit = limit
	if limit > len(m.records) {
		limit = len(m.records)
	}
	return m.records[:limit], nil
}

func (m *mockStore) Search(ctx context.Context, filter Filter) ([]*Record, error) {
	m.lastFilter = filter
	return m.records, nil
}

func (m *mockStore) Summary(ctx context.Context) (*Summary, error) {
	return m.summary, nil
}

func newTestRouter(store Store) *mux.Router {
	router := mux.NewRouter()
	NewHandlers(store).RegisterRoutes(router)
	return router
}

func testRecords() []*Record {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []*Record{
		{
			ID: 1, ProcessInstanceID: "pi-1", EventType: EventProcessStarted,
			UserID: "alice", Action: "START", Timestamp: ts,
		},
		{
			ID: 2, ProcessInstanceID: "pi-1", EventType: EventTaskCompleted,
			UserID: "bob", TaskID: "task-1", NodeName: "Checker Approval",
			Action: "APPROVE", Timestamp: ts.Add(time.Minute),
		},
	}
}

func TestHandlers_ProcessTrail(t *testing.T) {
	router := newTestRouter(&mockStore{records: testRecords()})

	req := httptest.NewRequest("GET", "/audit/detailed/process/pi-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProcessTrailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pi-1", resp.ProcessInstanceID)
	assert.Equal(t, 2, resp.TotalEvents)
	require.Len(t, resp.AuditTrail, 2)
	assert.Equal(t, "alice started the process", resp.AuditTrail[0].Description)
}

func TestHandlers_ProcessTrail_NotFound(t *testing.T) {
	router := newTestRouter(&mockStore{})

	req := httptest.NewRequest("GET", "/audit/detailed/process/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No audit trail found for process: missing")
}

func TestHandlers_UserTrail(t *testing.T) {
	router := newTestRouter(&mockStore{records: testRecords()})

	req := httptest.NewRequest("GET", "/audit/detailed/user/bob", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp UserTrailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bob", resp.UserID)
	assert.Equal(t, 1, resp.TotalActions)
}

func TestHandlers_TaskTrail(t *testing.T) {
	router := newTestRouter(&mockStore{records: testRecords()})

	req := httptest.NewRequest("GET", "/audit/detailed/task/task-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp TaskTrailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "task-1", resp.TaskID)
	require.Len(t, resp.AuditTrail, 1)
	assert.Equal(t, "bob completed task 'Checker Approval' with decision: APPROVE",
		resp.AuditTrail[0].Description)
}

func TestHandlers_Recent(t *testing.T) {
	store := &mockStore{records: testRecords()}
	router := newTestRouter(store)

	req := httptest.NewRequest("GET", "/audit/detailed/recent?limit=1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.lastLimit)

	var resp RecentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Limit)
	assert.Len(t, resp.AuditTrail, 1)
}

func TestHandlers_Recent_DefaultLimit(t *testing.T) {
	store := &mockStore{records: testRecords()}
	router := newTestRouter(store)

	req := httptest.NewRequest("GET", "/audit/detailed/recent", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, store.lastLimit)
}

func TestHandlers_Search(t *testing.T) {
	store := &mockStore{records: testRecords()}
	router := newTestRouter(store)

	req := httptest.NewRequest("GET",
		"/audit/detailed/search?processInstanceId=pi-1&eventType=QUERY&startDate=2025-06-01T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pi-1", store.lastFilter.ProcessInstanceID)
	assert.Equal(t, "QUERY", store.lastFilter.EventType)
	require.NotNil(t, store.lastFilter.Start)
	assert.Nil(t, store.lastFilter.End)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pi-1", resp.Filters.ProcessInstanceID)
	assert.Equal(t, "all", resp.Filters.UserID)
	assert.Equal(t, "QUERY", resp.Filters.EventType)
	assert.Equal(t, 2, resp.TotalResults)
}

func TestHandlers_Search_BadDate(t *testing.T) {
	router := newTestRouter(&mockStore{})

	req := httptest.NewRequest("GET", "/audit/detailed/search?startDate=June+1st", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid startDate")
}

func TestHandlers_Summary(t *testing.T) {
	router := newTestRouter(&mockStore{summary: &Summary{
		TotalEvents:     3,
		EventTypeCounts: map[string]int64{"QUERY": 3},
	}})

	req := httptest.NewRequest("GET", "/audit/detailed/summary", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.TotalEvents)
	assert.Equal(t, int64(3), resp.EventTypeCounts["QUERY"])
}

func TestHandlers_Timeline(t *testing.T) {
	router := newTestRouter(&mockStore{records: testRecords()})

	req := httptest.NewRequest("GET", "/audit/detailed/timeline/pi-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp TimelineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pi-1", resp.ProcessInstanceID)
	require.Len(t, resp.Timeline, 2)
	assert.Equal(t, "[2025-06-01 12:00:00] alice (alice) performed START on process", resp.Timeline[0])
}

func TestHandlers_Timeline_NotFound(t *testing.T) {
	router := newTestRouter(&mockStore{})

	req := httptest.NewRequest("GET", "/audit/detailed/timeline/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
