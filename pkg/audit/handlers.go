package audit

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/partha/checker-maker/pkg/httputil"
)

// Handlers provides the read-only audit query API under /audit/detailed.
type Handlers struct {
	store Store
}

// NewHandlers creates new audit query handlers over the given store.
func NewHandlers(store Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers the audit query routes.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit/detailed/process/{instanceId}", h.processTrail).Methods("GET")
	router.HandleFunc("/audit/detailed/user/{userId}", h.userTrail).Methods("GET")
	router.HandleFunc("/audit/detailed/task/{taskId}", h.taskTrail).Methods("GET")
	router.HandleFunc("/audit/detailed/recent", h.recent).Methods("GET")
	router.HandleFunc("/audit/detailed/search", h.search).Methods("GET")
	router.HandleFunc("/audit/detailed/summary", h.summary).Methods("GET")
	router.HandleFunc("/audit/detailed/timeline/{instanceId}", h.timeline).Methods("GET")
}

// ProcessTrailResponse is the body for GET /audit/detailed/process/{instanceId}.
type ProcessTrailResponse struct {
	ProcessInstanceID string          `json:"processInstanceId"`
	TotalEvents       int             `json:"totalEvents"`
	AuditTrail        []DisplayRecord `json:"auditTrail"`
}

// UserTrailResponse is the body for GET /audit/detailed/user/{userId}.
type UserTrailResponse struct {
	UserID       string          `json:"userId"`
	TotalActions int             `json:"totalActions"`
	AuditTrail   []DisplayRecord `json:"auditTrail"`
}

// TaskTrailResponse is the body for GET /audit/detailed/task/{taskId}.
type TaskTrailResponse struct {
	TaskID     string          `json:"taskId"`
	AuditTrail []DisplayRecord `json:"auditTrail"`
}

// RecentResponse is the body for GET /audit/detailed/recent.
type RecentResponse struct {
	Limit      int             `json:"limit"`
	AuditTrail []DisplayRecord `json:"auditTrail"`
}

// SearchFilters echoes the filters a search was run with; unset fields
// render as "all".
type SearchFilters struct {
	ProcessInstanceID string `json:"processInstanceId"`
	UserID            string `json:"userId"`
	EventType         string `json:"eventType"`
}

// SearchResponse is the body for GET /audit/detailed/search.
type SearchResponse struct {
	Filters      SearchFilters   `json:"filters"`
	TotalResults int             `json:"totalResults"`
	AuditTrail   []DisplayRecord `json:"auditTrail"`
}

// TimelineResponse is the body for GET /audit/detailed/timeline/{instanceId}.
type TimelineResponse struct {
	ProcessInstanceID string   `json:"processInstanceId"`
	Timeline          []string `json:"timeline"`
}

func (h *Handlers) processTrail(w http.ResponseWriter, r *http.Request) {
	instanceID := mux.Vars(r)["instanceId"]

	records, err := h.store.FindByProcessInstanceID(r.Context(), instanceID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if len(records) == 0 {
		httputil.WriteNotFound(w, "No audit trail found for process: "+instanceID)
		return
	}

	httputil.WriteSuccess(w, ProcessTrailResponse{
		ProcessInstanceID: instanceID,
		TotalEvents:       len(records),
		AuditTrail:        FormatAll(records),
	})
}

func (h *Handlers) userTrail(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	records, err := h.store.FindByUserID(r.Context(), userID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, UserTrailResponse{
		UserID:       userID,
		TotalActions: len(records),
		AuditTrail:   FormatAll(records),
	})
}

func (h *Handlers) taskTrail(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskId"]

	records, err := h.store.FindByTaskID(r.Context(), taskID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, TaskTrailResponse{
		TaskID:     taskID,
		AuditTrail: FormatAll(records),
	})
}

func (h *Handlers) recent(w http.ResponseWriter, r *http.Request) {
	limit := httputil.QueryInt(r, "limit", 50)

	records, err := h.store.FindRecent(r.Context(), limit)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, RecentResponse{
		Limit:      limit,
		AuditTrail: FormatAll(records),
	})
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := Filter{
		ProcessInstanceID: query.Get("processInstanceId"),
		UserID:            query.Get("userId"),
		EventType:         query.Get("eventType"),
	}

	if startStr := query.Get("startDate"); startStr != "" {
		t, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid startDate: "+err.Error())
			return
		}
		filter.Start = &t
	}
	if endStr := query.Get("endDate"); endStr != "" {
		t, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid endDate: "+err.Error())
			return
		}
		filter.End = &t
	}

	records, err := h.store.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, SearchResponse{
		Filters: SearchFilters{
			ProcessInstanceID: orAll(filter.ProcessInstanceID),
			UserID:            orAll(filter.UserID),
			EventType:         orAll(filter.EventType),
		},
		TotalResults: len(records),
		AuditTrail:   FormatAll(records),
	})
}

func (h *Handlers) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.Summary(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, summary)
}

func (h *Handlers) timeline(w http.ResponseWriter, r *http.Request) {
	instanceID := mux.Vars(r)["instanceId"]

	records, err := h.store.FindByProcessInstanceID(r.Context(), instanceID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if len(records) == 0 {
		httputil.WriteNotFound(w, "No timeline found for process: "+instanceID)
		return
	}

	httputil.WriteSuccess(w, TimelineResponse{
		ProcessInstanceID: instanceID,
		Timeline:          RenderTimeline(records),
	})
}

func orAll(s string) string {
	if s == "" {
		return "all"
	}
	return s
}
