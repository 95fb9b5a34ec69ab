package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/partha/checker-maker/pkg/audit"
	"github.com/partha/checker-maker/pkg/engine"
	"github.com/partha/checker-maker/pkg/httputil"
)

// serviceUserID identifies the service itself in audit records when the
// request carries no user headers.
const serviceUserID = "checker-maker-resource"

// newRecord builds an audit record carrying the caller context of the
// request. Identity comes from the X-User-ID / X-User-Name headers when
// present, otherwise the service identity.
func (s *Server) newRecord(r *http.Request, instanceID string, eventType audit.EventType, action, comments string) *audit.Record {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		userID = serviceUserID
	}
	return &audit.Record{
		ProcessInstanceID: instanceID,
		ProcessID:         s.engine.ProcessID(),
		EventType:         eventType,
		UserID:            userID,
		UserName:          r.Header.Get("X-User-Name"),
		Action:            action,
		Comments:          comments,
		IPAddress:         httputil.ClientIP(r),
		UserAgent:         r.UserAgent(),
	}
}

// echoPayload renders a request payload for audit comments.
func echoPayload(data map[string]interface{}) string {
	if len(data) == 0 {
		return "empty"
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "unencodable"
	}
	return string(b)
}

// decisionAction extracts the decision verb from completion data, falling
// back to COMPLETE.
func decisionAction(data map[string]interface{}) string {
	for _, key := range []string{"action", "decision"} {
		if v, ok := data[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return strings.ToUpper(s)
			}
		}
	}
	return "COMPLETE"
}

// startProcess handles POST /checker-maker. The start request is audited
// before the engine is invoked; on engine failure that record is
// intentionally not retracted.
func (s *Server) startProcess(w http.ResponseWriter, r *http.Request) {
	var data map[string]interface{}
	if err := httputil.ParseJSON(r, &data); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	s.recorder.Record(ctx, s.newRecord(r, "", audit.EventProcessStartRequest, "START",
		"Attempting to start process with data: "+echoPayload(data)))

	instance, err := s.engine.CreateInstance(ctx, data)
	if err != nil {
		s.logger.WithError(err).Error("failed to start process")
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{
			Error:   "Failed to start process",
			Message: err.Error(),
		})
		return
	}

	s.recorder.Record(ctx, s.newRecord(r, instance.ID, audit.EventProcessStarted, "START",
		"Process instance started successfully. ID: "+instance.ID))

	httputil.WriteCreated(w, StartProcessResponse{
		ProcessInstanceID: instance.ID,
		Status:            instance.Status.String(),
		Message:           "Process started successfully",
	})
}

// listInstances handles GET /checker-maker/instances.
func (s *Server) listInstances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	instances, err := s.engine.Instances(ctx)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	result := make([]InstanceInfo, len(instances))
	for i, instance := range instances {
		result[i] = InstanceInfo{
			ID:        instance.ID,
			Status:    instance.Status.String(),
			Variables: instance.Variables,
		}
	}

	s.recorder.Record(ctx, s.newRecord(r, "", audit.EventQuery, "QUERY",
		fmt.Sprintf("Listed all checker-maker process instances. Total: %d", len(result))))

	httputil.WriteSuccess(w, result)
}

// getInstance handles GET /checker-maker/instances/{id}.
func (s *Server) getInstance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	instance, err := s.engine.FindByID(ctx, id)
	if errors.Is(err, engine.ErrInstanceNotFound) {
		s.recorder.Record(ctx, s.newRecord(r, id, audit.EventQueryFailed, "QUERY",
			"Process instance not found"))
		httputil.WriteNotFound(w, "Process instance not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	s.recorder.Record(ctx, s.newRecord(r, id, audit.EventQuery, "QUERY",
		"Retrieved process instance details. Status: "+instance.Status.String()))

	httputil.WriteSuccess(w, InstanceInfo{
		ID:        instance.ID,
		Status:    instance.Status.String(),
		Variables: instance.Variables,
	})
}

// listTasks handles GET /checker-maker/instances/{id}/tasks.
func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	items, err := s.engine.WorkItems(ctx, id)
	if errors.Is(err, engine.ErrInstanceNotFound) {
		s.recorder.Record(ctx, s.newRecord(r, id, audit.EventQueryFailed, "QUERY",
			"Process instance not found"))
		httputil.WriteNotFound(w, "Process instance not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	tasks := make([]TaskInfo, len(items))
	for i, item := range items {
		tasks[i] = TaskInfo{
			ID:         item.ID,
			Name:       item.Name,
			State:      item.Phase,
			Parameters: item.Parameters,
		}
	}

	s.recorder.Record(ctx, s.newRecord(r, id, audit.EventQuery, "QUERY",
		fmt.Sprintf("Retrieved tasks for process instance. Total tasks: %d", len(tasks))))

	httputil.WriteSuccess(w, tasks)
}

// completeTask handles POST /checker-maker/instances/{id}/tasks/{taskId}/complete.
// The incoming request is audited with its echoed payload before any engine
// call.
func (s *Server) completeTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	id, taskID := vars["id"], vars["taskId"]

	var data map[string]interface{}
	if err := httputil.ParseJSON(r, &data); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	received := s.newRecord(r, id, audit.EventPostRequestReceived, "COMPLETE",
		fmt.Sprintf("POST request to complete task: %s | Request body: %s", taskID, echoPayload(data)))
	received.TaskID = taskID
	s.recorder.Record(ctx, received)

	items, err := s.engine.WorkItems(ctx, id)
	if errors.Is(err, engine.ErrInstanceNotFound) {
		failed := s.newRecord(r, id, audit.EventTaskCompletionFailed, decisionAction(data),
			"Process instance not found")
		failed.TaskID = taskID
		s.recorder.Record(ctx, failed)
		httputil.WriteNotFound(w, "Process instance not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	var nodeName string
	for _, item := range items {
		if item.ID == taskID {
			nodeName = item.Name
			break
		}
	}

	if err := s.engine.CompleteWorkItem(ctx, id, taskID, data); err != nil {
		failed := s.newRecord(r, id, audit.EventTaskCompletionFailed, decisionAction(data), err.Error())
		failed.TaskID = taskID
		failed.NodeName = nodeName
		s.recorder.Record(ctx, failed)

		if errors.Is(err, engine.ErrWorkItemNotFound) {
			httputil.WriteNotFound(w, "Work item not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	completed := s.newRecord(r, id, audit.EventTaskCompleted, decisionAction(data),
		fmt.Sprintf("Completed task: %s with data: %s", taskID, echoPayload(data)))
	completed.TaskID = taskID
	completed.NodeName = nodeName
	s.recorder.Record(ctx, completed)

	httputil.WriteSuccess(w, CompleteTaskResponse{Message: "Task completed successfully"})
}

// processHealth handles GET /checker-maker/health.
func (s *Server) processHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, HealthResponse{
		Status:    "UP",
		ProcessID: s.engine.ProcessID(),
	})
}

// recentAuditLogs handles GET /checker-maker/audit-logs.
func (s *Server) recentAuditLogs(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.FindRecent(r.Context(), 50)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, AuditLogsResponse{
		Total: len(records),
		Logs:  audit.FormatAll(records),
	})
}

// instanceAuditLogs handles GET /checker-maker/audit-logs/instance/{instanceId}.
func (s *Server) instanceAuditLogs(w http.ResponseWriter, r *http.Request) {
	instanceID := mux.Vars(r)["instanceId"]

	records, err := s.store.FindByProcessInstanceID(r.Context(), instanceID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, InstanceAuditLogsResponse{
		InstanceID: instanceID,
		Total:      len(records),
		Logs:       audit.FormatAll(records),
	})
}
