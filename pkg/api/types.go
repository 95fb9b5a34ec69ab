package api

import "time"

// InstanceInfo describes a process instance in API responses.
type InstanceInfo struct {
	ID        string                 `json:"id"`
	Status    string                 `json:"status"`
	Variables map[string]interface{} `json:"variables"`
}

// TaskInfo describes a work item in API responses.
type TaskInfo struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	State      string                 `json:"state"`
	Parameters map[string]interface{} `json:"parameters"`
}

// StartProcessResponse is the body of a successful POST /checker-maker.
type StartProcessResponse struct {
	ProcessInstanceID string `json:"processInstanceId"`
	Status            string `json:"status"`
	Message           string `json:"message"`
}

// CompleteTaskResponse is the body of a successful task completion.
type CompleteTaskResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the body of GET /checker-maker/health.
type HealthResponse struct {
	Status    string `json:"status"`
	ProcessID string `json:"processId"`
}

// AuditLogsResponse is the body of GET /checker-maker/audit-logs.
type AuditLogsResponse struct {
	Total int         `json:"total"`
	Logs  interface{} `json:"logs"`
}

// InstanceAuditLogsResponse is the body of GET /checker-maker/audit-logs/instance/{id}.
type InstanceAuditLogsResponse struct {
	InstanceID string      `json:"instanceId"`
	Total      int         `json:"total"`
	Logs       interface{} `json:"logs"`
}

// ProcessInstanceRow is one row of the engine's process_instances table as
// exposed by the /audit/* endpoints.
type ProcessInstanceRow struct {
	ID                string     `json:"id"`
	ProcessID         string     `json:"processId"`
	ProcessVersion    string     `json:"processVersion"`
	Status            string     `json:"status"`
	StartDate         time.Time  `json:"startDate"`
	EndDate           *time.Time `json:"endDate,omitempty"`
}

// TaskRow is one row of the engine's human_tasks table as exposed by the
// /audit/tasks endpoint.
type TaskRow struct {
	TaskID      string     `json:"taskId"`
	TaskName    string     `json:"taskName"`
	Status      string     `json:"status"`
	CreatedOn   time.Time  `json:"createdOn"`
	CompletedOn *time.Time `json:"completedOn,omitempty"`
}

// ProcessAuditResponse is the body of GET /audit/process/{instanceId}.
type ProcessAuditResponse struct {
	ProcessInstanceID string               `json:"processInstanceId"`
	AuditTrail        []ProcessInstanceRow `json:"auditTrail"`
}

// ProcessesAuditResponse is the body of GET /audit/processes.
type ProcessesAuditResponse struct {
	Total     int                  `json:"total"`
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
	Processes []ProcessInstanceRow `json:"processes"`
}

// TaskAuditResponse is the body of GET /audit/tasks/{instanceId}.
type TaskAuditResponse struct {
	ProcessInstanceID string    `json:"processInstanceId"`
	Tasks             []TaskRow `json:"tasks"`
	Note              string    `json:"note,omitempty"`
}

// SchemaResponse is the body of GET /audit/schema.
type SchemaResponse struct {
	Database    string   `json:"database"`
	Tables      []string `json:"tables"`
	TotalTables int      `json:"totalTables"`
}
