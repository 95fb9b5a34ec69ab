package audit

import "time"

// EventType categorizes an audit record. The column is an open string set:
// these are the values this service writes, but readers must tolerate others.
type EventType string

const (
	// Process lifecycle events
	EventProcessStartRequest EventType = "PROCESS_START_REQUEST"
	EventProcessStarted      EventType = "PROCESS_STARTED"
	EventProcessCompleted    EventType = "PROCESS_COMPLETED"
	EventProcessAborted      EventType = "PROCESS_ABORTED"

	// Task lifecycle events
	EventTaskAssigned         EventType = "TASK_ASSIGNED"
	EventTaskCompleted        EventType = "TASK_COMPLETED"
	EventTaskCompletionFailed EventType = "TASK_COMPLETION_FAILED"
	EventPostRequestReceived  EventType = "POST_REQUEST_RECEIVED"

	// Data events
	EventVariableChanged EventType = "VARIABLE_CHANGED"

	// Read/query events
	EventQuery       EventType = "QUERY"
	EventQueryFailed EventType = "QUERY_FAILED"
)

const (
	// SystemInstanceID is recorded when no process instance exists yet,
	// e.g. for a start request before the engine has assigned an id.
	SystemInstanceID = "SYSTEM"

	// SystemUserID is the service identity used when no end user is known.
	SystemUserID = "SYSTEM"

	// MaxCommentsLen and MaxValueLen bound the free-text columns. Longer
	// values are truncated on append rather than rejected.
	MaxCommentsLen = 2000
	MaxValueLen    = 1000
)

// Record is one append-only audit trail entry: who did what, when, on which
// process instance or task. Once persisted a record is never updated.
type Record struct {
	ID                int64     `json:"id"`
	ProcessInstanceID string    `json:"processInstanceId"`
	ProcessID         string    `json:"processId,omitempty"`
	EventType         EventType `json:"eventType"`
	NodeName          string    `json:"nodeName,omitempty"`
	TaskID            string    `json:"taskId,omitempty"`
	UserID            string    `json:"userId"`
	UserName          string    `json:"userName,omitempty"`
	Action            string    `json:"action,omitempty"`
	Comments          string    `json:"comments,omitempty"`
	OldValue          string    `json:"oldValue,omitempty"`
	NewValue          string    `json:"newValue,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	IPAddress         string    `json:"ipAddress,omitempty"`
	UserAgent         string    `json:"userAgent,omitempty"`
}

// User returns the display identity for a record: the user name when one was
// captured, otherwise the user id.
func (r *Record) User() string {
	if r.UserName != "" {
		return r.UserName
	}
	return r.UserID
}

// Filter holds the optional predicates for Store.Search. Every set field is
// combined with AND; a zero Filter matches every record.
type Filter struct {
	ProcessInstanceID string
	UserID            string
	EventType         string
	Start             *time.Time
	End               *time.Time
}

// IsZero reports whether no predicate is set.
func (f Filter) IsZero() bool {
	return f.ProcessInstanceID == "" && f.UserID == "" && f.EventType == "" &&
		f.Start == nil && f.End == nil
}

// Summary holds aggregate counts over the whole audit trail.
type Summary struct {
	TotalEvents        int64            `json:"totalEvents"`
	EventTypeCounts    map[string]int64 `json:"eventTypeCounts"`
	UserActivityCounts map[string]int64 `json:"userActivityCounts"`
	ActionCounts       map[string]int64 `json:"actionCounts"`
}

// DisplayRecord is the API representation of a Record: every field mapped to
// its JSON form plus a synthesized human-readable description.
type DisplayRecord struct {
	ID                int64  `json:"id"`
	ProcessInstanceID string `json:"processInstanceId"`
	ProcessID         string `json:"processId,omitempty"`
	EventType         string `json:"eventType"`
	NodeName          string `json:"nodeName,omitempty"`
	TaskID            string `json:"taskId,omitempty"`
	UserID            string `json:"userId"`
	UserName          string `json:"userName,omitempty"`
	Action            string `json:"action,omitempty"`
	Comments          string `json:"comments,omitempty"`
	OldValue          string `json:"oldValue,omitempty"`
	NewValue          string `json:"newValue,omitempty"`
	Timestamp         string `json:"timestamp"`
	IPAddress         string `json:"ipAddress,omitempty"`
	UserAgent         string `json:"userAgent,omitempty"`
	Description       string `json:"description"`
}
