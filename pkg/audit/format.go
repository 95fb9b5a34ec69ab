package audit

import (
	"fmt"
	"time"
)

const timelineTimeLayout = "2006-01-02 15:04:05"

// Format maps a record to its API representation, rendering the timestamp as
// RFC 3339 and attaching the synthesized description.
func Format(record *Record) DisplayRecord {
	return DisplayRecord{
		ID:                record.ID,
		ProcessInstanceID: record.ProcessInstanceID,
		ProcessID:         record.ProcessID,
		EventType:         string(record.EventType),
		NodeName:          record.NodeName,
		TaskID:            record.TaskID,
		UserID:            record.UserID,
		UserName:          record.UserName,
		Action:            record.Action,
		Comments:          record.Comments,
		OldValue:          record.OldValue,
		NewValue:          record.NewValue,
		Timestamp:         record.Timestamp.Format(time.RFC3339),
		IPAddress:         record.IPAddress,
		UserAgent:         record.UserAgent,
		Description:       BuildDescription(record),
	}
}

// FormatAll maps a slice of records to display form, preserving order.
func FormatAll(records []*Record) []DisplayRecord {
	out := make([]DisplayRecord, len(records))
	for i, record := range records {
		out[i] = Format(record)
	}
	return out
}

// BuildDescription synthesizes a one-line human-readable description, keyed
// by event type. It is a pure function of the record.
func BuildDescription(record *Record) string {
	user := record.User()

	var desc string
	switch record.EventType {
	case EventProcessStarted:
		desc = user + " started the process"
	case EventTaskAssigned:
		desc = fmt.Sprintf("%s was assigned task '%s'", user, record.NodeName)
	case EventTaskCompleted:
		desc = fmt.Sprintf("%s completed task '%s' with decision: %s", user, record.NodeName, record.Action)
	case EventVariableChanged:
		desc = fmt.Sprintf("%s changed %s from '%s' to '%s'", user, record.NodeName, record.OldValue, record.NewValue)
	case EventProcessCompleted:
		desc = user + " completed the process"
	case EventProcessAborted:
		desc = user + " aborted the process"
	default:
		desc = fmt.Sprintf("%s performed %s", user, record.EventType)
	}

	if record.Comments != "" {
		desc += " (" + record.Comments + ")"
	}
	return desc
}

// RenderTimeline renders one line per record:
//
//	[2025-01-02 15:04:05] alice (u123) performed APPROVE on Checker Approval - Comment: looks good
//
// The node name falls back to "process" for process-level events.
func RenderTimeline(records []*Record) []string {
	lines := make([]string, len(records))
	for i, record := range records {
		node := record.NodeName
		if node == "" {
			node = "process"
		}
		line := fmt.Sprintf("[%s] %s (%s) performed %s on %s",
			record.Timestamp.Format(timelineTimeLayout),
			record.User(), record.UserID, record.Action, node)
		if record.Comments != "" {
			line += " - Comment: " + record.Comments
		}
		lines[i] = line
	}
	return lines
}
