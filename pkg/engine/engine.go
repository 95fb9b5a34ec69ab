// Package engine abstracts the business-process engine behind the interface
// the service actually calls: starting instances, finding them, listing work
// items, and completing them. The engine owns instance state transitions;
// callers only observe them.
package engine

import (
	"context"
	"errors"
)

var (
	// ErrInstanceNotFound is returned when a process instance id does not exist.
	ErrInstanceNotFound = errors.New("process instance not found")

	// ErrWorkItemNotFound is returned when a work item id does not exist or
	// is no longer active for the given instance.
	ErrWorkItemNotFound = errors.New("work item not found")
)

// Status is the lifecycle state of a process instance.
type Status int

const (
	StatusPending Status = iota
	StatusActive
	StatusCompleted
	StatusAborted
	StatusSuspended
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusActive:
		return "ACTIVE"
	case StatusCompleted:
		return "COMPLETED"
	case StatusAborted:
		return "ABORTED"
	case StatusSuspended:
		return "SUSPENDED"
	default:
		return "UNKNOWN"
	}
}

// Instance is one running execution of a process definition.
type Instance struct {
	ID        string
	ProcessID string
	Status    Status
	Variables map[string]interface{}
}

// WorkItem is a unit of human work within a process instance.
type WorkItem struct {
	ID                string
	ProcessInstanceID string
	Name              string
	Phase             string
	Parameters        map[string]interface{}
}

// Work item phases.
const (
	PhaseActive    = "Active"
	PhaseCompleted = "Completed"
	PhaseAborted   = "Aborted"
)

// Engine is the process engine surface used by the HTTP layer.
type Engine interface {
	// ProcessID returns the logical process definition name.
	ProcessID() string

	// CreateInstance creates and starts a new process instance with the
	// given initial variables.
	CreateInstance(ctx context.Context, variables map[string]interface{}) (*Instance, error)

	// FindByID returns the instance or ErrInstanceNotFound.
	FindByID(ctx context.Context, id string) (*Instance, error)

	// Instances lists every known instance.
	Instances(ctx context.Context) ([]*Instance, error)

	// WorkItems lists the work items of an instance, all phases included.
	// Returns ErrInstanceNotFound when the instance does not exist.
	WorkItems(ctx context.Context, instanceID string) ([]*WorkItem, error)

	// CompleteWorkItem completes an active work item with the given data,
	// advancing the instance. Returns ErrInstanceNotFound or
	// ErrWorkItemNotFound when the target is absent.
	CompleteWorkItem(ctx context.Context, instanceID, workItemID string, data map[string]interface{}) error
}
