package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// The checker-maker process definition: every started instance activates a
// "Checker Approval" work item; approving it activates "Maker Review";
// approving that completes the instance. A REJECT decision at either step
// aborts it.
const (
	CheckerMakerProcessID = "checker-maker"
	processVersion        = "1.0"

	TaskCheckerApproval = "Checker Approval"
	TaskMakerReview     = "Maker Review"

	decisionReject = "REJECT"
)

// CheckerMaker is a database-backed Engine running the checker-maker
// definition. Instance and task state live in the process_instances and
// human_tasks tables, which the /audit/* endpoints query read-only.
type CheckerMaker struct {
	db     *sql.DB
	driver string
}

// NewCheckerMaker creates the engine and ensures its tables exist.
func NewCheckerMaker(db *sql.DB, driver string) (*CheckerMaker, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	e := &CheckerMaker{db: db, driver: driver}
	if err := e.ensureTables(); err != nil {
		return nil, fmt.Errorf("failed to ensure engine tables: %w", err)
	}
	return e, nil
}

const pgEngineSchema = `
CREATE TABLE IF NOT EXISTS process_instances (
	id VARCHAR(64) PRIMARY KEY,
	process_id VARCHAR(255) NOT NULL,
	process_version VARCHAR(32) NOT NULL,
	status INTEGER NOT NULL,
	variables TEXT NOT NULL,
	start_date TIMESTAMP WITH TIME ZONE NOT NULL,
	end_date TIMESTAMP WITH TIME ZONE
);

CREATE TABLE IF NOT EXISTS human_tasks (
	id VARCHAR(64) PRIMARY KEY,
	process_instance_id VARCHAR(64) NOT NULL REFERENCES process_instances(id),
	name VARCHAR(255) NOT NULL,
	phase VARCHAR(32) NOT NULL,
	parameters TEXT NOT NULL,
	created_on TIMESTAMP WITH TIME ZONE NOT NULL,
	completed_on TIMESTAMP WITH TIME ZONE
);

CREATE INDEX IF NOT EXISTS idx_process_instances_start ON process_instances(start_date DESC);
CREATE INDEX IF NOT EXISTS idx_human_tasks_instance ON human_tasks(process_instance_id);
`

const sqliteEngineSchema = `
CREATE TABLE IF NOT EXISTS process_instances (
	id TEXT PRIMARY KEY,
	process_id TEXT NOT NULL,
	process_version TEXT NOT NULL,
	status INTEGER NOT NULL,
	variables TEXT NOT NULL,
	start_date TIMESTAMP NOT NULL,
	end_date TIMESTAMP
);

CREATE TABLE IF NOT EXISTS human_tasks (
	id TEXT PRIMARY KEY,
	process_instance_id TEXT NOT NULL REFERENCES process_instances(id),
	name TEXT NOT NULL,
	phase TEXT NOT NULL,
	parameters TEXT NOT NULL,
	created_on TIMESTAMP NOT NULL,
	completed_on TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_process_instances_start ON process_instances(start_date DESC);
CREATE INDEX IF NOT EXISTS idx_human_tasks_instance ON human_tasks(process_instance_id);
`

func (e *CheckerMaker) ensureTables() error {
	schema := pgEngineSchema
	if e.driver == "sqlite3" {
		schema = sqliteEngineSchema
	}
	_, err := e.db.Exec(schema)
	return err
}

func (e *CheckerMaker) ph(n int) string {
	if e.driver == "sqlite3" {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// ProcessID returns the process definition name.
func (e *CheckerMaker) ProcessID() string {
	return CheckerMakerProcessID
}

// CreateInstance starts a new instance and activates the Checker Approval
// work item in the same transaction.
func (e *CheckerMaker) CreateInstance(ctx context.Context, variables map[string]interface{}) (*Instance, error) {
	if variables == nil {
		variables = map[string]interface{}{}
	}
	varsJSON, err := json.Marshal(variables)
	if err != nil {
		return nil, fmt.Errorf("failed to encode variables: %w", err)
	}

	instance := &Instance{
		ID:        uuid.NewString(),
		ProcessID: CheckerMakerProcessID,
		Status:    StatusActive,
		Variables: variables,
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	insertInstance := fmt.Sprintf(`
		INSERT INTO process_instances (id, process_id, process_version, status, variables, start_date)
		VALUES (%s, %s, %s, %s, %s, %s)`,
		e.ph(1), e.ph(2), e.ph(3), e.ph(4), e.ph(5), e.ph(6))
	if _, err := tx.ExecContext(ctx, insertInstance,
		instance.ID, instance.ProcessID, processVersion, int(instance.Status), string(varsJSON), now); err != nil {
		return nil, fmt.Errorf("failed to insert process instance: %w", err)
	}

	if err := e.insertTask(ctx, tx, instance.ID, TaskCheckerApproval, string(varsJSON), now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit instance creation: %w", err)
	}
	return instance, nil
}

func (e *CheckerMaker) insertTask(ctx context.Context, tx *sql.Tx, instanceID, name, paramsJSON string, now time.Time) error {
	insertTask := fmt.Sprintf(`
		INSERT INTO human_tasks (id, process_instance_id, name, phase, parameters, created_on)
		VALUES (%s, %s, %s, %s, %s, %s)`,
		e.ph(1), e.ph(2), e.ph(3), e.ph(4), e.ph(5), e.ph(6))
	if _, err := tx.ExecContext(ctx, insertTask,
		uuid.NewString(), instanceID, name, PhaseActive, paramsJSON, now); err != nil {
		return fmt.Errorf("failed to insert work item: %w", err)
	}
	return nil
}

// FindByID returns the instance or ErrInstanceNotFound.
func (e *CheckerMaker) FindByID(ctx context.Context, id string) (*Instance, error) {
	query := fmt.Sprintf(`
		SELECT id, process_id, status, variables FROM process_instances WHERE id = %s`, e.ph(1))

	instance := &Instance{}
	var status int
	var varsJSON string
	err := e.db.QueryRowContext(ctx, query, id).Scan(&instance.ID, &instance.ProcessID, &status, &varsJSON)
	if err == sql.ErrNoRows {
		return nil, ErrInstanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query process instance: %w", err)
	}

	instance.Status = Status(status)
	if err := json.Unmarshal([]byte(varsJSON), &instance.Variables); err != nil {
		return nil, fmt.Errorf("failed to decode variables: %w", err)
	}
	return instance, nil
}

// Instances lists every instance, most recently started first.
func (e *CheckerMaker) Instances(ctx context.Context) ([]*Instance, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT id, process_id, status, variables FROM process_instances ORDER BY start_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list process instances: %w", err)
	}
	defer rows.Close()

	instances := make([]*Instance, 0)
	for rows.Next() {
		instance := &Instance{}
		var status int
		var varsJSON string
		if err := rows.Scan(&instance.ID, &instance.ProcessID, &status, &varsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan process instance: %w", err)
		}
		instance.Status = Status(status)
		if err := json.Unmarshal([]byte(varsJSON), &instance.Variables); err != nil {
			return nil, fmt.Errorf("failed to decode variables: %w", err)
		}
		instances = append(instances, instance)
	}
	return instances, rows.Err()
}

// WorkItems lists the instance's work items in creation order.
func (e *CheckerMaker) WorkItems(ctx context.Context, instanceID string) ([]*WorkItem, error) {
	if _, err := e.FindByID(ctx, instanceID); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, process_instance_id, name, phase, parameters
		FROM human_tasks WHERE process_instance_id = %s ORDER BY created_on ASC`, e.ph(1))
	rows, err := e.db.QueryContext(ctx, query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	defer rows.Close()

	items := make([]*WorkItem, 0)
	for rows.Next() {
		item := &WorkItem{}
		var paramsJSON string
		if err := rows.Scan(&item.ID, &item.ProcessInstanceID, &item.Name, &item.Phase, &paramsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}
		if err := json.Unmarshal([]byte(paramsJSON), &item.Parameters); err != nil {
			return nil, fmt.Errorf("failed to decode work item parameters: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CompleteWorkItem completes an active work item, merging data into the
// instance variables and advancing the instance: Checker Approval →
// Maker Review → completed, with REJECT aborting at either step. Task and
// instance updates share one transaction.
func (e *CheckerMaker) CompleteWorkItem(ctx context.Context, instanceID, workItemID string, data map[string]interface{}) error {
	instance, err := e.FindByID(ctx, instanceID)
	if err != nil {
		return err
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var taskName string
	taskQuery := fmt.Sprintf(`
		SELECT name FROM human_tasks WHERE id = %s AND process_instance_id = %s AND phase = %s`,
		e.ph(1), e.ph(2), e.ph(3))
	err = tx.QueryRowContext(ctx, taskQuery, workItemID, instanceID, PhaseActive).Scan(&taskName)
	if err == sql.ErrNoRows {
		return ErrWorkItemNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to query work item: %w", err)
	}

	now := time.Now().UTC()
	completeTask := fmt.Sprintf(`
		UPDATE human_tasks SET phase = %s, completed_on = %s WHERE id = %s`,
		e.ph(1), e.ph(2), e.ph(3))
	if _, err := tx.ExecContext(ctx, completeTask, PhaseCompleted, now, workItemID); err != nil {
		return fmt.Errorf("failed to complete work item: %w", err)
	}

	// Merge completion data into the instance variables.
	for k, v := range data {
		instance.Variables[k] = v
	}
	varsJSON, err := json.Marshal(instance.Variables)
	if err != nil {
		return fmt.Errorf("failed to encode variables: %w", err)
	}

	rejected := strings.EqualFold(decisionOf(data), decisionReject)
	switch {
	case rejected:
		if err := e.finishInstance(ctx, tx, instanceID, StatusAborted, string(varsJSON), now); err != nil {
			return err
		}
	case taskName == TaskCheckerApproval:
		updateVars := fmt.Sprintf(`UPDATE process_instances SET variables = %s WHERE id = %s`, e.ph(1), e.ph(2))
		if _, err := tx.ExecContext(ctx, updateVars, string(varsJSON), instanceID); err != nil {
			return fmt.Errorf("failed to update variables: %w", err)
		}
		if err := e.insertTask(ctx, tx, instanceID, TaskMakerReview, string(varsJSON), now); err != nil {
			return err
		}
	default:
		if err := e.finishInstance(ctx, tx, instanceID, StatusCompleted, string(varsJSON), now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit work item completion: %w", err)
	}
	return nil
}

func (e *CheckerMaker) finishInstance(ctx context.Context, tx *sql.Tx, instanceID string, status Status, varsJSON string, now time.Time) error {
	query := fmt.Sprintf(`
		UPDATE process_instances SET status = %s, variables = %s, end_date = %s WHERE id = %s`,
		e.ph(1), e.ph(2), e.ph(3), e.ph(4))
	if _, err := tx.ExecContext(ctx, query, int(status), varsJSON, now, instanceID); err != nil {
		return fmt.Errorf("failed to update process instance: %w", err)
	}
	return nil
}

// decisionOf extracts the approval decision from completion data, accepting
// either an "action" or a "decision" key.
func decisionOf(data map[string]interface{}) string {
	for _, key := range []string{"action", "decision"} {
		if v, ok := data[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
