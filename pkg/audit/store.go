package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store is the persistence and query facility over audit records. Appended
// records are query-visible once Append returns; nothing is ever updated or
// deleted.
type Store interface {
	// Append persists a new record, assigning its id and timestamp.
	Append(ctx context.Context, record *Record) error

	// FindByProcessInstanceID returns every record for one instance.
	FindByProcessInstanceID(ctx context.Context, instanceID string) ([]*Record, error)

	// FindByUserID returns every record for one user.
	FindByUserID(ctx context.Context, userID string) ([]*Record, error)

	// FindByTaskID returns every record for one task.
	FindByTaskID(ctx context.Context, taskID string) ([]*Record, error)

	// FindRecent returns at most limit records, most recent first.
	FindRecent(ctx context.Context, limit int) ([]*Record, error)

	// Search returns the records matching every set filter field. A zero
	// filter returns the full record set.
	Search(ctx context.Context, filter Filter) ([]*Record, error)

	// ListAll returns every record.
	ListAll(ctx context.Context) ([]*Record, error)

	// Summary returns aggregate counts over the whole trail.
	Summary(ctx context.Context) (*Summary, error)
}

// DBStore implements Store over database/sql. The postgres driver is the
// production target; sqlite3 is supported for local development and tests.
type DBStore struct {
	db     *sql.DB
	driver string
}

// NewDBStore creates a database-backed audit store and ensures the
// audit_logs table exists.
func NewDBStore(db *sql.DB, driver string) (*DBStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	s := &DBStore{db: db, driver: driver}
	if err := s.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_logs table: %w", err)
	}
	return s, nil
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id BIGSERIAL PRIMARY KEY,
	process_instance_id VARCHAR(255) NOT NULL,
	process_id VARCHAR(255),
	event_type VARCHAR(100) NOT NULL,
	node_name VARCHAR(255),
	task_id VARCHAR(255),
	user_id VARCHAR(255) NOT NULL,
	user_name VARCHAR(255),
	action VARCHAR(100),
	comments VARCHAR(2000),
	old_value VARCHAR(1000),
	new_value VARCHAR(1000),
	timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
	ip_address VARCHAR(45),
	user_agent TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_logs_instance ON audit_logs(process_instance_id);
CREATE INDEX IF NOT EXISTS idx_audit_logs_user ON audit_logs(user_id);
CREATE INDEX IF NOT EXISTS idx_audit_logs_task ON audit_logs(task_id);
CREATE INDEX IF NOT EXISTS idx_audit_logs_event_type ON audit_logs(event_type);
CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp DESC);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	process_instance_id TEXT NOT NULL,
	process_id TEXT,
	event_type TEXT NOT NULL,
	node_name TEXT,
	task_id TEXT,
	user_id TEXT NOT NULL,
	user_name TEXT,
	action TEXT,
	comments TEXT,
	old_value TEXT,
	new_value TEXT,
	timestamp TIMESTAMP NOT NULL,
	ip_address TEXT,
	user_agent TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_logs_instance ON audit_logs(process_instance_id);
CREATE INDEX IF NOT EXISTS idx_audit_logs_user ON audit_logs(user_id);
CREATE INDEX IF NOT EXISTS idx_audit_logs_task ON audit_logs(task_id);
CREATE INDEX IF NOT EXISTS idx_audit_logs_event_type ON audit_logs(event_type);
CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp DESC);
`

func (s *DBStore) ensureTable() error {
	schema := pgSchema
	if s.driver == "sqlite3" {
		schema = sqliteSchema
	}
	_, err := s.db.Exec(schema)
	return err
}

// ph returns the placeholder for the n-th positional argument (1-based).
func (s *DBStore) ph(n int) string {
	if s.driver == "sqlite3" {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

const recordColumns = `
	id, process_instance_id, process_id, event_type,
	node_name, task_id, user_id, user_name, action,
	comments, old_value, new_value, timestamp,
	ip_address, user_agent`

// Append persists the record. Missing fields are defaulted: the instance id
// falls back to the SYSTEM sentinel and a zero timestamp to the current time.
// Oversized free-text fields are truncated to the column limits.
func (s *DBStore) Append(ctx context.Context, record *Record) error {
	if record.EventType == "" {
		return fmt.Errorf("event type is required")
	}
	if record.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if record.ProcessInstanceID == "" {
		record.ProcessInstanceID = SystemInstanceID
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	record.Comments = truncate(record.Comments, MaxCommentsLen)
	record.OldValue = truncate(record.OldValue, MaxValueLen)
	record.NewValue = truncate(record.NewValue, MaxValueLen)

	query := fmt.Sprintf(`
		INSERT INTO audit_logs (
			process_instance_id, process_id, event_type,
			node_name, task_id, user_id, user_name, action,
			comments, old_value, new_value, timestamp,
			ip_address, user_agent
		) VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		RETURNING id`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7),
		s.ph(8), s.ph(9), s.ph(10), s.ph(11), s.ph(12), s.ph(13), s.ph(14))

	err := s.db.QueryRowContext(ctx, query,
		record.ProcessInstanceID, record.ProcessID, string(record.EventType),
		record.NodeName, record.TaskID, record.UserID, record.UserName, record.Action,
		record.Comments, record.OldValue, record.NewValue, record.Timestamp,
		record.IPAddress, record.UserAgent,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

// FindByProcessInstanceID returns the records for one instance in
// chronological order.
func (s *DBStore) FindByProcessInstanceID(ctx context.Context, instanceID string) ([]*Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_logs WHERE process_instance_id = %s ORDER BY timestamp ASC, id ASC`,
		recordColumns, s.ph(1))
	return s.queryRecords(ctx, query, instanceID)
}

// FindByUserID returns the records for one user in chronological order.
func (s *DBStore) FindByUserID(ctx context.Context, userID string) ([]*Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_logs WHERE user_id = %s ORDER BY timestamp ASC, id ASC`,
		recordColumns, s.ph(1))
	return s.queryRecords(ctx, query, userID)
}

// FindByTaskID returns the records for one task in chronological order.
func (s *DBStore) FindByTaskID(ctx context.Context, taskID string) ([]*Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_logs WHERE task_id = %s ORDER BY timestamp ASC, id ASC`,
		recordColumns, s.ph(1))
	return s.queryRecords(ctx, query, taskID)
}

// FindRecent returns at most limit records ordered most recent first.
func (s *DBStore) FindRecent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM audit_logs ORDER BY timestamp DESC, id DESC LIMIT %s`,
		recordColumns, s.ph(1))
	return s.queryRecords(ctx, query, limit)
}

// Search combines every set filter field with AND, in the order the fields
// are declared, using positional arguments throughout. A zero filter returns
// the full record set.
func (s *DBStore) Search(ctx context.Context, filter Filter) ([]*Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_logs WHERE 1=1`, recordColumns)
	args := []interface{}{}
	argCount := 1

	if filter.ProcessInstanceID != "" {
		query += fmt.Sprintf(" AND process_instance_id = %s", s.ph(argCount))
		args = append(args, filter.ProcessInstanceID)
		argCount++
	}
	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = %s", s.ph(argCount))
		args = append(args, filter.UserID)
		argCount++
	}
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = %s", s.ph(argCount))
		args = append(args, filter.EventType)
		argCount++
	}
	if filter.Start != nil {
		query += fmt.Sprintf(" AND timestamp >= %s", s.ph(argCount))
		args = append(args, *filter.Start)
		argCount++
	}
	if filter.End != nil {
		query += fmt.Sprintf(" AND timestamp <= %s", s.ph(argCount))
		args = append(args, *filter.End)
		argCount++
	}

	query += " ORDER BY timestamp DESC, id DESC"
	return s.queryRecords(ctx, query, args...)
}

// ListAll returns every record in chronological order.
func (s *DBStore) ListAll(ctx context.Context) ([]*Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_logs ORDER BY timestamp ASC, id ASC`, recordColumns)
	return s.queryRecords(ctx, query)
}

// Summary computes aggregate counts with GROUP BY queries. Action counts
// exclude records without an action.
func (s *DBStore) Summary(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		EventTypeCounts:    make(map[string]int64),
		UserActivityCounts: make(map[string]int64),
		ActionCounts:       make(map[string]int64),
	}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs").Scan(&summary.TotalEvents)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit records: %w", err)
	}

	if err := s.groupCount(ctx,
		"SELECT event_type, COUNT(*) FROM audit_logs GROUP BY event_type",
		summary.EventTypeCounts); err != nil {
		return nil, fmt.Errorf("failed to count events by type: %w", err)
	}

	if err := s.groupCount(ctx,
		"SELECT user_id, COUNT(*) FROM audit_logs GROUP BY user_id",
		summary.UserActivityCounts); err != nil {
		return nil, fmt.Errorf("failed to count events by user: %w", err)
	}

	if err := s.groupCount(ctx,
		"SELECT action, COUNT(*) FROM audit_logs WHERE action IS NOT NULL AND action != '' GROUP BY action",
		summary.ActionCounts); err != nil {
		return nil, fmt.Errorf("failed to count events by action: %w", err)
	}

	return summary, nil
}

func (s *DBStore) groupCount(ctx context.Context, query string, dest map[string]int64) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		dest[key] = count
	}
	return rows.Err()
}

func (s *DBStore) queryRecords(ctx context.Context, query string, args ...interface{}) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		record := &Record{}
		err := rows.Scan(
			&record.ID, &record.ProcessInstanceID, &record.ProcessID, &record.EventType,
			&record.NodeName, &record.TaskID, &record.UserID, &record.UserName, &record.Action,
			&record.Comments, &record.OldValue, &record.NewValue, &record.Timestamp,
			&record.IPAddress, &record.UserAgent,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}
	return records, nil
}
