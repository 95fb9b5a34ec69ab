package api

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/partha/checker-maker/pkg/engine"
	"github.com/partha/checker-maker/pkg/httputil"
)

// These endpoints run read-only SQL directly over the engine-owned tables,
// distinct from the audit_logs record store.

func (s *Server) ph(n int) string {
	if s.driver == "sqlite3" {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// processAudit handles GET /audit/process/{instanceId}.
func (s *Server) processAudit(w http.ResponseWriter, r *http.Request) {
	instanceID := mux.Vars(r)["instanceId"]

	query := fmt.Sprintf(`
		SELECT id, process_id, process_version, status, start_date, end_date
		FROM process_instances WHERE id = %s ORDER BY start_date DESC`, s.ph(1))

	rows, err := s.queryInstanceRows(r, query, instanceID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	if len(rows) == 0 {
		httputil.WriteNotFound(w, "No audit records found for process instance: "+instanceID)
		return
	}

	httputil.WriteSuccess(w, ProcessAuditResponse{
		ProcessInstanceID: instanceID,
		AuditTrail:        rows,
	})
}

// processesAudit handles GET /audit/processes.
func (s *Server) processesAudit(w http.ResponseWriter, r *http.Request) {
	limit := httputil.QueryInt(r, "limit", 50)
	offset := httputil.QueryInt(r, "offset", 0)

	query := fmt.Sprintf(`
		SELECT id, process_id, process_version, status, start_date, end_date
		FROM process_instances ORDER BY start_date DESC LIMIT %s OFFSET %s`,
		s.ph(1), s.ph(2))

	rows, err := s.queryInstanceRows(r, query, limit, offset)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	httputil.WriteSuccess(w, ProcessesAuditResponse{
		Total:     len(rows),
		Limit:     limit,
		Offset:    offset,
		Processes: rows,
	})
}

func (s *Server) queryInstanceRows(r *http.Request, query string, args ...interface{}) ([]ProcessInstanceRow, error) {
	rows, err := s.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]ProcessInstanceRow, 0)
	for rows.Next() {
		var row ProcessInstanceRow
		var status int
		var endDate sql.NullTime
		if err := rows.Scan(&row.ID, &row.ProcessID, &row.ProcessVersion, &status, &row.StartDate, &endDate); err != nil {
			return nil, err
		}
		row.Status = engine.Status(status).String()
		if endDate.Valid {
			t := endDate.Time
			row.EndDate = &t
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// taskAudit handles GET /audit/tasks/{instanceId}. A missing task table is
// tolerated with a note rather than an error.
func (s *Server) taskAudit(w http.ResponseWriter, r *http.Request) {
	instanceID := mux.Vars(r)["instanceId"]

	query := fmt.Sprintf(`
		SELECT id, name, phase, created_on, completed_on
		FROM human_tasks WHERE process_instance_id = %s ORDER BY created_on DESC`, s.ph(1))

	rows, err := s.db.QueryContext(r.Context(), query, instanceID)
	if err != nil {
		httputil.WriteSuccess(w, TaskAuditResponse{
			ProcessInstanceID: instanceID,
			Tasks:             []TaskRow{},
			Note:              "Task table not found or no tasks recorded",
		})
		return
	}
	defer rows.Close()

	tasks := make([]TaskRow, 0)
	for rows.Next() {
		var task TaskRow
		var completedOn sql.NullTime
		if err := rows.Scan(&task.TaskID, &task.TaskName, &task.Status, &task.CreatedOn, &completedOn); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "Database error: "+err.Error())
			return
		}
		if completedOn.Valid {
			t := completedOn.Time
			task.CompletedOn = &t
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	httputil.WriteSuccess(w, TaskAuditResponse{
		ProcessInstanceID: instanceID,
		Tasks:             tasks,
	})
}

// schemaInfo handles GET /audit/schema.
func (s *Server) schemaInfo(w http.ResponseWriter, r *http.Request) {
	var query, database string
	if s.driver == "sqlite3" {
		database = "SQLite"
		query = `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`
	} else {
		database = "PostgreSQL"
		query = `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' ORDER BY table_name`
	}

	rows, err := s.db.QueryContext(r.Context(), query)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	defer rows.Close()

	tables := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "Database error: "+err.Error())
			return
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	httputil.WriteSuccess(w, SchemaResponse{
		Database:    database,
		Tables:      tables,
		TotalTables: len(tables),
	})
}
