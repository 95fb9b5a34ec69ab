package audit

import (
	"context"

	"github.com/partha/checker-maker/pkg/observability"
)

// Recorder emits audit records on a best-effort basis. Record has no error
// return: a failed append is logged and counted but never propagated, so an
// audit failure cannot change the outcome of the business operation it
// accompanies.
type Recorder struct {
	store   Store
	logger  *observability.Logger
	metrics *Metrics
}

// NewRecorder creates a best-effort recorder over the given store. logger
// and metrics may be nil.
func NewRecorder(store Store, logger *observability.Logger, metrics *Metrics) *Recorder {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Recorder{store: store, logger: logger, metrics: metrics}
}

// Record appends the record, swallowing any persistence failure.
func (r *Recorder) Record(ctx context.Context, record *Record) {
	if err := r.store.Append(ctx, record); err != nil {
		if r.metrics != nil {
			r.metrics.WriteFailuresTotal.WithLabelValues(string(record.EventType)).Inc()
		}
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"event_type":          string(record.EventType),
			"process_instance_id": record.ProcessInstanceID,
		}).Error("failed to write audit record")
		return
	}

	if r.metrics != nil {
		r.metrics.WritesTotal.WithLabelValues(string(record.EventType)).Inc()
	}
	r.logger.WithFields(map[string]interface{}{
		"event_type":          string(record.EventType),
		"process_instance_id": record.ProcessInstanceID,
		"action":              record.Action,
	}).Debug("audit record written")
}
