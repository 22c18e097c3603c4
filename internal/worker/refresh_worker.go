package worker

import (
	"context"
	"log/slog"

	"aidflow/internal/amqp"
	"aidflow/internal/services"
)

// RefreshWorker reacts to record change notifications by invalidating
// memoized series and scheduling a refresh of the materialized yearly
// series. The periodic poll in the processor covers lost messages.
type RefreshWorker struct {
	alloc     *services.AllocationService
	processor *services.SeriesProcessor
}

func NewRefreshWorker(alloc *services.AllocationService, processor *services.SeriesProcessor) *RefreshWorker {
	return &RefreshWorker{
		alloc:     alloc,
		processor: processor,
	}
}

// HandleRecordChanged processes a single record change message from AMQP.
func (w *RefreshWorker) HandleRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error {
	dropped := w.alloc.InvalidateKind(msg.RecordKind)

	slog.InfoContext(ctx, "Processing record change",
		"record_kind", msg.RecordKind,
		"record_id", msg.RecordID,
		"activity_id", msg.ActivityID,
		"series_dropped", dropped)

	w.processor.Trigger()
	return nil
}
