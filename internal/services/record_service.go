package services

import (
	"context"
	"fmt"
	"log/slog"

	"aidflow/internal/core"
	"aidflow/internal/data"
)

// RecordChangePublisher notifies interested consumers that a record was
// written. The AMQP client implements it.
type RecordChangePublisher interface {
	PublishRecordChanged(ctx context.Context, recordKind, recordID, activityID string) error
	Close() error
}

// RecordService orchestrates record writes across storage and AMQP. Storage
// is the source of truth; a failed publish is logged, never surfaced, and
// the series worker catches up on its next poll.
type RecordService struct {
	writer    data.RecordWriter
	publisher RecordChangePublisher
	alloc     *AllocationService
}

func NewRecordService(writer data.RecordWriter, publisher RecordChangePublisher, alloc *AllocationService) *RecordService {
	return &RecordService{
		writer:    writer,
		publisher: publisher,
		alloc:     alloc,
	}
}

// CreateTransaction saves a transaction and publishes a change notification.
func (s *RecordService) CreateTransaction(ctx context.Context, tx core.TransactionRecord) (string, error) {
	id, err := s.writer.AppendTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("save transaction: %w", err)
	}

	s.afterWrite(ctx, KindTransactions, id, tx.ActivityID)
	return id, nil
}

// CreateBudget saves a budget and publishes a change notification.
func (s *RecordService) CreateBudget(ctx context.Context, b core.BudgetRecord) (string, error) {
	id, err := s.writer.AppendBudget(ctx, b)
	if err != nil {
		return "", fmt.Errorf("save budget: %w", err)
	}

	s.afterWrite(ctx, KindBudgets, id, b.ActivityID)
	return id, nil
}

// CreatePlannedDisbursement saves a planned disbursement and publishes a
// change notification.
func (s *RecordService) CreatePlannedDisbursement(ctx context.Context, pd core.PlannedDisbursementRecord) (string, error) {
	id, err := s.writer.AppendPlannedDisbursement(ctx, pd)
	if err != nil {
		return "", fmt.Errorf("save planned disbursement: %w", err)
	}

	s.afterWrite(ctx, KindPlannedDisbursements, id, pd.ActivityID)
	return id, nil
}

func (s *RecordService) afterWrite(ctx context.Context, kind, id, activityID string) {
	if s.alloc != nil {
		dropped := s.alloc.InvalidateKind(kind)
		if dropped > 0 {
			slog.DebugContext(ctx, "Invalidated memoized series",
				"record_kind", kind, "dropped", dropped)
		}
	}

	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping change notification",
			"record_kind", kind, "record_id", id)
		return
	}

	if err := s.publisher.PublishRecordChanged(ctx, kind, id, activityID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change notification",
			"record_kind", kind, "record_id", id, "error", err)
	}
}

// Close releases the AMQP connection.
func (s *RecordService) Close() error {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			return fmt.Errorf("close record service: %w", err)
		}
	}
	return nil
}
