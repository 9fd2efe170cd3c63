package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mechanicbuddy/control-plane/internal/domain"
)

// Recorder writes and reads the administrative audit trail. Writes are
// synchronous: the middleware blocks the response until the row is durable,
// and a failed insert fails the request.
type Recorder struct {
	repo domain.AuditRepository
}

func NewRecorder(repo domain.AuditRepository) *Recorder {
	return &Recorder{repo: repo}
}

// Record persists one audit entry, assigning ID and timestamp if unset.
func (r *Recorder) Record(ctx context.Context, entry *domain.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.WasSuccessful = entry.StatusCode < 400

	if err := r.repo.Record(ctx, entry); err != nil {
		return fmt.Errorf("audit.Recorder.Record: %w", err)
	}

	return nil
}

// Query returns matching entries, newest first.
func (r *Recorder) Query(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]*domain.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := r.repo.Query(ctx, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("audit.Recorder.Query: %w", err)
	}

	return entries, nil
}

// Stats aggregates activity over a trailing window of whole days.
func (r *Recorder) Stats(ctx context.Context, windowDays int) (*domain.AuditLogStats, error) {
	if windowDays < 1 {
		windowDays = 7
	}

	stats, err := r.repo.Stats(ctx, windowDays)
	if err != nil {
		return nil, fmt.Errorf("audit.Recorder.Stats: %w", err)
	}
	stats.WindowDays = windowDays

	return stats, nil
}
