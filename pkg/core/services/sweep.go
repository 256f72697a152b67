package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ummahtools/eventroster/pkg/db"
)

// SweepResult reports the outcome of purging one expired event
type SweepResult struct {
	EventID    string
	EventTitle string
	Err        error
}

// SweepExpired purges every soft-deleted event whose deleted_at is older
// than the retention window. Each event is processed independently: a
// failure is recorded in its result and the sweep continues. The sweep is
// driven by an external scheduler; this package owns no timer.
func SweepExpired(ctx context.Context, store db.LifecycleStore, logger *zap.Logger, now time.Time, retention time.Duration) ([]SweepResult, error) {
	cutoff := now.Add(-retention)

	logger.Info("Sweeping expired soft-deleted events", zap.Time("cutoff", cutoff))

	events, err := store.ListExpiredDeleted(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	results := make([]SweepResult, 0, len(events))
	for i := range events {
		event := &events[i]
		result := SweepResult{EventID: event.ID, EventTitle: event.Title}

		if err := purgeEvent(ctx, store, event); err != nil {
			logger.Error("Failed to purge expired event",
				zap.String("event_id", event.ID),
				zap.Error(err))
			result.Err = err
		} else {
			logger.Info("Purged expired event",
				zap.String("event_id", event.ID),
				zap.String("title", event.Title))
		}

		results = append(results, result)
	}

	return results, nil
}
