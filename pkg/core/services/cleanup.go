package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ummahtools/eventroster/pkg/db"
)

// DefaultCleanupGrace is how long after an event ends before its no-shows
// are processed.
const DefaultCleanupGrace = 5 * time.Hour

// CleanupResult reports no-show processing for one event
type CleanupResult struct {
	EventID         string
	EventTitle      string
	NoShows         int
	ContactsRemoved int
	Err             error
}

// RunNoShowCleanup purges the reusable contact records of volunteers who
// never checked in, for every non-deleted event that ended before
// now - grace and has not been processed yet. The volunteer signup rows are
// left intact as history; only the contact pool is trimmed.
//
// Events are processed independently (collect-and-continue), and each
// successfully processed event has its cleanup cursor stamped, so a rerun
// over the same window is a no-op. The job is driven by an external
// scheduler and is safe to trigger on demand.
func RunNoShowCleanup(ctx context.Context, store db.CleanupStore, logger *zap.Logger, now time.Time, grace time.Duration) ([]CleanupResult, error) {
	cutoff := now.Add(-grace)

	logger.Info("Running no-show cleanup", zap.Time("ended_before", cutoff))

	events, err := store.ListCleanupDue(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list events due for cleanup: %w", err)
	}

	results := make([]CleanupResult, 0, len(events))
	for i := range events {
		event := &events[i]
		result := cleanupEvent(ctx, store, logger, event, now)
		results = append(results, result)
	}

	logger.Info("No-show cleanup finished", zap.Int("events_processed", len(results)))
	return results, nil
}

func cleanupEvent(ctx context.Context, store db.CleanupStore, logger *zap.Logger, event *db.Event, now time.Time) CleanupResult {
	result := CleanupResult{EventID: event.ID, EventTitle: event.Title}

	noShows, err := store.GetNoShows(ctx, event.ID)
	if err != nil {
		result.Err = fmt.Errorf("failed to fetch no-shows: %w", err)
		logger.Error("Cleanup failed for event", zap.String("event_id", event.ID), zap.Error(result.Err))
		return result
	}
	result.NoShows = len(noShows)

	for i := range noShows {
		v := &noShows[i]

		removed, err := store.DeleteContact(ctx, v.Name, v.Phone)
		if err != nil {
			result.Err = fmt.Errorf("failed to delete contact for %s: %w", v.Name, err)
			logger.Error("Cleanup failed for event", zap.String("event_id", event.ID), zap.Error(result.Err))
			return result
		}
		if !removed {
			// Already purged by an earlier run.
			continue
		}

		result.ContactsRemoved++

		entry := newActivityEntry(db.OpDelete, v, event.Title, "", now)
		if err := store.AppendActivity(ctx, entry); err != nil {
			result.Err = fmt.Errorf("failed to log contact removal for %s: %w", v.Name, err)
			logger.Error("Cleanup failed for event", zap.String("event_id", event.ID), zap.Error(result.Err))
			return result
		}

		logger.Debug("Removed no-show contact",
			zap.String("event_id", event.ID),
			zap.String("volunteer_id", v.ID))
	}

	if err := store.MarkCleanupProcessed(ctx, event.ID, now); err != nil {
		result.Err = fmt.Errorf("failed to mark event processed: %w", err)
		logger.Error("Cleanup failed for event", zap.String("event_id", event.ID), zap.Error(result.Err))
		return result
	}

	logger.Info("Event cleanup complete",
		zap.String("event_id", event.ID),
		zap.Int("no_shows", result.NoShows),
		zap.Int("contacts_removed", result.ContactsRemoved))

	return result
}
