package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ummahtools/eventroster/pkg/db"
)

// DefaultSoftDeleteRetention is how long a soft-deleted event stays
// recoverable before the sweep purges it.
const DefaultSoftDeleteRetention = 30 * 24 * time.Hour

// PermissionOracle answers permission questions for lifecycle mutations.
// permissions.Oracle is the production implementation.
type PermissionOracle interface {
	CanEdit(ctx context.Context, userID string, event *db.Event) (bool, error)
	CanView(ctx context.Context, userID string, event *db.Event) (bool, error)
}

// Publish moves a draft event to published
func Publish(ctx context.Context, store db.LifecycleStore, oracle PermissionOracle, logger *zap.Logger, userID, eventID string) error {
	if _, err := editableEvent(ctx, store, oracle, userID, eventID); err != nil {
		return err
	}

	if err := store.SetEventStatus(ctx, eventID, db.EventStatusDraft, db.EventStatusPublished); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", eventID, err)
	}

	logger.Info("Event published", zap.String("event_id", eventID), zap.String("user_id", userID))
	return nil
}

// Unpublish moves a published event back to draft
func Unpublish(ctx context.Context, store db.LifecycleStore, oracle PermissionOracle, logger *zap.Logger, userID, eventID string) error {
	if _, err := editableEvent(ctx, store, oracle, userID, eventID); err != nil {
		return err
	}

	if err := store.SetEventStatus(ctx, eventID, db.EventStatusPublished, db.EventStatusDraft); err != nil {
		return fmt.Errorf("failed to unpublish event %s: %w", eventID, err)
	}

	logger.Info("Event unpublished", zap.String("event_id", eventID), zap.String("user_id", userID))
	return nil
}

// SoftDelete hides an event, keeping it recoverable for the retention
// window. The event's status column is left untouched so Restore recovers
// the pre-delete state.
func SoftDelete(ctx context.Context, store db.LifecycleStore, oracle PermissionOracle, logger *zap.Logger, userID, eventID string, now time.Time) error {
	if _, err := editableEvent(ctx, store, oracle, userID, eventID); err != nil {
		return err
	}

	if err := store.SoftDeleteEvent(ctx, eventID, userID, now); err != nil {
		return fmt.Errorf("failed to soft-delete event %s: %w", eventID, err)
	}

	logger.Info("Event soft-deleted",
		zap.String("event_id", eventID),
		zap.String("deleted_by", userID))
	return nil
}

// Restore brings a soft-deleted event back, clearing the deletion fields.
// Events deleted longer ago than the retention window are no longer
// recoverable.
func Restore(ctx context.Context, store db.LifecycleStore, oracle PermissionOracle, logger *zap.Logger, userID, eventID string, now time.Time, retention time.Duration) error {
	event, err := store.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to fetch event: %w", err)
	}
	if !event.Deleted() {
		return fmt.Errorf("event %s is not soft-deleted: %w", eventID, db.ErrInvalidState)
	}

	canEdit, err := oracle.CanEdit(ctx, userID, event)
	if err != nil {
		return fmt.Errorf("failed to check permissions: %w", err)
	}
	if !canEdit {
		return fmt.Errorf("user %s may not restore event %s: %w", userID, eventID, db.ErrPermissionDenied)
	}

	if err := store.RestoreEvent(ctx, eventID, now.Add(-retention)); err != nil {
		return fmt.Errorf("failed to restore event %s: %w", eventID, err)
	}

	logger.Info("Event restored",
		zap.String("event_id", eventID),
		zap.String("restored_by", userID),
		zap.String("status", event.Status))
	return nil
}

// Purge irreversibly removes a soft-deleted event and all its dependent
// rows, child before parent. A DELETE activity entry is appended per
// confirmed volunteer; the activity log itself is never touched.
func Purge(ctx context.Context, store db.LifecycleStore, oracle PermissionOracle, logger *zap.Logger, userID, eventID string) error {
	event, err := store.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to fetch event: %w", err)
	}
	if !event.Deleted() {
		return fmt.Errorf("event %s must be soft-deleted before purge: %w", eventID, db.ErrInvalidState)
	}

	canEdit, err := oracle.CanEdit(ctx, userID, event)
	if err != nil {
		return fmt.Errorf("failed to check permissions: %w", err)
	}
	if !canEdit {
		return fmt.Errorf("user %s may not purge event %s: %w", userID, eventID, db.ErrPermissionDenied)
	}

	if err := purgeEvent(ctx, store, event); err != nil {
		return err
	}

	logger.Info("Event purged",
		zap.String("event_id", eventID),
		zap.String("purged_by", userID))
	return nil
}

// purgeEvent snapshots confirmed volunteers into DELETE activity entries
// and runs the cascading delete in one store transaction.
func purgeEvent(ctx context.Context, store db.LifecycleStore, event *db.Event) error {
	volunteers, err := store.GetEventVolunteers(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch volunteers for event %s: %w", event.ID, err)
	}

	now := time.Now().UTC()
	var entries []db.ActivityLogEntry
	for i := range volunteers {
		v := &volunteers[i]
		if v.Status != db.VolunteerStatusConfirmed {
			continue
		}
		entries = append(entries, *newActivityEntry(db.OpDelete, v, event.Title, "", now))
	}

	if err := store.PurgeEvent(ctx, event.ID, entries); err != nil {
		return fmt.Errorf("failed to purge event %s: %w", event.ID, err)
	}

	return nil
}

// editableEvent fetches a live event and verifies the caller may mutate it
func editableEvent(ctx context.Context, store db.LifecycleStore, oracle PermissionOracle, userID, eventID string) (*db.Event, error) {
	event, err := store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event: %w", err)
	}
	if event.Deleted() {
		return nil, fmt.Errorf("event %s is deleted: %w", eventID, db.ErrNotFound)
	}

	canEdit, err := oracle.CanEdit(ctx, userID, event)
	if err != nil {
		return nil, fmt.Errorf("failed to check permissions: %w", err)
	}
	if !canEdit {
		return nil, fmt.Errorf("user %s may not mutate event %s: %w", userID, eventID, db.ErrPermissionDenied)
	}

	return event, nil
}
