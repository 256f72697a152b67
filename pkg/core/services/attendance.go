package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ummahtools/eventroster/pkg/db"
)

// CheckIn stamps a volunteer's arrival. Calling it again for an
// already-checked-in volunteer is a no-op; the first timestamp stands.
func CheckIn(ctx context.Context, store db.AttendanceStore, oracle PermissionOracle, logger *zap.Logger, userID, volunteerID string, now time.Time) error {
	v, event, err := editableVolunteer(ctx, store, oracle, userID, volunteerID)
	if err != nil {
		return err
	}

	changed, err := store.MarkCheckedIn(ctx, v.ID, now)
	if err != nil {
		return fmt.Errorf("failed to check in volunteer %s: %w", volunteerID, err)
	}
	if !changed {
		logger.Debug("Volunteer already checked in", zap.String("volunteer_id", volunteerID))
		return nil
	}

	if err := appendVolunteerUpdate(ctx, store, v, event, now); err != nil {
		return err
	}

	logger.Info("Volunteer checked in",
		zap.String("volunteer_id", volunteerID),
		zap.String("event_id", event.ID))
	return nil
}

// CheckOut stamps a volunteer's departure, same no-op semantics as CheckIn
func CheckOut(ctx context.Context, store db.AttendanceStore, oracle PermissionOracle, logger *zap.Logger, userID, volunteerID string, now time.Time) error {
	v, event, err := editableVolunteer(ctx, store, oracle, userID, volunteerID)
	if err != nil {
		return err
	}

	changed, err := store.MarkCheckedOut(ctx, v.ID, now)
	if err != nil {
		return fmt.Errorf("failed to check out volunteer %s: %w", volunteerID, err)
	}
	if !changed {
		logger.Debug("Volunteer already checked out", zap.String("volunteer_id", volunteerID))
		return nil
	}

	if err := appendVolunteerUpdate(ctx, store, v, event, now); err != nil {
		return err
	}

	logger.Info("Volunteer checked out",
		zap.String("volunteer_id", volunteerID),
		zap.String("event_id", event.ID))
	return nil
}

// Cancel flips a confirmed volunteer to cancelled, freeing their slot.
// Cancelling an already-cancelled volunteer is a no-op. Authorization goes
// through the permission oracle; there is no backdoor credential.
func Cancel(ctx context.Context, store db.AttendanceStore, oracle PermissionOracle, logger *zap.Logger, userID, volunteerID string) error {
	v, event, err := editableVolunteer(ctx, store, oracle, userID, volunteerID)
	if err != nil {
		return err
	}

	if v.Status == db.VolunteerStatusCancelled {
		logger.Debug("Volunteer already cancelled", zap.String("volunteer_id", volunteerID))
		return nil
	}

	if err := store.CancelVolunteer(ctx, v.ID); err != nil {
		return fmt.Errorf("failed to cancel volunteer %s: %w", volunteerID, err)
	}

	if err := appendVolunteerUpdate(ctx, store, v, event, time.Now().UTC()); err != nil {
		return err
	}

	logger.Info("Volunteer cancelled",
		zap.String("volunteer_id", volunteerID),
		zap.String("event_id", event.ID),
		zap.String("cancelled_by", userID))
	return nil
}

// editableVolunteer fetches a volunteer and its live event, verifying the
// caller may mutate the event's signups
func editableVolunteer(ctx context.Context, store db.AttendanceStore, oracle PermissionOracle, userID, volunteerID string) (*db.Volunteer, *db.Event, error) {
	v, err := store.GetVolunteer(ctx, volunteerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch volunteer: %w", err)
	}

	event, err := store.GetEvent(ctx, v.EventID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch event: %w", err)
	}
	if event.Deleted() {
		return nil, nil, fmt.Errorf("event %s is deleted: %w", event.ID, db.ErrNotFound)
	}

	canEdit, err := oracle.CanEdit(ctx, userID, event)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check permissions: %w", err)
	}
	if !canEdit {
		return nil, nil, fmt.Errorf("user %s may not manage volunteers for event %s: %w", userID, event.ID, db.ErrPermissionDenied)
	}

	return v, event, nil
}

func appendVolunteerUpdate(ctx context.Context, store db.AttendanceStore, v *db.Volunteer, event *db.Event, at time.Time) error {
	// A purged role leaves an empty role name on the entry; any other
	// lookup failure must surface rather than silently thin the audit trail.
	roleName := ""
	role, err := store.GetRole(ctx, v.RoleID)
	switch {
	case err == nil:
		roleName = role.Name
	case !errors.Is(err, db.ErrNotFound):
		return fmt.Errorf("failed to fetch role for audit entry: %w", err)
	}

	entry := newActivityEntry(db.OpUpdate, v, event.Title, roleName, at)
	if err := store.AppendActivity(ctx, entry); err != nil {
		return fmt.Errorf("failed to append activity entry: %w", err)
	}
	return nil
}
