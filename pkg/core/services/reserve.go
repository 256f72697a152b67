package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ummahtools/eventroster/pkg/core/roster"
	"github.com/ummahtools/eventroster/pkg/db"
)

// notifyTimeout bounds the confirmation SMS round trip. The reservation is
// already committed when the notification fires; a slow gateway must not
// hold the caller hostage.
const notifyTimeout = 10 * time.Second

// Notifier is the messaging collaborator. Failures are reported to the
// caller but never roll back a committed reservation.
type Notifier interface {
	Notify(ctx context.Context, phone, message string) error
}

// ReserveRequest carries a single signup request
type ReserveRequest struct {
	EventID string
	RoleID  string
	Name    string
	Phone   string
	Gender  string
	Notes   string
	// Flexible reserves from the ungendered flexible pool instead of the
	// volunteer's gender bucket.
	Flexible bool
}

// ReserveResult reports a committed reservation
type ReserveResult struct {
	Volunteer *db.Volunteer
	Remaining db.BucketCounts
	// NotifyErr is set when the confirmation message could not be sent.
	// The reservation itself stands.
	NotifyErr error
}

// Reserve validates and admits a single signup. The store's
// InsertReservation is the authoritative atomic unit: it locks the role
// row, checks for an existing confirmed signup, re-counts the bucket, and
// inserts under the unique (event, role, phone) index, so two concurrent
// calls for the last slot resolve to exactly one success and one
// ErrSlotFull, and a retried call lands on ErrDuplicateRegistration even
// when that earlier attempt filled the bucket. The duplicate and ledger
// pre-checks here only exist to fail fast and to detect consistency
// violations before touching the write path.
func Reserve(ctx context.Context, store db.ReservationStore, notifier Notifier, logger *zap.Logger, req ReserveRequest) (*ReserveResult, error) {
	if req.Gender != db.GenderBrother && req.Gender != db.GenderSister {
		return nil, &ValidationError{Field: "gender", Reason: fmt.Sprintf("must be %q or %q", db.GenderBrother, db.GenderSister)}
	}
	if err := ValidateName(req.Name); err != nil {
		return nil, err
	}
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	bucket := req.Gender
	if req.Flexible {
		bucket = db.BucketFlexible
	}

	logger.Info("Processing reservation",
		zap.String("event_id", req.EventID),
		zap.String("role_id", req.RoleID),
		zap.String("bucket", bucket))

	event, err := store.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event: %w", err)
	}
	if event.Deleted() || event.Status != db.EventStatusPublished {
		return nil, fmt.Errorf("event %s is not open for signup: %w", req.EventID, db.ErrNotFound)
	}

	role, err := store.GetRole(ctx, req.RoleID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch role: %w", err)
	}
	if role.EventID != event.ID {
		return nil, fmt.Errorf("role %s does not belong to event %s: %w", req.RoleID, req.EventID, db.ErrNotFound)
	}

	// Duplicate lookup comes before the capacity check: a retried request
	// whose earlier attempt took the last slot must learn it is already
	// registered, not that the role is full.
	existing, err := store.GetConfirmedSignup(ctx, event.ID, role.ID, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing signup: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("phone %s already holds role %s: %w", phone, role.Name, db.ErrDuplicateRegistration)
	}

	counts, err := store.CountConfirmed(ctx, role.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count confirmed signups: %w", err)
	}

	remaining, err := roster.RemainingFor(role, counts, bucket)
	if err != nil {
		if errors.Is(err, db.ErrConsistencyViolation) {
			logger.Error("Confirmed signups exceed configured capacity",
				zap.String("role_id", role.ID),
				zap.String("bucket", bucket),
				zap.Int("remaining", remaining),
				zap.Error(err))
		}
		return nil, err
	}
	if remaining <= 0 {
		return nil, fmt.Errorf("no %s slots remain for role %s: %w", bucket, role.Name, db.ErrSlotFull)
	}

	now := time.Now().UTC()
	volunteer := &db.Volunteer{
		ID:        uuid.New().String(),
		EventID:   event.ID,
		RoleID:    role.ID,
		Name:      req.Name,
		Phone:     phone,
		Gender:    req.Gender,
		SlotType:  bucket,
		Notes:     req.Notes,
		Status:    db.VolunteerStatusConfirmed,
		CreatedAt: now,
	}
	entry := newActivityEntry(db.OpInsert, volunteer, event.Title, role.Name, now)

	if err := store.InsertReservation(ctx, volunteer, entry); err != nil {
		return nil, fmt.Errorf("failed to insert reservation: %w", err)
	}

	switch bucket {
	case db.BucketBrother:
		counts.Brother++
	case db.BucketSister:
		counts.Sister++
	case db.BucketFlexible:
		counts.Flexible++
	}

	logger.Info("Reservation confirmed",
		zap.String("volunteer_id", volunteer.ID),
		zap.String("role", role.Name),
		zap.Int("remaining_in_bucket", remaining-1))

	result := &ReserveResult{
		Volunteer: volunteer,
		Remaining: roster.Remaining(role, counts),
	}

	if notifier != nil {
		nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()

		message := fmt.Sprintf("Salaam %s, your signup for %s at %s is confirmed. Starts %s.",
			volunteer.Name, role.Name, event.Title, event.Start.Format("Mon 2 Jan 15:04"))
		if err := notifier.Notify(nctx, volunteer.Phone, message); err != nil {
			logger.Warn("Confirmation notification failed",
				zap.String("volunteer_id", volunteer.ID),
				zap.Error(err))
			result.NotifyErr = err
		}
	}

	return result, nil
}

// newActivityEntry snapshots a volunteer into an immutable audit record
func newActivityEntry(operation string, v *db.Volunteer, eventTitle, roleName string, at time.Time) *db.ActivityLogEntry {
	return &db.ActivityLogEntry{
		ID:            uuid.New().String(),
		Operation:     operation,
		VolunteerID:   v.ID,
		VolunteerName: v.Name,
		Phone:         v.Phone,
		Gender:        v.Gender,
		EventTitle:    eventTitle,
		RoleName:      roleName,
		CreatedAt:     at,
	}
}
