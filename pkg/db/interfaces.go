package db

import (
	"context"
	"time"
)

// ReservationStore defines the store operations used by the signup
// coordinator. InsertReservation is the atomic unit: it must lock the role,
// re-count the bucket, insert the volunteer, upsert the contact, and append
// the activity entry in a single transaction, returning ErrSlotFull,
// ErrDuplicateRegistration, or ErrConsistencyViolation as appropriate.
type ReservationStore interface {
	GetEvent(ctx context.Context, id string) (*Event, error)
	GetRole(ctx context.Context, id string) (*VolunteerRole, error)
	// GetConfirmedSignup returns the confirmed signup held by phone for
	// (event, role), or (nil, nil) when none exists. Checked before capacity
	// so a retried request reports the registration it already holds rather
	// than a full role.
	GetConfirmedSignup(ctx context.Context, eventID, roleID, phone string) (*Volunteer, error)
	CountConfirmed(ctx context.Context, roleID string) (BucketCounts, error)
	InsertReservation(ctx context.Context, v *Volunteer, entry *ActivityLogEntry) error
}

// LifecycleStore defines the store operations used by the event lifecycle
// services. All mutations are conditional updates: zero affected rows maps
// to ErrNotFound so concurrent transitions serialize through the store.
type LifecycleStore interface {
	GetEvent(ctx context.Context, id string) (*Event, error)
	SetEventStatus(ctx context.Context, id, from, to string) error
	SoftDeleteEvent(ctx context.Context, id, deletedBy string, at time.Time) error
	RestoreEvent(ctx context.Context, id string, deletedAfter time.Time) error
	GetEventVolunteers(ctx context.Context, eventID string) ([]Volunteer, error)
	PurgeEvent(ctx context.Context, eventID string, entries []ActivityLogEntry) error
	ListExpiredDeleted(ctx context.Context, deletedBefore time.Time) ([]Event, error)
}

// AttendanceStore defines the store operations for check-in/out and
// cancellation of individual volunteers.
type AttendanceStore interface {
	GetEvent(ctx context.Context, id string) (*Event, error)
	GetRole(ctx context.Context, id string) (*VolunteerRole, error)
	GetVolunteer(ctx context.Context, id string) (*Volunteer, error)
	// MarkCheckedIn sets checked_in_at only when currently unset and reports
	// whether the row changed.
	MarkCheckedIn(ctx context.Context, id string, at time.Time) (bool, error)
	MarkCheckedOut(ctx context.Context, id string, at time.Time) (bool, error)
	CancelVolunteer(ctx context.Context, id string) error
	AppendActivity(ctx context.Context, entry *ActivityLogEntry) error
}

// CleanupStore defines the store operations used by the no-show cleanup
// sweep. ListCleanupDue returns only events whose cleanup cursor is unset.
type CleanupStore interface {
	ListCleanupDue(ctx context.Context, endedBefore time.Time) ([]Event, error)
	GetNoShows(ctx context.Context, eventID string) ([]Volunteer, error)
	// DeleteContact removes the contact matching (name, phone) and reports
	// whether a row existed.
	DeleteContact(ctx context.Context, name, phone string) (bool, error)
	MarkCleanupProcessed(ctx context.Context, eventID string, at time.Time) error
	AppendActivity(ctx context.Context, entry *ActivityLogEntry) error
}

// ShareStore defines the store operations backing the permission oracle and
// share management. GetShare returns (nil, nil) when no grant exists.
type ShareStore interface {
	GetEvent(ctx context.Context, id string) (*Event, error)
	GetShare(ctx context.Context, eventID, userID string) (*EventShare, error)
	UpsertShare(ctx context.Context, share *EventShare) error
}

// ManagementStore defines the store operations for event and role creation
// and listings.
type ManagementStore interface {
	GetEvent(ctx context.Context, id string) (*Event, error)
	InsertEvent(ctx context.Context, event *Event) error
	InsertRole(ctx context.Context, role *VolunteerRole) error
	GetEventRoles(ctx context.Context, eventID string) ([]VolunteerRole, error)
	GetEventVolunteers(ctx context.Context, eventID string) ([]Volunteer, error)
	// ListPublicEvents excludes drafts and soft-deleted events.
	ListPublicEvents(ctx context.Context) ([]Event, error)
	ListOwnerEvents(ctx context.Context, ownerID string) ([]Event, error)
}

// Database is the full store contract implemented by postgres.DB
type Database interface {
	ReservationStore
	LifecycleStore
	AttendanceStore
	CleanupStore
	ShareStore
	ManagementStore
}
