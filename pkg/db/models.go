package db

import "time"

// Event statuses
const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
)

// Volunteer genders and slot buckets
const (
	GenderBrother = "brother"
	GenderSister  = "sister"

	BucketBrother  = "brother"
	BucketSister   = "sister"
	BucketFlexible = "flexible"
)

// Volunteer statuses
const (
	VolunteerStatusConfirmed = "confirmed"
	VolunteerStatusCancelled = "cancelled"
)

// Activity log operations
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// Share permission levels
const (
	PermissionView = "view"
	PermissionEdit = "edit"
)

// Event represents an organizer-published event
type Event struct {
	ID                 string
	Title              string
	Location           string
	Start              time.Time
	End                time.Time
	Status             string
	IsPublic           bool
	OwnerID            string
	DeletedAt          *time.Time
	DeletedBy          *string
	CleanupProcessedAt *time.Time
	CreatedAt          time.Time
}

// Deleted reports whether the event is soft-deleted
func (e *Event) Deleted() bool {
	return e.DeletedAt != nil
}

// VolunteerRole represents a volunteer job under an event with
// gender-segmented capacity plus an ungendered flexible pool
type VolunteerRole struct {
	ID            string
	EventID       string
	Name          string
	SlotsBrother  int
	SlotsSister   int
	SlotsFlexible int
	ShiftStart    time.Time
	ShiftEnd      time.Time
}

// TotalSlots returns the combined capacity across all three buckets
func (r *VolunteerRole) TotalSlots() int {
	return r.SlotsBrother + r.SlotsSister + r.SlotsFlexible
}

// Volunteer represents a single signup for a role.
// SlotType is the capacity bucket the signup occupies; it equals Gender for
// gendered signups and BucketFlexible when the caller reserved from the
// flexible pool.
type Volunteer struct {
	ID           string
	EventID      string
	RoleID       string
	Name         string
	Phone        string
	Gender       string
	SlotType     string
	Notes        string
	Status       string
	CheckedInAt  *time.Time
	CheckedOutAt *time.Time
	CreatedAt    time.Time
}

// Contact is a reusable person record independent of any one event
type Contact struct {
	ID        string
	Name      string
	Phone     string
	Gender    string
	Source    string
	CreatedAt time.Time
}

// ActivityLogEntry is an immutable audit record of a volunteer mutation.
// It carries a snapshot of the volunteer and event/role labels rather than
// foreign keys so that entries survive event purges.
type ActivityLogEntry struct {
	ID            string
	Operation     string
	VolunteerID   string
	VolunteerName string
	Phone         string
	Gender        string
	EventTitle    string
	RoleName      string
	CreatedAt     time.Time
}

// EventShare grants a user view or edit access to another user's event
type EventShare struct {
	ID              string
	EventID         string
	SharedBy        string
	SharedWith      string
	PermissionLevel string
	CreatedAt       time.Time
}

// BucketCounts holds confirmed signup counts per capacity bucket
type BucketCounts struct {
	Brother  int
	Sister   int
	Flexible int
}

// Total returns the combined confirmed count across all buckets
func (c BucketCounts) Total() int {
	return c.Brother + c.Sister + c.Flexible
}
