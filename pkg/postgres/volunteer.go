package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ummahtools/eventroster/pkg/db"
)

const volunteerColumns = `
	id, event_id, role_id, name, phone, gender, slot_type, notes, status,
	checked_in_at, checked_out_at, created_at
`

// bucketColumn maps a slot bucket to its capacity column on volunteer_role
func bucketColumn(bucket string) (string, error) {
	switch bucket {
	case db.BucketBrother:
		return "slots_brother", nil
	case db.BucketSister:
		return "slots_sister", nil
	case db.BucketFlexible:
		return "slots_flexible", nil
	default:
		return "", fmt.Errorf("unknown bucket %q", bucket)
	}
}

func scanVolunteer(row pgx.Row) (*db.Volunteer, error) {
	var v db.Volunteer
	err := row.Scan(
		&v.ID, &v.EventID, &v.RoleID, &v.Name, &v.Phone, &v.Gender, &v.SlotType,
		&v.Notes, &v.Status, &v.CheckedInAt, &v.CheckedOutAt, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetVolunteer retrieves a single volunteer by id
func (d *DB) GetVolunteer(ctx context.Context, id string) (*db.Volunteer, error) {
	v, err := scanVolunteer(d.pool.QueryRow(ctx, `
		SELECT `+volunteerColumns+` FROM volunteer WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("volunteer %s: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("failed to query volunteer", err)
	}
	return v, nil
}

// GetEventVolunteers retrieves all volunteers for an event
func (d *DB) GetEventVolunteers(ctx context.Context, eventID string) ([]db.Volunteer, error) {
	return d.listVolunteers(ctx, `
		SELECT `+volunteerColumns+` FROM volunteer
		WHERE event_id = $1
		ORDER BY created_at
	`, eventID)
}

// GetConfirmedSignup retrieves the confirmed signup held by phone for
// (event, role), or (nil, nil) when none exists
func (d *DB) GetConfirmedSignup(ctx context.Context, eventID, roleID, phone string) (*db.Volunteer, error) {
	v, err := scanVolunteer(d.pool.QueryRow(ctx, `
		SELECT `+volunteerColumns+` FROM volunteer
		WHERE event_id = $1 AND role_id = $2 AND phone = $3 AND status = 'confirmed'
	`, eventID, roleID, phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("failed to query confirmed signup", err)
	}
	return v, nil
}

// GetNoShows retrieves confirmed volunteers for an event who never checked in
func (d *DB) GetNoShows(ctx context.Context, eventID string) ([]db.Volunteer, error) {
	return d.listVolunteers(ctx, `
		SELECT `+volunteerColumns+` FROM volunteer
		WHERE event_id = $1 AND status = 'confirmed' AND checked_in_at IS NULL
	`, eventID)
}

// CountConfirmed counts confirmed signups per capacity bucket for a role
func (d *DB) CountConfirmed(ctx context.Context, roleID string) (db.BucketCounts, error) {
	var counts db.BucketCounts
	err := d.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE slot_type = 'brother'),
			count(*) FILTER (WHERE slot_type = 'sister'),
			count(*) FILTER (WHERE slot_type = 'flexible')
		FROM volunteer
		WHERE role_id = $1 AND status = 'confirmed'
	`, roleID).Scan(&counts.Brother, &counts.Sister, &counts.Flexible)
	if err != nil {
		return db.BucketCounts{}, storeErr("failed to count confirmed signups", err)
	}
	return counts, nil
}

// InsertReservation admits one signup as a single atomic unit: it locks the
// role row, checks for an existing confirmed signup, re-counts the target
// bucket under the lock, inserts the volunteer, upserts the reusable contact
// record, and appends the INSERT activity entry. The role lock serializes
// concurrent reservations so two requests for the last slot resolve to one
// success and one ErrSlotFull. The duplicate check runs before the capacity
// check so a retried request whose earlier attempt filled the bucket gets
// ErrDuplicateRegistration, not ErrSlotFull; the partial unique index
// backstops races the check cannot see.
func (d *DB) InsertReservation(ctx context.Context, v *db.Volunteer, entry *db.ActivityLogEntry) error {
	column, err := bucketColumn(v.SlotType)
	if err != nil {
		return err
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return storeErr("failed to begin reservation transaction", err)
	}
	defer tx.Rollback(ctx)

	var slots int
	err = tx.QueryRow(ctx, `
		SELECT `+column+` FROM volunteer_role WHERE id = $1 FOR UPDATE
	`, v.RoleID).Scan(&slots)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("role %s: %w", v.RoleID, db.ErrNotFound)
	}
	if err != nil {
		return storeErr("failed to lock role", err)
	}

	var duplicate bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM volunteer
			WHERE event_id = $1 AND role_id = $2 AND phone = $3 AND status = 'confirmed'
		)
	`, v.EventID, v.RoleID, v.Phone).Scan(&duplicate)
	if err != nil {
		return storeErr("failed to check for existing signup", err)
	}
	if duplicate {
		return fmt.Errorf("phone %s already holds this role: %w", v.Phone, db.ErrDuplicateRegistration)
	}

	var used int
	err = tx.QueryRow(ctx, `
		SELECT count(*) FROM volunteer
		WHERE role_id = $1 AND slot_type = $2 AND status = 'confirmed'
	`, v.RoleID, v.SlotType).Scan(&used)
	if err != nil {
		return storeErr("failed to count bucket under lock", err)
	}

	if used > slots {
		return fmt.Errorf("role %s bucket %s holds %d confirmed signups for %d slots: %w",
			v.RoleID, v.SlotType, used, slots, db.ErrConsistencyViolation)
	}
	if used >= slots {
		return fmt.Errorf("role %s bucket %s: %w", v.RoleID, v.SlotType, db.ErrSlotFull)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO volunteer (id, event_id, role_id, name, phone, gender, slot_type, notes, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, v.ID, v.EventID, v.RoleID, v.Name, v.Phone, v.Gender, v.SlotType, v.Notes, v.Status, v.CreatedAt)
	if isUniqueViolation(err, "volunteer_event_role_phone_key") {
		return fmt.Errorf("phone %s already holds this role: %w", v.Phone, db.ErrDuplicateRegistration)
	}
	if err != nil {
		return storeErr("failed to insert volunteer", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO contact (id, name, phone, gender, source, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, 'signup', $4)
		ON CONFLICT ON CONSTRAINT contact_name_phone_key DO NOTHING
	`, v.Name, v.Phone, v.Gender, v.CreatedAt)
	if err != nil {
		return storeErr("failed to upsert contact", err)
	}

	if err := insertActivity(ctx, tx, entry); err != nil {
		return storeErr("failed to append reservation activity entry", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("failed to commit reservation", err)
	}
	return nil
}

// MarkCheckedIn sets checked_in_at only when currently unset. Returns false
// when the volunteer exists but was already checked in.
func (d *DB) MarkCheckedIn(ctx context.Context, id string, at time.Time) (bool, error) {
	return d.markAttendance(ctx, "checked_in_at", id, at)
}

// MarkCheckedOut sets checked_out_at only when currently unset
func (d *DB) MarkCheckedOut(ctx context.Context, id string, at time.Time) (bool, error) {
	return d.markAttendance(ctx, "checked_out_at", id, at)
}

func (d *DB) markAttendance(ctx context.Context, column, id string, at time.Time) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
		UPDATE volunteer SET `+column+` = $2
		WHERE id = $1 AND `+column+` IS NULL
	`, id, at.UTC())
	if err != nil {
		return false, storeErr("failed to update "+column, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish "already stamped" from "no such volunteer"
		var exists bool
		err := d.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM volunteer WHERE id = $1)`, id).Scan(&exists)
		if err != nil {
			return false, storeErr("failed to check volunteer existence", err)
		}
		if !exists {
			return false, fmt.Errorf("volunteer %s: %w", id, db.ErrNotFound)
		}
		return false, nil
	}
	return true, nil
}

// CancelVolunteer flips a confirmed volunteer to cancelled
func (d *DB) CancelVolunteer(ctx context.Context, id string) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE volunteer SET status = 'cancelled'
		WHERE id = $1 AND status = 'confirmed'
	`, id)
	if err != nil {
		return storeErr("failed to cancel volunteer", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("volunteer %s not confirmed: %w", id, db.ErrNotFound)
	}
	return nil
}

func (d *DB) listVolunteers(ctx context.Context, query string, args ...any) ([]db.Volunteer, error) {
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("failed to query volunteers", err)
	}
	defer rows.Close()

	var volunteers []db.Volunteer
	for rows.Next() {
		v, err := scanVolunteer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan volunteer: %w", err)
		}
		volunteers = append(volunteers, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating volunteers: %w", err)
	}

	return volunteers, nil
}
