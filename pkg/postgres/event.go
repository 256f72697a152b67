package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ummahtools/eventroster/pkg/db"
)

const eventColumns = `
	id, title, location, start_datetime, end_datetime, status,
	is_public, owner_id, deleted_at, deleted_by, cleanup_processed_at, created_at
`

func scanEvent(row pgx.Row) (*db.Event, error) {
	var e db.Event
	err := row.Scan(
		&e.ID, &e.Title, &e.Location, &e.Start, &e.End, &e.Status,
		&e.IsPublic, &e.OwnerID, &e.DeletedAt, &e.DeletedBy, &e.CleanupProcessedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEvent retrieves a single event by id, soft-deleted or not
func (d *DB) GetEvent(ctx context.Context, id string) (*db.Event, error) {
	event, err := scanEvent(d.pool.QueryRow(ctx, `
		SELECT `+eventColumns+` FROM event WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("failed to query event", err)
	}
	return event, nil
}

// InsertEvent inserts a new event record
func (d *DB) InsertEvent(ctx context.Context, event *db.Event) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO event (id, title, location, start_datetime, end_datetime, status, is_public, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, event.ID, event.Title, event.Location, event.Start, event.End,
		event.Status, event.IsPublic, event.OwnerID, event.CreatedAt)
	if err != nil {
		return storeErr("failed to insert event", err)
	}
	return nil
}

// SetEventStatus transitions an event between draft and published. The
// update is conditional on the current status and on the event being live,
// so concurrent transitions serialize in the database.
func (d *DB) SetEventStatus(ctx context.Context, id, from, to string) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE event SET status = $3
		WHERE id = $1 AND status = $2 AND deleted_at IS NULL
	`, id, from, to)
	if err != nil {
		return storeErr("failed to update event status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s not in status %s: %w", id, from, db.ErrNotFound)
	}
	return nil
}

// SoftDeleteEvent marks a live event deleted. Status is left untouched so a
// later restore recovers the pre-delete state.
func (d *DB) SoftDeleteEvent(ctx context.Context, id, deletedBy string, at time.Time) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE event SET deleted_at = $2, deleted_by = $3
		WHERE id = $1 AND deleted_at IS NULL
	`, id, at.UTC(), deletedBy)
	if err != nil {
		return storeErr("failed to soft-delete event", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s not found or already deleted: %w", id, db.ErrNotFound)
	}
	return nil
}

// RestoreEvent clears the deletion fields of a soft-deleted event, provided
// it was deleted after the given cutoff (inside the retention window).
func (d *DB) RestoreEvent(ctx context.Context, id string, deletedAfter time.Time) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE event SET deleted_at = NULL, deleted_by = NULL
		WHERE id = $1 AND deleted_at IS NOT NULL AND deleted_at > $2
	`, id, deletedAfter.UTC())
	if err != nil {
		return storeErr("failed to restore event", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s not restorable: %w", id, db.ErrNotFound)
	}
	return nil
}

// PurgeEvent permanently removes a soft-deleted event and its dependent rows
// in one transaction, child before parent, and appends the given DELETE
// activity entries. The activity log itself is never deleted from.
func (d *DB) PurgeEvent(ctx context.Context, eventID string, entries []db.ActivityLogEntry) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return storeErr("failed to begin purge transaction", err)
	}
	defer tx.Rollback(ctx)

	// Lock the event row and confirm it is soft-deleted
	var deletedAt *time.Time
	err = tx.QueryRow(ctx, `
		SELECT deleted_at FROM event WHERE id = $1 FOR UPDATE
	`, eventID).Scan(&deletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("event %s: %w", eventID, db.ErrNotFound)
	}
	if err != nil {
		return storeErr("failed to lock event for purge", err)
	}
	if deletedAt == nil {
		return fmt.Errorf("event %s is not soft-deleted: %w", eventID, db.ErrNotFound)
	}

	for _, entry := range entries {
		if err := insertActivity(ctx, tx, &entry); err != nil {
			return storeErr("failed to append purge activity entry", err)
		}
	}

	for _, stmt := range []string{
		`DELETE FROM volunteer WHERE event_id = $1`,
		`DELETE FROM event_share WHERE event_id = $1`,
		`DELETE FROM volunteer_role WHERE event_id = $1`,
		`DELETE FROM event WHERE id = $1`,
	} {
		if _, err := tx.Exec(ctx, stmt, eventID); err != nil {
			return storeErr("failed to purge event rows", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("failed to commit purge transaction", err)
	}
	return nil
}

// ListExpiredDeleted returns soft-deleted events whose deletion timestamp is
// older than the cutoff, i.e. past the recovery window.
func (d *DB) ListExpiredDeleted(ctx context.Context, deletedBefore time.Time) ([]db.Event, error) {
	return d.listEvents(ctx, `
		SELECT `+eventColumns+` FROM event
		WHERE deleted_at IS NOT NULL AND deleted_at < $1
	`, deletedBefore.UTC())
}

// ListCleanupDue returns live events that ended before the cutoff and have
// not yet been processed by the no-show cleanup.
func (d *DB) ListCleanupDue(ctx context.Context, endedBefore time.Time) ([]db.Event, error) {
	return d.listEvents(ctx, `
		SELECT `+eventColumns+` FROM event
		WHERE deleted_at IS NULL
		  AND cleanup_processed_at IS NULL
		  AND end_datetime < $1
	`, endedBefore.UTC())
}

// MarkCleanupProcessed stamps the no-show cleanup cursor for an event
func (d *DB) MarkCleanupProcessed(ctx context.Context, eventID string, at time.Time) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE event SET cleanup_processed_at = $2 WHERE id = $1
	`, eventID, at.UTC())
	if err != nil {
		return storeErr("failed to mark event cleanup-processed", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s: %w", eventID, db.ErrNotFound)
	}
	return nil
}

// ListPublicEvents returns published, public, non-deleted events
func (d *DB) ListPublicEvents(ctx context.Context) ([]db.Event, error) {
	return d.listEvents(ctx, `
		SELECT `+eventColumns+` FROM event
		WHERE deleted_at IS NULL AND is_public AND status = 'published'
		ORDER BY start_datetime
	`)
}

// ListOwnerEvents returns an owner's non-deleted events, drafts included
func (d *DB) ListOwnerEvents(ctx context.Context, ownerID string) ([]db.Event, error) {
	return d.listEvents(ctx, `
		SELECT `+eventColumns+` FROM event
		WHERE deleted_at IS NULL AND owner_id = $1
		ORDER BY start_datetime
	`, ownerID)
}

func (d *DB) listEvents(ctx context.Context, query string, args ...any) ([]db.Event, error) {
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("failed to query events", err)
	}
	defer rows.Close()

	var events []db.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}
