package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ummahtools/eventroster/pkg/db"
)

// execer is satisfied by both *pgxpool.Pool and pgx.Tx
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// insertActivity appends one immutable audit entry. There is deliberately no
// update or delete counterpart anywhere in this package: corrections are
// made by inserting compensating entries.
func insertActivity(ctx context.Context, tx execer, entry *db.ActivityLogEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO activity_log (id, operation, volunteer_id, volunteer_name, phone, gender, event_title, role_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.Operation, entry.VolunteerID, entry.VolunteerName,
		entry.Phone, entry.Gender, entry.EventTitle, entry.RoleName, entry.CreatedAt)
	return err
}

// AppendActivity appends one audit entry outside any larger transaction
func (d *DB) AppendActivity(ctx context.Context, entry *db.ActivityLogEntry) error {
	if err := insertActivity(ctx, d.pool, entry); err != nil {
		return storeErr("failed to append activity entry", err)
	}
	return nil
}

// ListActivity retrieves the most recent audit entries, newest first
func (d *DB) ListActivity(ctx context.Context, limit int) ([]db.ActivityLogEntry, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, operation, volunteer_id, volunteer_name, phone, gender, event_title, role_name, created_at
		FROM activity_log
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, storeErr("failed to query activity log", err)
	}
	defer rows.Close()

	var entries []db.ActivityLogEntry
	for rows.Next() {
		var e db.ActivityLogEntry
		err := rows.Scan(&e.ID, &e.Operation, &e.VolunteerID, &e.VolunteerName,
			&e.Phone, &e.Gender, &e.EventTitle, &e.RoleName, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity entries: %w", err)
	}

	return entries, nil
}
