package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ummahtools/eventroster/pkg/db"
)

// GetShare retrieves the grant for a user on an event, or (nil, nil) when
// none exists.
func (d *DB) GetShare(ctx context.Context, eventID, userID string) (*db.EventShare, error) {
	var share db.EventShare
	err := d.pool.QueryRow(ctx, `
		SELECT id, event_id, shared_by, shared_with, permission_level, created_at
		FROM event_share
		WHERE event_id = $1 AND shared_with = $2
	`, eventID, userID).Scan(
		&share.ID, &share.EventID, &share.SharedBy, &share.SharedWith,
		&share.PermissionLevel, &share.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("failed to query share", err)
	}
	return &share, nil
}

// UpsertShare inserts a grant, or updates the permission level of an
// existing one for the same (event, grantee).
func (d *DB) UpsertShare(ctx context.Context, share *db.EventShare) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO event_share (id, event_id, shared_by, shared_with, permission_level, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT event_share_grantee_key
		DO UPDATE SET permission_level = EXCLUDED.permission_level
	`, share.ID, share.EventID, share.SharedBy, share.SharedWith,
		share.PermissionLevel, share.CreatedAt)
	if err != nil {
		return storeErr("failed to upsert share", err)
	}
	return nil
}
