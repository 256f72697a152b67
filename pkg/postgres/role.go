package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ummahtools/eventroster/pkg/db"
)

const roleColumns = `
	id, event_id, name, slots_brother, slots_sister, slots_flexible, shift_start, shift_end
`

func scanRole(row pgx.Row) (*db.VolunteerRole, error) {
	var r db.VolunteerRole
	err := row.Scan(
		&r.ID, &r.EventID, &r.Name,
		&r.SlotsBrother, &r.SlotsSister, &r.SlotsFlexible,
		&r.ShiftStart, &r.ShiftEnd,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRole retrieves a single volunteer role by id
func (d *DB) GetRole(ctx context.Context, id string) (*db.VolunteerRole, error) {
	role, err := scanRole(d.pool.QueryRow(ctx, `
		SELECT `+roleColumns+` FROM volunteer_role WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("role %s: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("failed to query role", err)
	}
	return role, nil
}

// InsertRole inserts a new volunteer role record
func (d *DB) InsertRole(ctx context.Context, role *db.VolunteerRole) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO volunteer_role (id, event_id, name, slots_brother, slots_sister, slots_flexible, shift_start, shift_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, role.ID, role.EventID, role.Name,
		role.SlotsBrother, role.SlotsSister, role.SlotsFlexible,
		role.ShiftStart, role.ShiftEnd)
	if err != nil {
		return storeErr("failed to insert role", err)
	}
	return nil
}

// GetEventRoles retrieves all roles for an event
func (d *DB) GetEventRoles(ctx context.Context, eventID string) ([]db.VolunteerRole, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+roleColumns+` FROM volunteer_role
		WHERE event_id = $1
		ORDER BY shift_start
	`, eventID)
	if err != nil {
		return nil, storeErr("failed to query roles", err)
	}
	defer rows.Close()

	var roles []db.VolunteerRole
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, *role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roles: %w", err)
	}

	return roles, nil
}
