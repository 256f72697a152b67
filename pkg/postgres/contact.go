package postgres

import (
	"context"

	"github.com/ummahtools/eventroster/pkg/db"
)

// DeleteContact removes the reusable contact record matching (name, phone).
// Reports false when no such contact exists, which makes repeated no-show
// cleanup runs a no-op.
func (d *DB) DeleteContact(ctx context.Context, name, phone string) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
		DELETE FROM contact WHERE name = $1 AND phone = $2
	`, name, phone)
	if err != nil {
		return false, storeErr("failed to delete contact", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetContacts retrieves the contact pool, newest first
func (d *DB) GetContacts(ctx context.Context) ([]db.Contact, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, name, phone, gender, source, created_at
		FROM contact
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, storeErr("failed to query contacts", err)
	}
	defer rows.Close()

	var contacts []db.Contact
	for rows.Next() {
		var c db.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Gender, &c.Source, &c.CreatedAt); err != nil {
			return nil, storeErr("failed to scan contact", err)
		}
		contacts = append(contacts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("error iterating contacts", err)
	}

	return contacts, nil
}
