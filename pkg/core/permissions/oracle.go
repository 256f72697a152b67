// Package permissions derives edit/view rights for events from ownership
// and event_share grants. It replaces any notion of a shared admin secret:
// every mutation path asks the oracle.
package permissions

import (
	"context"
	"fmt"

	"github.com/ummahtools/eventroster/pkg/db"
)

// Oracle answers permission questions for a user against an event
type Oracle struct {
	shares db.ShareStore
}

// NewOracle creates an oracle backed by the given share store
func NewOracle(shares db.ShareStore) *Oracle {
	return &Oracle{shares: shares}
}

// CanEdit reports whether the user owns the event or holds an edit grant
func (o *Oracle) CanEdit(ctx context.Context, userID string, event *db.Event) (bool, error) {
	if event.OwnerID == userID {
		return true, nil
	}

	share, err := o.shares.GetShare(ctx, event.ID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to look up share for event %s: %w", event.ID, err)
	}

	return share != nil && share.PermissionLevel == db.PermissionEdit, nil
}

// CanView reports whether the user owns the event or holds any grant.
// Public, published events are viewable by everyone.
func (o *Oracle) CanView(ctx context.Context, userID string, event *db.Event) (bool, error) {
	if event.OwnerID == userID {
		return true, nil
	}
	if event.IsPublic && event.Status == db.EventStatusPublished && !event.Deleted() {
		return true, nil
	}

	share, err := o.shares.GetShare(ctx, event.ID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to look up share for event %s: %w", event.ID, err)
	}

	return share != nil, nil
}
