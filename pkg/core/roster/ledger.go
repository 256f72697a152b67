// Package roster implements the slot ledger: pure capacity bookkeeping for
// volunteer roles with gender-segmented slots plus an ungendered flexible
// pool. The three buckets are fully independent — a gendered query never
// draws from the flexible pool, and a full gendered bucket is full even
// when flexible slots remain open.
package roster

import (
	"fmt"

	"github.com/ummahtools/eventroster/pkg/db"
)

// Remaining computes per-bucket remaining capacity for a role given the
// confirmed signup counts. Results may be negative; callers that need the
// consistency check should use RemainingFor.
func Remaining(role *db.VolunteerRole, counts db.BucketCounts) db.BucketCounts {
	return db.BucketCounts{
		Brother:  role.SlotsBrother - counts.Brother,
		Sister:   role.SlotsSister - counts.Sister,
		Flexible: role.SlotsFlexible - counts.Flexible,
	}
}

// RemainingTotal returns total remaining capacity across all buckets.
func RemainingTotal(role *db.VolunteerRole, counts db.BucketCounts) int {
	return role.TotalSlots() - counts.Total()
}

// RemainingFor returns the remaining capacity of a single bucket. A negative
// remainder means confirmed signups exceed configured capacity, which can
// only happen when a writer bypassed the reservation transaction; it is
// surfaced as db.ErrConsistencyViolation and must never be clamped to zero.
func RemainingFor(role *db.VolunteerRole, counts db.BucketCounts, bucket string) (int, error) {
	var remaining int
	switch bucket {
	case db.BucketBrother:
		remaining = role.SlotsBrother - counts.Brother
	case db.BucketSister:
		remaining = role.SlotsSister - counts.Sister
	case db.BucketFlexible:
		remaining = role.SlotsFlexible - counts.Flexible
	default:
		return 0, fmt.Errorf("unknown bucket %q", bucket)
	}

	if remaining < 0 {
		return remaining, fmt.Errorf(
			"role %s bucket %s: confirmed signups exceed capacity by %d: %w",
			role.ID, bucket, -remaining, db.ErrConsistencyViolation,
		)
	}

	return remaining, nil
}
