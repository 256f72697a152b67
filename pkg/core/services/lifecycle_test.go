package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ummahtools/eventroster/pkg/core/permissions"
	"github.com/ummahtools/eventroster/pkg/db"
)

func lifecycleFixture(t *testing.T) (*fakeStore, *permissions.Oracle) {
	t.Helper()
	store := newFakeStore()
	store.addEvent(db.Event{
		ID:       "event-1",
		Title:    "Community Iftar",
		Start:    time.Now().Add(48 * time.Hour),
		End:      time.Now().Add(52 * time.Hour),
		Status:   db.EventStatusPublished,
		IsPublic: true,
		OwnerID:  "owner",
	})
	return store, permissions.NewOracle(store)
}

func TestPublishUnpublish(t *testing.T) {
	store, oracle := lifecycleFixture(t)
	logger := zap.NewNop()
	ctx := context.Background()
	store.events["event-1"].Status = db.EventStatusDraft

	require.NoError(t, Publish(ctx, store, oracle, logger, "owner", "event-1"))
	assert.Equal(t, db.EventStatusPublished, store.events["event-1"].Status)

	// Publishing an already-published event is NotFound (no matching draft)
	assert.ErrorIs(t, Publish(ctx, store, oracle, logger, "owner", "event-1"), db.ErrNotFound)

	require.NoError(t, Unpublish(ctx, store, oracle, logger, "owner", "event-1"))
	assert.Equal(t, db.EventStatusDraft, store.events["event-1"].Status)
}

func TestSoftDeleteRestore_RoundTrip(t *testing.T) {
	store, oracle := lifecycleFixture(t)
	logger := zap.NewNop()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, SoftDelete(ctx, store, oracle, logger, "owner", "event-1", now))

	event := store.events["event-1"]
	require.NotNil(t, event.DeletedAt)
	assert.Equal(t, "owner", *event.DeletedBy)
	assert.Equal(t, db.EventStatusPublished, event.Status, "status preserved through soft delete")

	require.NoError(t, Restore(ctx, store, oracle, logger, "owner", "event-1", now, DefaultSoftDeleteRetention))

	event = store.events["event-1"]
	assert.Nil(t, event.DeletedAt)
	assert.Nil(t, event.DeletedBy)
	assert.Equal(t, db.EventStatusPublished, event.Status, "pre-delete status restored")
}

func TestSoftDelete_AlreadyDeleted(t *testing.T) {
	store, oracle := lifecycleFixture(t)
	now := time.Now().UTC()
	deletedAt := now.Add(-time.Hour)
	store.events["event-1"].DeletedAt = &deletedAt

	err := SoftDelete(context.Background(), store, oracle, zap.NewNop(), "owner", "event-1", now)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestRestore_OutsideRetentionWindow(t *testing.T) {
	store, oracle := lifecycleFixture(t)
	now := time.Now().UTC()
	deletedAt := now.Add(-31 * 24 * time.Hour)
	deletedBy := "owner"
	store.events["event-1"].DeletedAt = &deletedAt
	store.events["event-1"].DeletedBy = &deletedBy

	err := Restore(context.Background(), store, oracle, zap.NewNop(), "owner", "event-1", now, DefaultSoftDeleteRetention)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestRestore_NotDeleted(t *testing.T) {
	store, oracle := lifecycleFixture(t)

	err := Restore(context.Background(), store, oracle, zap.NewNop(), "owner", "event-1", time.Now().UTC(), DefaultSoftDeleteRetention)
	assert.ErrorIs(t, err, db.ErrInvalidState)
}

func TestLifecycle_Permissions(t *testing.T) {
	store, oracle := lifecycleFixture(t)
	logger := zap.NewNop()
	ctx := context.Background()
	now := time.Now().UTC()

	// A stranger may not delete
	err := SoftDelete(ctx, store, oracle, logger, "stranger", "event-1", now)
	assert.ErrorIs(t, err, db.ErrPermissionDenied)

	// A view grantee may not delete either
	store.shares["event-1/watcher"] = &db.EventShare{
		EventID: "event-1", SharedWith: "watcher", PermissionLevel: db.PermissionView,
	}
	err = SoftDelete(ctx, store, oracle, logger, "watcher", "event-1", now)
	assert.ErrorIs(t, err, db.ErrPermissionDenied)

	// An edit grantee may
	store.shares["event-1/helper"] = &db.EventShare{
		EventID: "event-1", SharedWith: "helper", PermissionLevel: db.PermissionEdit,
	}
	assert.NoError(t, SoftDelete(ctx, store, oracle, logger, "helper", "event-1", now))
}

func TestPurge_Cascades(t *testing.T) {
	store, oracle := lifecycleFixture(t)
	logger := zap.NewNop()
	ctx := context.Background()
	now := time.Now().UTC()

	store.addRole(db.VolunteerRole{ID: "role-1", EventID: "event-1", Name: "Greeter", SlotsBrother: 2})
	store.addVolunteer(db.Volunteer{
		ID: "vol-1", EventID: "event-1", RoleID: "role-1",
		Name: "Brother Aziz", Phone: "+447700900001",
		Gender: db.GenderBrother, SlotType: db.BucketBrother,
		Status: db.VolunteerStatusConfirmed,
	})
	store.shares["event-1/helper"] = &db.EventShare{EventID: "event-1", SharedWith: "helper", PermissionLevel: db.PermissionEdit}

	// Purging a live event must be refused
	err := Purge(ctx, store, oracle, logger, "owner", "event-1")
	assert.ErrorIs(t, err, db.ErrInvalidState)
	assert.Contains(t, err.Error(), "must be soft-deleted")

	require.NoError(t, SoftDelete(ctx, store, oracle, logger, "owner", "event-1", now))
	require.NoError(t, Purge(ctx, store, oracle, logger, "owner", "event-1"))

	assert.Empty(t, store.events)
	assert.Empty(t, store.roles)
	assert.Empty(t, store.volunteers)
	assert.Empty(t, store.shares)

	// DELETE entry appended for the confirmed volunteer; log survives the purge
	require.NotEmpty(t, store.activity)
	last := store.activity[len(store.activity)-1]
	assert.Equal(t, db.OpDelete, last.Operation)
	assert.Equal(t, "vol-1", last.VolunteerID)

	// Purged event is gone for good
	err = Purge(ctx, store, oracle, logger, "owner", "event-1")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestSweepExpired(t *testing.T) {
	store := newFakeStore()
	logger := zap.NewNop()
	now := time.Now().UTC()

	addDeleted := func(id string, deletedAgo time.Duration) {
		deletedAt := now.Add(-deletedAgo)
		deletedBy := "owner"
		store.addEvent(db.Event{
			ID: id, Title: id, OwnerID: "owner",
			Status:    db.EventStatusPublished,
			DeletedAt: &deletedAt, DeletedBy: &deletedBy,
		})
	}
	addDeleted("event-old", 31*24*time.Hour)
	addDeleted("event-recent", 29*24*time.Hour)
	store.addEvent(db.Event{ID: "event-live", Title: "live", OwnerID: "owner", Status: db.EventStatusPublished})

	results, err := SweepExpired(context.Background(), store, logger, now, DefaultSoftDeleteRetention)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "event-old", results[0].EventID)
	assert.NoError(t, results[0].Err)

	_, oldGone := store.events["event-old"]
	assert.False(t, oldGone, "31-day-old soft delete must be purged")
	_, recentKept := store.events["event-recent"]
	assert.True(t, recentKept, "29-day-old soft delete must survive")
	_, liveKept := store.events["event-live"]
	assert.True(t, liveKept)
}
