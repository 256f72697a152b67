package permissions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ummahtools/eventroster/pkg/db"
)

type mockShareStore struct {
	shares map[string]*db.EventShare // keyed by eventID+"/"+userID
	err    error
}

func (m *mockShareStore) GetEvent(ctx context.Context, id string) (*db.Event, error) {
	return nil, db.ErrNotFound
}

func (m *mockShareStore) GetShare(ctx context.Context, eventID, userID string) (*db.EventShare, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.shares[eventID+"/"+userID], nil
}

func (m *mockShareStore) UpsertShare(ctx context.Context, share *db.EventShare) error {
	return nil
}

func testEvent() *db.Event {
	return &db.Event{
		ID:       "event-1",
		Title:    "Friday Food Drive",
		OwnerID:  "owner",
		Status:   db.EventStatusPublished,
		IsPublic: true,
	}
}

func TestCanEdit(t *testing.T) {
	tests := []struct {
		name     string
		userID   string
		shares   map[string]*db.EventShare
		expected bool
	}{
		{
			name:     "owner can edit",
			userID:   "owner",
			expected: true,
		},
		{
			name:   "edit grantee can edit",
			userID: "helper",
			shares: map[string]*db.EventShare{
				"event-1/helper": {EventID: "event-1", SharedWith: "helper", PermissionLevel: db.PermissionEdit},
			},
			expected: true,
		},
		{
			name:   "view grantee cannot edit",
			userID: "watcher",
			shares: map[string]*db.EventShare{
				"event-1/watcher": {EventID: "event-1", SharedWith: "watcher", PermissionLevel: db.PermissionView},
			},
			expected: false,
		},
		{
			name:     "stranger cannot edit",
			userID:   "stranger",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := NewOracle(&mockShareStore{shares: tt.shares})
			canEdit, err := oracle.CanEdit(context.Background(), tt.userID, testEvent())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, canEdit)
		})
	}
}

func TestCanView(t *testing.T) {
	t.Run("public published event viewable by anyone", func(t *testing.T) {
		oracle := NewOracle(&mockShareStore{})
		canView, err := oracle.CanView(context.Background(), "stranger", testEvent())
		require.NoError(t, err)
		assert.True(t, canView)
	})

	t.Run("draft only viewable by owner and grantees", func(t *testing.T) {
		event := testEvent()
		event.Status = db.EventStatusDraft

		oracle := NewOracle(&mockShareStore{shares: map[string]*db.EventShare{
			"event-1/watcher": {EventID: "event-1", SharedWith: "watcher", PermissionLevel: db.PermissionView},
		}})

		canView, err := oracle.CanView(context.Background(), "stranger", event)
		require.NoError(t, err)
		assert.False(t, canView)

		canView, err = oracle.CanView(context.Background(), "watcher", event)
		require.NoError(t, err)
		assert.True(t, canView)

		canView, err = oracle.CanView(context.Background(), "owner", event)
		require.NoError(t, err)
		assert.True(t, canView)
	})

	t.Run("soft-deleted event not publicly viewable", func(t *testing.T) {
		event := testEvent()
		deletedAt := event.CreatedAt
		event.DeletedAt = &deletedAt

		oracle := NewOracle(&mockShareStore{})
		canView, err := oracle.CanView(context.Background(), "stranger", event)
		require.NoError(t, err)
		assert.False(t, canView)
	})
}

func TestOracle_StoreError(t *testing.T) {
	storeErr := errors.New("connection reset")
	oracle := NewOracle(&mockShareStore{err: storeErr})

	_, err := oracle.CanEdit(context.Background(), "helper", testEvent())
	assert.ErrorIs(t, err, storeErr)
}
