package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ummahtools/eventroster/pkg/db"
)

// CreateEventRequest carries the fields for a new draft event
type CreateEventRequest struct {
	Title    string
	Location string
	Start    time.Time
	End      time.Time
	IsPublic bool
	OwnerID  string
}

// CreateEvent creates a draft event owned by the caller. Events start as
// drafts and only become visible to the public once published.
func CreateEvent(ctx context.Context, store db.ManagementStore, logger *zap.Logger, req CreateEventRequest) (*db.Event, error) {
	if req.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if req.OwnerID == "" {
		return nil, &ValidationError{Field: "owner", Reason: "must not be empty"}
	}
	if !req.End.After(req.Start) {
		return nil, &ValidationError{Field: "end", Reason: "must be after start"}
	}

	event := &db.Event{
		ID:        uuid.New().String(),
		Title:     req.Title,
		Location:  req.Location,
		Start:     req.Start.UTC(),
		End:       req.End.UTC(),
		Status:    db.EventStatusDraft,
		IsPublic:  req.IsPublic,
		OwnerID:   req.OwnerID,
		CreatedAt: time.Now().UTC(),
	}

	if err := store.InsertEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	logger.Info("Event created",
		zap.String("event_id", event.ID),
		zap.String("title", event.Title),
		zap.String("owner_id", event.OwnerID))

	return event, nil
}

// AddRoleRequest carries the fields for a new volunteer role
type AddRoleRequest struct {
	EventID       string
	Name          string
	SlotsBrother  int
	SlotsSister   int
	SlotsFlexible int
	ShiftStart    time.Time
	ShiftEnd      time.Time
}

// AddRole adds a volunteer role with gender-segmented capacity to an event.
// Shift windows may span midnight and overlap other roles; only a zero-length
// shift is rejected.
func AddRole(ctx context.Context, store db.ManagementStore, oracle PermissionOracle, logger *zap.Logger, userID string, req AddRoleRequest) (*db.VolunteerRole, error) {
	if req.Name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if req.SlotsBrother < 0 || req.SlotsSister < 0 || req.SlotsFlexible < 0 {
		return nil, &ValidationError{Field: "slots", Reason: "must not be negative"}
	}
	if req.SlotsBrother+req.SlotsSister+req.SlotsFlexible == 0 {
		return nil, &ValidationError{Field: "slots", Reason: "at least one slot required"}
	}
	if req.ShiftEnd.Equal(req.ShiftStart) {
		return nil, &ValidationError{Field: "shift", Reason: "shift end must differ from start"}
	}

	event, err := store.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event: %w", err)
	}
	if event.Deleted() {
		return nil, fmt.Errorf("event %s is deleted: %w", req.EventID, db.ErrNotFound)
	}

	canEdit, err := oracle.CanEdit(ctx, userID, event)
	if err != nil {
		return nil, fmt.Errorf("failed to check permissions: %w", err)
	}
	if !canEdit {
		return nil, fmt.Errorf("user %s may not edit event %s: %w", userID, req.EventID, db.ErrPermissionDenied)
	}

	role := &db.VolunteerRole{
		ID:            uuid.New().String(),
		EventID:       event.ID,
		Name:          req.Name,
		SlotsBrother:  req.SlotsBrother,
		SlotsSister:   req.SlotsSister,
		SlotsFlexible: req.SlotsFlexible,
		ShiftStart:    req.ShiftStart.UTC(),
		ShiftEnd:      req.ShiftEnd.UTC(),
	}

	if err := store.InsertRole(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to insert role: %w", err)
	}

	logger.Info("Role added",
		zap.String("role_id", role.ID),
		zap.String("event_id", event.ID),
		zap.String("name", role.Name),
		zap.Int("total_slots", role.TotalSlots()))

	return role, nil
}

// ShareEvent grants another user view or edit access to an event. Only the
// owner may grant; a repeated grant updates the permission level.
func ShareEvent(ctx context.Context, store db.ShareStore, logger *zap.Logger, ownerID, eventID, granteeID, level string) (*db.EventShare, error) {
	if level != db.PermissionView && level != db.PermissionEdit {
		return nil, &ValidationError{Field: "permission", Reason: fmt.Sprintf("must be %q or %q", db.PermissionView, db.PermissionEdit)}
	}

	event, err := store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event: %w", err)
	}
	if event.Deleted() {
		return nil, fmt.Errorf("event %s is deleted: %w", eventID, db.ErrNotFound)
	}
	if event.OwnerID != ownerID {
		return nil, fmt.Errorf("only the owner may share event %s: %w", eventID, db.ErrPermissionDenied)
	}

	share := &db.EventShare{
		ID:              uuid.New().String(),
		EventID:         eventID,
		SharedBy:        ownerID,
		SharedWith:      granteeID,
		PermissionLevel: level,
		CreatedAt:       time.Now().UTC(),
	}

	if err := store.UpsertShare(ctx, share); err != nil {
		return nil, fmt.Errorf("failed to upsert share: %w", err)
	}

	logger.Info("Event shared",
		zap.String("event_id", eventID),
		zap.String("shared_with", granteeID),
		zap.String("permission", level))

	return share, nil
}

// ListEvents returns the public listing (published, non-deleted) when
// ownerID is empty, otherwise the owner's full listing including drafts.
func ListEvents(ctx context.Context, store db.ManagementStore, ownerID string) ([]db.Event, error) {
	if ownerID == "" {
		events, err := store.ListPublicEvents(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list public events: %w", err)
		}
		return events, nil
	}

	events, err := store.ListOwnerEvents(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for owner %s: %w", ownerID, err)
	}
	return events, nil
}
