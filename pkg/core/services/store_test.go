package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ummahtools/eventroster/pkg/db"
)

// fakeStore is an in-memory db.Database for service tests. A single mutex
// serializes InsertReservation the way the postgres role lock does, so the
// concurrency tests exercise the same one-winner semantics.
type fakeStore struct {
	mu         sync.Mutex
	events     map[string]*db.Event
	roles      map[string]*db.VolunteerRole
	volunteers map[string]*db.Volunteer
	contacts   map[string]*db.Contact // keyed by name+"\x00"+phone
	shares     map[string]*db.EventShare
	activity   []db.ActivityLogEntry

	errGetEvent      error
	errGetRole       error
	errReserve       error
	errNoShows       error
	errDeleteContact error
	errAppend        error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:     make(map[string]*db.Event),
		roles:      make(map[string]*db.VolunteerRole),
		volunteers: make(map[string]*db.Volunteer),
		contacts:   make(map[string]*db.Contact),
		shares:     make(map[string]*db.EventShare),
	}
}

func contactKey(name, phone string) string { return name + "\x00" + phone }

func (s *fakeStore) addEvent(e db.Event) *db.Event {
	s.events[e.ID] = &e
	return &e
}

func (s *fakeStore) addRole(r db.VolunteerRole) *db.VolunteerRole {
	s.roles[r.ID] = &r
	return &r
}

func (s *fakeStore) addVolunteer(v db.Volunteer) *db.Volunteer {
	s.volunteers[v.ID] = &v
	s.contacts[contactKey(v.Name, v.Phone)] = &db.Contact{
		ID: "contact-" + v.ID, Name: v.Name, Phone: v.Phone, Gender: v.Gender, Source: "signup",
	}
	return &v
}

func (s *fakeStore) GetEvent(ctx context.Context, id string) (*db.Event, error) {
	if s.errGetEvent != nil {
		return nil, s.errGetEvent
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", id, db.ErrNotFound)
	}
	copied := *e
	return &copied, nil
}

func (s *fakeStore) GetRole(ctx context.Context, id string) (*db.VolunteerRole, error) {
	if s.errGetRole != nil {
		return nil, s.errGetRole
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", id, db.ErrNotFound)
	}
	copied := *r
	return &copied, nil
}

func (s *fakeStore) GetVolunteer(ctx context.Context, id string) (*db.Volunteer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.volunteers[id]
	if !ok {
		return nil, fmt.Errorf("volunteer %s: %w", id, db.ErrNotFound)
	}
	copied := *v
	return &copied, nil
}

func (s *fakeStore) GetConfirmedSignup(ctx context.Context, eventID, roleID, phone string) (*db.Volunteer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.volunteers {
		if v.EventID == eventID && v.RoleID == roleID && v.Phone == phone &&
			v.Status == db.VolunteerStatusConfirmed {
			copied := *v
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) countConfirmedLocked(roleID string) db.BucketCounts {
	var counts db.BucketCounts
	for _, v := range s.volunteers {
		if v.RoleID != roleID || v.Status != db.VolunteerStatusConfirmed {
			continue
		}
		switch v.SlotType {
		case db.BucketBrother:
			counts.Brother++
		case db.BucketSister:
			counts.Sister++
		case db.BucketFlexible:
			counts.Flexible++
		}
	}
	return counts
}

func (s *fakeStore) CountConfirmed(ctx context.Context, roleID string) (db.BucketCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countConfirmedLocked(roleID), nil
}

func (s *fakeStore) InsertReservation(ctx context.Context, v *db.Volunteer, entry *db.ActivityLogEntry) error {
	if s.errReserve != nil {
		return s.errReserve
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[v.RoleID]
	if !ok {
		return fmt.Errorf("role %s: %w", v.RoleID, db.ErrNotFound)
	}

	// Duplicate before capacity, same order as the postgres transaction
	for _, existing := range s.volunteers {
		if existing.EventID == v.EventID && existing.RoleID == v.RoleID &&
			existing.Phone == v.Phone && existing.Status == db.VolunteerStatusConfirmed {
			return fmt.Errorf("phone %s already registered: %w", v.Phone, db.ErrDuplicateRegistration)
		}
	}

	counts := s.countConfirmedLocked(v.RoleID)
	var used, slots int
	switch v.SlotType {
	case db.BucketBrother:
		used, slots = counts.Brother, role.SlotsBrother
	case db.BucketSister:
		used, slots = counts.Sister, role.SlotsSister
	case db.BucketFlexible:
		used, slots = counts.Flexible, role.SlotsFlexible
	}
	if used > slots {
		return fmt.Errorf("bucket %s over capacity: %w", v.SlotType, db.ErrConsistencyViolation)
	}
	if used == slots {
		return fmt.Errorf("bucket %s: %w", v.SlotType, db.ErrSlotFull)
	}

	copied := *v
	s.volunteers[v.ID] = &copied
	if _, exists := s.contacts[contactKey(v.Name, v.Phone)]; !exists {
		s.contacts[contactKey(v.Name, v.Phone)] = &db.Contact{
			ID: "contact-" + v.ID, Name: v.Name, Phone: v.Phone, Gender: v.Gender, Source: "signup",
		}
	}
	s.activity = append(s.activity, *entry)
	return nil
}

func (s *fakeStore) SetEventStatus(ctx context.Context, id, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok || e.DeletedAt != nil || e.Status != from {
		return fmt.Errorf("event %s in status %s: %w", id, from, db.ErrNotFound)
	}
	e.Status = to
	return nil
}

func (s *fakeStore) SoftDeleteEvent(ctx context.Context, id, deletedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok || e.DeletedAt != nil {
		return fmt.Errorf("event %s: %w", id, db.ErrNotFound)
	}
	e.DeletedAt = &at
	e.DeletedBy = &deletedBy
	return nil
}

func (s *fakeStore) RestoreEvent(ctx context.Context, id string, deletedAfter time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok || e.DeletedAt == nil || !e.DeletedAt.After(deletedAfter) {
		return fmt.Errorf("event %s not restorable: %w", id, db.ErrNotFound)
	}
	e.DeletedAt = nil
	e.DeletedBy = nil
	return nil
}

func (s *fakeStore) GetEventVolunteers(ctx context.Context, eventID string) ([]db.Volunteer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Volunteer
	for _, v := range s.volunteers {
		if v.EventID == eventID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (s *fakeStore) PurgeEvent(ctx context.Context, eventID string, entries []db.ActivityLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok || e.DeletedAt == nil {
		return fmt.Errorf("event %s: %w", eventID, db.ErrNotFound)
	}
	for id, v := range s.volunteers {
		if v.EventID == eventID {
			delete(s.volunteers, id)
		}
	}
	for id, share := range s.shares {
		if share.EventID == eventID {
			delete(s.shares, id)
		}
	}
	for id, r := range s.roles {
		if r.EventID == eventID {
			delete(s.roles, id)
		}
	}
	delete(s.events, eventID)
	s.activity = append(s.activity, entries...)
	return nil
}

func (s *fakeStore) ListExpiredDeleted(ctx context.Context, deletedBefore time.Time) ([]db.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Event
	for _, e := range s.events {
		if e.DeletedAt != nil && e.DeletedAt.Before(deletedBefore) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkCheckedIn(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.volunteers[id]
	if !ok {
		return false, fmt.Errorf("volunteer %s: %w", id, db.ErrNotFound)
	}
	if v.CheckedInAt != nil {
		return false, nil
	}
	v.CheckedInAt = &at
	return true, nil
}

func (s *fakeStore) MarkCheckedOut(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.volunteers[id]
	if !ok {
		return false, fmt.Errorf("volunteer %s: %w", id, db.ErrNotFound)
	}
	if v.CheckedOutAt != nil {
		return false, nil
	}
	v.CheckedOutAt = &at
	return true, nil
}

func (s *fakeStore) CancelVolunteer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.volunteers[id]
	if !ok || v.Status != db.VolunteerStatusConfirmed {
		return fmt.Errorf("volunteer %s: %w", id, db.ErrNotFound)
	}
	v.Status = db.VolunteerStatusCancelled
	return nil
}

func (s *fakeStore) AppendActivity(ctx context.Context, entry *db.ActivityLogEntry) error {
	if s.errAppend != nil {
		return s.errAppend
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, *entry)
	return nil
}

func (s *fakeStore) ListCleanupDue(ctx context.Context, endedBefore time.Time) ([]db.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Event
	for _, e := range s.events {
		if e.DeletedAt == nil && e.CleanupProcessedAt == nil && e.End.Before(endedBefore) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeStore) GetNoShows(ctx context.Context, eventID string) ([]db.Volunteer, error) {
	if s.errNoShows != nil {
		return nil, s.errNoShows
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Volunteer
	for _, v := range s.volunteers {
		if v.EventID == eventID && v.Status == db.VolunteerStatusConfirmed && v.CheckedInAt == nil {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteContact(ctx context.Context, name, phone string) (bool, error) {
	if s.errDeleteContact != nil {
		return false, s.errDeleteContact
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := contactKey(name, phone)
	if _, ok := s.contacts[key]; !ok {
		return false, nil
	}
	delete(s.contacts, key)
	return true, nil
}

func (s *fakeStore) MarkCleanupProcessed(ctx context.Context, eventID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return fmt.Errorf("event %s: %w", eventID, db.ErrNotFound)
	}
	e.CleanupProcessedAt = &at
	return nil
}

func (s *fakeStore) GetShare(ctx context.Context, eventID, userID string) (*db.EventShare, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	share, ok := s.shares[eventID+"/"+userID]
	if !ok {
		return nil, nil
	}
	copied := *share
	return &copied, nil
}

func (s *fakeStore) UpsertShare(ctx context.Context, share *db.EventShare) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *share
	s.shares[share.EventID+"/"+share.SharedWith] = &copied
	return nil
}

func (s *fakeStore) InsertEvent(ctx context.Context, event *db.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *event
	s.events[event.ID] = &copied
	return nil
}

func (s *fakeStore) InsertRole(ctx context.Context, role *db.VolunteerRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *role
	s.roles[role.ID] = &copied
	return nil
}

func (s *fakeStore) GetEventRoles(ctx context.Context, eventID string) ([]db.VolunteerRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.VolunteerRole
	for _, r := range s.roles {
		if r.EventID == eventID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeStore) ListPublicEvents(ctx context.Context) ([]db.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Event
	for _, e := range s.events {
		if e.DeletedAt == nil && e.IsPublic && e.Status == db.EventStatusPublished {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeStore) ListOwnerEvents(ctx context.Context, ownerID string) ([]db.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Event
	for _, e := range s.events {
		if e.OwnerID == ownerID && e.DeletedAt == nil {
			out = append(out, *e)
		}
	}
	return out, nil
}

// fakeNotifier records notification attempts
type fakeNotifier struct {
	mu    sync.Mutex
	sent  []string // phone numbers
	fail  error
	texts []string
}

func (n *fakeNotifier) Notify(ctx context.Context, phone, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, phone)
	n.texts = append(n.texts, message)
	return nil
}
