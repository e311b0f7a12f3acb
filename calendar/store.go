package calendar

import (
	"sync"

	"github.com/redical/redical/value"
)

// Store is the host-key-space container: one Calendar per key, created on
// demand. A single receiver backs every key with narrow per-call locking
// rather than one lock per key.
type Store struct {
	mu        sync.RWMutex
	calendars map[value.UID]*Calendar
}

// NewStore constructs an empty calendar store.
func NewStore() *Store {
	return &Store{calendars: make(map[value.UID]*Calendar)}
}

// Ensure returns the calendar at uid, creating it if absent. CAL_SET is
// idempotent against an existing key.
func (s *Store) Ensure(uid value.UID) *Calendar {
	s.mu.RLock()
	cal, ok := s.calendars[uid]
	s.mu.RUnlock()
	if ok {
		return cal
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cal, ok := s.calendars[uid]; ok {
		return cal
	}
	cal = NewCalendar(uid)
	s.calendars[uid] = cal
	return cal
}

// Get returns the calendar at uid without creating it.
func (s *Store) Get(uid value.UID) (*Calendar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cal, ok := s.calendars[uid]
	return cal, ok
}

// Delete removes the calendar at uid entirely, reporting whether it existed.
func (s *Store) Delete(uid value.UID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calendars[uid]; !ok {
		return false
	}
	delete(s.calendars, uid)
	return true
}

// List returns every calendar UID currently held.
func (s *Store) List() []value.UID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uids := make([]value.UID, 0, len(s.calendars))
	for uid := range s.calendars {
		uids = append(uids, uid)
	}
	return uids
}
