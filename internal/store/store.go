package store

import (
	"iter"
	"sort"
	"sync"

	"github.com/parkwise/reservation-service/internal/models"
)

// ReservationStore is the in-memory authoritative record of reservations:
// at most one active (non-terminal) reservation per user, plus an
// append-only per-user history of terminated ones. All methods are safe
// for concurrent use; callers that need read-validate-mutate sequences
// serialize per user above this layer.
type ReservationStore struct {
	mu      sync.RWMutex
	active  map[string]*models.Reservation // userID -> active reservation
	byID    map[uint]*models.Reservation   // reservationID -> active reservation
	history map[string][]models.Reservation
	nextID  uint
}

func NewReservationStore() *ReservationStore {
	return &ReservationStore{
		active:  make(map[string]*models.Reservation),
		byID:    make(map[uint]*models.Reservation),
		history: make(map[string][]models.Reservation),
		nextID:  1,
	}
}

// NextID hands out the next reservation identifier.
func (s *ReservationStore) NextID() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	return id
}

// Get returns a copy of the user's active reservation, or nil.
func (s *ReservationStore) Get(userID string) *models.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.active[userID]
	if !ok {
		return nil
	}
	cp := *res
	return &cp
}

// GetByID returns a copy of an active reservation by id, or nil.
// Terminated reservations are not addressable here.
func (s *ReservationStore) GetByID(id uint) *models.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.byID[id]
	if !ok {
		return nil
	}
	cp := *res
	return &cp
}

// Put stores res as the user's active reservation, replacing any prior
// value for the same user.
func (s *ReservationStore) Put(res *models.Reservation) {
	cp := *res
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.active[cp.UserID]; ok && prev.ID != cp.ID {
		delete(s.byID, prev.ID)
	}
	s.active[cp.UserID] = &cp
	s.byID[cp.ID] = &cp
}

// MoveToHistory removes the reservation from the active slot and appends
// it to the user's history. The caller has already set the terminal status.
func (s *ReservationStore) MoveToHistory(res *models.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, res.UserID)
	delete(s.byID, res.ID)
	s.history[res.UserID] = append(s.history[res.UserID], *res)
}

// History returns the user's terminated reservations ordered by
// reservation start, newest first. The sequence is lazy and restartable:
// each range takes a fresh snapshot under the read lock.
func (s *ReservationStore) History(userID string) iter.Seq[models.Reservation] {
	return func(yield func(models.Reservation) bool) {
		s.mu.RLock()
		snapshot := make([]models.Reservation, len(s.history[userID]))
		copy(snapshot, s.history[userID])
		s.mu.RUnlock()

		sort.Slice(snapshot, func(i, j int) bool {
			return snapshot[i].ReservationStart.After(snapshot[j].ReservationStart)
		})
		for _, res := range snapshot {
			if !yield(res) {
				return
			}
		}
	}
}
