package service

import (
	"context"
	"errors"
	"iter"
	"log"
	"sync"
	"time"

	"github.com/parkwise/reservation-service/internal/catalog"
	"github.com/parkwise/reservation-service/internal/clock"
	"github.com/parkwise/reservation-service/internal/models"
	"github.com/parkwise/reservation-service/internal/pricing"
	"github.com/parkwise/reservation-service/internal/repository"
	"github.com/parkwise/reservation-service/internal/scheduler"
	"github.com/parkwise/reservation-service/internal/store"
	"github.com/parkwise/reservation-service/pkg/rabbitmq"
)

var (
	ErrSpotUnavailable          = errors.New("spot is not available")
	ErrUserHasActiveReservation = errors.New("user already has an active reservation")
	ErrNoActiveReservation      = errors.New("no active reservation")
	ErrInvalidTransition        = errors.New("invalid reservation transition")
	ErrNotOngoing               = errors.New("parking has not started")
	ErrGracePeriodExpired       = errors.New("grace period expired")
)

type ReservationService interface {
	Reserve(ctx context.Context, userID string, spotID uint) (*models.Reservation, error)
	ConfirmArrival(ctx context.Context, userID string) (*models.Reservation, error)
	Cancel(ctx context.Context, userID string) error
	Complete(ctx context.Context, userID string) (*models.Reservation, error)
	GetActive(ctx context.Context, userID string) (*models.Reservation, error)
	History(userID string) iter.Seq[models.Reservation]
	HandleTimeout(reservationID uint)
}

// Config carries the runtime knobs of the reservation lifecycle.
type Config struct {
	GracePeriod       time.Duration // arrival window before auto-cancel
	DefaultHourlyRate float64       // fallback when the catalog has no rate for a spot
}

// reservationService is the reservation state machine. Every command
// validates against the user's current active reservation and applies at
// most one transition. Commands for the same user are serialized by a
// per-user mutex; the scheduler's timeout delivery goes through the same
// mutex, so for a single reservation transitions are totally ordered.
// Catalog marks, archiving and event publication happen after the mutex
// is released: the in-memory state is authoritative and is never blocked
// on a downstream notification.
type reservationService struct {
	store     *store.ReservationStore
	catalog   catalog.Catalog
	sched     scheduler.Scheduler
	clock     clock.Clock
	history   repository.HistoryRepository
	publisher *rabbitmq.Publisher
	cfg       Config

	locks sync.Map // userID -> *sync.Mutex
}

func NewReservationService(
	st *store.ReservationStore,
	cat catalog.Catalog,
	sched scheduler.Scheduler,
	clk clock.Clock,
	history repository.HistoryRepository,
	publisher *rabbitmq.Publisher,
	cfg Config,
) ReservationService {
	return &reservationService{
		store:     st,
		catalog:   cat,
		sched:     sched,
		clock:     clk,
		history:   history,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *reservationService) userLock(userID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *reservationService) Reserve(ctx context.Context, userID string, spotID uint) (*models.Reservation, error) {
	// Cheap pre-check; re-validated under the per-user lock below.
	if s.store.Get(userID) != nil {
		return nil, ErrUserHasActiveReservation
	}

	// Catalog read happens before the per-user lock to keep lock hold
	// time bounded. A lost race on the spot resolves on the catalog
	// side; its marks are idempotent.
	spot, err := s.catalog.GetSpot(ctx, spotID)
	if err != nil {
		if errors.Is(err, catalog.ErrSpotNotFound) {
			return nil, ErrSpotUnavailable
		}
		return nil, err
	}
	if spot.Status != models.SpotFree {
		return nil, ErrSpotUnavailable
	}

	rate := spot.HourlyRate
	if rate <= 0 {
		rate = s.cfg.DefaultHourlyRate
	}

	mu := s.userLock(userID)
	mu.Lock()
	if s.store.Get(userID) != nil {
		mu.Unlock()
		return nil, ErrUserHasActiveReservation
	}

	now := s.clock.Now()
	res := &models.Reservation{
		ID:               s.store.NextID(),
		UserID:           userID,
		SpotID:           spot.ID,
		SpotNumber:       spot.SpotNumber,
		ParkingName:      spot.ParkingName,
		ParkingAddress:   spot.ParkingAddress,
		LevelNumber:      spot.LevelNumber,
		HourlyRate:       rate,
		Status:           models.StatusPendingArrival,
		ReservationStart: now,
	}
	s.store.Put(res)
	s.sched.Arm(res.ID, now.Add(s.cfg.GracePeriod))
	mu.Unlock()

	if err := s.catalog.MarkReserved(ctx, res.SpotID); err != nil {
		log.Printf("[Reservations] mark spot %d reserved failed: %v", res.SpotID, err)
	}
	s.publish("reservation.created", res)

	return res, nil
}

func (s *reservationService) ConfirmArrival(ctx context.Context, userID string) (*models.Reservation, error) {
	mu := s.userLock(userID)
	mu.Lock()

	res := s.store.Get(userID)
	if res == nil {
		mu.Unlock()
		return nil, ErrNoActiveReservation
	}
	if res.Status != models.StatusPendingArrival {
		mu.Unlock()
		return nil, ErrInvalidTransition
	}

	now := s.clock.Now()
	if now.After(res.ReservationStart.Add(s.cfg.GracePeriod)) {
		// The deadline passed but the timer has not delivered yet; the
		// outcome must be the same as the timeout winning the race.
		s.sched.Disarm(res.ID)
		res.Status = models.StatusExpired
		s.store.MoveToHistory(res)
		mu.Unlock()

		s.terminated(ctx, res)
		return nil, ErrGracePeriodExpired
	}

	s.sched.Disarm(res.ID)
	res.Status = models.StatusOngoing
	res.ParkingStart = &now
	s.store.Put(res)
	mu.Unlock()

	s.publish("reservation.ongoing", res)
	return res, nil
}

func (s *reservationService) Cancel(ctx context.Context, userID string) error {
	mu := s.userLock(userID)
	mu.Lock()

	res := s.store.Get(userID)
	if res == nil {
		mu.Unlock()
		return ErrNoActiveReservation
	}
	if res.Status != models.StatusPendingArrival {
		// No cancellation once parking has started.
		mu.Unlock()
		return ErrInvalidTransition
	}

	s.sched.Disarm(res.ID)
	res.Status = models.StatusCancelled
	s.store.MoveToHistory(res)
	mu.Unlock()

	s.terminated(ctx, res)
	return nil
}

func (s *reservationService) Complete(ctx context.Context, userID string) (*models.Reservation, error) {
	mu := s.userLock(userID)
	mu.Lock()

	res := s.store.Get(userID)
	if res == nil {
		mu.Unlock()
		return nil, ErrNoActiveReservation
	}
	if res.Status != models.StatusOngoing {
		mu.Unlock()
		return nil, ErrNotOngoing
	}

	now := s.clock.Now()
	quote := pricing.Compute(*res.ParkingStart, now, res.HourlyRate)
	res.Status = models.StatusCompleted
	res.ParkingEnd = &now
	res.BilledHours = &quote.BilledHours
	res.Cost = &quote.Cost
	s.store.MoveToHistory(res)
	mu.Unlock()

	s.terminated(ctx, res)
	return res, nil
}

func (s *reservationService) GetActive(ctx context.Context, userID string) (*models.Reservation, error) {
	res := s.store.Get(userID)
	if res == nil {
		return nil, ErrNoActiveReservation
	}
	return res, nil
}

func (s *reservationService) History(userID string) iter.Seq[models.Reservation] {
	return s.store.History(userID)
}

// HandleTimeout is the scheduler's entry point. A timeout for a
// reservation that already left pending_arrival is a benign no-op.
func (s *reservationService) HandleTimeout(reservationID uint) {
	res := s.store.GetByID(reservationID)
	if res == nil {
		return
	}

	mu := s.userLock(res.UserID)
	mu.Lock()

	// Re-check under the lock: arrival or cancellation may have won.
	res = s.store.Get(res.UserID)
	if res == nil || res.ID != reservationID || res.Status != models.StatusPendingArrival {
		mu.Unlock()
		return
	}

	res.Status = models.StatusExpired
	s.store.MoveToHistory(res)
	mu.Unlock()

	log.Printf("[Reservations] reservation %d expired: no arrival within grace period", reservationID)
	s.terminated(context.Background(), res)
}

// terminated runs the side effects shared by every terminal transition:
// free the spot, archive the record, publish the lifecycle event. All
// fire-and-forget; failures are logged and never retried here.
func (s *reservationService) terminated(ctx context.Context, res *models.Reservation) {
	if err := s.catalog.MarkFree(ctx, res.SpotID); err != nil {
		log.Printf("[Reservations] mark spot %d free failed: %v", res.SpotID, err)
	}
	if s.history != nil {
		if err := s.history.Archive(ctx, res); err != nil {
			log.Printf("[Reservations] archive reservation %d failed: %v", res.ID, err)
		}
	}
	s.publish("reservation."+string(res.Status), res)
}

func (s *reservationService) publish(routingKey string, res *models.Reservation) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(routingKey, res); err != nil {
		log.Printf("[Reservations] publish %s for reservation %d failed: %v", routingKey, res.ID, err)
	}
}
