package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/parkwise/reservation-service/internal/catalog"
	"github.com/parkwise/reservation-service/internal/clock"
	"github.com/parkwise/reservation-service/internal/models"
	"github.com/parkwise/reservation-service/internal/scheduler"
	"github.com/parkwise/reservation-service/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock Catalog ---

type mockCatalog struct {
	mu    sync.Mutex
	spots map[uint]models.Spot
}

func newMockCatalog(spots ...models.Spot) *mockCatalog {
	m := &mockCatalog{spots: make(map[uint]models.Spot)}
	for _, s := range spots {
		m.spots[s.ID] = s
	}
	return m
}

func (m *mockCatalog) GetSpot(_ context.Context, spotID uint) (*models.Spot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.spots[spotID]
	if !ok {
		return nil, catalog.ErrSpotNotFound
	}
	return &s, nil
}

func (m *mockCatalog) IsSpotFree(ctx context.Context, spotID uint) (bool, error) {
	s, err := m.GetSpot(ctx, spotID)
	if err != nil {
		return false, err
	}
	return s.Status == models.SpotFree, nil
}

func (m *mockCatalog) MarkReserved(_ context.Context, spotID uint) error {
	return m.setStatus(spotID, models.SpotReserved)
}

func (m *mockCatalog) MarkFree(_ context.Context, spotID uint) error {
	return m.setStatus(spotID, models.SpotFree)
}

func (m *mockCatalog) setStatus(spotID uint, status models.SpotStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.spots[spotID]
	if !ok {
		return catalog.ErrSpotNotFound
	}
	s.Status = status
	m.spots[spotID] = s
	return nil
}

func (m *mockCatalog) status(spotID uint) models.SpotStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spots[spotID].Status
}

// --- Mock Scheduler ---

type manualScheduler struct {
	mu    sync.Mutex
	armed map[uint]time.Time
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{armed: make(map[uint]time.Time)}
}

func (m *manualScheduler) Arm(id uint, fireAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.armed[id] = fireAt
}

func (m *manualScheduler) Disarm(id uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.armed, id)
}

func (m *manualScheduler) armedAt(id uint) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.armed[id]
	return at, ok
}

// --- Fixture ---

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc   ReservationService
	cat   *mockCatalog
	sched *manualScheduler
	clk   *clock.Fixed
}

func newFixture() *fixture {
	cat := newMockCatalog(models.Spot{
		ID:             7,
		SpotNumber:     "A-12",
		ParkingName:    "Central Plaza Parking",
		ParkingAddress: "Lenina St 10",
		LevelNumber:    2,
		HourlyRate:     100,
		Status:         models.SpotFree,
	})
	sched := newManualScheduler()
	clk := clock.NewFixed(testStart)

	svc := NewReservationService(
		store.NewReservationStore(),
		cat,
		sched,
		clk,
		nil, // no archive
		nil, // nil publisher = skip RabbitMQ
		Config{GracePeriod: 15 * time.Minute, DefaultHourlyRate: 100},
	)
	return &fixture{svc: svc, cat: cat, sched: sched, clk: clk}
}

// --- Reserve ---

func TestReserve_Success(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Reserve(context.Background(), "user-1", 7)

	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingArrival, res.Status)
	assert.Equal(t, "user-1", res.UserID)
	assert.Equal(t, "A-12", res.SpotNumber)
	assert.Equal(t, "Central Plaza Parking", res.ParkingName)
	assert.Equal(t, float64(100), res.HourlyRate)
	assert.Equal(t, testStart, res.ReservationStart)
	assert.Nil(t, res.ParkingStart)
	assert.Nil(t, res.Cost)

	// The spot is marked and the auto-cancel timeout is armed at t0+grace.
	assert.Equal(t, models.SpotReserved, f.cat.status(7))
	at, ok := f.sched.armedAt(res.ID)
	require.True(t, ok)
	assert.Equal(t, testStart.Add(15*time.Minute), at)
}

func TestReserve_SpotNotFree(t *testing.T) {
	f := newFixture()
	f.cat.setStatus(7, models.SpotOccupied)

	_, err := f.svc.Reserve(context.Background(), "user-1", 7)
	assert.ErrorIs(t, err, ErrSpotUnavailable)
}

func TestReserve_UnknownSpot(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Reserve(context.Background(), "user-1", 99)
	assert.ErrorIs(t, err, ErrSpotUnavailable)
}

func TestReserve_UserAlreadyHasActive(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Reserve(context.Background(), "user-1", 7)
	require.NoError(t, err)

	f.cat.setStatus(7, models.SpotFree) // force the guard onto the user slot
	_, err = f.svc.Reserve(context.Background(), "user-1", 7)
	assert.ErrorIs(t, err, ErrUserHasActiveReservation)
}

func TestReserve_FallbackHourlyRate(t *testing.T) {
	f := newFixture()
	f.cat.mu.Lock()
	f.cat.spots[8] = models.Spot{ID: 8, SpotNumber: "B-01", Status: models.SpotFree}
	f.cat.mu.Unlock()

	res, err := f.svc.Reserve(context.Background(), "user-1", 8)
	require.NoError(t, err)
	assert.Equal(t, float64(100), res.HourlyRate)
}

func TestReserve_ConcurrentSameUser(t *testing.T) {
	f := newFixture()

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Reserve(context.Background(), "user-1", 7)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		// A loser observes the conflict either on the user slot or on
		// the spot the winner already marked; both are clean failures.
		conflict := errors.Is(err, ErrUserHasActiveReservation) || errors.Is(err, ErrSpotUnavailable)
		assert.True(t, conflict, "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent reserve must win")
}

// --- ConfirmArrival ---

func TestConfirmArrival_WithinGracePeriod(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Reserve(context.Background(), "user-1", 7)
	require.NoError(t, err)

	f.clk.Advance(5 * time.Minute)
	got, err := f.svc.ConfirmArrival(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, models.StatusOngoing, got.Status)
	require.NotNil(t, got.ParkingStart)
	assert.Equal(t, testStart.Add(5*time.Minute), *got.ParkingStart)

	// Timeout is disarmed; a late delivery for the same id is a no-op.
	_, armed := f.sched.armedAt(res.ID)
	assert.False(t, armed)
	f.svc.HandleTimeout(res.ID)
	active, err := f.svc.GetActive(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOngoing, active.Status)
}

func TestConfirmArrival_NoActiveReservation(t *testing.T) {
	f := newFixture()

	_, err := f.svc.ConfirmArrival(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrNoActiveReservation)
}

func TestConfirmArrival_AfterDeadline(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Reserve(context.Background(), "user-1", 7)
	require.NoError(t, err)

	// Deadline passed but the timer has not delivered: the outcome must
	// match the timeout winning.
	f.clk.Advance(16 * time.Minute)
	_, err = f.svc.ConfirmArrival(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrGracePeriodExpired)

	_, err = f.svc.GetActive(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrNoActiveReservation)
	assert.Equal(t, models.SpotFree, f.cat.status(7))

	var statuses []models.ReservationStatus
	for r := range f.svc.History("user-1") {
		statuses = append(statuses, r.Status)
	}
	assert.Equal(t, []models.ReservationStatus{models.StatusExpired}, statuses)
}

func TestConfirmArrival_AlreadyOngoing(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Reserve(context.Background(), "user-1", 7)
	require.NoError(t, err)
	_, err = f.svc.ConfirmArrival(context.Background(), "user-1")
	require.NoError(t, err)

	_, err = f.svc.ConfirmArrival(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

// --- Timeout ---

func TestTimeout_ExpiresPendingReservation(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Reserve(context.Background(), "user-1", 7)
	require.NoError(t, err)

	f.clk.Advance(15*time.Minute + time.Second)
	f.svc.HandleTimeout(res.ID)

	_, err = f.svc.GetActive(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrNoActiveReservation)
	assert.Equal(t, models.SpotFree, f.cat.status(7))

	var got []models.Reservation
	for r := range f.svc.History("user-1") {
		got = append(got, r)
	}
	require.Len(t, got, 1)
	assert.Equal(t, models.StatusExpired, got[0].Status)
	assert.Nil(t, got[0].ParkingStart)
}

func TestTimeout_UnknownReservationIsNoOp(t *testing.T) {
	f := newFixture()
	assert.NotPanics(t, func() { f.svc.HandleTimeout(123) })
}

// --- Cancel ---

func TestCancel_PendingReservation(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Reserve(context.Background(), "user-1", 7)
	require.NoError(t, err)

	err = f.svc.Cancel(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, models.SpotFree, f.cat.status(7))
	_, armed := f.sched.armedAt(res.ID)
	assert.False(t, armed)

	var got []models.Reservation
	for r := range f.svc.History("user-1") {
		got = append(got, r)
	}
	require.Len(t, got, 1)
	assert.Equal(t, models.StatusCancelled, got[0].Status)
}

func TestCancel_WhileOngoingIsRejected(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Reserve(context.Background(), "user-1", 7)
	require.NoError(t, err)
	_, err = f.svc.ConfirmArrival(context.Background(), "user-1")
	require.NoError(t, err)

	err = f.svc.Cancel(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// State unchanged.
	active, err := f.svc.GetActive(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOngoing, active.Status)
}

func TestCancel_NoActiveReservation(t *testing.T) {
	f := newFixture()
	err := f.svc.Cancel(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrNoActiveReservation)
}

// --- Complete ---

func TestComplete_BillsCeilingHours(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Reserve(context.Background(), "user-1", 7)
	require.NoError(t, err)

	f.clk.Advance(5 * time.Minute)
	_, err = f.svc.ConfirmArrival(context.Background(), "user-1")
	require.NoError(t, err)

	f.clk.Advance(90 * time.Minute)
	res, err := f.svc.Complete(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, res.Status)
	require.NotNil(t, res.BilledHours)
	require.NotNil(t, res.Cost)
	assert.Equal(t, 2, *res.BilledHours)
	assert.Equal(t, float64(200), *res.Cost)
	require.NotNil(t, res.ParkingEnd)
	assert.Equal(t, models.SpotFree, f.cat.status(7))
}

func TestComplete_TwiceFailsCleanly(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Reserve(context.Background(), "user-1", 7)
	require.NoError(t, err)
	_, err = f.svc.ConfirmArrival(context.Background(), "user-1")
	require.NoError(t, err)
	_, err = f.svc.Complete(context.Background(), "user-1")
	require.NoError(t, err)

	// The active slot is empty now; the retry must not double-apply.
	_, err = f.svc.Complete(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrNoActiveReservation)
}

func TestComplete_BeforeArrivalIsRejected(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Reserve(context.Background(), "user-1", 7)
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrNotOngoing)
}

// --- Full lifecycle ---

func TestLifecycle_ReserveAgainAfterCompletion(t *testing.T) {
	f := newFixture()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Reserve(context.Background(), "user-1", 7)
		require.NoError(t, err)
		f.clk.Advance(time.Minute)
		_, err = f.svc.ConfirmArrival(context.Background(), "user-1")
		require.NoError(t, err)
		f.clk.Advance(30 * time.Minute)
		_, err = f.svc.Complete(context.Background(), "user-1")
		require.NoError(t, err)
	}

	count := 0
	var prev time.Time
	first := true
	for r := range f.svc.History("user-1") {
		count++
		if !first {
			assert.True(t, r.ReservationStart.Before(prev) || r.ReservationStart.Equal(prev),
				"history must be newest first")
		}
		prev = r.ReservationStart
		first = false
	}
	assert.Equal(t, 3, count)
}

func TestTimeout_AutoExpiresWithRealScheduler(t *testing.T) {
	cat := newMockCatalog(models.Spot{ID: 7, SpotNumber: "A-12", HourlyRate: 100, Status: models.SpotFree})
	clk := clock.Real{}
	sched := scheduler.NewTimerScheduler(clk)
	svc := NewReservationService(
		store.NewReservationStore(),
		cat, sched, clk, nil, nil,
		Config{GracePeriod: 20 * time.Millisecond, DefaultHourlyRate: 100},
	)
	sched.SetFireHandler(svc.HandleTimeout)

	_, err := svc.Reserve(context.Background(), "user-1", 7)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := svc.GetActive(context.Background(), "user-1"); errors.Is(err, ErrNoActiveReservation) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("reservation never auto-expired")
		}
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, models.SpotFree, cat.status(7))
	var statuses []models.ReservationStatus
	for r := range svc.History("user-1") {
		statuses = append(statuses, r.Status)
	}
	assert.Equal(t, []models.ReservationStatus{models.StatusExpired}, statuses)
}

func TestUsersAreIndependent(t *testing.T) {
	f := newFixture()
	f.cat.mu.Lock()
	f.cat.spots[8] = models.Spot{ID: 8, SpotNumber: "B-01", HourlyRate: 50, Status: models.SpotFree}
	f.cat.mu.Unlock()

	_, err := f.svc.Reserve(context.Background(), "user-1", 7)
	require.NoError(t, err)
	_, err = f.svc.Reserve(context.Background(), "user-2", 8)
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(context.Background(), "user-1"))

	active, err := f.svc.GetActive(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingArrival, active.Status)
}
