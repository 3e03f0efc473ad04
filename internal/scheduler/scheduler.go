package scheduler

import (
	"log"
	"sync"
	"time"

	"github.com/parkwise/reservation-service/internal/clock"
)

// FireFunc is invoked when an armed timeout elapses.
type FireFunc func(reservationID uint)

// Scheduler arms at most one pending timeout per reservation id.
// Arming again for the same id replaces the prior registration;
// disarming an absent or already-fired timeout is a no-op.
type Scheduler interface {
	Arm(reservationID uint, fireAt time.Time)
	Disarm(reservationID uint)
}

type entry struct {
	timer *time.Timer
	seq   uint64
}

// TimerScheduler drives timeouts with time.AfterFunc. Each armed instance
// carries a sequence token; delivery is suppressed unless the token still
// matches, so a Disarm racing a fire resolves to exactly one winner.
type TimerScheduler struct {
	mu     sync.Mutex
	clock  clock.Clock
	fire   FireFunc
	timers map[uint]entry
	seq    uint64
}

func NewTimerScheduler(clk clock.Clock) *TimerScheduler {
	return &TimerScheduler{
		clock:  clk,
		timers: make(map[uint]entry),
	}
}

// SetFireHandler registers the callback invoked on expiry. Must be called
// before the first Arm.
func (s *TimerScheduler) SetFireHandler(fn FireFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fire = fn
}

func (s *TimerScheduler) Arm(reservationID uint, fireAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[reservationID]; ok {
		prev.timer.Stop()
	}

	s.seq++
	seq := s.seq
	d := fireAt.Sub(s.clock.Now())
	if d < 0 {
		d = 0
	}
	s.timers[reservationID] = entry{
		timer: time.AfterFunc(d, func() { s.deliver(reservationID, seq) }),
		seq:   seq,
	}
}

func (s *TimerScheduler) Disarm(reservationID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.timers[reservationID]; ok {
		e.timer.Stop()
		delete(s.timers, reservationID)
	}
}

func (s *TimerScheduler) deliver(reservationID uint, seq uint64) {
	s.mu.Lock()
	e, ok := s.timers[reservationID]
	if !ok || e.seq != seq {
		// Disarmed or re-armed after this instance was scheduled.
		s.mu.Unlock()
		return
	}
	delete(s.timers, reservationID)
	fire := s.fire
	s.mu.Unlock()

	if fire == nil {
		log.Printf("[Scheduler] timeout for reservation %d dropped: no fire handler", reservationID)
		return
	}
	fire(reservationID)
}
