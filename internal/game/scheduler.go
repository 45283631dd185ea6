package game

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TimerKey identifies a pending deferred action. Keying on the question index
// makes a stale timer firing after a reset a detectable no-op rather than a
// silent race.
type TimerKey struct {
	InstanceID    string
	QuestionIndex int
}

// Scheduler owns the one-shot timers that auto-advance a round or end the
// game after the post-round delay. Arming is idempotent per key; cancelling
// an instance drops every pending timer for it.
type Scheduler struct {
	mu     sync.Mutex
	timers map[TimerKey]*time.Timer
	logger zerolog.Logger
}

// NewScheduler creates an empty scheduler.
func NewScheduler(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		timers: make(map[TimerKey]*time.Timer),
		logger: logger.With().Str("component", "lifecycle_scheduler").Logger(),
	}
}

// Schedule arms a one-shot timer for a key. Returns false without arming if a
// timer for the same key is already pending, so a concurrently delivered
// duplicate "round complete" observation cannot double-fire.
func (sc *Scheduler) Schedule(key TimerKey, delay time.Duration, fn func()) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if _, pending := sc.timers[key]; pending {
		return false
	}

	sc.timers[key] = time.AfterFunc(delay, func() {
		sc.mu.Lock()
		_, live := sc.timers[key]
		delete(sc.timers, key)
		sc.mu.Unlock()

		// A cancel that lost the race to Stop still wins here.
		if !live {
			return
		}
		fn()
	})

	sc.logger.Debug().
		Str("instance_id", key.InstanceID).
		Int("question_index", key.QuestionIndex).
		Dur("delay", delay).
		Msg("timer armed")
	return true
}

// Cancel drops every pending timer for an instance. Called on explicit reset
// or end so an in-flight auto-advance cannot touch the repurposed session.
func (sc *Scheduler) Cancel(instanceID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	for key, timer := range sc.timers {
		if key.InstanceID == instanceID {
			timer.Stop()
			delete(sc.timers, key)
		}
	}
}

// Pending reports whether any timer is armed for an instance.
func (sc *Scheduler) Pending(instanceID string) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	for key := range sc.timers {
		if key.InstanceID == instanceID {
			return true
		}
	}
	return false
}
