package workers

import (
	"log"
	"time"

	"xo-arena/services"
	"xo-arena/storage"

	"github.com/go-co-op/gocron/v2"
)

// Defaults for the supervisor's schedule.
const (
	DefaultSweepInterval = 30 * time.Second
	DefaultGameTimeout   = 5 * time.Minute
)

// TimeoutChecker periodically reclaims sessions abandoned past the game
// deadline. It is the only cancellation mechanism for a session: expiry is
// a hard status transition, after which moves fail with SessionNotActive.
type TimeoutChecker struct {
	store       storage.Store
	games       *services.GameService
	sweepEvery  time.Duration
	gameTimeout time.Duration

	sched gocron.Scheduler
}

func NewTimeoutChecker(store storage.Store, games *services.GameService, sweepEvery, gameTimeout time.Duration) *TimeoutChecker {
	if sweepEvery <= 0 {
		sweepEvery = DefaultSweepInterval
	}
	if gameTimeout <= 0 {
		gameTimeout = DefaultGameTimeout
	}
	return &TimeoutChecker{
		store:       store,
		games:       games,
		sweepEvery:  sweepEvery,
		gameTimeout: gameTimeout,
	}
}

// Start schedules the recurring sweep.
func (t *TimeoutChecker) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(t.sweepEvery),
		gocron.NewTask(func() { t.Sweep(time.Now().UTC()) }),
	); err != nil {
		return err
	}
	sched.Start()
	t.sched = sched
	log.Printf("[TimeoutChecker] sweeping every %s, expiring games idle past %s", t.sweepEvery, t.gameTimeout)
	return nil
}

// Stop shuts the scheduler down; a sweep in flight completes.
func (t *TimeoutChecker) Stop() {
	if t.sched != nil {
		_ = t.sched.Shutdown()
	}
}

// Sweep expires every active session older than the game timeout. Sessions
// that complete between being listed and being expired come back as
// already-terminal from ForceExpire and are skipped.
func (t *TimeoutChecker) Sweep(now time.Time) {
	refs, err := t.store.ListActiveSessions()
	if err != nil {
		log.Printf("[TimeoutChecker] listing active sessions failed: %v", err)
		return
	}
	for _, ref := range refs {
		if now.Sub(ref.StartedAt) <= t.gameTimeout {
			continue
		}
		expired, err := t.games.ForceExpire(ref.ID)
		if err != nil {
			log.Printf("[TimeoutChecker] expiring session %s failed: %v", ref.ID, err)
			continue
		}
		if expired {
			log.Printf("[TimeoutChecker] session %s expired after %s", ref.ID, now.Sub(ref.StartedAt).Truncate(time.Second))
		}
	}
}
