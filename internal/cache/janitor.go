package cache

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/tevino/abool/v2"
)

// PruneBatch bounds how many entries one sweep deletes.
const PruneBatch = 2000

// Janitor periodically prunes expired cache entries.
type Janitor struct {
	store     *Store
	interval  time.Duration
	logger    *log.Logger
	running   *abool.AtomicBool
	scheduler gocron.Scheduler
}

// NewJanitor creates a janitor for store. A nil logger discards output.
func NewJanitor(store *Store, interval time.Duration, logger *log.Logger) *Janitor {
	return &Janitor{
		store:    store,
		interval: interval,
		logger:   logger,
		running:  abool.New(),
	}
}

// Start schedules Sweep every interval.
func (j *Janitor) Start() error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	job, err := s.NewJob(gocron.DurationJob(j.interval), gocron.NewTask(j.sweepTask))
	if err != nil {
		_ = s.Shutdown()
		return err
	}
	j.logf("cache janitor %s every %s", job.ID(), j.interval)
	j.scheduler = s
	s.Start()
	return nil
}

// Stop shuts the scheduler down; a sweep in progress completes first.
func (j *Janitor) Stop() error {
	if j.scheduler == nil {
		return nil
	}
	return j.scheduler.Shutdown()
}

// Sweep prunes expired entries once. It returns immediately with ran=false
// when another sweep is still running.
func (j *Janitor) Sweep(now time.Time) (removed int, ran bool, err error) {
	if !j.running.SetToIf(false, true) {
		return 0, false, nil
	}
	defer j.running.UnSet()
	removed, err = j.store.PruneExpired(now, PruneBatch)
	return removed, true, err
}

func (j *Janitor) sweepTask() {
	removed, ran, err := j.Sweep(time.Now())
	switch {
	case err != nil:
		j.logf("cache sweep: %v", err)
	case ran && removed > 0:
		j.logf("cache sweep removed %d entries", removed)
	}
}

func (j *Janitor) logf(format string, args ...any) {
	if j.logger != nil {
		j.logger.Printf(format, args...)
	}
}
