package authcore

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
)

// Janitor runs CleanupExpiredSessions on a cron schedule.
type Janitor struct {
	engine *Engine
	cron   *cron.Cron
	once   sync.Once
}

func newJanitor(e *Engine, schedule string) (*Janitor, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	j := &Janitor{engine: e, cron: c}

	if _, err := c.AddFunc(schedule, j.run); err != nil {
		return nil, err
	}
	return j, nil
}

// Start begins the schedule in its own goroutine.
func (j *Janitor) Start() {
	j.cron.Start()
	j.engine.log.WithField("entries", len(j.cron.Entries())).Info("session janitor started")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j == nil {
		return
	}
	j.once.Do(func() {
		<-j.cron.Stop().Done()
	})
}

func (j *Janitor) run() {
	removed := j.engine.CleanupExpiredSessions(context.Background())
	j.engine.log.WithField("removed", removed).Debug("session janitor sweep")
}
