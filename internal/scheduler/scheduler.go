// Package scheduler runs cron-matched actions against the server console:
// timed broadcasts, raw commands, and graceful shutdowns.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/reedfamily/zedctl/internal/console"
	"github.com/reedfamily/zedctl/internal/db"
)

// ValidAction reports whether the action name is one the scheduler executes.
func ValidAction(action string) bool {
	switch action {
	case "say", "command", "shutdown":
		return true
	}
	return false
}

type Scheduler struct {
	store   *db.Store
	console *console.Console
	cancel  context.CancelFunc
}

func New(store *db.Store, con *console.Console) *Scheduler {
	return &Scheduler{store: store, console: con}
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		// Tick aligned to the minute, matching cron granularity.
		for {
			now := time.Now()
			nextMinute := now.Truncate(time.Minute).Add(time.Minute)

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(nextMinute)):
				s.tick()
			}
		}
	}()

	log.Println("scheduler started")
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Scheduler) tick() {
	now := time.Now()

	schedules, err := s.store.ListSchedules()
	if err != nil {
		log.Printf("scheduler: list: %v", err)
		return
	}

	for _, sc := range schedules {
		if !sc.Enabled {
			continue
		}
		spec, err := Parse(sc.CronExpr)
		if err != nil {
			log.Printf("scheduler: invalid cron %q for schedule %s: %v", sc.CronExpr, sc.ID, err)
			continue
		}
		if !spec.Matches(now) {
			continue
		}
		if !s.console.Connected() {
			log.Printf("scheduler: skipping %s (%s): not connected", sc.Name, sc.ID)
			continue
		}

		log.Printf("scheduler: running %s %q (schedule %s)", sc.Action, sc.Payload, sc.ID)
		s.execute(sc)

		if err := s.store.MarkScheduleRun(sc.ID, now); err != nil {
			log.Printf("scheduler: mark run %s: %v", sc.ID, err)
		}
	}
}

func (s *Scheduler) execute(sc db.Schedule) {
	var err error
	switch sc.Action {
	case "say":
		err = s.console.Say(sc.Payload, "")
	case "command":
		_, err = s.console.Execute(sc.Payload)
	case "shutdown":
		_, err = s.console.Shutdown()
	default:
		log.Printf("scheduler: unknown action %q", sc.Action)
		return
	}

	if err != nil {
		log.Printf("scheduler: %s (%s) failed: %v", sc.Action, sc.ID, err)
	}
}
