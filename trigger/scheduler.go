package trigger

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ingestkit/ingestkit/config"
	"github.com/ingestkit/ingestkit/logger"
)

// Scheduler arms interval triggers on in-process tickers. Cron and
// webhook triggers are not its business; it skips them.
type Scheduler struct {
	invoker JobInvoker
	env     config.Environment
	log     *logger.Logger

	wg sync.WaitGroup
}

// NewScheduler creates a scheduler firing into the invoker.
func NewScheduler(invoker JobInvoker, env config.Environment) *Scheduler {
	return &Scheduler{
		invoker: invoker,
		env:     env,
		log:     logger.Get("scheduler"),
	}
}

// Start arms every enabled interval trigger and returns. Firing stops
// when ctx is canceled; Wait blocks until in-flight runs finish.
func (s *Scheduler) Start(ctx context.Context, triggers map[string]*config.TriggerDefinition) {
	for _, t := range triggers {
		if t.Type != config.TriggerInterval || !t.IsEnabled() {
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, t)
		s.log.Info("interval trigger armed", logger.Fields(
			logger.FieldTrigger, t.Name,
			logger.FieldJob, t.Job,
			"every", t.Interval.Every().String(),
		))
	}
}

// Wait blocks until every armed trigger loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t *config.TriggerDefinition) {
	defer s.wg.Done()

	ticker := time.NewTicker(t.Interval.Every())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !sleepJitter(ctx, t.Interval.Jitter()) {
			return
		}
		s.fire(ctx, t)
	}
}

func (s *Scheduler) fire(ctx context.Context, t *config.TriggerDefinition) {
	log := s.log.WithContext(ctx)
	results, err := Fire(ctx, s.invoker, s.env, t)
	if err != nil {
		log.Error("trigger firing failed", logger.Fields(
			logger.FieldTrigger, t.Name,
			logger.FieldJob, t.Job,
			logger.FieldError, err.Error(),
		))
		return
	}
	for _, r := range results {
		log.Info("trigger fired", logger.Fields(
			logger.FieldTrigger, t.Name,
			logger.FieldJob, r.Job,
			logger.FieldRunID, r.RunID,
			logger.FieldStatus, string(r.Status),
		))
	}
}

// sleepJitter delays a firing by a random fraction of the configured
// jitter. Reports false when the context ended during the delay.
func sleepJitter(ctx context.Context, max time.Duration) bool {
	if max <= 0 {
		return true
	}
	timer := time.NewTimer(rand.N(max))
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
