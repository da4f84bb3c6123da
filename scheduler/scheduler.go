package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zaneriley/Home-Hunter/config"
	"github.com/zaneriley/Home-Hunter/hunter"
	"github.com/zaneriley/Home-Hunter/storage"
)

// Runner executes one hunt cycle.
type Runner interface {
	RunCycle(ctx context.Context) (*hunter.CycleResult, error)
}

// Scheduler drives the hunt loop. Cycles run one at a time on a single
// goroutine; ticks and manual triggers arriving while a cycle is in
// flight coalesce into at most one follow-up run.
type Scheduler struct {
	cfg    config.HuntConfig
	runner Runner

	cron    *cron.Cron
	ticker  *time.Ticker
	trigger chan struct{}
	stopCh  chan struct{}
	fatalCh chan error
	done    chan struct{}

	stopOnce sync.Once
}

func New(cfg config.HuntConfig, runner Runner) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		runner:  runner,
		trigger: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		fatalCh: make(chan error, 1),
		done:    make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Cron)
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(s.cfg.Cron, s.TriggerNow); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", s.cfg.Cron, err)
		}
		s.cron.Start()
	} else {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
	}

	go s.loop(ctx)
	return nil
}

// TriggerNow schedules an immediate cycle without waiting for the next
// tick. A trigger while one is already pending is a no-op.
func (s *Scheduler) TriggerNow() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Stop halts the schedule and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cron != nil {
			s.cron.Stop()
		}
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
	<-s.done
}

// Fatal reports an unrecoverable storage failure from a scheduled cycle.
func (s *Scheduler) Fatal() <-chan error {
	return s.fatalCh
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	var tick <-chan time.Time
	if s.ticker != nil {
		tick = s.ticker.C
	}

	// The first inspection runs right away instead of waiting out a
	// full interval.
	s.TriggerNow()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-tick:
			s.runOnce(ctx)
		case <-s.trigger:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.runner.RunCycle(ctx)
	if err != nil {
		var persistErr *storage.PersistenceError
		if errors.As(err, &persistErr) {
			log.Printf("Fatal storage failure: %v", err)
			select {
			case s.fatalCh <- err:
			default:
			}
			return
		}
		log.Printf("Cycle failed, will retry on the next tick: %v", err)
		return
	}
	log.Printf("Cycle %s done: %d new of %d found", result.RunUID, result.New, result.Found)
}
