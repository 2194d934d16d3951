// Package scheduler enqueues the register's background tasks on cron
// schedules. The tasks themselves run on the task queue.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/growlin/internal/config"
	"github.com/mrlokans/growlin/internal/tasks"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Enqueuer puts a task on the queue by name.
type Enqueuer interface {
	EnqueueType(ctx context.Context, name string) (string, error)
}

// Job is one scheduled task.
type Job struct {
	Task     string `json:"task"`
	Schedule string `json:"schedule"`
}

// Jobs lists what the settings schedule. Overdue scan and subscription
// expiry share the circulation schedule.
func Jobs(cfg config.Scheduler) []Job {
	var jobs []Job
	if cfg.CirculationSchedule != "" {
		jobs = append(jobs,
			Job{Task: tasks.QueueScanOverdueLoans, Schedule: cfg.CirculationSchedule},
			Job{Task: tasks.QueueExpireSubscriptions, Schedule: cfg.CirculationSchedule},
		)
	}
	if cfg.AuditCleanupSchedule != "" {
		jobs = append(jobs, Job{Task: tasks.QueueCleanupAuditEvents, Schedule: cfg.AuditCleanupSchedule})
	}
	return jobs
}

// ValidateSchedule checks a five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// NextRun is the first run of schedule after from.
func NextRun(schedule string, from time.Time) (time.Time, error) {
	sched, err := parser.Parse(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from), nil
}

type Scheduler struct {
	queue Enqueuer
	jobs  []Job

	cron       *cron.Cron
	entries    map[string]cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

func New(queue Enqueuer, jobs []Job) *Scheduler {
	return &Scheduler{
		queue:   queue,
		jobs:    jobs,
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
	}
}

// Start registers every job and starts the cron loop. It stops when ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if len(s.jobs) == 0 {
		log.Printf("Scheduler: no jobs configured")
		return nil
	}

	for _, job := range s.jobs {
		if err := ValidateSchedule(job.Schedule); err != nil {
			return fmt.Errorf("invalid cron schedule '%s' for %s: %w", job.Schedule, job.Task, err)
		}
		task := job.Task
		id, err := s.cron.AddFunc(job.Schedule, func() {
			s.enqueue(ctx, task)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", task, err)
		}
		s.entries[task] = id
	}

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	for _, job := range s.jobs {
		next, _ := NextRun(job.Schedule, time.Now())
		log.Printf("Scheduler: %s on '%s'. Next run: %v", job.Task, job.Schedule, next)
	}

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for in-flight enqueues to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	done := s.cron.Stop()
	<-done.Done()

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.isRunning = false
	s.cancelFunc = nil

	log.Printf("Scheduler: stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when task next fires, or nil when it is not scheduled.
func (s *Scheduler) NextRunTime(task string) *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	id, ok := s.entries[task]
	if !ok {
		return nil
	}
	t := s.cron.Entry(id).Next
	return &t
}

func (s *Scheduler) enqueue(ctx context.Context, task string) {
	id, err := s.queue.EnqueueType(ctx, task)
	if err != nil {
		log.Printf("Scheduler: failed to enqueue %s: %v", task, err)
		return
	}
	log.Printf("Scheduler: enqueued %s (%s)", task, id)
}
