package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps robfig/cron and manages task lifecycle with context support.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
	tasks  map[string]*scheduledTask // task name -> scheduledTask
	mu     sync.RWMutex
	wg     sync.WaitGroup
}

// scheduledTask tracks a task and its cron entry.
type scheduledTask struct {
	name     string
	schedule string
	runner   TaskRunner
	entryID  cron.EntryID
	lastRun  time.Time
	nextRun  time.Time
	runCount int64
}

// New creates a new Scheduler instance with context support.
// The context is used for graceful shutdown and task cancellation.
func New(ctx context.Context, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	schedCtx, cancel := context.WithCancel(ctx)

	// Create cron with custom logger that wraps slog
	cronLogger := &cronSlogAdapter{logger: logger}

	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(
			cron.Recover(cronLogger), // Recover from panics
		),
	)

	return &Scheduler{
		cron:   c,
		ctx:    schedCtx,
		cancel: cancel,
		logger: logger,
		tasks:  make(map[string]*scheduledTask),
	}
}

// AddTask adds a named task to the scheduler.
// The task will be scheduled according to the schedule expression.
// Returns an error if the task name already exists or if the schedule is invalid.
func (s *Scheduler) AddTask(name, schedule string, runner TaskRunner) error {
	if name == "" {
		return fmt.Errorf("task name cannot be empty")
	}
	if runner == nil {
		return fmt.Errorf("runner cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("task %q already exists", name)
	}

	parsed, err := ParseSchedule(schedule)
	if err != nil {
		return fmt.Errorf("failed to parse schedule for task %q: %w", name, err)
	}

	st := &scheduledTask{
		name:     name,
		schedule: schedule,
		runner:   runner,
		nextRun:  parsed.Next(time.Now()),
	}

	st.entryID = s.cron.Schedule(parsed, s.wrapTask(st))
	s.tasks[name] = st

	s.logger.Info("task added to scheduler",
		slog.String("task", name),
		slog.String("schedule", schedule),
		slog.Time("next_run", st.nextRun),
	)

	return nil
}

// wrapTask wraps a TaskRunner in a cron.Job that respects context cancellation.
func (s *Scheduler) wrapTask(st *scheduledTask) cron.FuncJob {
	return func() {
		s.mu.Lock()
		st.lastRun = time.Now()
		st.runCount++
		s.mu.Unlock()

		s.wg.Add(1)
		defer s.wg.Done()

		s.logger.Info("starting scheduled task", slog.String("task", st.name))

		startTime := time.Now()
		err := st.runner.Run(s.ctx)
		duration := time.Since(startTime)

		if err != nil {
			s.logger.Error("scheduled task failed",
				slog.String("task", st.name),
				slog.String("error", err.Error()),
				slog.Duration("duration", duration),
			)
		} else {
			s.logger.Info("scheduled task completed",
				slog.String("task", st.name),
				slog.Duration("duration", duration),
			)
		}

		// Update next run time
		s.mu.Lock()
		entry := s.cron.Entry(st.entryID)
		if entry.ID != 0 {
			st.nextRun = entry.Next
		}
		s.mu.Unlock()
	}
}

// Start begins the scheduler. Tasks will start running according to their schedules.
func (s *Scheduler) Start() error {
	s.mu.RLock()
	taskCount := len(s.tasks)
	s.mu.RUnlock()

	if taskCount == 0 {
		s.logger.Warn("starting scheduler with no tasks")
	}

	s.logger.Info("starting scheduler", slog.Int("task_count", taskCount))
	s.cron.Start()

	return nil
}

// Stop gracefully stops the scheduler and waits for all running tasks to complete.
// It respects the parent context for timeout on shutdown.
func (s *Scheduler) Stop() error {
	s.logger.Info("stopping scheduler")

	// Cancel the scheduler context to signal all tasks to stop
	s.cancel()

	// Stop accepting new runs
	cronStopCtx := s.cron.Stop()

	// Wait for cron to stop scheduling new executions
	<-cronStopCtx.Done()

	// Wait for all running tasks to complete
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all tasks stopped gracefully")
	case <-s.ctx.Done():
		s.logger.Warn("shutdown timeout reached, some tasks may have been terminated")
	}

	return nil
}

// TaskStats returns statistics for a scheduled task.
type TaskStats struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	LastRun  time.Time `json:"last_run"`
	NextRun  time.Time `json:"next_run"`
	RunCount int64     `json:"run_count"`
}

// GetTaskStats returns statistics for a given task name.
func (s *Scheduler) GetTaskStats(name string) (*TaskStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.tasks[name]
	if !exists {
		return nil, false
	}

	// Get the most up-to-date next run time from cron
	nextRun := st.nextRun
	entry := s.cron.Entry(st.entryID)
	if entry.ID != 0 {
		nextRun = entry.Next
	}

	return &TaskStats{
		Name:     st.name,
		Schedule: st.schedule,
		LastRun:  st.lastRun,
		NextRun:  nextRun,
		RunCount: st.runCount,
	}, true
}

// ListTasks returns the names of all scheduled tasks.
func (s *Scheduler) ListTasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	return names
}

// cronSlogAdapter adapts slog.Logger to cron.Logger interface.
type cronSlogAdapter struct {
	logger *slog.Logger
}

func (a *cronSlogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, keysAndValues...)
}

func (a *cronSlogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	attrs := make([]any, 0, len(keysAndValues)+1)
	attrs = append(attrs, slog.String("error", err.Error()))
	attrs = append(attrs, keysAndValues...)
	a.logger.Error(msg, attrs...)
}
