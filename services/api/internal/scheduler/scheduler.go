// Package scheduler runs named background tasks on fixed intervals.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

var (
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrUnknownTask    = errors.New("unknown task")
)

// Task is one periodic job. Run must be safe to call again after a failure.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	logger *log.Logger
	tasks  []Task

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(logger *log.Logger, tasks ...Task) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{logger: logger, tasks: tasks}
}

// Start launches one goroutine per task. Each task runs once immediately and
// then on every tick until Stop or ctx is cancelled. Ticks that arrive while a
// run is still in progress are dropped, so a task never overlaps itself.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	for _, task := range s.tasks {
		if task.Interval <= 0 || task.Run == nil {
			return fmt.Errorf("task %q: interval and run func required", task.Name)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.loop(runCtx, task)
	}
	s.logger.Printf("scheduler started tasks=%d", len(s.tasks))
	return nil
}

// Stop cancels every task and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Printf("scheduler stopped")
}

// RunOnce runs the named task synchronously, outside the tick loop.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	for _, task := range s.tasks {
		if task.Name == name {
			return task.Run(ctx)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownTask, name)
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	s.run(ctx, task)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx, task)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, task Task) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("ERROR: task=%s panic: %v", task.Name, r)
		}
	}()
	if err := task.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Printf("ERROR: task=%s duration_ms=%d err=%v", task.Name, time.Since(start).Milliseconds(), err)
	}
}
