// ABOUTME: Asynchronous turn execution on a fixed pool of workers
// ABOUTME: Tracks each turn as a JobRecord moving pending -> running -> succeeded|failed

package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clementeaf/ai-assistants/internal/conversation"
	"github.com/clementeaf/ai-assistants/internal/store"
	"github.com/clementeaf/ai-assistants/internal/trace"
)

// Defaults for the worker pool.
const (
	DefaultWorkers   = 4
	DefaultQueueSize = 64
)

// ErrSchedulerClosed is returned by Schedule after Close.
var ErrSchedulerClosed = errors.New("scheduler is closed")

// ErrInvalidRequest is returned for a job without conversation id or text.
var ErrInvalidRequest = errors.New("invalid job request")

// TurnRunner runs one conversation turn. *conversation.Service implements it.
type TurnRunner interface {
	RunTurn(ctx context.Context, req conversation.TurnRequest) (*conversation.TurnResult, error)
}

// Notifier is told about every job that reaches a terminal status.
// Implementations must not block for long and never fail the job.
type Notifier interface {
	Notify(ctx context.Context, job *store.JobRecord)
}

// Request describes a turn to run asynchronously.
type Request struct {
	ConversationID string
	Text           string
	CustomerID     string
	// MessageID is passed to the orchestrator as the idempotency event id.
	MessageID string
}

// Config wires a Scheduler. Notifier is optional.
type Config struct {
	Jobs      store.JobStore
	Runner    TurnRunner
	Notifier  Notifier
	Workers   int
	QueueSize int
	Logger    *slog.Logger
}

type task struct {
	ctx   context.Context
	jobID string
	req   Request
}

// Scheduler runs turns on a bounded worker pool. At most Workers turns run
// at once. Jobs for the same conversation are not ordered relative to each
// other; the orchestrator serializes the turns themselves.
type Scheduler struct {
	jobs     store.JobStore
	runner   TurnRunner
	notifier Notifier
	logger   *slog.Logger

	queue chan task
	quit  chan struct{}
	wg    sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// New creates a Scheduler and starts its workers.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Jobs == nil {
		return nil, errors.New("job store is required")
	}
	if cfg.Runner == nil {
		return nil, errors.New("turn runner is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		jobs:     cfg.Jobs,
		runner:   cfg.Runner,
		notifier: cfg.Notifier,
		logger:   logger.With("component", "jobs"),
		queue:    make(chan task, cfg.QueueSize),
		quit:     make(chan struct{}),
	}

	s.wg.Add(cfg.Workers)
	for i := range cfg.Workers {
		go s.worker(i)
	}

	s.logger.Info("scheduler started", "workers", cfg.Workers, "queue_size", cfg.QueueSize)
	return s, nil
}

// Schedule records a pending job and queues it. It blocks while the queue
// is full until ctx is done or the scheduler closes; in those cases the
// job is marked failed and an error is returned.
func (s *Scheduler) Schedule(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.ConversationID) == "" {
		return "", fmt.Errorf("%w: conversation_id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Text) == "" {
		return "", fmt.Errorf("%w: text is required", ErrInvalidRequest)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrSchedulerClosed
	}

	now := time.Now().UTC()
	job := &store.JobRecord{
		JobID:          "job_" + uuid.New().String(),
		Status:         store.JobPending,
		ConversationID: req.ConversationID,
		MessageID:      req.MessageID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("creating job: %w", err)
	}

	t := task{ctx: trace.Detach(ctx), jobID: job.JobID, req: req}
	select {
	case s.queue <- t:
		trace.Logger(ctx, s.logger).Debug("job queued", "job_id", job.JobID, "conversation_id", req.ConversationID)
		return job.JobID, nil
	case <-ctx.Done():
		s.reject(t, ctx.Err())
		return "", fmt.Errorf("queueing job: %w", ctx.Err())
	case <-s.quit:
		s.reject(t, ErrSchedulerClosed)
		return "", ErrSchedulerClosed
	}
}

// reject fails a job that never reached a worker.
func (s *Scheduler) reject(t task, cause error) {
	_, err := s.jobs.TransitionJob(t.ctx, t.jobID, store.JobPending, store.JobUpdate{
		Status:    store.JobFailed,
		ErrorText: "not scheduled: " + cause.Error(),
	})
	if err != nil {
		s.logger.Error("failed to mark rejected job", "job_id", t.jobID, "error", err)
	}
}

// Get returns the current record for jobID, or store.ErrNotFound.
func (s *Scheduler) Get(ctx context.Context, jobID string) (*store.JobRecord, error) {
	return s.jobs.GetJob(ctx, jobID)
}

// Close stops accepting jobs, lets the workers finish everything already
// queued and waits for them.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)

		// Wait for in-flight Schedule calls before closing the queue.
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.queue)

		s.wg.Wait()
		s.logger.Info("scheduler stopped")
	})
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()
	for t := range s.queue {
		s.run(t, id)
	}
}

func (s *Scheduler) run(t task, worker int) {
	ctx := t.ctx
	logger := trace.Logger(ctx, s.logger).With("job_id", t.jobID, "worker", worker)

	if _, err := s.jobs.TransitionJob(ctx, t.jobID, store.JobPending, store.JobUpdate{Status: store.JobRunning}); err != nil {
		logger.Error("failed to start job", "error", err)
		return
	}

	start := time.Now()
	res, err := s.runTurn(ctx, t.req)

	update := store.JobUpdate{Status: store.JobSucceeded}
	if err != nil {
		update = store.JobUpdate{Status: store.JobFailed, ErrorText: err.Error()}
		logger.Warn("job failed", "error", err, "duration", time.Since(start))
	} else {
		update.ResponseText = res.ResponseText
		logger.Info("job succeeded", "domain", res.Domain, "duration", time.Since(start))
	}

	job, err := s.finish(ctx, t.jobID, update)
	if err != nil {
		logger.Error("failed to finish job", "status", update.Status, "error", err)
		if job == nil {
			return
		}
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, job)
	}
}

// finish moves a running job to its terminal status, trying the store a
// second time on failure. If both attempts fail it still returns the
// outcome, built from the last readable record, together with the error so
// the notifier can report it.
func (s *Scheduler) finish(ctx context.Context, jobID string, update store.JobUpdate) (*store.JobRecord, error) {
	job, err := s.jobs.TransitionJob(ctx, jobID, store.JobRunning, update)
	if err == nil {
		return job, nil
	}
	if job, retryErr := s.jobs.TransitionJob(ctx, jobID, store.JobRunning, update); retryErr == nil {
		return job, nil
	}

	current, getErr := s.jobs.GetJob(ctx, jobID)
	if getErr != nil {
		return nil, errors.Join(err, getErr)
	}
	if current.Status.Terminal() {
		return current, nil
	}
	outcome := *current
	outcome.Status = update.Status
	outcome.ResponseText = update.ResponseText
	outcome.ErrorText = update.ErrorText
	outcome.UpdatedAt = time.Now().UTC()
	return &outcome, err
}

// runTurn calls the runner, converting a panic into an error so the worker
// survives and the job is marked failed.
func (s *Scheduler) runTurn(ctx context.Context, req Request) (res *conversation.TurnResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("turn panicked: %v", r)
		}
	}()
	return s.runner.RunTurn(ctx, conversation.TurnRequest{
		ConversationID: req.ConversationID,
		Text:           req.Text,
		EventID:        req.MessageID,
		CustomerID:     req.CustomerID,
	})
}
