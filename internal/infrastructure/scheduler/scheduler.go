package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobStatus represents the status of a scheduled job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobKind names the maintenance task a job performs
type JobKind string

const (
	// JobKindReconcileOverdue moves a tenant's past-due sent invoices to overdue
	JobKindReconcileOverdue JobKind = "RECONCILE_OVERDUE"
)

// Job is one unit of per-tenant maintenance work
type Job struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Kind        JobKind
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
}

// NewJob creates a pending job
func NewJob(tenantID uuid.UUID, kind JobKind, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Kind:       kind,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *Job) Start(now time.Time) {
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete(now time.Time) {
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(err string, now time.Time) {
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// JobExecutor runs one job
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// Config holds scheduler configuration
type Config struct {
	Enabled           bool
	SweepInterval     time.Duration
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		SweepInterval:     15 * time.Minute,
		MaxConcurrentJobs: 2,
		JobTimeout:        2 * time.Minute,
		RetryAttempts:     3,
		RetryDelay:        30 * time.Second,
	}
}

// Scheduler runs submitted jobs on a fixed worker pool
type Scheduler struct {
	config   Config
	executor JobExecutor
	logger   *zap.Logger

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	retries   map[uuid.UUID]*time.Timer
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config Config, executor JobExecutor, logger *zap.Logger) *Scheduler {
	if config.MaxConcurrentJobs <= 0 {
		config.MaxConcurrentJobs = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config:   config,
		executor: executor,
		logger:   logger,
		jobs:     make(chan *Job, 100),
		retries:  make(map[uuid.UUID]*time.Timer),
	}
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Job scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels pending retries and waits for running jobs to finish
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	for id, timer := range s.retries {
		timer.Stop()
		delete(s.retries, id)
	}
	close(s.jobs)
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Job scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Job scheduler stop timed out")
		return ctx.Err()
	}
}

// SubmitJob queues a job without blocking
func (s *Scheduler) SubmitJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job:
		s.logger.Debug("Job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(job.Kind)),
			zap.String("tenant_id", job.TenantID.String()),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	job.Start(time.Now())
	fields := []zap.Field{
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
		zap.String("tenant_id", job.TenantID.String()),
	}

	jobCtx := ctx
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	if err := s.executor.Execute(jobCtx, job); err != nil {
		job.Fail(err.Error(), time.Now())
		s.logger.Error("Job failed", append(fields, zap.Error(err))...)
		if job.ShouldRetry() {
			s.scheduleRetry(job)
		}
		return
	}

	job.Complete(time.Now())
	s.logger.Debug("Job completed", fields...)
}

// scheduleRetry resubmits the job after RetryDelay
func (s *Scheduler) scheduleRetry(job *Job) {
	job.RetryCount++
	job.Status = JobStatusPending

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	s.retries[job.ID] = time.AfterFunc(s.config.RetryDelay, func() {
		s.mu.Lock()
		delete(s.retries, job.ID)
		s.mu.Unlock()
		if err := s.SubmitJob(job); err != nil {
			s.logger.Warn("Failed to re-queue job for retry",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
		}
	})
	s.logger.Info("Job scheduled for retry",
		zap.String("job_id", job.ID.String()),
		zap.Int("retry_count", job.RetryCount),
		zap.Int("max_retries", job.MaxRetries),
	)
}

// ScheduleReconcile queues an overdue reconciliation job per tenant
func (s *Scheduler) ScheduleReconcile(tenantIDs []uuid.UUID) error {
	for _, tenantID := range tenantIDs {
		if err := s.SubmitJob(NewJob(tenantID, JobKindReconcileOverdue, s.config.RetryAttempts)); err != nil {
			return err
		}
	}
	return nil
}
