package service

import (
	"context"
	"sync"
	"time"

	"custom-alerts-service/internal/alerts"
	"custom-alerts-service/internal/config"
	"custom-alerts-service/internal/logging"
	"custom-alerts-service/internal/metrics"
	"custom-alerts-service/internal/models"
	"custom-alerts-service/internal/notifier"
	"custom-alerts-service/internal/providers"
)

// RunJob is one evaluation-and-dispatch unit of work: a period occurrence on
// one site, as scheduled by the external scheduler.
type RunJob struct {
	RequestID string
	Period    models.Period
	SiteID    int64
}

// Service executes RunJobs on a worker pool. Jobs for different
// (period, site) pairs can run concurrently; coordination happens in the
// trigger log, not in memory.
type Service struct {
	processor *alerts.Processor
	notifier  *notifier.Notifier
	summary   *providers.TelegramSummary
	logger    *logging.Logger
	config    config.Config
	jobs      chan RunJob
	ctx       context.Context
	cancel    context.CancelFunc
	wg        *sync.WaitGroup
}

// New constructs the run Service.
func New(processor *alerts.Processor, n *notifier.Notifier, summary *providers.TelegramSummary, logger *logging.Logger, cfg config.Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		processor: processor,
		notifier:  n,
		summary:   summary,
		logger:    logger,
		config:    cfg,
		jobs:      make(chan RunJob, cfg.Runner.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Logger exposes the Service's logger to the Kafka consumer.
func (s *Service) Logger() *logging.Logger {
	return s.logger
}

// Start launches the worker pool.
func (s *Service) Start(wg *sync.WaitGroup) {
	s.wg = wg
	for i := 0; i < s.config.Runner.MaxWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop cancels the workers.
func (s *Service) Stop() {
	s.cancel()
}

// QueueRun enqueues a RunJob for processing.
func (s *Service) QueueRun(job RunJob) {
	select {
	case s.jobs <- job:
		metrics.RunQueueSize.Set(float64(len(s.jobs)))
		s.logger.Infof("Queued run: request_id=%s period=%s site=%d", job.RequestID, job.Period, job.SiteID)
	default:
		s.logger.Errorf("Queue full, dropping run: request_id=%s period=%s site=%d", job.RequestID, job.Period, job.SiteID)
	}
}

// worker processes RunJobs until context is cancelled.
func (s *Service) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Infof("Worker %d stopped", id)
			return
		case job := <-s.jobs:
			metrics.RunQueueSize.Set(float64(len(s.jobs)))
			s.Run(job)
		}
	}
}

// Run evaluates all alerts for the job's period and site, then dispatches
// the resulting triggers. Both halves are idempotent, so re-running a job is
// safe.
func (s *Service) Run(job RunJob) {
	start := time.Now()
	defer func() {
		metrics.RunDuration.Observe(time.Since(start).Seconds())
	}()

	if err := s.processor.ProcessPeriod(s.ctx, job.Period, job.SiteID); err != nil {
		s.logger.Errorf("Run %s: processing failed for period=%s site=%d: %v", job.RequestID, job.Period, job.SiteID, err)
		// fall through: triggers recorded before the failure still get sent
	}

	report, err := s.notifier.DispatchPeriod(s.ctx, job.Period, job.SiteID)
	if err != nil {
		s.logger.Errorf("Run %s: dispatch failed for period=%s site=%d: %v", job.RequestID, job.Period, job.SiteID, err)
		return
	}

	s.logger.Infof("Run %s: period=%s site=%d emails=%d sms=%d failures=%d",
		job.RequestID, job.Period, job.SiteID, report.EmailsSent, report.SmsSent, len(report.Failures))

	s.summary.SendRunSummary(s.ctx, job.Period, job.SiteID, report)
}
