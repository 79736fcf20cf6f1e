package scheduler

import (
	"context"
	"time"

	"estate_lifecycle_engine/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// EngineScheduler is the periodic trigger. It owns no state: every job is a
// short-lived batch invocation of a scan entry point, and the entry points
// tolerate overlapping runs, so a double-fire from clock skew is harmless.
type EngineScheduler struct {
	cronEngine *cron.Cron
	verifSvc   app.VerificationService
	retainSvc  app.RetentionService
	deleteSvc  app.DeletionService
	logger     *logrus.Logger

	cronSpecScan     string // e.g. "*/5 * * * *"
	cronSpecExpiry   string // e.g. "*/15 * * * *"
	cronSpecDeletion string // e.g. "*/10 * * * *"
}

func NewEngineScheduler(
	verifSvc app.VerificationService,
	retainSvc app.RetentionService,
	deleteSvc app.DeletionService,
	logger *logrus.Logger,
	cronSpecScan string,
	cronSpecExpiry string,
	cronSpecDeletion string,
) *EngineScheduler {
	return &EngineScheduler{
		cronEngine:       cron.New(cron.WithLocation(time.UTC)),
		verifSvc:         verifSvc,
		retainSvc:        retainSvc,
		deleteSvc:        deleteSvc,
		logger:           logger,
		cronSpecScan:     cronSpecScan,
		cronSpecExpiry:   cronSpecExpiry,
		cronSpecDeletion: cronSpecDeletion,
	}
}

// Start registers the jobs and starts the cron engine.
func (s *EngineScheduler) Start() {
	s.logger.Info("Starting lifecycle scheduler...")

	// Liveness and retention share one scan cadence.
	_, err := s.cronEngine.AddFunc(s.cronSpecScan, func() {
		s.logger.Debug("Cron job triggered: lifecycle scan")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.verifSvc.Scan(ctx); err != nil {
			s.logger.Errorf("Verification scan failed: %v", err)
		}
		if err := s.retainSvc.Scan(ctx); err != nil {
			s.logger.Errorf("Retention scan failed: %v", err)
		}
	})
	if err != nil {
		s.logger.Fatalf("Could not add lifecycle scan cron job: %v", err)
	}

	_, err = s.cronEngine.AddFunc(s.cronSpecExpiry, func() {
		s.logger.Debug("Cron job triggered: expiry sweep")
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		if err := s.verifSvc.CheckExpiry(ctx); err != nil {
			s.logger.Errorf("Expiry sweep failed: %v", err)
		}
	})
	if err != nil {
		s.logger.Fatalf("Could not add expiry sweep cron job: %v", err)
	}

	_, err = s.cronEngine.AddFunc(s.cronSpecDeletion, func() {
		s.logger.Debug("Cron job triggered: deletion executor")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := s.deleteSvc.Execute(ctx); err != nil {
			s.logger.Errorf("Deletion executor run failed: %v", err)
		}
	})
	if err != nil {
		s.logger.Fatalf("Could not add deletion executor cron job: %v", err)
	}

	s.cronEngine.Start()
	s.logger.Info("Lifecycle scheduler started with jobs.")
}

// Stop halts the cron engine and waits for running jobs to finish.
func (s *EngineScheduler) Stop() {
	s.logger.Info("Stopping lifecycle scheduler...")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Lifecycle scheduler gracefully stopped.")
}
