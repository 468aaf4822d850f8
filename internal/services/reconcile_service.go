package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ReconcileService periodically re-resolves every family so aggregates heal
// after crashes or out-of-band store edits. It reuses the same per-family
// critical section as ingest-driven resolves.
type ReconcileService interface {
	Start() error
	Stop()
	// ReconcileAll runs one full pass immediately. Used by repair tooling.
	ReconcileAll(ctx context.Context) (resolved int, failed int)
}

type reconcileService struct {
	families FamilyService
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewReconcileService creates a new ReconcileService. The schedule uses cron
// syntax including descriptors like "@every 10m".
func NewReconcileService(families FamilyService, schedule string, timeout time.Duration) ReconcileService {
	return &reconcileService{
		families: families,
		cron:     cron.New(),
		schedule: schedule,
		timeout:  timeout,
		logger:   slog.Default().With("component", "reconcile_service"),
	}
}

func (s *reconcileService) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		resolved, failed := s.ReconcileAll(ctx)
		s.logger.Info("reconcile pass finished", "resolved", resolved, "failed", failed)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *reconcileService) Stop() {
	s.cron.Stop()
}

func (s *reconcileService) ReconcileAll(ctx context.Context) (resolved int, failed int) {
	ids, err := s.families.ListFamilyIDs(ctx)
	if err != nil {
		s.logger.Error("failed to list families for reconcile", "error", err)
		return 0, 0
	}

	for _, id := range ids {
		if _, err := s.families.ResolveFamily(ctx, id); err != nil {
			failed++
			s.logger.Error("reconcile resolve failed", "family_id", id, "error", err)
			continue
		}
		resolved++
	}
	return resolved, failed
}
