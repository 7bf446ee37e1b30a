package scheduler

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/sitewerks/spectrum-sync/internal/models"
	"github.com/sitewerks/spectrum-sync/internal/services"
)

// Scheduler runs scheduled sync runs on a cron expression.
type Scheduler struct {
	cron *cron.Cron
	sync *services.SyncService
	log  *logrus.Logger
}

// New builds a scheduler without starting it.
func New(syncSvc *services.SyncService, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		sync: syncSvc,
		log:  log,
	}
}

// Start registers the sync job under the given cron spec and starts ticking.
// A tick that lands while a run is still active is skipped, not queued.
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		run, err := s.sync.Run(context.Background(), services.SyncOptions{
			Trigger: models.TriggerScheduled,
		})
		if err != nil {
			if errors.Is(err, services.ErrSyncInFlight) {
				s.log.Warn("scheduled sync skipped, previous run still in progress")
				return
			}
			s.log.Errorf("scheduled sync failed: %v", err)
			return
		}
		s.log.Infof("scheduled sync run %s finished with status %s", run.ExternalID, run.Status)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Infof("sync scheduler started with spec %q", spec)
	return nil
}

// Stop stops the cron ticker and waits for a running job to return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
