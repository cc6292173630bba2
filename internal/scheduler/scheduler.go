package scheduler

import (
	"fmt"
	"log"
	"strings"

	"github.com/robfig/cron/v3"

	"residence-portal/internal/config"
	"residence-portal/internal/database"
	"residence-portal/internal/models"
	"residence-portal/internal/reconcile"
)

// Scheduler runs the nightly reconciliation sweep
type Scheduler struct {
	cron      *cron.Cron
	engine    *reconcile.Engine
	db        *database.GormDB
	config    *config.Config
	isRunning bool
}

// NewScheduler creates a new scheduler
func NewScheduler(engine *reconcile.Engine, db *database.GormDB, cfg *config.Config) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		engine: engine,
		db:     db,
		config: cfg,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	if !s.config.Reconcile.NightlyEnabled {
		log.Println("Scheduler: Nightly sweep is disabled in configuration")
		return nil
	}

	cronSpec := s.parseRunTime(s.config.Reconcile.NightlyRunTime)

	_, err := s.cron.AddFunc(cronSpec, func() {
		log.Println("Scheduler: Starting nightly reconciliation sweep...")
		if err := s.runSweep(models.SweepTriggerScheduled, s.config.Reconcile.NightlyDryRun); err != nil {
			log.Printf("Scheduler: Nightly sweep failed: %v", err)
		} else {
			log.Println("Scheduler: Nightly sweep completed")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.isRunning = true
	log.Printf("Scheduler: Started with nightly sweep at %s (cron: %s)",
		s.config.Reconcile.NightlyRunTime, cronSpec)

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	if s.isRunning {
		s.cron.Stop()
		s.isRunning = false
		log.Println("Scheduler: Stopped")
	}
}

// RunNow triggers a sweep outside the schedule
func (s *Scheduler) RunNow(dryRun bool) error {
	return s.runSweep(models.SweepTriggerManual, dryRun)
}

func (s *Scheduler) runSweep(trigger string, dryRun bool) error {
	result, err := s.engine.Run(trigger, dryRun)
	if err != nil {
		return err
	}
	if err := s.db.SaveSweepLog(result.ToLog()); err != nil {
		log.Printf("Scheduler: Warning: failed to persist sweep log: %v", err)
	}
	return nil
}

// parseRunTime converts "HH:MM" into a cron spec, falling back to 03:00
// on malformed input.
func (s *Scheduler) parseRunTime(runTime string) string {
	parts := strings.Split(runTime, ":")
	if len(parts) != 2 {
		return "0 3 * * *"
	}
	var hour, minute int
	if _, err := fmt.Sscanf(runTime, "%d:%d", &hour, &minute); err != nil {
		return "0 3 * * *"
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "0 3 * * *"
	}
	return fmt.Sprintf("%d %d * * *", minute, hour)
}
