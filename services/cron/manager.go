package cron

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sahilchouksey/lms-api/model"
	"github.com/sahilchouksey/lms-api/utils/auth"
	"gorm.io/gorm"
)

// jobTimeout bounds a single job run
const jobTimeout = 5 * time.Minute

// CronManager manages all scheduled maintenance jobs
type CronManager struct {
	cron        *cron.Cron
	db          *gorm.DB
	revocations auth.RevocationSet
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB, revocations auth.RevocationSet) *CronManager {
	// Seconds precision keeps the schedule format consistent across jobs
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:        c,
		db:          db,
		revocations: revocations,
	}
}

// Start registers all jobs and starts the scheduler
func (m *CronManager) Start() error {
	log.Println("Starting cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	log.Println("Cron jobs started successfully")
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (m *CronManager) Stop() {
	log.Println("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron jobs stopped")
}

// registerJobs registers all jobs with their schedules
func (m *CronManager) registerJobs() error {
	// Hourly at :05: sweep expired revocation rows
	_, err := m.cron.AddFunc("0 5 * * * *", func() {
		m.run("cleanup_expired_revocations", m.CleanupExpiredRevocations)
	})
	if err != nil {
		return err
	}

	// Hourly at :10: sweep dead password reset tokens
	_, err = m.cron.AddFunc("0 10 * * * *", func() {
		m.run("cleanup_expired_reset_tokens", m.CleanupExpiredResetTokens)
	})
	if err != nil {
		return err
	}

	// Daily at 2 AM: trim the audit trail to its retention window
	_, err = m.cron.AddFunc("0 0 2 * * *", func() {
		m.run("cleanup_old_audit_logs", m.CleanupOldAuditLogs)
	})
	if err != nil {
		return err
	}

	// Daily at 2:30 AM: trim old cron execution logs
	_, err = m.cron.AddFunc("0 30 2 * * *", func() {
		m.run("cleanup_old_cron_logs", m.CleanupOldCronLogs)
	})
	if err != nil {
		return err
	}

	log.Println("All cron jobs registered successfully")
	return nil
}

// run executes a job with a bounded context and records the outcome in
// cron_job_logs.
func (m *CronManager) run(jobName string, job func(ctx context.Context) (string, error)) {
	log.Printf("[CRON] Starting job: %s", jobName)

	entry := model.CronJobLog{
		JobName:   jobName,
		Status:    model.CronJobStatusStarted,
		StartedAt: time.Now(),
	}
	if err := m.db.Create(&entry).Error; err != nil {
		log.Printf("[CRON] Failed to record job start for %s: %v", jobName, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	message, err := job(ctx)

	now := time.Now()
	entry.CompletedAt = &now
	entry.Duration = int(now.Sub(entry.StartedAt).Milliseconds())

	if err != nil {
		log.Printf("[CRON] Job %s failed: %v", jobName, err)
		entry.Status = model.CronJobStatusFailed
		entry.ErrorMsg = err.Error()
	} else {
		log.Printf("[CRON] Job %s completed: %s", jobName, message)
		entry.Status = model.CronJobStatusCompleted
		entry.Message = message
	}

	if entry.ID != 0 {
		if err := m.db.Save(&entry).Error; err != nil {
			log.Printf("[CRON] Failed to record job result for %s: %v", jobName, err)
		}
	}
}
