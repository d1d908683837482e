package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crucial707/licitasis/internal/audit"
	"github.com/crucial707/licitasis/internal/models"
	"github.com/robfig/cron/v3"
)

// Cleaner is the part of the audit recorder the retention job needs.
type Cleaner interface {
	Cleanup(ctx context.Context, actor *models.Actor, client audit.Client, retentionDays int) (int64, bool)
}

// RetentionJob removes audit events older than RetentionDays on a cron schedule.
// Each run is itself audited as a DELETE by the system actor.
type RetentionJob struct {
	Cleaner       Cleaner
	Spec          string
	RetentionDays int
}

// Run performs one cleanup.
func (j *RetentionJob) Run(ctx context.Context) {
	deleted, ok := j.Cleaner.Cleanup(ctx, models.SystemActor, audit.Client{IP: "localhost", UserAgent: "scheduler"}, j.RetentionDays)
	if !ok {
		slog.Error("scheduler: audit retention cleanup failed", "retention_days", j.RetentionDays)
		return
	}
	slog.Info("scheduler: audit retention cleanup", "retention_days", j.RetentionDays, "deleted", deleted)
}

// Start registers the job and starts the cron runner. Stop the returned cron on shutdown.
// The context passed to each run is cancelled once ctx is done.
func (j *RetentionJob) Start(ctx context.Context) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(j.Spec, func() {
		if ctx.Err() != nil {
			return
		}
		j.Run(ctx)
	}); err != nil {
		return nil, fmt.Errorf("scheduler: invalid cron expression %q: %w", j.Spec, err)
	}
	c.Start()
	slog.Info("scheduler: audit retention cleanup scheduled", "cron", j.Spec, "retention_days", j.RetentionDays)
	return c, nil
}
