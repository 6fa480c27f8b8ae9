package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/morita/kabuto/internal/digest"
	"github.com/morita/kabuto/internal/digestconfig"
	"github.com/morita/kabuto/pkg/logger"
)

// DailyDigestJob runs the full digest pipeline once per trading day
// ⭐ SSOT: 日次ダイジェストのスケジュールはこの Job だけ
type DailyDigestJob struct {
	orchestrator *digest.Orchestrator
	cfg          *digestconfig.Config
	logger       *logger.Logger
}

// NewDailyDigestJob creates the daily digest job
func NewDailyDigestJob(o *digest.Orchestrator, cfg *digestconfig.Config, log *logger.Logger) *DailyDigestJob {
	return &DailyDigestJob{
		orchestrator: o,
		cfg:          cfg,
		logger:       log,
	}
}

// Name returns the job name
func (j *DailyDigestJob) Name() string {
	return "daily_digest"
}

// Schedule returns the cron expression from the digest configuration
func (j *DailyDigestJob) Schedule() string {
	return j.cfg.Schedule.Cron
}

// Run executes one digest for today's date in the configured timezone
func (j *DailyDigestJob) Run(ctx context.Context) error {
	loc, err := j.cfg.Location()
	if err != nil {
		return fmt.Errorf("resolve timezone: %w", err)
	}

	now := time.Now().In(loc)
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	j.logger.WithField("report_date", date.Format("2006-01-02")).Info("Starting scheduled digest")

	if _, err := j.orchestrator.Run(ctx, date); err != nil {
		return fmt.Errorf("digest run: %w", err)
	}

	j.logger.Info("Scheduled digest completed successfully")
	return nil
}
