package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/defterdar/defterdar/internal/ledger/reports"
)

// ReportsWarmupJob rebuilds the trial balance cache so the first
// morning request does not pay the aggregation cost.
type ReportsWarmupJob struct {
	Reports *reports.Service
	Logger  *slog.Logger
	Metrics *Metrics
	clock   func() time.Time
}

// NewReportsWarmupJob wires dependencies for the warmup handler.
func NewReportsWarmupJob(reportsSvc *reports.Service, logger *slog.Logger, metrics *Metrics) *ReportsWarmupJob {
	return &ReportsWarmupJob{
		Reports: reportsSvc,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes reports warmup tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("reports warmup: handler not configured")
	}
	var payload ReportsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf := j.clock()
	if payload.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", payload.AsOf)
		if err != nil {
			return asynq.SkipRetry
		}
		asOf = parsed
	}

	started := j.clock()
	tracker := j.Metrics.Track(TaskReportsWarmup)
	tb, err := j.Reports.TrialBalance(ctx, asOf)
	if err != nil {
		j.Logger.Error("reports warmup failed", slog.Any("error", err))
		return tracker.End(err)
	}
	_ = tracker.End(nil)
	j.Logger.Info("reports warmup complete",
		slog.String("as_of", asOf.Format("2006-01-02")),
		slog.Int("accounts", len(tb.Rows)),
		slog.Duration("took", j.clock().Sub(started)))
	return nil
}
