package workflow

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/finrisk_backend/models"
)

const scheduledRunTimeout = 2 * time.Hour

// BatchScheduler fires the SCHEDULE-triggered summary batches from cron specs (seconds first).
type BatchScheduler struct {
	MetricBatch *MetricAverageBatch
	RiskBatch   *RiskScoreBatch
	Logger      *logrus.Logger

	cron *cron.Cron
}

func NewBatchScheduler(metricBatch *MetricAverageBatch, riskBatch *RiskScoreBatch, logger *logrus.Logger) *BatchScheduler {
	return &BatchScheduler{
		MetricBatch: metricBatch,
		RiskBatch:   riskBatch,
		Logger:      logger,
		cron:        cron.New(cron.WithSeconds()),
	}
}

// Start registers both jobs; an empty spec disables that job.
func (s *BatchScheduler) Start(metricSpec, riskSpec string) error {
	if metricSpec != "" {
		if _, err := s.cron.AddFunc(metricSpec, s.runMetricBatch); err != nil {
			return err
		}
	}
	if riskSpec != "" {
		if _, err := s.cron.AddFunc(riskSpec, s.runRiskBatch); err != nil {
			return err
		}
	}
	s.cron.Start()
	s.Logger.WithFields(logrus.Fields{
		"metric_average_schedule": metricSpec,
		"risk_score_schedule":     riskSpec,
	}).Info("summary batch scheduler started")
	return nil
}

// Stop waits for running jobs to return or ctx to expire.
func (s *BatchScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.Logger.Warn("summary batch scheduler stop timed out")
	}
}

func (s *BatchScheduler) runMetricBatch() {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledRunTimeout)
	defer cancel()
	// counters and failures are logged by the runner
	_, _ = s.MetricBatch.CalculateAndInsertMissingAllQuarters(ctx, models.TriggerTypeSchedule)
}

func (s *BatchScheduler) runRiskBatch() {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledRunTimeout)
	defer cancel()
	_, _ = s.RiskBatch.Run(ctx, models.TriggerTypeSchedule)
}
