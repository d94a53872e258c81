package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bitbucket.org/mmdatafocus/finrisk_backend/config"
	"bitbucket.org/mmdatafocus/finrisk_backend/models"
	"bitbucket.org/mmdatafocus/finrisk_backend/utils"
)

var ErrInvalidTriggerType = errors.New("invalid trigger type")

// lock names; both metric jobs write metric_average_summaries
const (
	metricAverageLockName = "metric-average"
	riskScoreLockName     = "risk-score"
)

type MetricBatchResult struct {
	ProcessedQuarterCount int                `json:"processedQuarterCount"`
	InsertedCount         int                `json:"insertedCount"`
	SkippedCount          int                `json:"skippedCount"`
	RecalculatedCount     int                `json:"recalculatedCount"`
	TriggerType           models.TriggerType `json:"triggerType"`
	ExecutionId           string             `json:"executionId"`
}

type RiskBatchResult struct {
	ProcessedCount int                `json:"processedCount"`
	TriggerType    models.TriggerType `json:"triggerType"`
	ExecutionId    string             `json:"executionId"`
}

// BatchRunner wraps a batch body with trigger validation, locking, journaling,
// tracing and the completion event. Journal, Locker and Publisher are optional.
type BatchRunner struct {
	Journal        ExecutionJournal
	Locker         BatchLocker
	Publisher      EventPublisher
	Logger         *logrus.Logger
	Tracer         trace.Tracer
	Now            func() time.Time
	NewExecutionId func() string

	metrics batchMetrics
}

func NewBatchRunner(journal ExecutionJournal, locker BatchLocker, publisher EventPublisher, logger *logrus.Logger) *BatchRunner {
	return &BatchRunner{
		Journal:        journal,
		Locker:         locker,
		Publisher:      publisher,
		Logger:         logger,
		Tracer:         defaultTracer(),
		Now:            func() time.Time { return time.Now().UTC() },
		NewExecutionId: uuid.NewString,
		metrics:        newBatchMetrics(),
	}
}

// Run executes body once. The returned execution carries the counters body accumulated,
// even when body failed part way; units committed before the failure stay committed.
func (r *BatchRunner) Run(ctx context.Context, job models.BatchJobName, lockName string, trigger models.TriggerType,
	body func(ctx context.Context, execution *models.BatchExecution) error) (*models.BatchExecution, error) {

	if !trigger.IsValid() {
		return &models.BatchExecution{JobName: job, TriggerType: trigger}, fmt.Errorf("%w: %q", ErrInvalidTriggerType, trigger)
	}

	executionId := r.NewExecutionId()
	correlationId, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || correlationId == "" {
		correlationId = executionId
	}
	execution := &models.BatchExecution{
		ExecutionId:   executionId,
		JobName:       job,
		TriggerType:   trigger,
		Status:        models.BatchExecutionStatusRunning,
		CorrelationId: correlationId,
		StartedAt:     r.Now(),
	}
	ctx = utils.SetBatchTagsInContext(ctx, executionId, string(trigger))

	ctx, span := r.Tracer.Start(ctx, "summary_batch.run", trace.WithAttributes(
		attribute.String("job_name", string(job)),
		attribute.String("trigger_type", string(trigger)),
		attribute.String("execution_id", executionId),
	))

	logger := r.Logger.WithFields(logrus.Fields{
		"job_name":     job,
		"trigger_type": trigger,
		"execution_id": executionId,
	})
	logger.Info("summary batch started")

	err := r.withLock(ctx, lockName, func(ctx context.Context) error {
		if r.Journal != nil {
			if err := r.Journal.StartExecution(ctx, execution); err != nil {
				return fmt.Errorf("start execution journal: %w", err)
			}
		}
		runErr := body(ctx, execution)
		execution.Finish(runErr, r.Now())
		if r.Journal != nil {
			// the run's own ctx may already be past its deadline
			if err := r.Journal.FinishExecution(context.WithoutCancel(ctx), execution); err != nil {
				config.LogError(r.Logger, "workflow", "BatchRunner.Run", "finish execution journal", executionId, err)
			}
		}
		return runErr
	})
	finishSpan(span, err)

	status := string(models.BatchExecutionStatusSucceeded)
	if err != nil {
		status = string(models.BatchExecutionStatusFailed)
	}
	r.metrics.record(ctx, string(job), string(trigger), status, execution.InsertedCount, execution.ProcessedCount)

	fields := logrus.Fields{
		"processed_quarter_count": execution.ProcessedQuarterCount,
		"inserted_count":          execution.InsertedCount,
		"skipped_count":           execution.SkippedCount,
		"processed_count":         execution.ProcessedCount,
		"duration_ms":             r.Now().Sub(execution.StartedAt).Milliseconds(),
	}
	if err != nil {
		if errors.Is(err, ErrBatchAlreadyRunning) {
			logger.WithFields(fields).Warn("summary batch skipped: already running")
		} else {
			config.LogError(r.Logger, "workflow", "BatchRunner.Run", string(job), fields, err)
		}
		return execution, err
	}
	logger.WithFields(fields).Info("summary batch finished")

	if r.Publisher != nil {
		if perr := r.Publisher.PublishBatchCompleted(context.WithoutCancel(ctx), NewSummaryBatchCompleted(execution)); perr != nil {
			config.LogError(r.Logger, "workflow", "BatchRunner.Run", "publish completion event", executionId, perr)
		}
	}
	return execution, nil
}

func (r *BatchRunner) withLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if r.Locker == nil {
		return fn(ctx)
	}
	return r.Locker.WithLock(ctx, name, fn)
}

// MetricAverageBatch drives the metric aggregator over every known quarter.
type MetricAverageBatch struct {
	Aggregator *MetricAggregator
	Quarters   QuarterCatalog
	Runner     *BatchRunner
}

func NewMetricAverageBatch(aggregator *MetricAggregator, quarters QuarterCatalog, runner *BatchRunner) *MetricAverageBatch {
	return &MetricAverageBatch{Aggregator: aggregator, Quarters: quarters, Runner: runner}
}

func metricBatchResult(e *models.BatchExecution) MetricBatchResult {
	return MetricBatchResult{
		ProcessedQuarterCount: e.ProcessedQuarterCount,
		InsertedCount:         e.InsertedCount,
		SkippedCount:          e.SkippedCount,
		RecalculatedCount:     e.ProcessedCount,
		TriggerType:           e.TriggerType,
		ExecutionId:           e.ExecutionId,
	}
}

// CalculateAndInsertMissingAllQuarters inserts summaries only for pairs that have none, quarter by quarter.
// The first failing quarter aborts the run.
func (b *MetricAverageBatch) CalculateAndInsertMissingAllQuarters(ctx context.Context, trigger models.TriggerType) (MetricBatchResult, error) {
	execution, err := b.Runner.Run(ctx, models.BatchJobMetricAverageInsertMissing, metricAverageLockName, trigger,
		func(ctx context.Context, execution *models.BatchExecution) error {
			quarterIds, err := b.Quarters.ListQuarterIds(ctx)
			if err != nil {
				return fmt.Errorf("list quarters: %w", err)
			}
			for _, quarterId := range quarterIds {
				if err := ctx.Err(); err != nil {
					return err
				}
				result, err := b.Aggregator.InsertMissingQuarter(ctx, quarterId)
				if err != nil {
					return fmt.Errorf("quarter %d: %w", quarterId, err)
				}
				execution.ProcessedQuarterCount++
				execution.InsertedCount += result.InsertedCount
				execution.SkippedCount += result.SkippedCount
			}
			return nil
		})
	return metricBatchResult(execution), err
}

// RecalculateAllQuarters overwrites every quarter's summaries with fresh statistics.
func (b *MetricAverageBatch) RecalculateAllQuarters(ctx context.Context, trigger models.TriggerType) (MetricBatchResult, error) {
	return b.recalculate(ctx, trigger, nil)
}

// RecalculateQuarter overwrites one quarter; an unknown quarter is utils.ErrorRecordNotFound.
func (b *MetricAverageBatch) RecalculateQuarter(ctx context.Context, trigger models.TriggerType, quarterId int) (MetricBatchResult, error) {
	return b.recalculate(ctx, trigger, &quarterId)
}

func (b *MetricAverageBatch) recalculate(ctx context.Context, trigger models.TriggerType, only *int) (MetricBatchResult, error) {
	execution, err := b.Runner.Run(ctx, models.BatchJobMetricAverageRecalculate, metricAverageLockName, trigger,
		func(ctx context.Context, execution *models.BatchExecution) error {
			quarterIds, err := b.Quarters.ListQuarterIds(ctx)
			if err != nil {
				return fmt.Errorf("list quarters: %w", err)
			}
			if only != nil {
				if !slices.Contains(quarterIds, *only) {
					return fmt.Errorf("quarter %d: %w", *only, utils.ErrorRecordNotFound)
				}
				quarterIds = []int{*only}
			}
			for _, quarterId := range quarterIds {
				if err := ctx.Err(); err != nil {
					return err
				}
				stats, err := b.Aggregator.AggregateQuarter(ctx, quarterId)
				if err != nil {
					return fmt.Errorf("quarter %d: %w", quarterId, err)
				}
				execution.ProcessedQuarterCount++
				execution.ProcessedCount += len(stats)
			}
			return nil
		})
	return metricBatchResult(execution), err
}

// RiskScoreBatch is a thin driver around RiskScorer.ScoreAllLatest.
type RiskScoreBatch struct {
	Scorer   *RiskScorer
	PageSize int
	Runner   *BatchRunner
}

func NewRiskScoreBatch(scorer *RiskScorer, pageSize int, runner *BatchRunner) *RiskScoreBatch {
	return &RiskScoreBatch{Scorer: scorer, PageSize: pageSize, Runner: runner}
}

func (b *RiskScoreBatch) Run(ctx context.Context, trigger models.TriggerType) (RiskBatchResult, error) {
	return b.RunWithPageSize(ctx, trigger, b.PageSize)
}

// RunWithPageSize uses the default page size when pageSize <= 0.
func (b *RiskScoreBatch) RunWithPageSize(ctx context.Context, trigger models.TriggerType, pageSize int) (RiskBatchResult, error) {
	execution, err := b.Runner.Run(ctx, models.BatchJobRiskScore, riskScoreLockName, trigger,
		func(ctx context.Context, execution *models.BatchExecution) error {
			processed, err := b.Scorer.ScoreAllLatest(ctx, pageSize)
			execution.ProcessedCount = processed
			return err
		})
	return RiskBatchResult{
		ProcessedCount: execution.ProcessedCount,
		TriggerType:    execution.TriggerType,
		ExecutionId:    execution.ExecutionId,
	}, err
}
