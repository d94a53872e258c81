package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bitbucket.org/mmdatafocus/finrisk_backend/models"
	"bitbucket.org/mmdatafocus/finrisk_backend/utils"
)

// QuarterInsertResult counts metric rows of one quarter in insert-missing mode.
type QuarterInsertResult struct {
	QuarterId     int `json:"quarter_id"`
	InsertedCount int `json:"inserted_count"`
	SkippedCount  int `json:"skipped_count"`
}

// MetricAggregator computes cross-company baselines per non-risk metric and quarter.
type MetricAggregator struct {
	Store  EngineStore
	Logger *logrus.Logger
	Tracer trace.Tracer
	Now    func() time.Time
}

func NewMetricAggregator(store EngineStore, logger *logrus.Logger) *MetricAggregator {
	return &MetricAggregator{
		Store:  store,
		Logger: logger,
		Tracer: defaultTracer(),
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// AggregateQuarter recomputes and overwrites the summary of every metric with samples in the quarter.
// Metrics without samples are left untouched. The quarter commits as one transaction.
func (a *MetricAggregator) AggregateQuarter(ctx context.Context, quarterId int) (results []models.MetricStatistics, err error) {
	ctx, span := a.Tracer.Start(ctx, "metric_average.aggregate_quarter",
		trace.WithAttributes(attribute.Int("quarter_id", quarterId)))
	defer func() { finishSpan(span, err) }()

	err = a.Store.Transaction(ctx, func(uow UnitOfWork) error {
		results = results[:0]
		grouped, err := a.groupedSamples(ctx, uow, quarterId)
		if err != nil {
			return err
		}
		now := a.Now()
		for _, metricId := range sortedMetricIds(grouped) {
			stats := models.CalculateMetricStatistics(metricId, grouped[metricId])
			if err := uow.UpsertMetricAverage(ctx, quarterId, metricId, stats, now); err != nil {
				return fmt.Errorf("upsert metric average quarter=%d metric=%d: %w", quarterId, metricId, err)
			}
			results = append(results, stats)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.Logger.WithFields(utils.BatchLogFields(ctx)).WithFields(logrus.Fields{
		"quarter_id":   quarterId,
		"metric_count": len(results),
	}).Debug("metric averages recalculated")
	return results, nil
}

// InsertMissingQuarter fills only (quarter, metric) pairs with no summary yet.
// Existing pairs are counted as skipped, including ones a concurrent writer inserted first.
func (a *MetricAggregator) InsertMissingQuarter(ctx context.Context, quarterId int) (result QuarterInsertResult, err error) {
	ctx, span := a.Tracer.Start(ctx, "metric_average.insert_missing_quarter",
		trace.WithAttributes(attribute.Int("quarter_id", quarterId)))
	defer func() { finishSpan(span, err) }()

	err = a.Store.Transaction(ctx, func(uow UnitOfWork) error {
		result = QuarterInsertResult{QuarterId: quarterId}
		grouped, err := a.groupedSamples(ctx, uow, quarterId)
		if err != nil {
			return err
		}
		existing, err := uow.ExistingMetricAverageMetricIds(ctx, quarterId)
		if err != nil {
			return err
		}
		now := a.Now()
		for _, metricId := range sortedMetricIds(grouped) {
			if existing[metricId] {
				result.SkippedCount++
				continue
			}
			stats := models.CalculateMetricStatistics(metricId, grouped[metricId])
			inserted, err := uow.InsertMetricAverageIfMissing(ctx, quarterId, metricId, stats, now)
			if err != nil {
				return fmt.Errorf("insert metric average quarter=%d metric=%d: %w", quarterId, metricId, err)
			}
			if inserted {
				result.InsertedCount++
			} else {
				result.SkippedCount++
			}
		}
		return nil
	})
	if err != nil {
		return QuarterInsertResult{QuarterId: quarterId}, err
	}
	span.SetAttributes(
		attribute.Int("inserted_count", result.InsertedCount),
		attribute.Int("skipped_count", result.SkippedCount),
	)
	a.Logger.WithFields(utils.BatchLogFields(ctx)).WithFields(logrus.Fields{
		"quarter_id":     quarterId,
		"inserted_count": result.InsertedCount,
		"skipped_count":  result.SkippedCount,
	}).Debug("missing metric averages inserted")
	return result, nil
}

func (a *MetricAggregator) groupedSamples(ctx context.Context, uow UnitOfWork, quarterId int) (map[int][]decimal.Decimal, error) {
	samples, err := uow.FindNonRiskActualSamples(ctx, quarterId, models.MetricValueTypeActual)
	if err != nil {
		return nil, fmt.Errorf("find samples quarter=%d: %w", quarterId, err)
	}
	return models.GroupSamplesByMetric(samples), nil
}

func sortedMetricIds[V any](grouped map[int]V) []int {
	ids := make([]int, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
