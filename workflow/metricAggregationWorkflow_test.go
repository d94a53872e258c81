package workflow

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/finrisk_backend/models"
	"bitbucket.org/mmdatafocus/finrisk_backend/utils"
)

func TestAggregateQuarter_OnlyTouchesRequestedQuarter(t *testing.T) {
	store := newFakeStore(1, 2)
	store.addSample(1, 10, "10")
	store.addSample(1, 10, "30")
	store.addSample(1, 11, "5")
	store.addSample(2, 10, "100")
	store.metricAverages[metricKey{2, 10}] = sentinel(10)

	results, err := newHarness(store).aggregator().AggregateQuarter(context.Background(), 1)
	if err != nil {
		t.Fatalf("AggregateQuarter: %v", err)
	}
	if len(results) != 2 || results[0].MetricId != 10 || results[1].MetricId != 11 {
		t.Fatalf("expected metrics 10 and 11 in order, got %+v", results)
	}
	if got := store.metricAverages[metricKey{1, 10}]; got.Count != 2 || got.Avg.Decimal.StringFixed(4) != "20.0000" {
		t.Fatalf("unexpected quarter 1 metric 10 row: %+v", got)
	}
	if got := store.metricAverages[metricKey{2, 10}]; got.Count != 99 {
		t.Fatalf("quarter 2 must not be touched, got %+v", got)
	}
	if store.transactions != 1 {
		t.Fatalf("expected one transaction per quarter, got %d", store.transactions)
	}
}

func TestAggregateQuarter_IsIdempotent(t *testing.T) {
	store := newFakeStore(1)
	store.addSample(1, 10, "1")
	store.addSample(1, 10, "2")
	agg := newHarness(store).aggregator()

	if _, err := agg.AggregateQuarter(context.Background(), 1); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := store.metricAverages[metricKey{1, 10}]
	if _, err := agg.AggregateQuarter(context.Background(), 1); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second := store.metricAverages[metricKey{1, 10}]

	if store.quarterRows(1) != 1 {
		t.Fatalf("expected a single row, got %d", store.quarterRows(1))
	}
	if !first.Avg.Decimal.Equal(second.Avg.Decimal) || first.Count != second.Count {
		t.Fatalf("rerun changed the row: %+v vs %+v", first, second)
	}
}

func TestAggregateQuarter_LeavesMetricsWithoutSamplesUntouched(t *testing.T) {
	store := newFakeStore(1)
	store.addSample(1, 10, "7")
	store.metricAverages[metricKey{1, 55}] = sentinel(55)

	if _, err := newHarness(store).aggregator().AggregateQuarter(context.Background(), 1); err != nil {
		t.Fatalf("AggregateQuarter: %v", err)
	}
	if got := store.metricAverages[metricKey{1, 55}]; got.Count != 99 {
		t.Fatalf("metric without samples was modified: %+v", got)
	}
}

func TestAggregateQuarter_RollsBackQuarterOnFailure(t *testing.T) {
	store := newFakeStore(1)
	store.addSample(1, 10, "1")
	store.addSample(1, 11, "2")
	boom := errors.New("deadlock")
	store.failUpserts[metricKey{1, 11}] = boom

	_, err := newHarness(store).aggregator().AggregateQuarter(context.Background(), 1)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped failure, got %v", err)
	}
	if store.quarterRows(1) != 0 {
		t.Fatalf("metric 10 should have been rolled back, rows=%d", store.quarterRows(1))
	}
}

func TestInsertMissingQuarter_SkipsExistingAndConcurrentRows(t *testing.T) {
	store := newFakeStore(1)
	store.addSample(1, 1, "10")
	store.addSample(1, 2, "20")
	store.addSample(1, 3, "30")
	store.metricAverages[metricKey{1, 1}] = sentinel(1)
	store.concurrentInserts[metricKey{1, 2}] = true

	result, err := newHarness(store).aggregator().InsertMissingQuarter(context.Background(), 1)
	if err != nil {
		t.Fatalf("InsertMissingQuarter: %v", err)
	}
	if result.InsertedCount != 1 || result.SkippedCount != 2 {
		t.Fatalf("expected 1 inserted / 2 skipped, got %+v", result)
	}
	if got := store.metricAverages[metricKey{1, 1}]; got.Count != 99 {
		t.Fatalf("existing row was overwritten: %+v", got)
	}
	if got := store.metricAverages[metricKey{1, 3}]; got.Count != 1 {
		t.Fatalf("metric 3 not inserted: %+v", got)
	}
}

func TestCalculateAndInsertMissingAllQuarters_Counters(t *testing.T) {
	store := newFakeStore(1, 2, 3)
	// quarter 1: two new metrics
	store.addSample(1, 1, "1")
	store.addSample(1, 2, "2")
	// quarter 2: one existing metric
	store.addSample(2, 1, "3")
	store.metricAverages[metricKey{2, 1}] = sentinel(1)
	// quarter 3: one new metric
	store.addSample(3, 3, "4")
	h := newHarness(store)

	result, err := h.metricBatch().CalculateAndInsertMissingAllQuarters(context.Background(), models.TriggerTypeManual)
	if err != nil {
		t.Fatalf("CalculateAndInsertMissingAllQuarters: %v", err)
	}
	if result.ProcessedQuarterCount != 3 || result.InsertedCount != 3 || result.SkippedCount != 1 {
		t.Fatalf("unexpected counters: %+v", result)
	}
	if result.TriggerType != models.TriggerTypeManual || result.ExecutionId != "exec-1" {
		t.Fatalf("unexpected identity: %+v", result)
	}

	if len(h.journal.started) != 1 || len(h.journal.finished) != 1 {
		t.Fatalf("expected one journal start and finish, got %d/%d", len(h.journal.started), len(h.journal.finished))
	}
	finished := h.journal.last()
	if finished.Status != models.BatchExecutionStatusSucceeded || finished.InsertedCount != 3 || finished.JobName != models.BatchJobMetricAverageInsertMissing {
		t.Fatalf("unexpected journal entry: %+v", finished)
	}
	if len(h.publisher.events) != 1 || h.publisher.events[0].InsertedCount != 3 || h.publisher.events[0].SkippedCount != 1 {
		t.Fatalf("unexpected completion events: %+v", h.publisher.events)
	}
}

func TestCalculateAndInsertMissingAllQuarters_AbortsOnFirstFailure(t *testing.T) {
	store := newFakeStore(1, 2, 3)
	store.addSample(1, 1, "1")
	store.addSample(2, 1, "2")
	store.addSample(3, 1, "3")
	boom := errors.New("connection reset")
	store.failSamples[2] = boom
	h := newHarness(store)

	result, err := h.metricBatch().CalculateAndInsertMissingAllQuarters(context.Background(), models.TriggerTypeSchedule)
	if !errors.Is(err, boom) {
		t.Fatalf("expected quarter 2 failure, got %v", err)
	}
	if result.ProcessedQuarterCount != 1 || result.InsertedCount != 1 {
		t.Fatalf("only quarter 1 should be counted, got %+v", result)
	}
	if store.quarterRows(1) != 1 {
		t.Fatalf("quarter 1 must stay committed")
	}
	if store.quarterRows(3) != 0 {
		t.Fatalf("quarter 3 must not be processed")
	}
	finished := h.journal.last()
	if finished.Status != models.BatchExecutionStatusFailed || finished.LastError == nil {
		t.Fatalf("journal should record the failure: %+v", finished)
	}
	if len(h.publisher.events) != 0 {
		t.Fatalf("failed runs must not publish completion events")
	}
}

func TestMetricBatch_InvalidTriggerTouchesNothing(t *testing.T) {
	store := newFakeStore(1)
	store.addSample(1, 1, "1")
	h := newHarness(store)

	_, err := h.metricBatch().CalculateAndInsertMissingAllQuarters(context.Background(), models.TriggerType("NIGHTLY"))
	if !errors.Is(err, ErrInvalidTriggerType) {
		t.Fatalf("expected ErrInvalidTriggerType, got %v", err)
	}
	if store.listQuarterCalls != 0 || store.transactions != 0 || len(h.journal.started) != 0 {
		t.Fatalf("invalid trigger must not reach the store or journal")
	}
}

func TestRecalculateAllQuarters_CountsRecalculatedRows(t *testing.T) {
	store := newFakeStore(1, 2)
	store.addSample(1, 1, "1")
	store.addSample(1, 2, "2")
	store.addSample(2, 1, "3")
	store.metricAverages[metricKey{2, 1}] = sentinel(1)
	h := newHarness(store)

	result, err := h.metricBatch().RecalculateAllQuarters(context.Background(), models.TriggerTypeManual)
	if err != nil {
		t.Fatalf("RecalculateAllQuarters: %v", err)
	}
	if result.ProcessedQuarterCount != 2 || result.RecalculatedCount != 3 || result.InsertedCount != 0 {
		t.Fatalf("unexpected counters: %+v", result)
	}
	if got := store.metricAverages[metricKey{2, 1}]; got.Count != 1 {
		t.Fatalf("recalculate must overwrite existing rows, got %+v", got)
	}
	if h.journal.last().JobName != models.BatchJobMetricAverageRecalculate {
		t.Fatalf("unexpected job name %s", h.journal.last().JobName)
	}
}

func TestRecalculateQuarter(t *testing.T) {
	store := newFakeStore(1, 2)
	store.addSample(1, 1, "1")
	store.addSample(2, 1, "2")
	h := newHarness(store)

	result, err := h.metricBatch().RecalculateQuarter(context.Background(), models.TriggerTypeManual, 2)
	if err != nil {
		t.Fatalf("RecalculateQuarter: %v", err)
	}
	if result.ProcessedQuarterCount != 1 || store.quarterRows(1) != 0 || store.quarterRows(2) != 1 {
		t.Fatalf("only quarter 2 should be recalculated: %+v", result)
	}

	_, err = h.metricBatch().RecalculateQuarter(context.Background(), models.TriggerTypeManual, 42)
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected not found for unknown quarter, got %v", err)
	}
	if h.journal.last().Status != models.BatchExecutionStatusFailed {
		t.Fatalf("unknown quarter should be journaled as failed")
	}
}

func TestMetricJobsShareOneLock(t *testing.T) {
	store := newFakeStore(1)
	h := newHarness(store)
	h.locker.held = map[string]bool{metricAverageLockName: true}

	if _, err := h.metricBatch().CalculateAndInsertMissingAllQuarters(context.Background(), models.TriggerTypeSchedule); !errors.Is(err, ErrBatchAlreadyRunning) {
		t.Fatalf("insert-missing: expected ErrBatchAlreadyRunning, got %v", err)
	}
	if _, err := h.metricBatch().RecalculateAllQuarters(context.Background(), models.TriggerTypeManual); !errors.Is(err, ErrBatchAlreadyRunning) {
		t.Fatalf("recalculate: expected ErrBatchAlreadyRunning, got %v", err)
	}
	if store.listQuarterCalls != 0 || len(h.journal.started) != 0 {
		t.Fatalf("a skipped run must not touch the store or journal")
	}
}
