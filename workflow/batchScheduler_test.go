package workflow

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/finrisk_backend/models"
)

func TestBatchScheduler_RejectsInvalidSpec(t *testing.T) {
	s := NewBatchScheduler(nil, nil, quietLogger())
	if err := s.Start("every night", ""); err == nil {
		t.Fatalf("expected an error for an invalid cron spec")
	}
	if err := NewBatchScheduler(nil, nil, quietLogger()).Start("", "0 0 3 * *"); err == nil {
		t.Fatalf("expected an error for a five-field spec; seconds come first")
	}
}

func TestBatchScheduler_EmptySpecsDisableJobs(t *testing.T) {
	s := NewBatchScheduler(nil, nil, quietLogger())
	if err := s.Start("", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n := len(s.cron.Entries()); n != 0 {
		t.Fatalf("expected no entries, got %d", n)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestBatchScheduler_RegistersBothJobs(t *testing.T) {
	s := NewBatchScheduler(nil, nil, quietLogger())
	if err := s.Start("0 0 2 * * *", "0 30 2 * * *"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())
	if n := len(s.cron.Entries()); n != 2 {
		t.Fatalf("expected 2 entries, got %d", n)
	}
}

func TestNewSummaryBatchCompleted(t *testing.T) {
	store := newFakeStore(1)
	store.addSample(1, 1, "5")
	h := newHarness(store)

	if _, err := h.metricBatch().RecalculateAllQuarters(context.Background(), models.TriggerTypeSchedule); err != nil {
		t.Fatalf("RecalculateAllQuarters: %v", err)
	}
	event := NewSummaryBatchCompleted(&h.journal.finished[0])
	if event.ExecutionId != "exec-1" || event.ProcessedQuarterCount != 1 || event.ProcessedCount != 1 || !event.FinishedAt.Equal(fixedNow) {
		t.Fatalf("unexpected event: %+v", event)
	}
}
