package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/finrisk_backend/config"
	"bitbucket.org/mmdatafocus/finrisk_backend/models"
)

const SummaryBatchCompletedEvent = "SummaryBatchCompleted"

// SummaryBatchCompleted tells dashboard/watchlist readers that summaries changed.
type SummaryBatchCompleted struct {
	EventType             string              `json:"event_type"`
	ExecutionId           string              `json:"execution_id"`
	JobName               models.BatchJobName `json:"job_name"`
	TriggerType           models.TriggerType  `json:"trigger_type"`
	ProcessedQuarterCount int                 `json:"processed_quarter_count"`
	InsertedCount         int                 `json:"inserted_count"`
	SkippedCount          int                 `json:"skipped_count"`
	ProcessedCount        int                 `json:"processed_count"`
	FinishedAt            time.Time           `json:"finished_at"`
}

func NewSummaryBatchCompleted(e *models.BatchExecution) SummaryBatchCompleted {
	event := SummaryBatchCompleted{
		EventType:             SummaryBatchCompletedEvent,
		ExecutionId:           e.ExecutionId,
		JobName:               e.JobName,
		TriggerType:           e.TriggerType,
		ProcessedQuarterCount: e.ProcessedQuarterCount,
		InsertedCount:         e.InsertedCount,
		SkippedCount:          e.SkippedCount,
		ProcessedCount:        e.ProcessedCount,
	}
	if e.FinishedAt != nil {
		event.FinishedAt = *e.FinishedAt
	}
	return event
}

type EventPublisher interface {
	PublishBatchCompleted(ctx context.Context, event SummaryBatchCompleted) error
}

type PubSubEventPublisher struct {
	Logger *logrus.Logger
}

func NewPubSubEventPublisher(logger *logrus.Logger) *PubSubEventPublisher {
	return &PubSubEventPublisher{Logger: logger}
}

func (p *PubSubEventPublisher) PublishBatchCompleted(ctx context.Context, event SummaryBatchCompleted) error {
	msgId, err := config.PublishSummaryEvent(ctx, event, map[string]string{
		"event_type":   event.EventType,
		"job_name":     string(event.JobName),
		"execution_id": event.ExecutionId,
	})
	if errors.Is(err, config.ErrPubSubDisabled) {
		return nil
	}
	if err != nil {
		return err
	}
	p.Logger.WithFields(logrus.Fields{
		"execution_id": event.ExecutionId,
		"message_id":   msgId,
	}).Debug("summary batch event published")
	return nil
}
