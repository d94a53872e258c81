package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// BatchExecution journals one coordinator run (scheduled or admin-triggered).
type BatchExecution struct {
	ID                    int                  `gorm:"primary_key" json:"id"`
	ExecutionId           string               `gorm:"size:64;not null;uniqueIndex" json:"execution_id"`
	JobName               BatchJobName         `gorm:"size:50;not null;index:idx_be_job_started,priority:1" json:"job_name"`
	TriggerType           TriggerType          `gorm:"size:20;not null" json:"trigger_type"`
	Status                BatchExecutionStatus `gorm:"size:20;not null;index" json:"status"`
	ProcessedQuarterCount int                  `gorm:"not null;default:0" json:"processed_quarter_count"`
	InsertedCount         int                  `gorm:"not null;default:0" json:"inserted_count"`
	SkippedCount          int                  `gorm:"not null;default:0" json:"skipped_count"`
	ProcessedCount        int                  `gorm:"not null;default:0" json:"processed_count"`
	LastError             *string              `gorm:"type:text" json:"last_error"`
	CorrelationId         string               `gorm:"size:64;index" json:"correlation_id"`
	StartedAt             time.Time            `gorm:"not null;index:idx_be_job_started,priority:2" json:"started_at"`
	FinishedAt            *time.Time           `json:"finished_at"`
	CreatedAt             time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

// Finish stamps the terminal status; a nil err means SUCCEEDED.
func (e *BatchExecution) Finish(err error, finishedAt time.Time) {
	e.FinishedAt = &finishedAt
	if err != nil {
		msg := err.Error()
		e.Status = BatchExecutionStatusFailed
		e.LastError = &msg
		return
	}
	e.Status = BatchExecutionStatusSucceeded
	e.LastError = nil
}

func CreateBatchExecution(ctx context.Context, db *gorm.DB, e *BatchExecution) error {
	return db.WithContext(ctx).Create(e).Error
}

func SaveBatchExecution(ctx context.Context, db *gorm.DB, e *BatchExecution) error {
	return db.WithContext(ctx).Save(e).Error
}

// ListRecentBatchExecutions returns the newest runs first; an empty jobName lists every job.
func ListRecentBatchExecutions(ctx context.Context, db *gorm.DB, jobName BatchJobName, limit int) ([]*BatchExecution, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	q := db.WithContext(ctx).Model(&BatchExecution{})
	if jobName != "" {
		q = q.Where("job_name = ?", jobName)
	}
	var results []*BatchExecution
	if err := q.Order("started_at DESC").Order("id DESC").Limit(limit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
