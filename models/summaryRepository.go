package models

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SummaryRepository writes the two derived summary tables.
// Construct it on a transaction handle so each unit of work commits atomically.
type SummaryRepository struct {
	db   *gorm.DB
	refs ReferenceData
}

func NewSummaryRepository(db *gorm.DB, refs ReferenceData) *SummaryRepository {
	if refs == nil {
		refs = NewGormReferenceData(db)
	}
	return &SummaryRepository{db: db, refs: refs}
}

func (r *SummaryRepository) findMetricAverage(db *gorm.DB, quarterId, metricId int) (*MetricAverageSummary, error) {
	return FindFirst[MetricAverageSummary](db, "quarter_id = ? AND metric_id = ?", quarterId, metricId)
}

func (r *SummaryRepository) getOrCreateMetricAverage(ctx context.Context, quarterId, metricId int) (*MetricAverageSummary, bool, error) {
	tx := r.db.WithContext(ctx)
	return GetOrCreate(tx,
		func(db *gorm.DB) (*MetricAverageSummary, error) {
			return r.findMetricAverage(db, quarterId, metricId)
		},
		func() (*MetricAverageSummary, error) {
			quarter, err := r.refs.QuarterRef(ctx, quarterId)
			if err != nil {
				return nil, err
			}
			metric, err := r.refs.MetricRef(ctx, metricId)
			if err != nil {
				return nil, err
			}
			return NewMetricAverageSummarySkeleton(quarter, metric), nil
		},
	)
}

// UpsertMetricAverage finds or creates the (quarter, metric) row and overwrites its statistics.
func (r *SummaryRepository) UpsertMetricAverage(ctx context.Context, quarterId, metricId int, stats MetricStatistics, now time.Time) error {
	row, _, err := r.getOrCreateMetricAverage(ctx, quarterId, metricId)
	if err != nil {
		return err
	}
	row.Refresh(stats, now)
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(row).Error
}

// InsertMetricAverageIfMissing writes the row only when this call created it.
// A row that already existed, or that a concurrent writer won, is left as is.
func (r *SummaryRepository) InsertMetricAverageIfMissing(ctx context.Context, quarterId, metricId int, stats MetricStatistics, now time.Time) (bool, error) {
	row, created, err := r.getOrCreateMetricAverage(ctx, quarterId, metricId)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}
	row.Refresh(stats, now)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(row).Error; err != nil {
		return false, err
	}
	return true, nil
}

// ExistingMetricAverageMetricIds returns the metric ids that already have a summary for the quarter.
func (r *SummaryRepository) ExistingMetricAverageMetricIds(ctx context.Context, quarterId int) (map[int]bool, error) {
	var ids []int
	if err := r.db.WithContext(ctx).Model(&MetricAverageSummary{}).
		Where("quarter_id = ?", quarterId).
		Pluck("metric_id", &ids).Error; err != nil {
		return nil, err
	}
	existing := make(map[int]bool, len(ids))
	for _, id := range ids {
		existing[id] = true
	}
	return existing, nil
}

// UpsertRiskScore finds or creates the (company, quarter, report version) row and overwrites its score.
func (r *SummaryRepository) UpsertRiskScore(ctx context.Context, companyId, quarterId, reportVersionId int, result RiskScoreResult, now time.Time) error {
	tx := r.db.WithContext(ctx)
	row, _, err := GetOrCreate(tx,
		func(db *gorm.DB) (*RiskScoreSummary, error) {
			return FindFirst[RiskScoreSummary](db, "company_id = ? AND quarter_id = ? AND report_version_id = ?",
				companyId, quarterId, reportVersionId)
		},
		func() (*RiskScoreSummary, error) {
			company, err := r.refs.CompanyRef(ctx, companyId)
			if err != nil {
				return nil, err
			}
			quarter, err := r.refs.QuarterRef(ctx, quarterId)
			if err != nil {
				return nil, err
			}
			version, err := r.refs.ReportVersionRef(ctx, reportVersionId)
			if err != nil {
				return nil, err
			}
			return NewRiskScoreSummarySkeleton(company, quarter, version), nil
		},
	)
	if err != nil {
		return err
	}
	row.Refresh(result, now)
	return tx.Omit(clause.Associations).Save(row).Error
}

// ListMetricAveragesByQuarter is ordered by metric id.
func ListMetricAveragesByQuarter(ctx context.Context, db *gorm.DB, quarterId int) ([]*MetricAverageSummary, error) {
	var results []*MetricAverageSummary
	if err := db.WithContext(ctx).Preload("Metric").
		Where("quarter_id = ?", quarterId).
		Order("metric_id").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListRiskScoresByQuarter is ordered by company id then report version.
func ListRiskScoresByQuarter(ctx context.Context, db *gorm.DB, quarterId int) ([]*RiskScoreSummary, error) {
	var results []*RiskScoreSummary
	if err := db.WithContext(ctx).Preload("Company").Preload("ReportVersion").
		Where("quarter_id = ?", quarterId).
		Order("company_id").Order("report_version_id").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
