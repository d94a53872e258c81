package models

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MetricValueRepository is the read side over reported metric values.
type MetricValueRepository struct {
	db *gorm.DB
}

func NewMetricValueRepository(db *gorm.DB) *MetricValueRepository {
	return &MetricValueRepository{db: db}
}

// FindNonRiskActualSamples lists every value of every non-risk metric reported for the quarter.
// All report versions are included; the baseline is cross-company and cross-version.
func (r *MetricValueRepository) FindNonRiskActualSamples(ctx context.Context, quarterId int, valueType MetricValueType) ([]MetricValueSample, error) {
	var samples []MetricValueSample
	err := r.db.WithContext(ctx).
		Table("metric_values AS mv").
		Select("mv.metric_id, mv.value").
		Joins("JOIN metrics m ON m.id = mv.metric_id").
		Where("mv.quarter_id = ? AND mv.value_type = ? AND m.is_risk_indicator = ?", quarterId, valueType, false).
		Order("mv.metric_id").Order("mv.id").
		Scan(&samples).Error
	if err != nil {
		return nil, err
	}
	return samples, nil
}

// FindRiskValues lists risk-indicator values of exactly one company/quarter/report version.
func (r *MetricValueRepository) FindRiskValues(ctx context.Context, companyId, quarterId, reportVersionId int, valueType MetricValueType) ([]decimal.Decimal, error) {
	var values []decimal.Decimal
	err := r.db.WithContext(ctx).
		Table("metric_values AS mv").
		Joins("JOIN metrics m ON m.id = mv.metric_id").
		Where("mv.company_id = ? AND mv.quarter_id = ? AND mv.report_version_id = ?", companyId, quarterId, reportVersionId).
		Where("mv.value_type = ? AND m.is_risk_indicator = ?", valueType, true).
		Order("mv.id").
		Pluck("mv.value", &values).Error
	if err != nil {
		return nil, err
	}
	return values, nil
}

// FindLatestVersionTargets pages over the highest version_no per company/quarter,
// ordered by company then quarter so page boundaries are stable between calls.
func (r *MetricValueRepository) FindLatestVersionTargets(ctx context.Context, page PageRequest) (TargetPage, error) {
	if page.Size <= 0 {
		return TargetPage{}, errors.New("page size must be positive")
	}
	latest := r.db.Model(&ReportVersion{}).
		Select("company_id, quarter_id, MAX(version_no) AS version_no").
		Group("company_id, quarter_id")

	var rows []RiskScoreTarget
	err := r.db.WithContext(ctx).
		Table("report_versions AS rv").
		Select("rv.company_id, rv.quarter_id, rv.id AS report_version_id").
		Joins("JOIN (?) latest ON latest.company_id = rv.company_id AND latest.quarter_id = rv.quarter_id AND latest.version_no = rv.version_no", latest).
		Order("rv.company_id").Order("rv.quarter_id").
		Offset(page.Offset()).Limit(page.Size + 1).
		Scan(&rows).Error
	if err != nil {
		return TargetPage{}, err
	}

	targets, hasNext := trimPage(rows, page.Size)
	return TargetPage{
		Targets:  targets,
		PageInfo: PageInfo{Page: page.Page, Size: page.Size, HasNextPage: hasNext},
	}, nil
}

// ListQuarterIds returns every known quarter id ascending.
func (r *MetricValueRepository) ListQuarterIds(ctx context.Context) ([]int, error) {
	var ids []int
	if err := r.db.WithContext(ctx).Model(&Quarter{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
