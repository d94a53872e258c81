package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MetricAverageDataSourceVersion identifies the current statistics logic.
// Bump it when the calculation changes so stale rows can be told apart.
const MetricAverageDataSourceVersion = 1

// MetricAverageSummary is the cross-company baseline of one metric for one quarter.
//
// Grain: (quarter_id, metric_id). Derived data; refreshed in place, never deleted.
type MetricAverageSummary struct {
	ID                int                 `gorm:"primary_key" json:"id"`
	QuarterId         int                 `gorm:"not null;index:uniq_mas_quarter_metric,unique,priority:1" json:"quarter_id"`
	MetricId          int                 `gorm:"not null;index:uniq_mas_quarter_metric,unique,priority:2;index" json:"metric_id"`
	AvgValue          decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"avg_value"`
	MedianValue       decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"median_value"`
	MinValue          decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"min_value"`
	MaxValue          decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"max_value"`
	StddevValue       decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"stddev_value"`
	CompanyCount      int                 `gorm:"not null;default:0" json:"company_count"`
	CalculatedAt      *time.Time          `json:"calculated_at"`
	DataSourceVersion int                 `gorm:"not null;default:0" json:"data_source_version"`
	CreatedAt         time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"autoUpdateTime" json:"updated_at"`

	Quarter *Quarter `gorm:"foreignKey:QuarterId" json:"-"`
	Metric  *Metric  `gorm:"foreignKey:MetricId" json:"-"`
}

// NewMetricAverageSummarySkeleton carries foreign keys only; Refresh fills the rest.
func NewMetricAverageSummarySkeleton(quarter QuarterRef, metric MetricRef) *MetricAverageSummary {
	return &MetricAverageSummary{
		QuarterId: quarter.ID,
		MetricId:  metric.ID,
	}
}

// Refresh overwrites every computed column; last writer wins.
func (s *MetricAverageSummary) Refresh(stats MetricStatistics, calculatedAt time.Time) {
	s.AvgValue = stats.Avg
	s.MedianValue = stats.Median
	s.MinValue = stats.Min
	s.MaxValue = stats.Max
	s.StddevValue = stats.Stddev
	s.CompanyCount = stats.Count
	s.CalculatedAt = &calculatedAt
	s.DataSourceVersion = MetricAverageDataSourceVersion
}
