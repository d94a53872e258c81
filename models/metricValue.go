package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MetricValue is one reported figure. Rows are written by the ingestion side;
// the summary engine only reads them.
type MetricValue struct {
	ID              int             `gorm:"primary_key" json:"id"`
	CompanyId       int             `gorm:"not null;index:idx_mv_company_quarter_version,priority:1" json:"company_id"`
	QuarterId       int             `gorm:"not null;index:idx_mv_company_quarter_version,priority:2;index:idx_mv_quarter_type,priority:1" json:"quarter_id"`
	ReportVersionId int             `gorm:"not null;index:idx_mv_company_quarter_version,priority:3" json:"report_version_id"`
	MetricId        int             `gorm:"not null;index" json:"metric_id"`
	ValueType       MetricValueType `gorm:"type:enum('ACTUAL','FORECAST');not null;index:idx_mv_quarter_type,priority:2" json:"value_type"`
	Value           decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"value"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// MetricValueSample is one observed value of one metric; quarter and value type
// are implied by the query that produced it.
type MetricValueSample struct {
	MetricId int             `json:"metric_id"`
	Value    decimal.Decimal `json:"value"`
}

// RiskScoreTarget identifies the latest report version of a company for a quarter.
type RiskScoreTarget struct {
	CompanyId       int `json:"company_id"`
	QuarterId       int `json:"quarter_id"`
	ReportVersionId int `json:"report_version_id"`
}

// GroupSamplesByMetric buckets samples per metric, keeping input order within a bucket.
func GroupSamplesByMetric(samples []MetricValueSample) map[int][]decimal.Decimal {
	grouped := make(map[int][]decimal.Decimal)
	for _, s := range samples {
		grouped[s.MetricId] = append(grouped[s.MetricId], s.Value)
	}
	return grouped
}
