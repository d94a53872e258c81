package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskScoreSummary is the risk evaluation of one company for one quarter and report version.
//
// Grain: (company_id, quarter_id, report_version_id).
// risk_level is UNDEFINED exactly when risk_metrics_count is 0.
type RiskScoreSummary struct {
	ID               int                 `gorm:"primary_key" json:"id"`
	CompanyId        int                 `gorm:"not null;index:uniq_rss_company_quarter_version,unique,priority:1" json:"company_id"`
	QuarterId        int                 `gorm:"not null;index:uniq_rss_company_quarter_version,unique,priority:2;index" json:"quarter_id"`
	ReportVersionId  int                 `gorm:"not null;index:uniq_rss_company_quarter_version,unique,priority:3" json:"report_version_id"`
	RiskScore        decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"risk_score"`
	RiskLevel        RiskLevel           `gorm:"type:enum('SAFE','CAUTION','DANGER','UNDEFINED');not null;default:UNDEFINED;index" json:"risk_level"`
	RiskMetricsCount int                 `gorm:"not null;default:0" json:"risk_metrics_count"`
	RiskMetricsAvg   decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"risk_metrics_avg"`
	CalculatedAt     *time.Time          `json:"calculated_at"`
	CreatedAt        time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"autoUpdateTime" json:"updated_at"`

	Company       *Company       `gorm:"foreignKey:CompanyId" json:"-"`
	Quarter       *Quarter       `gorm:"foreignKey:QuarterId" json:"-"`
	ReportVersion *ReportVersion `gorm:"foreignKey:ReportVersionId" json:"-"`
}

func NewRiskScoreSummarySkeleton(company CompanyRef, quarter QuarterRef, version ReportVersionRef) *RiskScoreSummary {
	return &RiskScoreSummary{
		CompanyId:       company.ID,
		QuarterId:       quarter.ID,
		ReportVersionId: version.ID,
		RiskLevel:       RiskLevelUndefined,
	}
}

// Refresh overwrites every computed column; last writer wins.
func (s *RiskScoreSummary) Refresh(result RiskScoreResult, calculatedAt time.Time) {
	s.RiskScore = result.Score
	s.RiskLevel = result.Level
	s.RiskMetricsCount = result.Count
	s.RiskMetricsAvg = result.Avg
	s.CalculatedAt = &calculatedAt
}
