package models

import "time"

// ReportVersion is one submitted revision of a company's quarterly report.
// Higher VersionNo supersedes lower ones for the same company/quarter.
type ReportVersion struct {
	ID         int       `gorm:"primary_key" json:"id"`
	CompanyId  int       `gorm:"not null;index:uniq_rv_company_quarter_version,unique,priority:1" json:"company_id"`
	QuarterId  int       `gorm:"not null;index:uniq_rv_company_quarter_version,unique,priority:2" json:"quarter_id"`
	VersionNo  int       `gorm:"not null;index:uniq_rv_company_quarter_version,unique,priority:3" json:"version_no"`
	ReportedAt time.Time `json:"reported_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`

	Company *Company `gorm:"foreignKey:CompanyId" json:"-"`
	Quarter *Quarter `gorm:"foreignKey:QuarterId" json:"-"`
}
