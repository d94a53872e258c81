package models

import "time"

type Metric struct {
	ID              int       `gorm:"primary_key" json:"id"`
	Code            string    `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name            string    `gorm:"size:100;not null" json:"name"`
	Unit            string    `gorm:"size:20" json:"unit"`
	IsRiskIndicator bool      `gorm:"not null;default:false;index" json:"is_risk_indicator"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}
