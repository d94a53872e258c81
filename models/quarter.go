package models

import "time"

// Quarter is one reporting period, e.g. 2024 Q3.
type Quarter struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Year      int       `gorm:"not null;index:uniq_quarter_year_no,unique" json:"year"`
	QuarterNo int       `gorm:"not null;index:uniq_quarter_year_no,unique" json:"quarter_no"`
	StartDate time.Time `gorm:"type:date" json:"start_date"`
	EndDate   time.Time `gorm:"type:date" json:"end_date"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
