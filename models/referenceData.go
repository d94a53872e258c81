package models

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/finrisk_backend/utils"
)

// Lazy references: only the id is loaded, enough to populate a foreign key.
type QuarterRef struct{ ID int }

type MetricRef struct{ ID int }

type CompanyRef struct{ ID int }

type ReportVersionRef struct{ ID int }

// ReferenceData resolves ids of externally owned entities.
// An unknown id is an error wrapping utils.ErrorRecordNotFound.
type ReferenceData interface {
	QuarterRef(ctx context.Context, id int) (QuarterRef, error)
	MetricRef(ctx context.Context, id int) (MetricRef, error)
	CompanyRef(ctx context.Context, id int) (CompanyRef, error)
	ReportVersionRef(ctx context.Context, id int) (ReportVersionRef, error)
}

type GormReferenceData struct {
	db *gorm.DB
}

func NewGormReferenceData(db *gorm.DB) *GormReferenceData {
	return &GormReferenceData{db: db}
}

func (r *GormReferenceData) QuarterRef(ctx context.Context, id int) (QuarterRef, error) {
	if err := r.exists(ctx, &Quarter{}, "quarter", id); err != nil {
		return QuarterRef{}, err
	}
	return QuarterRef{ID: id}, nil
}

func (r *GormReferenceData) MetricRef(ctx context.Context, id int) (MetricRef, error) {
	if err := r.exists(ctx, &Metric{}, "metric", id); err != nil {
		return MetricRef{}, err
	}
	return MetricRef{ID: id}, nil
}

func (r *GormReferenceData) CompanyRef(ctx context.Context, id int) (CompanyRef, error) {
	if err := r.exists(ctx, &Company{}, "company", id); err != nil {
		return CompanyRef{}, err
	}
	return CompanyRef{ID: id}, nil
}

func (r *GormReferenceData) ReportVersionRef(ctx context.Context, id int) (ReportVersionRef, error) {
	if err := r.exists(ctx, &ReportVersion{}, "report version", id); err != nil {
		return ReportVersionRef{}, err
	}
	return ReportVersionRef{ID: id}, nil
}

func (r *GormReferenceData) exists(ctx context.Context, model interface{}, entity string, id int) error {
	var found []int
	if err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Limit(1).Pluck("id", &found).Error; err != nil {
		return err
	}
	if len(found) == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, utils.ErrorRecordNotFound)
	}
	return nil
}
