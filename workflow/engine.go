package workflow

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/finrisk_backend/models"
)

type MetricSampleProvider interface {
	FindNonRiskActualSamples(ctx context.Context, quarterId int, valueType models.MetricValueType) ([]models.MetricValueSample, error)
	FindRiskValues(ctx context.Context, companyId, quarterId, reportVersionId int, valueType models.MetricValueType) ([]decimal.Decimal, error)
}

type LatestVersionTargetProvider interface {
	FindLatestVersionTargets(ctx context.Context, page models.PageRequest) (models.TargetPage, error)
}

type QuarterCatalog interface {
	ListQuarterIds(ctx context.Context) ([]int, error)
}

type SummaryStore interface {
	UpsertMetricAverage(ctx context.Context, quarterId, metricId int, stats models.MetricStatistics, now time.Time) error
	InsertMetricAverageIfMissing(ctx context.Context, quarterId, metricId int, stats models.MetricStatistics, now time.Time) (bool, error)
	ExistingMetricAverageMetricIds(ctx context.Context, quarterId int) (map[int]bool, error)
	UpsertRiskScore(ctx context.Context, companyId, quarterId, reportVersionId int, result models.RiskScoreResult, now time.Time) error
}

// UnitOfWork is everything one quarter or one page needs, bound to a single transaction.
type UnitOfWork interface {
	MetricSampleProvider
	LatestVersionTargetProvider
	SummaryStore
}

type EngineStore interface {
	QuarterCatalog
	// Transaction commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(uow UnitOfWork) error) error
}

type ExecutionJournal interface {
	StartExecution(ctx context.Context, execution *models.BatchExecution) error
	FinishExecution(ctx context.Context, execution *models.BatchExecution) error
}

// GormEngineStore backs EngineStore and ExecutionJournal with MySQL.
type GormEngineStore struct {
	DB *gorm.DB
}

func NewGormEngineStore(db *gorm.DB) *GormEngineStore {
	return &GormEngineStore{DB: db}
}

type gormUnitOfWork struct {
	*models.MetricValueRepository
	*models.SummaryRepository
}

func (s *GormEngineStore) ListQuarterIds(ctx context.Context) ([]int, error) {
	return models.NewMetricValueRepository(s.DB).ListQuarterIds(ctx)
}

func (s *GormEngineStore) Transaction(ctx context.Context, fn func(uow UnitOfWork) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(gormUnitOfWork{
			MetricValueRepository: models.NewMetricValueRepository(tx),
			SummaryRepository:     models.NewSummaryRepository(tx, models.NewGormReferenceData(tx)),
		})
	})
}

func (s *GormEngineStore) StartExecution(ctx context.Context, execution *models.BatchExecution) error {
	return models.CreateBatchExecution(ctx, s.DB, execution)
}

func (s *GormEngineStore) FinishExecution(ctx context.Context, execution *models.BatchExecution) error {
	return models.SaveBatchExecution(ctx, s.DB, execution)
}
