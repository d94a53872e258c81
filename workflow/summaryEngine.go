package workflow

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/finrisk_backend/config"
)

// SummaryEngine is the production wiring shared by the server, the scheduler and the CLI.
type SummaryEngine struct {
	Store       *GormEngineStore
	Aggregator  *MetricAggregator
	Scorer      *RiskScorer
	MetricBatch *MetricAverageBatch
	RiskBatch   *RiskScoreBatch
}

func NewSummaryEngine(db *gorm.DB, logger *logrus.Logger) *SummaryEngine {
	store := NewGormEngineStore(db)
	runner := NewBatchRunner(store, NewDistributedBatchLocker(db, logger), NewPubSubEventPublisher(logger), logger)
	aggregator := NewMetricAggregator(store, logger)
	scorer := NewRiskScorer(store, logger)
	return &SummaryEngine{
		Store:       store,
		Aggregator:  aggregator,
		Scorer:      scorer,
		MetricBatch: NewMetricAverageBatch(aggregator, store, runner),
		RiskBatch:   NewRiskScoreBatch(scorer, config.RiskScorePageSize(), runner),
	}
}

func (e *SummaryEngine) NewScheduler(logger *logrus.Logger) *BatchScheduler {
	return NewBatchScheduler(e.MetricBatch, e.RiskBatch, logger)
}
