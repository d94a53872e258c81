package workflow

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/finrisk_backend/config"
	"bitbucket.org/mmdatafocus/finrisk_backend/models"
)

var fixedNow = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

type metricKey struct {
	QuarterId int
	MetricId  int
}

// fakeStore is an in-memory EngineStore; Transaction restores both summary
// tables when fn fails so tests can observe rollback.
type fakeStore struct {
	quarters   []int
	samples    map[int][]models.MetricValueSample
	targets    []models.RiskScoreTarget
	riskValues map[models.RiskScoreTarget][]decimal.Decimal

	metricAverages map[metricKey]models.MetricStatistics
	riskScores     map[models.RiskScoreTarget]models.RiskScoreResult

	// a key present here behaves as if another writer inserted it first
	concurrentInserts map[metricKey]bool
	failSamples       map[int]error
	failUpserts       map[metricKey]error
	failRiskUpserts   map[models.RiskScoreTarget]error

	listQuarterCalls int
	transactions     int
	rollbacks        int
	pageRequests     []models.PageRequest
}

func newFakeStore(quarters ...int) *fakeStore {
	return &fakeStore{
		quarters:          quarters,
		samples:           map[int][]models.MetricValueSample{},
		riskValues:        map[models.RiskScoreTarget][]decimal.Decimal{},
		metricAverages:    map[metricKey]models.MetricStatistics{},
		riskScores:        map[models.RiskScoreTarget]models.RiskScoreResult{},
		concurrentInserts: map[metricKey]bool{},
		failSamples:       map[int]error{},
		failUpserts:       map[metricKey]error{},
		failRiskUpserts:   map[models.RiskScoreTarget]error{},
	}
}

func (s *fakeStore) addSample(quarterId, metricId int, value string) {
	s.samples[quarterId] = append(s.samples[quarterId], models.MetricValueSample{
		MetricId: metricId,
		Value:    decimal.RequireFromString(value),
	})
}

func (s *fakeStore) addTarget(companyId, quarterId, reportVersionId int, values ...string) models.RiskScoreTarget {
	target := models.RiskScoreTarget{CompanyId: companyId, QuarterId: quarterId, ReportVersionId: reportVersionId}
	s.targets = append(s.targets, target)
	for _, v := range values {
		s.riskValues[target] = append(s.riskValues[target], decimal.RequireFromString(v))
	}
	return target
}

// sentinel marks a row the code under test must not overwrite.
func sentinel(metricId int) models.MetricStatistics {
	return models.MetricStatistics{MetricId: metricId, Count: 99}
}

func (s *fakeStore) ListQuarterIds(ctx context.Context) ([]int, error) {
	s.listQuarterCalls++
	return append([]int(nil), s.quarters...), nil
}

func (s *fakeStore) Transaction(ctx context.Context, fn func(uow UnitOfWork) error) error {
	s.transactions++
	averages := make(map[metricKey]models.MetricStatistics, len(s.metricAverages))
	for k, v := range s.metricAverages {
		averages[k] = v
	}
	scores := make(map[models.RiskScoreTarget]models.RiskScoreResult, len(s.riskScores))
	for k, v := range s.riskScores {
		scores[k] = v
	}
	if err := fn(s); err != nil {
		s.rollbacks++
		s.metricAverages = averages
		s.riskScores = scores
		return err
	}
	return nil
}

func (s *fakeStore) FindNonRiskActualSamples(ctx context.Context, quarterId int, valueType models.MetricValueType) ([]models.MetricValueSample, error) {
	if err := s.failSamples[quarterId]; err != nil {
		return nil, err
	}
	return s.samples[quarterId], nil
}

func (s *fakeStore) FindRiskValues(ctx context.Context, companyId, quarterId, reportVersionId int, valueType models.MetricValueType) ([]decimal.Decimal, error) {
	return s.riskValues[models.RiskScoreTarget{CompanyId: companyId, QuarterId: quarterId, ReportVersionId: reportVersionId}], nil
}

func (s *fakeStore) FindLatestVersionTargets(ctx context.Context, page models.PageRequest) (models.TargetPage, error) {
	if page.Size <= 0 {
		return models.TargetPage{}, fmt.Errorf("page size must be positive, got %d", page.Size)
	}
	s.pageRequests = append(s.pageRequests, page)
	start := page.Offset()
	if start > len(s.targets) {
		start = len(s.targets)
	}
	end := start + page.Size
	if end > len(s.targets) {
		end = len(s.targets)
	}
	return models.TargetPage{
		Targets: s.targets[start:end],
		PageInfo: models.PageInfo{
			Page:        page.Page,
			Size:        page.Size,
			HasNextPage: end < len(s.targets),
		},
	}, nil
}

func (s *fakeStore) UpsertMetricAverage(ctx context.Context, quarterId, metricId int, stats models.MetricStatistics, now time.Time) error {
	key := metricKey{quarterId, metricId}
	if err := s.failUpserts[key]; err != nil {
		return err
	}
	s.metricAverages[key] = stats
	return nil
}

func (s *fakeStore) InsertMetricAverageIfMissing(ctx context.Context, quarterId, metricId int, stats models.MetricStatistics, now time.Time) (bool, error) {
	key := metricKey{quarterId, metricId}
	if err := s.failUpserts[key]; err != nil {
		return false, err
	}
	if s.concurrentInserts[key] {
		if _, ok := s.metricAverages[key]; !ok {
			s.metricAverages[key] = sentinel(metricId)
		}
		return false, nil
	}
	if _, ok := s.metricAverages[key]; ok {
		return false, nil
	}
	s.metricAverages[key] = stats
	return true, nil
}

func (s *fakeStore) ExistingMetricAverageMetricIds(ctx context.Context, quarterId int) (map[int]bool, error) {
	ids := map[int]bool{}
	for k := range s.metricAverages {
		if k.QuarterId == quarterId {
			ids[k.MetricId] = true
		}
	}
	return ids, nil
}

func (s *fakeStore) UpsertRiskScore(ctx context.Context, companyId, quarterId, reportVersionId int, result models.RiskScoreResult, now time.Time) error {
	key := models.RiskScoreTarget{CompanyId: companyId, QuarterId: quarterId, ReportVersionId: reportVersionId}
	if err := s.failRiskUpserts[key]; err != nil {
		return err
	}
	s.riskScores[key] = result
	return nil
}

func (s *fakeStore) quarterRows(quarterId int) int {
	n := 0
	for k := range s.metricAverages {
		if k.QuarterId == quarterId {
			n++
		}
	}
	return n
}

type fakeJournal struct {
	started  []models.BatchExecution
	finished []models.BatchExecution
}

func (j *fakeJournal) StartExecution(ctx context.Context, execution *models.BatchExecution) error {
	j.started = append(j.started, *execution)
	return nil
}

func (j *fakeJournal) FinishExecution(ctx context.Context, execution *models.BatchExecution) error {
	j.finished = append(j.finished, *execution)
	return nil
}

func (j *fakeJournal) last() models.BatchExecution {
	return j.finished[len(j.finished)-1]
}

type fakePublisher struct {
	events []SummaryBatchCompleted
}

func (p *fakePublisher) PublishBatchCompleted(ctx context.Context, event SummaryBatchCompleted) error {
	p.events = append(p.events, event)
	return nil
}

type fakeLocker struct {
	held map[string]bool
}

func (l *fakeLocker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[name] {
		return ErrBatchAlreadyRunning
	}
	l.held[name] = true
	defer delete(l.held, name)
	return fn(ctx)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type harness struct {
	store     *fakeStore
	journal   *fakeJournal
	publisher *fakePublisher
	locker    *fakeLocker
	runner    *BatchRunner

	thresholdReads int
}

func newHarness(store *fakeStore) *harness {
	h := &harness{
		store:     store,
		journal:   &fakeJournal{},
		publisher: &fakePublisher{},
		locker:    &fakeLocker{},
	}
	seq := 0
	h.runner = &BatchRunner{
		Journal:   h.journal,
		Locker:    h.locker,
		Publisher: h.publisher,
		Logger:    quietLogger(),
		Tracer:    defaultTracer(),
		Now:       func() time.Time { return fixedNow },
		NewExecutionId: func() string {
			seq++
			return fmt.Sprintf("exec-%d", seq)
		},
	}
	return h
}

func (h *harness) aggregator() *MetricAggregator {
	return &MetricAggregator{
		Store:  h.store,
		Logger: quietLogger(),
		Tracer: defaultTracer(),
		Now:    func() time.Time { return fixedNow },
	}
}

func (h *harness) scorer() *RiskScorer {
	return &RiskScorer{
		Store:  h.store,
		Logger: quietLogger(),
		Tracer: defaultTracer(),
		Now:    func() time.Time { return fixedNow },
		Thresholds: func(ctx context.Context) config.RiskThresholds {
			h.thresholdReads++
			return config.RiskThresholds{Caution: decimal.NewFromInt(40), Danger: decimal.NewFromInt(70)}
		},
	}
}

func (h *harness) metricBatch() *MetricAverageBatch {
	return NewMetricAverageBatch(h.aggregator(), h.store, h.runner)
}

func (h *harness) riskBatch(pageSize int) *RiskScoreBatch {
	return NewRiskScoreBatch(h.scorer(), pageSize, h.runner)
}
