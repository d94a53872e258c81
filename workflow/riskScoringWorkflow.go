package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bitbucket.org/mmdatafocus/finrisk_backend/config"
	"bitbucket.org/mmdatafocus/finrisk_backend/models"
	"bitbucket.org/mmdatafocus/finrisk_backend/utils"
)

const DefaultRiskScorePageSize = config.DefaultRiskScorePageSize

// RiskScorer scores the latest report version of every company/quarter.
type RiskScorer struct {
	Store      EngineStore
	Logger     *logrus.Logger
	Tracer     trace.Tracer
	Now        func() time.Time
	Thresholds func(ctx context.Context) config.RiskThresholds
}

func NewRiskScorer(store EngineStore, logger *logrus.Logger) *RiskScorer {
	return &RiskScorer{
		Store:      store,
		Logger:     logger,
		Tracer:     defaultTracer(),
		Now:        func() time.Time { return time.Now().UTC() },
		Thresholds: config.GetRiskThresholds,
	}
}

// ScoreAllLatest walks target pages until an empty page or no next page, one transaction per page.
// Thresholds are read once per call. Returns the number of targets scored.
func (s *RiskScorer) ScoreAllLatest(ctx context.Context, pageSize int) (processed int, err error) {
	if pageSize <= 0 {
		pageSize = DefaultRiskScorePageSize
	}
	ctx, span := s.Tracer.Start(ctx, "risk_score.score_all_latest",
		trace.WithAttributes(attribute.Int("page_size", pageSize)))
	defer func() {
		span.SetAttributes(attribute.Int("processed_count", processed))
		finishSpan(span, err)
	}()

	thresholds := s.Thresholds(ctx)
	page := models.PageRequest{Page: 0, Size: pageSize}
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		n, hasNext, err := s.scorePage(ctx, page, thresholds)
		if err != nil {
			return processed, err
		}
		processed += n
		if n == 0 || !hasNext {
			return processed, nil
		}
		page = page.Next()
	}
}

func (s *RiskScorer) scorePage(ctx context.Context, page models.PageRequest, thresholds config.RiskThresholds) (count int, hasNext bool, err error) {
	ctx, span := s.Tracer.Start(ctx, "risk_score.page",
		trace.WithAttributes(attribute.Int("page", page.Page)))
	defer func() { finishSpan(span, err) }()

	err = s.Store.Transaction(ctx, func(uow UnitOfWork) error {
		count, hasNext = 0, false
		targetPage, err := uow.FindLatestVersionTargets(ctx, page)
		if err != nil {
			return fmt.Errorf("find targets page=%d: %w", page.Page, err)
		}
		now := s.Now()
		for _, target := range targetPage.Targets {
			if err := scoreTarget(ctx, uow, target, thresholds, now); err != nil {
				return err
			}
			count++
		}
		hasNext = targetPage.HasNextPage()
		return nil
	})
	if err != nil {
		return 0, false, err
	}

	s.Logger.WithFields(utils.BatchLogFields(ctx)).WithFields(logrus.Fields{
		"page":          page.Page,
		"target_count":  count,
		"has_next_page": hasNext,
	}).Debug("risk score page committed")
	return count, hasNext, nil
}

func scoreTarget(ctx context.Context, uow UnitOfWork, target models.RiskScoreTarget, thresholds config.RiskThresholds, now time.Time) error {
	values, err := uow.FindRiskValues(ctx, target.CompanyId, target.QuarterId, target.ReportVersionId, models.MetricValueTypeActual)
	if err != nil {
		return fmt.Errorf("find risk values company=%d quarter=%d version=%d: %w",
			target.CompanyId, target.QuarterId, target.ReportVersionId, err)
	}
	result := models.EvaluateRiskScore(values, thresholds.Caution, thresholds.Danger)
	if err := uow.UpsertRiskScore(ctx, target.CompanyId, target.QuarterId, target.ReportVersionId, result, now); err != nil {
		return fmt.Errorf("upsert risk score company=%d quarter=%d version=%d: %w",
			target.CompanyId, target.QuarterId, target.ReportVersionId, err)
	}
	return nil
}
