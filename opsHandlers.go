package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/finrisk_backend/config"
	"bitbucket.org/mmdatafocus/finrisk_backend/models"
	"bitbucket.org/mmdatafocus/finrisk_backend/models/reports"
	"bitbucket.org/mmdatafocus/finrisk_backend/utils"
	"bitbucket.org/mmdatafocus/finrisk_backend/workflow"
)

// manual runs outlive the admin's HTTP connection but not this bound
const manualRunTimeout = 2 * time.Hour

var validate = validator.New()

type metricBatchTrigger interface {
	CalculateAndInsertMissingAllQuarters(ctx context.Context, trigger models.TriggerType) (workflow.MetricBatchResult, error)
	RecalculateAllQuarters(ctx context.Context, trigger models.TriggerType) (workflow.MetricBatchResult, error)
	RecalculateQuarter(ctx context.Context, trigger models.TriggerType, quarterId int) (workflow.MetricBatchResult, error)
}

type riskBatchTrigger interface {
	RunWithPageSize(ctx context.Context, trigger models.TriggerType, pageSize int) (workflow.RiskBatchResult, error)
}

type opsHandlers struct {
	logger *logrus.Logger

	mu          sync.RWMutex
	db          *gorm.DB
	metricBatch metricBatchTrigger
	riskBatch   riskBatchTrigger
}

func (h *opsHandlers) setEngine(db *gorm.DB, metricBatch metricBatchTrigger, riskBatch riskBatchTrigger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.db = db
	h.metricBatch = metricBatch
	h.riskBatch = riskBatch
}

func (h *opsHandlers) engine() (*gorm.DB, metricBatchTrigger, riskBatchTrigger, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.db, h.metricBatch, h.riskBatch, h.metricBatch != nil && h.riskBatch != nil
}

type recalculateRequest struct {
	QuarterId *int `json:"quarter_id" validate:"omitempty,gt=0"`
}

type riskScoreRunRequest struct {
	PageSize int `json:"page_size" validate:"omitempty,gte=1,lte=10000"`
}

type riskThresholdsRequest struct {
	CautionThreshold *string `json:"caution_threshold" validate:"omitempty,max=32"`
	DangerThreshold  *string `json:"danger_threshold" validate:"omitempty,max=32"`
}

// bindOptionalJSON accepts an empty body as the zero request.
func bindOptionalJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
		return false
	}
	return true
}

func manualRunContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), manualRunTimeout)
}

func (h *opsHandlers) respondBatchError(c *gin.Context, funcName string, err error) {
	switch {
	case errors.Is(err, workflow.ErrBatchAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrInvalidTriggerType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		config.LogError(h.logger, "server.go", funcName, "batch run", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *opsHandlers) insertMissingMetricAverages(c *gin.Context) {
	_, metricBatch, _, ok := h.engine()
	if !ok {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := manualRunContext(c)
	defer cancel()

	result, err := metricBatch.CalculateAndInsertMissingAllQuarters(ctx, models.TriggerTypeManual)
	if err != nil {
		h.respondBatchError(c, "insertMissingMetricAverages", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *opsHandlers) recalculateMetricAverages(c *gin.Context) {
	_, metricBatch, _, ok := h.engine()
	if !ok {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	var req recalculateRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	ctx, cancel := manualRunContext(c)
	defer cancel()

	var (
		result workflow.MetricBatchResult
		err    error
	)
	if req.QuarterId != nil {
		result, err = metricBatch.RecalculateQuarter(ctx, models.TriggerTypeManual, *req.QuarterId)
	} else {
		result, err = metricBatch.RecalculateAllQuarters(ctx, models.TriggerTypeManual)
	}
	if err != nil {
		h.respondBatchError(c, "recalculateMetricAverages", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *opsHandlers) runRiskScores(c *gin.Context) {
	_, _, riskBatch, ok := h.engine()
	if !ok {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	var req riskScoreRunRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = config.RiskScorePageSize()
	}
	ctx, cancel := manualRunContext(c)
	defer cancel()

	result, err := riskBatch.RunWithPageSize(ctx, models.TriggerTypeManual, pageSize)
	if err != nil {
		h.respondBatchError(c, "runRiskScores", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *opsHandlers) listBatchExecutions(c *gin.Context) {
	db, _, _, ok := h.engine()
	if !ok || db == nil {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	jobName := models.BatchJobName(c.Query("job_name"))
	switch jobName {
	case "", models.BatchJobMetricAverageInsertMissing, models.BatchJobMetricAverageRecalculate, models.BatchJobRiskScore:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown job_name %q", jobName)})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	executions, err := models.ListRecentBatchExecutions(c.Request.Context(), db, jobName, limit)
	if err != nil {
		config.LogError(h.logger, "server.go", "listBatchExecutions", "ListRecentBatchExecutions", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": executions})
}

func (h *opsHandlers) getRiskThresholds(c *gin.Context) {
	c.JSON(http.StatusOK, config.GetRiskThresholds(c.Request.Context()))
}

// putRiskThresholds stores Redis overrides; an empty string clears one.
// The resulting pair is checked before anything is written.
func (h *opsHandlers) putRiskThresholds(c *gin.Context) {
	var req riskThresholdsRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if _, err := config.PlanRiskThresholds(ctx, req.CautionThreshold, req.DangerThreshold); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if config.GetRedisDB() == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "redis not connected"})
		return
	}
	thresholds, err := config.ApplyRiskThresholdOverrides(ctx, req.CautionThreshold, req.DangerThreshold)
	if errors.Is(err, config.ErrInvalidRiskThresholds) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	} else if err != nil {
		config.LogError(h.logger, "server.go", "putRiskThresholds", "ApplyRiskThresholdOverrides", req, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, thresholds)
}

func (h *opsHandlers) exportQuarterSummary(c *gin.Context) {
	quarterId, err := strconv.Atoi(c.Param("quarter_id"))
	if err != nil || quarterId <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quarter_id"})
		return
	}
	db, _, _, ok := h.engine()
	if !ok || db == nil {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	f, err := reports.BuildQuarterSummaryWorkbook(c.Request.Context(), db, quarterId)
	if err != nil {
		config.LogError(h.logger, "server.go", "exportQuarterSummary", "BuildQuarterSummaryWorkbook", quarterId, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	c.Header("Content-Type", utils.XlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=quarter-%d-summary.xlsx", quarterId))
	if err := f.Write(c.Writer); err != nil {
		c.Error(err)
	}
}
