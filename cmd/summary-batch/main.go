package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bitbucket.org/mmdatafocus/finrisk_backend/config"
	"bitbucket.org/mmdatafocus/finrisk_backend/models"
	"bitbucket.org/mmdatafocus/finrisk_backend/workflow"
)

const (
	jobMetricInsertMissing = "metric-insert-missing"
	jobMetricRecalculate   = "metric-recalculate"
	jobRisk                = "risk"
)

func main() {
	job := flag.String("job", "", "Required: metric-insert-missing | metric-recalculate | risk")
	quarterID := flag.Int("quarter-id", 0, "Optional (metric-recalculate): recalculate one quarter only")
	pageSize := flag.Int("page-size", 0, "Optional (risk): targets per page; defaults to RISK_SCORE_PAGE_SIZE")
	migrate := flag.Bool("migrate", false, "Run AutoMigrate before the job")
	flag.Parse()

	if *job != jobMetricInsertMissing && *job != jobMetricRecalculate && *job != jobRisk {
		fmt.Fprintf(os.Stderr, "unknown -job %q (want %s)\n", *job,
			strings.Join([]string{jobMetricInsertMissing, jobMetricRecalculate, jobRisk}, " | "))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := config.GetLogger()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	if strings.TrimSpace(os.Getenv("REDIS_ADDRESS")) != "" {
		config.ConnectRedisWithRetry()
		defer config.CloseRedis()
	}
	defer config.ClosePubSub()
	if *migrate {
		models.MigrateTable()
	}

	engine := workflow.NewSummaryEngine(db, logger)

	var (
		result interface{}
		err    error
	)
	switch *job {
	case jobMetricInsertMissing:
		result, err = engine.MetricBatch.CalculateAndInsertMissingAllQuarters(ctx, models.TriggerTypeManual)
	case jobMetricRecalculate:
		if *quarterID > 0 {
			result, err = engine.MetricBatch.RecalculateQuarter(ctx, models.TriggerTypeManual, *quarterID)
		} else {
			result, err = engine.MetricBatch.RecalculateAllQuarters(ctx, models.TriggerTypeManual)
		}
	case jobRisk:
		size := *pageSize
		if size <= 0 {
			size = config.RiskScorePageSize()
		}
		result, err = engine.RiskBatch.RunWithPageSize(ctx, models.TriggerTypeManual, size)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", *job, err)
		os.Exit(1)
	}
}
