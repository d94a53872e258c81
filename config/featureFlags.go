package config

import "time"

const (
	DefaultMetricAverageBatchCron = "0 0 2 * * *"
	DefaultRiskScoreBatchCron     = "0 30 2 * * *"
	DefaultRiskScorePageSize      = 500
)

// SchedulerEnabled turns the in-process cron triggers on or off.
// Disable it on every instance but one when running more than one replica.
//
// Set via env:
// - SCHEDULER_ENABLED=false
func SchedulerEnabled() bool {
	return BoolFromEnv("SCHEDULER_ENABLED", true)
}

// MetricAverageBatchCron is a six-field (seconds first) cron spec.
//
// Set via env:
// - METRIC_AVERAGE_BATCH_CRON="0 0 2 * * *"
func MetricAverageBatchCron() string {
	return StringFromEnv("METRIC_AVERAGE_BATCH_CRON", DefaultMetricAverageBatchCron)
}

// RiskScoreBatchCron is a six-field (seconds first) cron spec.
//
// Set via env:
// - RISK_SCORE_BATCH_CRON="0 30 2 * * *"
func RiskScoreBatchCron() string {
	return StringFromEnv("RISK_SCORE_BATCH_CRON", DefaultRiskScoreBatchCron)
}

func RiskScorePageSize() int {
	n := IntFromEnv("RISK_SCORE_PAGE_SIZE", DefaultRiskScorePageSize)
	if n <= 0 {
		return DefaultRiskScorePageSize
	}
	return n
}

// BatchLockTTL bounds how long a crashed instance can hold a batch lock.
func BatchLockTTL() time.Duration {
	n := IntFromEnv("BATCH_LOCK_TTL_SECONDS", 1800)
	if n <= 0 {
		n = 1800
	}
	return time.Duration(n) * time.Second
}
