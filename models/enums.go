package models

import (
	"errors"
	"strings"
)

type MetricValueType string

const (
	MetricValueTypeActual   MetricValueType = "ACTUAL"
	MetricValueTypeForecast MetricValueType = "FORECAST"
)

type RiskLevel string

const (
	RiskLevelSafe      RiskLevel = "SAFE"
	RiskLevelCaution   RiskLevel = "CAUTION"
	RiskLevelDanger    RiskLevel = "DANGER"
	RiskLevelUndefined RiskLevel = "UNDEFINED"
)

func (l RiskLevel) IsValid() bool {
	switch l {
	case RiskLevelSafe, RiskLevelCaution, RiskLevelDanger, RiskLevelUndefined:
		return true
	}
	return false
}

type TriggerType string

const (
	TriggerTypeSchedule TriggerType = "SCHEDULE"
	TriggerTypeManual   TriggerType = "MANUAL"
)

func (t TriggerType) IsValid() bool {
	return t == TriggerTypeSchedule || t == TriggerTypeManual
}

// ParseTriggerType is case-insensitive.
func ParseTriggerType(s string) (TriggerType, error) {
	t := TriggerType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", errors.New("invalid trigger type")
	}
	return t, nil
}

type BatchJobName string

const (
	BatchJobMetricAverageInsertMissing BatchJobName = "METRIC_AVERAGE_INSERT_MISSING"
	BatchJobMetricAverageRecalculate   BatchJobName = "METRIC_AVERAGE_RECALCULATE"
	BatchJobRiskScore                  BatchJobName = "RISK_SCORE"
)

type BatchExecutionStatus string

const (
	BatchExecutionStatusRunning   BatchExecutionStatus = "RUNNING"
	BatchExecutionStatusSucceeded BatchExecutionStatus = "SUCCEEDED"
	BatchExecutionStatusFailed    BatchExecutionStatus = "FAILED"
)
