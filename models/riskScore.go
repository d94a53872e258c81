package models

import (
	"github.com/shopspring/decimal"
)

// RiskScoreScale is the scale of risk_score and risk_metrics_avg.
const RiskScoreScale int32 = 2

// RiskScoreResult is the evaluation of one company/quarter/report version.
// Score and Avg hold the same value today; they are separate columns so a
// weighted score can diverge from the plain average later.
type RiskScoreResult struct {
	Score decimal.NullDecimal `json:"score"`
	Level RiskLevel           `json:"level"`
	Count int                 `json:"count"`
	Avg   decimal.NullDecimal `json:"avg"`
}

// EvaluateRiskScore averages risk-indicator values and classifies the average.
// No values yields a null average and UNDEFINED.
func EvaluateRiskScore(values []decimal.Decimal, cautionThreshold, dangerThreshold decimal.Decimal) RiskScoreResult {
	result := RiskScoreResult{Count: len(values)}
	if len(values) > 0 {
		avg := decimal.Sum(values[0], values[1:]...).DivRound(decimal.NewFromInt(int64(len(values))), RiskScoreScale)
		result.Avg = validDecimal(avg)
	}
	result.Score = result.Avg
	result.Level = ClassifyRiskLevel(result.Avg, cautionThreshold, dangerThreshold)
	return result
}

// ClassifyRiskLevel checks in order: null, danger, caution, safe.
func ClassifyRiskLevel(avg decimal.NullDecimal, cautionThreshold, dangerThreshold decimal.Decimal) RiskLevel {
	switch {
	case !avg.Valid:
		return RiskLevelUndefined
	case avg.Decimal.GreaterThanOrEqual(dangerThreshold):
		return RiskLevelDanger
	case avg.Decimal.GreaterThanOrEqual(cautionThreshold):
		return RiskLevelCaution
	default:
		return RiskLevelSafe
	}
}
