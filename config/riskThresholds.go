package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/finrisk_backend/utils"
)

const (
	RedisKeyCautionThreshold = "config:risk:caution_threshold"
	RedisKeyDangerThreshold  = "config:risk:danger_threshold"
)

var (
	DefaultCautionThreshold = decimal.NewFromInt(40)
	DefaultDangerThreshold  = decimal.NewFromInt(70)
)

// RiskThresholds are the average-score boundaries for CAUTION and DANGER.
type RiskThresholds struct {
	Caution decimal.Decimal `json:"caution_threshold"`
	Danger  decimal.Decimal `json:"danger_threshold"`
}

// GetRiskThresholds resolves thresholds on every call so operators can retune them
// without a restart. Precedence: Redis override, env, default.
//
// Set via env:
// - RISK_CAUTION_THRESHOLD=40
// - RISK_DANGER_THRESHOLD=70
//
// or at runtime:
// - SET config:risk:caution_threshold 45
func GetRiskThresholds(ctx context.Context) RiskThresholds {
	t := RiskThresholds{
		Caution: resolveThreshold(ctx, RedisKeyCautionThreshold, "RISK_CAUTION_THRESHOLD", DefaultCautionThreshold),
		Danger:  resolveThreshold(ctx, RedisKeyDangerThreshold, "RISK_DANGER_THRESHOLD", DefaultDangerThreshold),
	}
	if t.Caution.GreaterThan(t.Danger) {
		GetLogger().WithFields(logrus.Fields{
			"module":            "config",
			"caution_threshold": t.Caution.String(),
			"danger_threshold":  t.Danger.String(),
		}).Warn("caution threshold above danger threshold; using defaults")
		return RiskThresholds{Caution: DefaultCautionThreshold, Danger: DefaultDangerThreshold}
	}
	return t
}

var ErrInvalidRiskThresholds = errors.New("invalid risk thresholds")

// SetRiskThresholdOverride stores a runtime override; an empty value removes it.
func SetRiskThresholdOverride(ctx context.Context, redisKey string, value string) error {
	if strings.TrimSpace(value) == "" {
		return RemoveRedisKey(ctx, redisKey)
	}
	if _, err := utils.ParseDecimal(value); err != nil {
		return err
	}
	return SetRedisValue(ctx, redisKey, strings.TrimSpace(value), 0)
}

// PlanRiskThresholds returns the pair that would be in effect after the given overrides.
// nil keeps the current value and "" clears the override. Errors wrap ErrInvalidRiskThresholds.
func PlanRiskThresholds(ctx context.Context, caution, danger *string) (RiskThresholds, error) {
	c, err := plannedThreshold(ctx, caution, RedisKeyCautionThreshold, "RISK_CAUTION_THRESHOLD", DefaultCautionThreshold)
	if err != nil {
		return RiskThresholds{}, fmt.Errorf("%w: caution_threshold: %v", ErrInvalidRiskThresholds, err)
	}
	d, err := plannedThreshold(ctx, danger, RedisKeyDangerThreshold, "RISK_DANGER_THRESHOLD", DefaultDangerThreshold)
	if err != nil {
		return RiskThresholds{}, fmt.Errorf("%w: danger_threshold: %v", ErrInvalidRiskThresholds, err)
	}
	if c.GreaterThan(d) {
		return RiskThresholds{}, fmt.Errorf("%w: caution %s above danger %s", ErrInvalidRiskThresholds, c, d)
	}
	return RiskThresholds{Caution: c, Danger: d}, nil
}

// ApplyRiskThresholdOverrides validates the resulting pair first, then writes both
// overrides in one MULTI so a failure leaves neither applied.
func ApplyRiskThresholdOverrides(ctx context.Context, caution, danger *string) (RiskThresholds, error) {
	planned, err := PlanRiskThresholds(ctx, caution, danger)
	if err != nil {
		return RiskThresholds{}, err
	}
	client := GetRedisDB()
	if client == nil {
		return planned, nil
	}
	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		queueOverride(ctx, pipe, RedisKeyCautionThreshold, caution)
		queueOverride(ctx, pipe, RedisKeyDangerThreshold, danger)
		return nil
	})
	if err != nil {
		return RiskThresholds{}, fmt.Errorf("store risk thresholds: %w", err)
	}
	return planned, nil
}

func queueOverride(ctx context.Context, pipe redis.Pipeliner, redisKey string, value *string) {
	switch {
	case value == nil:
	case strings.TrimSpace(*value) == "":
		pipe.Del(ctx, redisKey)
	default:
		pipe.Set(ctx, redisKey, strings.TrimSpace(*value), 0)
	}
}

func plannedThreshold(ctx context.Context, value *string, redisKey, envKey string, def decimal.Decimal) (decimal.Decimal, error) {
	if value == nil {
		return resolveThreshold(ctx, redisKey, envKey, def), nil
	}
	if strings.TrimSpace(*value) == "" {
		return envThreshold(envKey, def), nil
	}
	return utils.ParseDecimal(*value)
}

func resolveThreshold(ctx context.Context, redisKey string, envKey string, def decimal.Decimal) decimal.Decimal {
	logger := GetLogger()

	raw, ok, err := GetRedisValue(ctx, redisKey)
	if err != nil {
		LogError(logger, "config", "resolveThreshold", "read redis override", redisKey, err)
	} else if ok {
		if d, perr := utils.ParseDecimal(raw); perr == nil {
			return d
		} else {
			LogError(logger, "config", "resolveThreshold", "parse redis override", raw, perr)
		}
	}
	return envThreshold(envKey, def)
}

func envThreshold(envKey string, def decimal.Decimal) decimal.Decimal {
	logger := GetLogger()
	if raw := strings.TrimSpace(os.Getenv(envKey)); raw != "" {
		if d, perr := utils.ParseDecimal(raw); perr == nil {
			return d
		} else {
			LogError(logger, "config", "envThreshold", "parse env "+envKey, raw, perr)
		}
	}
	return def
}
