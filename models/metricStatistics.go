package models

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

const (
	// MetricAverageScale is the scale of every stored metric statistic.
	MetricAverageScale int32 = 4

	varianceScale int32 = 10
	sqrtPrecision int32 = 16
)

var decimalTwo = decimal.NewFromInt(2)

// MetricStatistics is the cross-company baseline of one metric in one quarter.
// A zero Count leaves every statistic null: no data, not an error.
type MetricStatistics struct {
	MetricId int                 `json:"metric_id"`
	Avg      decimal.NullDecimal `json:"avg"`
	Median   decimal.NullDecimal `json:"median"`
	Min      decimal.NullDecimal `json:"min"`
	Max      decimal.NullDecimal `json:"max"`
	Stddev   decimal.NullDecimal `json:"stddev"`
	Count    int                 `json:"count"`
}

// CalculateMetricStatistics computes avg, median, min, max and population stddev.
// Every boundary rounds half away from zero to MetricAverageScale.
func CalculateMetricStatistics(metricId int, values []decimal.Decimal) MetricStatistics {
	stats := MetricStatistics{MetricId: metricId, Count: len(values)}
	if len(values) == 0 {
		return stats
	}

	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LessThan(sorted[j])
	})

	n := len(sorted)
	count := decimal.NewFromInt(int64(n))
	avg := decimal.Sum(sorted[0], sorted[1:]...).DivRound(count, MetricAverageScale)

	var median decimal.Decimal
	if n%2 == 1 {
		median = sorted[n/2].Round(MetricAverageScale)
	} else {
		median = sorted[n/2-1].Add(sorted[n/2]).DivRound(decimalTwo, MetricAverageScale)
	}

	stddev := decimal.Zero
	if n > 1 {
		sumSquares := decimal.Zero
		for _, v := range sorted {
			diff := v.Sub(avg)
			sumSquares = sumSquares.Add(diff.Mul(diff))
		}
		variance := sumSquares.DivRound(count, varianceScale)
		stddev = sqrtDecimal(variance, sqrtPrecision)
	}

	stats.Avg = validDecimal(avg)
	stats.Median = validDecimal(median)
	stats.Min = validDecimal(sorted[0].Round(MetricAverageScale))
	stats.Max = validDecimal(sorted[n-1].Round(MetricAverageScale))
	stats.Stddev = validDecimal(stddev.Round(MetricAverageScale))
	return stats
}

// sqrtDecimal refines a float64 seed with Newton's method so the result does not
// inherit binary rounding at the scales we store.
func sqrtDecimal(v decimal.Decimal, precision int32) decimal.Decimal {
	if v.Sign() <= 0 {
		return decimal.Zero
	}
	x := sqrtSeed(v)
	working := precision + 4
	for i := 0; i < 50; i++ {
		next := x.Add(v.DivRound(x, working)).DivRound(decimalTwo, working)
		if next.Sign() <= 0 {
			// below the working precision
			return decimal.Zero
		}
		if next.Equal(x) {
			break
		}
		x = next
	}
	return x.Round(precision)
}

// sqrtSeed falls back to a power of ten when v is outside float64 range.
func sqrtSeed(v decimal.Decimal) decimal.Decimal {
	f, _ := v.Float64()
	if !math.IsInf(f, 0) && !math.IsNaN(f) && f > 0 {
		if seed := decimal.NewFromFloat(math.Sqrt(f)); seed.Sign() > 0 {
			return seed
		}
	}
	digits := v.Exponent() + int32(len(v.Coefficient().String()))
	return decimal.New(1, digits/2)
}

func validDecimal(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
