package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func decimals(t *testing.T, values ...string) []decimal.Decimal {
	t.Helper()
	out := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		d, err := decimal.NewFromString(v)
		if err != nil {
			t.Fatalf("bad decimal %q: %v", v, err)
		}
		out = append(out, d)
	}
	return out
}

func assertNullDecimal(t *testing.T, name string, got decimal.NullDecimal, want string) {
	t.Helper()
	if !got.Valid {
		t.Fatalf("%s: expected %s, got null", name, want)
	}
	if got.Decimal.StringFixed(4) != want {
		t.Fatalf("%s: expected %s, got %s", name, want, got.Decimal.StringFixed(4))
	}
}

func TestCalculateMetricStatistics_OddCount(t *testing.T) {
	stats := CalculateMetricStatistics(7, decimals(t, "30", "10", "20"))

	if stats.MetricId != 7 || stats.Count != 3 {
		t.Fatalf("unexpected identity/count: %+v", stats)
	}
	assertNullDecimal(t, "avg", stats.Avg, "20.0000")
	assertNullDecimal(t, "median", stats.Median, "20.0000")
	assertNullDecimal(t, "min", stats.Min, "10.0000")
	assertNullDecimal(t, "max", stats.Max, "30.0000")
	// sqrt(200/3) = 8.16496...
	assertNullDecimal(t, "stddev", stats.Stddev, "8.1650")
}

func TestCalculateMetricStatistics_EvenCountMedian(t *testing.T) {
	stats := CalculateMetricStatistics(1, decimals(t, "40", "10", "30", "20"))

	assertNullDecimal(t, "avg", stats.Avg, "25.0000")
	assertNullDecimal(t, "median", stats.Median, "25.0000")
	// sqrt(500/4) = 11.18033...
	assertNullDecimal(t, "stddev", stats.Stddev, "11.1803")
}

func TestCalculateMetricStatistics_Empty(t *testing.T) {
	stats := CalculateMetricStatistics(3, nil)

	if stats.Count != 0 {
		t.Fatalf("expected count 0, got %d", stats.Count)
	}
	for name, v := range map[string]decimal.NullDecimal{
		"avg": stats.Avg, "median": stats.Median, "min": stats.Min, "max": stats.Max, "stddev": stats.Stddev,
	} {
		if v.Valid {
			t.Fatalf("%s: expected null, got %s", name, v.Decimal.String())
		}
	}
}

func TestCalculateMetricStatistics_SingleValue(t *testing.T) {
	stats := CalculateMetricStatistics(1, decimals(t, "42.5"))

	if stats.Count != 1 {
		t.Fatalf("expected count 1, got %d", stats.Count)
	}
	assertNullDecimal(t, "avg", stats.Avg, "42.5000")
	assertNullDecimal(t, "median", stats.Median, "42.5000")
	assertNullDecimal(t, "min", stats.Min, "42.5000")
	assertNullDecimal(t, "max", stats.Max, "42.5000")
	assertNullDecimal(t, "stddev", stats.Stddev, "0.0000")
}

func TestCalculateMetricStatistics_RoundsHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		name   string
		values []string
		avg    string
		median string
	}{
		{"positive half", []string{"0.0001", "0.0002"}, "0.0002", "0.0002"},
		{"negative half", []string{"-0.0001", "-0.0002"}, "-0.0002", "-0.0002"},
		{"repeating avg", []string{"1", "1", "2"}, "1.3333", "1.0000"},
		{"two thirds", []string{"1", "2", "2"}, "1.6667", "2.0000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stats := CalculateMetricStatistics(1, decimals(t, tc.values...))
			assertNullDecimal(t, "avg", stats.Avg, tc.avg)
			assertNullDecimal(t, "median", stats.Median, tc.median)
		})
	}
}

func TestCalculateMetricStatistics_DoesNotReorderInput(t *testing.T) {
	values := decimals(t, "3", "1", "2")
	CalculateMetricStatistics(1, values)
	if values[0].String() != "3" || values[1].String() != "1" || values[2].String() != "2" {
		t.Fatalf("input slice was modified: %v", values)
	}
}

func TestSqrtDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0.0000000000000000"},
		{"16", "4.0000000000000000"},
		{"2", "1.4142135623730950"},
		{"125", "11.1803398874989485"},
	}
	for _, tc := range cases {
		got := sqrtDecimal(decimal.RequireFromString(tc.in), sqrtPrecision)
		if got.StringFixed(sqrtPrecision) != tc.want {
			t.Fatalf("sqrt(%s): expected %s, got %s", tc.in, tc.want, got.StringFixed(sqrtPrecision))
		}
	}
}

func TestSqrtDecimal_OutsideFloatRange(t *testing.T) {
	huge := sqrtDecimal(decimal.New(1, 400), sqrtPrecision)
	if !huge.Equal(decimal.New(1, 200)) {
		t.Fatalf("sqrt(1e400): expected 1e200, got %s", huge.String())
	}
	root2 := sqrtDecimal(decimal.New(2, 400), 4)
	if got := root2.Shift(-200).StringFixed(6); got != "1.414214" {
		t.Fatalf("sqrt(2e400): expected 1.414214e200, got %se200", got)
	}
	tiny := sqrtDecimal(decimal.New(4, -400), sqrtPrecision)
	if !tiny.IsZero() {
		t.Fatalf("sqrt(4e-400) should round to zero, got %s", tiny.String())
	}
}

func TestCalculateMetricStatistics_HugeValues(t *testing.T) {
	stats := CalculateMetricStatistics(1, decimals(t, "1e200", "-1e200"))

	assertNullDecimal(t, "avg", stats.Avg, "0.0000")
	if !stats.Stddev.Valid || !stats.Stddev.Decimal.Equal(decimal.New(1, 200)) {
		t.Fatalf("stddev: expected 1e200, got %s", stats.Stddev.Decimal.String())
	}
}

func TestGroupSamplesByMetric(t *testing.T) {
	grouped := GroupSamplesByMetric([]MetricValueSample{
		{MetricId: 2, Value: decimal.NewFromInt(5)},
		{MetricId: 1, Value: decimal.NewFromInt(1)},
		{MetricId: 2, Value: decimal.NewFromInt(6)},
	})
	if len(grouped) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(grouped))
	}
	if len(grouped[2]) != 2 || !grouped[2][0].Equal(decimal.NewFromInt(5)) || !grouped[2][1].Equal(decimal.NewFromInt(6)) {
		t.Fatalf("unexpected metric 2 group: %v", grouped[2])
	}
}
