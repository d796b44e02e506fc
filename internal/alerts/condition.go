package alerts

import (
	"math"
	"strings"

	"custom-alerts-service/internal/models"
)

// MetricTriggers decides whether a metric value satisfies a condition.
// Absolute conditions compare value against threshold and ignore baseline.
// Relative conditions compare value against baseline; for the percentage
// variants threshold is the minimum percent change. A zero baseline makes the
// percentage conditions never trigger instead of dividing by zero.
// Comparisons are exact, no epsilon: "less than 5" excludes 5.
func MetricTriggers(cond models.MetricCondition, value, baseline, threshold float64) bool {
	switch cond {
	case models.MetricGreaterThan:
		return value > threshold
	case models.MetricLessThan:
		return value < threshold
	case models.MetricMatches:
		return value == threshold
	case models.MetricIncreased:
		return value > baseline
	case models.MetricDecreased:
		return value < baseline
	case models.MetricChanged:
		return value != baseline
	case models.MetricIncreasedMoreThan:
		if baseline == 0 {
			return false
		}
		return percentChange(value, baseline) > threshold
	case models.MetricDecreasedMoreThan:
		if baseline == 0 {
			return false
		}
		return -percentChange(value, baseline) > threshold
	default:
		return false
	}
}

// percentChange is (new - old) / abs(old) * 100. Callers guard old == 0.
func percentChange(value, baseline float64) float64 {
	return (value - baseline) / math.Abs(baseline) * 100
}

// ReportMatches decides whether a report row's dimension label satisfies a
// report condition. matches_any holds for any existing row; the caller is
// responsible for the row-existence check. All comparisons are case
// sensitive.
func ReportMatches(cond models.ReportCondition, label, expected string) bool {
	switch cond {
	case models.ReportMatchesAny:
		return true
	case models.ReportMatchesExactly:
		return label == expected
	case models.ReportContains:
		return strings.Contains(label, expected)
	case models.ReportDoesNotContain:
		return !strings.Contains(label, expected)
	default:
		return false
	}
}
