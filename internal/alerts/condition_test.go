package alerts

import (
	"testing"

	"custom-alerts-service/internal/models"
)

func TestMetricTriggersAbsolute(t *testing.T) {
	tests := []struct {
		name      string
		cond      models.MetricCondition
		value     float64
		threshold float64
		want      bool
	}{
		{"greater_than above", models.MetricGreaterThan, 10, 5, true},
		{"greater_than equal", models.MetricGreaterThan, 5, 5, false},
		{"greater_than below", models.MetricGreaterThan, 3, 5, false},
		{"less_than below", models.MetricLessThan, 3, 5, true},
		{"less_than equal excludes boundary", models.MetricLessThan, 5, 5, false},
		{"less_than above", models.MetricLessThan, 7, 5, false},
		{"matches equal", models.MetricMatches, 5, 5, true},
		{"matches not equal", models.MetricMatches, 5.0001, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// baseline must be ignored for absolute conditions
			got := MetricTriggers(tt.cond, tt.value, 9999, tt.threshold)
			if got != tt.want {
				t.Errorf("MetricTriggers(%s, %g, threshold=%g) = %v, want %v",
					tt.cond, tt.value, tt.threshold, got, tt.want)
			}
		})
	}
}

func TestMetricTriggersRelative(t *testing.T) {
	tests := []struct {
		name      string
		cond      models.MetricCondition
		value     float64
		baseline  float64
		threshold float64
		want      bool
	}{
		{"increased", models.MetricIncreased, 10, 5, 0, true},
		{"increased flat", models.MetricIncreased, 5, 5, 0, false},
		{"decreased", models.MetricDecreased, 3, 5, 0, true},
		{"decreased flat", models.MetricDecreased, 5, 5, 0, false},
		{"changed up", models.MetricChanged, 6, 5, 0, true},
		{"changed down", models.MetricChanged, 4, 5, 0, true},
		{"changed flat", models.MetricChanged, 5, 5, 0, false},
		{"increased_more_than above pct", models.MetricIncreasedMoreThan, 130, 100, 20, true},
		{"increased_more_than exact pct excluded", models.MetricIncreasedMoreThan, 120, 100, 20, false},
		{"increased_more_than below pct", models.MetricIncreasedMoreThan, 110, 100, 20, false},
		{"increased_more_than negative baseline", models.MetricIncreasedMoreThan, 10, -100, 20, true},
		{"decreased_more_than above pct", models.MetricDecreasedMoreThan, 70, 100, 20, true},
		{"decreased_more_than below pct", models.MetricDecreasedMoreThan, 90, 100, 20, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MetricTriggers(tt.cond, tt.value, tt.baseline, tt.threshold)
			if got != tt.want {
				t.Errorf("MetricTriggers(%s, %g, baseline=%g, threshold=%g) = %v, want %v",
					tt.cond, tt.value, tt.baseline, tt.threshold, got, tt.want)
			}
		})
	}
}

func TestMetricTriggersZeroBaselinePercentageNeverFires(t *testing.T) {
	for _, cond := range []models.MetricCondition{models.MetricIncreasedMoreThan, models.MetricDecreasedMoreThan} {
		for _, value := range []float64{-100, 0, 0.1, 1, 1e9} {
			if MetricTriggers(cond, value, 0, 1) {
				t.Errorf("MetricTriggers(%s, %g, baseline=0) fired, want never", cond, value)
			}
			// even a negative threshold must not let it through
			if MetricTriggers(cond, value, 0, -1) {
				t.Errorf("MetricTriggers(%s, %g, baseline=0, threshold=-1) fired, want never", cond, value)
			}
		}
	}
}

func TestReportMatches(t *testing.T) {
	tests := []struct {
		name     string
		cond     models.ReportCondition
		label    string
		expected string
		want     bool
	}{
		{"matches_exactly equal", models.ReportMatchesExactly, "en", "en", true},
		{"matches_exactly case sensitive", models.ReportMatchesExactly, "En", "en", false},
		{"contains substring", models.ReportContains, "en-gb", "en", true},
		{"contains missing", models.ReportContains, "de", "en", false},
		{"does_not_contain missing", models.ReportDoesNotContain, "de", "en", true},
		{"does_not_contain present", models.ReportDoesNotContain, "en-gb", "en", false},
		{"unknown condition", models.ReportCondition("bogus"), "en", "en", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReportMatches(tt.cond, tt.label, tt.expected)
			if got != tt.want {
				t.Errorf("ReportMatches(%s, %q, %q) = %v, want %v",
					tt.cond, tt.label, tt.expected, got, tt.want)
			}
		})
	}
}

func TestReportMatchesAnyIgnoresLabel(t *testing.T) {
	for _, label := range []string{"", "en", "anything at all", "名前"} {
		if !ReportMatches(models.ReportMatchesAny, label, "whatever") {
			t.Errorf("ReportMatches(matches_any, %q) = false, want true for any existing row", label)
		}
	}
}
