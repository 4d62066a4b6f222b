package insights

import "github.com/blueberrycongee/tripmux/internal/analytics"

// Trend is the direction of a metric across the recent log window.
type Trend string

const (
	TrendIncreasing       Trend = "increasing"
	TrendDecreasing       Trend = "decreasing"
	TrendStable           Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
)

// MinTrendLogs is the smallest window CalculateTrends will compare.
const MinTrendLogs = 10

// TrendReport compares the older and newer halves of the log window.
type TrendReport struct {
	ResponseTimeTrend  Trend `json:"responseTimeTrend"`
	ErrorRateTrend     Trend `json:"errorRateTrend"`
	RequestVolumeTrend Trend `json:"requestVolumeTrend"`
}

// CalculateTrends splits logs (oldest first) at the midpoint and compares
// mean duration and failure ratio of the two halves. Request volume is
// always reported stable: the window is fixed-size, so volume per half is
// not observable from it.
func CalculateTrends(logs []analytics.RequestLog) TrendReport {
	if len(logs) < MinTrendLogs {
		return TrendReport{
			ResponseTimeTrend:  TrendInsufficientData,
			ErrorRateTrend:     TrendInsufficientData,
			RequestVolumeTrend: TrendInsufficientData,
		}
	}

	mid := len(logs) / 2
	older, newer := logs[:mid], logs[mid:]

	return TrendReport{
		ResponseTimeTrend:  compare(meanDuration(older), meanDuration(newer), 1.1, 0.9),
		ErrorRateTrend:     compare(failureRatio(older), failureRatio(newer), 1.5, 0.5),
		RequestVolumeTrend: TrendStable,
	}
}

// compare is written multiplicatively so a zero baseline needs no division.
func compare(before, after, up, down float64) Trend {
	switch {
	case after > before*up:
		return TrendIncreasing
	case after < before*down:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func meanDuration(logs []analytics.RequestLog) float64 {
	var sum int64
	for _, l := range logs {
		sum += l.DurationMs
	}
	return float64(sum) / float64(len(logs))
}

func failureRatio(logs []analytics.RequestLog) float64 {
	failed := 0
	for _, l := range logs {
		if !l.Success {
			failed++
		}
	}
	return float64(failed) / float64(len(logs))
}
