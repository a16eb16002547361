package airquality

import (
	"math"
	"strings"
	"time"
)

// Trend classifies the direction of a measurement series.
type Trend string

const (
	TrendIncreasing Trend = "INCREASING"
	TrendDecreasing Trend = "DECREASING"
	TrendStable     Trend = "STABLE"
	TrendUnknown    Trend = "UNKNOWN"
)

const (
	// TrendThreshold is the slope, in value units per second, above which a
	// series counts as increasing (and below whose negation it counts as decreasing).
	TrendThreshold = 1e-5

	// degenerateDenominator bounds the regression denominator under which all
	// timestamps are treated as identical.
	degenerateDenominator = 1e-9
)

// AnalysisResult summarizes a measurement series. MinVal, MaxVal and Average
// are nil when the series had no valid readings.
type AnalysisResult struct {
	MinVal     *MeasurementValue
	MaxVal     *MeasurementValue
	Average    *float64
	Trend      Trend
	TrendSlope float64

	// ValidCount is the number of readings that took part in the analysis.
	ValidCount int
}

// FilterValid returns the readings that have a timestamp and a value, in input order.
func FilterValid(values []MeasurementValue) []MeasurementValue {
	valid := make([]MeasurementValue, 0, len(values))
	for _, v := range values {
		if v.Valid() {
			valid = append(valid, v)
		}
	}
	return valid
}

// FilterByDateRange returns the valid readings whose timestamp lies within
// [from, to], both ends inclusive.
func FilterByDateRange(values []MeasurementValue, from, to time.Time) []MeasurementValue {
	var filtered []MeasurementValue
	for _, v := range values {
		if !v.Valid() || v.Date.Before(from) || v.Date.After(to) {
			continue
		}
		filtered = append(filtered, v)
	}
	return filtered
}

// Analyze computes min, max, mean and the least-squares trend of a series.
// Invalid readings are ignored. The regression uses seconds elapsed since the
// first valid reading as X, so irregular spacing and unsorted input are handled.
func Analyze(values []MeasurementValue) AnalysisResult {
	result := AnalysisResult{Trend: TrendUnknown}

	valid := FilterValid(values)
	if len(valid) == 0 {
		return result
	}
	result.ValidCount = len(valid)

	minIdx, maxIdx := 0, 0
	sum := 0.0
	for i, v := range valid {
		if v.Value < valid[minIdx].Value {
			minIdx = i
		}
		if v.Value > valid[maxIdx].Value {
			maxIdx = i
		}
		sum += v.Value
	}
	minVal, maxVal := valid[minIdx], valid[maxIdx]
	avg := sum / float64(len(valid))
	result.MinVal = &minVal
	result.MaxVal = &maxVal
	result.Average = &avg

	if len(valid) < 2 {
		return result
	}

	slope, ok := regressionSlope(valid)
	if !ok {
		return result
	}
	result.TrendSlope = slope
	result.Trend = classifyTrend(slope)
	return result
}

// regressionSlope returns the ordinary least-squares slope of value over
// elapsed seconds. ok is false when the timestamps do not spread.
func regressionSlope(valid []MeasurementValue) (slope float64, ok bool) {
	n := float64(len(valid))
	first := valid[0].Date.Unix()

	var sumX, sumY, sumXY, sumX2 float64
	for _, v := range valid {
		x := float64(v.Date.Unix() - first)
		y := v.Value
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	denominator := n*sumX2 - sumX*sumX
	if math.Abs(denominator) <= degenerateDenominator {
		return 0, false
	}
	return (n*sumXY - sumX*sumY) / denominator, true
}

func classifyTrend(slope float64) Trend {
	switch {
	case slope > TrendThreshold:
		return TrendIncreasing
	case slope < -TrendThreshold:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// FilterStationsByCity returns the stations whose city name contains text,
// case-insensitively. Empty text matches every station.
func FilterStationsByCity(stations []Station, text string) []Station {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return stations
	}

	var filtered []Station
	for _, s := range stations {
		if strings.Contains(strings.ToLower(s.City.Name), needle) {
			filtered = append(filtered, s)
		}
	}
	return filtered
}
