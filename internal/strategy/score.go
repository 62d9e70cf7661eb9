package strategy

import (
	"math"
	"time"

	"taskdog/internal/allocation"
)

// Score ranks a Result for the meta-heuristic strategies. Comparison
// is lexicographic across the four fields in the order they're
// declared: fewer failures beats fewer overloaded days beats smaller
// deadline slack variance beats lower total span. Implementers may
// refine the scoring function but must preserve this ordering of
// objectives.
type Score struct {
	Failures              int
	OverloadedDays        int
	DeadlineSlackVariance float64
	TotalSpanDays         float64
}

// Less reports whether s ranks strictly better than other.
func (s Score) Less(other Score) bool {
	if s.Failures != other.Failures {
		return s.Failures < other.Failures
	}
	if s.OverloadedDays != other.OverloadedDays {
		return s.OverloadedDays < other.OverloadedDays
	}
	if math.Abs(s.DeadlineSlackVariance-other.DeadlineSlackVariance) > 1e-9 {
		return s.DeadlineSlackVariance < other.DeadlineSlackVariance
	}
	return s.TotalSpanDays < other.TotalSpanDays
}

// score computes a Score for result under params.
func score(result Result, params allocation.Params) Score {
	s := Score{Failures: len(result.Failed)}

	for _, h := range result.DailyAllocations {
		if h > params.MaxHoursPerDay+1e-9 {
			s.OverloadedDays++
		}
	}

	var slacks []float64
	var earliest, latest *time.Time
	for _, t := range result.Tasks {
		if t.Deadline != nil && t.PlannedEnd != nil {
			slack := t.Deadline.Sub(*t.PlannedEnd).Hours()
			slacks = append(slacks, slack)
		}
		if t.PlannedStart != nil {
			if earliest == nil || t.PlannedStart.Before(*earliest) {
				v := *t.PlannedStart
				earliest = &v
			}
		}
		if t.PlannedEnd != nil {
			if latest == nil || t.PlannedEnd.After(*latest) {
				v := *t.PlannedEnd
				latest = &v
			}
		}
	}
	s.DeadlineSlackVariance = variance(slacks)

	if earliest != nil && latest != nil {
		s.TotalSpanDays = latest.Sub(*earliest).Hours() / 24.0
	}

	return s
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(len(values))
}
