package assessment

import (
	"math"
	"time"
)

// Stats are the dashboard counters.
type Stats struct {
	TotalAssessments int
	HighRiskCount    int
	CompletedToday   int
	PendingReview    int
	HighRiskChange   int
	TotalChange      float64
}

// ComputeStats derives the dashboard counters relative to now. Completed
// means the AI outcome is attached; high risk counts completed records in the
// severe or critical buckets. TotalChange is a percentage rounded to one
// decimal and is zero when there is no completed record from the past month.
func ComputeStats(records []Assessment, now time.Time) Stats {
	stats := Stats{TotalAssessments: len(records)}
	if len(records) == 0 {
		return stats
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	lastWeek := now.AddDate(0, 0, -7)
	lastMonth := now.AddDate(0, -1, 0)

	completed := 0
	lastWeekHighRisk := 0
	lastMonthTotal := 0
	for _, record := range records {
		if !record.Completed() {
			continue
		}
		completed++
		created := record.CreatedAt
		if !created.Before(today) {
			stats.CompletedToday++
		}
		if !created.Before(lastMonth) {
			lastMonthTotal++
		}
		if record.RecommendationStatus.IsHighRisk() {
			stats.HighRiskCount++
			if !created.Before(lastWeek) {
				lastWeekHighRisk++
			}
		}
	}

	stats.PendingReview = len(records) - completed
	stats.HighRiskChange = stats.HighRiskCount - lastWeekHighRisk
	if lastMonthTotal > 0 {
		change := float64(stats.TotalAssessments-lastMonthTotal) / float64(lastMonthTotal) * 100
		stats.TotalChange = math.Round(change*10) / 10
	}
	return stats
}
