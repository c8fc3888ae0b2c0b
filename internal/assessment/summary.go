package assessment

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const snippetLimit = 120

// PendingInjuryType is shown for records still awaiting analysis.
const PendingInjuryType = "Pending analysis"

// Summary is a list row.
type Summary struct {
	ID                   string
	Date                 time.Time
	PatientIdentifier    string
	InjuryType           string
	KeySymptomsSnippet   string
	SeverityScore        int
	RecommendationStatus RecommendationStatus
	LastUpdated          time.Time
}

// Summarize derives the list row for a record.
func Summarize(a Assessment) Summary {
	summary := Summary{
		ID:                   a.ID,
		Date:                 a.CreatedAt,
		PatientIdentifier:    a.PatientName,
		InjuryType:           a.PredictedInjuryLabel,
		KeySymptomsSnippet:   Snippet(a.SymptomDescription, snippetLimit),
		RecommendationStatus: a.RecommendationStatus,
		LastUpdated:          a.UpdatedAt,
	}
	if summary.InjuryType == "" {
		summary.InjuryType = PendingInjuryType
	}
	if a.SeverityScore != nil {
		summary.SeverityScore = *a.SeverityScore
	}
	if summary.LastUpdated.IsZero() {
		summary.LastUpdated = a.CreatedAt
	}
	return summary
}

// SortNewestFirst orders records by creation time, newest first. Ties fall
// back to the id so the order is stable.
func SortNewestFirst(records []Assessment) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}

// Snippet shortens text to at most limit runes, cutting at a word boundary
// when possible.
func Snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:limit])
	if idx := strings.LastIndex(cut, " "); idx > limit/2 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,.;:") + "..."
}
