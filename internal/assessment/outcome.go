package assessment

import (
	"fmt"
	"strings"

	"triage/internal/services"
)

// Outcome is the AI analysis attached to a record once processing finishes.
type Outcome struct {
	InjuryType           string
	Description          string
	SeverityScore        int
	SeverityReason       string
	TriageRecommendation string
	RecommendationStatus RecommendationStatus
	Diagnoses            []Diagnosis
}

// Validate enforces the score range, the status enumeration and confidence
// bounds.
func (o Outcome) Validate() error {
	var problems []string
	if strings.TrimSpace(o.InjuryType) == "" {
		problems = append(problems, "injury type is required")
	}
	if o.SeverityScore < 1 || o.SeverityScore > 5 {
		problems = append(problems, "severity score must be between 1 and 5")
	}
	if !o.RecommendationStatus.Valid() {
		problems = append(problems, fmt.Sprintf("unknown recommendation status %q", o.RecommendationStatus))
	}
	for _, d := range o.Diagnoses {
		if strings.TrimSpace(d.Name) == "" {
			problems = append(problems, "diagnosis name is required")
		}
		if d.Confidence < 0 || d.Confidence > 1 {
			problems = append(problems, fmt.Sprintf("diagnosis %q confidence must be between 0 and 1", d.Name))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return services.Wrap(services.ErrValidation, "assessment", "validate outcome", strings.Join(problems, "; "), nil)
}
