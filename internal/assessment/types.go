package assessment

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RecommendationStatus is the urgency bucket produced by severity analysis.
type RecommendationStatus string

const (
	StatusMild     RecommendationStatus = "mild"
	StatusModerate RecommendationStatus = "moderate"
	StatusSevere   RecommendationStatus = "severe"
	StatusCritical RecommendationStatus = "critical"
)

// Valid reports whether s is one of the known statuses.
func (s RecommendationStatus) Valid() bool {
	switch s {
	case StatusMild, StatusModerate, StatusSevere, StatusCritical:
		return true
	}
	return false
}

// IsHighRisk is true for severe and critical.
func (s RecommendationStatus) IsHighRisk() bool {
	return s == StatusSevere || s == StatusCritical
}

// Label returns the display form, e.g. "Severe".
func (s RecommendationStatus) Label() string {
	if s == "" {
		return "Pending"
	}
	return titleCase(string(s))
}

// Role is the account type stored alongside an identity.
type Role string

const (
	RoleHealthcareWorker Role = "healthcare_worker"
	RolePatient          Role = "patient"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleHealthcareWorker || r == RolePatient
}

// Label returns the display form, e.g. "Healthcare Worker".
func (r Role) Label() string {
	if r == "" {
		return "Unknown"
	}
	return titleCase(strings.ReplaceAll(string(r), "_", " "))
}

// Accepted patient sex values.
const (
	SexMale           = "Male"
	SexFemale         = "Female"
	SexOther          = "Other"
	SexPreferNotToSay = "Prefer not to say"
)

var sexValues = []string{SexMale, SexFemale, SexOther, SexPreferNotToSay}

// Diagnosis is one candidate condition with the model's confidence.
type Diagnosis struct {
	ID           string
	AssessmentID string
	Name         string
	Confidence   float64
	Description  string
	CreatedAt    time.Time
}

// Assessment is the full stored record.
type Assessment struct {
	ID                 string
	UserID             string
	SymptomDescription string

	ImageFileName    string
	ImageFileType    string
	ImageURL         string
	ImageStoragePath string

	PatientName        string
	PatientAge         *int
	PatientSex         string
	SymptomDuration    string
	PainLevel          string
	AffectedBodyParts  string
	HasFever           bool
	TemperatureCelsius *float64

	KnownAllergies        string
	CurrentMedications    string
	RecentTravel          string
	PreExistingConditions string

	PredictedInjuryLabel     string
	InjuryDescriptionSummary string
	SeverityScore            *int
	SeverityReason           string
	RecommendationStatus     RecommendationStatus
	TriageRecommendation     string
	Diagnoses                []Diagnosis

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Completed reports whether the AI outcome has been attached.
func (a Assessment) Completed() bool {
	return strings.TrimSpace(a.PredictedInjuryLabel) != ""
}

// HighRisk reports whether a completed record landed in a high-risk bucket.
func (a Assessment) HighRisk() bool {
	return a.Completed() && a.RecommendationStatus.IsHighRisk()
}

// User is an authenticated identity with its role.
type User struct {
	ID    string
	Email string
	Role  Role
}

func titleCase(value string) string {
	return cases.Title(language.Und).String(value)
}
