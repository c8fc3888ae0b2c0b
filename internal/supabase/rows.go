package supabase

import (
	"math"
	"strings"
	"time"

	"triage/internal/assessment"
)

// assessmentRow mirrors the assessments table.
type assessmentRow struct {
	ID                       string   `json:"id"`
	UserID                   string   `json:"user_id"`
	SymptomDescription       string   `json:"symptom_description"`
	ImageFileName            *string  `json:"image_file_name"`
	ImageFileType            *string  `json:"image_file_type"`
	ImageURL                 *string  `json:"image_url"`
	ImageStoragePath         *string  `json:"image_storage_path"`
	PatientName              *string  `json:"patient_name"`
	PatientAge               *float64 `json:"patient_age"`
	PatientSex               *string  `json:"patient_sex"`
	SymptomDuration          *string  `json:"symptom_duration"`
	PainLevel                *string  `json:"pain_level"`
	AffectedBodyParts        *string  `json:"affected_body_parts"`
	HasFever                 *bool    `json:"has_fever"`
	TemperatureCelsius       *float64 `json:"temperature_celsius"`
	KnownAllergies           *string  `json:"known_allergies"`
	CurrentMedications       *string  `json:"current_medications"`
	RecentTravel             *string  `json:"recent_travel"`
	PreExistingConditions    *string  `json:"pre_existing_conditions"`
	PredictedInjuryLabel     *string  `json:"predicted_injury_label"`
	InjuryDescriptionSummary *string  `json:"injury_description_summary"`
	SeverityScore            *float64 `json:"severity_score"`
	SeverityReason           *string  `json:"severity_reason"`
	RecommendationStatus     *string  `json:"recommendation_status"`
	TriageRecommendation     *string  `json:"triage_recommendation"`
	CreatedAt                string   `json:"created_at"`
	UpdatedAt                string   `json:"updated_at"`
}

func (r assessmentRow) record() assessment.Assessment {
	return assessment.Assessment{
		ID:                       r.ID,
		UserID:                   r.UserID,
		SymptomDescription:       r.SymptomDescription,
		ImageFileName:            deref(r.ImageFileName),
		ImageFileType:            deref(r.ImageFileType),
		ImageURL:                 deref(r.ImageURL),
		ImageStoragePath:         deref(r.ImageStoragePath),
		PatientName:              deref(r.PatientName),
		PatientAge:               wholeNumber(r.PatientAge),
		PatientSex:               deref(r.PatientSex),
		SymptomDuration:          deref(r.SymptomDuration),
		PainLevel:                deref(r.PainLevel),
		AffectedBodyParts:        deref(r.AffectedBodyParts),
		HasFever:                 r.HasFever != nil && *r.HasFever,
		TemperatureCelsius:       r.TemperatureCelsius,
		KnownAllergies:           deref(r.KnownAllergies),
		CurrentMedications:       deref(r.CurrentMedications),
		RecentTravel:             deref(r.RecentTravel),
		PreExistingConditions:    deref(r.PreExistingConditions),
		PredictedInjuryLabel:     deref(r.PredictedInjuryLabel),
		InjuryDescriptionSummary: deref(r.InjuryDescriptionSummary),
		SeverityScore:            wholeNumber(r.SeverityScore),
		SeverityReason:           deref(r.SeverityReason),
		RecommendationStatus:     assessment.RecommendationStatus(deref(r.RecommendationStatus)),
		TriageRecommendation:     deref(r.TriageRecommendation),
		CreatedAt:                parseTimestamp(r.CreatedAt),
		UpdatedAt:                parseTimestamp(r.UpdatedAt),
	}
}

type diagnosisRow struct {
	ID           string  `json:"id"`
	AssessmentID string  `json:"assessment_id"`
	Name         string  `json:"name"`
	Confidence   float64 `json:"confidence"`
	Description  *string `json:"description"`
	CreatedAt    string  `json:"created_at"`
}

func (r diagnosisRow) diagnosis() assessment.Diagnosis {
	return assessment.Diagnosis{
		ID:           r.ID,
		AssessmentID: r.AssessmentID,
		Name:         r.Name,
		Confidence:   r.Confidence,
		Description:  deref(r.Description),
		CreatedAt:    parseTimestamp(r.CreatedAt),
	}
}

// insertRow is the column set written on intake. Empty optional fields are
// sent as null.
type insertRow struct {
	UserID                string   `json:"user_id"`
	SymptomDescription    string   `json:"symptom_description"`
	ImageURL              *string  `json:"image_url"`
	ImageStoragePath      *string  `json:"image_storage_path"`
	ImageFileName         *string  `json:"image_file_name"`
	ImageFileType         *string  `json:"image_file_type"`
	PatientName           *string  `json:"patient_name"`
	PatientAge            *float64 `json:"patient_age"`
	PatientSex            *string  `json:"patient_sex"`
	SymptomDuration       *string  `json:"symptom_duration"`
	PainLevel             *string  `json:"pain_level"`
	AffectedBodyParts     *string  `json:"affected_body_parts"`
	HasFever              *bool    `json:"has_fever"`
	TemperatureCelsius    *float64 `json:"temperature_celsius"`
	KnownAllergies        *string  `json:"known_allergies"`
	CurrentMedications    *string  `json:"current_medications"`
	RecentTravel          *string  `json:"recent_travel"`
	PreExistingConditions *string  `json:"pre_existing_conditions"`
}

func newInsertRow(p assessment.NewAssessment) insertRow {
	return insertRow{
		UserID:                p.UserID,
		SymptomDescription:    p.Symptoms,
		ImageURL:              optional(p.ImageURL),
		ImageStoragePath:      optional(p.ImageStoragePath),
		ImageFileName:         optional(p.ImageFileName),
		ImageFileType:         optional(p.ImageFileType),
		PatientName:           optional(p.PatientName),
		PatientAge:            p.PatientAge,
		PatientSex:            optional(p.PatientSex),
		SymptomDuration:       optional(p.SymptomDuration),
		PainLevel:             optional(p.PainLevel),
		AffectedBodyParts:     optional(p.AffectedBodyParts),
		HasFever:              p.HasFever,
		TemperatureCelsius:    p.Temperature,
		KnownAllergies:        optional(p.KnownAllergies),
		CurrentMedications:    optional(p.CurrentMedications),
		RecentTravel:          optional(p.RecentTravel),
		PreExistingConditions: optional(p.PreExistingConditions),
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp accepts Postgres timestamps with or without a zone. Zoneless
// values are read as UTC.
func parseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func wholeNumber(value *float64) *int {
	if value == nil {
		return nil
	}
	n := int(math.Round(*value))
	return &n
}

type outcomeRow struct {
	PredictedInjuryLabel     string  `json:"predicted_injury_label"`
	InjuryDescriptionSummary *string `json:"injury_description_summary"`
	SeverityScore            int     `json:"severity_score"`
	SeverityReason           *string `json:"severity_reason"`
	RecommendationStatus     string  `json:"recommendation_status"`
	TriageRecommendation     *string `json:"triage_recommendation"`
	UpdatedAt                string  `json:"updated_at"`
}

func newOutcomeRow(o assessment.Outcome) outcomeRow {
	return outcomeRow{
		PredictedInjuryLabel:     o.InjuryType,
		InjuryDescriptionSummary: optional(o.Description),
		SeverityScore:            o.SeverityScore,
		SeverityReason:           optional(o.SeverityReason),
		RecommendationStatus:     string(o.RecommendationStatus),
		TriageRecommendation:     optional(o.TriageRecommendation),
		UpdatedAt:                time.Now().UTC().Format(time.RFC3339Nano),
	}
}

type diagnosisInsertRow struct {
	AssessmentID string  `json:"assessment_id"`
	Name         string  `json:"name"`
	Confidence   float64 `json:"confidence"`
	Description  *string `json:"description"`
}
