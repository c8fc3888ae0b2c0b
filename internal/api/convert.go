package api

import (
	"strings"
	"time"

	"triage/internal/assessment"
	"triage/internal/flow"
	"triage/internal/flowsession"
)

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(dateTimeFormat)
}

// FromAssessment converts a stored record to its API representation.
func FromAssessment(a *assessment.Assessment) TriageData {
	if a == nil {
		return TriageData{}
	}
	dto := TriageData{
		ID:                       a.ID,
		UserID:                   a.UserID,
		SymptomDescription:       a.SymptomDescription,
		ImageFileName:            a.ImageFileName,
		ImageFileType:            a.ImageFileType,
		ImageURL:                 a.ImageURL,
		ImageStoragePath:         a.ImageStoragePath,
		PatientName:              a.PatientName,
		PatientAge:               a.PatientAge,
		PatientSex:               a.PatientSex,
		SymptomDuration:          a.SymptomDuration,
		PainLevel:                a.PainLevel,
		AffectedBodyParts:        a.AffectedBodyParts,
		HasFever:                 a.HasFever,
		TemperatureCelsius:       a.TemperatureCelsius,
		KnownAllergies:           a.KnownAllergies,
		CurrentMedications:       a.CurrentMedications,
		RecentTravel:             a.RecentTravel,
		PreExistingConditions:    a.PreExistingConditions,
		PredictedInjuryLabel:     a.PredictedInjuryLabel,
		InjuryDescriptionSummary: a.InjuryDescriptionSummary,
		SeverityScore:            a.SeverityScore,
		SeverityReason:           a.SeverityReason,
		RecommendationStatus:     string(a.RecommendationStatus),
		TriageRecommendation:     a.TriageRecommendation,
		CreatedAt:                formatTime(a.CreatedAt),
		UpdatedAt:                formatTime(a.UpdatedAt),
	}
	for _, d := range a.Diagnoses {
		dto.TopPossibleDiagnoses = append(dto.TopPossibleDiagnoses, PossibleDiagnosis{
			ID:           d.ID,
			AssessmentID: d.AssessmentID,
			Name:         d.Name,
			Confidence:   d.Confidence,
			Description:  d.Description,
			CreatedAt:    formatTime(d.CreatedAt),
		})
	}
	return dto
}

// FromSummary converts a list row.
func FromSummary(s assessment.Summary) AssessmentSummary {
	return AssessmentSummary{
		ID:                   s.ID,
		Date:                 formatTime(s.Date),
		PatientIdentifier:    s.PatientIdentifier,
		InjuryType:           s.InjuryType,
		KeySymptomsSnippet:   s.KeySymptomsSnippet,
		SeverityScore:        s.SeverityScore,
		RecommendationStatus: string(s.RecommendationStatus),
		LastUpdated:          formatTime(s.LastUpdated),
	}
}

// FromStats converts the dashboard counters.
func FromStats(s assessment.Stats) DashboardStats {
	return DashboardStats{
		TotalAssessments: s.TotalAssessments,
		HighRiskCount:    s.HighRiskCount,
		CompletedToday:   s.CompletedToday,
		PendingReview:    s.PendingReview,
		HighRiskChange:   s.HighRiskChange,
		TotalChange:      s.TotalChange,
	}
}

// FromUser converts an identity.
func FromUser(u *assessment.User) UserResponse {
	if u == nil {
		return UserResponse{}
	}
	resp := UserResponse{ID: u.ID, Email: u.Email, Role: string(u.Role)}
	if u.Role.Valid() {
		resp.RoleLabel = u.Role.Label()
	}
	return resp
}

// FromSnapshot converts simulator state. Stage colors come from the stage
// category.
func FromSnapshot(s flow.Snapshot) FlowSnapshot {
	dto := FlowSnapshot{
		Phase:     string(s.Phase),
		Current:   s.Current,
		Completed: s.Completed(),
		Total:     len(s.Stages),
		Stages:    make([]FlowStage, 0, len(s.Stages)),
		Edges:     make([]FlowEdge, 0, len(s.Edges)),
	}
	for _, stage := range s.Stages {
		dto.Stages = append(dto.Stages, FlowStage{
			ID:       stage.ID,
			Label:    stage.Label,
			Category: stage.Category,
			Status:   string(stage.Status),
			Color:    flow.CategoryColor(stage.Category),
		})
	}
	for _, edge := range s.Edges {
		dto.Edges = append(dto.Edges, FlowEdge{
			ID:     edge.ID,
			Source: edge.Source,
			Target: edge.Target,
			Active: edge.Active,
		})
	}
	return dto
}

// FromEvent converts a simulator event.
func FromEvent(e flow.Event) FlowEvent {
	return FlowEvent{
		Seq:      e.Seq,
		Kind:     string(e.Kind),
		StageID:  e.StageID,
		EdgeID:   e.EdgeID,
		Snapshot: FromSnapshot(e.Snapshot),
	}
}

// FromSessionInfo converts a flow session description.
func FromSessionInfo(info flowsession.Info) FlowSession {
	return FlowSession{
		ID:           info.ID,
		AssessmentID: info.AssessmentID,
		CreatedAt:    formatTime(info.CreatedAt),
		LastAccess:   formatTime(info.LastAccess),
		Subscribers:  info.Subscribers,
		Snapshot:     FromSnapshot(info.Snapshot),
	}
}

// Payload maps the request to the intake payload. userID, when set, replaces
// the body's userId.
func (r CreateAssessmentRequest) Payload(userID string) assessment.NewAssessment {
	payload := assessment.NewAssessment{
		UserID:                r.UserID,
		Symptoms:              r.Symptoms,
		PatientName:           r.PatientName,
		PatientAge:            r.PatientAge.Value,
		PatientSex:            r.PatientSex,
		SymptomDuration:       r.SymptomDuration,
		PainLevel:             r.PainLevel,
		AffectedBodyParts:     r.AffectedBodyParts,
		HasFever:              r.HasFever,
		Temperature:           r.Temperature.Value,
		KnownAllergies:        r.KnownAllergies,
		CurrentMedications:    r.CurrentMedications,
		RecentTravel:          r.RecentTravel,
		PreExistingConditions: r.PreExistingConditions,
		ImageURL:              r.ImageURL,
		ImageStoragePath:      r.ImageStoragePath,
		ImageFileName:         r.ImageFileName,
		ImageFileType:         r.ImageFileType,
	}
	if userID != "" {
		payload.UserID = userID
	}
	return payload
}

// Outcome maps the request to the domain outcome.
func (o TriageOutcome) Outcome() assessment.Outcome {
	out := assessment.Outcome{
		InjuryType:           strings.TrimSpace(o.InjuryType),
		Description:          strings.TrimSpace(o.Description),
		SeverityScore:        o.SeverityScore,
		SeverityReason:       strings.TrimSpace(o.SeverityReason),
		TriageRecommendation: strings.TrimSpace(o.TriageRecommendation),
		RecommendationStatus: assessment.RecommendationStatus(strings.ToLower(strings.TrimSpace(o.RecommendationStatus))),
	}
	for _, d := range o.TopPossibleDiagnoses {
		out.Diagnoses = append(out.Diagnoses, assessment.Diagnosis{
			Name:        strings.TrimSpace(d.Name),
			Confidence:  d.Confidence,
			Description: strings.TrimSpace(d.Description),
		})
	}
	return out
}
