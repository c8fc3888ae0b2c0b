package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// PossibleDiagnosis is one candidate diagnosis attached to an assessment.
type PossibleDiagnosis struct {
	ID           string  `json:"id"`
	AssessmentID string  `json:"assessmentId"`
	Name         string  `json:"name"`
	Confidence   float64 `json:"confidence"`
	Description  string  `json:"description,omitempty"`
	CreatedAt    string  `json:"createdAt,omitempty"`
}

// TriageData is the full assessment record.
type TriageData struct {
	ID                 string `json:"id"`
	UserID             string `json:"userId"`
	SymptomDescription string `json:"symptomDescription"`
	ImageFileName      string `json:"imageFileName,omitempty"`
	ImageFileType      string `json:"imageFileType,omitempty"`
	ImageURL           string `json:"imageUrl,omitempty"`
	ImageStoragePath   string `json:"imageStoragePath,omitempty"`

	PatientName        string   `json:"patientName,omitempty"`
	PatientAge         *int     `json:"patientAge,omitempty"`
	PatientSex         string   `json:"patientSex,omitempty"`
	SymptomDuration    string   `json:"symptomDuration,omitempty"`
	PainLevel          string   `json:"painLevel,omitempty"`
	AffectedBodyParts  string   `json:"affectedBodyParts,omitempty"`
	HasFever           bool     `json:"hasFever"`
	TemperatureCelsius *float64 `json:"temperatureCelsius,omitempty"`

	KnownAllergies        string `json:"knownAllergies,omitempty"`
	CurrentMedications    string `json:"currentMedications,omitempty"`
	RecentTravel          string `json:"recentTravel,omitempty"`
	PreExistingConditions string `json:"preExistingConditions,omitempty"`

	PredictedInjuryLabel     string `json:"predictedInjuryLabel,omitempty"`
	InjuryDescriptionSummary string `json:"injuryDescriptionSummary,omitempty"`
	SeverityScore            *int   `json:"severityScore,omitempty"`
	SeverityReason           string `json:"severityReason,omitempty"`
	RecommendationStatus     string `json:"recommendationStatus,omitempty"`
	TriageRecommendation     string `json:"triageRecommendation,omitempty"`

	TopPossibleDiagnoses []PossibleDiagnosis `json:"topPossibleDiagnoses,omitempty"`

	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// AssessmentSummary is one row of the assessment list.
type AssessmentSummary struct {
	ID                   string `json:"id"`
	Date                 string `json:"date"`
	PatientIdentifier    string `json:"patientIdentifier,omitempty"`
	InjuryType           string `json:"injuryType"`
	KeySymptomsSnippet   string `json:"keySymptomsSnippet,omitempty"`
	SeverityScore        int    `json:"severityScore"`
	RecommendationStatus string `json:"recommendationStatus"`
	LastUpdated          string `json:"lastUpdated"`
}

// AssessmentListResponse wraps the list endpoint payload.
type AssessmentListResponse struct {
	Items []AssessmentSummary `json:"items"`
}

// CreateAssessmentRequest is the intake form body.
type CreateAssessmentRequest struct {
	UserID                string         `json:"userId"`
	Symptoms              string         `json:"symptoms"`
	PatientName           string         `json:"patientName,omitempty"`
	PatientAge            FlexibleNumber `json:"patientAge,omitzero"`
	PatientSex            string         `json:"patientSex,omitempty"`
	SymptomDuration       string         `json:"symptomDuration,omitempty"`
	PainLevel             string         `json:"painLevel,omitempty"`
	AffectedBodyParts     string         `json:"affectedBodyParts,omitempty"`
	HasFever              *bool          `json:"hasFever,omitempty"`
	Temperature           FlexibleNumber `json:"temperature,omitzero"`
	KnownAllergies        string         `json:"knownAllergies,omitempty"`
	CurrentMedications    string         `json:"currentMedications,omitempty"`
	RecentTravel          string         `json:"recentTravel,omitempty"`
	PreExistingConditions string         `json:"preExistingConditions,omitempty"`
	ImageURL              string         `json:"imageUrl,omitempty"`
	ImageStoragePath      string         `json:"imageStoragePath,omitempty"`
	ImageFileName         string         `json:"imageFileName,omitempty"`
	ImageFileType         string         `json:"imageFileType,omitempty"`
}

// CreateAssessmentResponse carries the id of a created assessment.
type CreateAssessmentResponse struct {
	AssessmentID string `json:"assessmentId"`
}

// DiagnosisInput is one candidate diagnosis in an outcome request.
type DiagnosisInput struct {
	Name        string  `json:"name"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description,omitempty"`
}

// TriageOutcome is the classifier result recorded against an assessment.
type TriageOutcome struct {
	InjuryType           string           `json:"injuryType"`
	Description          string           `json:"description,omitempty"`
	SeverityScore        int              `json:"severityScore"`
	SeverityReason       string           `json:"severityReason,omitempty"`
	TriageRecommendation string           `json:"triageRecommendation,omitempty"`
	RecommendationStatus string           `json:"recommendationStatus"`
	TopPossibleDiagnoses []DiagnosisInput `json:"topPossibleDiagnoses,omitempty"`
}

// DashboardStats are the dashboard counters.
type DashboardStats struct {
	TotalAssessments int     `json:"totalAssessments"`
	HighRiskCount    int     `json:"highRiskCount"`
	CompletedToday   int     `json:"completedToday"`
	PendingReview    int     `json:"pendingReview"`
	HighRiskChange   int     `json:"highRiskChange"`
	TotalChange      float64 `json:"totalChange"`
}

// UserResponse describes the identity behind a bearer token.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	RoleLabel string `json:"roleLabel,omitempty"`
}

// FlowStage is one pipeline stage with its status and display color.
type FlowStage struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Category string `json:"category"`
	Status   string `json:"status"`
	Color    string `json:"color"`
}

// FlowEdge links consecutive stages.
type FlowEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Active bool   `json:"active"`
}

// FlowSnapshot is the simulator state at one instant. Current is -1 when no
// stage is processing.
type FlowSnapshot struct {
	Phase     string      `json:"phase"`
	Current   int         `json:"current"`
	Completed int         `json:"completed"`
	Total     int         `json:"total"`
	Stages    []FlowStage `json:"stages"`
	Edges     []FlowEdge  `json:"edges"`
}

// FlowEvent is one transition on a flow event stream.
type FlowEvent struct {
	Seq      uint64       `json:"seq"`
	Kind     string       `json:"kind"`
	StageID  string       `json:"stageId,omitempty"`
	EdgeID   string       `json:"edgeId,omitempty"`
	Snapshot FlowSnapshot `json:"snapshot"`
}

// FlowSession describes a live flow session.
type FlowSession struct {
	ID           string       `json:"id"`
	AssessmentID string       `json:"assessmentId,omitempty"`
	CreatedAt    string       `json:"createdAt"`
	LastAccess   string       `json:"lastAccess"`
	Subscribers  int          `json:"subscribers"`
	Snapshot     FlowSnapshot `json:"snapshot"`
}

// StartFlowRequest starts a flow session.
type StartFlowRequest struct {
	AssessmentID string `json:"assessmentId"`
}

// BackendStatus reports the record provider the daemon serves from.
type BackendStatus struct {
	Kind             string `json:"kind"`
	DatabasePath     string `json:"databasePath,omitempty"`
	SchemaVersion    int    `json:"schemaVersion,omitempty"`
	TotalAssessments int    `json:"totalAssessments,omitempty"`
	Healthy          bool   `json:"healthy"`
	Detail           string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	StartedAt    string        `json:"startedAt,omitempty"`
	LockFilePath string        `json:"lockFilePath"`
	APIBind      string        `json:"apiBind"`
	AuthRequired bool          `json:"authRequired"`
	FlowSessions int           `json:"flowSessions"`
	Backend      BackendStatus `json:"backend"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Kind          string `json:"kind,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}
