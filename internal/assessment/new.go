package assessment

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"triage/internal/services"
)

// NewAssessment is the intake form payload.
type NewAssessment struct {
	UserID   string
	Symptoms string

	PatientName       string
	PatientAge        *float64
	PatientSex        string
	SymptomDuration   string
	PainLevel         string
	AffectedBodyParts string
	HasFever          *bool
	Temperature       *float64

	KnownAllergies        string
	CurrentMedications    string
	RecentTravel          string
	PreExistingConditions string

	ImageURL         string
	ImageStoragePath string
	ImageFileName    string
	ImageFileType    string
}

// Normalize trims text fields, canonicalizes enumerations and defaults
// HasFever to false.
func (n *NewAssessment) Normalize() {
	for _, field := range []*string{
		&n.UserID, &n.Symptoms, &n.PatientName, &n.PatientSex, &n.SymptomDuration,
		&n.PainLevel, &n.AffectedBodyParts, &n.KnownAllergies, &n.CurrentMedications,
		&n.RecentTravel, &n.PreExistingConditions, &n.ImageURL, &n.ImageStoragePath,
		&n.ImageFileName, &n.ImageFileType,
	} {
		*field = strings.TrimSpace(*field)
	}
	for _, candidate := range sexValues {
		if strings.EqualFold(n.PatientSex, candidate) {
			n.PatientSex = candidate
			break
		}
	}
	n.RecentTravel = strings.ToLower(n.RecentTravel)
	if n.HasFever == nil {
		no := false
		n.HasFever = &no
	}
}

// Validate checks the payload and returns a validation error listing every
// problem found.
func (n NewAssessment) Validate() error {
	var problems []string
	if n.Symptoms == "" {
		problems = append(problems, "symptoms are required")
	}
	if n.UserID == "" {
		problems = append(problems, "user id is required")
	}
	if n.PatientAge != nil {
		age := *n.PatientAge
		if age < 0 || age > 150 || age != math.Trunc(age) {
			problems = append(problems, "patient age must be a whole number between 0 and 150")
		}
	}
	if n.Temperature != nil && (*n.Temperature < 25 || *n.Temperature > 45) {
		problems = append(problems, "temperature must be between 25 and 45 °C")
	}
	if n.PainLevel != "" {
		if level, err := strconv.ParseFloat(n.PainLevel, 64); err == nil && (level < 0 || level > 10) {
			problems = append(problems, "pain level must be between 0 and 10")
		}
	}
	if n.PatientSex != "" && !containsString(sexValues, n.PatientSex) {
		problems = append(problems, fmt.Sprintf("patient sex must be one of %s", strings.Join(sexValues, ", ")))
	}
	if n.RecentTravel != "" && n.RecentTravel != "yes" && n.RecentTravel != "no" {
		problems = append(problems, "recent travel must be yes or no")
	}
	if len(problems) == 0 {
		return nil
	}
	return services.Wrap(services.ErrValidation, "assessment", "validate", strings.Join(problems, "; "), nil)
}

// Record builds the stored form of the payload. ID and timestamps are left
// for the backend to assign.
func (n NewAssessment) Record() Assessment {
	record := Assessment{
		UserID:                n.UserID,
		SymptomDescription:    n.Symptoms,
		ImageFileName:         n.ImageFileName,
		ImageFileType:         n.ImageFileType,
		ImageURL:              n.ImageURL,
		ImageStoragePath:      n.ImageStoragePath,
		PatientName:           n.PatientName,
		PatientSex:            n.PatientSex,
		SymptomDuration:       n.SymptomDuration,
		PainLevel:             n.PainLevel,
		AffectedBodyParts:     n.AffectedBodyParts,
		TemperatureCelsius:    n.Temperature,
		KnownAllergies:        n.KnownAllergies,
		CurrentMedications:    n.CurrentMedications,
		RecentTravel:          n.RecentTravel,
		PreExistingConditions: n.PreExistingConditions,
	}
	if n.HasFever != nil {
		record.HasFever = *n.HasFever
	}
	if n.PatientAge != nil {
		age := int(*n.PatientAge)
		record.PatientAge = &age
	}
	return record
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
