package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"triage/internal/assessment"
	"triage/internal/services"
)

const assessmentColumns = `id, user_id, symptom_description, image_file_name, image_file_type, image_url,
    image_storage_path, patient_name, patient_age, patient_sex, symptom_duration, pain_level,
    affected_body_parts, has_fever, temperature_celsius, known_allergies, current_medications,
    recent_travel, pre_existing_conditions, predicted_injury_label, injury_description_summary,
    severity_score, severity_reason, recommendation_status, triage_recommendation, created_at, updated_at`

const diagnosisColumns = "id, assessment_id, name, confidence, description, created_at"

// List returns every assessment, newest first. Diagnoses are not loaded.
func (s *Store) List(ctx context.Context) ([]assessment.Assessment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+assessmentColumns+" FROM assessments ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	var out []assessment.Assessment
	for rows.Next() {
		record, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// Get returns one assessment with its diagnoses ordered by confidence.
func (s *Store) Get(ctx context.Context, id string) (*assessment.Assessment, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+assessmentColumns+" FROM assessments WHERE id = ?", id)
	record, err := scanAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get assessment", "assessment "+id+" not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get assessment %s: %w", id, err)
	}

	diagnoses, err := s.Diagnoses(ctx, id)
	if err != nil {
		return nil, err
	}
	record.Diagnoses = diagnoses
	return &record, nil
}

// Diagnoses returns the possible diagnoses for an assessment, most confident first.
func (s *Store) Diagnoses(ctx context.Context, assessmentID string) ([]assessment.Diagnosis, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+diagnosisColumns+" FROM possible_diagnoses WHERE assessment_id = ? ORDER BY confidence DESC, name",
		assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list diagnoses: %w", err)
	}
	defer rows.Close()

	var out []assessment.Diagnosis
	for rows.Next() {
		var (
			d           assessment.Diagnosis
			description sql.NullString
			createdRaw  sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.AssessmentID, &d.Name, &d.Confidence, &description, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan diagnosis: %w", err)
		}
		d.Description = description.String
		d.CreatedAt = parseNullTime(createdRaw)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Create stores a new assessment and returns its id. The payload is
// normalized and validated first.
func (s *Store) Create(ctx context.Context, payload assessment.NewAssessment) (string, error) {
	payload.Normalize()
	if err := payload.Validate(); err != nil {
		return "", err
	}
	record := payload.Record()
	record.ID = uuid.NewString()
	now := s.now()
	record.CreatedAt = now
	record.UpdatedAt = now
	if err := s.insert(ctx, record); err != nil {
		return "", err
	}
	return record.ID, nil
}

// Seed inserts fully formed records, keeping their ids and timestamps. It is
// used to load fixtures.
func (s *Store) Seed(ctx context.Context, records ...assessment.Assessment) error {
	for _, record := range records {
		if strings.TrimSpace(record.ID) == "" {
			record.ID = uuid.NewString()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = s.now()
		}
		if record.UpdatedAt.IsZero() {
			record.UpdatedAt = record.CreatedAt
		}
		if err := s.insert(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// AttachOutcome records the AI analysis for an assessment and replaces its
// diagnoses.
func (s *Store) AttachOutcome(ctx context.Context, id string, outcome assessment.Outcome) error {
	if err := outcome.Validate(); err != nil {
		return err
	}
	now := s.timestamp()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE assessments SET
            predicted_injury_label = ?, injury_description_summary = ?, severity_score = ?,
            severity_reason = ?, recommendation_status = ?, triage_recommendation = ?, updated_at = ?
        WHERE id = ?`,
			outcome.InjuryType,
			nullableString(outcome.Description),
			outcome.SeverityScore,
			nullableString(outcome.SeverityReason),
			string(outcome.RecommendationStatus),
			nullableString(outcome.TriageRecommendation),
			now,
			id,
		)
		if err != nil {
			return fmt.Errorf("update outcome: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return services.Wrap(services.ErrNotFound, "store", "attach outcome", "assessment "+id+" not found", nil)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM possible_diagnoses WHERE assessment_id = ?", id); err != nil {
			return fmt.Errorf("clear diagnoses: %w", err)
		}
		return insertDiagnoses(ctx, tx, id, outcome.Diagnoses, now)
	})
}

// Delete removes an assessment and its diagnoses.
func (s *Store) Delete(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.execWithRetry(ctx,
		"DELETE FROM assessments WHERE id IN ("+makePlaceholders(len(ids))+")", args...)
	if err != nil {
		return 0, fmt.Errorf("delete assessments: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) insert(ctx context.Context, record assessment.Assessment) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var status any
		if record.RecommendationStatus != "" {
			status = string(record.RecommendationStatus)
		}
		_, err := tx.ExecContext(ctx, "INSERT INTO assessments ("+assessmentColumns+") VALUES ("+makePlaceholders(27)+")",
			record.ID,
			record.UserID,
			record.SymptomDescription,
			nullableString(record.ImageFileName),
			nullableString(record.ImageFileType),
			nullableString(record.ImageURL),
			nullableString(record.ImageStoragePath),
			nullableString(record.PatientName),
			nullableInt(record.PatientAge),
			nullableString(record.PatientSex),
			nullableString(record.SymptomDuration),
			nullableString(record.PainLevel),
			nullableString(record.AffectedBodyParts),
			boolToInt(record.HasFever),
			nullableFloat(record.TemperatureCelsius),
			nullableString(record.KnownAllergies),
			nullableString(record.CurrentMedications),
			nullableString(record.RecentTravel),
			nullableString(record.PreExistingConditions),
			nullableString(record.PredictedInjuryLabel),
			nullableString(record.InjuryDescriptionSummary),
			nullableInt(record.SeverityScore),
			nullableString(record.SeverityReason),
			status,
			nullableString(record.TriageRecommendation),
			formatTime(record.CreatedAt),
			formatTime(record.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert assessment: %w", err)
		}
		return insertDiagnoses(ctx, tx, record.ID, record.Diagnoses, formatTime(record.CreatedAt))
	})
}

func insertDiagnoses(ctx context.Context, tx *sql.Tx, assessmentID string, diagnoses []assessment.Diagnosis, createdAt string) error {
	for _, d := range diagnoses {
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		created := createdAt
		if !d.CreatedAt.IsZero() {
			created = formatTime(d.CreatedAt)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO possible_diagnoses ("+diagnosisColumns+") VALUES (?, ?, ?, ?, ?, ?)",
			id, assessmentID, d.Name, d.Confidence, nullableString(d.Description), created,
		); err != nil {
			return fmt.Errorf("insert diagnosis %q: %w", d.Name, err)
		}
	}
	return nil
}

func scanAssessment(scanner interface{ Scan(dest ...any) error }) (assessment.Assessment, error) {
	var (
		record             assessment.Assessment
		imageFileName      sql.NullString
		imageFileType      sql.NullString
		imageURL           sql.NullString
		imageStoragePath   sql.NullString
		patientName        sql.NullString
		patientAge         sql.NullInt64
		patientSex         sql.NullString
		symptomDuration    sql.NullString
		painLevel          sql.NullString
		affectedBodyParts  sql.NullString
		hasFever           sql.NullInt64
		temperature        sql.NullFloat64
		knownAllergies     sql.NullString
		currentMedications sql.NullString
		recentTravel       sql.NullString
		preExisting        sql.NullString
		injuryLabel        sql.NullString
		injurySummary      sql.NullString
		severityScore      sql.NullInt64
		severityReason     sql.NullString
		status             sql.NullString
		recommendation     sql.NullString
		createdRaw         sql.NullString
		updatedRaw         sql.NullString
	)
	if err := scanner.Scan(
		&record.ID,
		&record.UserID,
		&record.SymptomDescription,
		&imageFileName,
		&imageFileType,
		&imageURL,
		&imageStoragePath,
		&patientName,
		&patientAge,
		&patientSex,
		&symptomDuration,
		&painLevel,
		&affectedBodyParts,
		&hasFever,
		&temperature,
		&knownAllergies,
		&currentMedications,
		&recentTravel,
		&preExisting,
		&injuryLabel,
		&injurySummary,
		&severityScore,
		&severityReason,
		&status,
		&recommendation,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return assessment.Assessment{}, err
	}

	record.ImageFileName = imageFileName.String
	record.ImageFileType = imageFileType.String
	record.ImageURL = imageURL.String
	record.ImageStoragePath = imageStoragePath.String
	record.PatientName = patientName.String
	record.PatientAge = intPtr(patientAge)
	record.PatientSex = patientSex.String
	record.SymptomDuration = symptomDuration.String
	record.PainLevel = painLevel.String
	record.AffectedBodyParts = affectedBodyParts.String
	record.HasFever = hasFever.Valid && hasFever.Int64 != 0
	record.TemperatureCelsius = floatPtr(temperature)
	record.KnownAllergies = knownAllergies.String
	record.CurrentMedications = currentMedications.String
	record.RecentTravel = recentTravel.String
	record.PreExistingConditions = preExisting.String
	record.PredictedInjuryLabel = injuryLabel.String
	record.InjuryDescriptionSummary = injurySummary.String
	record.SeverityScore = intPtr(severityScore)
	record.SeverityReason = severityReason.String
	record.RecommendationStatus = assessment.RecommendationStatus(status.String)
	record.TriageRecommendation = recommendation.String
	record.CreatedAt = parseNullTime(createdRaw)
	record.UpdatedAt = parseNullTime(updatedRaw)
	return record, nil
}
