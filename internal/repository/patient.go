// Package repository handles patient assessment persistence for the HTTP
// service backed by PostgreSQL.
package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/ascvd-risk-server/internal/domain"
	"github.com/ascvd-risk-server/internal/registry"
)

// PatientRepository handles patient record persistence
type PatientRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPatientRepository creates a new patient repository
func NewPatientRepository(db *pgxpool.Pool, logger *logrus.Logger) *PatientRepository {
	return &PatientRepository{
		db:  db,
		log: logger,
	}
}

const patientColumns = `id, name, sex, race, age,
	total_cholesterol, hdl_cholesterol, systolic_bp,
	on_bp_treatment, diabetes, smoker,
	risk_percent, risk_category, created_at, updated_at`

// Create inserts a new patient record into the database
func (r *PatientRepository) Create(ctx context.Context, record *registry.PatientRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	query := `
		INSERT INTO patients (
			id, name, sex, race, age,
			total_cholesterol, hdl_cholesterol, systolic_bp,
			on_bp_treatment, diabetes, smoker,
			risk_percent, risk_category
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		record.ID,
		record.Name,
		string(record.Profile.Sex),
		string(record.Profile.Race),
		record.Profile.Age,
		record.Profile.TotalCholesterol,
		record.Profile.HDLCholesterol,
		record.Profile.SystolicBP,
		record.Profile.OnBPTreatment,
		record.Profile.Diabetes,
		record.Profile.Smoker,
		record.RiskPercent,
		string(record.RiskCategory),
	).Scan(&record.CreatedAt, &record.UpdatedAt)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"patient_id": record.ID,
			"error":      err,
		}).Error("Failed to create patient record")
		return fmt.Errorf("creating patient record: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"patient_id":    record.ID,
		"risk_category": record.RiskCategory,
	}).Info("Patient record created successfully")

	return nil
}

// GetByID retrieves a patient record by its ID
func (r *PatientRepository) GetByID(ctx context.Context, id string) (*registry.PatientRecord, error) {
	query := `
		SELECT ` + patientColumns + `
		FROM patients
		WHERE id = $1`

	record, err := scanPatientRow(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("patient not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"patient_id": id,
			"error":      err,
		}).Error("Failed to get patient by ID")
		return nil, fmt.Errorf("getting patient by ID: %w", err)
	}

	return record, nil
}

// List retrieves the patient records matching the filter, newest first
func (r *PatientRepository) List(ctx context.Context, filter registry.ListFilter) ([]*registry.PatientRecord, error) {
	where, args := filter.WhereClause()
	query := fmt.Sprintf("SELECT %s FROM patients%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		patientColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.WithError(err).Error("Failed to list patient records")
		return nil, fmt.Errorf("listing patient records: %w", err)
	}
	defer rows.Close()

	var records []*registry.PatientRecord
	for rows.Next() {
		record, err := scanPatientRow(rows)
		if err != nil {
			r.log.WithError(err).Error("Failed to scan patient row")
			return nil, fmt.Errorf("scanning patient row: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patient rows: %w", err)
	}

	return records, nil
}

// Count returns the number of patient records matching the filter
func (r *PatientRepository) Count(ctx context.Context, filter registry.ListFilter) (int64, error) {
	where, args := filter.WhereClause()

	var count int64
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM patients"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting patient records: %w", err)
	}
	return count, nil
}

// Update updates an existing patient record with a fresh assessment
func (r *PatientRepository) Update(ctx context.Context, record *registry.PatientRecord) error {
	query := `
		UPDATE patients
		SET name = $2, sex = $3, race = $4, age = $5,
			total_cholesterol = $6, hdl_cholesterol = $7, systolic_bp = $8,
			on_bp_treatment = $9, diabetes = $10, smoker = $11,
			risk_percent = $12, risk_category = $13,
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		record.ID,
		record.Name,
		string(record.Profile.Sex),
		string(record.Profile.Race),
		record.Profile.Age,
		record.Profile.TotalCholesterol,
		record.Profile.HDLCholesterol,
		record.Profile.SystolicBP,
		record.Profile.OnBPTreatment,
		record.Profile.Diabetes,
		record.Profile.Smoker,
		record.RiskPercent,
		string(record.RiskCategory),
	)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"patient_id": record.ID,
			"error":      err,
		}).Error("Failed to update patient record")
		return fmt.Errorf("updating patient record: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("patient not found: %w", domain.ErrNotFound)
	}

	r.log.WithFields(logrus.Fields{
		"patient_id": record.ID,
	}).Info("Patient record updated successfully")

	return nil
}

// Delete removes a patient record from the database
func (r *PatientRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, "DELETE FROM patients WHERE id = $1", id)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"patient_id": id,
			"error":      err,
		}).Error("Failed to delete patient record")
		return fmt.Errorf("deleting patient record: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("patient not found: %w", domain.ErrNotFound)
	}

	r.log.WithFields(logrus.Fields{
		"patient_id": id,
	}).Info("Patient record deleted successfully")

	return nil
}

// Overview returns aggregate statistics over all patient records
func (r *PatientRepository) Overview(ctx context.Context) (*registry.Overview, error) {
	ov := &registry.Overview{
		CategoryCounts: make(map[domain.RiskCategory]int64),
	}

	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*), COALESCE(AVG(risk_percent), 0) FROM patients",
	).Scan(&ov.TotalPatients, &ov.AverageRisk)
	if err != nil {
		return nil, fmt.Errorf("aggregating patient records: %w", err)
	}

	rows, err := r.db.Query(ctx,
		"SELECT risk_category, COUNT(*) FROM patients GROUP BY risk_category",
	)
	if err != nil {
		return nil, fmt.Errorf("querying category counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("scanning category count: %w", err)
		}
		ov.CategoryCounts[domain.RiskCategory(category)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating category counts: %w", err)
	}

	ov.HighRiskPatients = ov.CategoryCounts[domain.RISK_HIGH]
	return ov, nil
}

// rowScanner abstracts pgx.Row and pgx.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatientRow(row rowScanner) (*registry.PatientRecord, error) {
	record := &registry.PatientRecord{}
	var sex, race, category string

	err := row.Scan(
		&record.ID, &record.Name, &sex, &race, &record.Profile.Age,
		&record.Profile.TotalCholesterol, &record.Profile.HDLCholesterol, &record.Profile.SystolicBP,
		&record.Profile.OnBPTreatment, &record.Profile.Diabetes, &record.Profile.Smoker,
		&record.RiskPercent, &category, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Profile.Sex = domain.Sex(sex)
	record.Profile.Race = domain.Race(race)
	record.RiskCategory = domain.RiskCategory(category)
	return record, nil
}
