package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/ascvd-risk-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL patient registry.
// It expects the database and schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL patient registry from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores or updates a patient record.
func (s *PostgresStore) Save(ctx context.Context, record *PatientRecord) error {
	now := time.Now().UTC()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	query := `
		INSERT INTO patients (
			id, name, sex, race, age,
			total_cholesterol, hdl_cholesterol, systolic_bp,
			on_bp_treatment, diabetes, smoker,
			risk_percent, risk_category, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			sex = EXCLUDED.sex,
			race = EXCLUDED.race,
			age = EXCLUDED.age,
			total_cholesterol = EXCLUDED.total_cholesterol,
			hdl_cholesterol = EXCLUDED.hdl_cholesterol,
			systolic_bp = EXCLUDED.systolic_bp,
			on_bp_treatment = EXCLUDED.on_bp_treatment,
			diabetes = EXCLUDED.diabetes,
			smoker = EXCLUDED.smoker,
			risk_percent = EXCLUDED.risk_percent,
			risk_category = EXCLUDED.risk_category,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		record.ID, record.Name,
		string(record.Profile.Sex), string(record.Profile.Race), record.Profile.Age,
		record.Profile.TotalCholesterol, record.Profile.HDLCholesterol, record.Profile.SystolicBP,
		record.Profile.OnBPTreatment, record.Profile.Diabetes, record.Profile.Smoker,
		record.RiskPercent, string(record.RiskCategory), record.CreatedAt, now,
	).Scan(&record.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save patient: %w", err)
	}

	record.UpdatedAt = now
	return nil
}

// Get retrieves a patient record by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*PatientRecord, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM patients
		WHERE id = $1
		LIMIT 1
	`

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return rec, nil
}

// List returns the records matching the filter, newest first.
func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*PatientRecord, error) {
	where, args := filter.WhereClause()
	query := fmt.Sprintf("SELECT %s FROM patients%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		selectColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()

	var result []*PatientRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}

	return result, rows.Err()
}

// Count returns the number of records matching the filter.
func (s *PostgresStore) Count(ctx context.Context, filter ListFilter) (int64, error) {
	where, args := filter.WhereClause()

	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM patients"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count patients: %w", err)
	}
	return count, nil
}

// Delete removes a patient record by ID.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM patients WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Overview returns aggregate statistics over all records.
func (s *PostgresStore) Overview(ctx context.Context) (*Overview, error) {
	ov := &Overview{
		CategoryCounts: make(map[domain.RiskCategory]int64),
	}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(AVG(risk_percent), 0) FROM patients",
	).Scan(&ov.TotalPatients, &ov.AverageRisk)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT risk_category, COUNT(*) FROM patients GROUP BY risk_category",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		ov.CategoryCounts[domain.RiskCategory(category)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ov.HighRiskPatients = ov.CategoryCounts[domain.RISK_HIGH]
	return ov, nil
}

// ExportJSON exports all records to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, ListFilter{Limit: maxExportLimit})
	if err != nil {
		return fmt.Errorf("failed to list patients: %w", err)
	}

	export := &RegistryExport{
		Version:    "1.0",
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Patients:   all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON imports records from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export RegistryExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, rec := range export.Patients {
		if rec.ID != "" {
			existing, err := s.Get(ctx, rec.ID)
			if err != nil && err != domain.ErrNotFound {
				return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
			}
			if existing != nil {
				skipped++
				continue
			}
		}

		if err := s.Save(ctx, rec); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
