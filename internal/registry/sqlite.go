package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ascvd-risk-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite patient registry.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans a row into a PatientRecord.
func scanRecord(s scanner) (*PatientRecord, error) {
	rec := &PatientRecord{}
	var sex, race, category string

	err := s.Scan(
		&rec.ID, &rec.Name, &sex, &race, &rec.Profile.Age,
		&rec.Profile.TotalCholesterol, &rec.Profile.HDLCholesterol, &rec.Profile.SystolicBP,
		&rec.Profile.OnBPTreatment, &rec.Profile.Diabetes, &rec.Profile.Smoker,
		&rec.RiskPercent, &category, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Profile.Sex = domain.Sex(sex)
	rec.Profile.Race = domain.Race(race)
	rec.RiskCategory = domain.RiskCategory(category)
	return rec, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS patients (
		id TEXT PRIMARY KEY,
		name TEXT DEFAULT '',
		sex TEXT NOT NULL,
		race TEXT NOT NULL,
		age INTEGER NOT NULL,
		total_cholesterol REAL NOT NULL,
		hdl_cholesterol REAL NOT NULL,
		systolic_bp REAL NOT NULL,
		on_bp_treatment INTEGER NOT NULL DEFAULT 0,
		diabetes INTEGER NOT NULL DEFAULT 0,
		smoker INTEGER NOT NULL DEFAULT 0,
		risk_percent REAL NOT NULL,
		risk_category TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_patients_risk_category ON patients(risk_category);
	CREATE INDEX IF NOT EXISTS idx_patients_created_at ON patients(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

const selectColumns = `id, name, sex, race, age,
		total_cholesterol, hdl_cholesterol, systolic_bp,
		on_bp_treatment, diabetes, smoker,
		risk_percent, risk_category, created_at, updated_at`

// Save stores or updates a patient record.
func (s *SQLiteStore) Save(ctx context.Context, record *PatientRecord) error {
	now := time.Now().UTC()

	if record.ID == "" {
		record.ID = uuid.New().String()
		record.CreatedAt = now
	}

	var existingCreated time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT created_at FROM patients WHERE id = ?", record.ID,
	).Scan(&existingCreated)

	if err == nil {
		record.CreatedAt = existingCreated
		record.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE patients SET
				name = ?, sex = ?, race = ?, age = ?,
				total_cholesterol = ?, hdl_cholesterol = ?, systolic_bp = ?,
				on_bp_treatment = ?, diabetes = ?, smoker = ?,
				risk_percent = ?, risk_category = ?, updated_at = ?
			WHERE id = ?
		`,
			record.Name,
			string(record.Profile.Sex), string(record.Profile.Race), record.Profile.Age,
			record.Profile.TotalCholesterol, record.Profile.HDLCholesterol, record.Profile.SystolicBP,
			record.Profile.OnBPTreatment, record.Profile.Diabetes, record.Profile.Smoker,
			record.RiskPercent, string(record.RiskCategory), now,
			record.ID,
		)
		return err
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO patients (
			id, name, sex, race, age,
			total_cholesterol, hdl_cholesterol, systolic_bp,
			on_bp_treatment, diabetes, smoker,
			risk_percent, risk_category, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID, record.Name,
		string(record.Profile.Sex), string(record.Profile.Race), record.Profile.Age,
		record.Profile.TotalCholesterol, record.Profile.HDLCholesterol, record.Profile.SystolicBP,
		record.Profile.OnBPTreatment, record.Profile.Diabetes, record.Profile.Smoker,
		record.RiskPercent, string(record.RiskCategory), record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	return nil
}

// Get retrieves a patient record by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*PatientRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM patients
		WHERE id = ?
		LIMIT 1
	`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return rec, nil
}

func sqlitePlaceholder(int) string { return "?" }

// List returns the records matching the filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]*PatientRecord, error) {
	where, args := filter.whereClause(sqlitePlaceholder)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM patients"+where+
			" ORDER BY created_at DESC LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
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
func (s *SQLiteStore) Count(ctx context.Context, filter ListFilter) (int64, error) {
	where, args := filter.whereClause(sqlitePlaceholder)

	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM patients"+where, args...).Scan(&count)
	return count, err
}

// Delete removes a patient record by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM patients WHERE id = ?", id)
	if err != nil {
		return err
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
func (s *SQLiteStore) Overview(ctx context.Context) (*Overview, error) {
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

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON exports all records to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
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
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
