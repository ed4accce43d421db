// Package registry provides persistent storage for patient risk assessments.
// It keeps each patient's profile together with the most recently computed
// risk so that assessments can be reviewed and aggregated later.
package registry

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ascvd-risk-server/internal/domain"
)

// PatientRecord is a stored patient profile with its latest risk assessment.
type PatientRecord struct {
	ID           string                `json:"id"`
	Name         string                `json:"name,omitempty"`
	Profile      domain.PatientProfile `json:"profile"`
	RiskPercent  float64               `json:"risk_percent"`
	RiskCategory domain.RiskCategory   `json:"risk_category"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// Overview aggregates the registry for reporting.
type Overview struct {
	TotalPatients    int64                         `json:"total_patients"`
	AverageRisk      float64                       `json:"average_risk"`
	CategoryCounts   map[domain.RiskCategory]int64 `json:"category_counts"`
	HighRiskPatients int64                         `json:"high_risk_patients"`
}

// ListFilter narrows a registry listing. Zero values mean no constraint:
// an empty Search matches every name, AgeMin/AgeMax of 0 leave that bound
// open. The same filter drives Count so pagination totals agree with the
// rows returned.
type ListFilter struct {
	Search string     // case-insensitive substring match on name
	Sex    domain.Sex // exact match
	AgeMin int        // inclusive lower age bound
	AgeMax int        // inclusive upper age bound
	Limit  int
	Offset int
}

// whereClause renders the filter conditions as a SQL fragment. placeholder
// formats the i-th bind parameter (1-based), covering both the "?" and "$n"
// styles of the two stores.
func (f ListFilter) whereClause(placeholder func(int) string) (string, []any) {
	var conds []string
	var args []any
	add := func(format string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(format, placeholder(len(args))))
	}

	if f.Search != "" {
		add("LOWER(name) LIKE %s", "%"+strings.ToLower(f.Search)+"%")
	}
	if f.Sex != "" {
		add("sex = %s", string(f.Sex))
	}
	if f.AgeMin > 0 {
		add("age >= %s", f.AgeMin)
	}
	if f.AgeMax > 0 {
		add("age <= %s", f.AgeMax)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// WhereClause renders the filter with PostgreSQL-style numbered parameters,
// for callers outside this package that query the same patients table.
func (f ListFilter) WhereClause() (string, []any) {
	return f.whereClause(func(i int) string { return fmt.Sprintf("$%d", i) })
}

// Store defines the interface for patient registry operations.
type Store interface {
	// Save stores or updates a patient record. A record with an empty ID
	// gets a generated one; an existing ID is updated in place.
	Save(ctx context.Context, record *PatientRecord) error

	// Get retrieves a patient record by ID. Returns domain.ErrNotFound
	// when no record exists.
	Get(ctx context.Context, id string) (*PatientRecord, error)

	// List returns the records matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]*PatientRecord, error)

	// Count returns the number of records matching the filter.
	Count(ctx context.Context, filter ListFilter) (int64, error)

	// Delete removes a patient record by ID.
	Delete(ctx context.Context, id string) error

	// Overview returns aggregate statistics over all records.
	Overview(ctx context.Context) (*Overview, error)

	// ExportJSON exports all records to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports records from a JSON reader.
	// Returns the number of imported and skipped entries.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// RegistryExport represents the JSON export format.
type RegistryExport struct {
	Version    string           `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Count      int              `json:"count"`
	Patients   []*PatientRecord `json:"patients"`
}
