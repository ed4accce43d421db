package registry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ascvd-risk-server/internal/domain"
)

func TestNewSQLiteStore(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "registry-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)

	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func testRecord(name string) *PatientRecord {
	return &PatientRecord{
		Name: name,
		Profile: domain.PatientProfile{
			Sex: domain.MALE, Race: domain.WHITE, Age: 55,
			TotalCholesterol: 213, HDLCholesterol: 50, SystolicBP: 120,
		},
		RiskPercent:  5.4,
		RiskCategory: domain.RISK_BORDERLINE,
	}
}

func TestSQLiteStore_Save(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	record := testRecord("J. Doe")

	err := store.Save(ctx, record)

	require.NoError(t, err)
	assert.NotEmpty(t, record.ID, "ID should be assigned")
	assert.False(t, record.CreatedAt.IsZero(), "CreatedAt should be set")
	assert.False(t, record.UpdatedAt.IsZero(), "UpdatedAt should be set")
}

func TestSQLiteStore_Save_Update(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	record := testRecord("J. Doe")
	err := store.Save(ctx, record)
	require.NoError(t, err)
	originalID := record.ID
	originalCreated := record.CreatedAt

	// Reassess with worse numbers
	record.Profile.SystolicBP = 150
	record.Profile.OnBPTreatment = true
	record.RiskPercent = 12.3
	record.RiskCategory = domain.RISK_INTERMEDIATE

	err = store.Save(ctx, record)
	require.NoError(t, err)

	assert.Equal(t, originalID, record.ID, "Should update existing record")
	assert.Equal(t, originalCreated.Unix(), record.CreatedAt.Unix())

	retrieved, err := store.Get(ctx, originalID)
	require.NoError(t, err)
	assert.InDelta(t, 12.3, retrieved.RiskPercent, 0.001)
	assert.Equal(t, domain.RISK_INTERMEDIATE, retrieved.RiskCategory)
	assert.True(t, retrieved.Profile.OnBPTreatment)
}

func TestSQLiteStore_Get(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	record := testRecord("A. Smith")
	record.Profile.Sex = domain.FEMALE
	record.Profile.Race = domain.BLACK
	err := store.Save(ctx, record)
	require.NoError(t, err)

	retrieved, err := store.Get(ctx, record.ID)

	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, record.ID, retrieved.ID)
	assert.Equal(t, "A. Smith", retrieved.Name)
	assert.Equal(t, domain.FEMALE, retrieved.Profile.Sex)
	assert.Equal(t, domain.BLACK, retrieved.Profile.Race)
	assert.InDelta(t, record.RiskPercent, retrieved.RiskPercent, 0.001)
}

func TestSQLiteStore_Get_NotFound(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	retrieved, err := store.Get(ctx, "00000000-0000-0000-0000-000000000000")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, retrieved)
}

func TestSQLiteStore_List(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	for _, name := range []string{"one", "two", "three"} {
		err := store.Save(ctx, testRecord(name))
		require.NoError(t, err)
	}

	list, err := store.List(ctx, ListFilter{Limit: 10})

	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestSQLiteStore_List_Filtered(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	alice := testRecord("Alice Carter")
	alice.Profile.Sex = domain.FEMALE
	alice.Profile.Age = 52
	require.NoError(t, store.Save(ctx, alice))

	albert := testRecord("Albert Croft")
	albert.Profile.Age = 67
	require.NoError(t, store.Save(ctx, albert))

	bob := testRecord("Bob Deane")
	bob.Profile.Age = 45
	require.NoError(t, store.Save(ctx, bob))

	// search is a case-insensitive substring match on name
	found, err := store.List(ctx, ListFilter{Search: "AL", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	// sex filter
	found, err = store.List(ctx, ListFilter{Sex: domain.FEMALE, Limit: 10})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Alice Carter", found[0].Name)

	// age range, bounds inclusive
	found, err = store.List(ctx, ListFilter{AgeMin: 45, AgeMax: 52, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	// filters combine
	found, err = store.List(ctx, ListFilter{Search: "al", Sex: domain.MALE, AgeMin: 60, Limit: 10})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Albert Croft", found[0].Name)

	// count agrees with the filtered listing
	count, err := store.Count(ctx, ListFilter{Search: "al"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLiteStore_List_Pagination(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := store.Save(ctx, testRecord("patient"+string(rune('A'+i))))
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond) // Ensure different timestamps
	}

	page1, err := store.List(ctx, ListFilter{Limit: 2, Offset: 0})
	require.NoError(t, err)
	assert.Len(t, page1, 2)

	page2, err := store.List(ctx, ListFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page2, 2)

	page3, err := store.List(ctx, ListFilter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, page3, 1)
}

func TestSQLiteStore_Count(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := store.Save(ctx, testRecord("patient"+string(rune('A'+i))))
		require.NoError(t, err)
	}

	count, err := store.Count(ctx, ListFilter{})

	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	record := testRecord("J. Doe")
	err := store.Save(ctx, record)
	require.NoError(t, err)

	err = store.Delete(ctx, record.ID)
	require.NoError(t, err)

	_, err = store.Get(ctx, record.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_Delete_NotFound(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	err := store.Delete(context.Background(), "missing-id")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_Overview(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	low := testRecord("low")
	low.RiskPercent = 2.0
	low.RiskCategory = domain.RISK_LOW
	require.NoError(t, store.Save(ctx, low))

	high1 := testRecord("high1")
	high1.RiskPercent = 30.0
	high1.RiskCategory = domain.RISK_HIGH
	require.NoError(t, store.Save(ctx, high1))

	high2 := testRecord("high2")
	high2.RiskPercent = 40.0
	high2.RiskCategory = domain.RISK_HIGH
	require.NoError(t, store.Save(ctx, high2))

	ov, err := store.Overview(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(3), ov.TotalPatients)
	assert.InDelta(t, 24.0, ov.AverageRisk, 0.001)
	assert.Equal(t, int64(1), ov.CategoryCounts[domain.RISK_LOW])
	assert.Equal(t, int64(2), ov.CategoryCounts[domain.RISK_HIGH])
	assert.Equal(t, int64(2), ov.HighRiskPatients)
}

func TestSQLiteStore_Overview_Empty(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ov, err := store.Overview(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(0), ov.TotalPatients)
	assert.Zero(t, ov.AverageRisk)
	assert.Empty(t, ov.CategoryCounts)
}

func TestSQLiteStore_ExportJSON(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	record := testRecord("Export Me")
	err := store.Save(ctx, record)
	require.NoError(t, err)

	var buf bytes.Buffer
	err = store.ExportJSON(ctx, &buf)

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Export Me")
	assert.Contains(t, buf.String(), record.ID)
	assert.Contains(t, buf.String(), `"version"`)
	assert.Contains(t, buf.String(), `"count"`)
}

func TestSQLiteStore_ImportJSON(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	jsonData := `{
		"version": "1.0",
		"exported_at": "2026-03-01T10:00:00Z",
		"count": 2,
		"patients": [
			{
				"id": "11111111-1111-1111-1111-111111111111",
				"name": "First",
				"profile": {
					"sex": "male", "race": "white", "age": 55,
					"total_cholesterol": 213, "hdl_cholesterol": 50, "systolic_bp": 120
				},
				"risk_percent": 5.4,
				"risk_category": "borderline"
			},
			{
				"name": "Second",
				"profile": {
					"sex": "female", "race": "black", "age": 60,
					"total_cholesterol": 210, "hdl_cholesterol": 45, "systolic_bp": 140
				},
				"risk_percent": 11.0,
				"risk_category": "intermediate"
			}
		]
	}`

	imported, skipped, err := store.ImportJSON(ctx, bytes.NewReader([]byte(jsonData)))

	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Equal(t, 0, skipped)

	count, _ := store.Count(ctx, ListFilter{})
	assert.Equal(t, int64(2), count)

	first, err := store.Get(ctx, "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	assert.Equal(t, "First", first.Name)
	assert.Equal(t, domain.RISK_BORDERLINE, first.RiskCategory)
}

func TestSQLiteStore_ImportJSON_SkipDuplicates(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	existing := testRecord("Existing")
	err := store.Save(ctx, existing)
	require.NoError(t, err)

	jsonData := `{
		"version": "1.0",
		"count": 2,
		"patients": [
			{
				"id": "` + existing.ID + `",
				"name": "Overwrite Attempt",
				"profile": {
					"sex": "male", "race": "white", "age": 55,
					"total_cholesterol": 213, "hdl_cholesterol": 50, "systolic_bp": 120
				},
				"risk_percent": 99.0,
				"risk_category": "high"
			},
			{
				"name": "Fresh",
				"profile": {
					"sex": "female", "race": "white", "age": 45,
					"total_cholesterol": 190, "hdl_cholesterol": 55, "systolic_bp": 115
				},
				"risk_percent": 1.2,
				"risk_category": "low"
			}
		]
	}`

	imported, skipped, err := store.ImportJSON(ctx, bytes.NewReader([]byte(jsonData)))

	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)

	kept, _ := store.Get(ctx, existing.ID)
	assert.Equal(t, "Existing", kept.Name, "Existing should not be overwritten")
}

// Helper function to create a test store
func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "registry-test-*")
	require.NoError(t, err)

	t.Cleanup(func() {
		os.RemoveAll(tmpDir)
	})

	dbPath := filepath.Join(tmpDir, "test.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	return store
}
