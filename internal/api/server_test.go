package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ascvd-risk-server/internal/cache"
	"github.com/ascvd-risk-server/internal/config"
	"github.com/ascvd-risk-server/internal/domain"
	"github.com/ascvd-risk-server/internal/registry"
	"github.com/ascvd-risk-server/internal/risk"
)

// fakeStore is an in-memory PatientStore for handler tests.
type fakeStore struct {
	records map[string]*registry.PatientRecord
	nextID  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*registry.PatientRecord)}
}

func (f *fakeStore) Create(_ context.Context, record *registry.PatientRecord) error {
	if record.ID == "" {
		f.nextID++
		record.ID = "patient-" + string(rune('0'+f.nextID))
	}
	record.CreatedAt = time.Now().UTC()
	record.UpdatedAt = record.CreatedAt
	copied := *record
	f.records[record.ID] = &copied
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*registry.PatientRecord, error) {
	record, ok := f.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (f *fakeStore) matching(filter registry.ListFilter) []*registry.PatientRecord {
	var all []*registry.PatientRecord
	for _, record := range f.records {
		if filter.Search != "" && !strings.Contains(strings.ToLower(record.Name), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.Sex != "" && record.Profile.Sex != filter.Sex {
			continue
		}
		if filter.AgeMin > 0 && record.Profile.Age < filter.AgeMin {
			continue
		}
		if filter.AgeMax > 0 && record.Profile.Age > filter.AgeMax {
			continue
		}
		all = append(all, record)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

func (f *fakeStore) List(_ context.Context, filter registry.ListFilter) ([]*registry.PatientRecord, error) {
	all := f.matching(filter)

	if filter.Offset >= len(all) {
		return nil, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[filter.Offset:end], nil
}

func (f *fakeStore) Count(_ context.Context, filter registry.ListFilter) (int64, error) {
	return int64(len(f.matching(filter))), nil
}

func (f *fakeStore) Overview(_ context.Context) (*registry.Overview, error) {
	ov := &registry.Overview{CategoryCounts: make(map[domain.RiskCategory]int64)}
	var sum float64
	for _, record := range f.records {
		ov.TotalPatients++
		sum += record.RiskPercent
		ov.CategoryCounts[record.RiskCategory]++
	}
	if ov.TotalPatients > 0 {
		ov.AverageRisk = sum / float64(ov.TotalPatients)
	}
	ov.HighRiskPatients = ov.CategoryCounts[domain.RISK_HIGH]
	return ov, nil
}

func testServer(t *testing.T) (*Server, *fakeStore) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:          "127.0.0.1",
			Port:          0,
			RatePerSecond: 1000,
			RateBurst:     1000,
		},
		Logging: config.LoggingConfig{Level: "error", Format: "json"},
	}

	store := newFakeStore()
	engine := risk.NewEngine(logger)
	results := cache.NewMemoryCache(100, time.Minute)

	return NewServer(cfg, engine, store, results, nil, logger), store
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func referenceBody() map[string]any {
	return map[string]any{
		"sex": "male", "race": "white", "age": 55,
		"total_cholesterol": 213, "hdl_cholesterol": 50, "systolic_bp": 120,
	}
}

func TestHandleHealth(t *testing.T) {
	server, _ := testServer(t)

	rec := doJSON(t, server, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestHandleComputeRisk(t *testing.T) {
	server, _ := testServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/risk/ascvd", referenceBody())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Result domain.RiskResult `json:"result"`
		Cached bool              `json:"cached"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.InDelta(t, 5.4, resp.Result.RiskPercent, 0.001)
	assert.Equal(t, 40, resp.Result.Percentile)
	assert.Equal(t, domain.RISK_BORDERLINE, resp.Result.RiskCategory)
	assert.False(t, resp.Cached)

	// identical request is served from cache
	rec = doJSON(t, server, http.MethodPost, "/api/v1/risk/ascvd", referenceBody())
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
	assert.InDelta(t, 5.4, resp.Result.RiskPercent, 0.001)
}

func TestHandleComputeRisk_InvalidProfile(t *testing.T) {
	server, _ := testServer(t)

	body := referenceBody()
	body["total_cholesterol"] = 0

	rec := doJSON(t, server, http.MethodPost, "/api/v1/risk/ascvd", body)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.ErrCodeInvalidInput)
}

func TestHandleComputeRisk_AgeOutOfDomain(t *testing.T) {
	server, _ := testServer(t)

	for _, age := range []int{39, 80} {
		body := referenceBody()
		body["age"] = age

		rec := doJSON(t, server, http.MethodPost, "/api/v1/risk/ascvd", body)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "fit domain")
	}
}

func TestHandleComputeRisk_UnknownSex(t *testing.T) {
	server, _ := testServer(t)

	body := referenceBody()
	body["sex"] = "nonbinary"

	rec := doJSON(t, server, http.MethodPost, "/api/v1/risk/ascvd", body)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleComputeRisk_MalformedJSON(t *testing.T) {
	server, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/risk/ascvd", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreatePatient(t *testing.T) {
	server, store := testServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/patients", map[string]any{
		"name":    "J. Doe",
		"profile": referenceBody(),
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Patient registry.PatientRecord `json:"patient"`
		Result  domain.RiskResult      `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.Patient.ID)
	assert.Equal(t, "J. Doe", resp.Patient.Name)
	assert.InDelta(t, 5.4, resp.Patient.RiskPercent, 0.001)
	assert.Equal(t, domain.RISK_BORDERLINE, resp.Patient.RiskCategory)

	stored, err := store.GetByID(context.Background(), resp.Patient.ID)
	require.NoError(t, err)
	assert.Equal(t, "J. Doe", stored.Name)
}

func TestHandleCreatePatient_InvalidProfile(t *testing.T) {
	server, store := testServer(t)

	body := referenceBody()
	body["systolic_bp"] = -5

	rec := doJSON(t, server, http.MethodPost, "/api/v1/patients", map[string]any{
		"name":    "Bad",
		"profile": body,
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	count, _ := store.Count(context.Background(), registry.ListFilter{})
	assert.Zero(t, count, "nothing should be stored on invalid input")
}

func TestHandleGetPatient(t *testing.T) {
	server, store := testServer(t)

	record := &registry.PatientRecord{
		Name: "A. Smith",
		Profile: domain.PatientProfile{
			Sex: domain.FEMALE, Race: domain.BLACK, Age: 60,
			TotalCholesterol: 210, HDLCholesterol: 45, SystolicBP: 140,
		},
		RiskPercent:  11.0,
		RiskCategory: domain.RISK_INTERMEDIATE,
	}
	require.NoError(t, store.Create(context.Background(), record))

	rec := doJSON(t, server, http.MethodGet, "/api/v1/patients/"+record.ID, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "A. Smith")
}

func TestHandleGetPatient_NotFound(t *testing.T) {
	server, _ := testServer(t)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/patients/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.ErrCodeNotFound)
}

func TestHandleGetPatientRisk(t *testing.T) {
	server, store := testServer(t)

	record := &registry.PatientRecord{
		Name: "J. Doe",
		Profile: domain.PatientProfile{
			Sex: domain.MALE, Race: domain.WHITE, Age: 55,
			TotalCholesterol: 213, HDLCholesterol: 50, SystolicBP: 120,
		},
		// stale snapshot, recomputation should not read these
		RiskPercent:  99.0,
		RiskCategory: domain.RISK_HIGH,
	}
	require.NoError(t, store.Create(context.Background(), record))

	rec := doJSON(t, server, http.MethodGet, "/api/v1/patients/"+record.ID+"/risk", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		PatientID string            `json:"patient_id"`
		Result    domain.RiskResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, record.ID, resp.PatientID)
	assert.InDelta(t, 5.4, resp.Result.RiskPercent, 0.001)
}

func TestHandleListPatients(t *testing.T) {
	server, store := testServer(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Create(context.Background(), &registry.PatientRecord{
			Name: "patient",
			Profile: domain.PatientProfile{
				Sex: domain.MALE, Race: domain.WHITE, Age: 55,
				TotalCholesterol: 213, HDLCholesterol: 50, SystolicBP: 120,
			},
			RiskPercent:  5.4,
			RiskCategory: domain.RISK_BORDERLINE,
		}))
	}

	rec := doJSON(t, server, http.MethodGet, "/api/v1/patients?limit=2&offset=0", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Patients []registry.PatientRecord `json:"patients"`
		Total    int64                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Patients, 2)
	assert.Equal(t, int64(3), resp.Total)
}

func TestHandleListPatients_Filtered(t *testing.T) {
	server, store := testServer(t)

	seed := []struct {
		name string
		sex  domain.Sex
		age  int
	}{
		{"Alice Carter", domain.FEMALE, 52},
		{"Albert Croft", domain.MALE, 67},
		{"Bob Deane", domain.MALE, 45},
	}
	for _, p := range seed {
		require.NoError(t, store.Create(context.Background(), &registry.PatientRecord{
			Name: p.name,
			Profile: domain.PatientProfile{
				Sex: p.sex, Race: domain.WHITE, Age: p.age,
				TotalCholesterol: 213, HDLCholesterol: 50, SystolicBP: 120,
			},
			RiskPercent:  5.4,
			RiskCategory: domain.RISK_BORDERLINE,
		}))
	}

	var resp struct {
		Patients []registry.PatientRecord `json:"patients"`
		Total    int64                    `json:"total"`
	}

	// case-insensitive name search
	rec := doJSON(t, server, http.MethodGet, "/api/v1/patients?search=al", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Total)
	assert.Len(t, resp.Patients, 2)

	// sex and age-range filters combine
	rec = doJSON(t, server, http.MethodGet, "/api/v1/patients?sex=male&age_min=50&age_max=70", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Patients, 1)
	assert.Equal(t, "Albert Croft", resp.Patients[0].Name)
	assert.Equal(t, int64(1), resp.Total)
}

func TestHandleListPatients_InvalidSexFilter(t *testing.T) {
	server, _ := testServer(t)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/patients?sex=unknown", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.ErrCodeInvalidInput)
}

func TestHandleListPatients_Empty(t *testing.T) {
	server, _ := testServer(t)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/patients", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"patients":[]`)
}

func TestHandleAnalyticsOverview(t *testing.T) {
	server, store := testServer(t)

	profiles := []struct {
		risk     float64
		category domain.RiskCategory
	}{
		{2.0, domain.RISK_LOW},
		{30.0, domain.RISK_HIGH},
		{40.0, domain.RISK_HIGH},
	}
	for _, p := range profiles {
		require.NoError(t, store.Create(context.Background(), &registry.PatientRecord{
			Profile: domain.PatientProfile{
				Sex: domain.MALE, Race: domain.WHITE, Age: 55,
				TotalCholesterol: 213, HDLCholesterol: 50, SystolicBP: 120,
			},
			RiskPercent:  p.risk,
			RiskCategory: p.category,
		}))
	}

	rec := doJSON(t, server, http.MethodGet, "/api/v1/analytics/overview", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Overview registry.Overview `json:"overview"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.Overview.TotalPatients)
	assert.InDelta(t, 24.0, resp.Overview.AverageRisk, 0.001)
	assert.Equal(t, int64(2), resp.Overview.HighRiskPatients)
}

func TestRateLimit(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		Server: config.ServerConfig{
			RatePerSecond: 1,
			RateBurst:     1,
		},
		Logging: config.LoggingConfig{Level: "error"},
	}

	server := NewServer(cfg, risk.NewEngine(logger), newFakeStore(),
		cache.NewMemoryCache(10, time.Minute), nil, logger)

	first := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, first.Code)

	second := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), domain.ErrCodeRateLimit)
}
