package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ascvd-risk-server/internal/domain"
	"github.com/ascvd-risk-server/internal/registry"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	checks := gin.H{}

	if s.db != nil {
		if err := s.db.Health(c.Request.Context()); err != nil {
			status = "degraded"
			checks["database"] = "unreachable"
		} else {
			checks["database"] = "ok"
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	})
}

// handleComputeRisk computes a 10-year ASCVD risk estimate for a profile
// without persisting anything.
func (s *Server) handleComputeRisk(c *gin.Context) {
	var profile domain.PatientProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Invalid request body", err.Error())
		return
	}

	if !s.validateProfile(c, &profile) {
		return
	}

	if cached, ok := s.results.Get(c.Request.Context(), &profile); ok {
		c.JSON(http.StatusOK, gin.H{
			"result": cached,
			"cached": true,
		})
		return
	}

	result, err := s.engine.ComputeRisk(&profile)
	if err != nil {
		s.respondComputeError(c, err)
		return
	}

	s.results.Set(c.Request.Context(), &profile, result)

	c.JSON(http.StatusOK, gin.H{
		"result": result,
		"cached": false,
	})
}

// createPatientRequest is the payload for patient registration.
type createPatientRequest struct {
	Name    string                `json:"name"`
	Profile domain.PatientProfile `json:"profile" binding:"required"`
}

// handleCreatePatient assesses a profile and stores the patient record.
func (s *Server) handleCreatePatient(c *gin.Context) {
	var req createPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Invalid request body", err.Error())
		return
	}

	if !s.validateProfile(c, &req.Profile) {
		return
	}

	result, err := s.engine.ComputeRisk(&req.Profile)
	if err != nil {
		s.respondComputeError(c, err)
		return
	}

	record := &registry.PatientRecord{
		Name:         req.Name,
		Profile:      req.Profile,
		RiskPercent:  result.RiskPercent,
		RiskCategory: result.RiskCategory,
	}

	if err := s.store.Create(c.Request.Context(), record); err != nil {
		s.log.WithError(err).Error("Failed to store patient record")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "Failed to store patient record", "")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"patient": record,
		"result":  result,
	})
}

// handleListPatients searches and lists stored patients. Supports free-text
// name search plus sex and age-range filters; the returned total counts the
// filtered set, not the whole registry.
func (s *Server) handleListPatients(c *gin.Context) {
	filter := registry.ListFilter{
		Search: c.Query("search"),
		AgeMin: parseQueryInt(c, "age_min", 0, 0, 150),
		AgeMax: parseQueryInt(c, "age_max", 0, 0, 150),
		Limit:  parseQueryInt(c, "limit", 20, 1, 100),
		Offset: parseQueryInt(c, "offset", 0, 0, 1<<30),
	}

	if sex := c.Query("sex"); sex != "" {
		filter.Sex = domain.Sex(sex)
		if !filter.Sex.IsValid() {
			s.respondError(c, http.StatusUnprocessableEntity, domain.ErrCodeInvalidInput, "Invalid sex filter", sex)
			return
		}
	}

	records, err := s.store.List(c.Request.Context(), filter)
	if err != nil {
		s.log.WithError(err).Error("Failed to list patient records")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "Failed to list patients", "")
		return
	}

	total, err := s.store.Count(c.Request.Context(), filter)
	if err != nil {
		s.log.WithError(err).Error("Failed to count patient records")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "Failed to count patients", "")
		return
	}

	if records == nil {
		records = []*registry.PatientRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"patients": records,
		"total":    total,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

// handleGetPatient retrieves a stored patient record.
func (s *Server) handleGetPatient(c *gin.Context) {
	record, ok := s.lookupPatient(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"patient": record})
}

// handleGetPatientRisk recomputes the current risk for a stored profile so
// the response reflects the latest guidance, not a stale snapshot.
func (s *Server) handleGetPatientRisk(c *gin.Context) {
	record, ok := s.lookupPatient(c)
	if !ok {
		return
	}

	result, err := s.engine.ComputeRisk(&record.Profile)
	if err != nil {
		s.respondComputeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"patient_id": record.ID,
		"result":     result,
	})
}

// handleAnalyticsOverview reports registry-wide aggregates.
func (s *Server) handleAnalyticsOverview(c *gin.Context) {
	overview, err := s.store.Overview(c.Request.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to compute analytics overview")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "Failed to compute overview", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"overview": overview})
}

// validateProfile enforces the clinical input contract at the API boundary,
// including the model's [40, 79] age fit domain which the engine itself only
// warns about.
func (s *Server) validateProfile(c *gin.Context, profile *domain.PatientProfile) bool {
	if err := profile.Validate(); err != nil {
		s.respondError(c, http.StatusUnprocessableEntity, domain.ErrCodeInvalidInput, "Invalid patient profile", err.Error())
		return false
	}

	if !profile.InFitDomain() {
		s.respondError(c, http.StatusUnprocessableEntity, domain.ErrCodeInvalidInput,
			"Age outside model fit domain",
			fmt.Sprintf("age %d is outside [%d, %d]", profile.Age, domain.MinModelAge, domain.MaxModelAge))
		return false
	}

	return true
}

func (s *Server) lookupPatient(c *gin.Context) (*registry.PatientRecord, bool) {
	id := c.Param("id")

	record, err := s.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.respondError(c, http.StatusNotFound, domain.ErrCodeNotFound, "Patient not found", id)
			return nil, false
		}
		s.log.WithFields(logrus.Fields{
			"patient_id": id,
			"error":      err,
		}).Error("Failed to get patient record")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "Failed to get patient", "")
		return nil, false
	}

	return record, true
}

// respondComputeError maps engine errors onto HTTP responses.
func (s *Server) respondComputeError(c *gin.Context, err error) {
	var inputErr *domain.InvalidInputError
	var stratumErr *domain.UnknownStratumError

	switch {
	case errors.As(err, &inputErr):
		s.respondError(c, http.StatusUnprocessableEntity, domain.ErrCodeInvalidInput, "Invalid risk factor value", inputErr.Error())
	case errors.As(err, &stratumErr):
		s.respondError(c, http.StatusUnprocessableEntity, domain.ErrCodeUnknownStratum, "No coefficient stratum for profile", stratumErr.Error())
	default:
		s.log.WithError(err).Error("Risk computation failed")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeInternalServer, "Risk computation failed", "")
	}
}

func (s *Server) respondError(c *gin.Context, status int, code, message, details string) {
	apiErr := domain.NewAPIError(code, message, details, c.GetString("request_id"))
	c.JSON(status, apiErr)
}

func parseQueryInt(c *gin.Context, name string, def, min, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return def
	}
	return n
}
