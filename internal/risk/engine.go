package risk

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/ascvd-risk-server/internal/domain"
)

// Engine is the single exposed surface of the risk core. It orchestrates
// stratum resolution, formula evaluation, classification and guidance into
// one result record. Stateless between calls; safe for concurrent use.
type Engine struct {
	logger *logrus.Logger
}

// NewEngine creates a new risk engine.
func NewEngine(logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{logger: logger}
}

// ComputeRisk evaluates the Pooled Cohort Equations for one profile.
//
// Fails with *domain.UnknownStratumError when sex has no fitted stratum and
// with *domain.InvalidInputError when a value that enters a logarithm is not
// positive. Errors propagate synchronously; a failed evaluation never yields
// a default numeric result.
func (e *Engine) ComputeRisk(profile *domain.PatientProfile) (*domain.RiskResult, error) {
	stratum, err := ResolveStratum(profile.Sex, profile.Race)
	if err != nil {
		return nil, err
	}

	if !profile.InFitDomain() {
		// Caller contract: the model is unvalidated outside [40, 79].
		e.logger.WithFields(logrus.Fields{
			"age":     profile.Age,
			"min_age": domain.MinModelAge,
			"max_age": domain.MaxModelAge,
		}).Warn("Age outside Pooled Cohort Equations fit domain")
	}

	rawPercent, err := Evaluate(profile, stratum)
	if err != nil {
		return nil, err
	}

	// Classification and guidance share the unrounded value so the
	// bucketings cannot disagree with each other across a boundary.
	classification := Classify(rawPercent)
	guidance := Advise(profile, rawPercent)

	result := &domain.RiskResult{
		RiskPercent:              roundToTenth(rawPercent),
		Percentile:               classification.Percentile,
		RiskCategory:             classification.Category,
		StatinRecommendation:     classification.StatinRecommendation,
		Lifestyle:                guidance.Lifestyle,
		AdditionalConsiderations: guidance.AdditionalConsiderations,
	}

	e.logger.WithFields(logrus.Fields{
		"sex":           profile.Sex,
		"race":          profile.Race,
		"age":           profile.Age,
		"risk_percent":  result.RiskPercent,
		"risk_category": result.RiskCategory,
		"percentile":    result.Percentile,
	}).Info("ASCVD risk computed")

	return result, nil
}

func roundToTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
