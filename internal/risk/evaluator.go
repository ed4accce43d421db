package risk

import (
	"math"

	"github.com/ascvd-risk-server/internal/domain"
)

// Evaluate computes the raw 10-year ASCVD risk percentage for a profile
// against one coefficient stratum.
//
// The individual linear predictor X uses exactly one blood-pressure branch
// (treated or untreated) and the smoker terms only when they apply. The
// population-mean predictor is the dot product of the coefficients with the
// per-term cohort means and always includes BOTH blood-pressure mean terms:
// this reproduces the published centering convention and must not be
// branched on treatment status.
//
// The returned value is clamped to [0, 100] and NOT rounded; rounding is a
// presentation step owned by the engine.
func Evaluate(profile *domain.PatientProfile, stratum CoefficientStratum) (float64, error) {
	if err := validatePositive(profile); err != nil {
		return 0, err
	}

	lnAge := math.Log(float64(profile.Age))
	lnTC := math.Log(profile.TotalCholesterol)
	lnHDL := math.Log(profile.HDLCholesterol)
	lnSBP := math.Log(profile.SystolicBP)

	c := stratum.Coefficients

	x := c.LnAge*lnAge +
		c.LnTotalChol*lnTC +
		c.LnHDL*lnHDL +
		c.LnAgeTotalChol*lnAge*lnTC +
		c.LnAgeHDL*lnAge*lnHDL

	if profile.OnBPTreatment {
		x += c.LnTreatedSysBP*lnSBP + c.LnAgeTreatedSysBP*lnAge*lnSBP
	} else {
		x += c.LnUntreatedSysBP*lnSBP + c.LnAgeUntreatedSysBP*lnAge*lnSBP
	}

	if profile.Smoker {
		x += c.Smoker + c.LnAgeSmoker*lnAge
	}

	if profile.Diabetes {
		x += c.Diabetes
	}

	xBar := meanLinearPredictor(stratum)

	// S0^exp(X-Xbar) computed via exp(exp(X-Xbar)*ln(S0)) to avoid
	// platform differences in fractional-exponent Pow.
	risk := 1 - math.Exp(math.Exp(x-xBar)*math.Log(stratum.BaseSurvival))

	return clamp(risk*100, 0, 100), nil
}

// meanLinearPredictor is the unconditional dot product of the stratum's
// coefficients with its per-term cohort means.
func meanLinearPredictor(stratum CoefficientStratum) float64 {
	c, m := stratum.Coefficients, stratum.Means

	return c.LnAge*m.LnAge +
		c.LnTotalChol*m.LnTotalChol +
		c.LnHDL*m.LnHDL +
		c.LnAgeTotalChol*m.LnAgeTotalChol +
		c.LnAgeHDL*m.LnAgeHDL +
		c.LnTreatedSysBP*m.LnTreatedSysBP +
		c.LnUntreatedSysBP*m.LnUntreatedSysBP +
		c.LnAgeTreatedSysBP*m.LnAgeTreatedSysBP +
		c.LnAgeUntreatedSysBP*m.LnAgeUntreatedSysBP +
		c.Smoker*m.Smoker +
		c.LnAgeSmoker*m.LnAgeSmoker +
		c.Diabetes*m.Diabetes
}

// validatePositive rejects any value that would enter a logarithm at or
// below zero. The check runs before any transform so a NaN can never reach
// the classifiers.
func validatePositive(p *domain.PatientProfile) error {
	if p.Age <= 0 {
		return &domain.InvalidInputError{Field: "age", Value: float64(p.Age), Reason: "must be positive"}
	}
	if p.TotalCholesterol <= 0 {
		return &domain.InvalidInputError{Field: "total_cholesterol", Value: p.TotalCholesterol, Reason: "must be positive"}
	}
	if p.HDLCholesterol <= 0 {
		return &domain.InvalidInputError{Field: "hdl_cholesterol", Value: p.HDLCholesterol, Reason: "must be positive"}
	}
	if p.SystolicBP <= 0 {
		return &domain.InvalidInputError{Field: "systolic_bp", Value: p.SystolicBP, Reason: "must be positive"}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
