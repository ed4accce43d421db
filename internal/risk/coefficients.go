// Package risk implements the ASCVD 10-year risk engine: the 2013 ACC/AHA
// Pooled Cohort Equations, a stratified log-linear survival model that maps a
// patient's clinical profile to a 10-year atherosclerotic cardiovascular
// disease risk probability, a guideline risk category and a statin-therapy
// recommendation tier.
//
// The engine is a pure, synchronous computation over immutable inputs and
// constant tables. It performs no I/O and holds no mutable shared state, so
// concurrent use needs no coordination.
package risk

import (
	"github.com/ascvd-risk-server/internal/domain"
)

// CoefficientSet holds the twelve named regression terms of one stratum.
// The same fixed-field shape is used both for the fitted coefficients and
// for the cohort mean value of each term, so a missing or misspelled entry
// is a compile-time error rather than a runtime zero.
type CoefficientSet struct {
	LnAge               float64
	LnTotalChol         float64
	LnHDL               float64
	LnAgeTotalChol      float64
	LnAgeHDL            float64
	LnTreatedSysBP      float64
	LnUntreatedSysBP    float64
	LnAgeTreatedSysBP   float64
	LnAgeUntreatedSysBP float64
	Smoker              float64
	LnAgeSmoker         float64
	Diabetes            float64
}

// CoefficientStratum is one (sex, race) parameter set of the Pooled Cohort
// Equations: regression coefficients, per-term cohort means used for
// centering, and the stratum's 10-year baseline survival S0.
//
// The tables are constant for the process lifetime and never mutated.
type CoefficientStratum struct {
	Coefficients CoefficientSet
	Means        CoefficientSet
	BaseSurvival float64
}

// stratumKey identifies one of the four fitted strata.
type stratumKey struct {
	sex  domain.Sex
	race domain.Race
}

// The four fitted strata of the 2013 Pooled Cohort Equations (Goff et al.,
// Appendix 7, Table A). Cohort mean values are stored per term, including
// both treated- and untreated-BP expectations, so that the dot product of
// coefficients and means reproduces the published overall mean linear
// predictor (61.18 male-white, 19.54 male-black, 86.61 female-black).
//
// The white-female stratum's published quadratic age term has no slot in
// this schema; its contribution is folded into LnAge by linearization about
// the cohort mean ln-age (the constant offset cancels under centering),
// which is why the stored value differs from the published -29.799.
var strata = map[stratumKey]CoefficientStratum{
	{domain.MALE, domain.WHITE}: {
		Coefficients: CoefficientSet{
			LnAge:               12.344,
			LnTotalChol:         11.853,
			LnHDL:               -7.990,
			LnAgeTotalChol:      -2.664,
			LnAgeHDL:            1.769,
			LnTreatedSysBP:      1.797,
			LnUntreatedSysBP:    1.764,
			LnAgeTreatedSysBP:   0,
			LnAgeUntreatedSysBP: 0,
			Smoker:              7.837,
			LnAgeSmoker:         -1.795,
			Diabetes:            0.658,
		},
		Means: CoefficientSet{
			LnAge:               4.0296,
			LnTotalChol:         5.3420,
			LnHDL:               3.8470,
			LnAgeTotalChol:      21.5260,
			LnAgeHDL:            15.5018,
			LnTreatedSysBP:      0.6443,
			LnUntreatedSysBP:    4.2006,
			LnAgeTreatedSysBP:   2.5961,
			LnAgeUntreatedSysBP: 16.9268,
			Smoker:              0.2780,
			LnAgeSmoker:         1.1202,
			Diabetes:            0.0680,
		},
		BaseSurvival: 0.9144,
	},
	{domain.MALE, domain.BLACK}: {
		Coefficients: CoefficientSet{
			LnAge:               2.469,
			LnTotalChol:         0.302,
			LnHDL:               -0.307,
			LnAgeTotalChol:      0,
			LnAgeHDL:            0,
			LnTreatedSysBP:      1.916,
			LnUntreatedSysBP:    1.809,
			LnAgeTreatedSysBP:   0,
			LnAgeUntreatedSysBP: 0,
			Smoker:              0.549,
			LnAgeSmoker:         0,
			Diabetes:            0.645,
		},
		Means: CoefficientSet{
			LnAge:               4.0098,
			LnTotalChol:         5.3200,
			LnHDL:               3.9360,
			LnAgeTotalChol:      21.3324,
			LnAgeHDL:            15.7828,
			LnTreatedSysBP:      1.2957,
			LnUntreatedSysBP:    3.5963,
			LnAgeTreatedSysBP:   5.1957,
			LnAgeUntreatedSysBP: 14.4205,
			Smoker:              0.3060,
			LnAgeSmoker:         1.2270,
			Diabetes:            0.1320,
		},
		BaseSurvival: 0.8954,
	},
	{domain.FEMALE, domain.WHITE}: {
		Coefficients: CoefficientSet{
			LnAge:               9.5172,
			LnTotalChol:         13.540,
			LnHDL:               -13.578,
			LnAgeTotalChol:      -3.114,
			LnAgeHDL:            3.149,
			LnTreatedSysBP:      2.019,
			LnUntreatedSysBP:    1.957,
			LnAgeTreatedSysBP:   0,
			LnAgeUntreatedSysBP: 0,
			Smoker:              7.574,
			LnAgeSmoker:         -1.665,
			Diabetes:            0.661,
		},
		Means: CoefficientSet{
			LnAge:               4.0250,
			LnTotalChol:         5.3740,
			LnHDL:               4.0250,
			LnAgeTotalChol:      21.6303,
			LnAgeHDL:            16.2006,
			LnTreatedSysBP:      0.7423,
			LnUntreatedSysBP:    4.0904,
			LnAgeTreatedSysBP:   2.9878,
			LnAgeUntreatedSysBP: 16.4637,
			Smoker:              0.2460,
			LnAgeSmoker:         0.9902,
			Diabetes:            0.0540,
		},
		BaseSurvival: 0.9665,
	},
	{domain.FEMALE, domain.BLACK}: {
		Coefficients: CoefficientSet{
			LnAge:               17.114,
			LnTotalChol:         0.940,
			LnHDL:               -18.920,
			LnAgeTotalChol:      0,
			LnAgeHDL:            4.475,
			LnTreatedSysBP:      29.291,
			LnUntreatedSysBP:    27.820,
			LnAgeTreatedSysBP:   -6.432,
			LnAgeUntreatedSysBP: -6.087,
			Smoker:              0.691,
			LnAgeSmoker:         0,
			Diabetes:            0.874,
		},
		Means: CoefficientSet{
			LnAge:               3.9548,
			LnTotalChol:         5.3060,
			LnHDL:               4.0540,
			LnAgeTotalChol:      20.9843,
			LnAgeHDL:            16.0328,
			LnTreatedSysBP:      1.6491,
			LnUntreatedSysBP:    3.2664,
			LnAgeTreatedSysBP:   6.5218,
			LnAgeUntreatedSysBP: 12.9180,
			Smoker:              0.2220,
			LnAgeSmoker:         0.8780,
			Diabetes:            0.1680,
		},
		BaseSurvival: 0.9533,
	},
}

// ResolveStratum returns the coefficient stratum for a (sex, race) pair.
// Race OTHER resolves to the same-sex WHITE stratum: the published equations
// have no fitted "other" model and define the reuse explicitly. An
// unrecognized sex fails with UnknownStratumError; it never defaults.
func ResolveStratum(sex domain.Sex, race domain.Race) (CoefficientStratum, error) {
	if !sex.IsValid() {
		return CoefficientStratum{}, &domain.UnknownStratumError{Sex: sex}
	}

	r := race
	if r != domain.BLACK {
		// white and other share the same fit, per stratum definition
		r = domain.WHITE
	}

	return strata[stratumKey{sex, r}], nil
}
