package risk

import (
	"github.com/ascvd-risk-server/internal/domain"
)

// Statin recommendation tiers per the 2018 AHA/ACC cholesterol guideline.
const (
	StatinClassI = "High-intensity statin recommended (Class I recommendation)"

	StatinClassIIa = "Moderate to high-intensity statin recommended. " +
		"Consider risk enhancers and patient preferences (Class IIa recommendation)"

	StatinClassIIb = "Consider moderate-intensity statin if risk enhancers present " +
		"(Class IIb recommendation)"

	StatinLifestyleOnly = "Lifestyle modifications recommended. " +
		"Statin generally not indicated unless risk enhancers present"
)

// Classification bundles the three derived views of one risk percentage.
type Classification struct {
	Percentile           int                 `json:"percentile"`
	Category             domain.RiskCategory `json:"category"`
	StatinRecommendation string              `json:"statin_recommendation"`
}

// Classify maps a risk percentage to its percentile bucket, guideline
// category and statin recommendation tier. It is total over real input;
// values outside [0, 100] are treated as already clamped by the evaluator.
//
// All three bucketings must be derived from the same value: mixing rounded
// and unrounded inputs can disagree at the 5/7.5/20 boundaries.
func Classify(riskPercent float64) Classification {
	return Classification{
		Percentile:           percentileBucket(riskPercent),
		Category:             riskCategory(riskPercent),
		StatinRecommendation: statinRecommendation(riskPercent),
	}
}

// percentileBucket is a coarse presentation bucket, not a true population
// percentile. Exclusive upper bounds, first match wins.
func percentileBucket(riskPercent float64) int {
	switch {
	case riskPercent < 5:
		return 25
	case riskPercent < 7.5:
		return 40
	case riskPercent < 10:
		return 60
	case riskPercent < 20:
		return 80
	default:
		return 95
	}
}

func riskCategory(riskPercent float64) domain.RiskCategory {
	switch {
	case riskPercent < 5:
		return domain.RISK_LOW
	case riskPercent < 7.5:
		return domain.RISK_BORDERLINE
	case riskPercent < 20:
		return domain.RISK_INTERMEDIATE
	default:
		return domain.RISK_HIGH
	}
}

// statinRecommendation evaluates tiers from high to low so the 5-7.5 and
// 7.5-20 bands are handled before the low-risk fallback. Thresholds are
// inclusive on the high side: exactly 7.5 is Class IIa, exactly 20 is
// Class I.
func statinRecommendation(riskPercent float64) string {
	switch {
	case riskPercent >= 20:
		return StatinClassI
	case riskPercent >= 7.5:
		return StatinClassIIa
	case riskPercent >= 5:
		return StatinClassIIb
	default:
		return StatinLifestyleOnly
	}
}
