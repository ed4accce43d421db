package risk

import (
	"github.com/ascvd-risk-server/internal/domain"
)

// lifestyleRecommendations is returned with every result regardless of
// input. Order and count are part of the result contract.
var lifestyleRecommendations = []string{
	"Adopt a heart-healthy diet emphasizing vegetables, fruits, whole grains and lean protein",
	"Engage in at least 150 minutes of moderate-intensity aerobic activity per week",
	"Achieve and maintain a healthy body weight",
	"Stop smoking and avoid secondhand smoke exposure",
	"Limit alcohol intake",
	"Manage stress and prioritize adequate sleep",
}

// Additional consideration notes, appended in fixed guard order.
const (
	considerationAspirin = "Age >= 65: discuss risks and benefits of low-dose aspirin " +
		"for primary prevention"
	considerationEnhancers = "Risk >= 7.5%: review risk-enhancing factors (family history, " +
		"CKD, metabolic syndrome, inflammatory disease) before finalizing therapy"
	considerationCAC = "Risk >= 5%: coronary artery calcium scoring may refine risk " +
		"assessment if the treatment decision is uncertain"
	considerationBPControl = "On antihypertensive therapy: maintain blood pressure control " +
		"with a target below 130/80 mmHg"
	considerationDiabetes = "Diabetes: maintain glycemic control with an HbA1c target " +
		"individualized to the patient"
)

// Guidance is the advisory portion of a risk result.
type Guidance struct {
	Lifestyle                []string
	AdditionalConsiderations []string
}

// Advise produces the fixed lifestyle checklist and the conditional
// considerations whose guards hold for this profile and risk level. Guard
// order is fixed; inclusion is a deterministic function of the inputs.
func Advise(profile *domain.PatientProfile, riskPercent float64) Guidance {
	considerations := make([]string, 0, 5)

	if profile.Age >= 65 {
		considerations = append(considerations, considerationAspirin)
	}
	if riskPercent >= 7.5 {
		considerations = append(considerations, considerationEnhancers)
	}
	if riskPercent >= 5 {
		considerations = append(considerations, considerationCAC)
	}
	if profile.OnBPTreatment {
		considerations = append(considerations, considerationBPControl)
	}
	if profile.Diabetes {
		considerations = append(considerations, considerationDiabetes)
	}

	lifestyle := make([]string, len(lifestyleRecommendations))
	copy(lifestyle, lifestyleRecommendations)

	return Guidance{
		Lifestyle:                lifestyle,
		AdditionalConsiderations: considerations,
	}
}
