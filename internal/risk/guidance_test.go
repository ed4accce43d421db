package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ascvd-risk-server/internal/domain"
)

func TestAdvise_LifestyleListIsFixed(t *testing.T) {
	lowRisk := domain.PatientProfile{
		Sex: domain.MALE, Race: domain.WHITE, Age: 45,
		TotalCholesterol: 180, HDLCholesterol: 60, SystolicBP: 110,
	}
	highRisk := domain.PatientProfile{
		Sex: domain.FEMALE, Race: domain.BLACK, Age: 75,
		TotalCholesterol: 260, HDLCholesterol: 30, SystolicBP: 170,
		OnBPTreatment: true, Diabetes: true, Smoker: true,
	}

	a := Advise(&lowRisk, 1.0)
	b := Advise(&highRisk, 60.0)

	require.Len(t, a.Lifestyle, 6)
	assert.Equal(t, a.Lifestyle, b.Lifestyle, "lifestyle list is independent of input")
}

func TestAdvise_GuardOrder(t *testing.T) {
	// Age 70, risk 8.0, on BP treatment, no diabetes: the aspirin,
	// risk-enhancer, calcium-scoring and BP-control guards all fire, in
	// that order.
	profile := domain.PatientProfile{
		Sex: domain.MALE, Race: domain.WHITE, Age: 70,
		TotalCholesterol: 190, HDLCholesterol: 55, SystolicBP: 130,
		OnBPTreatment: true,
	}

	g := Advise(&profile, 8.0)
	require.Len(t, g.AdditionalConsiderations, 4)
	assert.Equal(t, considerationAspirin, g.AdditionalConsiderations[0])
	assert.Equal(t, considerationEnhancers, g.AdditionalConsiderations[1])
	assert.Equal(t, considerationCAC, g.AdditionalConsiderations[2])
	assert.Equal(t, considerationBPControl, g.AdditionalConsiderations[3])
}

func TestAdvise_Guards(t *testing.T) {
	base := domain.PatientProfile{
		Sex: domain.MALE, Race: domain.WHITE, Age: 50,
		TotalCholesterol: 200, HDLCholesterol: 50, SystolicBP: 120,
	}

	tests := []struct {
		name    string
		mutate  func(p *domain.PatientProfile)
		risk    float64
		want    int
		contain []string
	}{
		{"none fire", nil, 2.0, 0, nil},
		{"calcium scoring only", nil, 5.0, 1, []string{considerationCAC}},
		{"enhancers and calcium", nil, 7.5, 2, []string{considerationEnhancers, considerationCAC}},
		{
			"aspirin at 65",
			func(p *domain.PatientProfile) { p.Age = 65 },
			2.0, 1, []string{considerationAspirin},
		},
		{
			"diabetes note",
			func(p *domain.PatientProfile) { p.Diabetes = true },
			2.0, 1, []string{considerationDiabetes},
		},
		{
			"all five",
			func(p *domain.PatientProfile) { p.Age = 70; p.OnBPTreatment = true; p.Diabetes = true },
			25.0, 5, nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := base
			if tt.mutate != nil {
				tt.mutate(&profile)
			}

			g := Advise(&profile, tt.risk)
			assert.Len(t, g.AdditionalConsiderations, tt.want)
			for _, s := range tt.contain {
				assert.Contains(t, g.AdditionalConsiderations, s)
			}
		})
	}
}
