// Package domain contains core business entities and types for ASCVD
// (atherosclerotic cardiovascular disease) 10-year risk estimation following
// the 2013 ACC/AHA Pooled Cohort Equations.
//
// Reference: Goff et al. (2013) ACC/AHA Guideline on the Assessment of
// Cardiovascular Risk. Circulation. 129(25 Suppl 2):S49-73.
// doi: 10.1161/01.cir.0000437741.48606.98
package domain

import (
	"errors"
	"fmt"
)

// Sex is the biological sex stratum of the Pooled Cohort Equations.
// The model was fit separately for men and women; there is no default.
type Sex string

const (
	MALE   Sex = "male"
	FEMALE Sex = "female"
)

// Race is the race stratum of the Pooled Cohort Equations. The published
// model was fit for white and African American cohorts; OTHER is a defined
// alias for the same-sex white stratum, not a separate fit.
type Race string

const (
	WHITE Race = "white"
	BLACK Race = "black"
	OTHER Race = "other"
)

// RiskCategory is the four-level guideline risk category derived from the
// 10-year risk percentage.
//
// Reference: 2018 AHA/ACC Cholesterol Guideline, Section 4.4.1
type RiskCategory string

const (
	RISK_LOW          RiskCategory = "low"
	RISK_BORDERLINE   RiskCategory = "borderline"
	RISK_INTERMEDIATE RiskCategory = "intermediate"
	RISK_HIGH         RiskCategory = "high"
)

// Fit domain of the Pooled Cohort Equations. The model is unvalidated
// outside this age range; enforcement is a caller contract, the engine
// itself only flags it.
const (
	MinModelAge = 40
	MaxModelAge = 79
)

// Validation errors for clinical data integrity
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidSex      = errors.New("invalid sex: must be male or female")
	ErrInvalidRace     = errors.New("invalid race: must be white, black or other")
	ErrInvalidCategory = errors.New("invalid risk category")
)

// IsValid validates the sex stratum. Critical for clinical software: an
// unrecognized sex must never silently resolve to a coefficient set.
func (s Sex) IsValid() bool {
	switch s {
	case MALE, FEMALE:
		return true
	default:
		return false
	}
}

// String returns the string representation for logging and audit trails.
func (s Sex) String() string {
	return string(s)
}

// IsValid validates the race stratum.
func (r Race) IsValid() bool {
	switch r {
	case WHITE, BLACK, OTHER:
		return true
	default:
		return false
	}
}

// String returns the string representation for logging and audit trails.
func (r Race) String() string {
	return string(r)
}

// IsValid validates the risk category.
func (rc RiskCategory) IsValid() bool {
	switch rc {
	case RISK_LOW, RISK_BORDERLINE, RISK_INTERMEDIATE, RISK_HIGH:
		return true
	default:
		return false
	}
}

// String returns the string representation for logging and audit trails.
func (rc RiskCategory) String() string {
	return string(rc)
}

// ClinicalSignificance returns a human-readable description of the risk
// category for clinical reporting and patient communication.
func (rc RiskCategory) ClinicalSignificance() string {
	switch rc {
	case RISK_LOW:
		return "Low risk - 10-year ASCVD risk below 5%"
	case RISK_BORDERLINE:
		return "Borderline risk - 10-year ASCVD risk 5% to 7.5%"
	case RISK_INTERMEDIATE:
		return "Intermediate risk - 10-year ASCVD risk 7.5% to 20%"
	case RISK_HIGH:
		return "High risk - 10-year ASCVD risk 20% or greater"
	default:
		return "Unknown risk category"
	}
}

// PatientProfile is the validated clinical input to one risk evaluation.
// The profile is caller-owned and treated as immutable for the duration of
// the computation.
type PatientProfile struct {
	Sex  Sex  `json:"sex"`
	Race Race `json:"race"`

	// Age in years. Model fit domain is [40, 79].
	Age int `json:"age"`

	// Lipids in mg/dL. Both enter the model under a natural log and must
	// be strictly positive.
	TotalCholesterol float64 `json:"total_cholesterol"`
	HDLCholesterol   float64 `json:"hdl_cholesterol"`

	// Systolic blood pressure in mmHg, strictly positive.
	SystolicBP float64 `json:"systolic_bp"`

	OnBPTreatment bool `json:"on_bp_treatment"`
	Diabetes      bool `json:"diabetes"`
	Smoker        bool `json:"smoker"`
}

// Validate ensures the profile meets the engine's input contract. Numeric
// positivity is re-checked by the evaluator before taking logarithms; this
// method is the single entry point for boundary validation.
func (p *PatientProfile) Validate() error {
	if !p.Sex.IsValid() {
		return fmt.Errorf("patient profile validation: %w", ErrInvalidSex)
	}
	if !p.Race.IsValid() {
		return fmt.Errorf("patient profile validation: %w", ErrInvalidRace)
	}
	if p.Age <= 0 {
		return &InvalidInputError{Field: "age", Value: float64(p.Age), Reason: "must be positive"}
	}
	if p.TotalCholesterol <= 0 {
		return &InvalidInputError{Field: "total_cholesterol", Value: p.TotalCholesterol, Reason: "must be positive"}
	}
	if p.HDLCholesterol <= 0 {
		return &InvalidInputError{Field: "hdl_cholesterol", Value: p.HDLCholesterol, Reason: "must be positive"}
	}
	if p.SystolicBP <= 0 {
		return &InvalidInputError{Field: "systolic_bp", Value: p.SystolicBP, Reason: "must be positive"}
	}
	return nil
}

// InFitDomain reports whether the age falls inside the model's validated
// range. Out-of-domain ages are a caller contract, not an engine error.
func (p *PatientProfile) InFitDomain() bool {
	return p.Age >= MinModelAge && p.Age <= MaxModelAge
}

// RiskResult is the complete output of one risk evaluation. A fresh value is
// constructed per call and never mutated afterwards.
type RiskResult struct {
	// RiskPercent is the 10-year ASCVD risk in [0, 100], rounded to one
	// decimal place for presentation.
	RiskPercent float64 `json:"risk_percent"`

	// Percentile is a coarse presentation bucket {25, 40, 60, 80, 95},
	// not a true population percentile.
	Percentile int `json:"percentile"`

	RiskCategory RiskCategory `json:"risk_category"`

	// StatinRecommendation is the guideline-tier recommendation string
	// (Class I / IIa / IIb / lifestyle-only).
	StatinRecommendation string `json:"statin_recommendation"`

	// Lifestyle is a fixed, ordered six-item recommendation list,
	// independent of input.
	Lifestyle []string `json:"lifestyle"`

	// AdditionalConsiderations holds zero to five conditional notes in a
	// fixed guard order.
	AdditionalConsiderations []string `json:"additional_considerations"`
}
