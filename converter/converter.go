package converter

import (
	"fmt"
	"strings"

	"github.com/KennyKvn001/PipelineSummatives/models"
)

// Params holds the per-feature standardization statistics captured at
// training time. They must stay in sync with the scaling basis of the
// persisted preprocessor: a drift here silently corrupts predictions.
type Params struct {
	Mean float64
	Std  float64
}

// Converter maps user-facing natural-unit input into the standardized
// representation the model expects.
type Converter struct {
	params map[string]Params
}

// NewConverter creates a converter with the fixed training-time statistics
func NewConverter() *Converter {
	return &Converter{
		params: map[string]Params{
			"Curricular_units_2nd_sem_approved": {Mean: 10.5, Std: 4.6},
			"Curricular_units_2nd_sem_grade":    {Mean: 12.3, Std: 3.8},
			"Age_at_enrollment":                 {Mean: 23.5, Std: 6.2},
		},
	}
}

// Standardize maps a natural-unit value to (x - mean) / std. Features without
// registered statistics pass through unchanged.
func (c *Converter) Standardize(feature string, value float64) float64 {
	p, ok := c.params[feature]
	if !ok || p.Std == 0 {
		return value
	}
	return (value - p.Mean) / p.Std
}

// ReverseTransform converts a standardized value back to the original scale
func (c *Converter) ReverseTransform(feature string, value float64) float64 {
	p, ok := c.params[feature]
	if !ok {
		return value
	}
	return value*p.Std + p.Mean
}

// TransformUserInput converts natural-unit input into the standardized
// StudentInput the predict path consumes. This is a pure function: range
// validation happens upstream at request binding.
func (c *Converter) TransformUserInput(in *models.UserFriendlyInput) *models.StudentInput {
	approved := c.Standardize("Curricular_units_2nd_sem_approved", float64(*in.CurricularApproved))
	grade := c.Standardize("Curricular_units_2nd_sem_grade", *in.CurricularGrade)
	age := c.Standardize("Age_at_enrollment", float64(*in.AgeAtEnrollment))

	return &models.StudentInput{
		CurricularApproved:  &approved,
		CurricularGrade:     &grade,
		AgeAtEnrollment:     &age,
		ScholarshipHolder:   in.ScholarshipHolder,
		TuitionFeesUpToDate: in.TuitionFeesUpToDate,
		Debtor:              in.Debtor,
		Gender:              in.Gender,
	}
}

// FlagValue is the canonical categorical encoding of a boolean flag
func FlagValue(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// GenderValue is the canonical categorical encoding of gender: male=1, female=0
func GenderValue(gender string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "male", "m", "1", "true":
		return "1", nil
	case "female", "f", "0", "false":
		return "0", nil
	default:
		return "", fmt.Errorf("unrecognized gender value %q", gender)
	}
}
