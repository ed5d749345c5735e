package vmdl

import (
	"fmt"

	"vacme/internal/vmdl/models"
)

// NewService returns the reporting service for a disease. The set of diseases
// is closed; an unknown identifier is a wiring error, not a recoverable
// condition.
func NewService(disease models.Disease, deps Deps) (Service, error) {
	switch disease {
	case models.DiseaseCovid:
		return newCovidService(deps), nil
	case models.DiseaseMpox:
		return newMpoxService(deps), nil
	default:
		return nil, fmt.Errorf("unsupported disease %q", disease)
	}
}
