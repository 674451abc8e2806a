// Package weight computes the population-representation weight of one
// sampled building.
package weight

import "fmt"

// ConfigError reports weight inputs that are missing or invalid. The
// weight is never silently defaulted: a workflow that does not declare
// a positive maximum sample count cannot produce weights.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "weight configuration: " + e.Message
}

// Compute returns represented / maxSamples: the number of real-world
// buildings one sample stands for, scaled by the declared maximum
// sample count of the population.
//
// Both inputs must be positive; anything else is a *ConfigError.
func Compute(represented, maxSamples int) (float64, error) {
	if maxSamples <= 0 {
		return 0, &ConfigError{Message: fmt.Sprintf("maximum sample count must be a positive number, got %d", maxSamples)}
	}
	if represented <= 0 {
		return 0, &ConfigError{Message: fmt.Sprintf("represented building count must be a positive number, got %d", represented)}
	}
	return float64(represented) / float64(maxSamples), nil
}
