package keg

import (
	"fmt"
	"math"
	"time"
)

const (

	// DefaultDrinkSizeML denotes a standard 12 oz serving
	DefaultDrinkSizeML = 354.882

	// DefaultFlowRateMLPerSec denotes a typical tap flow rate (~2 oz / s)
	DefaultFlowRateMLPerSec = 59.15

	// The device reports whole milliliters, so a drink lacking less than
	// half a milliliter of a whole-milliliter volume is counted as full
	drinkToleranceML = 0.5
)

// MetricsConfig denotes the serving configuration used to derive metrics
type MetricsConfig struct {
	DrinkSizeML      float64
	FlowRateMLPerSec float64
}

// WithDrinkSize sets the size of a single drink
func WithDrinkSize(ml float64) func(*MetricsConfig) {
	return func(c *MetricsConfig) {
		c.DrinkSizeML = ml
	}
}

// WithFlowRate sets the flow rate of the tap
func WithFlowRate(mlPerSec float64) func(*MetricsConfig) {
	return func(c *MetricsConfig) {
		c.FlowRateMLPerSec = mlPerSec
	}
}

// Summary denotes the point-in-time metrics derived from a single reading
type Summary struct {
	VolumeRemainingML int           `json:"volume_remaining_ml"`
	PercentRemaining  float64       `json:"percent_remaining"`
	DrinksRemaining   int           `json:"drinks_remaining"`
	TimeToDrain       time.Duration `json:"time_to_drain"`

	DrinkSizeML      float64 `json:"drink_size_ml"`
	FlowRateMLPerSec float64 `json:"flow_rate_ml_per_sec"`
}

// Summarize derives the metrics of a reading, executing functional options, if any
func Summarize(r Reading, options ...func(*MetricsConfig)) (Summary, error) {

	cfg := MetricsConfig{
		DrinkSizeML:      DefaultDrinkSizeML,
		FlowRateMLPerSec: DefaultFlowRateMLPerSec,
	}
	for _, option := range options {
		option(&cfg)
	}

	if cfg.DrinkSizeML <= 0 {
		return Summary{}, fmt.Errorf("%w: drink size must be positive, got %v", ErrInvalidArgument, cfg.DrinkSizeML)
	}

	remaining := r.VolumeRemainingML()
	drainSeconds, err := EstimatePourTimeSeconds(float64(remaining), cfg.FlowRateMLPerSec)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		VolumeRemainingML: remaining,
		PercentRemaining:  r.PercentRemaining(),
		DrinksRemaining:   DrinksRemaining(float64(remaining), cfg.DrinkSizeML),
		TimeToDrain:       time.Duration(drainSeconds * float64(time.Second)),
		DrinkSizeML:       cfg.DrinkSizeML,
		FlowRateMLPerSec:  cfg.FlowRateMLPerSec,
	}, nil
}

// DrinksRemaining returns the number of full drinks available from a volume. Volumes
// in whole milliliters (as reported by the device) are rounded to the nearest milliliter
// before dividing, fractional volumes are divided as is
func DrinksRemaining(volumeML, drinkSizeML float64) int {
	if volumeML <= 0 || drinkSizeML <= 0 {
		return 0
	}

	if volumeML == math.Trunc(volumeML) {
		volumeML += drinkToleranceML
	}

	return int(math.Floor(volumeML / drinkSizeML))
}

// EstimatePourTimeSeconds estimates the time required to pour a volume at the given flow rate
func EstimatePourTimeSeconds(volumeML, flowRateMLPerSec float64) (float64, error) {
	if flowRateMLPerSec <= 0 {
		return 0, fmt.Errorf("%w: flow rate must be positive, got %v", ErrInvalidArgument, flowRateMLPerSec)
	}

	return volumeML / flowRateMLPerSec, nil
}
