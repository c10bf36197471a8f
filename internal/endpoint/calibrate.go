package endpoint

import "sort"

// Calibrator collects loudness samples during the calibration window and
// converts them into the session baselines. Samples are discarded once
// Finish has run; a Calibrator is not reusable.
type Calibrator struct {
	cfg     Config
	samples []float64
}

// NewCalibrator returns an empty calibrator for one session.
func NewCalibrator(cfg Config) *Calibrator {
	return &Calibrator{cfg: cfg}
}

// Add records one loudness sample taken inside the calibration window.
func (c *Calibrator) Add(v float64) {
	c.samples = append(c.samples, v)
}

// Count returns how many samples have been collected so far.
func (c *Calibrator) Count() int {
	return len(c.samples)
}

// Finish derives the noise floor and the initial peak speech level from the
// collected samples. The noise floor is the sample median scaled by the
// noise floor multiplier, which keeps a single loud outlier during
// calibration from inflating the baseline. If nothing was collected (device
// silent or unavailable for the whole window) both values fall back to the
// minimum peak level so the session can still proceed.
func (c *Calibrator) Finish() (baselineNoise, initialPeak float64) {
	if len(c.samples) == 0 {
		return c.cfg.MinPeakLevel, c.cfg.MinPeakLevel
	}

	sorted := make([]float64, len(c.samples))
	copy(sorted, c.samples)
	sort.Float64s(sorted)

	median := sorted[len(sorted)/2]
	baselineNoise = median * c.cfg.NoiseFloorMultiplier

	idx := int(float64(len(sorted)) * c.cfg.PeakPercentile)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	initialPeak = sorted[idx]
	if initialPeak < c.cfg.MinPeakLevel {
		initialPeak = c.cfg.MinPeakLevel
	}

	c.samples = nil
	return baselineNoise, initialPeak
}
