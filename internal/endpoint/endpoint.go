// Package endpoint implements the adaptive silence endpointing that decides
// when a dictation has ended. It calibrates a noise floor from the first
// moments of a recording, tracks a decaying peak speech level, and runs a
// hysteresis state machine over per-tick loudness values. The whole package
// is pure state advanced by Detector.Tick; timers and device access belong
// to the caller.
package endpoint

import (
	"math"
	"time"
)

// Config holds the detection tunables. All values have working defaults;
// tests override individual fields to pin down timing behavior.
type Config struct {
	// CalibrationDuration is the initial window used only to estimate
	// ambient noise. No endpoint decision is made during this window.
	CalibrationDuration time.Duration

	// NoiseFloorMultiplier scales the calibration median into the
	// session noise floor.
	NoiseFloorMultiplier float64

	// PeakPercentile selects the calibration percentile used as the
	// initial peak speech level (0..1).
	PeakPercentile float64

	// MinPeakLevel is the hard floor for the decaying peak estimate.
	MinPeakLevel float64

	// SpeechThresholdMultiplier scales the noise floor into the speech
	// threshold.
	SpeechThresholdMultiplier float64

	// AverageWindow is the number of recent ticks folded into the moving
	// average the thresholds are compared against.
	AverageWindow int

	// PeakDecayRate is applied to the peak estimate on every tick that is
	// not above the speech threshold.
	PeakDecayRate float64

	// SilenceThresholdPercent scales the peak estimate into the silence
	// threshold (floored at the noise floor).
	SilenceThresholdPercent float64

	// SpeechConfirmationSamples is how many consecutive above-threshold
	// ticks confirm speech.
	SpeechConfirmationSamples int

	// SilenceConfirmationSamples is how many consecutive below-threshold
	// ticks arm the silence timer.
	SilenceConfirmationSamples int

	// AmbientDecay is subtracted from the silence counter on ticks that
	// land between the two thresholds.
	AmbientDecay int

	// SilenceHold is how long confirmed silence must persist before the
	// endpoint fires.
	SilenceHold time.Duration

	// MinRecordingDuration blocks the endpoint from firing earlier than
	// this far into the session.
	MinRecordingDuration time.Duration
}

// DefaultConfig returns the tunables used in production.
func DefaultConfig() Config {
	return Config{
		CalibrationDuration:        1500 * time.Millisecond,
		NoiseFloorMultiplier:       1.5,
		PeakPercentile:             0.90,
		MinPeakLevel:               0.05,
		SpeechThresholdMultiplier:  4.0,
		AverageWindow:              10,
		PeakDecayRate:              0.998,
		SilenceThresholdPercent:    0.20,
		SpeechConfirmationSamples:  3,
		SilenceConfirmationSamples: 5,
		AmbientDecay:               1,
		SilenceHold:                3000 * time.Millisecond,
		MinRecordingDuration:       2000 * time.Millisecond,
	}
}

// RMS reduces a frequency spectrum of byte magnitudes (0-255 per bin) to a
// single loudness value in [0,1].
func RMS(bins []byte) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bins {
		v := float64(b)
		sum += v * v
	}
	return math.Sqrt(sum/float64(len(bins))) / 255.0
}
