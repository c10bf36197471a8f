package endpoint

// Tracker maintains the two live decision thresholds after calibration. The
// noise floor is fixed for the session; the peak speech level re-tracks
// while the speaker is loud and decays slowly while they are not, so the
// silence threshold follows the actual speaking volume instead of a fixed
// constant.
type Tracker struct {
	cfg           Config
	baselineNoise float64
	peak          float64

	// moving average ring over the last AverageWindow samples
	window []float64
	idx    int
	count  int
	sum    float64
}

// NewTracker starts threshold tracking from the calibration baselines.
func NewTracker(cfg Config, baselineNoise, initialPeak float64) *Tracker {
	if initialPeak < cfg.MinPeakLevel {
		initialPeak = cfg.MinPeakLevel
	}
	n := cfg.AverageWindow
	if n < 1 {
		n = 1
	}
	return &Tracker{
		cfg:           cfg,
		baselineNoise: baselineNoise,
		peak:          initialPeak,
		window:        make([]float64, n),
	}
}

// Observe folds one loudness sample into the moving average, updates the
// peak estimate, and returns the averaged value with the two thresholds
// derived for this tick.
func (t *Tracker) Observe(v float64) (avg, speechThreshold, silenceThreshold float64) {
	if t.count < len(t.window) {
		t.count++
	} else {
		t.sum -= t.window[t.idx]
	}
	t.window[t.idx] = v
	t.sum += v
	t.idx = (t.idx + 1) % len(t.window)
	avg = t.sum / float64(t.count)

	speechThreshold = t.baselineNoise * t.cfg.SpeechThresholdMultiplier

	if avg > speechThreshold {
		if avg > t.peak {
			t.peak = avg
		}
	} else {
		t.peak *= t.cfg.PeakDecayRate
		if t.peak < t.cfg.MinPeakLevel {
			t.peak = t.cfg.MinPeakLevel
		}
	}

	silenceThreshold = t.peak * t.cfg.SilenceThresholdPercent
	if silenceThreshold < t.baselineNoise {
		silenceThreshold = t.baselineNoise
	}

	return avg, speechThreshold, silenceThreshold
}

// Peak returns the current peak speech level estimate.
func (t *Tracker) Peak() float64 {
	return t.peak
}

// BaselineNoise returns the session noise floor.
func (t *Tracker) BaselineNoise() float64 {
	return t.baselineNoise
}
