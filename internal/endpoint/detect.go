package endpoint

import "time"

// Phase represents where the detector is in its hysteresis cycle.
type Phase int

const (
	// AwaitingSpeech means no speech has been confirmed yet
	AwaitingSpeech Phase = iota
	// SpeechConfirmed means the speaker has been heard at least once
	SpeechConfirmed
	// SilenceAccumulating means confirmed silence is being timed
	SilenceAccumulating
	// SilenceTriggered means the endpoint has fired (terminal)
	SilenceTriggered
)

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case AwaitingSpeech:
		return "AwaitingSpeech"
	case SpeechConfirmed:
		return "SpeechConfirmed"
	case SilenceAccumulating:
		return "SilenceAccumulating"
	case SilenceTriggered:
		return "SilenceTriggered"
	default:
		return "Unknown"
	}
}

// TickResult reports what one detector tick decided, for logging and for the
// session to act on. EndpointFired is true on exactly one tick per session.
type TickResult struct {
	Avg              float64
	SpeechThreshold  float64
	SilenceThreshold float64
	Phase            Phase
	SpeechConfirmed  bool
	EndpointFired    bool
}

// Detector turns per-tick loudness values into a single "the speaker is done"
// event. It is a debounced double-threshold comparator: speech must be
// sustained above the speech threshold to be confirmed, silence must be
// sustained below the silence threshold to arm the hold timer, and the timer
// must run its full course before the endpoint fires. Calibration samples are
// absorbed first; no decision is made until the calibration window has passed.
//
// All state is advanced by Tick with caller-supplied elapsed times, so the
// detector runs identically under test without real timers.
type Detector struct {
	cfg        Config
	calibrator *Calibrator
	tracker    *Tracker

	calibrated         bool
	consecutiveSpeech  int
	consecutiveSilence int
	speechConfirmed    bool
	silenceStartedAt   time.Duration
	silenceTimerSet    bool
	fired              bool
}

// NewDetector returns a detector at the start of its calibration window.
func NewDetector(cfg Config) *Detector {
	return &Detector{
		cfg:        cfg,
		calibrator: NewCalibrator(cfg),
	}
}

// Tick advances the detector by one sample. elapsed is the time since the
// session started. Ticks inside the calibration window only collect samples;
// the first tick at or past the window boundary finalizes the baselines and
// is processed as a normal detection tick.
func (d *Detector) Tick(elapsed time.Duration, sample float64) TickResult {
	if !d.calibrated {
		if elapsed < d.cfg.CalibrationDuration {
			d.calibrator.Add(sample)
			return TickResult{Phase: AwaitingSpeech}
		}
		baselineNoise, initialPeak := d.calibrator.Finish()
		d.tracker = NewTracker(d.cfg, baselineNoise, initialPeak)
		d.calibrated = true
	}

	avg, speechThreshold, silenceThreshold := d.tracker.Observe(sample)

	result := TickResult{
		Avg:              avg,
		SpeechThreshold:  speechThreshold,
		SilenceThreshold: silenceThreshold,
	}

	switch {
	case avg > speechThreshold:
		d.consecutiveSpeech++
		d.consecutiveSilence = 0
		d.clearSilenceTimer()
		if d.consecutiveSpeech >= d.cfg.SpeechConfirmationSamples {
			// sticky for the rest of the session
			d.speechConfirmed = true
		}

	case avg < silenceThreshold && d.speechConfirmed:
		d.consecutiveSpeech = 0
		d.consecutiveSilence++
		if d.consecutiveSilence >= d.cfg.SilenceConfirmationSamples {
			if !d.silenceTimerSet {
				d.silenceTimerSet = true
				d.silenceStartedAt = elapsed
			} else if !d.fired &&
				elapsed-d.silenceStartedAt >= d.cfg.SilenceHold &&
				elapsed >= d.cfg.MinRecordingDuration {
				d.fired = true
				result.EndpointFired = true
			}
		}

	default:
		// Ambient zone between the thresholds. Bleed the silence counter
		// instead of resetting it so one noise spike does not discard the
		// accumulated evidence.
		d.consecutiveSpeech = 0
		d.consecutiveSilence -= d.cfg.AmbientDecay
		if d.consecutiveSilence < 0 {
			d.consecutiveSilence = 0
		}
		if d.consecutiveSilence < d.cfg.SilenceConfirmationSamples {
			d.clearSilenceTimer()
		}
	}

	result.SpeechConfirmed = d.speechConfirmed
	result.Phase = d.phase()
	return result
}

func (d *Detector) clearSilenceTimer() {
	d.silenceTimerSet = false
	d.silenceStartedAt = 0
}

func (d *Detector) phase() Phase {
	switch {
	case d.fired:
		return SilenceTriggered
	case d.silenceTimerSet:
		return SilenceAccumulating
	case d.speechConfirmed:
		return SpeechConfirmed
	default:
		return AwaitingSpeech
	}
}

// Calibrated returns whether the calibration window has been finalized.
func (d *Detector) Calibrated() bool {
	return d.calibrated
}

// SpeechConfirmed returns whether speech has ever been confirmed.
func (d *Detector) SpeechConfirmed() bool {
	return d.speechConfirmed
}

// Fired returns whether the endpoint event has fired.
func (d *Detector) Fired() bool {
	return d.fired
}

// Thresholds returns the session baselines once calibration has completed.
func (d *Detector) Thresholds() (baselineNoise, peak float64, ok bool) {
	if !d.calibrated {
		return 0, 0, false
	}
	return d.tracker.BaselineNoise(), d.tracker.Peak(), true
}
