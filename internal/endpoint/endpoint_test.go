package endpoint

import (
	"testing"
	"time"
)

const tick = 100 * time.Millisecond

// feed advances the detector through samples starting at the given elapsed
// offset, one tick apart, and returns the elapsed time of the fire (or -1).
func feed(d *Detector, start time.Duration, samples []float64) time.Duration {
	fired := time.Duration(-1)
	for i, s := range samples {
		elapsed := start + time.Duration(i)*tick
		r := d.Tick(elapsed, s)
		if r.EndpointFired && fired < 0 {
			fired = elapsed
		}
	}
	return fired
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name string
		bins []byte
		want float64
	}{
		{"empty spectrum", nil, 0},
		{"all zero", []byte{0, 0, 0, 0}, 0},
		{"full scale", []byte{255, 255, 255, 255}, 1.0},
		{"half scale", []byte{128, 128}, 128.0 / 255.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RMS(tt.bins)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("RMS(%v) = %f, want %f", tt.bins, got, tt.want)
			}
		})
	}
}

func TestCalibratorMedianRobustToOutlier(t *testing.T) {
	cfg := DefaultConfig()
	c := NewCalibrator(cfg)

	for _, v := range []float64{0.1, 0.1, 0.1, 0.1, 0.9} {
		c.Add(v)
	}

	baselineNoise, initialPeak := c.Finish()

	// The single 0.9 spike must not skew the baseline: median is 0.1.
	want := 0.1 * cfg.NoiseFloorMultiplier
	if diff := baselineNoise - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("baselineNoise = %f, want %f (median-based)", baselineNoise, want)
	}

	// The 90th percentile picks up the spike as the initial peak.
	if initialPeak != 0.9 {
		t.Errorf("initialPeak = %f, want 0.9", initialPeak)
	}
}

func TestCalibratorNoSamplesDegradesToDefaults(t *testing.T) {
	cfg := DefaultConfig()
	c := NewCalibrator(cfg)

	baselineNoise, initialPeak := c.Finish()

	if baselineNoise != cfg.MinPeakLevel {
		t.Errorf("baselineNoise = %f, want %f", baselineNoise, cfg.MinPeakLevel)
	}
	if initialPeak != cfg.MinPeakLevel {
		t.Errorf("initialPeak = %f, want %f", initialPeak, cfg.MinPeakLevel)
	}
}

func TestCalibratorQuietSamplesFloorAtMinPeak(t *testing.T) {
	cfg := DefaultConfig()
	c := NewCalibrator(cfg)

	for i := 0; i < 15; i++ {
		c.Add(0.01)
	}

	_, initialPeak := c.Finish()
	if initialPeak != cfg.MinPeakLevel {
		t.Errorf("initialPeak = %f, want floor %f", initialPeak, cfg.MinPeakLevel)
	}
}

func TestTrackerPeakDecaysButNeverBelowFloor(t *testing.T) {
	cfg := DefaultConfig()
	tr := NewTracker(cfg, 0.03, 0.5)

	// Feed silence for long enough that an unfloored decay would pass the
	// minimum. 0.5 * 0.998^n < 0.05 needs n > 1151 ticks.
	for i := 0; i < 2000; i++ {
		tr.Observe(0.0)
	}

	if tr.Peak() < cfg.MinPeakLevel {
		t.Errorf("peak %f decayed below floor %f", tr.Peak(), cfg.MinPeakLevel)
	}
	if tr.Peak() != cfg.MinPeakLevel {
		t.Errorf("peak %f, want exactly the floor %f after long silence", tr.Peak(), cfg.MinPeakLevel)
	}
}

func TestTrackerPeakTracksLoudSpeech(t *testing.T) {
	cfg := DefaultConfig()
	tr := NewTracker(cfg, 0.03, 0.05)

	avg, speechThreshold, _ := tr.Observe(0.6)
	if avg != 0.6 {
		t.Errorf("avg = %f, want 0.6 on first sample", avg)
	}
	if speechThreshold != 0.03*cfg.SpeechThresholdMultiplier {
		t.Errorf("speechThreshold = %f, want %f", speechThreshold, 0.03*cfg.SpeechThresholdMultiplier)
	}
	if tr.Peak() != 0.6 {
		t.Errorf("peak = %f, want re-tracked to 0.6", tr.Peak())
	}

	// Silence threshold follows the peak, floored at the noise floor.
	_, _, silenceThreshold := tr.Observe(0.6)
	want := 0.6 * cfg.SilenceThresholdPercent
	if diff := silenceThreshold - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("silenceThreshold = %f, want %f", silenceThreshold, want)
	}
}

func TestTrackerSilenceThresholdFlooredAtNoise(t *testing.T) {
	cfg := DefaultConfig()
	tr := NewTracker(cfg, 0.2, 0.05)

	_, _, silenceThreshold := tr.Observe(0.0)
	if silenceThreshold != 0.2 {
		t.Errorf("silenceThreshold = %f, want noise floor 0.2", silenceThreshold)
	}
}

func TestDetectorNoDecisionDuringCalibration(t *testing.T) {
	cfg := DefaultConfig()
	d := NewDetector(cfg)

	// Loud samples inside the calibration window must not confirm speech
	// or move the detector out of AwaitingSpeech.
	for i := 0; i < 14; i++ {
		r := d.Tick(time.Duration(i)*tick, 0.8)
		if r.Phase != AwaitingSpeech {
			t.Fatalf("tick %d: phase = %v during calibration, want AwaitingSpeech", i, r.Phase)
		}
		if r.EndpointFired {
			t.Fatalf("tick %d: endpoint fired during calibration", i)
		}
	}
	if d.Calibrated() {
		t.Error("detector calibrated before the window elapsed")
	}

	// The first tick at the boundary finalizes the baselines.
	d.Tick(cfg.CalibrationDuration, 0.8)
	if !d.Calibrated() {
		t.Error("detector not calibrated after the window elapsed")
	}
}

func TestDetectorNeverFiresWithoutConfirmedSpeech(t *testing.T) {
	cfg := DefaultConfig()
	d := NewDetector(cfg)

	// A constant-zero stream for 10 seconds: the endpoint must stay quiet,
	// only duration or size limits may end such a session.
	fired := feed(d, 0, repeat(0.0, 100))
	if fired >= 0 {
		t.Fatalf("endpoint fired at %v on a constant-zero stream", fired)
	}
	if d.SpeechConfirmed() {
		t.Error("speech confirmed on a constant-zero stream")
	}
}

func TestDetectorSpeechThenSilenceFiresOnce(t *testing.T) {
	cfg := DefaultConfig()
	d := NewDetector(cfg)

	calibTicks := int(cfg.CalibrationDuration / tick)
	speechTicks := 5 // 500 ms of speech at avg 0.5
	// enough silence for the moving average to drain, the counter to
	// confirm, and the hold to run its course
	silenceTicks := 80

	samples := append(repeat(0.02, calibTicks), repeat(0.5, speechTicks)...)
	samples = append(samples, repeat(0.01, silenceTicks)...)

	fireCount := 0
	var firedAt time.Duration
	confirmedOnce := false
	for i, s := range samples {
		elapsed := time.Duration(i) * tick
		r := d.Tick(elapsed, s)
		if r.EndpointFired {
			fireCount++
			firedAt = elapsed
		}
		// speechConfirmed is monotonic: once true, never reverts
		if confirmedOnce && !r.SpeechConfirmed {
			t.Fatalf("tick %d: speechConfirmed reverted to false", i)
		}
		if r.SpeechConfirmed {
			confirmedOnce = true
		}
	}

	if fireCount != 1 {
		t.Fatalf("endpoint fired %d times, want exactly 1", fireCount)
	}
	if !confirmedOnce {
		t.Fatal("speech never confirmed")
	}

	silenceOnset := time.Duration(calibTicks+speechTicks) * tick
	if firedAt < silenceOnset+cfg.SilenceHold {
		t.Errorf("fired at %v, earlier than silence onset %v + hold %v", firedAt, silenceOnset, cfg.SilenceHold)
	}
	if firedAt < cfg.MinRecordingDuration {
		t.Errorf("fired at %v, earlier than the minimum recording guard %v", firedAt, cfg.MinRecordingDuration)
	}
}

func TestDetectorMinRecordingGuardDelaysFire(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CalibrationDuration = 300 * time.Millisecond
	cfg.SilenceHold = 300 * time.Millisecond
	cfg.AverageWindow = 1

	d := NewDetector(cfg)

	// Quiet calibration, immediate speech, then silence that matures well
	// before the 2 s guard. The fire must wait for the guard.
	samples := append(repeat(0.01, 3), repeat(0.5, 3)...)
	samples = append(samples, repeat(0.01, 30)...)

	firedAt := feed(d, 0, samples)
	if firedAt < 0 {
		t.Fatal("endpoint never fired")
	}
	if firedAt < cfg.MinRecordingDuration {
		t.Errorf("fired at %v, want no earlier than the guard %v", firedAt, cfg.MinRecordingDuration)
	}
	if firedAt != cfg.MinRecordingDuration {
		t.Errorf("fired at %v, want the first tick at the guard boundary %v", firedAt, cfg.MinRecordingDuration)
	}
}

// spikeConfig makes the thresholds wide enough apart that a 0.4 sample lands
// in the ambient zone: calibration at 0.1 puts the speech threshold at 0.6
// and, with speech at 0.7, the silence threshold at 0.15.
func spikeConfig() Config {
	cfg := DefaultConfig()
	cfg.CalibrationDuration = 300 * time.Millisecond
	cfg.AverageWindow = 1
	return cfg
}

func TestDetectorAmbientSpikeOnlyDecrementsSilence(t *testing.T) {
	cfg := spikeConfig()

	build := func(withSpike bool) []float64 {
		samples := append(repeat(0.1, 3), repeat(0.7, 3)...)
		silence := repeat(0.01, 60)
		if withSpike {
			// one 100 ms ambient spike after the counter is comfortably
			// past the confirmation threshold
			silence[8] = 0.4
		}
		return append(samples, silence...)
	}

	clean := feed(NewDetector(cfg), 0, build(false))
	spiked := feed(NewDetector(cfg), 0, build(true))

	if clean < 0 || spiked < 0 {
		t.Fatalf("endpoint did not fire (clean=%v spiked=%v)", clean, spiked)
	}

	// The spike decrements the counter by one instead of resetting it, so
	// the trigger moves by less than one full confirmation window.
	maxDelay := time.Duration(cfg.SilenceConfirmationSamples) * tick
	if delay := spiked - clean; delay >= maxDelay {
		t.Errorf("spike delayed the trigger by %v, want less than %v", delay, maxDelay)
	}
}

func TestDetectorSpikeAtThresholdClearsPendingTimer(t *testing.T) {
	cfg := spikeConfig()
	d := NewDetector(cfg)

	samples := append(repeat(0.1, 3), repeat(0.7, 3)...)
	// exactly enough silence to arm the timer, then an ambient spike
	samples = append(samples, repeat(0.01, cfg.SilenceConfirmationSamples)...)
	feed(d, 0, samples)

	if !d.silenceTimerSet {
		t.Fatal("silence timer not armed after confirmation samples")
	}

	next := time.Duration(len(samples)) * tick
	d.Tick(next, 0.4)

	// Counter dropped below the confirmation threshold, so the pending
	// timer must be cleared rather than left running.
	if d.silenceTimerSet {
		t.Error("silence timer still armed after counter dropped below threshold")
	}
	if d.consecutiveSilence != cfg.SilenceConfirmationSamples-1 {
		t.Errorf("consecutiveSilence = %d, want %d (decrement, not reset)",
			d.consecutiveSilence, cfg.SilenceConfirmationSamples-1)
	}
}

func TestDetectorCountersNeverBothNonZero(t *testing.T) {
	cfg := spikeConfig()
	d := NewDetector(cfg)

	samples := append(repeat(0.1, 3), repeat(0.7, 4)...)
	samples = append(samples, repeat(0.01, 7)...)
	samples = append(samples, 0.4, 0.7, 0.01, 0.01)

	for i, s := range samples {
		d.Tick(time.Duration(i)*tick, s)
		if d.consecutiveSpeech != 0 && d.consecutiveSilence != 0 {
			t.Fatalf("tick %d: both counters non-zero (speech=%d silence=%d)",
				i, d.consecutiveSpeech, d.consecutiveSilence)
		}
	}
}

func TestDetectorFiredFlagIsTerminal(t *testing.T) {
	cfg := spikeConfig()
	cfg.SilenceHold = 300 * time.Millisecond
	cfg.MinRecordingDuration = 0
	d := NewDetector(cfg)

	samples := append(repeat(0.1, 3), repeat(0.7, 3)...)
	samples = append(samples, repeat(0.01, 40)...)

	fireCount := 0
	for i, s := range samples {
		r := d.Tick(time.Duration(i)*tick, s)
		if r.EndpointFired {
			fireCount++
		}
	}

	if fireCount != 1 {
		t.Errorf("endpoint fired %d times, want exactly 1", fireCount)
	}
	if d.phase() != SilenceTriggered {
		t.Errorf("phase = %v, want SilenceTriggered", d.phase())
	}
}
