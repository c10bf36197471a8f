// Package session implements the adaptive recording session: a state machine
// owning one audio capture at a time, racing four stop triggers (manual stop,
// max duration, max size, detected silence) and finalizing the capture into a
// single result. The silence decision itself lives in internal/endpoint; this
// package owns the timers, the device handle and the teardown.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yok-tottii/EzDictate/internal/audio"
	"github.com/yok-tottii/EzDictate/internal/endpoint"
)

var (
	// ErrDeviceUnavailable means capture could not start (no device or
	// permission denied). Fatal to session start, not retried automatically.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrSessionActive means Start was called while a session is running.
	ErrSessionActive = errors.New("session already active")
)

// Logger is the leveled logger the session writes through. internal/logger
// satisfies it; tests pass a discard implementation.
type Logger interface {
	Debug(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// Encoder finalizes a raw PCM capture into a transportable blob. The session
// does not interpret the output.
type Encoder interface {
	Encode(pcm []byte) ([]byte, error)
}

// Config holds the fixed session tunables. Options carries the per-start
// settings; everything here is set once at construction.
type Config struct {
	// TickInterval is the cadence of the detection loop
	TickInterval time.Duration
	// DurationTickInterval is the cadence of the duration/size/health loop.
	// It is independent of TickInterval so a slow detection tick cannot
	// desynchronize the duration clock.
	DurationTickInterval time.Duration
	// MaxBytes is the hard cap on captured PCM bytes
	MaxBytes int
	// Tunables configures the endpoint detector
	Tunables endpoint.Config
}

// DefaultConfig returns the default session configuration
func DefaultConfig() Config {
	return Config{
		TickInterval:         100 * time.Millisecond,
		DurationTickInterval: 100 * time.Millisecond,
		MaxBytes:             25 * 1024 * 1024,
		Tunables:             endpoint.DefaultConfig(),
	}
}

// Options are the per-start settings exposed to the caller/UI layer.
type Options struct {
	// MaxDuration ends the session when the capture has run this long
	MaxDuration time.Duration
	// SilenceDetection enables the adaptive auto-stop
	SilenceDetection bool
	// SilenceDuration overrides how long confirmed silence must hold
	// before the endpoint fires. Zero keeps the tunables default.
	SilenceDuration time.Duration
}

// DefaultOptions returns the default per-start options
func DefaultOptions() Options {
	return Options{
		MaxDuration:      60 * time.Second,
		SilenceDetection: true,
	}
}

// Manager owns the lifecycle of recording sessions, one at a time. All
// session state is mutated from a single run loop goroutine; Start and Stop
// only exchange messages with it.
type Manager struct {
	cfg     Config
	driver  audio.Driver
	encoder Encoder
	log     Logger

	// onState mirrors state transitions to the UI layer; may be nil
	onState func(State)

	// onCalibrated publishes the measured thresholds once per session; may be nil
	onCalibrated func(noiseFloor, peak float64)

	results chan *Result

	mu             sync.Mutex
	state          State
	opts           Options
	startedAt      time.Time
	stopRequested  bool
	silenceEnabled bool
	stopCh         chan StopReason
	done           chan struct{}
	lastResult     *Result
	wg             sync.WaitGroup
}

// New creates a session manager bound to one capture driver and encoder.
func New(cfg Config, driver audio.Driver, enc Encoder, log Logger) *Manager {
	if log == nil {
		log = nopLogger{}
	}
	return &Manager{
		cfg:     cfg,
		driver:  driver,
		encoder: enc,
		log:     log,
		state:   Idle,
		results: make(chan *Result, 1),
	}
}

// OnState registers a callback invoked on every state transition. Must be
// set before the first Start; the callback runs on the session goroutine and
// must not block.
func (m *Manager) OnState(fn func(State)) {
	m.onState = fn
}

// OnCalibrated registers a callback invoked when the noise floor estimate is
// settled. Same contract as OnState: set before Start, must not block.
func (m *Manager) OnCalibrated(fn func(noiseFloor, peak float64)) {
	m.onCalibrated = fn
}

// Results returns the channel delivering every session completion.
func (m *Manager) Results() <-chan *Result {
	return m.results
}

// State returns the current session state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start begins a new recording session. Failure to start the capture leaves
// the manager Idle with no leaked timers or handles.
func (m *Manager) Start(opts Options) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Idle {
		return fmt.Errorf("%w (current state: %s)", ErrSessionActive, m.state)
	}

	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultOptions().MaxDuration
	}

	if err := m.driver.StartRecording(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	tunables := m.cfg.Tunables
	if opts.SilenceDuration > 0 {
		tunables.SilenceHold = opts.SilenceDuration
	}

	// Detection setup failure is a local degrade: the capture proceeds,
	// only the auto-stop convenience is lost.
	m.silenceEnabled = opts.SilenceDetection
	var detector *endpoint.Detector
	if m.silenceEnabled {
		if err := validateTunables(tunables); err != nil {
			m.log.Warn("silence detection disabled: %v", err)
			m.silenceEnabled = false
		} else {
			detector = endpoint.NewDetector(tunables)
		}
	}

	m.opts = opts
	m.startedAt = time.Now()
	m.stopRequested = false
	m.stopCh = make(chan StopReason, 1)
	m.done = make(chan struct{})
	m.lastResult = nil

	if m.silenceEnabled {
		m.setStateLocked(Calibrating)
	} else {
		m.setStateLocked(Listening)
	}

	m.wg.Add(1)
	go m.run(detector, m.startedAt, m.stopCh, m.done)

	m.log.Info("session started (max=%s silence=%v)", opts.MaxDuration, m.silenceEnabled)
	return nil
}

func validateTunables(cfg endpoint.Config) error {
	if cfg.CalibrationDuration <= 0 {
		return fmt.Errorf("calibration duration must be positive")
	}
	if cfg.AverageWindow < 1 {
		return fmt.Errorf("average window must be at least 1")
	}
	if cfg.SpeechConfirmationSamples < 1 || cfg.SilenceConfirmationSamples < 1 {
		return fmt.Errorf("confirmation sample counts must be at least 1")
	}
	if cfg.SilenceHold <= 0 {
		return fmt.Errorf("silence hold must be positive")
	}
	return nil
}

// Stop requests a manual stop and blocks until the session has finalized.
// Stopping an Idle session is a no-op returning (nil, nil). Safe to call
// concurrently and repeatedly.
func (m *Manager) Stop() (*Result, error) {
	m.mu.Lock()
	if m.state == Idle || m.done == nil {
		m.mu.Unlock()
		return nil, nil
	}
	done := m.done
	m.mu.Unlock()

	m.requestStop(StopManual)
	<-done

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastResult, nil
}

// requestStop arms the stop trigger exactly once per session; later calls
// with any reason are no-ops.
func (m *Manager) requestStop(reason StopReason) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Idle || m.stopRequested || m.stopCh == nil {
		return
	}
	m.stopRequested = true
	m.stopCh <- reason
}

// run is the single goroutine owning all per-session mutable state. Two
// independent tickers drive it: the detection tick and the duration/limit
// tick. It exits exactly once, through finalize.
func (m *Manager) run(detector *endpoint.Detector, startedAt time.Time, stopCh chan StopReason, done chan struct{}) {
	defer m.wg.Done()

	detectTicker := time.NewTicker(m.cfg.TickInterval)
	defer detectTicker.Stop()
	limitTicker := time.NewTicker(m.cfg.DurationTickInterval)
	defer limitTicker.Stop()

	for {
		select {
		case <-detectTicker.C:
			if m.detectTick(detector, startedAt) {
				m.finalize(StopSilence, startedAt, done)
				return
			}

		case <-limitTicker.C:
			if reason, hit := m.limitCheck(startedAt); hit {
				// Mark the stop as taken so a racing manual Stop
				// becomes a no-op instead of a second trigger.
				m.mu.Lock()
				m.stopRequested = true
				m.mu.Unlock()
				m.finalize(reason, startedAt, done)
				return
			}

		case reason := <-stopCh:
			m.finalize(reason, startedAt, done)
			return
		}
	}
}

// detectTick advances the endpoint detector by one sample. Returns true when
// the silence endpoint fired.
func (m *Manager) detectTick(detector *endpoint.Detector, startedAt time.Time) bool {
	if detector == nil {
		return false
	}

	bins, ok := m.driver.FrequencyData()
	if !ok {
		// no frame available; skip the tick rather than treat it as silence
		return false
	}

	wasCalibrated := detector.Calibrated()
	r := detector.Tick(time.Since(startedAt), endpoint.RMS(bins))

	if !wasCalibrated && detector.Calibrated() {
		if noise, peak, ok := detector.Thresholds(); ok {
			m.log.Debug("calibration done: noise=%.4f peak=%.4f", noise, peak)
			if m.onCalibrated != nil {
				m.onCalibrated(noise, peak)
			}
		}
		m.setState(Listening)
	}

	if r.EndpointFired {
		m.log.Info("silence endpoint fired (avg=%.4f threshold=%.4f)", r.Avg, r.SilenceThreshold)
		return true
	}
	return false
}

// limitCheck runs on the duration ticker: elapsed time, captured size and
// device health, in that order.
func (m *Manager) limitCheck(startedAt time.Time) (StopReason, bool) {
	if time.Since(startedAt) >= m.opts.MaxDuration {
		m.log.Info("max duration reached (%s)", m.opts.MaxDuration)
		return StopDurationLimit, true
	}
	if m.driver.CapturedBytes() >= m.cfg.MaxBytes {
		m.log.Info("size cap reached (%d bytes)", m.cfg.MaxBytes)
		return StopSizeLimit, true
	}
	if err := m.driver.Err(); err != nil {
		m.log.Warn("capture device lost: %v", err)
		return StopDeviceLost, true
	}
	return "", false
}

// finalize tears down the capture, encodes the blob, publishes the result
// and returns the manager to Idle. Runs exactly once per session; the
// deferred tickers in run stop when it returns.
func (m *Manager) finalize(reason StopReason, startedAt time.Time, done chan struct{}) {
	m.setState(Stopping)

	pcm, err := m.driver.StopRecording()
	if err != nil {
		// keep whatever was captured; a lost device still finalizes
		m.log.Error("stop recording: %v", err)
		if reason == StopManual || reason == StopSilence {
			reason = StopDeviceLost
		}
	}

	var blob []byte
	if m.encoder != nil && len(pcm) > 0 {
		blob, err = m.encoder.Encode(pcm)
		if err != nil {
			m.log.Error("encode capture: %v", err)
			blob = nil
		}
	}

	result := &Result{
		ID:        uuid.NewString(),
		Blob:      blob,
		PCMBytes:  len(pcm),
		Duration:  time.Since(startedAt),
		Reason:    reason,
		StartedAt: startedAt,
	}

	m.setState(Finalized)

	m.mu.Lock()
	m.lastResult = result
	m.stopCh = nil
	m.setStateLocked(Idle)
	m.mu.Unlock()

	select {
	case m.results <- result:
	default:
		m.log.Warn("results channel full, dropping completion %s", result.ID)
	}

	m.log.Info("session %s finalized: reason=%s duration=%s pcm=%d bytes",
		result.ID, result.Reason, result.Duration.Round(time.Millisecond), result.PCMBytes)

	close(done)
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.setStateLocked(s)
	m.mu.Unlock()
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	if m.onState != nil {
		m.onState(s)
	}
}

// Close stops any active session and waits for its goroutine to exit.
func (m *Manager) Close() error {
	if _, err := m.Stop(); err != nil {
		return err
	}
	m.wg.Wait()
	close(m.results)
	return nil
}
