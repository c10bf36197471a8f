// Package metrics defines the Prometheus instrumentation for the dictation
// engine. The /metrics endpoint on the local control server exposes these.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the dictation engine
type Metrics struct {
	// Session metrics
	SessionsStarted  prometheus.Counter
	SessionsFinished *prometheus.CounterVec
	SessionDuration  prometheus.Histogram
	CapturedBytes    prometheus.Histogram
	SessionActive    prometheus.Gauge

	// Endpointing metrics
	CalibrationNoise prometheus.Gauge
	CalibrationPeak  prometheus.Gauge
	SilenceStops     prometheus.Counter

	// Transcription metrics
	TranscriptionRequests prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionDuration prometheus.Histogram

	// Paste/delivery metrics
	PasteSuccesses prometheus.Counter
	PasteFailures  prometheus.Counter
}

// New creates the metric set on the given registerer. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ezdictate_sessions_started_total",
			Help: "Total number of recording sessions started",
		}),
		SessionsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ezdictate_sessions_finished_total",
			Help: "Total number of recording sessions finished, by stop reason",
		}, []string{"reason"}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ezdictate_session_duration_seconds",
			Help:    "Duration of recording sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1s to ~2 minutes
		}),
		CapturedBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ezdictate_captured_bytes",
			Help:    "Size of captured PCM per session in bytes",
			Buckets: prometheus.ExponentialBuckets(32*1024, 2, 11), // 32KB to ~32MB
		}),
		SessionActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ezdictate_session_active",
			Help: "Whether a recording session is currently active (0 or 1)",
		}),

		CalibrationNoise: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ezdictate_calibration_noise_floor",
			Help: "Baseline noise level measured by the last calibration",
		}),
		CalibrationPeak: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ezdictate_calibration_initial_peak",
			Help: "Initial peak level measured by the last calibration",
		}),
		SilenceStops: factory.NewCounter(prometheus.CounterOpts{
			Name: "ezdictate_silence_stops_total",
			Help: "Total number of sessions ended by the silence endpoint",
		}),

		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "ezdictate_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ezdictate_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ezdictate_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		PasteSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "ezdictate_paste_successes_total",
			Help: "Total number of transcripts delivered to the frontmost app",
		}),
		PasteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ezdictate_paste_failures_total",
			Help: "Total number of transcript delivery failures",
		}),
	}
}

// RecordSessionStarted marks a session as active.
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
	m.SessionActive.Set(1)
}

// RecordSessionFinished records a completed session with its stop reason.
func (m *Metrics) RecordSessionFinished(reason string, duration time.Duration, pcmBytes int) {
	m.SessionsFinished.WithLabelValues(reason).Inc()
	m.SessionDuration.Observe(duration.Seconds())
	m.CapturedBytes.Observe(float64(pcmBytes))
	m.SessionActive.Set(0)
	if reason == "silence" {
		m.SilenceStops.Inc()
	}
}

// RecordCalibration publishes the thresholds measured at session start.
func (m *Metrics) RecordCalibration(noiseFloor, initialPeak float64) {
	m.CalibrationNoise.Set(noiseFloor)
	m.CalibrationPeak.Set(initialPeak)
}

// RecordTranscription records one transcription attempt outcome.
func (m *Metrics) RecordTranscription(latency time.Duration, err error) {
	m.TranscriptionRequests.Inc()
	m.TranscriptionDuration.Observe(latency.Seconds())
	if err != nil {
		m.TranscriptionFailures.Inc()
	}
}

// RecordPaste records one transcript delivery outcome.
func (m *Metrics) RecordPaste(err error) {
	if err != nil {
		m.PasteFailures.Inc()
		return
	}
	m.PasteSuccesses.Inc()
}
