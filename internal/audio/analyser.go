package audio

import (
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Web Audio AnalyserNode decibel range. Magnitudes are mapped linearly from
// this range onto 0-255 so the endpointing math matches the original tuning.
const (
	minDecibels = -100.0
	maxDecibels = -30.0
)

// Analyser turns the most recent capture frame into a byte-frequency
// spectrum. A Hann window is applied before the real FFT and the bin
// magnitudes are converted to decibels and scaled to 0-255.
type Analyser struct {
	fft     *fourier.FFT
	size    int
	mu      sync.Mutex
	frame   []float64
	scratch []float64
	coeffs  []complex128
	bins    []byte
	ready   bool
}

// NewAnalyser creates an analyser for frames of the given FFT size.
func NewAnalyser(fftSize int) *Analyser {
	if fftSize < 2 {
		fftSize = 2
	}
	return &Analyser{
		fft:     fourier.NewFFT(fftSize),
		size:    fftSize,
		frame:   make([]float64, fftSize),
		scratch: make([]float64, fftSize),
		coeffs:  make([]complex128, fftSize/2+1),
		bins:    make([]byte, fftSize/2),
	}
}

// Push stores the latest capture frame. Called from the capture callback;
// must stay cheap, so only a normalized copy happens here and the transform
// is deferred to FrequencyData.
func (a *Analyser) Push(samples []int16) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(samples)
	if n > a.size {
		samples = samples[n-a.size:]
		n = a.size
	}
	// keep the tail of the previous frame when the new one is short
	copy(a.frame, a.frame[n:])
	off := a.size - n
	for i, s := range samples {
		a.frame[off+i] = float64(s) / 32768.0
	}
	a.ready = true
}

// FrequencyData computes the current 0-255 magnitude spectrum. ok is false
// until the first frame has been pushed.
func (a *Analyser) FrequencyData() ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.ready {
		return nil, false
	}

	copy(a.scratch, a.frame)
	window.Hann(a.scratch)
	a.fft.Coefficients(a.coeffs, a.scratch)

	scale := 1.0 / float64(a.size)
	for i := 0; i < len(a.bins); i++ {
		mag := cmplx.Abs(a.coeffs[i]) * scale
		db := minDecibels
		if mag > 0 {
			db = 20 * math.Log10(mag)
		}
		v := (db - minDecibels) / (maxDecibels - minDecibels) * 255
		switch {
		case v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		a.bins[i] = byte(v)
	}

	out := make([]byte, len(a.bins))
	copy(out, a.bins)
	return out, true
}

// Reset clears the stored frame so a new capture starts from silence.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.frame {
		a.frame[i] = 0
	}
	a.ready = false
}
