package audio

// Device represents an audio input device
type Device struct {
	ID        int
	Name      string
	IsDefault bool
}

// LatencyMode defines the latency priority
type LatencyMode int

const (
	// LowLatency prioritizes low latency (real-time)
	LowLatency LatencyMode = iota
	// HighStability prioritizes stability (larger buffer)
	HighStability
)

// Config holds audio configuration
type Config struct {
	DeviceID   int
	SampleRate int
	Channels   int
	Latency    LatencyMode
	// FFTSize is the analyser transform length (power of two)
	FFTSize int
}

// DefaultConfig returns the default audio configuration
// Sample rate: 16kHz (Whisper recommended)
// Channels: 1 (mono)
// Latency: HighStability
func DefaultConfig() Config {
	return Config{
		DeviceID:   -1, // -1 means use default device
		SampleRate: 16000,
		Channels:   1,
		Latency:    HighStability,
		FFTSize:    1024,
	}
}

// Driver is the interface for audio input. Beyond plain capture it exposes
// the live frequency spectrum and capture health that the recording session
// polls once per tick. The abstraction allows replacing PortAudio with other
// backends, and lets session tests script a capture without hardware.
type Driver interface {
	// ListDevices returns a list of available audio input devices
	ListDevices() ([]Device, error)

	// Initialize initializes the audio driver with the given configuration
	Initialize(config Config) error

	// StartRecording starts recording audio
	StartRecording() error

	// StopRecording stops recording and returns the recorded audio data (PCM format)
	StopRecording() ([]byte, error)

	// FrequencyData returns the current 0-255 magnitude spectrum of the
	// most recent capture frame. ok is false when no frame is available
	// yet; callers treat that as "skip this tick", not as silence.
	// Must not block.
	FrequencyData() ([]byte, bool)

	// CapturedBytes returns the size of the capture so far in bytes
	CapturedBytes() int

	// Err returns a non-nil error once the device has been lost mid-capture
	Err() error

	// IsRecording returns whether recording is currently active
	IsRecording() bool

	// Close releases all resources
	Close() error
}
