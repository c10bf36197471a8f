package audio

import (
	"testing"
)

// The PortAudio implementation must satisfy the capture contract the
// session engine polls against.
var _ Driver = (*PortAudioDriver)(nil)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", config.SampleRate)
	}

	if config.Channels != 1 {
		t.Errorf("Expected 1 channel, got %d", config.Channels)
	}

	if config.Latency != HighStability {
		t.Errorf("Expected HighStability latency, got %v", config.Latency)
	}

	if config.DeviceID != -1 {
		t.Errorf("Expected default device ID -1, got %d", config.DeviceID)
	}

	if config.FFTSize&(config.FFTSize-1) != 0 || config.FFTSize == 0 {
		t.Errorf("Expected FFT size to be a power of two, got %d", config.FFTSize)
	}
}

func newHardwareDriver(t *testing.T) *PortAudioDriver {
	t.Helper()
	driver, err := NewPortAudioDriver()
	if err != nil {
		t.Skipf("PortAudio not available: %v", err)
	}
	return driver
}

func TestListDevices(t *testing.T) {
	driver := newHardwareDriver(t)
	defer driver.Close()

	devices, err := driver.ListDevices()
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}

	if len(devices) == 0 {
		t.Skip("No audio input devices available")
	}

	hasDefault := false
	for _, dev := range devices {
		t.Logf("Device %d: %s (default: %v)", dev.ID, dev.Name, dev.IsDefault)
		if dev.IsDefault {
			hasDefault = true
		}
	}

	if !hasDefault {
		t.Error("No default device found")
	}
}

func TestInitialize(t *testing.T) {
	driver := newHardwareDriver(t)
	defer driver.Close()

	if err := driver.Initialize(DefaultConfig()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if !driver.initialized {
		t.Error("Driver should be initialized")
	}
}

func TestCaptureLifecycle(t *testing.T) {
	driver := newHardwareDriver(t)
	defer driver.Close()

	if err := driver.Initialize(DefaultConfig()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if driver.IsRecording() {
		t.Error("Should not be recording before StartRecording")
	}

	if err := driver.StartRecording(); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	if !driver.IsRecording() {
		t.Error("Should be recording after StartRecording")
	}

	// Starting a second capture on the same driver must fail
	if err := driver.StartRecording(); err == nil {
		t.Error("StartRecording should fail when already recording")
	}

	// The session polls these once per tick; they must not error on a
	// healthy device even before the first frame arrives.
	if driver.CapturedBytes() < 0 {
		t.Errorf("CapturedBytes = %d, want >= 0", driver.CapturedBytes())
	}
	if err := driver.Err(); err != nil {
		t.Errorf("Err() = %v on a healthy capture, want nil", err)
	}
	if bins, ok := driver.FrequencyData(); ok && len(bins) == 0 {
		t.Error("FrequencyData reported ok with an empty spectrum")
	}

	data, err := driver.StopRecording()
	if err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}
	if data == nil {
		t.Error("StopRecording returned nil data")
	}
	t.Logf("Captured %d bytes", len(data))

	if driver.IsRecording() {
		t.Error("Should not be recording after StopRecording")
	}

	// Stopping again should fail
	if _, err := driver.StopRecording(); err == nil {
		t.Error("StopRecording should fail when not recording")
	}
}

func TestClose(t *testing.T) {
	driver := newHardwareDriver(t)

	if err := driver.Initialize(DefaultConfig()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if err := driver.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if driver.initialized {
		t.Error("Driver should not be initialized after Close")
	}
}
