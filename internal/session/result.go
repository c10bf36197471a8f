package session

import "time"

// State represents the current session state
type State int

const (
	// Idle means no capture is running
	Idle State = iota
	// Calibrating means capture is running and the noise floor is being estimated
	Calibrating
	// Listening means capture is running and the endpoint detector is live
	Listening
	// Stopping means a stop trigger won and teardown is in progress
	Stopping
	// Finalized means the result is being handed off before returning to Idle
	Finalized
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Calibrating:
		return "Calibrating"
	case Listening:
		return "Listening"
	case Stopping:
		return "Stopping"
	case Finalized:
		return "Finalized"
	default:
		return "Unknown"
	}
}

// StopReason identifies which of the racing stop triggers ended the session.
// Duration, size and silence are normal completions, not errors.
type StopReason string

const (
	// StopManual means the caller requested the stop
	StopManual StopReason = "manual"
	// StopSilence means the endpoint detector decided the speaker was done
	StopSilence StopReason = "silence"
	// StopDurationLimit means the maximum recording duration was reached
	StopDurationLimit StopReason = "duration-limit"
	// StopSizeLimit means the captured byte cap was reached
	StopSizeLimit StopReason = "size-limit"
	// StopDeviceLost means the capture device disappeared mid-session
	StopDeviceLost StopReason = "device-lost"
)

// Result is the single immutable outcome of one recording session.
type Result struct {
	// ID identifies the session for history and logging
	ID string
	// Blob is the encoded audio, ready for the transcription boundary
	Blob []byte
	// PCMBytes is the raw capture size before encoding
	PCMBytes int
	// Duration is the wall-clock length of the capture
	Duration time.Duration
	// Reason is the stop trigger that won the race
	Reason StopReason
	// StartedAt is when the capture began
	StartedAt time.Time
}
