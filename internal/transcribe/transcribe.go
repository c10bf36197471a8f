// Package transcribe turns finalized audio blobs into text. Two backends are
// provided: a remote OpenAI-compatible HTTP endpoint and a local command-line
// program. Both are hidden behind Transcriber so the result pipeline does not
// care which one is configured.
package transcribe

import (
	"context"
	"time"
)

// Result is a completed transcription.
type Result struct {
	Text     string
	Language string
	// Latency is the wall time of the successful attempt
	Latency time.Duration
}

// Transcriber converts an encoded audio blob into text.
type Transcriber interface {
	// Transcribe sends the audio blob (a complete WAV file) and returns
	// the recognized text. filename is a hint for backends that care
	// about the container extension.
	Transcribe(ctx context.Context, blob []byte, filename string) (Result, error)

	// Close releases backend resources and waits for in-flight requests.
	Close() error
}
