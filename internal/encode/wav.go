// Package encode finalizes raw PCM captures into WAV blobs and reads basic
// properties back out of them.
package encode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVEncoder wraps 16-bit little-endian PCM into a WAV container.
type WAVEncoder struct {
	SampleRate int
	Channels   int
}

// NewWAVEncoder creates an encoder for the given capture format.
func NewWAVEncoder(sampleRate, channels int) *WAVEncoder {
	return &WAVEncoder{SampleRate: sampleRate, Channels: channels}
}

// Encode returns the PCM payload as a complete WAV file.
func (e *WAVEncoder) Encode(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm payload not aligned")
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: e.Channels, SampleRate: e.SampleRate},
		Data:   samples,
	}

	var out seekBuffer
	enc := wav.NewEncoder(&out, e.SampleRate, 16, e.Channels, 1)
	if err := enc.Write(buffer); err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}
	return out.data, nil
}

// Info describes a WAV blob without decoding its samples.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// Probe reads the header of a WAV blob.
func Probe(blob []byte) (Info, error) {
	dec := wav.NewDecoder(bytes.NewReader(blob))
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return Info{}, fmt.Errorf("read wav header: %w", err)
	}
	if !dec.IsValidFile() {
		return Info{}, fmt.Errorf("not a valid wav file")
	}

	dur, err := dec.Duration()
	if err != nil {
		return Info{}, fmt.Errorf("wav duration: %w", err)
	}
	return Info{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		Duration:   dur,
	}, nil
}

// seekBuffer is an in-memory io.WriteSeeker. The wav encoder seeks back to
// patch chunk sizes on Close, so a plain bytes.Buffer is not enough.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		if need > cap(b.data) {
			grown := make([]byte, need, need*2)
			copy(grown, b.data)
			b.data = grown
		} else {
			b.data = b.data[:need]
		}
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(b.pos) + offset
	case io.SeekEnd:
		pos = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("negative seek position %d", pos)
	}
	b.pos = int(pos)
	return pos, nil
}
