package audio

import (
	"errors"
	"time"
)

var (
	// ErrUnsupportedChannels is returned for streams that are not two-channel
	ErrUnsupportedChannels = errors.New("unsupported channel count, two channels are required")

	// ErrReadTimeout is returned when a live device delivers no audio in time
	ErrReadTimeout = errors.New("timed out waiting for audio")
)

// SourceConfig holds configuration for audio capture
type SourceConfig struct {
	// SampleRate is the number of frames per second (Hz)
	SampleRate uint32

	// Channels is the number of audio channels. Direction finding needs 2.
	Channels uint32

	// BlockFrames is the number of frames delivered per device period
	BlockFrames uint32

	// BufferSeconds sizes the ring buffer between the device callback and Read
	BufferSeconds float64

	// ReadTimeout bounds how long Read waits for the device
	ReadTimeout time.Duration

	// Device is a capture device name (partial match) or ID.
	// Empty string = use default device
	Device string
}

// DefaultSourceConfig returns a configuration for two microphones at 48 kHz
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		SampleRate:    48000,
		Channels:      2,
		BlockFrames:   480, // 10ms at 48kHz
		BufferSeconds: 2,
		ReadTimeout:   2 * time.Second,
		Device:        "",
	}
}

// Source delivers interleaved 16-bit samples, left first
type Source interface {
	// Read returns exactly n interleaved samples, or fewer followed by io.EOF
	// at the end of a finite stream
	Read(n int) ([]int16, error)

	// Close releases the source
	Close() error
}

// NewSource opens a wav file when path is set, otherwise the capture device
func NewSource(config SourceConfig, path string, realtime bool) (Source, error) {
	if path != "" {
		return NewWavSource(path, realtime)
	}
	return NewMalgoSource(config)
}
