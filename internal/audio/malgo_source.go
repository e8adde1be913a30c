package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// MalgoSource implements Source on a capture device using malgo
type MalgoSource struct {
	config       SourceConfig
	device       *malgo.Device
	malgoContext *malgo.AllocatedContext
	ring         *RingBuffer
	logger       *slog.Logger

	mu       sync.Mutex
	running  bool
	dropped  uint64
	lastWarn time.Time
}

// NewMalgoSource opens the configured capture device and starts it
func NewMalgoSource(config SourceConfig) (*MalgoSource, error) {
	if config.Channels != 2 {
		return nil, fmt.Errorf("%w: got %d", ErrUnsupportedChannels, config.Channels)
	}

	ringSize := int(config.BufferSeconds * float64(config.SampleRate) * float64(config.Channels))
	if ringSize < int(config.BlockFrames*config.Channels)*4 {
		ringSize = int(config.BlockFrames*config.Channels) * 4
	}

	m := &MalgoSource{
		config: config,
		ring:   NewRingBuffer(ringSize),
		logger: slog.Default().With("component", "malgo"),
	}
	if err := m.start(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MalgoSource) start() error {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	m.malgoContext = malgoCtx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = m.config.Channels
	deviceConfig.SampleRate = m.config.SampleRate
	deviceConfig.PeriodSizeInFrames = m.config.BlockFrames

	if m.config.Device != "" {
		infos, err := malgoCtx.Devices(malgo.Capture)
		if err != nil {
			m.freeContext()
			return fmt.Errorf("failed to enumerate devices: %w", err)
		}
		idx := matchDevice(infos, m.config.Device)
		if idx < 0 {
			m.freeContext()
			return fmt.Errorf("device not found: %s", m.config.Device)
		}
		deviceConfig.Capture.DeviceID = infos[idx].ID.Pointer()
		m.logger.Info("using capture device", "name", infos[idx].Name())
	}

	var callbacks malgo.DeviceCallbacks
	callbacks.Data = func(_, pInputSamples []byte, _ uint32) {
		samples := make([]int16, len(pInputSamples)/2)
		for i := range samples {
			samples[i] = int16(binary.LittleEndian.Uint16(pInputSamples[2*i:]))
		}
		if _, err := m.ring.Write(samples); err != nil {
			m.noteOverflow(len(samples))
		}
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		m.freeContext()
		return fmt.Errorf("failed to initialize device: %w", err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		m.freeContext()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.mu.Lock()
	m.running = true
	m.mu.Unlock()
	return nil
}

// noteOverflow logs dropped audio at most once a second
func (m *MalgoSource) noteOverflow(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dropped += uint64(n)
	if time.Since(m.lastWarn) < time.Second {
		return
	}
	m.lastWarn = time.Now()
	m.logger.Warn("audio ring buffer overflow, dropping samples", "dropped_total", m.dropped)
}

// Read blocks until n interleaved samples are available or the read timeout expires
func (m *MalgoSource) Read(n int) ([]int16, error) {
	out := make([]int16, n)
	filled := 0
	deadline := time.Now().Add(m.config.ReadTimeout)

	for filled < n {
		filled += m.ring.Read(out[filled:])
		if filled == n {
			break
		}
		if !m.IsRunning() {
			return out[:filled], fmt.Errorf("capture device stopped")
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return out[:filled], ErrReadTimeout
		}
		select {
		case <-m.ring.Ready():
		case <-time.After(remaining):
		}
	}
	return out, nil
}

// Close stops the device and releases malgo resources
func (m *MalgoSource) Close() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			return fmt.Errorf("failed to stop device: %w", err)
		}
		m.device.Uninit()
	}
	m.freeContext()
	return nil
}

// IsRunning returns true if capture is currently active
func (m *MalgoSource) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *MalgoSource) freeContext() {
	if m.malgoContext != nil {
		_ = m.malgoContext.Uninit()
		m.malgoContext.Free()
		m.malgoContext = nil
	}
}

// matchDevice returns the index of the device whose name or ID matches, or -1
func matchDevice(infos []malgo.DeviceInfo, want string) int {
	search := strings.ToLower(want)
	for i, info := range infos {
		if fmt.Sprintf("capture-%d", i) == want || strings.EqualFold(info.Name(), want) {
			return i
		}
	}
	for i, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), search) {
			return i
		}
	}
	return -1
}
