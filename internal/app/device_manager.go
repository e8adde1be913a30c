package app

import (
	"fmt"
	"io"
	"os"

	"github.com/emmett/pingpong/internal/audio"
)

// DeviceManager handles capture device listing and selection
type DeviceManager struct {
	out  io.Writer
	list func() ([]audio.DeviceInfo, error)
}

// NewDeviceManager creates a new DeviceManager writing to stdout
func NewDeviceManager() *DeviceManager {
	return &DeviceManager{out: os.Stdout, list: audio.ListDevices}
}

// ListDevices prints every capture device
func (dm *DeviceManager) ListDevices() error {
	devices, err := dm.list()
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	if len(devices) == 0 {
		fmt.Fprintln(dm.out, "No audio capture devices found.")
		return fmt.Errorf("no devices found")
	}

	fmt.Fprintf(dm.out, "Found %d capture device(s):\n\n", len(devices))
	for i, device := range devices {
		marker := ""
		if device.IsDefault {
			marker = " [DEFAULT]"
		}
		fmt.Fprintf(dm.out, "%d. %s%s\n", i+1, device.Name, marker)
		fmt.Fprintf(dm.out, "   ID: %s\n", device.ID)
	}

	fmt.Fprintln(dm.out)
	fmt.Fprintln(dm.out, "A two-channel input is required. To use a specific device, run:")
	fmt.Fprintf(dm.out, "  pingpong play --device \"%s\"\n", devices[0].Name)
	return nil
}

// SelectDevice resolves a device by ID or name, or returns the default
func (dm *DeviceManager) SelectDevice(want string) (*audio.DeviceInfo, error) {
	devices, err := dm.list()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	if want == "" {
		return audio.DefaultDevice(devices)
	}
	device, err := audio.FindDevice(devices, want)
	if err != nil {
		return nil, fmt.Errorf("invalid audio device specified: %w", err)
	}
	return device, nil
}
