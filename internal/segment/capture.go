// Package segment turns a continuous two-channel stream into discrete
// captures of loud activity and hands them to the game through a queue.
package segment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/emmett/pingpong/internal/dsp"
)

// Capture is one segment of loud activity, filtered, with padding on both sides
type Capture struct {
	ID    uuid.UUID `json:"id"`
	Left  []float64 `json:"left"`
	Right []float64 `json:"right"`

	// StartIdx and EndIdx bound the loud run in stream samples. Left and
	// Right extend Padding samples beyond it on each side.
	StartIdx uint64 `json:"start_idx"`
	EndIdx   uint64 `json:"end_idx"`
}

// Len returns the number of samples per channel
func (c Capture) Len() int {
	return len(c.Left)
}

// MeanRMS returns the mean of the per-channel RMS energy
func (c Capture) MeanRMS() float64 {
	return dsp.MeanRMS(c.Left, c.Right)
}

// SaveCaptures writes captures to path as JSON
func SaveCaptures(path string, captures []Capture) error {
	if captures == nil {
		captures = []Capture{}
	}

	data, err := json.MarshalIndent(captures, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal captures: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create capture directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write captures: %w", err)
	}
	return nil
}

// LoadCaptures reads captures written by SaveCaptures
func LoadCaptures(path string) ([]Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read captures: %w", err)
	}

	var captures []Capture
	if err := json.Unmarshal(data, &captures); err != nil {
		return nil, fmt.Errorf("failed to parse captures: %w", err)
	}
	return captures, nil
}
