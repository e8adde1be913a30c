// Package direction estimates which side of the table a sound came from using
// the inter-channel delay between two microphones.
package direction

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/emmett/pingpong/internal/dsp"
)

// ErrDegenerateGeometry is returned when the microphone spacing allows no
// measurable delay at the sample rate
var ErrDegenerateGeometry = errors.New("microphone geometry allows no inter-channel delay")

// Side is a side of the table, as seen from the microphones
type Side int

const (
	SideUnset Side = iota
	SideLeft
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return "unset"
	}
}

// Opposite returns the other side
func (s Side) Opposite() Side {
	switch s {
	case SideLeft:
		return SideRight
	case SideRight:
		return SideLeft
	default:
		return SideUnset
	}
}

// Technique selects the delay estimation method
type Technique int

const (
	// Beamforming sweeps every candidate delay and keeps the loudest sum
	Beamforming Technique = iota
	// CrossCorrelation picks the peak of the cross-correlation
	CrossCorrelation
)

func (t Technique) String() string {
	if t == CrossCorrelation {
		return "xcorr"
	}
	return "beamforming"
}

// ParseTechnique parses a technique name
func ParseTechnique(s string) (Technique, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "beamforming", "beamformer", "bf":
		return Beamforming, nil
	case "xcorr", "cross-correlation", "crosscorrelation":
		return CrossCorrelation, nil
	default:
		return 0, fmt.Errorf("unknown direction technique: %s (valid: beamforming, xcorr)", s)
	}
}

// MaxDelay returns the largest physically possible delay in samples,
// floor(separation / speed * sampleRate)
func MaxDelay(separationM, speedOfSound, sampleRate float64) (int, error) {
	if speedOfSound <= 0 {
		return 0, fmt.Errorf("speed of sound must be positive, got %.1f", speedOfSound)
	}
	d := int(math.Floor(separationM / speedOfSound * sampleRate))
	if d <= 0 {
		return 0, fmt.Errorf("%w: %.3f m at %.0f Hz", ErrDegenerateGeometry, separationM, sampleRate)
	}
	return d, nil
}

// Estimator maps a two-channel capture to a delay, an angle and a side.
// A positive delay means the right channel lags, so the sound reached the
// left microphone first.
type Estimator struct {
	technique Technique
	maxDelay  int
}

// New creates an estimator searching delays in [-maxDelay, maxDelay]
func New(technique Technique, maxDelay int) (*Estimator, error) {
	if maxDelay <= 0 {
		return nil, ErrDegenerateGeometry
	}
	return &Estimator{technique: technique, maxDelay: maxDelay}, nil
}

// Technique returns the configured technique
func (e *Estimator) Technique() Technique {
	return e.technique
}

// MaxDelay returns the search bound in samples
func (e *Estimator) MaxDelay() int {
	return e.maxDelay
}

// EstimateDelay returns the delay in samples, within [-MaxDelay, MaxDelay]
func (e *Estimator) EstimateDelay(left, right []float64) int {
	if e.technique == CrossCorrelation {
		return xcorrDelay(left, right, e.maxDelay)
	}
	return beamformDelay(left, right, e.maxDelay)
}

// EstimateSide returns the side and the angle in degrees
func (e *Estimator) EstimateSide(left, right []float64) (Side, float64) {
	angle := DelayToAngle(e.EstimateDelay(left, right), e.maxDelay)
	return SideFromAngle(angle), angle
}

// DelayToAngle converts a delay to an angle in degrees, 90 - acos(delay/maxDelay)
func DelayToAngle(delay, maxDelay int) float64 {
	ratio := float64(delay) / float64(maxDelay)
	ratio = math.Max(-1, math.Min(1, ratio))
	return 90 - math.Acos(ratio)*180/math.Pi
}

// SideFromAngle maps a positive angle to the left, anything else to the right
func SideFromAngle(angle float64) Side {
	if angle > 0 {
		return SideLeft
	}
	return SideRight
}

// beamformDelay shifts the later channel by each candidate delay, sums the
// overlap and keeps the delay with the largest RMS. Ties keep the first.
func beamformDelay(left, right []float64, maxDelay int) int {
	n := len(left)
	if len(right) < n {
		n = len(right)
	}

	best := 0
	bestRMS := -1.0
	sum := make([]float64, n)
	for d := -maxDelay; d <= maxDelay; d++ {
		shift := d
		if shift < 0 {
			shift = -shift
		}
		if shift >= n {
			continue
		}

		overlap := sum[:n-shift]
		for i := range overlap {
			if d > 0 {
				overlap[i] = left[i] + right[i+shift]
			} else {
				overlap[i] = right[i] + left[i+shift]
			}
		}

		if rms := dsp.RMS(overlap); rms > bestRMS {
			bestRMS = rms
			best = d
		}
	}
	return best
}

// xcorrDelay picks the lag with the largest cross-correlation between left
// and right, restricted to [-maxDelay, maxDelay]. The delay is the negated lag.
func xcorrDelay(left, right []float64, maxDelay int) int {
	n := len(left)
	if len(right) < n {
		n = len(right)
	}

	best := 0
	var bestCorr float64
	first := true
	for lag := -maxDelay; lag <= maxDelay; lag++ {
		var corr float64
		for m := 0; m < n; m++ {
			j := m - lag
			if j < 0 || j >= n {
				continue
			}
			corr += left[m] * right[j]
		}
		if first || corr > bestCorr {
			bestCorr = corr
			best = lag
			first = false
		}
	}
	return -best
}

// EstimatePolarity returns -1 when the channels are anti-correlated, which
// happens when one microphone is wired with reversed polarity, and 1 otherwise
func EstimatePolarity(left, right []float64) int {
	n := len(left)
	if len(right) < n {
		n = len(right)
	}

	var dot float64
	for i := 0; i < n; i++ {
		dot += left[i] * right[i]
	}
	if dot < 0 {
		return -1
	}
	return 1
}
