// Package dsp holds the signal processing used ahead of hit detection:
// band-pass filter design, streaming filtering and energy measurement.
package dsp

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
)

// FilterType selects the analog prototype used for band-pass design
type FilterType string

const (
	// Chebyshev1 is an equiripple passband design
	Chebyshev1 FilterType = "cheby1"
	// Butterworth is a maximally flat passband design
	Butterworth FilterType = "butter"
)

var (
	// ErrInvalidBand is returned when the pass band cannot be realised at the sample rate
	ErrInvalidBand = errors.New("invalid pass band")
	// ErrInvalidOrder is returned for a prototype order below one
	ErrInvalidOrder = errors.New("filter order must be at least 1")
)

// FilterSpec describes a band-pass filter
type FilterSpec struct {
	Type FilterType

	// Order is the prototype order K. The resulting band-pass filter has order 2K.
	Order int

	// RippleDB is the passband ripple in decibels (Chebyshev only)
	RippleDB float64

	// Low and High are the band edges in Hz
	Low  float64
	High float64

	// SampleRate is the stream sample rate in Hz
	SampleRate float64
}

// DefaultFilterSpec returns the 8-10 kHz Chebyshev band used for paddle strikes at 48 kHz
func DefaultFilterSpec() FilterSpec {
	return FilterSpec{
		Type:       Chebyshev1,
		Order:      6,
		RippleDB:   0.5,
		Low:        8000,
		High:       10000,
		SampleRate: 48000,
	}
}

// Validate checks that s describes a realisable filter
func (s FilterSpec) Validate() error {
	if s.Order < 1 {
		return ErrInvalidOrder
	}
	if s.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %.0f", ErrInvalidBand, s.SampleRate)
	}
	nyquist := s.SampleRate / 2
	if s.Low <= 0 || s.High <= s.Low || s.High >= nyquist {
		return fmt.Errorf("%w: [%.0f, %.0f] Hz with Nyquist %.0f Hz", ErrInvalidBand, s.Low, s.High, nyquist)
	}
	switch s.Type {
	case Chebyshev1:
		if s.RippleDB <= 0 {
			return fmt.Errorf("ripple must be positive, got %.2f dB", s.RippleDB)
		}
	case Butterworth:
	default:
		return fmt.Errorf("unknown filter type %q", s.Type)
	}
	return nil
}

// Section is one second-order stage. A[0] is always 1.
type Section struct {
	B [3]float64
	A [3]float64
}

// Sections is a cascade of second-order stages
type Sections []Section

// Design builds a band-pass filter as cascaded second-order sections.
//
// The analog low-pass prototype is shifted to the pre-warped band and mapped
// to the z-plane with the bilinear transform. Every section carries one zero at
// z=1 and one at z=-1.
func Design(spec FilterSpec) (Sections, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	// Normalised to the digital frequency convention fs=2.
	const fsd = 2.0
	nyquist := spec.SampleRate / 2
	w1 := 2 * fsd * math.Tan(math.Pi*(spec.Low/nyquist)/fsd)
	w2 := 2 * fsd * math.Tan(math.Pi*(spec.High/nyquist)/fsd)
	bw := w2 - w1
	wo := math.Sqrt(w1 * w2)

	poles, gain := prototype(spec)

	// Low-pass to band-pass. Each prototype pole becomes two poles and a zero
	// is added at the origin for each.
	bp := make([]complex128, 0, 2*len(poles))
	for _, p := range poles {
		scaled := p * complex(bw/2, 0)
		root := cmplx.Sqrt(scaled*scaled - complex(wo*wo, 0))
		bp = append(bp, scaled+root, scaled-root)
	}
	gain *= math.Pow(bw, float64(len(poles)))

	// Bilinear transform.
	const fs2 = 2 * fsd
	zPoles := make([]complex128, len(bp))
	den := complex(1, 0)
	for i, p := range bp {
		zPoles[i] = (fs2 + p) / (fs2 - p)
		den *= fs2 - p
	}
	num := complex(math.Pow(fs2, float64(len(poles))), 0)
	gain *= real(num / den)

	return groupSections(zPoles, gain), nil
}

// prototype returns the analog low-pass poles and gain for the filter order and type
func prototype(spec FilterSpec) ([]complex128, float64) {
	n := spec.Order
	poles := make([]complex128, 0, n)

	switch spec.Type {
	case Butterworth:
		for m := -n + 1; m < n; m += 2 {
			theta := math.Pi * float64(m) / float64(2*n)
			poles = append(poles, -cmplx.Exp(complex(0, theta)))
		}
		return poles, 1
	default:
		eps := math.Sqrt(math.Pow(10, 0.1*spec.RippleDB) - 1)
		mu := math.Asinh(1/eps) / float64(n)
		gain := complex(1, 0)
		for m := -n + 1; m < n; m += 2 {
			theta := math.Pi * float64(m) / float64(2*n)
			p := -cmplx.Sinh(complex(mu, theta))
			poles = append(poles, p)
			gain *= -p
		}
		k := real(gain)
		if n%2 == 0 {
			k /= math.Sqrt(1 + eps*eps)
		}
		return poles, k
	}
}

// groupSections pairs conjugate poles (and leftover real poles) into
// second-order sections. The overall gain is applied to the first section.
func groupSections(poles []complex128, gain float64) Sections {
	const tol = 1e-12

	var sections Sections
	var reals []float64
	for _, p := range poles {
		switch {
		case imag(p) > tol:
			sections = append(sections, Section{
				B: [3]float64{1, 0, -1},
				A: [3]float64{1, -2 * real(p), real(p)*real(p) + imag(p)*imag(p)},
			})
		case math.Abs(imag(p)) <= tol:
			reals = append(reals, real(p))
		}
	}
	for i := 0; i+1 < len(reals); i += 2 {
		p1, p2 := reals[i], reals[i+1]
		sections = append(sections, Section{
			B: [3]float64{1, 0, -1},
			A: [3]float64{1, -(p1 + p2), p1 * p2},
		})
	}

	if len(sections) > 0 {
		for i := range sections[0].B {
			sections[0].B[i] *= gain
		}
	}
	return sections
}

// Response returns the magnitude response of the cascade at freq Hz
func (s Sections) Response(freq, sampleRate float64) float64 {
	w := 2 * math.Pi * freq / sampleRate
	zInv := cmplx.Exp(complex(0, -w))
	zInv2 := zInv * zInv

	h := complex(1, 0)
	for _, sec := range s {
		num := complex(sec.B[0], 0) + complex(sec.B[1], 0)*zInv + complex(sec.B[2], 0)*zInv2
		den := complex(sec.A[0], 0) + complex(sec.A[1], 0)*zInv + complex(sec.A[2], 0)*zInv2
		h *= num / den
	}
	return cmplx.Abs(h)
}

// Filter applies a section cascade to one channel, carrying state across calls
// so consecutive blocks filter as one continuous stream.
type Filter struct {
	sections Sections
	state    [][2]float64
}

// NewFilter creates a streaming filter with zeroed state
func NewFilter(sections Sections) *Filter {
	return &Filter{
		sections: sections,
		state:    make([][2]float64, len(sections)),
	}
}

// ProcessFloat filters one block
func (f *Filter) ProcessFloat(in []float64) []float64 {
	out := make([]float64, len(in))
	for i, x := range in {
		out[i] = f.step(x)
	}
	return out
}

// Process filters one block of 16-bit samples. Output stays in sample units.
func (f *Filter) Process(in []int16) []float64 {
	buf := make([]float64, len(in))
	for i, x := range in {
		buf[i] = float64(x)
	}
	return f.ProcessFloat(buf)
}

// step runs one sample through the cascade (transposed direct form II)
func (f *Filter) step(x float64) float64 {
	y := x
	for k := range f.sections {
		sec := &f.sections[k]
		st := &f.state[k]
		out := sec.B[0]*y + st[0]
		st[0] = sec.B[1]*y - sec.A[1]*out + st[1]
		st[1] = sec.B[2]*y - sec.A[2]*out
		y = out
	}
	return y
}

// Reset clears the filter state
func (f *Filter) Reset() {
	for i := range f.state {
		f.state[i] = [2]float64{}
	}
}
