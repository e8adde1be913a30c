package direction

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// burst returns a noise burst in the middle of n zero samples, and the same
// burst delayed by delay samples
func burst(n, delay int, seed int64) ([]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	left := make([]float64, n)
	for i := n / 3; i < 2*n/3; i++ {
		left[i] = rng.NormFloat64() * 1000
	}

	right := make([]float64, n)
	for i := range right {
		if j := i - delay; j >= 0 && j < n {
			right[i] = left[j]
		}
	}
	return left, right
}

func TestEstimateDelayRoundTrip(t *testing.T) {
	const maxDelay = 17

	for _, technique := range []Technique{Beamforming, CrossCorrelation} {
		t.Run(technique.String(), func(t *testing.T) {
			est, err := New(technique, maxDelay)
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			for _, delay := range []int{-17, -12, -5, -1, 0, 1, 4, 9, 17} {
				left, right := burst(600, delay, int64(100+delay))
				if got := est.EstimateDelay(left, right); got != delay {
					t.Errorf("delay %d estimated as %d", delay, got)
				}
			}
		})
	}
}

func TestEstimateSide(t *testing.T) {
	est, err := New(Beamforming, 17)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Right channel lags, so the sound reached the left microphone first.
	left, right := burst(600, 8, 1)
	side, angle := est.EstimateSide(left, right)
	if side != SideLeft || angle <= 0 {
		t.Errorf("got %s at %.1f degrees, want left with a positive angle", side, angle)
	}

	left, right = burst(600, -8, 2)
	side, angle = est.EstimateSide(left, right)
	if side != SideRight || angle >= 0 {
		t.Errorf("got %s at %.1f degrees, want right with a negative angle", side, angle)
	}
}

func TestDelayToAngle(t *testing.T) {
	tests := []struct {
		delay int
		want  float64
		side  Side
	}{
		{17, 90, SideLeft},
		{0, 0, SideRight},
		{-17, -90, SideRight},
		{30, 90, SideLeft},
	}

	for _, tt := range tests {
		got := DelayToAngle(tt.delay, 17)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("DelayToAngle(%d) = %v, want %v", tt.delay, got, tt.want)
		}
		if side := SideFromAngle(got); side != tt.side {
			t.Errorf("SideFromAngle(%v) = %s, want %s", got, side, tt.side)
		}
	}

	if got := DelayToAngle(6, 17); got <= 0 || got >= 90 {
		t.Errorf("DelayToAngle(6) = %v, want within (0, 90)", got)
	}
}

func TestMaxDelay(t *testing.T) {
	got, err := MaxDelay(5.0/12*0.3048, 340, 48000)
	if err != nil {
		t.Fatalf("MaxDelay: %v", err)
	}
	if got != 17 {
		t.Errorf("MaxDelay() = %d, want 17", got)
	}

	if _, err := MaxDelay(0.001, 340, 48000); !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("MaxDelay() error = %v, want ErrDegenerateGeometry", err)
	}
	if _, err := MaxDelay(0.1, 0, 48000); err == nil {
		t.Error("expected error for zero speed of sound")
	}
	if _, err := New(Beamforming, 0); !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("New() error = %v, want ErrDegenerateGeometry", err)
	}
}

func TestParseTechnique(t *testing.T) {
	tests := []struct {
		in      string
		want    Technique
		wantErr bool
	}{
		{"beamforming", Beamforming, false},
		{"XCORR", CrossCorrelation, false},
		{" bf ", Beamforming, false},
		{"music", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseTechnique(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTechnique(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTechnique(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEstimatePolarity(t *testing.T) {
	left, right := burst(300, 0, 3)
	if got := EstimatePolarity(left, right); got != 1 {
		t.Errorf("EstimatePolarity(same) = %d, want 1", got)
	}

	for i := range right {
		right[i] = -right[i]
	}
	if got := EstimatePolarity(left, right); got != -1 {
		t.Errorf("EstimatePolarity(inverted) = %d, want -1", got)
	}
}

func TestSideOpposite(t *testing.T) {
	if SideLeft.Opposite() != SideRight || SideRight.Opposite() != SideLeft || SideUnset.Opposite() != SideUnset {
		t.Error("Opposite() mismatch")
	}
}
