package segment

import (
	"testing"
)

func testConfig() Config {
	return Config{
		WindowLen:     10,
		EnergyThresh:  5,
		MaxCaptureLen: 1000,
		Padding:       3,
	}
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *Queue) {
	t.Helper()
	q := NewQueue()
	e, err := NewEngine(cfg, q, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e, q
}

// stream builds a signal from (length, value) runs
func stream(runs ...[2]int) []float64 {
	var out []float64
	for _, r := range runs {
		for i := 0; i < r[0]; i++ {
			out = append(out, float64(r[1]))
		}
	}
	return out
}

// feed processes left and right in blocks of size and returns every capture
func feed(e *Engine, left, right []float64, size int) []Capture {
	var caps []Capture
	for off := 0; off < len(left); off += size {
		end := off + size
		if end > len(left) {
			end = len(left)
		}
		caps = append(caps, e.Process(left[off:end], right[off:end], uint64(off))...)
	}
	return caps
}

func TestWriteIndexTracksSamplesWritten(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCaptureLen = 97
	e, _ := newTestEngine(t, cfg)

	var total uint64
	for _, size := range []int{10, 40, 96, 97, 250, 1, 33} {
		block := make([]float64, size)
		e.Process(block, block, total)
		total += uint64(size)

		if e.Written() != total {
			t.Fatalf("Written() = %d, want %d", e.Written(), total)
		}
		if want := int(total % 97); e.WriteIndex() != want {
			t.Fatalf("after %d samples WriteIndex() = %d, want %d", total, e.WriteIndex(), want)
		}
	}
}

func TestIsolatedLoudRunProducesPaddedCapture(t *testing.T) {
	for _, size := range []int{10, 20, 130} {
		e, q := newTestEngine(t, testConfig())

		sig := stream([2]int{50, 0}, [2]int{30, 100}, [2]int{50, 0})
		caps := feed(e, sig, sig, size)

		if len(caps) != 1 {
			t.Fatalf("block %d: got %d captures, want 1", size, len(caps))
		}
		c := caps[0]
		if c.Len() != 30+2*3 {
			t.Errorf("block %d: capture length = %d, want 36", size, c.Len())
		}
		if c.StartIdx != 50 || c.EndIdx != 80 {
			t.Errorf("block %d: indices = [%d, %d), want [50, 80)", size, c.StartIdx, c.EndIdx)
		}
		for i, v := range c.Left {
			want := 100.0
			if i < 3 || i >= 33 {
				want = 0
			}
			if v != want {
				t.Fatalf("block %d: sample %d = %v, want %v", size, i, v, want)
			}
		}
		if q.Len() != 1 {
			t.Errorf("block %d: queue holds %d captures, want 1", size, q.Len())
		}
	}
}

func TestShortGapMergesLongGapSplits(t *testing.T) {
	tests := []struct {
		name string
		sig  []float64
		want int
	}{
		{
			name: "gap shorter than a window",
			sig:  stream([2]int{50, 0}, [2]int{30, 100}, [2]int{5, 0}, [2]int{25, 100}, [2]int{40, 0}),
			want: 1,
		},
		{
			name: "gap of a whole window",
			sig:  stream([2]int{50, 0}, [2]int{30, 100}, [2]int{10, 0}, [2]int{30, 100}, [2]int{40, 0}),
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t, testConfig())
			caps := feed(e, tt.sig, tt.sig, 10)
			if len(caps) != tt.want {
				t.Errorf("got %d captures, want %d", len(caps), tt.want)
			}
		})
	}
}

func TestEitherChannelMakesWindowLoud(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())

	quiet := stream([2]int{100, 0})
	loud := stream([2]int{40, 0}, [2]int{20, 100}, [2]int{40, 0})

	if caps := feed(e, quiet, loud, 10); len(caps) != 1 {
		t.Fatalf("right-only loud run: got %d captures, want 1", len(caps))
	}
	if caps := feed(e, loud, quiet, 10); len(caps) != 1 {
		t.Fatalf("left-only loud run: got %d captures, want 1", len(caps))
	}
}

func TestCaptureWrapsAroundBufferEnd(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCaptureLen = 100
	e, _ := newTestEngine(t, cfg)

	sig := stream([2]int{90, 0})
	for k := 0; k < 20; k++ {
		sig = append(sig, float64(100+k))
	}
	sig = append(sig, stream([2]int{20, 0})...)

	caps := feed(e, sig, sig, 10)
	if len(caps) != 1 {
		t.Fatalf("got %d captures, want 1", len(caps))
	}
	c := caps[0]
	if c.Len() != 26 {
		t.Fatalf("capture length = %d, want 26", c.Len())
	}
	for k := 0; k < 20; k++ {
		if c.Left[3+k] != float64(100+k) {
			t.Fatalf("sample %d = %v, want %v", 3+k, c.Left[3+k], float64(100+k))
		}
	}
}

func TestOverflowForcesFinalize(t *testing.T) {
	tests := []struct {
		name                string
		window, pad, maxLen int
	}{
		{"exact fit", 10, 3, 50},
		{"padding fills remainder", 10, 5, 100},
		{"uneven remainder", 10, 4, 97},
		{"default shape", 480, 50, 240000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{WindowLen: tt.window, EnergyThresh: 5, MaxCaptureLen: tt.maxLen, Padding: tt.pad}
			e, _ := newTestEngine(t, cfg)

			// distinct quiet samples, then a loud ramp longer than two buffers
			pre := tt.window
			run := (2*tt.maxLen/tt.window + 3) * tt.window
			sig := make([]float64, pre+run+2*tt.window)
			for i := 0; i < pre; i++ {
				sig[i] = float64(i+1) / 1e4
			}
			for k := 0; k < run; k++ {
				sig[pre+k] = float64(100 + k)
			}

			caps := feed(e, sig, sig, tt.window)
			if len(caps) < 2 {
				t.Fatalf("got %d captures, want several from a run longer than the buffer", len(caps))
			}

			for i, c := range caps {
				if c.Len() > cfg.MaxCaptureLen {
					t.Fatalf("capture %d length %d exceeds %d", i, c.Len(), cfg.MaxCaptureLen)
				}
				// forced captures end at the last loud window, the final one is padded
				end := int(c.EndIdx)
				if i == len(caps)-1 {
					end += tt.pad
				}
				start := end - c.Len()
				if i < len(caps)-1 && start != int(c.StartIdx)-tt.pad {
					t.Fatalf("capture %d starts at %d, want %d", i, start, int(c.StartIdx)-tt.pad)
				}
				for k := 0; k < c.Len(); k++ {
					if c.Left[k] != sig[start+k] || c.Right[k] != sig[start+k] {
						t.Fatalf("capture %d sample %d = %v, want %v", i, k, c.Left[k], sig[start+k])
					}
				}
			}

			first := caps[0]
			if int(first.StartIdx) != pre {
				t.Fatalf("first capture StartIdx = %d, want %d", first.StartIdx, pre)
			}
			for k := 0; k < tt.pad; k++ {
				if want := sig[pre-tt.pad+k]; first.Left[k] != want {
					t.Fatalf("pre-padding sample %d = %v, want %v written before the run", k, first.Left[k], want)
				}
			}
		})
	}
}

func TestGateDiscardsCaptures(t *testing.T) {
	e, q := newTestEngine(t, testConfig())

	quiet := stream([2]int{20, 0})
	loud := stream([2]int{20, 100})

	e.SetEnabled(false)
	feed(e, append(append([]float64{}, loud...), quiet...), append(append([]float64{}, loud...), quiet...), 10)
	if q.Ready() {
		t.Fatal("capture queued while gate was closed")
	}

	// Started while closed, finished while open.
	e.Process(loud, loud, 0)
	e.SetEnabled(true)
	e.Process(quiet, quiet, 20)
	if q.Ready() {
		t.Fatal("capture straddling the gate change was queued")
	}

	// Started while open, finished while closed.
	e.Process(loud, loud, 40)
	e.SetEnabled(false)
	e.Process(quiet, quiet, 60)
	if q.Ready() {
		t.Fatal("capture straddling the gate change was queued")
	}

	e.SetEnabled(true)
	e.Process(loud, loud, 80)
	e.Process(quiet, quiet, 100)
	if q.Len() != 1 {
		t.Fatalf("queue holds %d captures, want 1", q.Len())
	}
}

func TestTrailingPartialWindowIsNotClassified(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())

	block := stream([2]int{10, 0}, [2]int{5, 100})
	e.Process(block, block, 0)
	if e.Capturing() {
		t.Error("partial window started a capture")
	}
	if e.Written() != 15 {
		t.Errorf("Written() = %d, want 15", e.Written())
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero window", func(c *Config) { c.WindowLen = 0 }, true},
		{"padding beyond window", func(c *Config) { c.Padding = c.WindowLen + 1 }, true},
		{"buffer too small", func(c *Config) { c.MaxCaptureLen = c.WindowLen }, true},
		{"negative threshold", func(c *Config) { c.EnergyThresh = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
