package game

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/emmett/pingpong/internal/direction"
	"github.com/emmett/pingpong/internal/segment"
)

const testMaxDelay = 17

// bounce builds a capture whose right channel lags the left by delay samples.
// A positive delay places the sound on the left.
func bounce(delay int, amp float64, invert bool) segment.Capture {
	const n = 600
	rng := rand.New(rand.NewSource(int64(delay) + 42))

	left := make([]float64, n)
	for i := n / 3; i < 2*n/3; i++ {
		left[i] = rng.NormFloat64() * amp
	}
	right := make([]float64, n)
	for i := range right {
		if j := i - delay; j >= 0 && j < n {
			right[i] = left[j]
			if invert {
				right[i] = -right[i]
			}
		}
	}
	return segment.Capture{ID: uuid.New(), Left: left, Right: right}
}

func newTestCoordinator(t *testing.T) (*Coordinator, *segment.Queue, *Scoreboard) {
	t.Helper()
	est, err := direction.New(direction.Beamforming, testMaxDelay)
	if err != nil {
		t.Fatalf("direction.New: %v", err)
	}

	p1, p2 := newPlayers()
	board := NewScoreboard(p1, p2, DefaultRules(), nil)
	board.SetPosition(p1, direction.SideLeft)

	q := segment.NewQueue()
	return NewCoordinator(q, est, board, 80, nil), q, board
}

func TestWaitForEventTimesOut(t *testing.T) {
	coord, _, board := newTestCoordinator(t)
	p1, _ := board.Players()
	timeout := 60 * time.Millisecond

	start := time.Now()
	ev := coord.WaitForEvent(context.Background(), timeout, p1)
	elapsed := time.Since(start)

	if ev.Kind != Timeout || ev.Player != p1 {
		t.Fatalf("got %s for %s, want timeout for %s", ev.Kind, ev.Player, p1)
	}
	if elapsed < timeout {
		t.Errorf("returned after %v, before the %v timeout", elapsed, timeout)
	}
	if elapsed > timeout+time.Second {
		t.Errorf("returned after %v, far past the %v timeout", elapsed, timeout)
	}
}

func TestWaitForEventMapsSideToPlayer(t *testing.T) {
	coord, q, board := newTestCoordinator(t)
	p1, p2 := board.Players()

	q.Push(bounce(9, 1000, false))
	ev := coord.WaitForEvent(context.Background(), time.Second, p2)
	if ev.Kind != ContactEvent || ev.Player != p1 {
		t.Fatalf("got %s for %s, want contact for %s", ev.Kind, ev.Player, p1)
	}
	if ev.Angle <= 0 {
		t.Errorf("angle = %.1f, want positive", ev.Angle)
	}

	q.Push(bounce(-9, 1000, false))
	ev = coord.WaitForEvent(context.Background(), time.Second, p1)
	if ev.Kind != ContactEvent || ev.Player != p2 {
		t.Fatalf("got %s for %s, want contact for %s", ev.Kind, ev.Player, p2)
	}
}

func TestWaitForEventRejectsQuietCaptures(t *testing.T) {
	coord, q, board := newTestCoordinator(t)
	p1, _ := board.Players()

	quiet := bounce(-9, 10, false)
	loud := bounce(9, 1000, false)
	q.Push(quiet)
	q.Push(loud)

	capture, err := coord.WaitForCapture(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("WaitForCapture: %v", err)
	}
	if capture.ID != loud.ID {
		t.Fatal("quiet capture was returned")
	}

	q.Push(bounce(9, 10, false))
	if ev := coord.WaitForEvent(context.Background(), 50*time.Millisecond, p1); ev.Kind != Timeout {
		t.Errorf("quiet capture produced a %s event", ev.Kind)
	}
}

func TestRejectionsDoNotExtendTheTimeout(t *testing.T) {
	coord, q, board := newTestCoordinator(t)
	p1, _ := board.Players()
	timeout := 150 * time.Millisecond

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				q.Push(bounce(3, 5, false))
			}
		}
	}()

	start := time.Now()
	ev := coord.WaitForEvent(context.Background(), timeout, p1)
	elapsed := time.Since(start)

	if ev.Kind != Timeout {
		t.Fatalf("got %s, want timeout", ev.Kind)
	}
	if elapsed < timeout || elapsed > timeout+time.Second {
		t.Errorf("returned after %v with a %v timeout", elapsed, timeout)
	}
}

func TestWaitForCaptureStopsOnQuitAndWake(t *testing.T) {
	coord, q, board := newTestCoordinator(t)

	done := make(chan error, 1)
	go func() {
		_, err := coord.WaitForCapture(context.Background(), 5*time.Second)
		done <- err
	}()

	board.Quit()
	deadline := time.After(2 * time.Second)
	for {
		q.WakeAll()
		select {
		case err := <-done:
			if !errors.Is(err, ErrQuit) {
				t.Fatalf("WaitForCapture() error = %v, want ErrQuit", err)
			}
			return
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatal("waiter did not stop")
		}
	}
}

func TestContactFromUnplacedSideIsUnknown(t *testing.T) {
	est, err := direction.New(direction.Beamforming, testMaxDelay)
	if err != nil {
		t.Fatalf("direction.New: %v", err)
	}
	p1, p2 := newPlayers()
	board := NewScoreboard(p1, p2, DefaultRules(), nil)
	q := segment.NewQueue()
	coord := NewCoordinator(q, est, board, 80, nil)

	q.Push(bounce(9, 1000, false))
	ev := coord.WaitForEvent(context.Background(), time.Second, p1)
	if ev.Kind != ContactEvent || ev.Player != nil {
		t.Fatalf("got %s for %s, want contact with no player", ev.Kind, ev.Player)
	}

	st := NewRally(p1, p2).Transition(StartState{Server: p1}, ev)
	if st.Name() != "error" {
		t.Errorf("transition = %s, want error", st.Name())
	}
}
