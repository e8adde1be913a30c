package game

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/emmett/pingpong/internal/direction"
)

type fakeGate struct {
	mu      sync.Mutex
	enabled bool
	calls   int
}

func (g *fakeGate) SetEnabled(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = enabled
	g.calls++
}

func (g *fakeGate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// scriptedPrompter answers Confirm and Input from queues and records whether
// capture was enabled while each prompt was showing
type scriptedPrompter struct {
	gate     *fakeGate
	confirms []bool
	inputs   []string
	messages []string
	asked    []string

	captureDuringPrompt []bool
}

func (p *scriptedPrompter) record() {
	if p.gate != nil {
		p.captureDuringPrompt = append(p.captureDuringPrompt, p.gate.Enabled())
	}
}

func (p *scriptedPrompter) Message(msg string) error {
	p.record()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *scriptedPrompter) Confirm(question string) (bool, error) {
	p.record()
	p.asked = append(p.asked, question)
	if len(p.confirms) == 0 {
		return false, errors.New("no scripted answer")
	}
	ok := p.confirms[0]
	p.confirms = p.confirms[1:]
	return ok, nil
}

func (p *scriptedPrompter) Input(prompt string) (string, error) {
	p.record()
	p.asked = append(p.asked, prompt)
	if len(p.inputs) == 0 {
		return "", nil
	}
	in := p.inputs[0]
	p.inputs = p.inputs[1:]
	return in, nil
}

func setScores(t *testing.T, b *Scoreboard, s1, s2 int) {
	t.Helper()
	if _, err := b.Adjust(1, s1); err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if _, err := b.Adjust(2, s2); err != nil {
		t.Fatalf("Adjust: %v", err)
	}
}

func TestUpdateScoreWinCondition(t *testing.T) {
	tests := []struct {
		name   string
		s1, s2 int
		scorer int
		want   string
	}{
		{"point mid game", 3, 4, 1, "score"},
		{"twenty to nineteen wins", 19, 20, 2, "end"},
		{"deuce needs two clear", 20, 20, 1, "score"},
		{"advantage converts", 21, 20, 1, "end"},
		{"long deuce", 24, 25, 1, "score"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p1, p2 := newPlayers()
			b := NewScoreboard(p1, p2, DefaultRules(), nil)
			setScores(t, b, tt.s1, tt.s2)

			scorer := p1
			if tt.scorer == 2 {
				scorer = p2
			}
			got := b.UpdateScore(ScoreState{Player: scorer})
			if got.Name() != tt.want {
				t.Fatalf("UpdateScore() = %s, want %s", got.Name(), tt.want)
			}
			if end, ok := got.(EndState); ok && end.Winner != scorer {
				t.Errorf("winner = %s, want %s", end.Winner, scorer)
			}
		})
	}
}

func TestUpdateScoreUnknownPlayer(t *testing.T) {
	p1, p2 := newPlayers()
	b := NewScoreboard(p1, p2, DefaultRules(), nil)

	got := b.UpdateScore(ScoreState{Player: &Player{ID: 9}})
	e, ok := got.(ErrorState)
	if !ok || e.Msg != "invalid player passed to scoreboard" {
		t.Fatalf("got %#v, want invalid player error", got)
	}
	if s1, s2 := b.Scores(); s1 != 0 || s2 != 0 {
		t.Errorf("scores changed to %d-%d", s1, s2)
	}
}

func TestAdjust(t *testing.T) {
	p1, p2 := newPlayers()
	b := NewScoreboard(p1, p2, DefaultRules(), nil)

	if got, _ := b.Adjust(1, 3); got != 3 {
		t.Errorf("Adjust(+3) = %d, want 3", got)
	}
	if got, _ := b.Adjust(1, -5); got != 0 {
		t.Errorf("Adjust(-5) = %d, want 0", got)
	}
	if _, err := b.Adjust(3, 1); !errors.Is(err, ErrUnknownPlayer) {
		t.Errorf("Adjust(player 3) error = %v, want ErrUnknownPlayer", err)
	}
}

func TestResult(t *testing.T) {
	p1, p2 := newPlayers()
	b := NewScoreboard(p1, p2, DefaultRules(), nil)
	setScores(t, b, 11, 21)

	w, ws, l, ls := b.Result()
	if w != p2 || ws != 21 || l != p1 || ls != 11 {
		t.Errorf("Result() = %s %d, %s %d", w, ws, l, ls)
	}
}

func TestPauseTogglesCapture(t *testing.T) {
	p1, p2 := newPlayers()
	gate := &fakeGate{enabled: true}
	b := NewScoreboard(p1, p2, DefaultRules(), nil)
	b.SetGate(gate)

	if !b.TogglePause() || !b.Paused() {
		t.Fatal("TogglePause did not pause")
	}
	if gate.Enabled() {
		t.Error("capture still enabled while paused")
	}

	b.SetPaused(false)
	if b.Paused() || !gate.Enabled() {
		t.Error("capture not restored on resume")
	}

	calls := gate.calls
	b.SetPaused(false)
	if gate.calls != calls {
		t.Error("resuming twice toggled the gate again")
	}
}

func TestPromptsDisableCapture(t *testing.T) {
	p1, p2 := newPlayers()
	gate := &fakeGate{enabled: true}
	prompter := &scriptedPrompter{gate: gate, confirms: []bool{true}, inputs: []string{"carol"}}
	b := NewScoreboard(p1, p2, DefaultRules(), prompter)
	b.SetGate(gate)

	if err := b.Message("hello"); err != nil {
		t.Fatalf("Message: %v", err)
	}
	if ok, err := b.Confirm("ready?"); err != nil || !ok {
		t.Fatalf("Confirm() = %v, %v", ok, err)
	}
	if name, err := b.Input("name"); err != nil || name != "carol" {
		t.Fatalf("Input() = %q, %v", name, err)
	}

	for i, enabled := range prompter.captureDuringPrompt {
		if enabled {
			t.Errorf("prompt %d ran with capture enabled", i)
		}
	}
	if !gate.Enabled() {
		t.Error("capture not restored after prompts")
	}

	b.SetPaused(true)
	_ = b.Message("paused")
	if gate.Enabled() {
		t.Error("prompt re-enabled capture while paused")
	}
}

func TestSnapshotsReachSubscribers(t *testing.T) {
	p1, p2 := newPlayers()
	b := NewScoreboard(p1, p2, DefaultRules(), nil)

	var got []Snapshot
	b.Subscribe(func(s Snapshot) { got = append(got, s) })

	b.SetPosition(p1, direction.SideLeft)
	b.UpdateScore(ScoreState{Player: p2})
	b.SetState(GameEventState{Event: contact(p1)})
	b.Quit()

	if len(got) != 4 {
		t.Fatalf("got %d snapshots, want 4", len(got))
	}
	last := got[len(got)-1]
	if last.Player2.Score != 1 || last.Player1.Side != "left" || last.Player2.Side != "right" {
		t.Errorf("unexpected snapshot: %+v", last)
	}
	if last.State != "game_event" {
		t.Errorf("state = %s, want game_event", last.State)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Seq <= got[i-1].Seq {
			t.Errorf("sequence not increasing: %d then %d", got[i-1].Seq, got[i].Seq)
		}
	}
	if !b.Quitting() {
		t.Error("Quitting() = false after Quit")
	}
}

func TestPlayerAt(t *testing.T) {
	p1, p2 := newPlayers()
	b := NewScoreboard(p1, p2, DefaultRules(), nil)

	if b.PlayerAt(direction.SideLeft) != nil {
		t.Error("unplaced players matched a side")
	}

	b.SetPosition(p2, direction.SideLeft)
	if b.PlayerAt(direction.SideLeft) != p2 || b.PlayerAt(direction.SideRight) != p1 {
		t.Error("PlayerAt did not follow SetPosition")
	}
}

func TestSubscribersMayUseScoreboard(t *testing.T) {
	p1, p2 := newPlayers()
	b := NewScoreboard(p1, p2, DefaultRules(), nil)

	var seen []uint64
	b.Subscribe(func(s Snapshot) {
		// listeners run outside the lock and may read the board or subscribe
		seen = append(seen, b.Snapshot().Seq)
		if len(seen) == 1 {
			b.Subscribe(func(Snapshot) {})
		}
	})

	b.SetState(StartState{})
	b.Adjust(1, 1)

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("seen = %v, want [1 2]", seen)
	}
}

func TestRenameWhileFormatting(t *testing.T) {
	p1, p2 := newPlayers()
	b := NewScoreboard(p1, p2, DefaultRules(), nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			b.SetName(p1, fmt.Sprintf("alice-%d", i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = p1.String()
			_ = b.Snapshot()
		}
	}()
	wg.Wait()

	if got := b.Snapshot().Player1.Name; got != "alice-199" {
		t.Errorf("Player1.Name = %q, want alice-199", got)
	}
}
