package game

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emmett/pingpong/internal/direction"
)

// ErrUnknownPlayer is returned for a player ID other than 1 or 2
var ErrUnknownPlayer = errors.New("unknown player")

// Rules hold the win condition
type Rules struct {
	// PointsToWin is the score a player must reach
	PointsToWin int

	// WinBy is the lead required at or past PointsToWin
	WinBy int
}

// DefaultRules returns 21 points, win by two
func DefaultRules() Rules {
	return Rules{PointsToWin: 21, WinBy: 2}
}

// Prompter asks the people at the table for input
type Prompter interface {
	// Message shows a message and returns once it has been acknowledged
	Message(msg string) error

	// Confirm asks a yes/no question
	Confirm(question string) (bool, error)

	// Input asks for a line of text
	Input(prompt string) (string, error)
}

// Gate enables and disables capture production
type Gate interface {
	SetEnabled(enabled bool)
}

// PlayerScore is one player's entry in a Snapshot
type PlayerScore struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Side  string `json:"side"`
	Score int    `json:"score"`
}

// Snapshot is a point-in-time view of the game for remote displays
type Snapshot struct {
	Seq     uint64      `json:"seq"`
	State   string      `json:"state"`
	Detail  string      `json:"detail"`
	Player1 PlayerScore `json:"player1"`
	Player2 PlayerScore `json:"player2"`
	Serving int         `json:"serving"`
	Paused  bool        `json:"paused"`
	Time    time.Time   `json:"time"`
}

// Scoreboard keeps the score, the serving player and the pause and quit
// flags. It is shared by the game, presentation and remote control goroutines.
type Scoreboard struct {
	mu        sync.Mutex
	p1, p2    *Player
	scores    [2]int
	rules     Rules
	serving   *Player
	state     State
	seq       uint64
	listeners []func(Snapshot)

	prompter Prompter
	gate     Gate

	paused atomic.Bool
	quit   atomic.Bool
}

// NewScoreboard creates a scoreboard for p1 and p2. p1 serves first.
func NewScoreboard(p1, p2 *Player, rules Rules, prompter Prompter) *Scoreboard {
	return &Scoreboard{
		p1:       p1,
		p2:       p2,
		rules:    rules,
		serving:  p1,
		state:    StartState{Server: p1},
		prompter: prompter,
	}
}

// SetGate connects the capture gate toggled by pausing and prompts
func (s *Scoreboard) SetGate(g Gate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = g
}

// Subscribe registers fn to receive a snapshot after every change. fn must
// not block.
func (s *Scoreboard) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Players returns both players
func (s *Scoreboard) Players() (*Player, *Player) {
	return s.p1, s.p2
}

// Player returns the player with id
func (s *Scoreboard) Player(id int) (*Player, error) {
	switch id {
	case 1:
		return s.p1, nil
	case 2:
		return s.p2, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPlayer, id)
	}
}

// PlayerAt returns the player positioned on side, or nil
func (s *Scoreboard) PlayerAt(side direction.Side) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch side {
	case s.p1.Position:
		return s.p1
	case s.p2.Position:
		return s.p2
	default:
		return nil
	}
}

// SetPosition places p on side and the opponent on the other side
func (s *Scoreboard) SetPosition(p *Player, side direction.Side) {
	s.mu.Lock()
	p.Position = side
	s.opponentLocked(p).Position = side.Opposite()
	s.mu.Unlock()
	s.notify()
}

// SetName renames a player
func (s *Scoreboard) SetName(p *Player, name string) {
	p.setName(name)
	s.notify()
}

func (s *Scoreboard) opponentLocked(p *Player) *Player {
	if p == s.p1 {
		return s.p2
	}
	return s.p1
}

// UpdateScore awards the point in st. It returns EndState when the scorer has
// won, ErrorState for an unknown player, and st otherwise.
func (s *Scoreboard) UpdateScore(st ScoreState) State {
	s.mu.Lock()

	var idx int
	switch st.Player {
	case s.p1:
		idx = 0
	case s.p2:
		idx = 1
	default:
		s.mu.Unlock()
		return ErrorState{Msg: "invalid player passed to scoreboard"}
	}

	s.scores[idx]++
	var next State = st
	if s.wonLocked(idx) {
		next = EndState{Winner: st.Player}
	}
	s.mu.Unlock()

	s.notify()
	return next
}

func (s *Scoreboard) wonLocked(idx int) bool {
	own, other := s.scores[idx], s.scores[1-idx]
	return own >= s.rules.PointsToWin && own-other >= s.rules.WinBy
}

// Adjust changes a player's score by delta, never below zero, and returns the
// new score
func (s *Scoreboard) Adjust(playerID, delta int) (int, error) {
	if playerID != 1 && playerID != 2 {
		return 0, fmt.Errorf("%w: %d", ErrUnknownPlayer, playerID)
	}

	s.mu.Lock()
	idx := playerID - 1
	s.scores[idx] += delta
	if s.scores[idx] < 0 {
		s.scores[idx] = 0
	}
	score := s.scores[idx]
	s.mu.Unlock()

	s.notify()
	return score, nil
}

// Scores returns player one's and player two's scores
func (s *Scoreboard) Scores() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scores[0], s.scores[1]
}

// Rules returns the win condition
func (s *Scoreboard) Rules() Rules {
	return s.rules
}

// Result returns the leader and trailer with their scores, player one first on a tie
func (s *Scoreboard) Result() (winner *Player, winScore int, loser *Player, loseScore int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scores[1] > s.scores[0] {
		return s.p2, s.scores[1], s.p1, s.scores[0]
	}
	return s.p1, s.scores[0], s.p2, s.scores[1]
}

// SetServing records the serving player
func (s *Scoreboard) SetServing(p *Player) {
	s.mu.Lock()
	changed := s.serving != p
	s.serving = p
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// Serving returns the serving player
func (s *Scoreboard) Serving() *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serving
}

// SetState records the current game state
func (s *Scoreboard) SetState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.notify()
}

// State returns the last recorded game state
func (s *Scoreboard) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetPaused pauses or resumes the game. Capture production stops while paused.
func (s *Scoreboard) SetPaused(paused bool) {
	if s.paused.Swap(paused) == paused {
		return
	}
	s.setCapture(!paused)
	s.notify()
}

// TogglePause flips the pause flag and returns the new value
func (s *Scoreboard) TogglePause() bool {
	paused := !s.paused.Load()
	s.SetPaused(paused)
	return paused
}

// Paused reports whether the game is paused
func (s *Scoreboard) Paused() bool {
	return s.paused.Load()
}

// Quit asks every loop to stop
func (s *Scoreboard) Quit() {
	if !s.quit.Swap(true) {
		s.notify()
	}
}

// Quitting reports whether Quit has been called
func (s *Scoreboard) Quitting() bool {
	return s.quit.Load()
}

// Message shows msg with capture disabled
func (s *Scoreboard) Message(msg string) error {
	if s.prompter == nil {
		return nil
	}
	defer s.holdCapture()()
	return s.prompter.Message(msg)
}

// Confirm asks question with capture disabled
func (s *Scoreboard) Confirm(question string) (bool, error) {
	if s.prompter == nil {
		return true, nil
	}
	defer s.holdCapture()()
	return s.prompter.Confirm(question)
}

// Input asks for text with capture disabled
func (s *Scoreboard) Input(prompt string) (string, error) {
	if s.prompter == nil {
		return "", nil
	}
	defer s.holdCapture()()
	return s.prompter.Input(prompt)
}

// holdCapture disables capture and returns a func restoring it
func (s *Scoreboard) holdCapture() func() {
	s.setCapture(false)
	return func() {
		s.setCapture(!s.paused.Load())
	}
}

func (s *Scoreboard) setCapture(enabled bool) {
	s.mu.Lock()
	g := s.gate
	s.mu.Unlock()
	if g != nil {
		g.SetEnabled(enabled)
	}
}

// Snapshot returns the current view of the game
func (s *Scoreboard) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Scoreboard) snapshotLocked() Snapshot {
	snap := Snapshot{
		Seq:     s.seq,
		Player1: PlayerScore{ID: s.p1.ID, Name: s.p1.String(), Side: s.p1.Position.String(), Score: s.scores[0]},
		Player2: PlayerScore{ID: s.p2.ID, Name: s.p2.String(), Side: s.p2.Position.String(), Score: s.scores[1]},
		Paused:  s.paused.Load(),
		Time:    time.Now(),
	}
	if s.state != nil {
		snap.State = s.state.Name()
		snap.Detail = Describe(s.state)
	}
	if s.serving != nil {
		snap.Serving = s.serving.ID
	}
	return snap
}

func (s *Scoreboard) notify() {
	s.mu.Lock()
	s.seq++
	snap := s.snapshotLocked()
	listeners := make([]func(Snapshot), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
