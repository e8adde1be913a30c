// Package game holds the rally state machine, the scoreboard and the
// coordinator that turns queued captures into game events.
package game

import (
	"fmt"
	"sync"

	"github.com/emmett/pingpong/internal/direction"
)

// Player is one of the two players. Name may be set before the player is
// shared; afterwards rename through Scoreboard.SetName. Position is guarded by
// the scoreboard.
type Player struct {
	ID       int
	Name     string
	Position direction.Side

	mu sync.RWMutex
}

func (p *Player) String() string {
	if p == nil {
		return "unknown player"
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("player %d", p.ID)
}

func (p *Player) setName(name string) {
	p.mu.Lock()
	p.Name = name
	p.mu.Unlock()
}

// EventKind distinguishes a detected sound from the absence of one
type EventKind int

const (
	// ContactEvent is an accepted sound on a player's side
	ContactEvent EventKind = iota
	// Timeout means nothing acceptable was heard in time
	Timeout
)

func (k EventKind) String() string {
	if k == Timeout {
		return "timeout"
	}
	return "contact"
}

// Event is produced by the coordinator and consumed by the state machine
type Event struct {
	Player *Player
	Kind   EventKind

	// Angle is the estimated arrival angle in degrees, for contact events
	Angle float64
}

// State is one of StartState, GameEventState, ScoreState, EndState or ErrorState
type State interface {
	// Name returns a short, stable identifier for the state
	Name() string
	isState()
}

// StartState waits for the serve
type StartState struct {
	Server *Player
}

// GameEventState follows an accepted contact during a rally
type GameEventState struct {
	Event Event
}

// ScoreState awards a point
type ScoreState struct {
	Player *Player
}

// EndState ends the game
type EndState struct {
	Winner *Player
}

// ErrorState ends the game on a protocol error
type ErrorState struct {
	Msg string
}

func (StartState) Name() string     { return "start" }
func (GameEventState) Name() string { return "game_event" }
func (ScoreState) Name() string     { return "score" }
func (EndState) Name() string       { return "end" }
func (ErrorState) Name() string     { return "error" }

func (StartState) isState()     {}
func (GameEventState) isState() {}
func (ScoreState) isState()     {}
func (EndState) isState()       {}
func (ErrorState) isState()     {}

// IsTerminal reports whether no further transitions happen from s
func IsTerminal(s State) bool {
	switch s.(type) {
	case EndState, ErrorState:
		return true
	default:
		return false
	}
}

// StatePlayer returns the player a state refers to, or nil
func StatePlayer(s State) *Player {
	switch st := s.(type) {
	case StartState:
		return st.Server
	case GameEventState:
		return st.Event.Player
	case ScoreState:
		return st.Player
	case EndState:
		return st.Winner
	default:
		return nil
	}
}

// Describe renders a state for people
func Describe(s State) string {
	switch st := s.(type) {
	case StartState:
		return fmt.Sprintf("waiting for %s to serve", st.Server)
	case GameEventState:
		return fmt.Sprintf("%s %s", st.Event.Player, st.Event.Kind)
	case ScoreState:
		return fmt.Sprintf("point to %s", st.Player)
	case EndState:
		return fmt.Sprintf("%s wins", st.Winner)
	case ErrorState:
		return st.Msg
	default:
		return "unknown state"
	}
}
