package game

// maxConsecutive is the number of contacts one player may make in a row
const maxConsecutive = 2

// Rally tracks whose turn it is and how many contacts they have made
type Rally struct {
	p1, p2      *Player
	current     *Player
	other       *Player
	consecutive int
}

// NewRally creates a rally tracker with p1 as the current player
func NewRally(p1, p2 *Player) *Rally {
	return &Rally{
		p1:      p1,
		p2:      p2,
		current: p1,
		other:   p2,
	}
}

// Current returns the player who made the last contact
func (r *Rally) Current() *Player {
	return r.current
}

// Consecutive returns the current player's contact count
func (r *Rally) Consecutive() int {
	return r.consecutive
}

// NewPoint clears the contact count before the next serve
func (r *Rally) NewPoint() {
	r.consecutive = 0
}

// Transition computes the next state from the current state and an event.
//
// A contact by the other player hands the turn over. More than two contacts in
// a row, or a timeout mid-rally, gives the point to the other player. A timeout
// while waiting for the serve is an error.
func (r *Rally) Transition(current State, ev Event) State {
	if ev.Player != r.p1 && ev.Player != r.p2 {
		return ErrorState{Msg: "event from unknown player"}
	}

	if ev.Player != r.current {
		r.other = r.current
		r.current = ev.Player
		r.consecutive = 0
	}

	switch current.(type) {
	case StartState, ScoreState:
		if ev.Kind == Timeout {
			return ErrorState{Msg: "timed out waiting for serve"}
		}
	}

	if ev.Kind == ContactEvent {
		r.consecutive++
		if r.consecutive > maxConsecutive {
			r.consecutive = 0
			return ScoreState{Player: r.other}
		}
		return GameEventState{Event: ev}
	}

	return ScoreState{Player: r.other}
}
