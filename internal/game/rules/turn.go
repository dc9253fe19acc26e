package rules

import (
	"fmt"
)

// Phase is a step of a single player's turn cycle.
type Phase int

const (
	PhaseDraw Phase = iota
	PhaseSet
	PhaseMain
	PhaseEnd
)

var phaseNames = map[Phase]string{
	PhaseDraw: "draw",
	PhaseSet:  "set",
	PhaseMain: "main",
	PhaseEnd:  "end",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase_%d", int(p))
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for phase, name := range phaseNames {
		if name == string(text) {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", string(text))
}

// TurnManager tracks the active seat, the phase and the turn counter of a
// two-seat match. Seats are 0 and 1; the turn counter increments each time the
// turn passes back to seat 0.
type TurnManager struct {
	active int
	turn   int
	phase  Phase
}

// NewTurnManager starts at turn 1 in the Set phase with first as the active
// seat. The first player never draws an opening card.
func NewTurnManager(first int) *TurnManager {
	return &TurnManager{
		active: first & 1,
		turn:   1,
		phase:  PhaseSet,
	}
}

// RestoreTurnManager rebuilds a manager from recorded values.
func RestoreTurnManager(active, turn int, phase Phase) *TurnManager {
	return &TurnManager{active: active & 1, turn: turn, phase: phase}
}

// Active returns the seat whose turn it is.
func (tm *TurnManager) Active() int { return tm.active }

// Opponent returns the seat that is not active.
func (tm *TurnManager) Opponent() int { return 1 - tm.active }

// Turn returns the 1-based turn counter.
func (tm *TurnManager) Turn() int { return tm.turn }

// Phase returns the current phase.
func (tm *TurnManager) Phase() Phase { return tm.phase }

// EnterMain moves Set to Main. It reports false from any other phase.
func (tm *TurnManager) EnterMain() bool {
	if tm.phase != PhaseSet {
		return false
	}
	tm.phase = PhaseMain
	return true
}

// EndTurn moves through End into the next seat's Draw phase. It returns the
// new active seat.
func (tm *TurnManager) EndTurn() int {
	tm.phase = PhaseEnd
	tm.active = 1 - tm.active
	if tm.active == 0 {
		tm.turn++
	}
	tm.phase = PhaseDraw
	return tm.active
}

// SkipsOpeningDraw reports whether the newly active seat is exempt from its
// turn-start draw.
func (tm *TurnManager) SkipsOpeningDraw() bool {
	return tm.turn == 1 && tm.active == 0
}

// FinishDraw moves Draw to Set.
func (tm *TurnManager) FinishDraw() {
	if tm.phase == PhaseDraw {
		tm.phase = PhaseSet
	}
}
