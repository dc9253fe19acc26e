package game

import (
	"time"

	"github.com/mushi-tcg/mushi-server-go/internal/game/rules"
)

// Snapshot is a deep copy of a match at one point in time. It is what replays
// store and what checksums are computed over.
type Snapshot struct {
	MatchID    string         `json:"matchId"`
	Sequence   int            `json:"sequence"`
	Turn       int            `json:"turn"`
	Phase      rules.Phase    `json:"phase"`
	Active     int            `json:"currentPlayerIndex"`
	Started    bool           `json:"started"`
	Ended      bool           `json:"ended"`
	Winner     int            `json:"winner"`
	EndReason  EndReason      `json:"endReason,omitempty"`
	Players    []*PlayerState `json:"players"`
	LastAction *Action        `json:"lastAction,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Snapshot captures the current state.
func (m *Match) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Match) snapshotLocked() *Snapshot {
	s := &Snapshot{
		MatchID:   m.id,
		Sequence:  m.sequence,
		Turn:      m.turns.Turn(),
		Phase:     m.turns.Phase(),
		Active:    m.turns.Active(),
		Started:   m.started,
		Ended:     m.ended,
		Winner:    m.winner,
		EndReason: m.endReason,
		Players:   make([]*PlayerState, len(m.players)),
		Timestamp: time.Now(),
	}
	for i, p := range m.players {
		s.Players[i] = p.clone()
	}
	if m.lastAction != nil {
		s.LastAction = m.lastAction.clone()
	}
	return s
}

// WinnerID returns the winning player's id, or "".
func (s *Snapshot) WinnerID() string {
	if s.Winner < 0 || s.Winner >= len(s.Players) {
		return ""
	}
	return s.Players[s.Winner].ID
}
