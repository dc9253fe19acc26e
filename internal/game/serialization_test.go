package game

import (
	"testing"
	"time"

	"github.com/mushi-tcg/mushi-server-go/internal/catalog"
	"github.com/mushi-tcg/mushi-server-go/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checksumOf(t *testing.T, s *Snapshot) string {
	t.Helper()
	sum, err := s.ComputeChecksum()
	require.NoError(t, err)
	return sum.Hash
}

func TestComputeChecksum(t *testing.T) {
	s := newStartedMatch(t, 1).Snapshot()
	sum, err := s.ComputeChecksum()
	require.NoError(t, err)
	assert.Len(t, sum.Hash, 64)
	assert.Equal(t, 1, sum.Version)
	assert.NotEmpty(t, sum.Timestamp)
}

func TestChecksumIsDeterministic(t *testing.T) {
	a := newStartedMatch(t, 8).Snapshot()
	b := newStartedMatch(t, 8).Snapshot()
	assert.Equal(t, checksumOf(t, a), checksumOf(t, b))
}

func TestChecksumIgnoresTimestampAndSequence(t *testing.T) {
	s := newStartedMatch(t, 2).Snapshot()
	before := checksumOf(t, s)

	s.Timestamp = s.Timestamp.Add(time.Hour)
	s.Sequence += 10
	assert.Equal(t, before, checksumOf(t, s))
}

func TestChecksumDetectsChanges(t *testing.T) {
	base := newStartedMatch(t, 2).Snapshot()
	hash := checksumOf(t, base)

	mutations := map[string]func(s *Snapshot){
		"turn":   func(s *Snapshot) { s.Turn++ },
		"phase":  func(s *Snapshot) { s.Phase = rules.PhaseMain },
		"active": func(s *Snapshot) { s.Active = 1 - s.Active },
		"food":   func(s *Snapshot) { s.Players[0].CurrentFood = 3 },
		"hand order": func(s *Snapshot) {
			h := s.Players[1].Hand
			h[0], h[1] = h[1], h[0]
		},
		"damage": func(s *Snapshot) {
			s.Players[0].Field = []FieldCard{{Card: bug("x", catalog.ElementRed, 1, 3, 1), Damage: 1}}
		},
		"winner": func(s *Snapshot) { s.Winner = 0 },
		"last action": func(s *Snapshot) {
			s.LastAction = &Action{PlayerID: "p1", Type: ActionEndTurn}
		},
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			s := newStartedMatch(t, 2).Snapshot()
			mutate(s)
			assert.NotEqual(t, hash, checksumOf(t, s))
		})
	}
}

func TestSerializationRoundtrip(t *testing.T) {
	m := arrange(t, 0, 2, rules.PhaseMain,
		board{
			hand:  []catalog.Card{bug("h", catalog.ElementGreen, 2, 3, 1)},
			field: []FieldCard{onField(bug("f", catalog.ElementBlue, 1, 3, 2))},
			food:  fillerCards("food", 2),
		},
		board{territory: fillerCards("t", 3)},
	)
	require.NoError(t, m.ProcessAction(attack("p1", "f", "")))

	s := m.Snapshot()
	require.NoError(t, ValidateSerializationRoundtrip(s))

	data, err := s.SerializeToBytes()
	require.NoError(t, err)
	decoded, err := DeserializeFromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, rules.PhaseMain, decoded.Phase)
	assert.Equal(t, "f", decoded.Players[0].Field[0].Card.ID)
	assert.True(t, decoded.Players[0].Field[0].HasAttacked)
	assert.Equal(t, 2, *decoded.Players[0].Field[0].Card.Techniques[0].Attack)
}

func TestDeserializeGarbage(t *testing.T) {
	_, err := DeserializeFromBytes([]byte("not gob"))
	assert.Error(t, err)
}

func TestSnapshotIsDetached(t *testing.T) {
	m := arrange(t, 0, 1, rules.PhaseMain, board{hand: fillerCards("h", 1)}, board{})
	s := m.Snapshot()
	s.Players[0].Hand[0].ID = "changed"
	assert.Equal(t, "h-00", m.players[0].Hand[0].ID)
	assert.Empty(t, s.WinnerID())
}
