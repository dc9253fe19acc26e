package game

import (
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var matchIDPattern = regexp.MustCompile(`^[1-9]\d{3}$`)

func TestCreateMatchIssuesFourDigitIDs(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t), WithSeed(1))
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		m, err := r.CreateMatch()
		require.NoError(t, err)
		assert.Regexp(t, matchIDPattern, m.ID())
		assert.False(t, seen[m.ID()], "duplicate id %s", m.ID())
		seen[m.ID()] = true
	}
	assert.Equal(t, 200, r.Len())
}

func TestCreateMatchExhaustion(t *testing.T) {
	r := NewRegistry(nil, WithSeed(2))
	for i := 0; i < maxMatchID-minMatchID+1; i++ {
		_, err := r.CreateMatch()
		require.NoError(t, err)
	}
	_, err := r.CreateMatch()
	assert.ErrorIs(t, err, ErrNoMatchIDs)
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t), WithSeed(3))
	m, err := r.CreateMatch()
	require.NoError(t, err)

	assert.False(t, r.AddPlayer("0000", "c1", "alice", testDeck("a")))
	require.True(t, r.AddPlayer(m.ID(), "c1", "alice", testDeck("a")))
	assert.False(t, r.Start(m.ID()))
	require.True(t, r.AddPlayer(m.ID(), "c2", "bob", testDeck("b")))
	assert.False(t, r.AddPlayer(m.ID(), "c3", "carol", testDeck("c")))

	found, ok := r.FindByActor("c2")
	require.True(t, ok)
	assert.Same(t, m, found)

	require.True(t, r.Start(m.ID()))
	assert.False(t, r.Start(m.ID()))
	assert.False(t, r.AddPlayer(m.ID(), "c3", "carol", testDeck("c")))

	infos := r.Snapshot()
	require.Len(t, infos, 1)
	assert.Equal(t, []string{"alice", "bob"}, infos[0].Players)
	assert.Equal(t, "IN_PROGRESS", infos[0].Status)

	require.True(t, r.End(m.ID()))
	assert.False(t, r.End(m.ID()))
	_, ok = r.FindByActor("c1")
	assert.False(t, ok)
	_, ok = r.Get(m.ID())
	assert.False(t, ok)
	assert.True(t, m.Ended())
	assert.Equal(t, ReasonAbandoned, m.EndReason())
}

func TestActorSeatedOnce(t *testing.T) {
	r := NewRegistry(nil, WithSeed(4))
	a, err := r.CreateMatch()
	require.NoError(t, err)
	b, err := r.CreateMatch()
	require.NoError(t, err)

	require.True(t, r.AddPlayer(a.ID(), "c1", "alice", testDeck("a")))
	assert.False(t, r.AddPlayer(b.ID(), "c1", "alice", testDeck("a")))
}

func TestRegistryConcurrentCreate(t *testing.T) {
	r := NewRegistry(nil)
	var wg sync.WaitGroup
	ids := make(chan string, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := r.CreateMatch()
			if err == nil {
				ids <- m.ID()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Len(t, seen, 100)
}

type countingRecorder struct {
	mu    sync.Mutex
	count map[string]int
}

func (c *countingRecorder) RecordState(matchID string, _ *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count[matchID]++
}

func TestRegistryAttachesRecorder(t *testing.T) {
	rec := &countingRecorder{count: map[string]int{}}
	r := NewRegistry(nil, WithSeed(5), WithMatchRecorder(rec))
	m, err := r.CreateMatch()
	require.NoError(t, err)
	require.True(t, r.AddPlayer(m.ID(), "c1", "alice", testDeck("a")))
	require.True(t, r.AddPlayer(m.ID(), "c2", "bob", testDeck("b")))
	require.True(t, r.Start(m.ID()))

	require.NoError(t, m.ProcessAction(act(m.ActivePlayerID(), ActionEndTurn)))
	assert.Equal(t, 2, rec.count[m.ID()])
}
