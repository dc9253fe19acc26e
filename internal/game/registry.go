package game

import (
	"errors"
	"math/rand/v2"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/mushi-tcg/mushi-server-go/internal/catalog"
	"go.uber.org/zap"
)

const (
	minMatchID = 1000
	maxMatchID = 9999
)

// ErrNoMatchIDs is returned when every 4-digit code is taken.
var ErrNoMatchIDs = errors.New("no free match ids")

// MatchInfo is a lightweight listing entry for open matches.
type MatchInfo struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Players   []string  `json:"players"`
	Turn      int       `json:"turn"`
	CreatedAt time.Time `json:"createdAt"`
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithSeed makes match ids, shuffles and first players reproducible.
func WithSeed(seed uint64) RegistryOption {
	return func(r *Registry) { r.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithMatchRecorder attaches a recorder to every match the registry creates.
func WithMatchRecorder(recorder StateRecorder) RegistryOption {
	return func(r *Registry) { r.recorder = recorder }
}

// Registry owns every open match and maps connected actors to them.
type Registry struct {
	mu       sync.RWMutex
	matches  map[string]*Match
	actors   map[string]string // actorID -> matchID
	rngMu    sync.Mutex
	rng      *rand.Rand
	recorder StateRecorder
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		matches: make(map[string]*Match),
		actors:  make(map[string]string),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return r
}

// CreateMatch registers a new match under a fresh 4-digit code.
func (r *Registry) CreateMatch() (*Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := maxMatchID - minMatchID + 1
	if len(r.matches) >= span {
		return nil, ErrNoMatchIDs
	}

	r.rngMu.Lock()
	id := strconv.Itoa(minMatchID + r.rng.IntN(span))
	for r.matches[id] != nil {
		id = strconv.Itoa(minMatchID + r.rng.IntN(span))
	}
	matchRng := rand.New(rand.NewPCG(r.rng.Uint64(), r.rng.Uint64()))
	r.rngMu.Unlock()

	opts := []MatchOption{WithRand(matchRng)}
	if r.logger != nil {
		opts = append(opts, WithLogger(r.logger))
	}
	if r.recorder != nil {
		opts = append(opts, WithRecorder(r.recorder))
	}
	m := NewMatch(id, opts...)
	r.matches[id] = m

	if r.logger != nil {
		r.logger.Info("match created", zap.String("match_id", id), zap.Int("open_matches", len(r.matches)))
	}
	return m, nil
}

// AddPlayer seats actorID in a match. It fails for an unknown, started or
// full match, and for an actor already seated in another open match.
func (r *Registry) AddPlayer(matchID, actorID, username string, deck []catalog.Card) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[matchID]
	if !ok {
		return false
	}
	if current, seated := r.actors[actorID]; seated && current != matchID {
		return false
	}
	if !m.AddPlayer(actorID, username, deck) {
		return false
	}
	r.actors[actorID] = matchID
	return true
}

// Start deals a full match in.
func (r *Registry) Start(matchID string) bool {
	m, ok := r.Get(matchID)
	if !ok {
		return false
	}
	return m.Start()
}

// End drops a match and its actor mappings. A match still in play is marked
// abandoned first.
func (r *Registry) End(matchID string) bool {
	r.mu.Lock()
	m, ok := r.matches[matchID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.matches, matchID)
	for actor, id := range r.actors {
		if id == matchID {
			delete(r.actors, actor)
		}
	}
	remaining := len(r.matches)
	r.mu.Unlock()

	m.ForceEnd("", ReasonAbandoned)

	if r.logger != nil {
		r.logger.Info("match removed", zap.String("match_id", matchID), zap.Int("open_matches", remaining))
	}
	return true
}

// FindByActor returns the match an actor is seated in.
func (r *Registry) FindByActor(actorID string) (*Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.actors[actorID]
	if !ok {
		return nil, false
	}
	m, ok := r.matches[id]
	return m, ok
}

// Get returns a match by code.
func (r *Registry) Get(matchID string) (*Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.matches[matchID]
	return m, ok
}

// Len returns the number of open matches.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

// Snapshot lists open matches ordered by code.
func (r *Registry) Snapshot() []MatchInfo {
	r.mu.RLock()
	matches := make([]*Match, 0, len(r.matches))
	for _, m := range r.matches {
		matches = append(matches, m)
	}
	r.mu.RUnlock()

	infos := make([]MatchInfo, 0, len(matches))
	for _, m := range matches {
		m.mu.Lock()
		info := MatchInfo{
			ID:        m.id,
			Status:    m.statusLocked().String(),
			Players:   make([]string, len(m.players)),
			Turn:      m.turns.Turn(),
			CreatedAt: m.createdAt,
		}
		for i, p := range m.players {
			info.Players[i] = p.Username
		}
		m.mu.Unlock()
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
