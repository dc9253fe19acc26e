package game

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const replayVersion = 1

// ErrReplayNotFound is returned when no replay exists for a match.
var ErrReplayNotFound = errors.New("replay not found")

// Replay is a recorded match: one snapshot per accepted action.
type Replay struct {
	MatchID      string
	States       []*Snapshot
	CurrentIndex int
	mu           sync.RWMutex
}

// NewReplay creates an empty replay.
func NewReplay(matchID string) *Replay {
	return &Replay{
		MatchID: matchID,
		States:  make([]*Snapshot, 0),
	}
}

// RecordState appends a snapshot.
func (r *Replay) RecordState(snapshot *Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.States = append(r.States, snapshot)
}

// Start rewinds to the first state.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.CurrentIndex = 0
}

// Next returns the state at the cursor and advances it.
func (r *Replay) Next() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex < len(r.States) {
		state := r.States[r.CurrentIndex]
		r.CurrentIndex++
		return state
	}
	return nil
}

// Previous moves the cursor back and returns that state.
func (r *Replay) Previous() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex > 0 {
		r.CurrentIndex--
		return r.States[r.CurrentIndex]
	}
	return nil
}

// Skip moves the cursor by count, clamped to the recorded range.
func (r *Replay) Skip(count int) *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.States) == 0 {
		return nil
	}
	r.CurrentIndex = max(0, min(r.CurrentIndex+count, len(r.States)-1))
	return r.States[r.CurrentIndex]
}

// Size returns the number of recorded states.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.States)
}

// GetStateAt returns the state at index, or nil.
func (r *Replay) GetStateAt(index int) *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index >= 0 && index < len(r.States) {
		return r.States[index]
	}
	return nil
}

// Last returns the final recorded state, or nil.
func (r *Replay) Last() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.States) == 0 {
		return nil
	}
	return r.States[len(r.States)-1]
}

func replayPath(directory, matchID string) string {
	return filepath.Join(directory, fmt.Sprintf("%s.replay", matchID))
}

// SaveToFile writes the replay to <directory>/<matchID>.replay as gzipped gob.
// Match codes are reused, so an existing file for the same code is replaced.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(replayPath(directory, r.MatchID))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	encoder := gob.NewEncoder(gzipWriter)

	metadata := replayMetadata{
		MatchID:    r.MatchID,
		Timestamp:  time.Now(),
		Version:    replayVersion,
		StateCount: len(r.States),
	}
	if err := encoder.Encode(&metadata); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	for i, state := range r.States {
		if err := encoder.Encode(state); err != nil {
			return fmt.Errorf("failed to encode state %d: %w", i, err)
		}
	}
	return gzipWriter.Close()
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(directory, matchID string) (*Replay, error) {
	file, err := os.Open(replayPath(directory, matchID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrReplayNotFound, matchID)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	decoder := gob.NewDecoder(gzipReader)

	var metadata replayMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if metadata.Version != replayVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", metadata.Version)
	}

	replay := NewReplay(metadata.MatchID)
	for i := 0; i < metadata.StateCount; i++ {
		var state Snapshot
		if err := decoder.Decode(&state); err != nil {
			return nil, fmt.Errorf("failed to decode state %d: %w", i, err)
		}
		replay.States = append(replay.States, &state)
	}
	return replay, nil
}

type replayMetadata struct {
	MatchID    string
	Timestamp  time.Time
	Version    int
	StateCount int
}

// ReplayRecorder collects replays for running matches and persists them when
// a match is over. It satisfies StateRecorder.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	replays map[string]*Replay // matchID -> Replay
	enabled map[string]bool    // matchID -> whether recording is enabled
	saveDir string
}

// NewReplayRecorder creates a recorder that saves under saveDir.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	return &ReplayRecorder{
		logger:  logger,
		replays: make(map[string]*Replay),
		enabled: make(map[string]bool),
		saveDir: saveDir,
	}
}

// Directory returns where replays are saved.
func (rr *ReplayRecorder) Directory() string { return rr.saveDir }

// StartRecording begins recording a match, discarding any earlier replay
// held in memory for the same code.
func (rr *ReplayRecorder) StartRecording(matchID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.replays[matchID] = NewReplay(matchID)
	rr.enabled[matchID] = true

	if rr.logger != nil {
		rr.logger.Info("started replay recording", zap.String("match_id", matchID))
	}
}

// StopRecording stops appending states for a match.
func (rr *ReplayRecorder) StopRecording(matchID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.enabled[matchID] = false

	if rr.logger != nil {
		rr.logger.Info("stopped replay recording", zap.String("match_id", matchID))
	}
}

// RecordState records a snapshot if recording is enabled for the match.
func (rr *ReplayRecorder) RecordState(matchID string, snapshot *Snapshot) {
	rr.mu.RLock()
	enabled := rr.enabled[matchID]
	replay := rr.replays[matchID]
	rr.mu.RUnlock()

	if !enabled || replay == nil {
		return
	}
	replay.RecordState(snapshot)

	if rr.logger != nil {
		rr.logger.Debug("recorded replay state",
			zap.String("match_id", matchID),
			zap.Int("state_count", replay.Size()),
		)
	}
}

// GetReplay returns the in-memory replay for a match.
func (rr *ReplayRecorder) GetReplay(matchID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	replay, exists := rr.replays[matchID]
	return replay, exists
}

// SaveReplay writes a replay to disk and drops it from memory.
func (rr *ReplayRecorder) SaveReplay(matchID string) error {
	rr.mu.Lock()
	replay, exists := rr.replays[matchID]
	if !exists {
		rr.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrReplayNotFound, matchID)
	}
	delete(rr.replays, matchID)
	delete(rr.enabled, matchID)
	rr.mu.Unlock()

	if err := replay.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}

	if rr.logger != nil {
		rr.logger.Info("saved replay to disk",
			zap.String("match_id", matchID),
			zap.Int("state_count", replay.Size()),
			zap.String("directory", rr.saveDir),
		)
	}
	return nil
}

// LoadReplay reads a saved replay from disk.
func (rr *ReplayRecorder) LoadReplay(matchID string) (*Replay, error) {
	replay, err := LoadReplayFromFile(rr.saveDir, matchID)
	if err != nil {
		return nil, err
	}

	if rr.logger != nil {
		rr.logger.Info("loaded replay from disk",
			zap.String("match_id", matchID),
			zap.Int("state_count", replay.Size()),
		)
	}
	return replay, nil
}

// ClearReplay drops a replay without saving it.
func (rr *ReplayRecorder) ClearReplay(matchID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	delete(rr.replays, matchID)
	delete(rr.enabled, matchID)

	if rr.logger != nil {
		rr.logger.Debug("cleared replay from memory", zap.String("match_id", matchID))
	}
}

// IsRecording reports whether a match is being recorded.
func (rr *ReplayRecorder) IsRecording(matchID string) bool {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	return rr.enabled[matchID]
}
