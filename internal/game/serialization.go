package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mushi-tcg/mushi-server-go/internal/catalog"
)

const checksumVersion = 1

// SerializationChecksum identifies a snapshot's game state. Two snapshots of
// the same state hash identically regardless of when they were taken.
type SerializationChecksum struct {
	Hash      string `json:"hash"`
	Timestamp string `json:"timestamp"`
	Version   int    `json:"version"`
}

// ComputeChecksum hashes the snapshot's canonical representation.
func (s *Snapshot) ComputeChecksum() (*SerializationChecksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(s.canonical())); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}

	return &SerializationChecksum{
		Hash:      hex.EncodeToString(hash.Sum(nil)),
		Timestamp: s.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		Version:   checksumVersion,
	}, nil
}

// canonical renders every game-relevant field in a fixed order. Zone order is
// significant (deck top, territory pop order) so card lists are not sorted.
// Timestamps and the action sequence are excluded.
func (s *Snapshot) canonical() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "MATCH:%s|%d|%s|%d|%t|%t|%d|%s\n",
		s.MatchID,
		s.Turn,
		s.Phase,
		s.Active,
		s.Started,
		s.Ended,
		s.Winner,
		s.EndReason,
	)

	for i, p := range s.Players {
		fmt.Fprintf(&buf, "PLAYER:%d|%s|%s|%t|%d\n", i, p.ID, p.Username, p.IsReady, p.CurrentFood)
		writeZone(&buf, "DECK", p.Deck)
		writeZone(&buf, "HAND", p.Hand)
		writeZone(&buf, "FOOD", p.FoodArea)
		writeZone(&buf, "TERRITORY", p.Territory)
		writeZone(&buf, "GRAVEYARD", p.Graveyard)
		for _, fc := range p.Field {
			fmt.Fprintf(&buf, "  FIELD:%s|%d|%t\n", fc.Card.ID, fc.Damage, fc.HasAttacked)
			writeZone(&buf, "  ENHANCEMENTS", fc.Enhancements)
		}
	}

	if a := s.LastAction; a != nil {
		idx := "-"
		if a.TechniqueIndex != nil {
			idx = fmt.Sprint(*a.TechniqueIndex)
		}
		fmt.Fprintf(&buf, "LAST:%s|%s|%s|%s|%s\n", a.PlayerID, a.Type, a.CardID, a.TargetID, idx)
	}
	return buf.String()
}

func writeZone(buf *bytes.Buffer, name string, cards []catalog.Card) {
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	buf.WriteString("  ")
	buf.WriteString(name)
	buf.WriteString(":")
	buf.WriteString(strings.Join(ids, ","))
	buf.WriteString("\n")
}

// VerifyChecksum reports whether the snapshot still hashes to expected.
func (s *Snapshot) VerifyChecksum(expected *SerializationChecksum) (bool, error) {
	computed, err := s.ComputeChecksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

// SerializeToBytes gob-encodes the snapshot.
func (s *Snapshot) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeFromBytes decodes a snapshot written by SerializeToBytes.
func DeserializeFromBytes(data []byte) (*Snapshot, error) {
	var snapshot Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}

// ValidateSerializationRoundtrip checks that a snapshot survives encoding
// with its checksum intact.
func ValidateSerializationRoundtrip(snapshot *Snapshot) error {
	original, err := snapshot.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute original checksum: %w", err)
	}

	data, err := snapshot.SerializeToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}
	decoded, err := DeserializeFromBytes(data)
	if err != nil {
		return fmt.Errorf("failed to deserialize: %w", err)
	}

	roundtrip, err := decoded.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute deserialized checksum: %w", err)
	}
	if original.Hash != roundtrip.Hash {
		return fmt.Errorf("checksum mismatch: original=%s, deserialized=%s", original.Hash, roundtrip.Hash)
	}
	return nil
}
