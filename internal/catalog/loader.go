package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

//go:embed data/cards.json
var embeddedCards []byte

// Embedded returns the catalog bundled with the binary.
func Embedded() (*Catalog, error) {
	return Load(bytes.NewReader(embeddedCards))
}

// LoadFile reads a catalog from a JSON file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes either a bare JSON array of cards or an object with a
// "cards" array.
func Load(r io.Reader) (*Catalog, error) {
	cards, err := DecodeCards(r)
	if err != nil {
		return nil, err
	}
	return New(cards)
}

// DecodeCards decodes card definitions without building a catalog.
func DecodeCards(r io.Reader) ([]Card, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty catalog")
	}

	if data[0] == '[' {
		var cards []Card
		if err := json.Unmarshal(data, &cards); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
		return cards, nil
	}

	var doc struct {
		Cards []Card `json:"cards"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return doc.Cards, nil
}
