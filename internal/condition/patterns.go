package condition

import (
	"encoding/json"
	"fmt"
	"os"
)

// Patterns holds the extraction patterns that are tuned per deployment rather
// than per site.
type Patterns struct {
	Slot    SlotPatterns    `json:"slot"`
	Product ProductPatterns `json:"product"`
}

type SlotPatterns struct {
	Item string `json:"item"` // capture group 1 is the slot text
	Date string `json:"date"` // capture groups 1 and 2 are month and day
}

type ProductPatterns struct {
	URLWindow int `json:"url_window"` // bytes searched after a product name
}

// LoadPatterns loads the pattern configuration from the specified JSON file.
func LoadPatterns(path string) (Patterns, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Patterns{}, fmt.Errorf("failed to read patterns file: %w", err)
	}

	return LoadPatternsFromBytes(data)
}

// LoadPatternsFromBytes parses pattern configuration from raw JSON bytes.
// Missing fields fall back to DefaultPatterns.
func LoadPatternsFromBytes(data []byte) (Patterns, error) {
	p := DefaultPatterns()
	if err := json.Unmarshal(data, &p); err != nil {
		return Patterns{}, fmt.Errorf("failed to parse patterns JSON: %w", err)
	}
	return p, nil
}

// DefaultPatterns matches slot links of the form
// <a ...>12月14日(日) セルフプレープラン（空き枠：1組）</a>.
func DefaultPatterns() Patterns {
	return Patterns{
		Slot: SlotPatterns{
			Item: `<a[^>]*>([^<]*\d{1,2}月\d{1,2}日[^<]*空き枠[^<]*)</a>`,
			Date: `(\d{1,2})月(\d{1,2})日`,
		},
		Product: ProductPatterns{
			URLWindow: 500,
		},
	}
}
