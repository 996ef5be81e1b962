package condition

import (
	"embed"
	"log/slog"
	"os"
)

//go:embed patterns.json
var embeddedPatterns embed.FS

// LoadConfig resolves the extraction patterns in this order:
// 1. External file named by PATTERNS_CONFIG_PATH (deployment override)
// 2. Embedded patterns.json
// 3. DefaultPatterns
func LoadConfig() Patterns {
	if path := os.Getenv("PATTERNS_CONFIG_PATH"); path != "" {
		p, err := LoadPatterns(path)
		if err == nil {
			slog.Info("Loaded extraction patterns from external file", "path", path)
			return p
		}
		slog.Warn("Failed to load external patterns, trying embedded config", "path", path, "error", err)
	}

	data, err := embeddedPatterns.ReadFile("patterns.json")
	if err == nil {
		p, parseErr := LoadPatternsFromBytes(data)
		if parseErr == nil {
			return p
		}
		slog.Warn("Embedded patterns failed to parse, using defaults", "error", parseErr)
	}

	return DefaultPatterns()
}
