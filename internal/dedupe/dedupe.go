// Package dedupe filters duplicate records before persistence.
package dedupe

import (
	"strings"

	"go.uber.org/zap"

	"github.com/pricecrawl/pricecrawl/internal/record"
)

// defaultKeys is used when no primary keys are configured.
var defaultKeys = []string{"url", "article"}

// Result describes one deduplication pass.
type Result struct {
	Kept    int
	Removed int
	Percent float64
}

// Dedupe keeps the first record observed for each composite key, preserving
// buffer order. The key concatenates the string form of each configured field.
func Dedupe(items []record.Record, keys []string) ([]record.Record, Result) {
	if len(items) == 0 {
		return nil, Result{}
	}
	if len(keys) == 0 {
		keys = defaultKeys
	}

	seen := make(map[string]struct{}, len(items))
	unique := make([]record.Record, 0, len(items))

	for _, item := range items {
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			parts = append(parts, item.Field(key))
		}
		// Unit separator: cannot appear in field values, so adjacent
		// fields never bleed into each other.
		composite := strings.Join(parts, "\x1f")

		if _, dup := seen[composite]; dup {
			continue
		}
		seen[composite] = struct{}{}
		unique = append(unique, item)
	}

	removed := len(items) - len(unique)
	return unique, Result{
		Kept:    len(unique),
		Removed: removed,
		Percent: float64(removed) / float64(len(items)) * 100,
	}
}

// Log reports the outcome of a pass in the run summary style.
func (r Result) Log(logger *zap.Logger) {
	if logger == nil {
		return
	}
	logger.Info("removed duplicate items",
		zap.Int("removed", r.Removed),
		zap.Int("kept", r.Kept),
		zap.Float64("percent", r.Percent),
	)
}
