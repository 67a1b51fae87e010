// Package storage persists extracted records through pluggable backends.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pricecrawl/pricecrawl/internal/config"
	"github.com/pricecrawl/pricecrawl/internal/record"
)

// Storage writes validated records to a destination (file path or table).
type Storage interface {
	Save(ctx context.Context, items []record.Record, destination string) error
	Close() error
}

// Factory builds a Storage from configuration.
type Factory func(cfg config.StorageConfig, logger *zap.Logger) (Storage, error)

var (
	registryMu sync.Mutex
	registry   = make(map[string]Factory)
	builtins   sync.Once
)

// Register adds a named backend factory. Registration happens explicitly at
// startup so lookup order is deterministic and testable.
func Register(kind string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = factory
}

// RegisterBuiltins installs the built-in backends. Called once before the
// first Open.
func RegisterBuiltins() {
	builtins.Do(func() {
		Register("csv", newCSVStorage)
		Register("json", newJSONStorage)
		Register("postgres", newPostgresStorage)
	})
}

// Open instantiates the backend named by cfg.Kind. An unknown kind is a
// configuration error surfaced before any network activity.
func Open(cfg config.StorageConfig, logger *zap.Logger) (Storage, error) {
	RegisterBuiltins()

	registryMu.Lock()
	factory, ok := registry[cfg.Kind]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown storage kind %q (available: %s)", cfg.Kind, strings.Join(Kinds(), ", "))
	}
	return factory(cfg, logger)
}

// Kinds lists registered backend names, sorted.
func Kinds() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	kinds := make([]string, 0, len(registry))
	for kind := range registry {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
