// Package parser turns shop HTML pages into records.
package parser

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pricecrawl/pricecrawl/internal/record"
)

// Parser extracts records from one page of shop HTML.
type Parser interface {
	// Name reports the shop this parser targets.
	Name() string
	// ParsePage extracts all items found in the page content. Items missing
	// fields are still returned; validation happens downstream.
	ParsePage(htmlContent, pageURL string) ([]record.Record, error)
}

// LinkDiscoverer is implemented by parsers that can find further URLs to
// crawl (categories, product pages, pagination) on a page.
type LinkDiscoverer interface {
	DiscoverLinks(htmlContent, pageURL string) ([]string, error)
}

// Factory builds a named parser.
type Factory func(logger *zap.Logger) (Parser, error)

type entry struct {
	factory     Factory
	description string
}

var (
	registryMu sync.Mutex
	registry   = make(map[string]entry)
	builtins   sync.Once
)

// Register adds a named parser factory.
func Register(name, description string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = entry{factory: factory, description: description}
}

// RegisterBuiltins installs the shipped parsers. Called once before the
// first Open.
func RegisterBuiltins() {
	builtins.Do(func() {
		Register("knifecenter", "knifecenter.com listing parser", newKnifecenterParser)
	})
}

// Open instantiates the parser for the named shop.
func Open(name string, logger *zap.Logger) (Parser, error) {
	RegisterBuiltins()

	registryMu.Lock()
	e, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown parser %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return e.factory(logger)
}

// Names lists registered parser names, sorted.
func Names() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe maps registered parser names to their descriptions.
func Describe() map[string]string {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make(map[string]string, len(registry))
	for name, e := range registry {
		out[name] = e.description
	}
	return out
}
