// Package proxy owns the proxy pool and per-proxy health counters.
package proxy

import (
	"bufio"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pricecrawl/pricecrawl/internal/telemetry"
)

// errorThreshold is the number of reported failures after which a proxy is
// retired from the current slot.
const errorThreshold = 3

// Proxy is a single upstream proxy endpoint.
type Proxy struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Addr returns host:port, used as the stable identity for error accounting.
func (p Proxy) Addr() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// URL renders the proxy as an http URL with credentials in the userinfo.
func (p Proxy) URL() *url.URL {
	u := &url.URL{Scheme: "http", Host: p.Addr()}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// Manager hands out proxies and rotates them when they go stale. A proxy is
// stale once it served maxRequests requests since its last rotation or
// accumulated errorThreshold reported failures.
type Manager struct {
	mu          sync.Mutex
	pool        []Proxy
	current     *Proxy
	used        int
	maxRequests int
	errors      map[string]int
	rng         *rand.Rand
	logger      *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithRand overrides the random source, for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) { m.rng = r }
}

// NewManager builds a Manager over a static pool.
func NewManager(pool []Proxy, maxRequestsPerProxy int, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRequestsPerProxy <= 0 {
		maxRequestsPerProxy = 10
	}
	m := &Manager{
		pool:        pool,
		maxRequests: maxRequestsPerProxy,
		errors:      make(map[string]int),
		logger:      logger,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Select returns the proxy to use for the next attempt, rotating when the
// current one is stale. It returns nil when the pool is empty; the caller
// proceeds proxy-less.
func (m *Manager) Select() *Proxy {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pool) == 0 {
		return nil
	}

	if m.shouldRotateLocked() {
		picked := m.pickRandomLocked()
		m.current = &picked
		m.used = 0
		telemetry.ObserveProxyRotation()
		m.logger.Debug("switched proxy", zap.String("proxy", picked.Addr()))
	}

	m.used++
	p := *m.current
	return &p
}

// ReportFailure increments the error count for the given proxy address. Once
// the threshold is reached the current slot is cleared so the next Select
// forces a fresh pick. Error counts are reset only when the proxy is retired.
func (m *Manager) ReportFailure(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errors[addr]++
	m.logger.Warn("proxy failure reported",
		zap.String("proxy", addr),
		zap.Int("errors", m.errors[addr]),
	)
	if m.current != nil && m.current.Addr() == addr && m.errors[addr] >= errorThreshold {
		m.current = nil
		m.used = 0
	}
}

// Reset clears the rotation state and all error counters.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	m.used = 0
	m.errors = make(map[string]int)
}

// PoolSize reports how many proxies are configured.
func (m *Manager) PoolSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pool)
}

func (m *Manager) shouldRotateLocked() bool {
	if m.current == nil {
		return true
	}
	if m.used >= m.maxRequests {
		return true
	}
	return m.errors[m.current.Addr()] >= errorThreshold
}

// pickRandomLocked chooses uniformly among proxies under the error threshold,
// excluding the one being rotated away when an alternative exists. When every
// proxy is saturated the full pool is used again rather than failing the
// selection.
func (m *Manager) pickRandomLocked() Proxy {
	healthy := make([]Proxy, 0, len(m.pool))
	for _, p := range m.pool {
		if m.errors[p.Addr()] < errorThreshold {
			healthy = append(healthy, p)
		}
	}
	candidates := healthy
	if len(candidates) == 0 {
		candidates = m.pool
	}
	if m.current != nil && len(candidates) > 1 {
		fresh := make([]Proxy, 0, len(candidates))
		for _, p := range candidates {
			if p.Addr() != m.current.Addr() {
				fresh = append(fresh, p)
			}
		}
		if len(fresh) > 0 {
			candidates = fresh
		}
	}
	if m.rng != nil {
		return candidates[m.rng.Intn(len(candidates))]
	}
	return candidates[rand.Intn(len(candidates))]
}

// Parse decodes a proxy line in user:pass@host:port or host:port form.
func Parse(line string) (Proxy, error) {
	var p Proxy
	addr := line
	if at := strings.LastIndex(line, "@"); at >= 0 {
		auth := line[:at]
		addr = line[at+1:]
		user, pass, ok := strings.Cut(auth, ":")
		if !ok {
			return p, fmt.Errorf("parse proxy %q: credentials must be user:pass", line)
		}
		p.Username = user
		p.Password = pass
	}
	host, portStr, ok := strings.Cut(addr, ":")
	if !ok || host == "" {
		return p, fmt.Errorf("parse proxy %q: address must be host:port", line)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return p, fmt.Errorf("parse proxy %q: invalid port: %w", line, err)
	}
	p.Host = host
	p.Port = port
	return p, nil
}

// ParseList decodes multiple proxy lines, skipping blanks and comments.
// Malformed lines are logged and dropped rather than failing the whole pool.
func ParseList(lines []string, logger *zap.Logger) []Proxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	out := make([]Proxy, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := Parse(line)
		if err != nil {
			logger.Error("invalid proxy entry", zap.String("line", line), zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	return out
}

// LoadFile reads proxies from a plain-text file, one per line.
func LoadFile(path string, logger *zap.Logger) ([]Proxy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open proxy file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read proxy file: %w", err)
	}
	return ParseList(lines, logger), nil
}
