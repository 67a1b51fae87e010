package httpclient

import (
	"context"
	"sync"
	"time"

	"github.com/pricecrawl/pricecrawl/internal/telemetry"
)

// DomainStats accumulates outcomes of logical calls against one host.
type DomainStats struct {
	Count     int
	Success   int
	Failure   int
	TotalTime time.Duration
	Errors    map[string]int
}

// MetricsMiddleware records one outcome per logical call, after all retries
// inside the chain resolve or exhaust. Pure observer: it never alters the
// result. Updates are guarded because a client may serve concurrent tasks.
type MetricsMiddleware struct {
	mu      sync.Mutex
	domains map[string]*DomainStats
}

// NewMetricsMiddleware builds an empty per-client metrics recorder.
func NewMetricsMiddleware() *MetricsMiddleware {
	return &MetricsMiddleware{
		domains: make(map[string]*DomainStats),
	}
}

// Handle times the inner handler and updates the host's stats.
func (m *MetricsMiddleware) Handle(ctx context.Context, req *Request, next Handler) (*Response, error) {
	host := telemetry.SanitizeHost(req.URL)
	start := time.Now()

	resp, err := next(ctx, req)
	elapsed := time.Since(start)

	m.record(host, err, elapsed)
	telemetry.ObserveRequest(host, err == nil, elapsed)
	return resp, err
}

func (m *MetricsMiddleware) record(host string, err error, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats, ok := m.domains[host]
	if !ok {
		stats = &DomainStats{Errors: make(map[string]int)}
		m.domains[host] = stats
	}
	stats.Count++
	stats.TotalTime += elapsed
	if err == nil {
		stats.Success++
		return
	}
	stats.Failure++
	stats.Errors[errorKind(err)]++
}

// Snapshot returns a deep copy of the accumulated per-domain stats.
func (m *MetricsMiddleware) Snapshot() map[string]DomainStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]DomainStats, len(m.domains))
	for host, stats := range m.domains {
		copied := *stats
		copied.Errors = make(map[string]int, len(stats.Errors))
		for kind, n := range stats.Errors {
			copied.Errors[kind] = n
		}
		out[host] = copied
	}
	return out
}
