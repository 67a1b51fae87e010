package httpclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetrics_OneOutcomePerLogicalCall(t *testing.T) {
	t.Parallel()

	metrics := NewMetricsMiddleware()
	retry := NewRetryMiddleware(testRetryConfig(), zap.NewNop())
	retry.sleep = func(context.Context, time.Duration) error { return nil }

	calls := 0
	handler := chain([]Middleware{metrics, retry}, func(_ context.Context, _ *Request) (*Response, error) {
		calls++
		if calls <= 2 {
			return nil, &StatusError{Code: 503, URL: "https://shop.test/p"}
		}
		return &Response{StatusCode: 200}, nil
	})

	_, err := handler(context.Background(), &Request{URL: "https://shop.test/p"})
	require.NoError(t, err)
	require.Equal(t, 3, calls)

	stats := metrics.Snapshot()["shop.test"]
	// Three attempts, one logical call, one recorded outcome.
	require.Equal(t, 1, stats.Count)
	require.Equal(t, 1, stats.Success)
	require.Equal(t, 0, stats.Failure)
}

func TestMetrics_FailureRecordedWithKind(t *testing.T) {
	t.Parallel()

	metrics := NewMetricsMiddleware()

	handler := chain([]Middleware{metrics}, func(_ context.Context, req *Request) (*Response, error) {
		return nil, &StatusError{Code: 404, URL: req.URL}
	})

	_, err := handler(context.Background(), &Request{URL: "https://shop.test/missing"})
	require.Error(t, err)

	stats := metrics.Snapshot()["shop.test"]
	require.Equal(t, 1, stats.Count)
	require.Equal(t, 0, stats.Success)
	require.Equal(t, 1, stats.Failure)
	require.Equal(t, 1, stats.Errors["status_404"])
}

func TestMetrics_AccumulatesAcrossCallsPerHost(t *testing.T) {
	t.Parallel()

	metrics := NewMetricsMiddleware()
	handler := chain([]Middleware{metrics}, func(_ context.Context, _ *Request) (*Response, error) {
		return &Response{StatusCode: 200}, nil
	})

	for i := 0; i < 3; i++ {
		_, err := handler(context.Background(), &Request{URL: "https://a.test/x"})
		require.NoError(t, err)
	}
	_, err := handler(context.Background(), &Request{URL: "https://b.test/y"})
	require.NoError(t, err)

	snap := metrics.Snapshot()
	require.Equal(t, 3, snap["a.test"].Count)
	require.Equal(t, 1, snap["b.test"].Count)
}

func TestMetrics_SnapshotIsACopy(t *testing.T) {
	t.Parallel()

	metrics := NewMetricsMiddleware()
	handler := chain([]Middleware{metrics}, func(_ context.Context, _ *Request) (*Response, error) {
		return nil, &StatusError{Code: 500, URL: "https://a.test"}
	})
	_, _ = handler(context.Background(), &Request{URL: "https://a.test"})

	snap := metrics.Snapshot()
	snap["a.test"].Errors["status_500"] = 99

	require.Equal(t, 1, metrics.Snapshot()["a.test"].Errors["status_500"])
}
