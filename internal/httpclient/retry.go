package httpclient

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/pricecrawl/pricecrawl/internal/config"
	"github.com/pricecrawl/pricecrawl/internal/telemetry"
)

// RetryMiddleware re-attempts transient failures with exponential backoff.
// Attempt numbering starts at 1; cfg.Count bounds the additional attempts
// beyond the first. Retries within one logical call are strictly sequential.
type RetryMiddleware struct {
	cfg       config.RetryConfig
	retryable map[int]struct{}
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewRetryMiddleware builds the middleware from a retry policy.
func NewRetryMiddleware(cfg config.RetryConfig, logger *zap.Logger) *RetryMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	retryable := make(map[int]struct{}, len(cfg.StatusCodes))
	for _, code := range cfg.StatusCodes {
		retryable[code] = struct{}{}
	}
	return &RetryMiddleware{
		cfg:       cfg,
		retryable: retryable,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// Handle runs the attempt loop. Non-retryable failures propagate immediately
// with no backoff; exhaustion re-raises the last error.
func (m *RetryMiddleware) Handle(ctx context.Context, req *Request, next Handler) (*Response, error) {
	var lastErr error
	for attempt := 1; attempt <= m.cfg.Count+1; attempt++ {
		resp, err := next(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !m.shouldRetry(err) {
			return nil, err
		}
		if attempt > m.cfg.Count {
			break
		}

		wait := m.backoff(attempt)
		m.logger.Warn("request attempt failed, retrying",
			zap.String("url", req.URL),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", m.cfg.Count),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		telemetry.ObserveRetry()
		if err := m.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (m *RetryMiddleware) shouldRetry(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		_, ok := m.retryable[statusErr.Code]
		return ok
	}
	return isTransient(err)
}

// backoff computes min(baseDelay * factor^(attempt-1), maxDelay).
func (m *RetryMiddleware) backoff(attempt int) time.Duration {
	delay := float64(m.cfg.BaseDelay()) * math.Pow(m.cfg.BackoffFactor, float64(attempt-1))
	if maxDelay := float64(m.cfg.MaxDelay()); maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	return time.Duration(delay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
