package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pricecrawl/pricecrawl/internal/telemetry"
)

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Statusz(t *testing.T) {
	t.Parallel()

	srv := NewServer(func() Status {
		return Status{RunID: "run-1", Items: 42, FailedURLs: 3}
	}, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/statusz", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "run-1", got.RunID)
	require.Equal(t, 42, got.Items)
	require.Equal(t, 3, got.FailedURLs)
}

func TestServer_StatuszWithoutSource(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/statusz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	telemetry.Init()
	srv := NewServer(nil, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Body.String())
}
