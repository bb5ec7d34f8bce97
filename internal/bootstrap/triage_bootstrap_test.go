package bootstrap

import (
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complaint_triage/config"
	"complaint_triage/core/service/classification"
	"complaint_triage/core/service/triage"
	"complaint_triage/pkg/logger"
	"complaint_triage/pkg/metrics"
	"complaint_triage/pkg/snowflake"
)

func testDeps(t *testing.T) *Dependencies {
	t.Helper()
	keys, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return &Dependencies{
		Metrics:       metrics.NewRegistry(0),
		TriageService: triage.NewService(triage.Deps{}, triage.Config{}, logger.Nop()),
		Keys:          keys,
	}
}

func TestNewApp_Routes(t *testing.T) {
	cfg := &config.Config{Environment: "test", JWTSecret: "secret", IntakeEnabled: true}
	app := newApp(cfg, testDeps(t))

	t.Run("health", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(nethttp.MethodGet, "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	})

	t.Run("intake without queue", func(t *testing.T) {
		req := httptest.NewRequest(nethttp.MethodPost, "/api/v1/complaints/intake",
			strings.NewReader(`{"customer_email":"a@example.com","body":"late parcel"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, nethttp.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("operator routes need a token", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(nethttp.MethodPost, "/api/v1/complaints/1/resolve", nil))
		require.NoError(t, err)
		assert.Equal(t, nethttp.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("classifier metrics", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(nethttp.MethodGet, "/api/v1/metrics/classifier", nil))
		require.NoError(t, err)
		assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	})
}

func TestNewWorker_RequiresRedis(t *testing.T) {
	_, err := NewWorkerWithDeps(&config.Config{WorkerID: "w-1"}, testDeps(t))
	assert.Error(t, err)
}

func TestNewAPIWithDeps_SharesMetrics(t *testing.T) {
	deps := testDeps(t)
	app := NewAPIWithDeps(&config.Config{Environment: "test"}, deps)

	// a classifier running beside the API records into the same registry
	deps.Metrics.Inc(classification.MetricSourcePrefix + "fallback")

	resp, err := app.Test(httptest.NewRequest(nethttp.MethodGet, "/api/v1/metrics/classifier", nil))
	require.NoError(t, err)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"classifier.source.fallback":1`)
}
