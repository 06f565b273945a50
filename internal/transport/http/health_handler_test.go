package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signet/internal/license"
	"signet/internal/services"
	"signet/pkg/contracts"
)

func testHealthHandler(t *testing.T, kr license.Keyring) *HealthHandler {
	t.Helper()
	clock := license.ClockFunc(func() time.Time { return time.Unix(1_700_000_000, 0).UTC() })
	core := license.NewService(kr, clock, testLogger())
	licenseSvc := services.NewLicenseService(core, clock, nil, testLogger())
	health := services.NewHealthService(contracts.Version, licenseSvc, testLogger())
	return NewHealthHandler(health, testLogger())
}

func TestHealthCheckEndpoint(t *testing.T) {
	handler := testHealthHandler(t, testKeyring(t))

	rec := httptest.NewRecorder()
	handler.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, contracts.Version, body["version"])
}

func TestLivenessEndpoint(t *testing.T) {
	handler := testHealthHandler(t, testKeyring(t))

	rec := httptest.NewRecorder()
	handler.LivenessCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "alive", body["status"])

	rt := body["runtime"].(map[string]any)
	assert.NotEmpty(t, rt["go_version"])
}

func TestReadinessEndpoint(t *testing.T) {
	t.Run("ready with keys", func(t *testing.T) {
		handler := testHealthHandler(t, testKeyring(t))

		rec := httptest.NewRecorder()
		handler.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "ready", body["status"])
	})

	t.Run("not ready without keys", func(t *testing.T) {
		handler := testHealthHandler(t, license.Keyring{})

		rec := httptest.NewRecorder()
		handler.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "not_ready", body["status"])

		svcs := body["services"].(map[string]any)
		lic := svcs["license"].(map[string]any)
		assert.Equal(t, "not_ready", lic["status"])
	})
}

func TestVersionEndpoint(t *testing.T) {
	handler := testHealthHandler(t, testKeyring(t))

	rec := httptest.NewRecorder()
	handler.Version(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, contracts.Version, body["version"])
	assert.Equal(t, contracts.APIVersion, body["api_version"])
	assert.Equal(t, contracts.VersionStage, body["stage"])
}
