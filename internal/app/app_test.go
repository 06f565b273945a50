package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signet/internal/config"
	"signet/internal/infrastructure"
	"signet/internal/license"
	"signet/pkg/contracts"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// noopProviders initializes OpenTelemetry without exporters. The
// prometheus exporter registers against the global registry and can
// only be created once per binary, so every test except the full
// constructor test runs without it.
func noopProviders(t *testing.T) *infrastructure.OTelProviders {
	t.Helper()
	providers, err := infrastructure.InitializeOTel(&infrastructure.OTelConfig{
		ServiceName:    "signet-test",
		ServiceVersion: contracts.Version,
		Environment:    "test",
		TraceExporter:  "none",
		MetricExporter: "none",
		EnableTracing:  false,
		EnableMetrics:  false,
		SampleRatio:    1.0,
	}, createTestLogger())
	require.NoError(t, err)
	return providers
}

// buildTestApp hand-wires an application around the given key material,
// bypassing NewApplication so the test controls config and exporters.
func buildTestApp(t *testing.T, keys config.KeysConfig) *Application {
	t.Helper()
	cfg := config.Default()
	cfg.Keys = keys
	cfg.Logging.Level = "error"

	providers := noopProviders(t)
	metrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)

	app := &Application{
		Config:        cfg,
		Logger:        createTestLogger(),
		OTelProviders: providers,
		Metrics:       metrics,
	}
	require.NoError(t, app.initializeServices())
	app.setupRouter()
	app.createServer()
	return app
}

func generatedKeys(t *testing.T) config.KeysConfig {
	t.Helper()
	kr, err := license.GenerateKeyring(nil)
	require.NoError(t, err)
	return config.KeysConfig{
		SecretKey: kr.Secret.Encode(),
		PublicKey: kr.Public.Encode(),
	}
}

func appJSON(t *testing.T, app *Application, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestNewApplication(t *testing.T) {
	t.Run("successful initialization", func(t *testing.T) {
		t.Setenv("SIGNET_LOGGING_LEVEL", "error")

		app, err := NewApplication()
		require.NoError(t, err)
		require.NotNil(t, app)

		assert.NotNil(t, app.Config)
		assert.NotNil(t, app.Logger)
		assert.NotNil(t, app.Router)
		assert.NotNil(t, app.Server)
		assert.NotNil(t, app.OTelProviders)
		assert.NotNil(t, app.Metrics)
		assert.NotNil(t, app.Core)
		assert.NotNil(t, app.LicenseService)
		assert.NotNil(t, app.HealthService)
		assert.NotNil(t, app.Gate)

		// The prometheus endpoint is mounted outside the middleware group.
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalid port fails validation", func(t *testing.T) {
		t.Setenv("SIGNET_SERVER_PORT", "-1")

		app, err := NewApplication()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config validation failed")
		assert.Nil(t, app)
	})
}

func TestRouterLicenseFlow(t *testing.T) {
	app := buildTestApp(t, generatedKeys(t))
	now := time.Now().Unix()

	signBody := fmt.Sprintf(
		`{"identifier":"cust-42","plan":"pro","valid_from":%d,"valid_until":%d}`,
		now-60, now+3600)

	rec := appJSON(t, app, http.MethodPost, "/api/license/sign", signBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := jsonBody(t, rec)["token"].(string)
	require.NotEmpty(t, token)

	rec = appJSON(t, app, http.MethodPost, "/api/license/verify",
		fmt.Sprintf(`{"token":%q}`, token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	lic := jsonBody(t, rec)["license"].(map[string]any)
	assert.Equal(t, "cust-42", lic["identifier"])

	rec = appJSON(t, app, http.MethodPost, "/api/license/validate",
		fmt.Sprintf(`{"token":%q}`, token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "active", jsonBody(t, rec)["status"])

	// The signed token also opens the gated surface.
	req := httptest.NewRequest(http.MethodGet, "/api/gated/claims", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	gatedRec := httptest.NewRecorder()
	app.Router.ServeHTTP(gatedRec, req)
	require.Equal(t, http.StatusOK, gatedRec.Code, gatedRec.Body.String())
	claims := jsonBody(t, gatedRec)["license"].(map[string]any)
	assert.Equal(t, "pro", claims["plan"])
}

func TestRouterGateRefusesAnonymous(t *testing.T) {
	app := buildTestApp(t, generatedKeys(t))

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/gated/claims", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
}

func TestRouterHealthAndVersion(t *testing.T) {
	app := buildTestApp(t, generatedKeys(t))

	for _, path := range []string{"/api/health", "/api/health/live", "/api/health/ready"} {
		rec := appJSON(t, app, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := appJSON(t, app, http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contracts.Version, jsonBody(t, rec)["version"])
}

func TestRouterRequestHygiene(t *testing.T) {
	app := buildTestApp(t, generatedKeys(t))

	t.Run("wrong content type is refused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/license/sign", strings.NewReader("plan=pro"))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Equal(t, "UNSUPPORTED_MEDIA_TYPE", jsonBody(t, rec)["error_code"])
	})

	t.Run("malformed JSON is refused before the handler", func(t *testing.T) {
		rec := appJSON(t, app, http.MethodPost, "/api/license/sign", `{"plan"`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_JSON", jsonBody(t, rec)["error_code"])
	})

	t.Run("responses carry security and tracing headers", func(t *testing.T) {
		rec := appJSON(t, app, http.MethodGet, "/api/health", "")

		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})
}

func TestRouterDegradedWithoutKeys(t *testing.T) {
	app := buildTestApp(t, config.KeysConfig{})

	rec := appJSON(t, app, http.MethodGet, "/api/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = appJSON(t, app, http.MethodGet, "/api/license/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unconfigured", jsonBody(t, rec)["status"])

	rec = appJSON(t, app, http.MethodPost, "/api/license/sign",
		`{"identifier":"cust-42","plan":"pro","valid_from":0,"valid_until":100}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SECRET_KEY_NOT_CONFIGURED", jsonBody(t, rec)["error_code"])
}

func TestCORSConfigFromSecurity(t *testing.T) {
	app := buildTestApp(t, generatedKeys(t))
	app.Config.Security.AllowedOrigins = []string{"http://example.test"}

	cc := app.corsConfig()
	assert.Equal(t, []string{"http://example.test"}, cc.AllowedOrigins)
	assert.Contains(t, cc.AllowedHeaders, "Authorization")
	assert.True(t, cc.AllowCredentials)
}

func TestStopWithoutStart(t *testing.T) {
	app := buildTestApp(t, generatedKeys(t))
	assert.NoError(t, app.Stop())
}
