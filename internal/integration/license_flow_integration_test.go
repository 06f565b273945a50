// Package integration exercises the assembled application end to end:
// configuration from the environment, key material from disk, and the
// full middleware chain between a real HTTP client and the handlers.
package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signet/internal/app"
	"signet/internal/license"
	"signet/internal/shared/testutil"
)

// The application is constructed once per test binary. Its otel
// bootstrap registers prometheus collectors against the default
// registry, and a second InitializeOTel would collide with them.
var (
	appOnce   sync.Once
	appErr    error
	sharedApp *app.Application
	sharedKr  license.Keyring
)

// startServer boots the shared application on first use and wraps its
// router in a per-test httptest server. Key material is written to disk
// and handed to the app through SIGNET_KEYS_*_FILE, so the test covers
// the same path a deployment takes.
func startServer(t *testing.T) (*httptest.Server, license.Keyring) {
	t.Helper()
	appOnce.Do(func() {
		kr, err := license.GenerateKeyring(nil)
		if err != nil {
			appErr = err
			return
		}
		secretPath, publicPath := testutil.WriteKeyFiles(t, t.TempDir(), kr)

		t.Setenv("SIGNET_KEYS_SECRET_KEY_FILE", secretPath)
		t.Setenv("SIGNET_KEYS_PUBLIC_KEY_FILE", publicPath)
		t.Setenv("SIGNET_LOGGING_LEVEL", "error")

		sharedKr = kr
		sharedApp, appErr = app.NewApplication()
	})
	require.NoError(t, appErr, "application bootstrap failed")
	require.NotNil(t, sharedApp)

	srv := httptest.NewServer(sharedApp.Router)
	t.Cleanup(srv.Close)
	return srv, sharedKr
}

func postJSON(t *testing.T, srv *httptest.Server, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := srv.Client().Post(srv.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func getWithBearer(t *testing.T, srv *httptest.Server, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

// signToken mints a token over HTTP for the given window.
func signToken(t *testing.T, srv *httptest.Server, plan string, from, until int64) string {
	t.Helper()
	resp := postJSON(t, srv, "/api/license/sign", map[string]any{
		"plan":        plan,
		"valid_from":  from,
		"valid_until": until,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeJSON(t, resp)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestLicenseIntegration_TokenLifecycle(t *testing.T) {
	srv, _ := startServer(t)
	now := time.Now().Unix()

	token := signToken(t, srv, "pro", now-60, now+3600)

	resp := postJSON(t, srv, "/api/license/verify", map[string]any{"token": token})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeJSON(t, resp)
	serialized, _ := body["serialized"].(string)
	assert.Contains(t, serialized, "|pro|")

	resp = postJSON(t, srv, "/api/license/validate", map[string]any{"token": token})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeJSON(t, resp)
	assert.Equal(t, "active", body["status"])
	assert.InDelta(t, 3600, body["remaining_seconds"], 90)

	resp = getWithBearer(t, srv, "/api/gated/claims", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeJSON(t, resp)
	lic, ok := body["license"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pro", lic["plan"])
	assert.Equal(t, false, body["cached"])

	resp = getWithBearer(t, srv, "/api/gated/claims", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeJSON(t, resp)
	assert.Equal(t, true, body["cached"])
}

// A token signed offline against the same key files must be accepted by
// the server, the way license-gen output is consumed in production.
func TestLicenseIntegration_OfflineSignedToken(t *testing.T) {
	srv, kr := startServer(t)

	token := testutil.SignToken(t, kr, testutil.ActiveLicense(t))

	resp := postJSON(t, srv, "/api/license/verify", map[string]any{"token": token})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeJSON(t, resp)
	assert.Equal(t, "fixture-active|pro|1699996400|1700003600", body["serialized"])
}

func TestLicenseIntegration_KeyFilesLoaded(t *testing.T) {
	srv, _ := startServer(t)

	resp, err := srv.Client().Get(srv.URL + "/api/license/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeJSON(t, resp)
	assert.Equal(t, true, body["sign_enabled"])
	assert.Equal(t, true, body["verify_enabled"])
}

func TestLicenseIntegration_ExcludedPaths(t *testing.T) {
	srv, _ := startServer(t)

	paths := []string{
		"/api/health",
		"/api/health/live",
		"/api/health/ready",
		"/api/version",
		"/api/license/status",
		"/metrics",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			resp, err := srv.Client().Get(srv.URL + path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Empty(t, resp.Header.Get("WWW-Authenticate"))
		})
	}
}

func TestLicenseIntegration_GateRefusals(t *testing.T) {
	srv, _ := startServer(t)
	now := time.Now().Unix()

	t.Run("anonymous request is challenged", func(t *testing.T) {
		resp := getWithBearer(t, srv, "/api/gated/claims", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, `Bearer realm="license"`, resp.Header.Get("WWW-Authenticate"))
		body := decodeJSON(t, resp)
		assert.Equal(t, "/errors/license/missing", body["type"])
	})

	t.Run("tampered token is refused", func(t *testing.T) {
		token := signToken(t, srv, "pro", now-60, now+3600)
		resp := getWithBearer(t, srv, "/api/gated/claims", testutil.TamperToken(token))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body := decodeJSON(t, resp)
		assert.Equal(t, "LICENSE_TAMPERED", body["error_code"])
	})

	t.Run("expired token is refused", func(t *testing.T) {
		token := signToken(t, srv, "pro", now-7200, now-3600)
		resp := getWithBearer(t, srv, "/api/gated/claims", token)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		body := decodeJSON(t, resp)
		assert.Equal(t, "LICENSE_EXPIRED", body["error_code"])
	})

	t.Run("predated token is refused", func(t *testing.T) {
		token := signToken(t, srv, "pro", now+3600, now+7200)
		resp := getWithBearer(t, srv, "/api/gated/claims", token)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		body := decodeJSON(t, resp)
		assert.Equal(t, "LICENSE_PREDATED", body["error_code"])
	})

	t.Run("garbage token is refused", func(t *testing.T) {
		resp := getWithBearer(t, srv, "/api/gated/claims", "not a token")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeJSON(t, resp)
		assert.Equal(t, "DECODING_FAILED", body["error_code"])
	})
}

func TestLicenseIntegration_SignValidation(t *testing.T) {
	srv, _ := startServer(t)
	now := time.Now().Unix()

	t.Run("separator in plan", func(t *testing.T) {
		resp := postJSON(t, srv, "/api/license/sign", map[string]any{
			"plan":        "a|b",
			"valid_from":  now,
			"valid_until": now + 3600,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeJSON(t, resp)
		assert.Equal(t, "RESERVED_CHARACTER", body["error_code"])
	})

	t.Run("inverted window", func(t *testing.T) {
		resp := postJSON(t, srv, "/api/license/sign", map[string]any{
			"plan":        "pro",
			"valid_from":  now + 3600,
			"valid_until": now,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeJSON(t, resp)
		assert.Equal(t, "INVALID_TIME_RANGE", body["error_code"])
	})
}

func TestLicenseIntegration_ConcurrentClaims(t *testing.T) {
	srv, _ := startServer(t)
	now := time.Now().Unix()
	token := signToken(t, srv, "pro", now-60, now+3600)

	const workers = 20
	var wg sync.WaitGroup
	statuses := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/gated/claims", nil)
			if err != nil {
				return
			}
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := srv.Client().Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for i, status := range statuses {
		assert.Equal(t, http.StatusOK, status, "worker %d", i)
	}
}
