package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signet/internal/license"
	"signet/internal/middleware"
)

// claimsStack mounts the claims handler behind the real license gate, the
// way the application wires it. The license window has to straddle the
// wall clock because the gate cache judges freshness against time.Now.
func claimsStack(t *testing.T) (http.Handler, string) {
	t.Helper()
	kr := testKeyring(t)
	core := license.NewService(kr, license.SystemClock, testLogger())

	lic, err := license.New("cust-42", "pro", time.Now().Add(-time.Minute), time.Now().Add(time.Hour))
	require.NoError(t, err)
	token, err := core.Sign(lic)
	require.NoError(t, err)

	gate := middleware.NewLicenseValidator(core, testLogger())
	handler := NewClaimsHandler(testLogger())

	r := chi.NewRouter()
	r.Route("/api/gated", func(gr chi.Router) {
		gr.Use(gate.Handler)
		gr.Get("/claims", handler.Claims)
	})
	return r, token
}

func TestClaimsEndpoint(t *testing.T) {
	router, token := claimsStack(t)

	get := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/gated/claims", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := get()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)

	lic := body["license"].(map[string]any)
	assert.Equal(t, "cust-42", lic["identifier"])
	assert.Equal(t, "pro", lic["plan"])
	assert.InDelta(t, 3600, body["remaining_seconds"], 90)
	assert.Equal(t, false, body["cached"])

	// The second request is served from the gate cache.
	rec = get()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["cached"])
}

func TestClaimsRefusedWithoutToken(t *testing.T) {
	router, _ := claimsStack(t)

	req := httptest.NewRequest(http.MethodGet, "/api/gated/claims", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Bearer realm="license"`, rec.Header().Get("WWW-Authenticate"))
}

func TestClaimsWithoutGrantIsServerError(t *testing.T) {
	handler := NewClaimsHandler(testLogger())

	rec := httptest.NewRecorder()
	handler.Claims(rec, httptest.NewRequest(http.MethodGet, "/api/gated/claims", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "/errors/internal", body["type"])
}
