package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signet/internal/license"
	"signet/internal/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testStack builds the handler with a real service over the given keyring
// and a clock pinned to now.
func testStack(t *testing.T, now time.Time, kr license.Keyring) (http.Handler, services.LicenseService) {
	t.Helper()
	clock := license.ClockFunc(func() time.Time { return now })
	core := license.NewService(kr, clock, testLogger())
	svc := services.NewLicenseService(core, clock, nil, testLogger())

	handler := NewLicenseHandler(svc, testLogger())
	r := chi.NewRouter()
	r.Mount("/api/license", handler.Routes())
	return r, svc
}

func testKeyring(t *testing.T) license.Keyring {
	t.Helper()
	kr, err := license.GenerateKeyring(nil)
	require.NoError(t, err)
	return kr
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
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
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSignEndpoint(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	router, svc := testStack(t, now, testKeyring(t))

	rec := doJSON(t, router, http.MethodPost, "/api/license/sign",
		`{"identifier":"cust-42","plan":"pro","valid_from":1699996400,"valid_until":1700003600}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)

	token, ok := body["token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)

	lic, ok := body["license"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "cust-42", lic["identifier"])
	assert.Equal(t, "pro", lic["plan"])
	assert.Equal(t, "2023-11-14T21:13:20Z", lic["valid_from"])
	assert.Equal(t, "2023-11-14T23:13:20Z", lic["valid_until"])

	// The issued token round-trips through the verification path.
	got, _, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "cust-42", got.ID)
}

func TestSignMintsIdentifier(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	router, _ := testStack(t, now, testKeyring(t))

	rec := doJSON(t, router, http.MethodPost, "/api/license/sign",
		`{"plan":"pro","valid_from":1699996400,"valid_until":1700003600}`)

	require.Equal(t, http.StatusOK, rec.Code)
	lic := decodeBody(t, rec)["license"].(map[string]any)

	_, err := uuid.Parse(lic["identifier"].(string))
	assert.NoError(t, err, "minted identifier should be a UUID")
}

func TestSignAcceptsRFC3339Timestamps(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	router, _ := testStack(t, now, testKeyring(t))

	rec := doJSON(t, router, http.MethodPost, "/api/license/sign",
		`{"identifier":"cust-42","plan":"pro","valid_from":"2023-11-14T21:13:20Z","valid_until":"2023-11-14T23:13:20Z"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	lic := decodeBody(t, rec)["license"].(map[string]any)
	assert.Equal(t, "2023-11-14T21:13:20Z", lic["valid_from"])
}

func TestSignRejections(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "empty plan",
			body:       `{"identifier":"cust-42","plan":"","valid_from":0,"valid_until":100}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "EMPTY_PLAN",
		},
		{
			name:       "missing plan",
			body:       `{"identifier":"cust-42","valid_from":0,"valid_until":100}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "EMPTY_PLAN",
		},
		{
			name:       "pipe in identifier",
			body:       `{"identifier":"a|b","plan":"pro","valid_from":0,"valid_until":100}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "RESERVED_CHARACTER",
		},
		{
			name:       "inverted window",
			body:       `{"identifier":"cust-42","plan":"pro","valid_from":100,"valid_until":0}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_TIME_RANGE",
		},
		{
			name:       "unparseable timestamp",
			body:       `{"identifier":"cust-42","plan":"pro","valid_from":"next tuesday","valid_until":100}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_TIMESTAMP",
		},
		{
			name:       "composite identifier",
			body:       `{"identifier":{"a":1},"plan":"pro","valid_from":0,"valid_until":100}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_FIELD_TYPE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := testStack(t, now, testKeyring(t))
			rec := doJSON(t, router, http.MethodPost, "/api/license/sign", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantCode, body["error_code"])
			assert.Equal(t, "/errors/license/malformed", body["type"])
			assert.Contains(t, body["instance"], "/api/license/sign#trace-")
		})
	}
}

func TestSignWithoutSecretKey(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	full := testKeyring(t)
	verifyOnly, err := license.NewKeyring(nil, full.Public)
	require.NoError(t, err)
	router, _ := testStack(t, now, verifyOnly)

	rec := doJSON(t, router, http.MethodPost, "/api/license/sign",
		`{"identifier":"cust-42","plan":"pro","valid_from":0,"valid_until":100}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "SECRET_KEY_NOT_CONFIGURED", body["error_code"])
	assert.Equal(t, "License operations are temporarily unavailable.", body["detail"])
}

func TestSignDecodeFailure(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	router, _ := testStack(t, now, testKeyring(t))

	rec := doJSON(t, router, http.MethodPost, "/api/license/sign", `{"plan": `)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "/errors/validation", body["type"])
}

func TestVerifyEndpoint(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	router, svc := testStack(t, now, testKeyring(t))

	token, lic, err := svc.Sign(context.Background(), "cust-42", "pro", int64(1699996400), int64(1700003600))
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/api/license/verify",
		fmt.Sprintf(`{"token":%q}`, token))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)

	want, err := license.Serialize(lic)
	require.NoError(t, err)
	assert.Equal(t, want, body["serialized"])

	got := body["license"].(map[string]any)
	assert.Equal(t, "cust-42", got["identifier"])
}

func TestVerifyRejections(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	router, svc := testStack(t, now, testKeyring(t))

	token, _, err := svc.Sign(context.Background(), "cust-42", "pro", int64(0), int64(100))
	require.NoError(t, err)
	tampered := "A" + token[1:]
	if tampered == token {
		tampered = "B" + token[1:]
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
		wantType   string
	}{
		{
			name:       "empty token",
			body:       `{"token":""}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "EMPTY_SIGNED_LICENSE",
			wantType:   "/errors/license/missing",
		},
		{
			name:       "missing token field",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "EMPTY_SIGNED_LICENSE",
			wantType:   "/errors/license/missing",
		},
		{
			name:       "undecodable token",
			body:       `{"token":"not a token!!!"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "DECODING_FAILED",
			wantType:   "/errors/license/malformed",
		},
		{
			name:       "tampered token",
			body:       fmt.Sprintf(`{"token":%q}`, tampered),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "LICENSE_TAMPERED",
			wantType:   "/errors/license/tampered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/license/verify", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantCode, body["error_code"])
			assert.Equal(t, tt.wantType, body["type"])
		})
	}
}

// TestValidateEndpointReports checks that authentic tokens outside their
// window are reported with a status instead of refused.
func TestValidateEndpointReports(t *testing.T) {
	base := time.Unix(1_700_000_000, 0).UTC()
	kr := testKeyring(t)

	_, signer := testStack(t, base, kr)
	token, _, err := signer.Sign(context.Background(), "cust-42", "pro", base, base.Add(time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name          string
		now           time.Time
		wantStatus    string
		wantRemaining float64
	}{
		{name: "active", now: base.Add(30 * time.Minute), wantStatus: "active", wantRemaining: 1800},
		{name: "predated", now: base.Add(-time.Hour), wantStatus: "predated", wantRemaining: 7200},
		{name: "expired", now: base.Add(2 * time.Hour), wantStatus: "expired", wantRemaining: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := testStack(t, tt.now, kr)
			rec := doJSON(t, router, http.MethodPost, "/api/license/validate",
				fmt.Sprintf(`{"token":%q}`, token))

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, tt.wantRemaining, body["remaining_seconds"])
		})
	}
}

func TestValidateRefusesInauthentic(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	router, _ := testStack(t, now, testKeyring(t))

	rec := doJSON(t, router, http.MethodPost, "/api/license/validate", `{"token":"zzzz"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["error_code"])
}

func TestStatusEndpoint(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	router, svc := testStack(t, now, testKeyring(t))

	_, _, err := svc.Sign(context.Background(), "cust-42", "pro", int64(0), int64(100))
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodGet, "/api/license/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["sign_enabled"])
	assert.Equal(t, true, body["verify_enabled"])

	counters := body["counters"].(map[string]any)
	assert.Equal(t, float64(1), counters["signs"])
}
