// Package testutil provides fixtures shared by test suites across the
// codebase: generated keyrings, canonical license windows, pre-signed
// tokens and a buffered slog handler for asserting on log output.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"signet/internal/license"
)

// BaseEpoch is the pivot instant fixtures build their windows around.
// 2023-11-14T22:13:20Z, comfortably inside the representable range.
const BaseEpoch int64 = 1700000000

// DiscardLogger returns a logger that drops everything. Use it when a
// constructor demands a logger and the test does not care about output.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FixedClock returns a Clock pinned to the given epoch second.
func FixedClock(epoch int64) license.Clock {
	return license.ClockFunc(func() time.Time { return time.Unix(epoch, 0).UTC() })
}

// GenerateKeyring returns a fresh keyring with both halves populated.
func GenerateKeyring(t *testing.T) license.Keyring {
	t.Helper()
	kr, err := license.GenerateKeyring(nil)
	require.NoError(t, err)
	return kr
}

// VerifyOnly strips the secret half so the keyring can only verify.
func VerifyOnly(kr license.Keyring) license.Keyring {
	out, _ := license.NewKeyring(nil, kr.Public)
	return out
}

// SignOnly strips the public half so the keyring can only sign.
func SignOnly(kr license.Keyring) license.Keyring {
	out, _ := license.NewKeyring(kr.Secret, nil)
	return out
}

// WriteKeyFiles encodes both keyring halves into dir and returns the
// secret and public file paths. Files carry a trailing newline, the way
// keygen writes them.
func WriteKeyFiles(t *testing.T, dir string, kr license.Keyring) (secretPath, publicPath string) {
	t.Helper()
	secretPath = filepath.Join(dir, "signing.key")
	publicPath = filepath.Join(dir, "signing.pub")
	require.NoError(t, os.WriteFile(secretPath, []byte(kr.Secret.Encode()+"\n"), 0o600))
	require.NoError(t, os.WriteFile(publicPath, []byte(kr.Public.Encode()+"\n"), 0o644))
	return secretPath, publicPath
}

// ActiveLicense returns a license whose window straddles BaseEpoch.
func ActiveLicense(t *testing.T) *license.License {
	t.Helper()
	lic, err := license.New("fixture-active", "pro", BaseEpoch-3600, BaseEpoch+3600)
	require.NoError(t, err)
	return lic
}

// ExpiredLicense returns a license whose window closed before BaseEpoch.
func ExpiredLicense(t *testing.T) *license.License {
	t.Helper()
	lic, err := license.New("fixture-expired", "pro", BaseEpoch-7200, BaseEpoch-3600)
	require.NoError(t, err)
	return lic
}

// PredatedLicense returns a license whose window opens after BaseEpoch.
func PredatedLicense(t *testing.T) *license.License {
	t.Helper()
	lic, err := license.New("fixture-predated", "pro", BaseEpoch+3600, BaseEpoch+7200)
	require.NoError(t, err)
	return lic
}

// SignToken signs lic with the keyring's secret half and returns the
// opaque token.
func SignToken(t *testing.T, kr license.Keyring, lic *license.License) string {
	t.Helper()
	svc := license.NewService(kr, FixedClock(BaseEpoch), DiscardLogger())
	token, err := svc.Sign(lic)
	require.NoError(t, err)
	return token
}

// TamperToken flips the leading character of a token so the signature
// no longer matches while the base64 alphabet stays intact.
func TamperToken(token string) string {
	if token == "" {
		return token
	}
	tampered := "A" + token[1:]
	if tampered == token {
		tampered = "B" + token[1:]
	}
	return tampered
}
