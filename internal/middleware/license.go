package middleware

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"signet/internal/errors"
	"signet/internal/infrastructure"
	"signet/internal/license"
)

const (
	defaultCacheTTL  = 5 * time.Minute
	defaultCacheSize = 1024
)

// licenseGrantKey is the context key for the admitted license
const licenseGrantKey ctxKey = "license-grant"

// Grant describes a license token admitted by the gate.
type Grant struct {
	License   *license.License
	Remaining int64
	Cached    bool
}

// LicenseValidator gates requests on a signed license token carried in
// the Authorization header. Admitted licenses are cached by token
// digest so repeated requests skip signature verification; a cache
// entry never outlives the validity window of its license.
type LicenseValidator struct {
	validator TokenValidator
	logger    *slog.Logger
	cache     *tokenCache

	excludePaths    []string
	excludePrefixes []string
	enabled         bool

	metrics *infrastructure.BusinessMetrics
}

// NewLicenseValidator creates license gate middleware around a token validator
func NewLicenseValidator(validator TokenValidator, logger *slog.Logger) *LicenseValidator {
	return &LicenseValidator{
		validator: validator,
		logger:    infrastructure.WithComponent(logger, "license_gate"),
		enabled:   true,
		cache:     newTokenCache(defaultCacheTTL, defaultCacheSize),
		excludePaths: []string{
			"/",
			"/api/health",
			"/api/health/live",
			"/api/health/ready",
			"/api/version",
			"/api/license/sign",
			"/api/license/verify",
			"/api/license/validate",
			"/api/license/status",
			"/metrics",
			"/favicon.ico",
			"/robots.txt",
		},
		excludePrefixes: []string{
			"/static/",
		},
	}
}

// Handler returns the middleware handler function
func (lv *LicenseValidator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if !lv.enabled || lv.shouldExcludePath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		tracer := otel.Tracer("license-gate")
		ctx, span := tracer.Start(ctx, "license_gate.check",
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.url", r.URL.Path),
			),
		)
		defer span.End()
		r = r.WithContext(ctx)

		traceID := infrastructure.GetTraceID(ctx)
		if traceID == "" {
			traceID = GetReqID(ctx)
		}

		token, ok := BearerToken(r)
		if !ok {
			span.SetAttributes(attribute.String("license.gate", "no_token"))
			lv.recordDecision(ctx, "refused", "MISSING_BEARER_TOKEN")

			lv.logger.WarnContext(ctx, "request without license token refused",
				slog.String("path", r.URL.Path),
				slog.String("trace_id", traceID))

			w.Header().Set("WWW-Authenticate", `Bearer realm="license"`)
			problem := errors.NewProblemDetails(
				http.StatusUnauthorized,
				errors.TypeLicenseMissing,
				"License Required",
				"Provide a signed license token in the Authorization header as 'Bearer <token>'.",
				errors.LicenseInstance(r.URL.Path, traceID),
			).WithExtension("trace_id", traceID)
			render.Render(w, r, problem)
			return
		}

		now := time.Now()
		digest := sha256.Sum256([]byte(token))

		if lic, ok := lv.cache.get(digest, now); ok {
			span.SetAttributes(
				attribute.String("license.gate", "cache_hit"),
				attribute.String("license.plan", lic.Plan),
			)
			if lv.metrics != nil {
				lv.metrics.LicenseGateCacheHits.Add(ctx, 1)
			}
			lv.recordDecision(ctx, "allowed", "")

			remaining := lic.ValidUntil.Unix() - now.Unix()
			ctx = withGrant(ctx, &Grant{License: lic, Remaining: remaining, Cached: true})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if lv.metrics != nil {
			lv.metrics.LicenseGateCacheMisses.Add(ctx, 1)
		}

		start := time.Now()
		lic, remaining, err := lv.validator.ValidateSigned(token)
		checkDuration := time.Since(start)

		span.SetAttributes(
			attribute.String("license.gate", "checked"),
			attribute.Bool("license.valid", err == nil),
			attribute.Float64("license.check_ms", float64(checkDuration.Milliseconds())),
		)

		if err != nil {
			code := license.CodeOf(err)
			span.SetAttributes(attribute.String("license.error_code", string(code)))
			infrastructure.RecordError(ctx, err)
			lv.recordDecision(ctx, "refused", string(code))

			lv.logger.WarnContext(ctx, "license token refused",
				slog.String("path", r.URL.Path),
				slog.String("token_digest", license.TokenDigest(token)),
				slog.String("error_code", string(code)),
				slog.String("trace_id", traceID))

			render.Render(w, r, errors.MapLicenseError(err, traceID, errors.LicenseInstance(r.URL.Path, traceID)))
			return
		}

		lv.cache.put(digest, lic, now)
		lv.recordDecision(ctx, "allowed", "")
		if lv.metrics != nil {
			lv.metrics.LicenseSecondsRemaining.Record(ctx, float64(remaining))
		}

		lv.logger.DebugContext(ctx, "license token admitted",
			slog.String("path", r.URL.Path),
			slog.String("token_digest", license.TokenDigest(token)),
			slog.String("plan", lic.Plan),
			slog.Int64("remaining_seconds", remaining),
			slog.String("trace_id", traceID))

		ctx = withGrant(ctx, &Grant{License: lic, Remaining: remaining})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken extracts the bearer token from the Authorization header.
// The scheme comparison is case-insensitive per RFC 7235.
func BearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", false
	}

	const prefix = "bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}

	token := strings.TrimSpace(auth[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

// withGrant stores the admitted license in the request context
func withGrant(ctx context.Context, grant *Grant) context.Context {
	return context.WithValue(ctx, licenseGrantKey, grant)
}

// GrantFromContext returns the license grant stored by the gate
func GrantFromContext(ctx context.Context) (*Grant, bool) {
	grant, ok := ctx.Value(licenseGrantKey).(*Grant)
	return grant, ok
}

// LicenseFromContext returns the admitted license stored by the gate
func LicenseFromContext(ctx context.Context) (*license.License, bool) {
	grant, ok := GrantFromContext(ctx)
	if !ok {
		return nil, false
	}
	return grant.License, true
}

// shouldExcludePath checks if a path should be excluded from the gate
func (lv *LicenseValidator) shouldExcludePath(path string) bool {
	for _, excluded := range lv.excludePaths {
		if path == excluded {
			return true
		}
	}

	for _, prefix := range lv.excludePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}

// recordDecision records a gate admission decision metric
func (lv *LicenseValidator) recordDecision(ctx context.Context, decision, errorCode string) {
	if lv.metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("decision", decision),
	}
	if errorCode != "" {
		attrs = append(attrs, attribute.String("error_code", errorCode))
	}
	lv.metrics.LicenseGateDecisions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// AddExcludePath adds a path to be excluded from the gate
func (lv *LicenseValidator) AddExcludePath(path string) {
	lv.excludePaths = append(lv.excludePaths, path)
}

// AddExcludePrefix adds a path prefix to be excluded from the gate
func (lv *LicenseValidator) AddExcludePrefix(prefix string) {
	lv.excludePrefixes = append(lv.excludePrefixes, prefix)
}

// SetEnabled enables or disables the gate
func (lv *LicenseValidator) SetEnabled(enabled bool) {
	lv.enabled = enabled
}

// SetMetrics sets the OpenTelemetry metrics for the gate
func (lv *LicenseValidator) SetMetrics(metrics *infrastructure.BusinessMetrics) {
	lv.metrics = metrics
}

// SetCache reconfigures the admission cache. A zero TTL or size
// disables caching entirely.
func (lv *LicenseValidator) SetCache(ttl time.Duration, size int) {
	lv.cache = newTokenCache(ttl, size)
}

// InvalidateCache drops all cached admissions
func (lv *LicenseValidator) InvalidateCache() {
	lv.cache.clear()
}

// CacheStats returns admission cache statistics for monitoring
func (lv *LicenseValidator) CacheStats() map[string]interface{} {
	return lv.cache.stats()
}

// tokenCache stores admitted licenses keyed by token digest
type tokenCache struct {
	mu      sync.RWMutex
	entries map[[sha256.Size]byte]cacheEntry
	ttl     time.Duration
	max     int
}

type cacheEntry struct {
	license   *license.License
	expiresAt time.Time
}

func newTokenCache(ttl time.Duration, max int) *tokenCache {
	return &tokenCache{
		entries: make(map[[sha256.Size]byte]cacheEntry),
		ttl:     ttl,
		max:     max,
	}
}

func (c *tokenCache) get(key [sha256.Size]byte, now time.Time) (*license.License, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || now.After(entry.expiresAt) {
		return nil, false
	}
	return entry.license, true
}

func (c *tokenCache) put(key [sha256.Size]byte, lic *license.License, now time.Time) {
	if c.ttl <= 0 || c.max <= 0 {
		return
	}

	// An entry must not outlive the license it admits
	ttl := c.ttl
	if rem := lic.ValidUntil.Sub(now); rem < ttl {
		ttl = rem
	}
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.max {
		c.sweepLocked(now)
	}
	if len(c.entries) >= c.max {
		c.evictOneLocked()
	}

	c.entries[key] = cacheEntry{license: lic, expiresAt: now.Add(ttl)}
}

// sweepLocked removes expired entries. Caller holds the write lock.
func (c *tokenCache) sweepLocked(now time.Time) {
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// evictOneLocked removes an arbitrary entry. Caller holds the write lock.
func (c *tokenCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func (c *tokenCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[[sha256.Size]byte]cacheEntry)
}

func (c *tokenCache) stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"entries":     len(c.entries),
		"max_entries": c.max,
		"ttl_seconds": int(c.ttl.Seconds()),
	}
}
