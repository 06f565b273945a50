package services

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"signet/internal/infrastructure"
	"signet/internal/license"
)

// LicenseService provides the license operations exposed over HTTP.
type LicenseService interface {
	// Sign builds a license from loosely typed inputs and issues a signed
	// token for it. A nil identifier makes the service mint a random one.
	Sign(ctx context.Context, identifier, plan, validFrom, validUntil any) (string, *license.License, error)

	// Verify authenticates a token and returns the embedded license along
	// with its canonical serialized form. The validity window is ignored.
	Verify(ctx context.Context, token string) (*license.License, string, error)

	// Validate authenticates a token and reports where the service clock
	// falls relative to the license window. Authentic tokens outside their
	// window are reported, not refused; refusal is the gate's job.
	Validate(ctx context.Context, token string) (*ValidationReport, error)

	// Status reports key configuration, uptime and operation counters.
	Status(ctx context.Context) *LicenseStatusResponse

	CanSign() bool
	CanVerify() bool
}

// ValidationReport is the outcome of checking an authentic token against
// the service clock.
type ValidationReport struct {
	License   *license.License
	Status    license.Status
	Remaining int64
}

// OperationCounters are running totals since process start.
type OperationCounters struct {
	Signs            int64 `json:"signs"`
	SignFailures     int64 `json:"sign_failures"`
	Verifies         int64 `json:"verifies"`
	VerifyFailures   int64 `json:"verify_failures"`
	Validates        int64 `json:"validates"`
	ValidateFailures int64 `json:"validate_failures"`
}

// LicenseStatusResponse represents the license service status response
type LicenseStatusResponse struct {
	Status        string            `json:"status"` // ok|verify_only|unconfigured
	SignEnabled   bool              `json:"sign_enabled"`
	VerifyEnabled bool              `json:"verify_enabled"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Counters      OperationCounters `json:"counters"`
	TraceID       string            `json:"trace_id,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// licenseService implements LicenseService on top of the core authority.
type licenseService struct {
	core    *license.Service
	clock   license.Clock
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger

	startTime        time.Time
	signs            atomic.Int64
	signFailures     atomic.Int64
	verifies         atomic.Int64
	verifyFailures   atomic.Int64
	validates        atomic.Int64
	validateFailures atomic.Int64
}

// NewLicenseService creates a new license service. clock, metrics and
// logger may be nil.
func NewLicenseService(core *license.Service, clock license.Clock, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) LicenseService {
	if clock == nil {
		clock = license.SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &licenseService{
		core:      core,
		clock:     clock,
		metrics:   metrics,
		logger:    logger.With(slog.String("service", "license")),
		startTime: time.Now(),
	}
}

// Sign builds and signs a license from boundary inputs.
func (s *licenseService) Sign(ctx context.Context, identifier, plan, validFrom, validUntil any) (string, *license.License, error) {
	start := time.Now()
	traceID := s.traceID(ctx)

	minted := false
	if identifier == nil {
		identifier = uuid.New().String()
		minted = true
	}

	lic, err := license.New(identifier, plan, instantValue(validFrom), instantValue(validUntil))
	if err != nil {
		s.recordSign(ctx, err)
		s.logger.WarnContext(ctx, "license rejected before signing",
			slog.String("trace_id", traceID),
			slog.String("error_code", string(license.CodeOf(err))),
		)
		return "", nil, err
	}

	token, err := s.core.Sign(lic)
	if err != nil {
		s.recordSign(ctx, err)
		s.logger.WarnContext(ctx, "license signing failed",
			slog.String("trace_id", traceID),
			slog.String("license_id", lic.ID),
			slog.String("error_code", string(license.CodeOf(err))),
		)
		return "", nil, err
	}

	s.recordSign(ctx, nil)
	s.logger.InfoContext(ctx, "license signed",
		slog.String("trace_id", traceID),
		slog.String("license_id", lic.ID),
		slog.String("plan", lic.Plan),
		slog.Bool("identifier_minted", minted),
		slog.String("token_digest", license.TokenDigest(token)),
		slog.Duration("latency", time.Since(start)),
	)
	return token, lic, nil
}

// Verify authenticates a token and returns the license with its canonical
// form.
func (s *licenseService) Verify(ctx context.Context, token string) (*license.License, string, error) {
	start := time.Now()
	traceID := s.traceID(ctx)

	lic, err := s.core.Verify(token)
	if err != nil {
		s.verifies.Add(1)
		s.verifyFailures.Add(1)
		infrastructure.RecordLicenseCheck(ctx, s.metrics, "verify", time.Since(start), string(license.CodeOf(err)))
		s.logger.WarnContext(ctx, "license verification refused",
			slog.String("trace_id", traceID),
			slog.String("token_digest", license.TokenDigest(token)),
			slog.String("error_code", string(license.CodeOf(err))),
		)
		return nil, "", err
	}

	serialized, err := license.Serialize(lic)
	if err != nil {
		// A verified license always serializes; reaching this means the
		// envelope and codec disagree on the record rules.
		s.verifies.Add(1)
		s.verifyFailures.Add(1)
		infrastructure.RecordLicenseCheck(ctx, s.metrics, "verify", time.Since(start), string(license.CodeOf(err)))
		s.logger.ErrorContext(ctx, "verified license failed to serialize",
			slog.String("trace_id", traceID),
			slog.String("license_id", lic.ID),
			slog.String("error_code", string(license.CodeOf(err))),
		)
		return nil, "", err
	}

	s.verifies.Add(1)
	infrastructure.RecordLicenseCheck(ctx, s.metrics, "verify", time.Since(start), "")
	s.logger.DebugContext(ctx, "license verified",
		slog.String("trace_id", traceID),
		slog.String("license_id", lic.ID),
		slog.String("token_digest", license.TokenDigest(token)),
	)
	return lic, serialized, nil
}

// Validate authenticates a token and reports its temporal state.
func (s *licenseService) Validate(ctx context.Context, token string) (*ValidationReport, error) {
	start := time.Now()
	traceID := s.traceID(ctx)

	lic, err := s.core.Verify(token)
	if err != nil {
		s.validates.Add(1)
		s.validateFailures.Add(1)
		infrastructure.RecordLicenseCheck(ctx, s.metrics, "validate", time.Since(start), string(license.CodeOf(err)))
		s.logger.WarnContext(ctx, "license validation refused",
			slog.String("trace_id", traceID),
			slog.String("token_digest", license.TokenDigest(token)),
			slog.String("error_code", string(license.CodeOf(err))),
		)
		return nil, err
	}

	now := s.clock.Now()
	remaining := lic.ValidUntil.Unix() - now.Unix()
	if remaining < 0 {
		remaining = 0
	}
	report := &ValidationReport{
		License:   lic,
		Status:    lic.StatusAt(now),
		Remaining: remaining,
	}

	s.validates.Add(1)
	infrastructure.RecordLicenseCheck(ctx, s.metrics, "validate", time.Since(start), "")
	s.logger.DebugContext(ctx, "license validated",
		slog.String("trace_id", traceID),
		slog.String("license_id", lic.ID),
		slog.String("license_status", string(report.Status)),
		slog.Int64("remaining_seconds", report.Remaining),
	)
	return report, nil
}

// Status reports key configuration, uptime and operation counters.
func (s *licenseService) Status(ctx context.Context) *LicenseStatusResponse {
	status := "unconfigured"
	switch {
	case s.core.CanSign():
		status = "ok"
	case s.core.CanVerify():
		status = "verify_only"
	}

	return &LicenseStatusResponse{
		Status:        status,
		SignEnabled:   s.core.CanSign(),
		VerifyEnabled: s.core.CanVerify(),
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		Counters: OperationCounters{
			Signs:            s.signs.Load(),
			SignFailures:     s.signFailures.Load(),
			Verifies:         s.verifies.Load(),
			VerifyFailures:   s.verifyFailures.Load(),
			Validates:        s.validates.Load(),
			ValidateFailures: s.validateFailures.Load(),
		},
		TraceID:   s.traceID(ctx),
		Timestamp: time.Now().UTC(),
	}
}

func (s *licenseService) CanSign() bool { return s.core.CanSign() }

func (s *licenseService) CanVerify() bool { return s.core.CanVerify() }

// recordSign updates counters and metrics for one signing attempt.
func (s *licenseService) recordSign(ctx context.Context, err error) {
	s.signs.Add(1)
	if s.metrics != nil {
		s.metrics.LicenseSignTotal.Add(ctx, 1)
	}
	if err != nil {
		s.signFailures.Add(1)
		if s.metrics != nil {
			s.metrics.LicenseSignFailures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("error_code", string(license.CodeOf(err))),
			))
		}
	}
}

func (s *licenseService) traceID(ctx context.Context) string {
	if id := infrastructure.GetTraceID(ctx); id != "" {
		return id
	}
	return infrastructure.TraceIDFromContext(ctx)
}

// instantValue widens the accepted timestamp forms at the API boundary:
// RFC 3339 text becomes a native instant before the core coercion rules
// run, everything else passes through untouched.
func instantValue(v any) any {
	if text, ok := v.(string); ok {
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(text)); err == nil {
			return t
		}
	}
	return v
}
