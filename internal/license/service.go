package license

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
)

// Service binds a Keyring and a Clock into a signing and verification
// authority. The zero dependencies default to the system clock and the
// process logger, so NewService(keys, nil, nil) is a working verifier.
//
// Logs never carry key material or whole tokens; tokens appear only as a
// short digest usable for correlating related log lines.
type Service struct {
	keys   Keyring
	clock  Clock
	logger *slog.Logger
}

// NewService builds a Service around the given keys. clock and logger may
// be nil.
func NewService(keys Keyring, clock Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		keys:   keys,
		clock:  clock,
		logger: logger.With(slog.String("component", "license")),
	}
}

// Keys exposes the configured keyring.
func (s *Service) Keys() Keyring { return s.keys }

// CanSign reports whether a secret key is configured.
func (s *Service) CanSign() bool { return s.keys.HasSecret() }

// CanVerify reports whether verification is possible with the configured
// keys, through either the public half or derivation from the secret half.
func (s *Service) CanVerify() bool { return s.keys.HasPublic() || s.keys.HasSecret() }

// Sign produces a signed token for the license using the configured secret
// key.
func (s *Service) Sign(l *License) (string, error) {
	secret, err := s.keys.secretKey()
	if err != nil {
		return "", err
	}
	token, err := Sign(l, secret)
	if err != nil {
		s.logger.Debug("license signing failed",
			slog.String("error_code", string(CodeOf(err))))
		return "", err
	}
	s.logger.Debug("license signed",
		slog.String("license_id", l.ID),
		slog.String("plan", l.Plan),
		slog.String("token_digest", TokenDigest(token)))
	return token, nil
}

// Verify authenticates the token with the configured public key and
// returns the embedded license without checking its validity window.
func (s *Service) Verify(token string) (*License, error) {
	public, err := s.keys.publicKey()
	if err != nil {
		return nil, err
	}
	l, err := Verify(token, public)
	if err != nil {
		s.logger.Debug("license verification failed",
			slog.String("token_digest", TokenDigest(token)),
			slog.String("error_code", string(CodeOf(err))))
		return nil, err
	}
	return l, nil
}

// Validate checks the license window against the service clock.
func (s *Service) Validate(l *License) (int64, error) {
	return ValidateAt(l, s.clock.Now())
}

// ValidateSigned verifies the token and checks its validity window in one
// step, returning the license and the seconds remaining.
func (s *Service) ValidateSigned(token string) (*License, int64, error) {
	l, err := s.Verify(token)
	if err != nil {
		return nil, 0, err
	}
	remaining, err := s.Validate(l)
	if err != nil {
		s.logger.Debug("license outside validity window",
			slog.String("license_id", l.ID),
			slog.String("token_digest", TokenDigest(token)),
			slog.String("error_code", string(CodeOf(err))))
		return l, 0, err
	}
	return l, remaining, nil
}

// IsValid reports whether the token is authentic and currently within its
// validity window.
func (s *Service) IsValid(token string) bool {
	_, _, err := s.ValidateSigned(token)
	return err == nil
}

// Status verifies the token and reports where the service clock falls
// relative to the license window.
func (s *Service) Status(token string) (Status, error) {
	l, err := s.Verify(token)
	if err != nil {
		return "", err
	}
	return l.StatusAt(s.clock.Now()), nil
}

// TokenDigest returns a short hex digest of the token for log correlation.
// It is not reversible and never substitutes for the token itself.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}
