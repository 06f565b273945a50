package license

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/crypto/nacl/sign"
)

// Key sizes in bytes. A secret key is the Ed25519 seed concatenated with the
// public key; the public key is the verification half alone.
const (
	SecretKeySize = 64
	PublicKeySize = 32
)

// keyEncoding is the text form for keys: URL-safe base64 without padding,
// the same alphabet used for signed license tokens.
var keyEncoding = base64.RawURLEncoding

// SecretKey is an Ed25519 signing key. It is never printed: String and
// LogValue both redact the material so a key cannot leak through logging
// or error formatting.
type SecretKey []byte

// PublicKey is an Ed25519 verification key. Public keys are not sensitive
// and render as their text form.
type PublicKey []byte

// DecodeSecretKey parses the text form of a secret key. Surrounding
// whitespace is ignored so keys read from files may carry a trailing
// newline.
func DecodeSecretKey(text string) (SecretKey, error) {
	raw, err := keyEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return nil, newErrorf(CodeSecretKeyUndecodable, "secret key is not valid base64url text: %v", err)
	}
	return SecretKeyFrom(raw)
}

// DecodePublicKey parses the text form of a public key.
func DecodePublicKey(text string) (PublicKey, error) {
	raw, err := keyEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return nil, newErrorf(CodePublicKeyUndecodable, "public key is not valid base64url text: %v", err)
	}
	return PublicKeyFrom(raw)
}

// SecretKeyFrom accepts the raw-byte variants of a secret key and rejects
// everything else. A value of the wrong type fails with a type error even
// when its length happens to be correct; a byte value of the wrong length
// fails with a size error.
func SecretKeyFrom(v any) (SecretKey, error) {
	var raw []byte
	switch v := v.(type) {
	case SecretKey:
		raw = v
	case []byte:
		raw = v
	case *[SecretKeySize]byte:
		if v == nil {
			return nil, ErrInvalidSecretKeyType
		}
		raw = v[:]
	case [SecretKeySize]byte:
		raw = v[:]
	default:
		return nil, newErrorf(CodeInvalidSecretKeyType, "secret key must be raw bytes, got %T", v)
	}
	if len(raw) != SecretKeySize {
		return nil, newErrorf(CodeInvalidSecretKeySize, "secret key must be exactly %d bytes, got %d", SecretKeySize, len(raw))
	}
	key := make(SecretKey, SecretKeySize)
	copy(key, raw)
	return key, nil
}

// PublicKeyFrom accepts the raw-byte variants of a public key and rejects
// everything else, with the same type-before-size precedence as
// SecretKeyFrom.
func PublicKeyFrom(v any) (PublicKey, error) {
	var raw []byte
	switch v := v.(type) {
	case PublicKey:
		raw = v
	case []byte:
		raw = v
	case *[PublicKeySize]byte:
		if v == nil {
			return nil, ErrInvalidPublicKeyType
		}
		raw = v[:]
	case [PublicKeySize]byte:
		raw = v[:]
	default:
		return nil, newErrorf(CodeInvalidPublicKeyType, "public key must be raw bytes, got %T", v)
	}
	if len(raw) != PublicKeySize {
		return nil, newErrorf(CodeInvalidPublicKeySize, "public key must be exactly %d bytes, got %d", PublicKeySize, len(raw))
	}
	key := make(PublicKey, PublicKeySize)
	copy(key, raw)
	return key, nil
}

// Encode renders the key in its text form.
func (k SecretKey) Encode() string { return keyEncoding.EncodeToString(k) }

// Public derives the verification key embedded in the secret key.
func (k SecretKey) Public() (PublicKey, error) {
	if len(k) != SecretKeySize {
		return nil, newErrorf(CodeInvalidSecretKeySize, "secret key must be exactly %d bytes, got %d", SecretKeySize, len(k))
	}
	return PublicKeyFrom(k[SecretKeySize-PublicKeySize:])
}

// String redacts the key material.
func (k SecretKey) String() string { return "[redacted secret key]" }

// LogValue redacts the key material from structured logs.
func (k SecretKey) LogValue() slog.Value { return slog.StringValue("[redacted secret key]") }

// Encode renders the key in its text form.
func (k PublicKey) Encode() string { return keyEncoding.EncodeToString(k) }

// String returns the text form.
func (k PublicKey) String() string { return k.Encode() }

// MarshalText renders the key in its text form for JSON and YAML output.
func (k PublicKey) MarshalText() ([]byte, error) { return []byte(k.Encode()), nil }

// Keyring holds the configured key material. Either half may be absent: a
// signing deployment carries only the secret key, a verifying deployment
// only the public key. Operations that need a missing half fail with the
// matching not-configured error.
type Keyring struct {
	Secret SecretKey
	Public PublicKey
}

// NewKeyring validates the provided halves and assembles a Keyring. Nil
// halves are allowed; present halves must be well sized.
func NewKeyring(secret SecretKey, public PublicKey) (Keyring, error) {
	var kr Keyring
	if len(secret) > 0 {
		key, err := SecretKeyFrom(secret)
		if err != nil {
			return Keyring{}, err
		}
		kr.Secret = key
	}
	if len(public) > 0 {
		key, err := PublicKeyFrom(public)
		if err != nil {
			return Keyring{}, err
		}
		kr.Public = key
	}
	return kr, nil
}

// GenerateKeyring produces a fresh key pair. The reader defaults to the
// operating system's entropy source when nil.
func GenerateKeyring(r io.Reader) (Keyring, error) {
	if r == nil {
		r = rand.Reader
	}
	public, secret, err := sign.GenerateKey(r)
	if err != nil {
		return Keyring{}, fmt.Errorf("generating key pair: %w", err)
	}
	return Keyring{Secret: secret[:], Public: public[:]}, nil
}

// HasSecret reports whether a secret key is configured.
func (k Keyring) HasSecret() bool { return len(k.Secret) > 0 }

// HasPublic reports whether a public key is configured.
func (k Keyring) HasPublic() bool { return len(k.Public) > 0 }

// secretKey returns the signing key or the not-configured error.
func (k Keyring) secretKey() (SecretKey, error) {
	if !k.HasSecret() {
		return nil, ErrSecretKeyNotConfigured
	}
	return SecretKeyFrom(k.Secret)
}

// publicKey returns the verification key, deriving it from the secret key
// when only that half is configured.
func (k Keyring) publicKey() (PublicKey, error) {
	if k.HasPublic() {
		return PublicKeyFrom(k.Public)
	}
	if k.HasSecret() {
		secret, err := k.secretKey()
		if err != nil {
			return nil, ErrPublicKeyNotConfigured
		}
		return secret.Public()
	}
	return nil, ErrPublicKeyNotConfigured
}
