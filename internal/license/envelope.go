package license

import (
	"encoding/base64"

	"golang.org/x/crypto/nacl/sign"
)

// SignatureSize is the length in bytes of the signature prefixed to the
// serialized record inside a token.
const SignatureSize = sign.Overhead

// tokenEncoding is the text form for signed licenses: URL-safe base64
// without padding, so tokens travel safely in URLs, headers and env vars.
var tokenEncoding = base64.RawURLEncoding

// Sign serializes the license, signs the record and returns the token:
//
//	base64url( signature || identifier|plan|valid_from|valid_until )
//
// Any record-level failure surfaces before the key is touched, so an
// invalid license reports its own error even when no key is configured.
func Sign(l *License, key SecretKey) (string, error) {
	record, err := Serialize(l)
	if err != nil {
		return "", err
	}
	secret, err := SecretKeyFrom(key)
	if err != nil {
		return "", err
	}
	var buf [SecretKeySize]byte
	copy(buf[:], secret)
	signed := sign.Sign(nil, []byte(record), &buf)
	return tokenEncoding.EncodeToString(signed), nil
}

// Verify decodes the token, authenticates it against the public key and
// returns the embedded license. Failures are reported in order of
// discovery: an empty token, an undecodable token, a token too short to
// hold a signature, a signature mismatch, then any defect in the signed
// record itself. A tampered token never reveals which byte changed; both
// payload and signature corruption report LICENSE_TAMPERED.
func Verify(token string, key PublicKey) (*License, error) {
	if token == "" {
		return nil, ErrEmptySignedLicense
	}
	public, err := PublicKeyFrom(key)
	if err != nil {
		return nil, err
	}
	signed, err := tokenEncoding.DecodeString(token)
	if err != nil {
		return nil, newErrorf(CodeDecodingFailed, "signed license is not valid base64url text: %v", err)
	}
	if len(signed) < SignatureSize {
		return nil, newErrorf(CodeSignatureNotFound, "signed license holds %d bytes, fewer than the %d-byte signature", len(signed), SignatureSize)
	}
	var buf [PublicKeySize]byte
	copy(buf[:], public)
	record, ok := sign.Open(nil, signed, &buf)
	if !ok {
		return nil, ErrLicenseTampered
	}
	return Deserialize(string(record))
}
