// Package license implements self-contained, offline-verifiable access
// licenses. A license carries an identifier, a plan label and an inclusive
// validity window; it is serialized to a canonical pipe-joined string,
// signed with an Ed25519 secret key and handed out as a single URL-safe
// Base64 token. Anyone holding the matching public key can verify the
// token and judge its validity without a database or a network call.
//
// # Wire Format
//
// The canonical serialization joins the four fields with U+007C:
//
//	identifier|plan|valid_from_unix|valid_until_unix
//
// Both timestamps are signed base-10 Unix seconds in UTC. The signed
// envelope is the 64-byte detached signature followed directly by the
// serialized bytes, encoded with the unpadded URL-safe Base64 alphabet:
//
//	token = base64url( signature(64) || identifier|plan|from|until )
//
// The signature length is fixed, so no delimiter or length prefix is
// needed. Any change to field order, separator or integer encoding
// invalidates every previously issued token.
//
// # Operations
//
// The package-level functions take explicit key material:
//
//	token, err := license.Sign(lic, secretKey)
//	lic, err := license.Verify(token, publicKey)
//	remaining, err := license.Validate(lic)
//
// Service binds a Keyring resolved from configuration once and exposes
// the same operations without per-call keys. All operations are pure:
// nothing is cached, persisted or mutated, and every failure is reported
// as a typed *Error carrying a stable machine-readable code.
//
// # Validity
//
// A license moves through predated, active and expired states driven
// purely by wall-clock time; both window bounds are inclusive, so a
// license whose valid_until equals the current instant still validates
// with zero remaining seconds. Signature state is orthogonal to the
// temporal state: a tampered token is rejected before its window is
// ever inspected.
package license
