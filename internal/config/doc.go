// Package config provides centralized configuration management for the
// signet services. It handles loading configuration from multiple sources,
// validation, and a type-safe API for the rest of the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of
// precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (YAML)
//	3. Built-in defaults (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern SIGNET_* for namespacing:
//
//	SIGNET_SERVER_PORT=8080
//	SIGNET_KEYS_PUBLIC_KEY_FILE=/etc/signet/license.pub
//	SIGNET_LOGGING_LEVEL=debug
//	SIGNET_SECURITY_RATE_LIMIT_RPS=200
//
// # Key Material
//
// Signing and verification keys may be supplied inline (base64url text) or
// as file paths. Inline values win when both are set for the same half.
// Either half may be absent: a token service needs the secret key, a
// verifying deployment only the public key.
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	keys, err := cfg.Keys.Keyring()
package config
