package config

import "time"

// Application constants shared across the signet services.
const (
	// Application Info
	AppName    = "signet"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable read by Load.
	EnvPrefix = "SIGNET"

	// Server defaults
	DefaultPort = 8080

	// Rate Limiting
	DefaultRateLimitRPS   = 100.0
	DefaultRateLimitBurst = 50

	// License gate cache
	DefaultGateCacheTTL  = 5 * time.Minute
	DefaultGateCacheSize = 1024

	// Logging
	DefaultLogFile = "logs/signet.log"

	// Key file names written by the keygen tool
	DefaultSecretKeyFile = "license.key"
	DefaultPublicKeyFile = "license.pub"
)
