// Package app provides application initialization and lifecycle management
// for the license server. It wires configuration loading, key material,
// observability, the service layer and the HTTP stack together, and owns
// startup and graceful shutdown.
//
// # Architecture
//
// The app package follows a dependency injection pattern where all
// components are constructed at startup and handed their dependencies
// explicitly. Nothing reaches for globals after initialization.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from defaults, file and environment
//	2. Initialize logging and OpenTelemetry
//	3. Decode the configured key material into a keyring
//	4. Build the license core and the service layer on top of it
//	5. Assemble middleware, handlers and the router
//	6. Configure the HTTP server
//
// Missing key material is deliberately not fatal. The server starts in a
// degraded mode, reports it through /api/health/ready and
// /api/license/status, and refuses sign or verify requests with typed
// errors until keys are provided.
//
// # Usage
//
// The main entry point is typically:
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Run handles SIGINT and SIGTERM and ensures that active requests are
// drained, the metrics collector stops and OpenTelemetry providers are
// flushed before returning.
//
// # Error Handling
//
// All initialization errors are returned to the caller. The app never
// calls os.Exit() itself, leaving exit control to main.
package app
