// Package services implements the business logic layer between the HTTP
// handlers and the core license authority. It owns boundary normalization,
// operation counters and metrics; cryptography and validity-window checks
// stay in the license package.
//
// # Architecture
//
// Services follow these principles:
//
//	1. Interface-driven design for testability
//	2. Context propagation for cancellation and tracing
//	3. Dependency injection for loose coupling
//	4. Cross-cutting concerns (logging, metrics) handled once, here
//
// # Common Service Pattern
//
// Services typically follow this structure:
//
//	type ServiceName struct {
//	    core   *license.Service
//	    logger *slog.Logger
//	}
//
//	func NewServiceName(core *license.Service, logger *slog.Logger) *ServiceName {
//	    return &ServiceName{
//	        core:   core,
//	        logger: logger,
//	    }
//	}
//
// # Available Services
//
//	- LicenseService: signing, verification and validation of license tokens
//	- HealthService: liveness and readiness checks
//
// # Error Handling
//
// License operations return the core license errors untouched so that
// handlers can map the typed codes onto HTTP problem responses.
package services
