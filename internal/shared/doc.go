// Package shared holds cross-cutting helpers that belong to no single
// domain or architectural layer.
//
// The testutil subpackage carries the test fixtures used across suites:
// generated keyrings, canonical license windows around a fixed pivot
// epoch, pre-signed tokens, key files on disk and a buffered slog
// handler for asserting on log output. Production code must not import
// anything under this package's testutil tree.
package shared
