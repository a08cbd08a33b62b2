// Package shared holds code used across layers that belongs to no single
// domain package.
//
// The testutil subpackage provides a capturing slog handler for asserting on
// structured logs, and panel fixtures (small CSV panels with known index
// values) used by the panel, multilateral, services and HTTP tests.
package shared
