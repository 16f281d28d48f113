// Package telemetry provides OpenTelemetry initialization and helpers
// for distributed tracing across the transcription backend.
//
// The package configures OTLP HTTP export for traces and logs, with support
// for Grafana Cloud, Better Stack, and local Tempo backends.
package telemetry
