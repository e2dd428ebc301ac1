// Package telemetry wires OpenTelemetry tracing and metrics for wikirag runs.
//
// Telemetry is off by default. When enabled, spans and metrics are exported
// over OTLP (gRPC or HTTP) to a local collector. Exporter failures degrade the
// instance instead of failing the run.
package telemetry
