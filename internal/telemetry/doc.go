// Package telemetry wires OpenTelemetry metrics for the gateway. It owns
// the meter provider (stdout exporter or noop when disabled) and the
// instrument bundle the coordinator and gateway record against.
package telemetry
