// Package telemetry wires OpenTelemetry and Prometheus instrumentation into
// call interception.
//
// It centralises trace provider setup and offers hooks that count intercepted
// calls and attach call events to the active span, so operators can see which
// composed methods an application exercises.
package telemetry
