package tracing

import "go.opentelemetry.io/otel"

// GlobalTracer is a noop unless an OpenTelemetry SDK is installed
// via the global provider at startup
var GlobalTracer = otel.Tracer("lms-backend")
