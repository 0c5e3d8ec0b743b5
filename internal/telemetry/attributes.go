// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	LimiterNameKey      = "ratelimit.limiter"
	LimiterAlgorithmKey = "ratelimit.algorithm"
	LimiterKeyKey       = "ratelimit.key"
	LimiterClassKey     = "ratelimit.class"
	LimiterCellsKey     = "ratelimit.cells"
	WaitResultKey       = "ratelimit.wait.result"
	WaitRechecksKey     = "ratelimit.wait.rechecks"
	WaitDurationKey     = "ratelimit.wait.duration_ms"

	StoreBackendKey = "store.backend"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// LimiterAttributes describes the limiter a span is operating on. Empty
// key and class are omitted.
func LimiterAttributes(name, algorithm, key, class string, cells uint32) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 5)
	attrs = append(attrs,
		attribute.String(LimiterNameKey, name),
		attribute.String(LimiterAlgorithmKey, algorithm),
		attribute.Int64(LimiterCellsKey, int64(cells)),
	)
	if key != "" {
		attrs = append(attrs, attribute.String(LimiterKeyKey, key))
	}
	if class != "" {
		attrs = append(attrs, attribute.String(LimiterClassKey, class))
	}
	return attrs
}

// WaitAttributes records how a wait ended.
func WaitAttributes(result string, rechecks int, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(WaitResultKey, result),
		attribute.Int(WaitRechecksKey, rechecks),
		attribute.Int64(WaitDurationKey, durationMS),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
