package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys.
const (
	ProfilingLabelOperation = "operation"
	ProfilingLabelScope     = "scope"
	ProfilingLabelRoute     = "route"
	ProfilingLabelMethod    = "method"
)

// Operations tagged in profiles. QR encoding runs inside render.
const (
	OperationRender      = "render"
	OperationConcatenate = "concatenate"
	OperationPackage     = "package"
	OperationPrintPDF    = "print_pdf"
)

// MaxLabelValueLength caps label values to keep profile cardinality bounded.
const MaxLabelValueLength = 128

// highCardinalityLabels are dropped from profiling labels
var highCardinalityLabels = map[string]bool{
	"request_id":   true,
	"run_id":       true,
	"session_id":   true,
	"invoice_id":   true,
	"passenger_id": true,
	"trace_id":     true,
	"span_id":      true,
}

// WithProfilingLabels runs fn with labels attached to the goroutine's
// profiling samples. Labels are pprof labels, so they also show up in plain
// pprof output when no Pyroscope server is configured.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// DocumentLabels labels document work by operation and, when known, request scope.
func DocumentLabels(operation, scope string) map[string]string {
	labels := map[string]string{ProfilingLabelOperation: operation}
	if scope != "" {
		labels[ProfilingLabelScope] = scope
	}
	return labels
}

// HTTPRequestLabels labels request handling by route pattern and method.
func HTTPRequestLabels(route, method string) map[string]string {
	labels := make(map[string]string, 2)
	if route != "" {
		labels[ProfilingLabelRoute] = route
	}
	if method != "" {
		labels[ProfilingLabelMethod] = method
	}
	return labels
}

// sanitizeLabels returns sorted key/value pairs with empty, high-cardinality
// and malformed entries dropped and long values truncated.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, k := range keys {
		value := labels[k]
		key := sanitizeLabelKey(k)
		if key == "" || value == "" || highCardinalityLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		pairs = append(pairs, key, value)
	}
	return pairs
}

// sanitizeLabelKey lowercases key into snake_case and strips other characters
func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)

	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
