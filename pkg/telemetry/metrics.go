package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// `CompletionMetrics` instruments the completion layer specifically: in
// addition to the usual request/response/latency triad every backend call
// gets, it separately counts operations the layer had to *simulate* (a
// create_dir synthesized from an empty write, a flattened recursive list)
// versus ones the backend served natively — the signal an operator needs to
// tell "this backend is slow" apart from "this backend is missing a
// capability and paying the emulation tax".
type CompletionMetrics struct {
	meter metric.Meter

	baseAttributes []attribute.KeyValue

	requestCounter  metric.Int64Counter
	responseCounter metric.Int64Counter
	latencyGauge    metric.Float64Gauge
	simulatedCounter metric.Int64Counter
}

// `NewCompletionMetrics` creates the instrument set, attaching baseAttributes
// (collected once, at startup) to every subsequent recording.
func NewCompletionMetrics(serviceName string, baseAttributes []attribute.KeyValue) (CompletionMetrics, error) {
	meter := otel.Meter(serviceName)

	requestCounter, err := meter.Int64Counter(
		"completion.request.count",
		metric.WithDescription("Requests entering the completion layer"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return CompletionMetrics{}, err
	}

	responseCounter, err := meter.Int64Counter(
		"completion.response.count",
		metric.WithDescription("Completed requests, tagged by status"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return CompletionMetrics{}, err
	}

	latencyGauge, err := meter.Float64Gauge(
		"completion.latency",
		metric.WithDescription("Per-call latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return CompletionMetrics{}, err
	}

	simulatedCounter, err := meter.Int64Counter(
		"completion.simulated.count",
		metric.WithDescription("Operations served by simulation rather than a native backend call"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return CompletionMetrics{}, err
	}

	return CompletionMetrics{
		meter:            meter,
		baseAttributes:   baseAttributes,
		requestCounter:   requestCounter,
		responseCounter:  responseCounter,
		latencyGauge:     latencyGauge,
		simulatedCounter: simulatedCounter,
	}, nil
}

// `RecordRequest` should be called at the start of a completion-layer
// operation, before dispatch.
func (m *CompletionMetrics) RecordRequest(ctx context.Context, operation, backend string) {
	m.requestCounter.Add(ctx, 1, metric.WithAttributes(m.attrs(operation, backend, "")...))
}

// `RecordCompletion` should be called once an operation finishes, whether or
// not it succeeded. simulated marks whether this call took the emulation
// path (e.g. create_dir-via-empty-write, flattened recursive listing).
func (m *CompletionMetrics) RecordCompletion(ctx context.Context, operation, backend string, duration time.Duration, err error, simulated bool) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := m.attrs(operation, backend, status)

	m.responseCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.latencyGauge.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if simulated {
		m.simulatedCounter.Add(ctx, 1, metric.WithAttributes(m.attrs(operation, backend, "")...))
	}
}

func (m *CompletionMetrics) attrs(operation, backend, status string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(m.baseAttributes)+3)
	attrs = append(attrs, m.baseAttributes...)
	attrs = append(attrs,
		attribute.String("completion.operation", operation),
		attribute.String("completion.backend", backend),
	)
	if status != "" {
		attrs = append(attrs, attribute.String("completion.status", status))
	}
	return attrs
}
