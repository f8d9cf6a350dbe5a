package telemetry

import (
	"context"
	"time"
)

// `Recorder` combines the OTLP and Prometheus instrument sets behind the
// single Begin/end shape `pkg/complete.MetricsRecorder` expects, so the
// completion layer can be instrumented without importing either export path
// directly. Either field may be nil; a nil field is simply not recorded to.
type Recorder struct {
	Completion *CompletionMetrics
	Process    *ProcessMetrics
	Backend    string
}

// `Begin` starts instrumentation for operation and returns the closer the
// completion layer defers to report the outcome.
func (r *Recorder) Begin(ctx context.Context, operation string) func(err error, simulated bool) {
	start := time.Now()

	var endProcess func(status string)
	if r.Process != nil {
		endProcess = r.Process.BeginOperation(operation)
	}
	if r.Completion != nil {
		r.Completion.RecordRequest(ctx, operation, r.Backend)
	}

	return func(err error, simulated bool) {
		if r.Completion != nil {
			r.Completion.RecordCompletion(ctx, operation, r.Backend, time.Since(start), err, simulated)
		}
		if endProcess != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			endProcess(status)
		}
		if simulated && r.Process != nil {
			r.Process.RecordSimulated()
		}
	}
}
