package complete

import "context"

// `MetricsRecorder` instruments completion-layer operations. `Layer` accepts
// one via `WithMetrics`; without one, operations run uninstrumented. `Begin`
// is called once per operation, before dispatch, and returns a closer the
// caller invokes once the operation finishes, reporting its outcome and
// whether it was served by simulation rather than a native backend call.
//
// `telemetry.Recorder` implements this interface without importing this
// package, so wiring it in does not create a dependency from the domain
// telemetry package back onto the completion layer.
type MetricsRecorder interface {
	Begin(ctx context.Context, operation string) func(err error, simulated bool)
}
