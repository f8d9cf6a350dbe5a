// Package complete synthesizes the operations a storage backend's declared
// capability set doesn't natively cover: directory creation on stores with
// no directories, directory stat on stores with no stat-a-prefix call,
// recursive listing on stores that can only list one level, and prefix
// listing on stores that insist on a directory boundary. It also wraps every
// streaming read/write in a byte-count check so mismatches between a
// backend's declared size and its actual output surface as errors instead
// of silent truncation or corruption.
//
// Every backend accessor is expected to pass through this layer exactly
// once, immediately above the backend itself and below any retry, tracing,
// or concurrency-limiting layers.
package complete

import "github.com/NVIDIA/multi-storage-client/complete/pkg/accessor"

// `LayerOption` configures a completion accessor at construction time.
type LayerOption func(*completeAccessor)

// `WithMetrics` instruments every operation the returned accessor dispatches
// with m: one Begin/end pair per call, with simulated set for the
// create-dir-via-empty-write, flattened-recursive-list, and
// directory-stat-via-recursive-list paths.
func WithMetrics(m MetricsRecorder) LayerOption {
	return func(a *completeAccessor) {
		a.metrics = m
	}
}

// `Layer` wraps inner with the completion accessor. It calls inner.Info()
// once, keeps that AccessorInfo as the layered accessor's own, and promotes
// create_dir into its full capability view whenever the native backend can
// list and can write zero-length objects —
// the two primitives this layer combines to simulate create_dir. The native
// view is left untouched so this layer's own dispatch keeps seeing the
// backend's real feature set.
func Layer(inner accessor.Accessor, opts ...LayerOption) accessor.Accessor {
	info := inner.Info()
	info.UpdateFullCapability(func(cap accessor.Capability) accessor.Capability {
		if cap.List && cap.WriteCanEmpty {
			cap.CreateDir = true
		}
		return cap
	})

	a := &completeAccessor{
		info:  info,
		inner: inner,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}
