//go:build !debug

package complete

// registerWriterFinalizer is a no-op in the default (release) build; the
// leak warning is a development aid only, enabled with `-tags debug`.
func registerWriterFinalizer(w *completeWriter) {}
