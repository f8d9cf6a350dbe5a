//go:build debug

package complete

import (
	"log"
	"runtime"
)

// registerWriterFinalizer attaches a GC finalizer that warns if a
// completeWriter is collected while still holding its inner sink — i.e. the
// caller dropped it without calling Close or Abort. Built only with
// `-tags debug`; the release build below is a no-op so this never runs (or
// costs anything) in production binaries.
func registerWriterFinalizer(w *completeWriter) {
	runtime.SetFinalizer(w, func(w *completeWriter) {
		if w.inner != nil {
			log.Printf("warning: writer has not been closed or aborted, must be a bug")
		}
	})
}
