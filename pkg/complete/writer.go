package complete

import (
	"context"
	"runtime"

	"github.com/NVIDIA/multi-storage-client/complete/pkg/accessor"
)

// `completeWriter` wraps a backend writer and verifies, on close, that the
// number of bytes written equals the declared content length. inner is held
// as an optional value and is cleared only once close or abort fully
// succeeds; any failure path leaves it in place so an outer retry layer can
// safely reinvoke close (or fall back to abort) without this layer
// reporting "already closed".
type completeWriter struct {
	inner         accessor.Writer
	append        bool
	contentLength uint64
	written       uint64
}

func newCompleteWriter(inner accessor.Writer, append bool, contentLength uint64) *completeWriter {
	w := &completeWriter{inner: inner, append: append, contentLength: contentLength}
	registerWriterFinalizer(w)
	return w
}

func (w *completeWriter) check() error {
	if w.append || w.contentLength == 0 {
		return nil
	}

	switch {
	case w.written == w.contentLength:
		return nil
	case w.written < w.contentLength:
		return accessor.NewError(accessor.KindUnexpected, "writer got too little data").
			WithContext("expect", w.contentLength).
			WithContext("actual", w.written)
	default:
		return accessor.NewError(accessor.KindUnexpected, "writer got too much data").
			WithContext("expect", w.contentLength).
			WithContext("actual", w.written)
	}
}

func (w *completeWriter) Write(ctx context.Context, chunk []byte) error {
	if w.inner == nil {
		return accessor.NewError(accessor.KindUnexpected, "writer has been closed or aborted")
	}

	if err := w.inner.Write(ctx, chunk); err != nil {
		return err
	}
	w.written += uint64(len(chunk))
	return nil
}

func (w *completeWriter) Close(ctx context.Context) (accessor.Metadata, error) {
	if w.inner == nil {
		return accessor.Metadata{}, accessor.NewError(accessor.KindUnexpected, "writer has been closed or aborted")
	}

	meta, err := w.inner.Close(ctx)
	if err != nil {
		// inner deliberately left in place: a retry layer may reinvoke Close.
		return accessor.Metadata{}, err
	}

	if err := w.check(); err != nil {
		return accessor.Metadata{}, err
	}

	if meta.ContentLength == 0 {
		meta = meta.WithContentLength(w.written)
	}

	w.inner = nil
	runtime.SetFinalizer(w, nil)
	return meta, nil
}

func (w *completeWriter) Abort(ctx context.Context) error {
	if w.inner == nil {
		return accessor.NewError(accessor.KindUnexpected, "writer has been closed or aborted")
	}

	if err := w.inner.Abort(ctx); err != nil {
		return err
	}

	w.inner = nil
	runtime.SetFinalizer(w, nil)
	return nil
}
