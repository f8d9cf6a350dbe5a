package complete

import (
	"context"
	"testing"

	"github.com/NVIDIA/multi-storage-client/complete/pkg/accessor"
)

// fakeWriter is a controllable inner accessor.Writer: it can be told to fail
// its next Close (to exercise the "inner preserved on failure" invariant),
// and it records whether Abort was ever invoked.
type fakeWriter struct {
	written    []byte
	closeErr   error
	closed     bool
	aborted    bool
	closeCalls int
}

func (w *fakeWriter) Write(ctx context.Context, chunk []byte) error {
	w.written = append(w.written, chunk...)
	return nil
}

func (w *fakeWriter) Close(ctx context.Context) (accessor.Metadata, error) {
	w.closeCalls++
	if w.closeErr != nil {
		err := w.closeErr
		w.closeErr = nil // next retry succeeds, mirroring a transient backend failure
		return accessor.Metadata{}, err
	}
	w.closed = true
	return accessor.Metadata{Mode: accessor.ModeFile}, nil
}

func (w *fakeWriter) Abort(ctx context.Context) error {
	w.aborted = true
	return nil
}

// Invariant 5 / S6: exact content length closes cleanly; mismatches fail on
// Close with Unexpected and expect/actual context.
func TestCompleteWriterExactLengthCloses(t *testing.T) {
	inner := &fakeWriter{}
	w := newCompleteWriter(inner, false, 5)

	ctx := context.Background()
	if err := w.Write(ctx, []byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := w.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestCompleteWriterShortWriteFailsOnClose(t *testing.T) {
	inner := &fakeWriter{}
	w := newCompleteWriter(inner, false, 10)

	ctx := context.Background()
	if err := w.Write(ctx, []byte("1234567")); err != nil { // 7 of 10
		t.Fatalf("Write failed: %v", err)
	}

	_, err := w.Close(ctx)
	var e *accessor.Error
	if !asErr(err, &e) {
		t.Fatalf("Close() error = %v, want *accessor.Error", err)
	}
	if e.Kind != accessor.KindUnexpected {
		t.Fatalf("Close() error kind = %v, want Unexpected", e.Kind)
	}
	if e.Context["expect"] != uint64(10) || e.Context["actual"] != uint64(7) {
		t.Fatalf("Close() error context = %+v, want expect=10 actual=7", e.Context)
	}

	// inner must still be present (not cleared on failure), so a retried
	// close is not rejected as already closed.
	if w.inner == nil {
		t.Fatalf("inner cleared after a failed Close; retry would see writer already closed")
	}
}

// Invariant 6: append writers skip the length check entirely.
func TestCompleteWriterAppendSkipsLengthCheck(t *testing.T) {
	inner := &fakeWriter{}
	w := newCompleteWriter(inner, true, 10)

	ctx := context.Background()
	if err := w.Write(ctx, []byte("short")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := w.Close(ctx); err != nil {
		t.Fatalf("Close() on append writer with short write failed: %v, want nil (append skips check)", err)
	}
}

// Invariant 7: operations after a successful close all fail, and do not
// touch the inner sink again.
func TestCompleteWriterOpsAfterCloseFail(t *testing.T) {
	inner := &fakeWriter{}
	w := newCompleteWriter(inner, false, 0)

	ctx := context.Background()
	if _, err := w.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	closesAfterClose := inner.closeCalls

	if err := w.Write(ctx, []byte("x")); !accessor.IsKind(err, accessor.KindUnexpected) {
		t.Fatalf("Write after Close error = %v, want Unexpected", err)
	}
	if _, err := w.Close(ctx); !accessor.IsKind(err, accessor.KindUnexpected) {
		t.Fatalf("Close after Close error = %v, want Unexpected", err)
	}
	if err := w.Abort(ctx); !accessor.IsKind(err, accessor.KindUnexpected) {
		t.Fatalf("Abort after Close error = %v, want Unexpected", err)
	}

	if inner.closeCalls != closesAfterClose {
		t.Fatalf("inner.Close invoked again after writer was already closed")
	}
}

// Invariant 8: a failed inner Close leaves the writer OPEN so a subsequent
// Close (e.g. from a retry layer) is still permitted and can succeed.
func TestCompleteWriterRetryAfterFailedClose(t *testing.T) {
	inner := &fakeWriter{closeErr: accessor.NewError(accessor.KindUnexpected, "transient")}
	w := newCompleteWriter(inner, false, 0)

	ctx := context.Background()
	if _, err := w.Close(ctx); err == nil {
		t.Fatalf("first Close() succeeded, want the injected transient failure")
	}

	if _, err := w.Close(ctx); err != nil {
		t.Fatalf("retried Close() failed: %v, want success now that inner.closeErr cleared", err)
	}
}

// Zero content_length ("unknown/unchecked") and zero-length metadata
// substitution: when the backend's close() doesn't echo a length, the
// writer substitutes its own tally.
func TestCompleteWriterSubstitutesContentLength(t *testing.T) {
	inner := &fakeWriter{}
	w := newCompleteWriter(inner, false, 0) // 0 == unchecked

	ctx := context.Background()
	if err := w.Write(ctx, []byte("abcdef")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	meta, err := w.Close(ctx)
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if meta.ContentLength != 6 {
		t.Fatalf("Close() metadata ContentLength = %d, want 6 (substituted from bytes written)", meta.ContentLength)
	}
}

func asErr(err error, target **accessor.Error) bool {
	e, ok := err.(*accessor.Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
