package complete

import (
	"context"

	"github.com/NVIDIA/multi-storage-client/complete/pkg/accessor"
)

// `completeReader` wraps a backend reader and verifies that the total bytes
// it yields equals the caller's declared range size, if any. The check only
// runs on the terminal empty read, so a caller that abandons the stream
// partway through is never penalized for it.
type completeReader struct {
	inner accessor.Reader
	size  *uint64
	read  uint64
}

func newCompleteReader(inner accessor.Reader, size *uint64) *completeReader {
	return &completeReader{inner: inner, size: size}
}

func (r *completeReader) check() error {
	if r.size == nil {
		return nil
	}

	switch {
	case r.read == *r.size:
		return nil
	case r.read < *r.size:
		return accessor.NewError(accessor.KindUnexpected, "reader got too little data").
			WithContext("expect", *r.size).
			WithContext("actual", r.read)
	default:
		return accessor.NewError(accessor.KindUnexpected, "reader got too much data").
			WithContext("expect", *r.size).
			WithContext("actual", r.read)
	}
}

func (r *completeReader) Read(ctx context.Context) ([]byte, error) {
	chunk, err := r.inner.Read(ctx)
	if err != nil {
		return nil, err
	}

	if len(chunk) == 0 {
		if err := r.check(); err != nil {
			return nil, err
		}
		return chunk, nil
	}

	r.read += uint64(len(chunk))
	return chunk, nil
}
