package complete

import (
	"context"

	"github.com/NVIDIA/multi-storage-client/complete/pkg/accessor"
)

// `completeAccessor` owns the layered AccessorInfo exclusively and shares
// ownership of inner with any flat lister it constructs (a flat lister
// reopens directories mid-traversal and needs the same handle). Readers and
// writers it produces own their inner stream exclusively; they are never
// handed back to this accessor.
type completeAccessor struct {
	info    *accessor.AccessorInfo
	inner   accessor.Accessor
	metrics MetricsRecorder
}

func (a *completeAccessor) Info() *accessor.AccessorInfo {
	return a.info
}

// begin starts instrumentation for operation, if a recorder is configured,
// and returns the closer to defer. When no recorder is configured it
// returns a no-op so call sites don't need to branch.
func (a *completeAccessor) begin(ctx context.Context, operation string) func(err error, simulated bool) {
	if a.metrics == nil {
		return func(error, bool) {}
	}
	return a.metrics.Begin(ctx, operation)
}

// CreateDir delegates natively, else simulates via a zero-length write when
// the backend can list and write empty objects, else delegates anyway (the
// layer does not fabricate success for a request it cannot satisfy by
// either means).
func (a *completeAccessor) CreateDir(ctx context.Context, path string, args accessor.OpCreateDir) (rp accessor.RpCreateDir, err error) {
	simulated := false
	end := a.begin(ctx, "create_dir")
	defer func() { end(err, simulated) }()

	capability := a.info.Native()

	if capability.CreateDir {
		return a.inner.CreateDir(ctx, path, args)
	}

	if capability.WriteCanEmpty && capability.List {
		simulated = true
		_, w, werr := a.inner.Write(ctx, path, accessor.OpWrite{})
		if werr != nil {
			err = werr
			return accessor.RpCreateDir{}, err
		}
		if _, werr := w.Close(ctx); werr != nil {
			err = werr
			return accessor.RpCreateDir{}, err
		}
		return accessor.RpCreateDir{}, nil
	}

	return a.inner.CreateDir(ctx, path, args)
}

// Stat answers "/" with synthetic directory metadata. A directory path is
// delegated when the backend has native create_dir (a file result becomes
// NotFound), or is checked with a recursive list of limit 1 when the backend
// has native list_with_recursive. Everything else is delegated.
func (a *completeAccessor) Stat(ctx context.Context, path string, args accessor.OpStat) (rp accessor.RpStat, err error) {
	simulated := false
	end := a.begin(ctx, "stat")
	defer func() { end(err, simulated) }()

	capability := a.info.Native()

	if path == "/" {
		return accessor.RpStat{Metadata: accessor.NewDirMetadata()}, nil
	}

	if accessor.IsDirPath(path) && capability.CreateDir {
		inner, serr := a.inner.Stat(ctx, path, args)
		if serr != nil {
			err = serr
			return accessor.RpStat{}, err
		}
		if inner.Metadata.IsFile() {
			err = accessor.NewError(accessor.KindNotFound, "stat expected a directory, but found a file")
			return accessor.RpStat{}, err
		}
		return inner, nil
	}

	if accessor.IsDirPath(path) && capability.ListWithRecursive {
		simulated = true
		_, lister, lerr := a.inner.List(ctx, path, accessor.OpList{}.WithRecursive(true).WithLimit(1))
		if lerr != nil {
			err = lerr
			return accessor.RpStat{}, err
		}
		entry, nerr := lister.Next(ctx)
		if nerr != nil {
			err = nerr
			return accessor.RpStat{}, err
		}
		if entry != nil {
			return accessor.RpStat{Metadata: accessor.NewDirMetadata()}, nil
		}
		err = accessor.NewError(accessor.KindNotFound, "the directory is not found")
		return accessor.RpStat{}, err
	}

	return a.inner.Stat(ctx, path, args)
}

// List picks one of four strategies, assembled from the prefix-filter and
// flat listers depending on whether the caller asked for recursion and
// whether the backend natively supports it: native recursion or a
// non-recursive directory path delegates; a recursive directory path is
// flattened; a recursive non-directory path flattens its parent and filters
// by path; a non-recursive non-directory path lists its parent and filters.
func (a *completeAccessor) List(ctx context.Context, path string, args accessor.OpList) (rp accessor.RpList, lister accessor.Lister, err error) {
	simulated := false
	end := a.begin(ctx, "list")
	defer func() { end(err, simulated) }()

	capability := a.info.Native()

	if capability.ListWithRecursive {
		return a.inner.List(ctx, path, args)
	}

	if args.Recursive {
		simulated = true
		if accessor.IsDirPath(path) {
			return accessor.RpList{}, newFlatLister(a.inner, path), nil
		}

		parent := accessor.Parent(path)
		return accessor.RpList{}, newPrefixLister(newFlatLister(a.inner, parent), path), nil
	}

	if accessor.IsDirPath(path) {
		return a.inner.List(ctx, path, args)
	}

	parent := accessor.Parent(path)
	innerRp, innerLister, lerr := a.inner.List(ctx, parent, args)
	if lerr != nil {
		err = lerr
		return accessor.RpList{}, nil, err
	}
	return innerRp, newPrefixLister(innerLister, path), nil
}

func (a *completeAccessor) Read(ctx context.Context, path string, args accessor.OpRead) (rp accessor.RpRead, reader accessor.Reader, err error) {
	end := a.begin(ctx, "read")
	defer func() { end(err, false) }()

	innerRp, r, rerr := a.inner.Read(ctx, path, args)
	if rerr != nil {
		err = rerr
		return accessor.RpRead{}, nil, err
	}
	return innerRp, newCompleteReader(r, args.Size()), nil
}

func (a *completeAccessor) Write(ctx context.Context, path string, args accessor.OpWrite) (rp accessor.RpWrite, writer accessor.Writer, err error) {
	end := a.begin(ctx, "write")
	defer func() { end(err, false) }()

	innerRp, w, werr := a.inner.Write(ctx, path, args)
	if werr != nil {
		err = werr
		return accessor.RpWrite{}, nil, err
	}
	return innerRp, newCompleteWriter(w, args.Append, args.ContentLength), nil
}

func (a *completeAccessor) Delete(ctx context.Context) (rp accessor.RpDelete, deleter accessor.Deleter, err error) {
	end := a.begin(ctx, "delete")
	defer func() { end(err, false) }()

	return a.inner.Delete(ctx)
}

func (a *completeAccessor) Presign(ctx context.Context, path string, args accessor.OpPresign) (rp accessor.RpPresign, err error) {
	end := a.begin(ctx, "presign")
	defer func() { end(err, false) }()

	return a.inner.Presign(ctx, path, args)
}
