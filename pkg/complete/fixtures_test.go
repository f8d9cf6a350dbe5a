package complete_test

import (
	"context"
	"strings"

	"github.com/NVIDIA/multi-storage-client/complete/pkg/accessor"
)

// staticLister replays a fixed, ordered slice of entries — used by the
// fixture backends below to pin down exactly what a fake List() call
// yields, independent of any real backend's own ordering.
type staticLister struct {
	entries []accessor.Entry
	pos     int
}

func (l *staticLister) Next(ctx context.Context) (*accessor.Entry, error) {
	if l.pos >= len(l.entries) {
		return nil, nil
	}
	e := l.entries[l.pos]
	l.pos++
	return &e, nil
}

// recursiveFixture advertises native list_with_recursive and answers a
// recursive list at any path by prefix-matching against a fixed file set.
// Used to exercise the completion layer's directory stat via a recursive
// list of limit 1 (S3), which needs native list_with_recursive.
type recursiveFixture struct {
	files []string
}

func (f *recursiveFixture) Info() *accessor.AccessorInfo {
	return accessor.NewAccessorInfo("recursive-fixture", accessor.Capability{
		Read: true, Stat: true, List: true, ListWithRecursive: true,
	})
}

func (f *recursiveFixture) CreateDir(ctx context.Context, path string, args accessor.OpCreateDir) (accessor.RpCreateDir, error) {
	return accessor.RpCreateDir{}, accessor.NewError(accessor.KindUnsupported, "not implemented")
}

func (f *recursiveFixture) Stat(ctx context.Context, path string, args accessor.OpStat) (accessor.RpStat, error) {
	return accessor.RpStat{}, accessor.NewError(accessor.KindUnsupported, "not implemented")
}

func (f *recursiveFixture) List(ctx context.Context, path string, args accessor.OpList) (accessor.RpList, accessor.Lister, error) {
	var entries []accessor.Entry
	for _, name := range f.files {
		if strings.HasPrefix(name, path) {
			entries = append(entries, accessor.Entry{Path: name, Meta: accessor.NewFileMetadata(0)})
			if args.Limit > 0 && len(entries) >= args.Limit {
				break
			}
		}
	}
	return accessor.RpList{}, &staticLister{entries: entries}, nil
}

func (f *recursiveFixture) Read(ctx context.Context, path string, args accessor.OpRead) (accessor.RpRead, accessor.Reader, error) {
	return accessor.RpRead{}, nil, accessor.NewError(accessor.KindUnsupported, "not implemented")
}

func (f *recursiveFixture) Write(ctx context.Context, path string, args accessor.OpWrite) (accessor.RpWrite, accessor.Writer, error) {
	return accessor.RpWrite{}, nil, accessor.NewError(accessor.KindUnsupported, "not implemented")
}

func (f *recursiveFixture) Delete(ctx context.Context) (accessor.RpDelete, accessor.Deleter, error) {
	return accessor.RpDelete{}, nil, accessor.NewError(accessor.KindUnsupported, "not implemented")
}

func (f *recursiveFixture) Presign(ctx context.Context, path string, args accessor.OpPresign) (accessor.RpPresign, error) {
	return accessor.RpPresign{}, accessor.NewError(accessor.KindUnsupported, "not implemented")
}

// hierarchicalFixture advertises list only (no list_with_recursive) and
// answers a one-level, non-recursive List(path) from a fixed table — used
// to pin down the flat lister (S4) and prefix lister (S5) scenarios exactly
// as specified, independent of any particular backend's own semantics.
type hierarchicalFixture struct {
	levels map[string][]accessor.Entry
}

func (f *hierarchicalFixture) Info() *accessor.AccessorInfo {
	return accessor.NewAccessorInfo("hierarchical-fixture", accessor.Capability{
		Read: true, Stat: true, List: true,
	})
}

func (f *hierarchicalFixture) CreateDir(ctx context.Context, path string, args accessor.OpCreateDir) (accessor.RpCreateDir, error) {
	return accessor.RpCreateDir{}, accessor.NewError(accessor.KindUnsupported, "not implemented")
}

func (f *hierarchicalFixture) Stat(ctx context.Context, path string, args accessor.OpStat) (accessor.RpStat, error) {
	return accessor.RpStat{}, accessor.NewError(accessor.KindUnsupported, "not implemented")
}

func (f *hierarchicalFixture) List(ctx context.Context, path string, args accessor.OpList) (accessor.RpList, accessor.Lister, error) {
	entries := f.levels[path]
	return accessor.RpList{}, &staticLister{entries: append([]accessor.Entry(nil), entries...)}, nil
}

func (f *hierarchicalFixture) Read(ctx context.Context, path string, args accessor.OpRead) (accessor.RpRead, accessor.Reader, error) {
	return accessor.RpRead{}, nil, accessor.NewError(accessor.KindUnsupported, "not implemented")
}

func (f *hierarchicalFixture) Write(ctx context.Context, path string, args accessor.OpWrite) (accessor.RpWrite, accessor.Writer, error) {
	return accessor.RpWrite{}, nil, accessor.NewError(accessor.KindUnsupported, "not implemented")
}

func (f *hierarchicalFixture) Delete(ctx context.Context) (accessor.RpDelete, accessor.Deleter, error) {
	return accessor.RpDelete{}, nil, accessor.NewError(accessor.KindUnsupported, "not implemented")
}

func (f *hierarchicalFixture) Presign(ctx context.Context, path string, args accessor.OpPresign) (accessor.RpPresign, error) {
	return accessor.RpPresign{}, accessor.NewError(accessor.KindUnsupported, "not implemented")
}
