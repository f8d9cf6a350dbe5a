// Package memory provides a minimal in-process accessor backed by a sorted
// string-keyed map. It declares no native create_dir and no native
// list_with_recursive, and its Stat rejects directory paths with
// Unsupported. The completion layer fills in create_dir and recursive
// listing for it; a directory stat through the layer is still delegated
// here (the layer's list-based directory stat needs native
// list_with_recursive) and fails the same way. This makes it a convenient
// reference accessor for testing that layer as well as a small standalone
// store in its own right.
//
// Keys are stored and enumerated via an LLRB tree (mirroring the sorted
// string-set/string-map helpers a FUSE-facing backend needs for directory
// enumeration) rather than a bare Go map, so listing naturally walks entries
// in lexical order without a separate sort pass.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/NVIDIA/sortedmap"

	"github.com/NVIDIA/multi-storage-client/complete/pkg/accessor"
)

// `Backend` is a sorted, in-memory object store. All operations are
// synchronous and protected by a single mutex; it is meant for tests and
// small demos, not for production throughput.
type Backend struct {
	mu      sync.Mutex
	tree    sortedmap.LLRBTree // key: path (string) -> value: *object
	writeCanAppend bool
}

type object struct {
	content      []byte
	lastModified time.Time
}

// New constructs an empty Backend. If writeCanAppend is true the backend
// advertises write_can_append (used to exercise the completing writer's
// append path, which skips the length check entirely).
func New(writeCanAppend bool) *Backend {
	b := &Backend{writeCanAppend: writeCanAppend}
	b.tree = sortedmap.NewLLRBTree(sortedmap.CompareString, b)
	return b
}

// DumpKey satisfies sortedmap's debug-dump callback contract.
func (b *Backend) DumpKey(key sortedmap.Key) (string, error) {
	s, ok := key.(string)
	if !ok {
		return "", fmt.Errorf("key.(string) returned !ok")
	}
	return s, nil
}

// DumpValue satisfies sortedmap's debug-dump callback contract.
func (b *Backend) DumpValue(value sortedmap.Value) (string, error) {
	obj, ok := value.(*object)
	if !ok {
		return "", fmt.Errorf("value.(*object) returned !ok")
	}
	return fmt.Sprintf("%d bytes @ %s", len(obj.content), obj.lastModified), nil
}

func (b *Backend) Info() *accessor.AccessorInfo {
	return accessor.NewAccessorInfo("memory", accessor.Capability{
		Read:           true,
		Stat:           true,
		Write:          true,
		WriteCanAppend: b.writeCanAppend,
		WriteCanEmpty:  true,
		Delete:         true,
		List:           true,
		// Deliberately false: CreateDir, ListWithRecursive, Presign. The
		// completion layer fills in the first two; Presign it delegates.
	})
}

func (b *Backend) CreateDir(ctx context.Context, path string, args accessor.OpCreateDir) (accessor.RpCreateDir, error) {
	return accessor.RpCreateDir{}, accessor.NewError(accessor.KindUnsupported, "memory backend has no native create_dir")
}

func (b *Backend) Stat(ctx context.Context, path string, args accessor.OpStat) (accessor.RpStat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if strings.HasSuffix(path, "/") {
		return accessor.RpStat{}, accessor.NewError(accessor.KindUnsupported, "memory backend has no native directory stat")
	}

	value, ok, err := b.tree.GetByKey(path)
	if err != nil {
		return accessor.RpStat{}, err
	}
	if !ok {
		return accessor.RpStat{}, accessor.NewError(accessor.KindNotFound, "no such object: "+path)
	}

	obj := value.(*object)
	meta := accessor.NewFileMetadata(uint64(len(obj.content))).WithLastModified(obj.lastModified)
	return accessor.RpStat{Metadata: meta}, nil
}

// List returns one directory level beneath path: immediate children only,
// with subdirectories synthesized from any key containing a "/" after the
// prefix. It never recurses — that's the completion layer's job when a
// caller wants list_with_recursive and this backend hasn't got it.
func (b *Backend) List(ctx context.Context, path string, args accessor.OpList) (accessor.RpList, accessor.Lister, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, err := b.tree.Len()
	if err != nil {
		return accessor.RpList{}, nil, err
	}

	seenDirs := make(map[string]struct{})
	var entries []accessor.Entry

	for i := 0; i < n; i++ {
		key, _, ok, err := b.tree.GetByIndex(i)
		if err != nil {
			return accessor.RpList{}, nil, err
		}
		if !ok {
			continue
		}
		full := key.(string)
		if !strings.HasPrefix(full, path) {
			continue
		}

		rest := full[len(path):]
		if rest == "" {
			continue
		}

		if slash := strings.IndexByte(rest, '/'); slash >= 0 {
			dirName := rest[:slash+1]
			if _, ok := seenDirs[dirName]; ok {
				continue
			}
			seenDirs[dirName] = struct{}{}
			entries = append(entries, accessor.Entry{Path: path + dirName, Meta: accessor.NewDirMetadata()})
			continue
		}

		value, _, err := b.tree.GetByKey(full)
		if err != nil {
			return accessor.RpList{}, nil, err
		}
		obj := value.(*object)
		meta := accessor.NewFileMetadata(uint64(len(obj.content))).WithLastModified(obj.lastModified)
		entries = append(entries, accessor.Entry{Path: full, Meta: meta})

		if args.Limit > 0 && len(entries) >= args.Limit {
			break
		}
	}

	return accessor.RpList{}, &sliceLister{entries: entries}, nil
}

func (b *Backend) Read(ctx context.Context, path string, args accessor.OpRead) (accessor.RpRead, accessor.Reader, error) {
	b.mu.Lock()
	value, ok, err := b.tree.GetByKey(path)
	b.mu.Unlock()
	if err != nil {
		return accessor.RpRead{}, nil, err
	}
	if !ok {
		return accessor.RpRead{}, nil, accessor.NewError(accessor.KindNotFound, "no such object: "+path)
	}

	obj := value.(*object)
	content := obj.content

	start := args.RangeOffset
	if start > uint64(len(content)) {
		start = uint64(len(content))
	}
	end := uint64(len(content))
	if args.RangeSize != nil {
		want := start + *args.RangeSize
		if want < end {
			end = want
		}
	}

	return accessor.RpRead{}, &byteReader{content: content[start:end]}, nil
}

func (b *Backend) Write(ctx context.Context, path string, args accessor.OpWrite) (accessor.RpWrite, accessor.Writer, error) {
	return accessor.RpWrite{}, &memWriter{backend: b, path: path, append: args.Append}, nil
}

func (b *Backend) Delete(ctx context.Context) (accessor.RpDelete, accessor.Deleter, error) {
	return accessor.RpDelete{}, &memDeleter{backend: b}, nil
}

func (b *Backend) Presign(ctx context.Context, path string, args accessor.OpPresign) (accessor.RpPresign, error) {
	return accessor.RpPresign{}, accessor.NewError(accessor.KindUnsupported, "memory backend does not support presign")
}

func (b *Backend) put(path string, content []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj := &object{content: content, lastModified: time.Now()}
	if _, ok, _ := b.tree.GetByKey(path); ok {
		_, _ = b.tree.DeleteByKey(path)
	}
	_, _ = b.tree.Put(path, obj)
}

func (b *Backend) append(path string, chunk []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	value, ok, _ := b.tree.GetByKey(path)
	if ok {
		obj := value.(*object)
		obj.content = append(obj.content, chunk...)
		obj.lastModified = time.Now()
		return
	}
	_, _ = b.tree.Put(path, &object{content: append([]byte(nil), chunk...), lastModified: time.Now()})
}

func (b *Backend) delete(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ok, err := b.tree.DeleteByKey(path)
	if err != nil {
		return err
	}
	if !ok {
		return accessor.NewError(accessor.KindNotFound, "no such object: "+path)
	}
	return nil
}

type sliceLister struct {
	entries []accessor.Entry
	pos     int
}

func (l *sliceLister) Next(ctx context.Context) (*accessor.Entry, error) {
	if l.pos >= len(l.entries) {
		return nil, nil
	}
	e := l.entries[l.pos]
	l.pos++
	return &e, nil
}

type byteReader struct {
	content []byte
	sent    bool
}

func (r *byteReader) Read(ctx context.Context) ([]byte, error) {
	if r.sent {
		return nil, nil
	}
	r.sent = true
	return r.content, nil
}

type memWriter struct {
	backend *Backend
	path    string
	append  bool
	buf     []byte
}

func (w *memWriter) Write(ctx context.Context, chunk []byte) error {
	w.buf = append(w.buf, chunk...)
	return nil
}

func (w *memWriter) Close(ctx context.Context) (accessor.Metadata, error) {
	if w.append {
		w.backend.append(w.path, w.buf)
	} else {
		w.backend.put(w.path, w.buf)
	}
	// ContentLength left at 0 (unknown) so the completion layer substitutes
	// its own tally, as it does for backends that don't echo a length back.
	return accessor.Metadata{Mode: accessor.ModeFile}, nil
}

func (w *memWriter) Abort(ctx context.Context) error {
	w.buf = nil
	return nil
}

type memDeleter struct {
	backend *Backend
}

func (d *memDeleter) Delete(ctx context.Context, path string) error {
	return d.backend.delete(path)
}
