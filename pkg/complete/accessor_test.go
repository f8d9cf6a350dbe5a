package complete_test

import (
	"context"
	"testing"

	"github.com/NVIDIA/multi-storage-client/complete/pkg/accessor"
	"github.com/NVIDIA/multi-storage-client/complete/pkg/backend/memory"
	"github.com/NVIDIA/multi-storage-client/complete/pkg/complete"
)

func writeFile(t *testing.T, a accessor.Accessor, path string, content []byte) {
	t.Helper()
	ctx := context.Background()
	_, w, err := a.Write(ctx, path, accessor.OpWrite{ContentLength: uint64(len(content))})
	if err != nil {
		t.Fatalf("Write(%q) failed: %v", path, err)
	}
	if len(content) > 0 {
		if err := w.Write(ctx, content); err != nil {
			t.Fatalf("writer.Write(%q) failed: %v", path, err)
		}
	}
	if _, err := w.Close(ctx); err != nil {
		t.Fatalf("writer.Close(%q) failed: %v", path, err)
	}
}

// S1: stat("/") never touches the backend and reports a directory.
func TestStatRootIsSynthetic(t *testing.T) {
	inner := memory.New(false)
	a := complete.Layer(inner)

	rp, err := a.Stat(context.Background(), "/", accessor.OpStat{})
	if err != nil {
		t.Fatalf("Stat(/) failed: %v", err)
	}
	if !rp.Metadata.IsDir() {
		t.Fatalf("Stat(/) = %+v, want DIR", rp.Metadata)
	}
}

// S2: a backend with only {list, write_can_empty} simulates create_dir via
// a zero-length write, and the full capability view subsequently reports
// create_dir = true while the native view does not.
func TestCreateDirSimulatedViaEmptyWrite(t *testing.T) {
	inner := memory.New(false)
	a := complete.Layer(inner)

	if _, err := a.CreateDir(context.Background(), "a/b/", accessor.OpCreateDir{}); err != nil {
		t.Fatalf("CreateDir failed: %v", err)
	}

	if got := a.Info().Full().CreateDir; !got {
		t.Fatalf("full capability CreateDir = %v, want true", got)
	}
	if got := a.Info().Native().CreateDir; got {
		t.Fatalf("native capability CreateDir = %v, want false (simulation must not mutate native view)", got)
	}
}

// S3: stat dir via recursive listing, and NotFound when the prefix has no
// members.
func TestStatDirViaRecursiveList(t *testing.T) {
	inner := &recursiveFixture{files: []string{"x/y.txt"}}
	a := complete.Layer(inner)

	rp, err := a.Stat(context.Background(), "x/", accessor.OpStat{})
	if err != nil {
		t.Fatalf("Stat(x/) failed: %v", err)
	}
	if !rp.Metadata.IsDir() {
		t.Fatalf("Stat(x/) = %+v, want DIR", rp.Metadata)
	}

	_, err = a.Stat(context.Background(), "z/", accessor.OpStat{})
	if !accessor.IsKind(err, accessor.KindNotFound) {
		t.Fatalf("Stat(z/) error = %v, want NotFound", err)
	}
}

// recordedCall captures one Begin/end pair observed by fakeRecorder.
type recordedCall struct {
	operation string
	err       error
	simulated bool
}

// fakeRecorder is a complete.MetricsRecorder test double: it needs no import
// of pkg/telemetry, since MetricsRecorder is satisfied structurally.
type fakeRecorder struct {
	calls []recordedCall
}

func (r *fakeRecorder) Begin(ctx context.Context, operation string) func(err error, simulated bool) {
	return func(err error, simulated bool) {
		r.calls = append(r.calls, recordedCall{operation: operation, err: err, simulated: simulated})
	}
}

// A metrics recorder passed via WithMetrics observes every dispatched
// operation, with simulated set exactly for the create-dir-via-empty-write
// path (S2) and the flattened-recursive-list path.
func TestMetricsRecorderObservesSimulatedOperations(t *testing.T) {
	rec := &fakeRecorder{}
	inner := memory.New(false)
	a := complete.Layer(inner, complete.WithMetrics(rec))
	ctx := context.Background()

	if _, err := a.CreateDir(ctx, "a/b/", accessor.OpCreateDir{}); err != nil {
		t.Fatalf("CreateDir failed: %v", err)
	}
	writeFile(t, a, "a/b/file.txt", []byte("hi"))

	_, lister, err := a.List(ctx, "a/", accessor.OpList{}.WithRecursive(true))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for {
		entry, err := lister.Next(ctx)
		if err != nil {
			t.Fatalf("lister.Next failed: %v", err)
		}
		if entry == nil {
			break
		}
	}

	if len(rec.calls) != 3 {
		t.Fatalf("recorded calls = %d, want 3 (create_dir, write, list); got %+v", len(rec.calls), rec.calls)
	}

	createDirCall, writeCall, listCall := rec.calls[0], rec.calls[1], rec.calls[2]
	if createDirCall.operation != "create_dir" || !createDirCall.simulated {
		t.Fatalf("create_dir call = %+v, want simulated=true", createDirCall)
	}
	if writeCall.operation != "write" || writeCall.simulated {
		t.Fatalf("write call = %+v, want simulated=false", writeCall)
	}
	if listCall.operation != "list" || !listCall.simulated {
		t.Fatalf("list call = %+v, want simulated=true (memory backend has no list_with_recursive)", listCall)
	}
	for _, c := range rec.calls {
		if c.err != nil {
			t.Fatalf("call %+v recorded an unexpected error", c)
		}
	}
}

func TestStatOnAFileReturnsFileMetadata(t *testing.T) {
	inner := memory.New(false)
	writeFile(t, inner, "a/file.txt", []byte("hello"))
	a := complete.Layer(inner)

	rp, err := a.Stat(context.Background(), "a/file.txt", accessor.OpStat{})
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if !rp.Metadata.IsFile() || rp.Metadata.ContentLength != 5 {
		t.Fatalf("Stat(a/file.txt) = %+v, want FILE size 5", rp.Metadata)
	}
}
