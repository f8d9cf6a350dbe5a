package memory

import (
	"context"
	"testing"

	"github.com/NVIDIA/multi-storage-client/complete/pkg/accessor"
)

func TestWriteReadRoundTrip(t *testing.T) {
	b := New(false)
	ctx := context.Background()

	_, w, err := b.Write(ctx, "a/file.txt", accessor.OpWrite{ContentLength: 5})
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if err := w.Write(ctx, []byte("hello")); err != nil {
		t.Fatalf("writer.Write() failed: %v", err)
	}
	if _, err := w.Close(ctx); err != nil {
		t.Fatalf("writer.Close() failed: %v", err)
	}

	_, r, err := b.Read(ctx, "a/file.txt", accessor.OpRead{})
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	chunk, err := r.Read(ctx)
	if err != nil || string(chunk) != "hello" {
		t.Fatalf("Read() = (%q, %v), want (\"hello\", nil)", chunk, err)
	}
}

func TestListSynthesizesOneLevelOfSubdirectories(t *testing.T) {
	b := New(false)
	ctx := context.Background()

	for _, path := range []string{"a/x.txt", "a/b/y.txt", "a/b/c/z.txt"} {
		_, w, err := b.Write(ctx, path, accessor.OpWrite{})
		if err != nil {
			t.Fatalf("Write(%q) failed: %v", path, err)
		}
		if err := w.Write(ctx, []byte("data")); err != nil {
			t.Fatalf("writer.Write(%q) failed: %v", path, err)
		}
		if _, err := w.Close(ctx); err != nil {
			t.Fatalf("writer.Close(%q) failed: %v", path, err)
		}
	}

	_, lister, err := b.List(ctx, "a/", accessor.OpList{})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}

	var got []string
	for {
		entry, err := lister.Next(ctx)
		if err != nil {
			t.Fatalf("Next() failed: %v", err)
		}
		if entry == nil {
			break
		}
		got = append(got, entry.Path)
	}

	want := []string{"a/x.txt", "a/b/"}
	if len(got) != len(want) {
		t.Fatalf("List(a/) = %v, want %v", got, want)
	}
	for _, w := range want {
		found := false
		for _, g := range got {
			if g == w {
				found = true
			}
		}
		if !found {
			t.Fatalf("List(a/) = %v, missing %q", got, w)
		}
	}
}

func TestStatNotFound(t *testing.T) {
	b := New(false)
	_, err := b.Stat(context.Background(), "missing.txt", accessor.OpStat{})
	if !accessor.IsKind(err, accessor.KindNotFound) {
		t.Fatalf("Stat(missing) error = %v, want NotFound", err)
	}
}

func TestDeleteThenReadFails(t *testing.T) {
	b := New(false)
	ctx := context.Background()

	_, w, err := b.Write(ctx, "x.txt", accessor.OpWrite{})
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if _, err := w.Close(ctx); err != nil {
		t.Fatalf("writer.Close() failed: %v", err)
	}

	_, deleter, err := b.Delete(ctx)
	if err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if err := deleter.Delete(ctx, "x.txt"); err != nil {
		t.Fatalf("deleter.Delete() failed: %v", err)
	}

	if _, err := b.Stat(ctx, "x.txt", accessor.OpStat{}); !accessor.IsKind(err, accessor.KindNotFound) {
		t.Fatalf("Stat() after delete error = %v, want NotFound", err)
	}
}
