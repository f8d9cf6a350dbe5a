package complete

import (
	"context"

	"github.com/NVIDIA/multi-storage-client/complete/pkg/accessor"
)

// `flatLister` turns a backend that can only list one directory level at a
// time into a recursive (flat) lister by depth-first traversal. It holds an
// explicit stack of open directory listers rather than recursing through
// Next itself, so stack depth is bounded by tree depth rather than by call
// frames, and so the lazy-pull contract (one entry per Next call) holds even
// for very deep trees.
//
// Ordering is pre-order: a directory entry is yielded before any of its
// descendants, and entries within one directory appear in whatever order
// the backend's own lister produces (this type never re-sorts). Cycles are
// not expected in a tree-structured backend and are not detected.
type flatLister struct {
	accessor accessor.Accessor
	root     string
	stack    []accessor.Lister
	started  bool
	done     bool
}

func newFlatLister(inner accessor.Accessor, root string) *flatLister {
	return &flatLister{accessor: inner, root: root}
}

func (l *flatLister) Next(ctx context.Context) (*accessor.Entry, error) {
	if l.done {
		return nil, nil
	}

	if !l.started {
		l.started = true
		_, lister, err := l.accessor.List(ctx, l.root, accessor.OpList{})
		if err != nil {
			return nil, err
		}
		l.stack = append(l.stack, lister)
	}

	for len(l.stack) > 0 {
		top := l.stack[len(l.stack)-1]

		entry, err := top.Next(ctx)
		if err != nil {
			return nil, err
		}

		if entry == nil {
			l.stack = l.stack[:len(l.stack)-1]
			continue
		}

		if entry.Meta.IsDir() {
			_, child, err := l.accessor.List(ctx, entry.Path, accessor.OpList{})
			if err != nil {
				return nil, err
			}
			l.stack = append(l.stack, child)
		}

		return entry, nil
	}

	l.done = true
	return nil, nil
}
