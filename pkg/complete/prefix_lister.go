package complete

import (
	"context"
	"strings"

	"github.com/NVIDIA/multi-storage-client/complete/pkg/accessor"
)

// `prefixLister` wraps a Lister and discards any entry whose path does not
// begin with prefix. Filtering is an exact string prefix test, not a
// path-component-aware one: "dir/ap" matches both "dir/apple" and
// "dir/apricot-juice" equally.
type prefixLister struct {
	inner  accessor.Lister
	prefix string
}

func newPrefixLister(inner accessor.Lister, prefix string) *prefixLister {
	return &prefixLister{inner: inner, prefix: prefix}
}

func (l *prefixLister) Next(ctx context.Context) (*accessor.Entry, error) {
	for {
		entry, err := l.inner.Next(ctx)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, nil
		}
		if strings.HasPrefix(entry.Path, l.prefix) {
			return entry, nil
		}
	}
}
