package pagealloc

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// ErrCorrupt is wrapped by every error Validate returns.
var ErrCorrupt = errors.New("pagealloc: metadata corrupt")

// Validate checks the arena's structural invariants: the address index
// partitions the usable region without gaps or overlaps, no two free ranges
// are adjacent, every free range sits in exactly the size bucket matching its
// length, and the committed-page counter agrees with the index.
//
// Validate walks all metadata and is meant for tests and debug builds.
func (m *Manager) Validate() error {
	if m.closed {
		return ErrClosed
	}
	ps := uint64(m.pageSize)

	covered := roaring.New()
	var committed uint64
	expected := m.base
	prevFree := false
	free := 0

	for n := range m.addrs.Nodes() {
		if n.Key != expected {
			return fmt.Errorf("%w: range at %#x, expected %#x", ErrCorrupt, n.Key, expected)
		}
		if n.Value.pages == 0 {
			return fmt.Errorf("%w: empty range at %#x", ErrCorrupt, n.Key)
		}
		first := uint64(n.Key-m.base) / ps
		last := first + n.Value.pages
		if last > m.pages {
			return fmt.Errorf("%w: range at %#x runs past the arena", ErrCorrupt, n.Key)
		}

		before := covered.GetCardinality()
		covered.AddRange(first, last)
		if covered.GetCardinality()-before != n.Value.pages {
			return fmt.Errorf("%w: range at %#x overlaps another", ErrCorrupt, n.Key)
		}

		if n.Value.committed {
			committed += n.Value.pages
			prevFree = false
		} else {
			if prevFree {
				return fmt.Errorf("%w: free range at %#x follows another free range", ErrCorrupt, n.Key)
			}
			prevFree = true
			free++
		}
		expected = n.Key + uintptr(n.Value.pages*ps)
	}

	if covered.GetCardinality() != m.pages {
		return fmt.Errorf("%w: index covers %d of %d pages", ErrCorrupt, covered.GetCardinality(), m.pages)
	}
	if committed != m.committedPages {
		return fmt.Errorf("%w: committed counter %d, index has %d", ErrCorrupt, m.committedPages, committed)
	}
	if free != m.freeRanges {
		return fmt.Errorf("%w: free counter %d, index has %d", ErrCorrupt, m.freeRanges, free)
	}

	return m.validateBuckets(free)
}

func (m *Manager) validateBuckets(free int) error {
	listed := 0
	for s := range m.sizes.Nodes() {
		if s.Value.head == nil {
			return fmt.Errorf("%w: empty size bucket %d", ErrCorrupt, s.Key)
		}
		var prev *addrNode
		for a := s.Value.head; a != nil; a = a.Value.next {
			switch {
			case !m.addrs.Owns(a):
				return fmt.Errorf("%w: bucket %d lists a range outside the address index", ErrCorrupt, s.Key)
			case a.Value.committed:
				return fmt.Errorf("%w: bucket %d lists committed range %#x", ErrCorrupt, s.Key, a.Key)
			case a.Value.pages != s.Key:
				return fmt.Errorf("%w: bucket %d lists range %#x of %d pages", ErrCorrupt, s.Key, a.Key, a.Value.pages)
			case a.Value.prev != prev:
				return fmt.Errorf("%w: bucket %d has a broken back link at %#x", ErrCorrupt, s.Key, a.Key)
			}
			prev = a
			listed++
			if listed > free {
				return fmt.Errorf("%w: size buckets list more than %d free ranges", ErrCorrupt, free)
			}
		}
	}
	if listed != free {
		return fmt.Errorf("%w: size buckets list %d of %d free ranges", ErrCorrupt, listed, free)
	}
	return nil
}
