package pagealloc

import "iter"

// Stats is a point-in-time snapshot of a Manager.
type Stats struct {
	PageSize      int
	ReservedBytes int
	MetadataBytes int

	TotalPages     uint64 // usable pages, excluding metadata
	CommittedPages uint64
	FreePages      uint64

	Ranges           int // committed plus free
	FreeRanges       int
	SizeClasses      int // distinct free range sizes
	LargestFreePages uint64

	MetadataNodes    int // live address and size nodes
	MetadataCapacity int // address nodes available in total
}

// Range describes one entry of the address index.
type Range struct {
	Addr      uintptr
	Pages     uint64
	Committed bool
}

// Stats returns a snapshot of the arena. A closed Manager reports zeros.
func (m *Manager) Stats() Stats {
	if m.closed {
		return Stats{PageSize: m.pageSize}
	}
	s := Stats{
		PageSize:         m.pageSize,
		ReservedBytes:    len(m.region),
		MetadataBytes:    len(m.meta),
		TotalPages:       m.pages,
		CommittedPages:   m.committedPages,
		FreePages:        m.pages - m.committedPages,
		Ranges:           m.addrs.Len(),
		FreeRanges:       m.freeRanges,
		SizeClasses:      m.sizes.Len(),
		MetadataNodes:    m.addrPool.Len() + m.sizePool.Len(),
		MetadataCapacity: m.addrPool.Cap(),
	}
	if n := m.sizes.Max(); n != nil {
		s.LargestFreePages = n.Key
	}
	return s
}

// Ranges yields every range in address order.
func (m *Manager) Ranges() iter.Seq[Range] {
	return func(yield func(Range) bool) {
		if m.closed {
			return
		}
		for addr, info := range m.addrs.All() {
			if !yield(Range{Addr: addr, Pages: info.pages, Committed: info.committed}) {
				return
			}
		}
	}
}
