package vmem

import (
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/pagearena/internal/conv"
	"github.com/hupe1980/pagearena/internal/mem"
)

// Simulated is a heap-backed PageInterface. Reservations are page-aligned
// Go byte slices; commit state is tracked per page so tests can observe what
// an allocator asked the OS to do. Decommitted pages are zeroed.
//
// Simulated is safe for concurrent use.
type Simulated struct {
	pageSize int

	mu        sync.Mutex
	regions   map[uintptr]*simRegion
	commits   int
	decommits int
}

type simRegion struct {
	data      []byte
	committed *roaring.Bitmap // page indexes relative to data
}

// NewSimulated returns a Simulated page interface with the given page size.
// pageSize must be a power of two.
func NewSimulated(pageSize int) *Simulated {
	if pageSize <= 0 || pageSize&(pageSize-1) != 0 {
		panic(fmt.Sprintf("vmem: invalid simulated page size %d", pageSize))
	}
	return &Simulated{
		pageSize: pageSize,
		regions:  make(map[uintptr]*simRegion),
	}
}

// PageSize implements PageInterface.
func (s *Simulated) PageSize() int { return s.pageSize }

// Reserve implements PageInterface.
func (s *Simulated) Reserve(size int) ([]byte, error) {
	if err := checkSize(size, s.pageSize); err != nil {
		return nil, err
	}
	data := mem.AllocAligned(size, s.pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions[mem.Addr(data)] = &simRegion{data: data, committed: roaring.New()}
	return data, nil
}

// Commit implements PageInterface.
func (s *Simulated) Commit(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, first, last, err := s.lookup(b)
	if err != nil {
		return err
	}
	r.committed.AddRange(first, last)
	s.commits++
	return nil
}

// Decommit implements PageInterface.
func (s *Simulated) Decommit(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, first, last, err := s.lookup(b)
	if err != nil {
		return err
	}
	r.committed.RemoveRange(first, last)
	clear(b)
	s.decommits++
	return nil
}

// Release implements PageInterface.
func (s *Simulated) Release(b []byte) error {
	if err := checkRange(b, s.pageSize); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	base := mem.Addr(b)
	r, ok := s.regions[base]
	if !ok || len(r.data) != len(b) {
		return fmt.Errorf("%w: release %#x+%d", ErrUnknownRegion, base, len(b))
	}
	delete(s.regions, base)
	return nil
}

// IsCommitted reports whether the page containing addr is committed.
func (s *Simulated) IsCommitted(addr uintptr) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for base, r := range s.regions {
		if addr >= base && addr < base+uintptr(len(r.data)) {
			idx, err := conv.Uint64ToUint32(uint64((addr - base) / uintptr(s.pageSize)))
			return err == nil && r.committed.Contains(idx)
		}
	}
	return false
}

// CommittedBytes returns the number of committed bytes across all reservations.
func (s *Simulated) CommittedBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pages uint64
	for _, r := range s.regions {
		pages += r.committed.GetCardinality()
	}
	return int(pages) * s.pageSize
}

// Reservations returns the number of live reservations.
func (s *Simulated) Reservations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.regions)
}

// Calls returns the number of successful Commit and Decommit calls.
func (s *Simulated) Calls() (commits, decommits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits, s.decommits
}

// lookup resolves b to its reservation and half-open page index range.
func (s *Simulated) lookup(b []byte) (*simRegion, uint64, uint64, error) {
	if err := checkRange(b, s.pageSize); err != nil {
		return nil, 0, 0, err
	}
	addr := mem.Addr(b)
	for base, r := range s.regions {
		end := base + uintptr(len(r.data))
		if addr < base || addr >= end {
			continue
		}
		if addr+uintptr(len(b)) > end {
			break
		}
		first := uint64(addr-base) / uint64(s.pageSize)
		return r, first, first + uint64(len(b)/s.pageSize), nil
	}
	return nil, 0, 0, fmt.Errorf("%w: %#x+%d", ErrUnknownRegion, addr, len(b))
}
