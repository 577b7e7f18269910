package pagealloc

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hupe1980/pagearena/internal/avl"
	"github.com/hupe1980/pagearena/internal/conv"
	"github.com/hupe1980/pagearena/internal/mem"
	"github.com/hupe1980/pagearena/internal/slab"
	"github.com/hupe1980/pagearena/internal/vmem"
)

const (
	// DefaultArenaSize is the default reservation: 32 GiB on 64-bit
	// platforms, 1 GiB on 32-bit ones.
	DefaultArenaSize = 1 << (30 + 5*(^uint(0)>>63))
	// DefaultMaxRanges is the default number of ranges the metadata pools can describe.
	DefaultMaxRanges = 1 << 16

	minMaxRanges = 4
)

var (
	// ErrOutOfMemory is returned when no free range can hold a request.
	ErrOutOfMemory = errors.New("pagealloc: no free range large enough")
	// ErrMetadataExhausted is returned when splitting a range needs a
	// metadata node and the pool is empty.
	ErrMetadataExhausted = errors.New("pagealloc: range metadata exhausted")
	// ErrInvalidSize is returned for sizes that are not a positive page multiple.
	ErrInvalidSize = errors.New("pagealloc: size must be a positive multiple of the page size")
	// ErrArenaTooSmall is returned when the arena cannot hold its metadata and one page.
	ErrArenaTooSmall = errors.New("pagealloc: arena too small")
	// ErrClosed is returned by operations on a closed Manager.
	ErrClosed = errors.New("pagealloc: manager is closed")
	// ErrNilPageInterface is returned when New is called without a page interface.
	ErrNilPageInterface = errors.New("pagealloc: nil page interface")
)

// Config configures a Manager.
type Config struct {
	// ArenaSize is the number of bytes to reserve, rounded up to whole pages.
	// If 0, DefaultArenaSize is used.
	ArenaSize int

	// MaxRanges bounds the number of ranges (committed plus free) the arena can
	// be split into. Metadata for that many ranges is committed up front.
	// If 0, DefaultMaxRanges is used.
	MaxRanges int

	// Logger receives construction, exhaustion and teardown events.
	// If nil, logs are discarded.
	Logger *slog.Logger
}

type rangeInfo struct {
	pages     uint64
	committed bool
	next      *avl.Node[uintptr, rangeInfo] // next free range of the same size
	prev      *avl.Node[uintptr, rangeInfo]
}

type sizeBucket struct {
	head *avl.Node[uintptr, rangeInfo]
}

type (
	addrNode = avl.Node[uintptr, rangeInfo]
	sizeNode = avl.Node[uint64, sizeBucket]
)

// Manager hands out page-aligned ranges of one up-front reservation.
//
// Free ranges are indexed twice: by size for best-fit lookup and by address
// for neighbour lookup during coalescing. Tree nodes come from two fixed-block
// pools placed in a committed metadata prefix of the reservation, so Commit
// and Decommit do not allocate from the Go heap on success.
//
// A Manager is NOT safe for concurrent use. Callers must serialize Commit,
// Decommit and Close; see pagearena.Arena for a locked wrapper.
type Manager struct {
	pi       vmem.PageInterface
	log      *slog.Logger
	pageSize int

	region []byte // the whole reservation
	meta   []byte // committed metadata prefix
	usable []byte
	base   uintptr
	pages  uint64 // usable pages

	sizes    *avl.Intrusive[uint64, sizeBucket]
	addrs    *avl.Intrusive[uintptr, rangeInfo]
	sizePool *slab.Pool[sizeNode]
	addrPool *slab.Pool[addrNode]

	committedPages uint64
	freeRanges     int
	closed         bool
}

// New reserves the arena, commits the metadata prefix and publishes the rest
// as a single free range.
func New(pi vmem.PageInterface, cfg Config) (*Manager, error) {
	if pi == nil {
		return nil, ErrNilPageInterface
	}
	if cfg.ArenaSize <= 0 {
		cfg.ArenaSize = DefaultArenaSize
	}
	if cfg.MaxRanges <= 0 {
		cfg.MaxRanges = DefaultMaxRanges
	}
	cfg.MaxRanges = max(cfg.MaxRanges, minMaxRanges)
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	ps := pi.PageSize()
	arenaSize := roundUp(cfg.ArenaSize, ps)

	// The size pool gets at least as many blocks as the address pool: every
	// free range may have a distinct size, and free ranges never outnumber
	// address entries, so bucket allocation cannot fail.
	addrBlock, _ := slab.BlockLayout[addrNode]()
	sizeBlock, _ := slab.BlockLayout[sizeNode]()
	addrMeta := roundUp(cfg.MaxRanges*int(addrBlock), ps)
	addrCap := addrMeta / int(addrBlock)
	sizeMeta := roundUp(addrCap*int(sizeBlock), ps)
	metaSize := addrMeta + sizeMeta

	if arenaSize < metaSize+ps {
		return nil, fmt.Errorf("%w: %d bytes, metadata needs %d", ErrArenaTooSmall, arenaSize, metaSize)
	}
	usablePages := uint64((arenaSize - metaSize) / ps)
	// Validate indexes pages with 32-bit bitmaps.
	if _, err := conv.Uint64ToUint32(usablePages); err != nil {
		return nil, fmt.Errorf("%w: page index range: %w", ErrInvalidSize, err)
	}

	region, err := pi.Reserve(arenaSize)
	if err != nil {
		return nil, fmt.Errorf("pagealloc: reserve arena: %w", err)
	}
	meta := region[:metaSize:metaSize]
	if err := pi.Commit(meta); err != nil {
		_ = pi.Release(region)
		return nil, fmt.Errorf("pagealloc: commit metadata: %w", err)
	}

	m := &Manager{
		pi:       pi,
		log:      log,
		pageSize: ps,
		region:   region,
		meta:     meta,
		usable:   region[metaSize:],
		base:     mem.Addr(region[metaSize:]),
		pages:    usablePages,
		sizes:    avl.NewIntrusive[uint64, sizeBucket](cmp.Compare[uint64]),
		addrs:    avl.NewIntrusive[uintptr, rangeInfo](cmp.Compare[uintptr]),
		sizePool: slab.New[sizeNode](meta[addrMeta:]),
		addrPool: slab.New[addrNode](meta[:addrMeta]),
	}

	a := m.addrPool.Allocate()
	a.Key = m.base
	a.Value = rangeInfo{pages: usablePages}
	m.insertAddr(a)
	m.pushFree(a)

	log.Debug("page arena reserved",
		"reserved_bytes", arenaSize,
		"metadata_bytes", metaSize,
		"page_size", ps,
		"pages", usablePages,
		"max_ranges", m.addrPool.Cap(),
	)
	return m, nil
}

// PageSize returns the page size of the underlying page interface.
func (m *Manager) PageSize() int { return m.pageSize }

// Commit carves a range of exactly size bytes out of the smallest free range
// that can hold it and commits its pages. size must be a positive multiple of
// the page size.
//
// ErrOutOfMemory and ErrMetadataExhausted leave the arena unchanged; callers
// may retry after decommitting other ranges.
func (m *Manager) Commit(size int) ([]byte, error) {
	if m.closed {
		return nil, ErrClosed
	}
	if size <= 0 || size%m.pageSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes, page size %d", ErrInvalidSize, size, m.pageSize)
	}
	want, err := conv.IntToUint64(size / m.pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSize, err)
	}

	it := m.sizes.LowerBound(want)
	if !it.Valid() {
		m.log.Debug("no free range fits request", "pages", want, "free_ranges", m.freeRanges)
		return nil, fmt.Errorf("%w: want %d pages", ErrOutOfMemory, want)
	}
	a := it.Value().head

	if a.Value.pages == want {
		m.removeFree(a)
		a.Value.committed = true
	} else {
		rest := m.addrPool.Allocate()
		if rest == nil {
			m.log.Warn("range metadata exhausted", "ranges", m.addrs.Len())
			return nil, fmt.Errorf("%w: %d ranges in use", ErrMetadataExhausted, m.addrs.Len())
		}
		base, pages := a.Key, a.Value.pages
		m.removeFree(a)
		m.eraseAddr(a)

		a = m.mustAllocAddr()
		a.Key = base
		a.Value = rangeInfo{pages: want, committed: true}
		m.insertAddr(a)

		rest.Key = base + uintptr(want)*uintptr(m.pageSize)
		rest.Value = rangeInfo{pages: pages - want}
		m.insertAddr(rest)
		m.pushFree(rest)
	}

	b := m.bytes(a)
	if err := m.pi.Commit(b); err != nil {
		panic(fmt.Sprintf("pagealloc: commit %d bytes at %#x: %v", len(b), a.Key, err))
	}
	m.committedPages += a.Value.pages
	return b, nil
}

// Decommit returns a range obtained from Commit to the arena and merges it
// with free neighbours. b must start at the first byte of a committed range;
// anything else is a programming error and panics.
func (m *Manager) Decommit(b []byte) {
	if m.closed {
		panic("pagealloc: decommit on closed manager")
	}
	addr := mem.Addr(b)
	it := m.addrs.Find(addr)
	if !it.Valid() || !it.Value().committed {
		panic(fmt.Sprintf("pagealloc: decommit of %#x which is not a committed range", addr))
	}
	a := it.Node()

	if err := m.pi.Decommit(m.bytes(a)); err != nil {
		panic(fmt.Sprintf("pagealloc: decommit %d pages at %#x: %v", a.Value.pages, a.Key, err))
	}
	m.committedPages -= a.Value.pages

	base, pages := a.Key, a.Value.pages
	prev, next := it.Prev(), it.Next()

	if prev.Valid() && !prev.Value().committed {
		p := prev.Node()
		base = p.Key
		pages += p.Value.pages
		m.removeFree(p)
		m.eraseAddr(p)
	}
	if next.Valid() && !next.Value().committed {
		n := next.Node()
		pages += n.Value.pages
		m.removeFree(n)
		m.eraseAddr(n)
	}
	m.eraseAddr(a)

	u := m.mustAllocAddr()
	u.Key = base
	u.Value = rangeInfo{pages: pages}
	m.insertAddr(u)
	m.pushFree(u)
}

// RangeSize returns the size in bytes of the committed range starting at b.
func (m *Manager) RangeSize(b []byte) (int, bool) {
	if m.closed {
		return 0, false
	}
	it := m.addrs.Find(mem.Addr(b))
	if !it.Valid() || !it.Value().committed {
		return 0, false
	}
	return m.pageBytes(it.Value().pages), true
}

// IsCommitted reports whether the page containing addr is committed.
func (m *Manager) IsCommitted(addr uintptr) bool {
	if m.closed || addr < m.base {
		return false
	}
	it := m.addrs.UpperBound(addr).Prev()
	if !it.Valid() {
		return false
	}
	r := it.Node()
	return r.Value.committed && addr-r.Key < uintptr(m.pageBytes(r.Value.pages))
}

// Close decommits the entire reservation and releases it. It is idempotent.
// Slices returned by Commit must not be used afterwards.
//
// If decommitting fails the Manager stays open and usable. If releasing
// fails the Manager is closed but keeps the reservation, and a later Close
// retries the release.
func (m *Manager) Close() error {
	if m.region == nil {
		return nil
	}
	if !m.closed {
		if err := m.pi.Decommit(m.region); err != nil {
			return fmt.Errorf("pagealloc: decommit arena: %w", err)
		}
		m.closed = true
		m.sizes, m.addrs = nil, nil
		m.sizePool, m.addrPool = nil, nil
		m.committedPages = 0
		m.freeRanges = 0
	}
	if err := m.pi.Release(m.region); err != nil {
		m.log.Warn("page arena release failed", "reserved_bytes", len(m.region), "error", err)
		return fmt.Errorf("pagealloc: release arena: %w", err)
	}
	m.log.Debug("page arena released", "reserved_bytes", len(m.region))
	m.region, m.meta, m.usable = nil, nil, nil
	return nil
}

// Closed reports whether Close has torn down the metadata. A closed Manager
// may still hold its reservation if releasing it failed.
func (m *Manager) Closed() bool { return m.closed }

func (m *Manager) bytes(a *addrNode) []byte {
	off := int(a.Key - m.base)
	end := off + m.pageBytes(a.Value.pages)
	return m.usable[off:end:end]
}

// pageBytes converts a page count inside the arena to bytes.
func (m *Manager) pageBytes(pages uint64) int {
	n, err := conv.Uint64ToInt(pages)
	if err != nil {
		panic(fmt.Sprintf("pagealloc: %d pages: %v", pages, err))
	}
	return n * m.pageSize
}

func (m *Manager) mustAllocAddr() *addrNode {
	a := m.addrPool.Allocate()
	if a == nil {
		panic("pagealloc: address node pool exhausted after release")
	}
	return a
}

func (m *Manager) insertAddr(a *addrNode) {
	if _, ok, err := m.addrs.Insert(a); err != nil || !ok {
		panic(fmt.Sprintf("pagealloc: insert range %#x: inserted=%v err=%v", a.Key, ok, err))
	}
}

func (m *Manager) eraseAddr(a *addrNode) {
	if err := m.addrs.EraseNode(a); err != nil {
		panic(fmt.Sprintf("pagealloc: erase range %#x: %v", a.Key, err))
	}
	m.addrPool.Deallocate(a)
}

func roundUp(n, to int) int {
	return (n + to - 1) / to * to
}
