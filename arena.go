package pagearena

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/pagearena/internal/conv"
	"github.com/hupe1980/pagearena/internal/pagealloc"
	"github.com/hupe1980/pagearena/internal/resource"
)

// Arena reserves a large region of address space once and hands out
// page-aligned, committed sub-ranges of it.
//
// All methods are safe for concurrent use.
type Arena struct {
	mu     sync.Mutex
	m      *pagealloc.Manager
	closed bool

	pageSize int
	validate bool
	rc       *resource.Controller
	metrics  MetricsCollector
	logger   *Logger
}

// Stats is a point-in-time snapshot of an Arena.
type Stats struct {
	PageSize      int
	ReservedBytes int
	MetadataBytes int

	TotalPages     uint64
	CommittedPages uint64
	FreePages      uint64

	Ranges           int
	FreeRanges       int
	SizeClasses      int
	LargestFreePages uint64

	MetadataNodes    int
	MetadataCapacity int

	MemoryLimitBytes int64
}

// Range describes one committed or free range, in address order.
type Range struct {
	Addr      uintptr
	Size      int
	Committed bool
}

// New reserves the arena and commits its metadata.
//
// Example:
//
//	a, err := pagearena.New(
//	    pagearena.WithArenaSize(1<<30),
//	    pagearena.WithMemoryLimit(256<<20),
//	)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
func New(optFns ...Option) (*Arena, error) {
	o := applyOptions(optFns)

	m, err := pagealloc.New(o.pages, pagealloc.Config{
		ArenaSize: o.arenaSize,
		MaxRanges: o.maxRanges,
		Logger:    o.logger.WithComponent("pagealloc").Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("pagearena: %w", err)
	}

	s := m.Stats()
	a := &Arena{
		m:        m,
		pageSize: m.PageSize(),
		validate: o.validate,
		rc: resource.NewController(resource.Config{
			MemoryLimitBytes:  o.memoryLimit,
			CommitBytesPerSec: o.commitRate,
			CommitBurstBytes:  o.commitBurst,
		}),
		metrics: o.metricsCollector,
		logger:  o.logger.WithArena(s.ReservedBytes, s.PageSize),
	}
	a.logger.LogOpen(context.Background(), s.TotalPages, s.MetadataBytes, s.MetadataCapacity)
	return a, nil
}

// PageSize returns the page size; Commit sizes must be multiples of it.
func (a *Arena) PageSize() int { return a.pageSize }

// Commit returns size bytes of committed, zeroed memory. size must be a
// positive multiple of PageSize.
func (a *Arena) Commit(size int) ([]byte, error) {
	return a.CommitContext(context.Background(), size)
}

// CommitContext is like Commit but waits for the commit rate limiter under ctx.
func (a *Arena) CommitContext(ctx context.Context, size int) ([]byte, error) {
	start := time.Now()
	b, err := a.commit(ctx, size)
	a.metrics.RecordCommit(size, time.Since(start), err)
	a.logger.LogCommit(ctx, size, err)
	return b, err
}

func (a *Arena) commit(ctx context.Context, size int) ([]byte, error) {
	if size <= 0 || size%a.pageSize != 0 {
		return nil, &ErrInvalidSize{Size: size, PageSize: a.pageSize}
	}
	// Memory first: a commit over the limit must not spend rate tokens.
	if err := a.rc.AcquireMemory(int64(size)); err != nil {
		return nil, translateError(err, size, a.pageSize)
	}
	if err := a.rc.AcquireCommit(ctx, size); err != nil {
		a.rc.ReleaseMemory(int64(size))
		return nil, translateError(err, size, a.pageSize)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		a.rc.ReleaseMemory(int64(size))
		return nil, ErrClosed
	}
	b, err := a.m.Commit(size)
	if err != nil {
		a.rc.ReleaseMemory(int64(size))
		return nil, translateError(err, size, a.pageSize)
	}
	a.check("commit")
	return b, nil
}

// Decommit returns a slice obtained from Commit to the arena. Its memory must
// not be used afterwards. Passing anything else panics.
func (a *Arena) Decommit(b []byte) {
	start := time.Now()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		panic("pagearena: decommit on closed arena")
	}
	size, ok := a.m.RangeSize(b)
	if !ok {
		a.mu.Unlock()
		panic(fmt.Sprintf("pagearena: decommit of %d bytes that were not returned by Commit", len(b)))
	}
	a.m.Decommit(b)
	a.check("decommit")
	a.mu.Unlock()

	a.rc.ReleaseMemory(int64(size))
	a.metrics.RecordDecommit(size, time.Since(start))
	a.logger.LogDecommit(context.Background(), size)
}

// IsCommitted reports whether the page containing addr is committed.
func (a *Arena) IsCommitted(addr uintptr) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.closed && a.m.IsCommitted(addr)
}

// Stats returns a snapshot of the arena.
func (a *Arena) Stats() Stats {
	a.mu.Lock()
	s := a.m.Stats()
	a.mu.Unlock()

	return Stats{
		PageSize:         s.PageSize,
		ReservedBytes:    s.ReservedBytes,
		MetadataBytes:    s.MetadataBytes,
		TotalPages:       s.TotalPages,
		CommittedPages:   s.CommittedPages,
		FreePages:        s.FreePages,
		Ranges:           s.Ranges,
		FreeRanges:       s.FreeRanges,
		SizeClasses:      s.SizeClasses,
		LargestFreePages: s.LargestFreePages,
		MetadataNodes:    s.MetadataNodes,
		MetadataCapacity: s.MetadataCapacity,
		MemoryLimitBytes: a.rc.MemoryLimit(),
	}
}

// Ranges yields a snapshot of all ranges in address order.
func (a *Arena) Ranges() iter.Seq[Range] {
	a.mu.Lock()
	var snap []Range
	if !a.closed {
		for r := range a.m.Ranges() {
			pages, err := conv.Uint64ToInt(r.Pages)
			if err != nil {
				a.mu.Unlock()
				panic(fmt.Sprintf("pagearena: range at %#x: %v", r.Addr, err))
			}
			snap = append(snap, Range{Addr: r.Addr, Size: pages * a.pageSize, Committed: r.Committed})
		}
	}
	a.mu.Unlock()
	return slices.Values(snap)
}

// Validate checks the arena's internal invariants.
func (a *Arena) Validate() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	return a.m.Validate()
}

// Close decommits and releases the whole reservation. Slices returned by
// Commit must not be used afterwards. Close is idempotent.
func (a *Arena) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}

	// A manager that failed to release is already closed and reports zero.
	committed := int(a.m.Stats().CommittedPages) * a.pageSize
	err := a.m.Close()
	if a.m.Closed() {
		a.rc.ReleaseMemory(int64(committed))
	}
	a.logger.LogClose(context.Background(), committed, err)
	if err != nil {
		return fmt.Errorf("pagearena: %w", err)
	}
	a.closed = true
	return nil
}

func (a *Arena) check(op string) {
	if !a.validate {
		return
	}
	if err := a.m.Validate(); err != nil {
		a.logger.Error("arena invariant violated", "op", op, "error", err)
		panic(fmt.Sprintf("pagearena: after %s: %v", op, err))
	}
}
