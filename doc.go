// Package pagearena provides a page-granular virtual memory arena.
//
// An Arena reserves one large region of address space up front and hands out
// committed, page-aligned sub-ranges of it. Returned ranges merge back with
// free neighbours, so the arena never fragments into adjacent free pieces.
//
// # Quick Start
//
//	a, err := pagearena.New(pagearena.WithArenaSize(1 << 30))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Close()
//
//	buf, err := a.Commit(16 * a.PageSize()) // zeroed, page-aligned
//	if err != nil {
//	    // ErrOutOfMemory, ErrMetadataExhausted, ErrMemoryLimit, ...
//	}
//	defer a.Decommit(buf)
//
// # Allocation Policy
//
// Commit picks the smallest free range that fits (best fit). When several free
// ranges have that size, the most recently freed one is reused. Decommit
// coalesces the range with free neighbours on either side.
//
// # Metadata
//
// Range bookkeeping lives in a committed prefix of the reservation, sized by
// WithMaxRanges. Commit and Decommit do not allocate on the Go heap. When every
// metadata slot is in use, splitting a free range fails with
// ErrMetadataExhausted; exact-fit commits and decommits still succeed.
//
// # Platforms
//
// On Unix, pages are reserved with mmap(PROT_NONE), committed with mprotect and
// decommitted with madvise(MADV_DONTNEED). On Windows, VirtualAlloc and
// VirtualFree are used. Elsewhere a heap-backed simulation is used.
// SimulatedPages exposes that simulation for tests.
//
// # Errors
//
// Exhaustion and invalid sizes are returned as errors. Decommitting memory
// that was not returned by Commit is a programming error and panics.
package pagearena
