// Package vmem reserves virtual address space and commits or decommits its
// physical backing page by page.
//
// # Overview
//
// A reservation claims a range of addresses without consuming memory. Pages
// become usable only after Commit and give their memory back on Decommit
// while the addresses stay reserved:
//
//	pi := vmem.OS()
//	region, err := pi.Reserve(1 << 30)
//	if err != nil { ... }
//	defer pi.Release(region)
//
//	page := region[:pi.PageSize()]
//	_ = pi.Commit(page)   // read/write from here on
//	_ = pi.Decommit(page) // backing dropped, address still reserved
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with PROT_NONE to reserve, mprotect(2)
//     to commit, madvise(2) MADV_DONTNEED plus PROT_NONE to decommit, munmap(2)
//     to release.
//   - Windows: VirtualAlloc with MEM_RESERVE / MEM_COMMIT, VirtualFree with
//     MEM_DECOMMIT / MEM_RELEASE.
//   - Elsewhere OS falls back to the heap-backed Simulated interface.
//
// # Simulated
//
// Simulated backs reservations with page-aligned heap buffers and records
// per-page commit state in a roaring bitmap. It lets allocator tests assert
// which pages were committed without touching the OS.
package vmem
