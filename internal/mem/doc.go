// Package mem provides memory allocation utilities.
//
// # Aligned Allocation
//
// AllocAligned returns heap buffers aligned to an arbitrary power of two,
// e.g. a page, so page-granular code paths can be exercised without an OS
// mapping. Addr and IsAligned inspect slice start addresses.
package mem
