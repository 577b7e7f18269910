// Package pagealloc manages one large virtual reservation as a set of
// page-granular ranges.
//
// # Layout
//
// New reserves ArenaSize bytes through a vmem.PageInterface and commits a
// metadata prefix big enough for MaxRanges address nodes and as many size
// nodes. The rest of the reservation starts out as one free range:
//
//	+----------------+----------------------------------------------+
//	| address pool   |                                              |
//	| size pool      |            usable pages (one free range)     |
//	+----------------+----------------------------------------------+
//
// # Indexes
//
// Every range, committed or free, has a node in the address tree keyed by its
// start address. Free ranges are additionally chained into a bucket of the
// size tree keyed by page count, which gives best-fit lookup via LowerBound.
//
// Commit takes the head of the smallest bucket that fits and splits off the
// remainder. Decommit merges the range with free neighbours found through the
// address tree, so no two free ranges are ever adjacent. IsCommitted is a
// predecessor lookup in the same tree. Neither Commit nor Decommit allocates
// from the Go heap on success; only the page interface may.
//
// # Errors
//
// Invalid sizes, exhaustion and metadata exhaustion are returned as errors
// and leave the arena untouched. Decommitting anything that is not the start
// of a committed range panics, as does a failing page interface call on the
// Commit/Decommit path.
//
// The Manager is not safe for concurrent use.
package pagealloc
