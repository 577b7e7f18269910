// Package slab provides a lock-free fixed-block pool.
//
// A Pool[T] carves a pre-committed buffer into equally sized blocks and hands
// them out as *T. It is used to bootstrap tree metadata without going through
// a general-purpose allocator:
//
//	buf := region[:64<<10]
//	pool := slab.New[avl.Node[uintptr, info]](buf)
//	n := pool.Allocate() // nil when exhausted
//	defer pool.Deallocate(n)
//
// Capacity is fixed at construction: len(buf) / block size, where the block
// size is T's size rounded up to T's alignment and never smaller than a pointer.
package slab
