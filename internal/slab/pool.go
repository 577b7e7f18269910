package slab

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"
)

const (
	headerSize  = unsafe.Sizeof(uintptr(0))
	headerAlign = unsafe.Alignof(uintptr(0))

	// emptyList marks an empty free list in the low half of the head word.
	emptyList = 0
)

// Pool is a fixed-capacity allocator of T-sized blocks carved out of a
// caller-supplied buffer. Free blocks form a lock-free stack.
//
// The head of the stack packs the top block (index+1, low 32 bits) with a
// generation tag (high 32 bits) that advances on every push and pop, so a
// stale head snapshot never wins a compare-and-swap after the block it names
// has been recycled.
//
// Allocate, Deallocate and the accessors are safe for concurrent use.
//
// When buf is not scanned by the garbage collector (for example an mmap'ed
// region), T must not hold pointers to Go heap objects.
type Pool[T any] struct {
	buf       []byte
	base      uintptr
	blockSize uintptr
	count     uint32

	head  atomic.Uint64
	next  []atomic.Uint32 // next free block (index+1) per block
	inUse []atomic.Bool
	live  atomic.Int64
}

// BlockLayout returns the block size and alignment a Pool[T] uses: the size
// of T (at least one pointer wide) rounded up to the stricter of T's alignment
// and pointer alignment.
func BlockLayout[T any]() (size, align uintptr) {
	var zero T
	size = max(unsafe.Sizeof(zero), headerSize)
	align = max(unsafe.Alignof(zero), headerAlign)
	size = (size + align - 1) &^ (align - 1)
	return size, align
}

// New partitions buf into blocks of T. Leading bytes are skipped to meet T's
// alignment. The pool never grows.
func New[T any](buf []byte) *Pool[T] {
	size, align := BlockLayout[T]()
	p := &Pool[T]{blockSize: size}

	if len(buf) > 0 {
		addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
		skip := ((addr + align - 1) &^ (align - 1)) - addr
		if skip < uintptr(len(buf)) {
			buf = buf[skip:]
			n := uintptr(len(buf)) / size
			if n > math.MaxUint32-1 {
				n = math.MaxUint32 - 1
			}
			p.count = uint32(n)
			p.buf = buf[:uintptr(p.count)*size]
			p.base = addr + skip
		}
	}

	p.next = make([]atomic.Uint32, p.count)
	p.inUse = make([]atomic.Bool, p.count)
	for i := uint32(0); i < p.count; i++ {
		if i+1 < p.count {
			p.next[i].Store(i + 2)
		}
	}
	if p.count > 0 {
		p.head.Store(1)
	}
	return p
}

// Allocate pops a free block and returns it as a zeroed T, or nil when the
// pool is exhausted.
func (p *Pool[T]) Allocate() *T {
	for {
		old := p.head.Load()
		top := uint32(old)
		if top == emptyList {
			return nil
		}
		next := p.next[top-1].Load()
		if p.head.CompareAndSwap(old, pack(tag(old)+1, next)) {
			idx := top - 1
			p.inUse[idx].Store(true)
			p.live.Add(1)
			ptr := p.block(idx)
			var zero T
			*ptr = zero
			return ptr
		}
	}
}

// Deallocate zeroes the block behind ptr and returns it to the free list.
// A nil ptr is a no-op. Pointers that were not handed out by this pool, or
// that are already free, panic.
func (p *Pool[T]) Deallocate(ptr *T) {
	if ptr == nil {
		return
	}
	idx := p.indexOf(ptr)
	if !p.inUse[idx].Swap(false) {
		panic(fmt.Sprintf("slab: double free of block %d", idx))
	}
	var zero T
	*ptr = zero
	p.live.Add(-1)

	for {
		old := p.head.Load()
		p.next[idx].Store(uint32(old))
		if p.head.CompareAndSwap(old, pack(tag(old)+1, idx+1)) {
			return
		}
	}
}

// Contains reports whether ptr addresses a block of this pool.
func (p *Pool[T]) Contains(ptr *T) bool {
	addr := uintptr(unsafe.Pointer(ptr))
	if p.count == 0 || addr < p.base || addr >= p.base+uintptr(len(p.buf)) {
		return false
	}
	return (addr-p.base)%p.blockSize == 0
}

// Cap returns the number of blocks.
func (p *Pool[T]) Cap() int { return int(p.count) }

// Len returns the number of live blocks.
func (p *Pool[T]) Len() int { return int(p.live.Load()) }

// Available returns the number of free blocks.
func (p *Pool[T]) Available() int { return p.Cap() - p.Len() }

// BlockSize returns the size of one block in bytes.
func (p *Pool[T]) BlockSize() int { return int(p.blockSize) }

func (p *Pool[T]) block(idx uint32) *T {
	return (*T)(unsafe.Pointer(&p.buf[uintptr(idx)*p.blockSize])) //nolint:gosec // blocks are aligned for T
}

func (p *Pool[T]) indexOf(ptr *T) uint32 {
	if !p.Contains(ptr) {
		panic(fmt.Sprintf("slab: pointer %p does not belong to pool", ptr))
	}
	return uint32((uintptr(unsafe.Pointer(ptr)) - p.base) / p.blockSize)
}

func pack(tag, top uint32) uint64 { return uint64(tag)<<32 | uint64(top) }

func tag(head uint64) uint32 { return uint32(head >> 32) }
