package avl

// Allocator supplies node storage for an owning Map.
// *slab.Pool[Node[K, V]] satisfies it.
type Allocator[K, V any] interface {
	// Allocate returns a zeroed node, or nil when storage is exhausted.
	Allocate() *Node[K, V]
	// Deallocate returns a node obtained from Allocate.
	Deallocate(n *Node[K, V])
}

type heapAllocator[K, V any] struct{}

func (heapAllocator[K, V]) Allocate() *Node[K, V] { return new(Node[K, V]) }

func (heapAllocator[K, V]) Deallocate(*Node[K, V]) {}

// Map is an ordered map that owns its nodes. Node storage comes from an
// Allocator; erased nodes are handed back to it.
//
// Map is not safe for concurrent use.
type Map[K, V any] struct {
	tree[K, V]
	alloc Allocator[K, V]
}

// New returns an empty Map whose nodes live on the Go heap.
func New[K, V any](cmp CompareFunc[K]) *Map[K, V] {
	return NewWithAllocator[K, V](cmp, heapAllocator[K, V]{})
}

// NewWithAllocator returns an empty Map drawing nodes from alloc.
func NewWithAllocator[K, V any](cmp CompareFunc[K], alloc Allocator[K, V]) *Map[K, V] {
	if alloc == nil {
		alloc = heapAllocator[K, V]{}
	}
	m := &Map[K, V]{alloc: alloc}
	m.init(cmp)
	return m
}

// Insert adds key with value. If key is already present, the existing position
// is returned with inserted == false and the stored value is unchanged.
func (m *Map[K, V]) Insert(key K, value V) (Iterator[K, V], bool, error) {
	if n := m.findNode(key); n != nil {
		return m.iter(n), false, nil
	}
	n := m.alloc.Allocate()
	if n == nil {
		return m.End(), false, ErrAllocFailed
	}
	n.Key = key
	n.Value = value
	n.reset()
	pos, _ := m.link(n)
	return m.iter(pos), true, nil
}

// Erase removes key and returns the number of nodes removed (0 or 1).
func (m *Map[K, V]) Erase(key K) int {
	n := m.findNode(key)
	if n == nil {
		return 0
	}
	m.unlink(n)
	m.free(n)
	return 1
}

// EraseAt removes the node at it and returns the next position.
func (m *Map[K, V]) EraseAt(it Iterator[K, V]) (Iterator[K, V], error) {
	if !it.Valid() {
		return m.End(), nil
	}
	if !m.Owns(it.node) {
		return m.End(), ErrForeignNode
	}
	next := m.unlink(it.node)
	m.free(it.node)
	return m.iter(next), nil
}

// EraseRange removes [first, last) and returns last.
func (m *Map[K, V]) EraseRange(first, last Iterator[K, V]) (Iterator[K, V], error) {
	var err error
	for !first.Equal(last) && first.Valid() {
		if first, err = m.EraseAt(first); err != nil {
			return first, err
		}
	}
	return first, nil
}

// Clear removes and frees every node.
func (m *Map[K, V]) Clear() {
	m.detachAll(m.free)
}

func (m *Map[K, V]) free(n *Node[K, V]) {
	var zero Node[K, V]
	*n = zero
	m.alloc.Deallocate(n)
}
