package avl

// Iterator is a position in a tree. The zero position (End) is not Valid.
//
// An iterator pointing at a node stays usable while other nodes are inserted
// or erased; it is invalidated when its own node is erased. EraseAt returns
// the next valid position.
type Iterator[K, V any] struct {
	node *Node[K, V]
	t    *tree[K, V]
}

// Valid reports whether the iterator points at a node.
func (it Iterator[K, V]) Valid() bool { return it.node != nil }

// Node returns the node at the current position, or nil at End.
func (it Iterator[K, V]) Node() *Node[K, V] { return it.node }

// Key returns the key at the current position. It panics at End.
func (it Iterator[K, V]) Key() K {
	if it.node == nil {
		panic("avl: Key called on end iterator")
	}
	return it.node.Key
}

// Value returns a pointer to the value at the current position. It panics at End.
func (it Iterator[K, V]) Value() *V {
	if it.node == nil {
		panic("avl: Value called on end iterator")
	}
	return &it.node.Value
}

// Next returns the following position in ascending key order.
// Next of End is End.
func (it Iterator[K, V]) Next() Iterator[K, V] {
	if it.node == nil {
		return it
	}
	return Iterator[K, V]{node: successor(it.node), t: it.t}
}

// Prev returns the preceding position. Prev of End is the largest key;
// Prev of the smallest key is End.
func (it Iterator[K, V]) Prev() Iterator[K, V] {
	if it.node == nil {
		if it.t == nil {
			return it
		}
		return Iterator[K, V]{node: maximum(it.t.root), t: it.t}
	}
	return Iterator[K, V]{node: predecessor(it.node), t: it.t}
}

// Equal reports whether both iterators point at the same position.
func (it Iterator[K, V]) Equal(other Iterator[K, V]) bool {
	return it.node == other.node
}
