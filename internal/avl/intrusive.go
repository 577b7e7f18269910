package avl

// Intrusive is an ordered map over caller-owned nodes. It never allocates or
// frees memory: Insert links a node supplied by the caller and every erase
// operation detaches the node and hands ownership back.
//
// Intrusive is not safe for concurrent use.
type Intrusive[K, V any] struct {
	tree[K, V]
}

// NewIntrusive returns an empty Intrusive tree.
func NewIntrusive[K, V any](cmp CompareFunc[K]) *Intrusive[K, V] {
	t := &Intrusive[K, V]{}
	t.init(cmp)
	return t
}

// Insert links n using n.Key. If the key is already present, the existing
// position is returned with inserted == false and n stays unlinked.
func (t *Intrusive[K, V]) Insert(n *Node[K, V]) (Iterator[K, V], bool, error) {
	switch {
	case n == nil:
		return t.End(), false, ErrNilNode
	case n.owner == t.id:
		return t.iter(n), false, ErrNodeLinked
	case n.owner != 0:
		return t.End(), false, ErrForeignNode
	}
	pos, inserted := t.link(n)
	return t.iter(pos), inserted, nil
}

// EraseNode detaches n from the tree.
func (t *Intrusive[K, V]) EraseNode(n *Node[K, V]) error {
	if !t.Owns(n) {
		return ErrForeignNode
	}
	t.unlink(n)
	return nil
}

// Erase detaches the node stored under key and returns it, or nil if absent.
func (t *Intrusive[K, V]) Erase(key K) *Node[K, V] {
	n := t.findNode(key)
	if n == nil {
		return nil
	}
	t.unlink(n)
	return n
}

// EraseAt detaches the node at it and returns the next position.
func (t *Intrusive[K, V]) EraseAt(it Iterator[K, V]) (Iterator[K, V], error) {
	if !it.Valid() {
		return t.End(), nil
	}
	if !t.Owns(it.node) {
		return t.End(), ErrForeignNode
	}
	return t.iter(t.unlink(it.node)), nil
}

// EraseRange detaches [first, last) and returns last.
func (t *Intrusive[K, V]) EraseRange(first, last Iterator[K, V]) (Iterator[K, V], error) {
	var err error
	for !first.Equal(last) && first.Valid() {
		if first, err = t.EraseAt(first); err != nil {
			return first, err
		}
	}
	return first, nil
}

// Clear detaches every node. fn, if non-nil, receives each detached node so
// the caller can recycle its storage.
func (t *Intrusive[K, V]) Clear(fn func(*Node[K, V])) {
	t.detachAll(fn)
}
